package audit

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	appCtx "github.com/holdfast/auth-service/internal/pkg/context"
)

// Logger provides structured audit logging for auth business events.
type Logger struct {
	log zerolog.Logger
}

// New creates a new audit logger
func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Bool("audit", true).Logger(),
	}
}

// warnActions are logged at warn level; they usually mean a client misbehaved.
var warnActions = map[string]bool{
	"oauth_login_failed":     true,
	"token_refresh_rejected": true,
}

// Record writes one audit line. It matches the auth.Service audit hook.
func (l *Logger) Record(ctx context.Context, action string, fields map[string]string) {
	evt := l.log.Info()
	if warnActions[action] {
		evt = l.log.Warn()
	}
	evt = evt.Str("action", action)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := fields[k]
		if k == "email" {
			v = maskEmail(v)
		}
		evt = evt.Str(k, v)
	}

	if id := appCtx.GetRequestID(ctx); id != "" {
		evt = evt.Str("request_id", id)
	}
	evt.Msg("audit")
}

// maskEmail partially masks email for privacy in logs
func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if len(email) < 5 || at < 0 {
		return "***"
	}
	if at < 2 {
		return email[:1] + "***" + email[at:]
	}
	return email[:2] + "***" + email[at:]
}
