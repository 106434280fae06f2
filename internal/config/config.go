package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/holdfast/auth-service/internal/provider"
)

type Config struct {
	//App
	Env string // dev / staging / prod
	//HTTP
	HTTPAddr         string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// Session tokens
	JWTSecret       string
	JWTIssuer       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Replay guard / refresh ledger
	NonceTTL         time.Duration
	RefreshLedgerTTL time.Duration

	// Identity providers
	Providers        []provider.Descriptor
	JWKSHTTPTimeout  time.Duration
	NicknameAttempts int

	// Infrastructure. Optional in dev, where memory implementations stand in.
	DBAddr         string
	DBDebug        bool
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RabbitURL      string
	RabbitExchange string
}

func (c *Config) IsDev() bool { return c.Env == "dev" }

// Load reads .env (if present) and then the process environment.
// Variables already set in the environment win over .env.
func Load() (*Config, error) {
	if err := loadDotEnv(getEnv("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:            getEnv("ENV", "dev"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		JWTIssuer:      getEnv("JWT_ISSUER", "auth-service"),
		DBAddr:         os.Getenv("DB_ADDR"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RabbitURL:      os.Getenv("RABBIT_URL"),
		RabbitExchange: getEnv("RABBIT_EXCHANGE", "holdfast.events"),
	}

	// required values
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("missing required env var: JWT_SECRET")
	}

	var err error
	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"ACCESS_TOKEN_TTL", 15 * time.Minute, &cfg.AccessTokenTTL},
		{"REFRESH_TOKEN_TTL", 7 * 24 * time.Hour, &cfg.RefreshTokenTTL},
		{"NONCE_TTL", 10 * time.Minute, &cfg.NonceTTL},
		{"REFRESH_LEDGER_TTL", 7 * 24 * time.Hour, &cfg.RefreshLedgerTTL},
		{"JWKS_HTTP_TIMEOUT", 5 * time.Second, &cfg.JWKSHTTPTimeout},
		{"HTTP_READ_TIMEOUT", 10 * time.Second, &cfg.HTTPReadTimeout},
		{"HTTP_WRITE_TIMEOUT", 30 * time.Second, &cfg.HTTPWriteTimeout},
		{"HTTP_IDLE_TIMEOUT", time.Minute, &cfg.HTTPIdleTimeout},
	}
	for _, d := range durations {
		if *d.dst, err = getDuration(d.key, d.def); err != nil {
			return nil, err
		}
		if *d.dst <= 0 {
			return nil, fmt.Errorf("%s must be positive", d.key)
		}
	}

	if cfg.DBAddr != "" && !strings.HasPrefix(cfg.DBAddr, "postgres://") && !strings.HasPrefix(cfg.DBAddr, "postgresql://") {
		return nil, fmt.Errorf("DB_ADDR must be a postgres:// URL")
	}

	// a blacklist entry must outlive the token it blocks
	if cfg.RefreshLedgerTTL < cfg.RefreshTokenTTL {
		return nil, fmt.Errorf("REFRESH_LEDGER_TTL (%s) must be >= REFRESH_TOKEN_TTL (%s)", cfg.RefreshLedgerTTL, cfg.RefreshTokenTTL)
	}

	if cfg.NicknameAttempts, err = getInt("NICKNAME_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.DBDebug, err = getBool("DB_DEBUG", false); err != nil {
		return nil, err
	}

	if cfg.Providers, err = loadProviders(); err != nil {
		return nil, err
	}
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("no identity provider configured: set at least one of KAKAO_CLIENT_ID, GOOGLE_CLIENT_ID, APPLE_CLIENT_ID")
	}

	// Outside dev the backing services are mandatory: a per-process nonce cache
	// cannot stop replays across replicas.
	if !cfg.IsDev() {
		for key, v := range map[string]string{
			"DB_ADDR":    cfg.DBAddr,
			"REDIS_ADDR": cfg.RedisAddr,
			"RABBIT_URL": cfg.RabbitURL,
		} {
			if v == "" {
				return nil, fmt.Errorf("missing required env var: %s", key)
			}
		}
	}

	return cfg, nil
}

// loadProviders enables provider P when P_CLIENT_ID is set.
func loadProviders() ([]provider.Descriptor, error) {
	var out []provider.Descriptor
	for _, id := range provider.Known() {
		prefix := strings.ToUpper(string(id)) + "_"

		clientID := os.Getenv(prefix + "CLIENT_ID")
		if clientID == "" {
			continue
		}

		s := provider.Settings{
			ClientID:  clientID,
			JWKSURL:   os.Getenv(prefix + "JWKS_URL"),
			Issuers:   getList(prefix + "ISSUERS"),
			Audiences: getList(prefix + "AUDIENCES"),
		}
		if raw := os.Getenv(prefix + "NONCE_REQUIRED"); raw != "" {
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid bool for %sNONCE_REQUIRED: %q", prefix, raw)
			}
			s.NonceRequired = &b
		}

		d, err := provider.Describe(id, s)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q: %w", key, v, err)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for %s: %q: %w", key, v, err)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid bool for %s: %q: %w", key, v, err)
	}
	return b, nil
}

// getList splits a comma separated value, dropping blanks.
func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
