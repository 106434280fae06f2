package memory

import (
	"context"

	"github.com/holdfast/auth-service/internal/application/auth"
	"github.com/holdfast/auth-service/internal/logger"
)

// NoopPublisher logs events instead of sending them. Used when no broker is configured.
type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher { return &NoopPublisher{} }

func (p *NoopPublisher) PublishAccountCreated(ctx context.Context, evt auth.AccountCreatedEvent) error {
	logger.WithCtx(ctx).Debug().
		Str("account_id", evt.AccountID).
		Str("provider", evt.Provider).
		Msg("[noop-pub] account created")
	return nil
}
