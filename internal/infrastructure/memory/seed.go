package memory

import (
	"context"

	"github.com/holdfast/auth-service/internal/domain"
	"github.com/holdfast/auth-service/internal/logger"
)

// DevAccount is a pre-linked account for local development.
type DevAccount struct {
	Nickname        string
	Role            string
	Provider        string
	ProviderSubject string
}

// SeedAccounts creates dev accounts in the in-memory store.
// Safe to call multiple times (already linked identities are skipped).
func SeedAccounts(ctx context.Context, accounts *AccountStore, stats *StatStore, seeds []DevAccount) {
	lg := logger.WithCtx(ctx)
	for _, sd := range seeds {
		existing, _ := accounts.FindByProviderIdentity(ctx, sd.Provider, sd.ProviderSubject)
		if existing != nil {
			continue
		}

		acc, err := accounts.Create(ctx, domain.NewAccount{Nickname: sd.Nickname, Role: sd.Role})
		if err != nil {
			lg.Warn().Err(err).Str("nickname", sd.Nickname).Msg("[seed] create failed")
			continue
		}
		if err := accounts.LinkIdentity(ctx, domain.AccountLink{
			AccountID:       acc.ID,
			Provider:        sd.Provider,
			ProviderSubject: sd.ProviderSubject,
			Primary:         true,
		}); err != nil {
			lg.Warn().Err(err).Str("nickname", sd.Nickname).Msg("[seed] link failed")
			continue
		}
		_ = stats.Initialize(ctx, acc.ID)
	}
	lg.Info().Int("count", len(seeds)).Msg("[seed] in-memory accounts seeded")
}
