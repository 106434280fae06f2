package domain

import "time"

// Account is the local identity record owned by the account store.
type Account struct {
	ID        string
	Nickname  string
	Role      string
	AvatarURL string
	CreatedAt time.Time
}

// AccountLink ties a local account to a provider-scoped subject.
// (Provider, ProviderSubject) is unique system-wide; at most one link per account is primary.
type AccountLink struct {
	AccountID       string
	Provider        string
	ProviderSubject string
	Primary         bool
	CreatedAt       time.Time
}

// NewAccount is the input to AccountStore.Create.
type NewAccount struct {
	Nickname  string
	Role      string
	AvatarURL string
}

// AccountStats is the per-account statistics row created alongside the account.
type AccountStats struct {
	AccountID   string
	SolvedCount int
	Points      int
	CreatedAt   time.Time
}
