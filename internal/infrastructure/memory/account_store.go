package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/holdfast/auth-service/internal/domain"
)

type AccountStore struct {
	mu         sync.RWMutex
	byID       map[string]domain.Account
	byNickname map[string]string // nickname -> account id
	links      map[string]domain.AccountLink
	primary    map[string]string // account id -> link key
}

func NewAccountStore() *AccountStore {
	return &AccountStore{
		byID:       make(map[string]domain.Account),
		byNickname: make(map[string]string),
		links:      make(map[string]domain.AccountLink),
		primary:    make(map[string]string),
	}
}

func linkKey(provider, subject string) string { return provider + "|" + subject }

func (s *AccountStore) FindByProviderIdentity(_ context.Context, provider, providerSubject string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.links[linkKey(provider, providerSubject)]
	if !ok {
		return nil, nil
	}
	acc, ok := s.byID[link.AccountID]
	if !ok {
		return nil, nil
	}
	return &acc, nil
}

func (s *AccountStore) FindByID(_ context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	return &acc, nil
}

func (s *AccountStore) NicknameTaken(_ context.Context, nickname string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byNickname[nickname]
	return ok, nil
}

func (s *AccountStore) Create(_ context.Context, a domain.NewAccount) (domain.Account, error) {
	if strings.TrimSpace(a.Nickname) == "" {
		return domain.Account{}, domain.ErrMissingField("nickname")
	}
	if a.Role == "" {
		a.Role = string(domain.RoleUser)
	}
	if !domain.IsValidRole(a.Role) {
		return domain.Account{}, domain.ErrInvalidField("role", "unknown role")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// mirrors the unique index on accounts.nickname
	if _, exists := s.byNickname[a.Nickname]; exists {
		return domain.Account{}, domain.ErrNicknameUnavailable()
	}

	acc := domain.Account{
		ID:        uuid.NewString(),
		Nickname:  a.Nickname,
		Role:      a.Role,
		AvatarURL: a.AvatarURL,
		CreatedAt: time.Now().UTC(),
	}
	s.byID[acc.ID] = acc
	s.byNickname[acc.Nickname] = acc.ID
	return acc, nil
}

// CreateLinked creates the account and its primary link under one lock.
func (s *AccountStore) CreateLinked(_ context.Context, a domain.NewAccount, provider, providerSubject string) (domain.Account, error) {
	if strings.TrimSpace(a.Nickname) == "" {
		return domain.Account{}, domain.ErrMissingField("nickname")
	}
	if strings.TrimSpace(provider) == "" {
		return domain.Account{}, domain.ErrMissingField("provider")
	}
	if strings.TrimSpace(providerSubject) == "" {
		return domain.Account{}, domain.ErrMissingField("provider_subject")
	}
	if a.Role == "" {
		a.Role = string(domain.RoleUser)
	}
	if !domain.IsValidRole(a.Role) {
		return domain.Account{}, domain.ErrInvalidField("role", "unknown role")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := linkKey(provider, providerSubject)
	if _, exists := s.links[k]; exists {
		return domain.Account{}, domain.ErrIdentityAlreadyLinked()
	}
	if _, exists := s.byNickname[a.Nickname]; exists {
		return domain.Account{}, domain.ErrNicknameUnavailable()
	}

	now := time.Now().UTC()
	acc := domain.Account{
		ID:        uuid.NewString(),
		Nickname:  a.Nickname,
		Role:      a.Role,
		AvatarURL: a.AvatarURL,
		CreatedAt: now,
	}
	s.byID[acc.ID] = acc
	s.byNickname[acc.Nickname] = acc.ID
	s.links[k] = domain.AccountLink{
		AccountID:       acc.ID,
		Provider:        provider,
		ProviderSubject: providerSubject,
		Primary:         true,
		CreatedAt:       now,
	}
	s.primary[acc.ID] = k
	return acc, nil
}

// Accounts reports how many accounts exist.
func (s *AccountStore) Accounts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *AccountStore) LinkIdentity(_ context.Context, link domain.AccountLink) error {
	if strings.TrimSpace(link.Provider) == "" {
		return domain.ErrMissingField("provider")
	}
	if strings.TrimSpace(link.ProviderSubject) == "" {
		return domain.ErrMissingField("provider_subject")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[link.AccountID]; !ok {
		return domain.ErrUserNotFound()
	}
	k := linkKey(link.Provider, link.ProviderSubject)
	if _, exists := s.links[k]; exists {
		return domain.ErrIdentityAlreadyLinked()
	}
	if link.Primary {
		if _, has := s.primary[link.AccountID]; has {
			return domain.ErrPrimaryLinkExists()
		}
		s.primary[link.AccountID] = k
	}

	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	s.links[k] = link
	return nil
}

// Links returns every link of an account, primary first.
func (s *AccountStore) Links(_ context.Context, accountID string) []domain.AccountLink {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.AccountLink
	for _, l := range s.links {
		if l.AccountID != accountID {
			continue
		}
		if l.Primary {
			out = append([]domain.AccountLink{l}, out...)
		} else {
			out = append(out, l)
		}
	}
	return out
}

type StatStore struct {
	mu    sync.RWMutex
	stats map[string]domain.AccountStats
}

func NewStatStore() *StatStore {
	return &StatStore{stats: make(map[string]domain.AccountStats)}
}

// Initialize creates a zeroed row. Calling it twice keeps the first row.
func (s *StatStore) Initialize(_ context.Context, accountID string) error {
	if strings.TrimSpace(accountID) == "" {
		return domain.ErrMissingField("account_id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stats[accountID]; ok {
		return nil
	}
	s.stats[accountID] = domain.AccountStats{AccountID: accountID, CreatedAt: time.Now().UTC()}
	return nil
}

func (s *StatStore) Get(accountID string) (domain.AccountStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stats[accountID]
	return st, ok
}
