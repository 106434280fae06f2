package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/holdfast/auth-service/internal/domain"
)

type auditEntry struct {
	action string
	fields map[string]string
}

/*
Fakes for ports
*/

type fakeVerifier struct {
	claims domain.IdentityClaims
	err    error
	calls  int
}

func (f *fakeVerifier) Verify(ctx context.Context, providerID, idToken, nonce string) (domain.IdentityClaims, error) {
	f.calls++
	if f.err != nil {
		return domain.IdentityClaims{}, f.err
	}
	return f.claims, nil
}

type fakeAccounts struct {
	mu sync.Mutex

	byID      map[string]domain.Account
	nicknames map[string]bool
	links     map[string]domain.AccountLink
	seq       int

	findErr   error
	findIDErr error
	takenErr  error
	createErr error
	linkErr   error

	takenChecks []string
	// staleFinds makes that many identity lookups miss, as if another
	// request linked the identity right after we looked.
	staleFinds int
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		byID:      map[string]domain.Account{},
		nicknames: map[string]bool{},
		links:     map[string]domain.AccountLink{},
	}
}

func (f *fakeAccounts) FindByProviderIdentity(ctx context.Context, provider, subject string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	if f.staleFinds > 0 {
		f.staleFinds--
		return nil, nil
	}
	l, ok := f.links[provider+"|"+subject]
	if !ok {
		return nil, nil
	}
	a := f.byID[l.AccountID]
	return &a, nil
}

func (f *fakeAccounts) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findIDErr != nil {
		return nil, f.findIDErr
	}
	a, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (f *fakeAccounts) NicknameTaken(ctx context.Context, nickname string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.takenChecks = append(f.takenChecks, nickname)
	if f.takenErr != nil {
		return false, f.takenErr
	}
	return f.nicknames[nickname], nil
}

func (f *fakeAccounts) Create(ctx context.Context, in domain.NewAccount) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return domain.Account{}, f.createErr
	}
	f.seq++
	a := domain.Account{
		ID:        fmt.Sprintf("acc-%d", f.seq),
		Nickname:  in.Nickname,
		Role:      in.Role,
		AvatarURL: in.AvatarURL,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	f.byID[a.ID] = a
	f.nicknames[a.Nickname] = true
	return a, nil
}

func (f *fakeAccounts) LinkIdentity(ctx context.Context, link domain.AccountLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.linkErr != nil {
		return f.linkErr
	}
	k := link.Provider + "|" + link.ProviderSubject
	if _, ok := f.links[k]; ok {
		return domain.ErrIdentityAlreadyLinked()
	}
	f.links[k] = link
	return nil
}

func (f *fakeAccounts) CreateLinked(ctx context.Context, in domain.NewAccount, provider, subject string) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return domain.Account{}, f.createErr
	}
	if f.linkErr != nil {
		return domain.Account{}, f.linkErr
	}
	k := provider + "|" + subject
	if _, ok := f.links[k]; ok {
		return domain.Account{}, domain.ErrIdentityAlreadyLinked()
	}
	f.seq++
	a := domain.Account{
		ID:        fmt.Sprintf("acc-%d", f.seq),
		Nickname:  in.Nickname,
		Role:      in.Role,
		AvatarURL: in.AvatarURL,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	f.byID[a.ID] = a
	f.nicknames[a.Nickname] = true
	f.links[k] = domain.AccountLink{AccountID: a.ID, Provider: provider, ProviderSubject: subject, Primary: true}
	return a, nil
}

type fakeStats struct {
	initialized []string
	err         error
}

func (f *fakeStats) Initialize(ctx context.Context, accountID string) error {
	if f.err != nil {
		return f.err
	}
	f.initialized = append(f.initialized, accountID)
	return nil
}

type fakeEvents struct {
	published []AccountCreatedEvent
	err       error
}

func (f *fakeEvents) PublishAccountCreated(ctx context.Context, evt AccountCreatedEvent) error {
	f.published = append(f.published, evt)
	return f.err
}

// fakeIssuer mints readable tokens: "access|sub|role|n" and "refresh|sub|n".
// A token starting with "expired|" parses as token_expired.
type fakeIssuer struct {
	mu        sync.Mutex
	n         int
	issueErr  error
	parseCall int
}

func (f *fakeIssuer) IssueAccess(subject, role string) (string, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.issueErr != nil {
		return "", time.Time{}, f.issueErr
	}
	f.n++
	return fmt.Sprintf("access|%s|%s|%d", subject, role, f.n), time.Now().Add(15 * time.Minute), nil
}

func (f *fakeIssuer) IssueRefresh(subject string) (string, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.issueErr != nil {
		return "", time.Time{}, f.issueErr
	}
	f.n++
	return fmt.Sprintf("refresh|%s|%d", subject, f.n), time.Now().Add(7 * 24 * time.Hour), nil
}

func (f *fakeIssuer) Parse(token string) (TokenInfo, error) {
	f.mu.Lock()
	f.parseCall++
	f.mu.Unlock()

	parts := strings.Split(token, "|")
	switch {
	case parts[0] == "expired":
		return TokenInfo{}, domain.ErrTokenExpired()
	case parts[0] == "access" && len(parts) == 4:
		return TokenInfo{Subject: parts[1], Role: parts[2], Kind: domain.TokenAccess}, nil
	case parts[0] == "refresh" && len(parts) == 3:
		return TokenInfo{Subject: parts[1], Kind: domain.TokenRefresh}, nil
	default:
		return TokenInfo{}, domain.ErrTokenInvalid()
	}
}

type fakeLedger struct {
	mu       sync.Mutex
	black    map[string]bool
	checkErr error
	claimErr error
	// loseClaim simulates another request claiming the token first
	loseClaim bool
	writes    int
}

func newFakeLedger() *fakeLedger { return &fakeLedger{black: map[string]bool{}} }

func (f *fakeLedger) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkErr != nil {
		return false, f.checkErr
	}
	return f.black[token], nil
}

func (f *fakeLedger) Blacklist(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	f.black[token] = true
	return nil
}

func (f *fakeLedger) Claim(ctx context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return false, f.claimErr
	}
	if f.black[token] || f.loseClaim {
		return false, nil
	}
	f.writes++
	f.black[token] = true
	return true, nil
}

/*
Harness
*/

type harness struct {
	svc      *Service
	verifier *fakeVerifier
	accounts *fakeAccounts
	stats    *fakeStats
	events   *fakeEvents
	issuer   *fakeIssuer
	ledger   *fakeLedger

	mu     sync.Mutex
	audits []auditEntry
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		verifier: &fakeVerifier{claims: domain.IdentityClaims{
			Provider:    "kakao",
			Subject:     "12345",
			DisplayName: "Alex",
			AvatarURL:   "https://img.example.com/a.png",
		}},
		accounts: newFakeAccounts(),
		stats:    &fakeStats{},
		events:   &fakeEvents{},
		issuer:   &fakeIssuer{},
		ledger:   newFakeLedger(),
	}
	h.svc = NewService(h.verifier, h.accounts, h.stats, h.issuer, h.ledger, Config{}).
		WithEvents(h.events).
		WithAudit(func(ctx context.Context, action string, fields map[string]string) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.audits = append(h.audits, auditEntry{action: action, fields: fields})
		})
	return h
}

func (h *harness) lastAudit(t *testing.T) auditEntry {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.audits) == 0 {
		t.Fatalf("expected an audit entry")
	}
	return h.audits[len(h.audits)-1]
}

func requireErrCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error code=%q, got nil", code)
	}
	if !domain.Is(err, code) {
		t.Fatalf("expected code=%q, got err=%v", code, err)
	}
}

var errBoom = errors.New("boom")
