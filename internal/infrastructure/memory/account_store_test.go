package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holdfast/auth-service/internal/domain"
)

func TestAccountStore_CreateLinkFind(t *testing.T) {
	s := NewAccountStore()
	ctx := context.Background()

	acc, err := s.Create(ctx, domain.NewAccount{Nickname: "boulderer", Role: "user"})
	require.NoError(t, err)
	require.NotEmpty(t, acc.ID)
	assert.False(t, acc.CreatedAt.IsZero())

	got, err := s.FindByProviderIdentity(ctx, "kakao", "12345")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.LinkIdentity(ctx, domain.AccountLink{
		AccountID: acc.ID, Provider: "kakao", ProviderSubject: "12345", Primary: true,
	}))

	got, err = s.FindByProviderIdentity(ctx, "kakao", "12345")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, acc.ID, got.ID)

	byID, err := s.FindByID(ctx, acc.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "boulderer", byID.Nickname)

	missing, err := s.FindByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAccountStore_LinkUniqueness(t *testing.T) {
	s := NewAccountStore()
	ctx := context.Background()

	a, _ := s.Create(ctx, domain.NewAccount{Nickname: "a", Role: "user"})
	b, _ := s.Create(ctx, domain.NewAccount{Nickname: "b", Role: "user"})

	require.NoError(t, s.LinkIdentity(ctx, domain.AccountLink{AccountID: a.ID, Provider: "google", ProviderSubject: "g1", Primary: true}))

	err := s.LinkIdentity(ctx, domain.AccountLink{AccountID: b.ID, Provider: "google", ProviderSubject: "g1"})
	assert.True(t, domain.Is(err, "identity_already_linked"))

	err = s.LinkIdentity(ctx, domain.AccountLink{AccountID: a.ID, Provider: "apple", ProviderSubject: "ap1", Primary: true})
	assert.True(t, domain.Is(err, "primary_link_exists"))

	require.NoError(t, s.LinkIdentity(ctx, domain.AccountLink{AccountID: a.ID, Provider: "apple", ProviderSubject: "ap1"}))

	links := s.Links(ctx, a.ID)
	require.Len(t, links, 2)
	assert.True(t, links[0].Primary)
	assert.Equal(t, "google", links[0].Provider)

	err = s.LinkIdentity(ctx, domain.AccountLink{AccountID: "ghost", Provider: "kakao", ProviderSubject: "k"})
	assert.True(t, domain.Is(err, "user_not_found"))
}

func TestAccountStore_NicknameUnique(t *testing.T) {
	s := NewAccountStore()
	ctx := context.Background()

	_, err := s.Create(ctx, domain.NewAccount{Nickname: "alex", Role: "user"})
	require.NoError(t, err)

	taken, err := s.NicknameTaken(ctx, "alex")
	require.NoError(t, err)
	assert.True(t, taken)

	_, err = s.Create(ctx, domain.NewAccount{Nickname: "alex", Role: "user"})
	assert.True(t, domain.Is(err, "nickname_unavailable"))

	_, err = s.Create(ctx, domain.NewAccount{Nickname: "x", Role: "overlord"})
	assert.True(t, domain.Is(err, "invalid_field"))
}

func TestStatStore_InitializeIsIdempotent(t *testing.T) {
	s := NewStatStore()
	ctx := context.Background()

	require.NoError(t, s.Initialize(ctx, "acc-1"))
	first, ok := s.Get("acc-1")
	require.True(t, ok)

	require.NoError(t, s.Initialize(ctx, "acc-1"))
	second, _ := s.Get("acc-1")
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Zero(t, second.Points)

	assert.True(t, domain.Is(s.Initialize(ctx, ""), "missing_field"))
}

func TestSeedAccounts_SkipsExisting(t *testing.T) {
	accounts := NewAccountStore()
	stats := NewStatStore()
	ctx := context.Background()
	seeds := []DevAccount{{Nickname: "admin", Role: "admin", Provider: "google", ProviderSubject: "dev-admin"}}

	SeedAccounts(ctx, accounts, stats, seeds)
	SeedAccounts(ctx, accounts, stats, seeds)

	acc, err := accounts.FindByProviderIdentity(ctx, "google", "dev-admin")
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, "admin", acc.Role)

	_, ok := stats.Get(acc.ID)
	assert.True(t, ok)
}

func TestAccountStore_CreateLinked(t *testing.T) {
	s := NewAccountStore()
	ctx := context.Background()

	acc, err := s.CreateLinked(ctx, domain.NewAccount{Nickname: "alex"}, "kakao", "12345")
	require.NoError(t, err)
	assert.Equal(t, "user", acc.Role)

	found, err := s.FindByProviderIdentity(ctx, "kakao", "12345")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, acc.ID, found.ID)
	links := s.Links(ctx, acc.ID)
	require.Len(t, links, 1)
	assert.True(t, links[0].Primary)

	// identity already linked: nothing is created, the nickname stays free
	_, err = s.CreateLinked(ctx, domain.NewAccount{Nickname: "alex-2"}, "kakao", "12345")
	assert.Equal(t, "identity_already_linked", domain.CodeOf(err))
	taken, _ := s.NicknameTaken(ctx, "alex-2")
	assert.False(t, taken)
	assert.Equal(t, 1, s.Accounts())

	_, err = s.CreateLinked(ctx, domain.NewAccount{Nickname: "alex"}, "google", "g1")
	assert.Equal(t, "nickname_unavailable", domain.CodeOf(err))

	_, err = s.CreateLinked(ctx, domain.NewAccount{Nickname: "x"}, "kakao", " ")
	assert.Equal(t, "missing_field", domain.CodeOf(err))
	assert.Equal(t, 1, s.Accounts())
}
