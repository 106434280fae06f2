package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/holdfast/auth-service/internal/domain"
)

// AccountRepo implements auth.AccountStore on PostgreSQL.
type AccountRepo struct {
	db *sql.DB
}

func NewAccountRepo(db *sql.DB) *AccountRepo {
	return &AccountRepo{db: db}
}

func scanAccount(row *sql.Row) (*domain.Account, error) {
	var (
		a      domain.Account
		avatar sql.NullString
	)
	if err := row.Scan(&a.ID, &a.Nickname, &a.Role, &avatar, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.AvatarURL = avatar.String
	return &a, nil
}

// FindByProviderIdentity returns (nil, nil) when the identity is not linked.
func (r *AccountRepo) FindByProviderIdentity(ctx context.Context, provider, providerSubject string) (*domain.Account, error) {
	const q = `
SELECT a.id, a.nickname, a.role, a.avatar_url, a.created_at
FROM account_links l
JOIN accounts a ON a.id = l.account_id
WHERE l.provider = $1 AND l.provider_subject = $2
LIMIT 1;
`
	acc, err := scanAccount(r.db.QueryRowContext(ctx, q, provider, providerSubject))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.ErrDBUnavailable(err)
	}
	return acc, nil
}

func (r *AccountRepo) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrMissingField("id")
	}
	// refresh tokens carry the id; anything that is not a uuid cannot exist
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	const q = `
SELECT id, nickname, role, avatar_url, created_at
FROM accounts
WHERE id = $1
LIMIT 1;
`
	acc, err := scanAccount(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.ErrDBUnavailable(err)
	}
	return acc, nil
}

func (r *AccountRepo) NicknameTaken(ctx context.Context, nickname string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM accounts WHERE nickname = $1);`

	var taken bool
	if err := r.db.QueryRowContext(ctx, q, nickname).Scan(&taken); err != nil {
		return false, domain.ErrDBUnavailable(err)
	}
	return taken, nil
}

// rowQuerier is satisfied by both *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func normalizeNewAccount(in domain.NewAccount) (domain.NewAccount, error) {
	if strings.TrimSpace(in.Nickname) == "" {
		return in, domain.ErrMissingField("nickname")
	}
	if in.Role == "" {
		in.Role = string(domain.RoleUser)
	}
	if !domain.IsValidRole(in.Role) {
		return in, domain.ErrInvalidField("role", "unknown role")
	}
	return in, nil
}

func validateLink(provider, providerSubject string) error {
	if strings.TrimSpace(provider) == "" {
		return domain.ErrMissingField("provider")
	}
	if strings.TrimSpace(providerSubject) == "" {
		return domain.ErrMissingField("provider_subject")
	}
	return nil
}

func insertAccount(ctx context.Context, q rowQuerier, in domain.NewAccount) (domain.Account, error) {
	const stmt = `
INSERT INTO accounts (id, nickname, role, avatar_url)
VALUES ($1, $2, $3, NULLIF($4, ''))
RETURNING created_at;
`
	acc := domain.Account{
		ID:        uuid.NewString(),
		Nickname:  in.Nickname,
		Role:      in.Role,
		AvatarURL: in.AvatarURL,
	}
	err := q.QueryRowContext(ctx, stmt, acc.ID, acc.Nickname, acc.Role, acc.AvatarURL).Scan(&acc.CreatedAt)
	if err != nil {
		if code, c := pgCode(err); code == pgUniqueViolation && c == constraintNickname {
			return domain.Account{}, domain.ErrNicknameUnavailable()
		}
		return domain.Account{}, domain.ErrDBUnavailable(err)
	}
	return acc, nil
}

func insertLink(ctx context.Context, q rowQuerier, link domain.AccountLink) error {
	const stmt = `
INSERT INTO account_links (account_id, provider, provider_subject, is_primary)
VALUES ($1, $2, $3, $4);
`
	_, err := q.ExecContext(ctx, stmt, link.AccountID, link.Provider, link.ProviderSubject, link.Primary)
	if err == nil {
		return nil
	}
	return mapLinkError(err)
}

func mapLinkError(err error) error {
	switch code, c := pgCode(err); {
	case code == pgUniqueViolation && c == constraintIdentity:
		return domain.ErrIdentityAlreadyLinked()
	case code == pgUniqueViolation && c == constraintPrimary:
		return domain.ErrPrimaryLinkExists()
	case code == pgForeignKeyViolation:
		return domain.ErrUserNotFound()
	case code == pgUniqueViolation:
		return domain.ErrInternal(err)
	default:
		return domain.ErrDBUnavailable(err)
	}
}

func (r *AccountRepo) Create(ctx context.Context, in domain.NewAccount) (domain.Account, error) {
	in, err := normalizeNewAccount(in)
	if err != nil {
		return domain.Account{}, err
	}
	return insertAccount(ctx, r.db, in)
}

func (r *AccountRepo) LinkIdentity(ctx context.Context, link domain.AccountLink) error {
	if err := validateLink(link.Provider, link.ProviderSubject); err != nil {
		return err
	}
	return insertLink(ctx, r.db, link)
}

// CreateLinked inserts the account and its primary link in one transaction.
// A concurrent login that linked the identity first rolls this account back.
func (r *AccountRepo) CreateLinked(ctx context.Context, in domain.NewAccount, provider, providerSubject string) (domain.Account, error) {
	in, err := normalizeNewAccount(in)
	if err != nil {
		return domain.Account{}, err
	}
	if err := validateLink(provider, providerSubject); err != nil {
		return domain.Account{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Account{}, domain.ErrDBUnavailable(err)
	}
	defer func() { _ = tx.Rollback() }()

	acc, err := insertAccount(ctx, tx, in)
	if err != nil {
		return domain.Account{}, err
	}
	if err := insertLink(ctx, tx, domain.AccountLink{
		AccountID:       acc.ID,
		Provider:        provider,
		ProviderSubject: providerSubject,
		Primary:         true,
	}); err != nil {
		return domain.Account{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.Account{}, domain.ErrDBUnavailable(err)
	}
	return acc, nil
}
