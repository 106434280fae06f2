package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/holdfast/auth-service/internal/domain"
)

// StatRepo implements auth.StatStore.
type StatRepo struct {
	db *sql.DB
}

func NewStatRepo(db *sql.DB) *StatRepo {
	return &StatRepo{db: db}
}

// Initialize inserts a zeroed stats row; an existing row is left alone.
func (r *StatRepo) Initialize(ctx context.Context, accountID string) error {
	if strings.TrimSpace(accountID) == "" {
		return domain.ErrMissingField("account_id")
	}

	const q = `
INSERT INTO account_stats (account_id)
VALUES ($1)
ON CONFLICT (account_id) DO NOTHING;
`
	if _, err := r.db.ExecContext(ctx, q, accountID); err != nil {
		if code, _ := pgCode(err); code == pgForeignKeyViolation {
			return domain.ErrUserNotFound()
		}
		return domain.ErrDBUnavailable(err)
	}
	return nil
}
