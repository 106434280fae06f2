package postgres

import (
	"context"
	"database/sql"
)

// Constraint names are matched when mapping unique violations.
const (
	constraintNickname = "accounts_nickname_key"
	constraintIdentity = "account_links_identity_key"
	constraintPrimary  = "account_links_one_primary"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
  id UUID PRIMARY KEY,
  nickname TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'user',
  avatar_url TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  CONSTRAINT accounts_nickname_key UNIQUE (nickname)
);`,
	`CREATE TABLE IF NOT EXISTS account_links (
  account_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
  provider TEXT NOT NULL,
  provider_subject TEXT NOT NULL,
  is_primary BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  CONSTRAINT account_links_identity_key UNIQUE (provider, provider_subject)
);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS account_links_one_primary ON account_links (account_id) WHERE is_primary;`,
	`CREATE TABLE IF NOT EXISTS account_stats (
  account_id UUID PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
  solved_count INT NOT NULL DEFAULT 0,
  points INT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`,
}

// EnsureSchema creates the account tables if missing. Idempotent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
