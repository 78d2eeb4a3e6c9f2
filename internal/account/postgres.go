// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/taibuivan/unpuff/internal/platform/apperr"
	"github.com/taibuivan/unpuff/internal/platform/database/schema"
	"github.com/taibuivan/unpuff/internal/platform/dberr"
	"github.com/taibuivan/unpuff/internal/platform/postgres"
	"github.com/taibuivan/unpuff/pkg/pointer"
)

// PostgresRepository implements [Repository] on the users.account table.
type PostgresRepository struct {
	db postgres.DB
}

// NewPostgresRepository creates a repository on db (a pool or a mock).
func NewPostgresRepository(db postgres.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// selectAccount is the shared projection, in [schema.UserAccountTable.Columns] order.
var selectAccount = fmt.Sprintf(`SELECT %s FROM %s`,
	strings.Join(schema.UserAccount.Columns(), ", "), schema.UserAccount.Table)

// FindByID retrieves an account by its primary key.
func (repository *PostgresRepository) FindByID(ctx context.Context, id string) (*Account, error) {
	query := fmt.Sprintf(`%s WHERE %s = $1`, selectAccount, schema.UserAccount.ID)
	return repository.findOne(ctx, "postgres_account_repo_find_by_id_failed", query, id)
}

// FindByUsername retrieves an account by username, ignoring case.
func (repository *PostgresRepository) FindByUsername(ctx context.Context, username string) (*Account, error) {
	query := fmt.Sprintf(`%s WHERE LOWER(%s) = LOWER($1)`, selectAccount, schema.UserAccount.Username)
	return repository.findOne(ctx, "postgres_account_repo_find_by_username_failed", query, username)
}

// FindByEmail retrieves an account by its registered email address.
func (repository *PostgresRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	query := fmt.Sprintf(`%s WHERE %s = $1`, selectAccount, schema.UserAccount.Email)
	return repository.findOne(ctx, "postgres_account_repo_find_by_email_failed", query, strings.ToLower(email))
}

// FindByProvider retrieves the account linked to a provider identity.
func (repository *PostgresRepository) FindByProvider(ctx context.Context, provider, providerUserID string) (*Account, error) {
	query := fmt.Sprintf(`%s WHERE %s = $1 AND %s = $2`,
		selectAccount, schema.UserAccount.Provider, schema.UserAccount.ProviderUserID)
	return repository.findOne(ctx, "postgres_account_repo_find_by_provider_failed", query, provider, providerUserID)
}

/*
Create persists a new account record.

Description: Unique violations on username, email or provider identity are
reported as ACCOUNT_EXISTS so that a signup racing another one still gets the
right error.
*/
func (repository *PostgresRepository) Create(ctx context.Context, account *Account) error {
	columns := schema.UserAccount.Columns()
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		schema.UserAccount.Table, strings.Join(columns, ", "))

	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	account.Email = strings.ToLower(account.Email)

	_, err := repository.db.Exec(ctx, query,
		account.ID,
		account.Username,
		nullable(account.Email),
		nullable(account.PasswordHash),
		account.DisplayName,
		account.Provider,
		nullable(account.ProviderUserID),
		account.IsVerified,
		account.CreatedAt,
		account.UpdatedAt,
	)

	switch {
	case err == nil:
		return nil
	case dberr.IsUniqueViolation(err, schema.UserAccountUsernameKey):
		return apperr.AccountExists("Username is already taken")
	case dberr.IsUniqueViolation(err, schema.UserAccountEmailKey):
		return apperr.AccountExists("Email is already registered")
	case dberr.IsUniqueViolation(err, ""):
		return apperr.AccountExists("Account already exists")
	}

	return fmt.Errorf("postgres_account_repo_create_failed: %w", err)
}

// MarkVerified flags the account's email as confirmed.
func (repository *PostgresRepository) MarkVerified(ctx context.Context, id string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = TRUE, %s = $2 WHERE %s = $1`,
		schema.UserAccount.Table, schema.UserAccount.IsVerified,
		schema.UserAccount.UpdatedAt, schema.UserAccount.ID)

	tag, err := repository.db.Exec(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("postgres_account_repo_mark_verified_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Account")
	}

	return nil
}

// LinkProvider attaches a provider identity to an existing account.
func (repository *PostgresRepository) LinkProvider(ctx context.Context, id, provider, providerUserID string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = $3, %s = TRUE, %s = $4 WHERE %s = $1`,
		schema.UserAccount.Table, schema.UserAccount.Provider, schema.UserAccount.ProviderUserID,
		schema.UserAccount.IsVerified, schema.UserAccount.UpdatedAt, schema.UserAccount.ID)

	tag, err := repository.db.Exec(ctx, query, id, provider, providerUserID, time.Now().UTC())
	switch {
	case dberr.IsUniqueViolation(err, schema.UserAccountProviderKey):
		return apperr.AccountExists("This sign-in is already linked to another account")
	case err != nil:
		return fmt.Errorf("postgres_account_repo_link_provider_failed: %w", err)
	case tag.RowsAffected() == 0:
		return apperr.NotFound("Account")
	}

	return nil
}

// # Helpers

func (repository *PostgresRepository) findOne(ctx context.Context, action, query string, args ...any) (*Account, error) {
	var (
		account        Account
		email          *string
		passwordHash   *string
		providerUserID *string
	)

	err := repository.db.QueryRow(ctx, query, args...).Scan(
		&account.ID,
		&account.Username,
		&email,
		&passwordHash,
		&account.DisplayName,
		&account.Provider,
		&providerUserID,
		&account.IsVerified,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, dberr.Wrap(err, "Account", action)
	}

	account.Email = pointer.Val(email)
	account.PasswordHash = pointer.Val(passwordHash)
	account.ProviderUserID = pointer.Val(providerUserID)

	return &account, nil
}

// nullable maps "" to SQL NULL so optional unique columns do not collide.
func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return pointer.To(value)
}
