// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package profile

import (
	"context"
	"fmt"
	"time"

	"github.com/taibuivan/unpuff/internal/platform/database/schema"
	"github.com/taibuivan/unpuff/internal/platform/dberr"
	"github.com/taibuivan/unpuff/internal/platform/postgres"
)

// PostgresRepository implements [Repository] on the users.profile table.
type PostgresRepository struct {
	db postgres.DB
}

// NewPostgresRepository creates a repository on db (a pool or a mock).
func NewPostgresRepository(db postgres.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

/*
FindByAccountID retrieves the profile of one account.

Returns:
  - *Profile: Hydrated profile
  - error: apperr.NotFound or database execution failure
*/
func (repository *PostgresRepository) FindByAccountID(ctx context.Context, accountID string) (*Profile, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s
		FROM %s
		WHERE %s = $1`,
		schema.UserProfile.Identity, schema.UserProfile.Triggers,
		schema.UserProfile.DailyBaseline, schema.UserProfile.DailyGoal,
		schema.UserProfile.Table, schema.UserProfile.AccountID,
	)

	var triggers []string
	p := &Profile{}
	err := repository.db.QueryRow(ctx, query, accountID).Scan(
		&p.Identity,
		&triggers,
		&p.DailyBaseline,
		&p.DailyGoal,
	)
	if err != nil {
		return nil, dberr.Wrap(err, "Profile", "postgres_profile_repo_find_failed")
	}

	p.Triggers = make([]Trigger, 0, len(triggers))
	for _, trigger := range triggers {
		p.Triggers = append(p.Triggers, Trigger(trigger))
	}

	return p, nil
}

// Upsert creates or replaces the profile of one account.
func (repository *PostgresRepository) Upsert(ctx context.Context, accountID string, p Profile) error {
	query := fmt.Sprintf(`
		INSERT INTO %[1]s (%[2]s, %[3]s, %[4]s, %[5]s, %[6]s, %[7]s)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (%[2]s) DO UPDATE
		SET %[3]s = EXCLUDED.%[3]s, %[4]s = EXCLUDED.%[4]s, %[5]s = EXCLUDED.%[5]s,
		    %[6]s = EXCLUDED.%[6]s, %[7]s = EXCLUDED.%[7]s`,
		schema.UserProfile.Table, schema.UserProfile.AccountID,
		schema.UserProfile.Identity, schema.UserProfile.Triggers,
		schema.UserProfile.DailyBaseline, schema.UserProfile.DailyGoal,
		schema.UserProfile.UpdatedAt,
	)

	_, err := repository.db.Exec(ctx, query,
		accountID,
		p.Identity,
		triggerStrings(p.Triggers),
		p.DailyBaseline,
		p.DailyGoal,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres_profile_repo_upsert_failed: %w", err)
	}

	return nil
}

// Delete removes the profile of one account. Deleting nothing is not an error.
func (repository *PostgresRepository) Delete(ctx context.Context, accountID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`,
		schema.UserProfile.Table, schema.UserProfile.AccountID)

	if _, err := repository.db.Exec(ctx, query, accountID); err != nil {
		return fmt.Errorf("postgres_profile_repo_delete_failed: %w", err)
	}

	return nil
}
