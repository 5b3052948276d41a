// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account (Postgres) implements the multi-table lifecycle operations.

# Schema Table Mapping
  - users.account: Identity Records.
  - content.itinerary, content.review: Content owned by an account.
  - system.auditlog: Append-only audit trail.
*/
package account

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/tourly/internal/platform/apperr"
	"github.com/taibuivan/tourly/internal/platform/database/schema"
	"github.com/taibuivan/tourly/internal/platform/dberr"
	"github.com/taibuivan/tourly/internal/platform/postgres"
	"github.com/taibuivan/tourly/internal/users/auth"
)

// auditEntityAccount is the entity type of account audit entries.
const auditEntityAccount = "account"

// # Repository Implementations

// PostgresLifecycleRepository implements [LifecycleRepository] using pgx transactions.
type PostgresLifecycleRepository struct {
	pool *pgxpool.Pool
}

// NewLifecycleRepository creates a new Postgres implementation of [LifecycleRepository].
func NewLifecycleRepository(pool *pgxpool.Pool) *PostgresLifecycleRepository {
	return &PostgresLifecycleRepository{pool: pool}
}

/*
Deactivate removes the account and everything it owns in one transaction.

Description: Content rows are deleted before the account so that a failure
never leaves ownerless content behind. The audit row is inserted before the
account row disappears and survives it.

Parameters:
  - context: context.Context
  - user: *auth.User
  - entry: AuditEntry

Returns:
  - *DeactivationSummary: Deleted row counts
  - error: apperr.NotFound or database failures
*/
func (repository *PostgresLifecycleRepository) Deactivate(context context.Context, user *auth.User, entry AuditEntry) (*DeactivationSummary, error) {
	summary := &DeactivationSummary{UserID: user.ID, Email: user.Email, DeactivatedAt: entry.CreatedAt}

	err := postgres.WithTx(context, repository.pool, func(tx pgx.Tx) error {
		itineraryQuery := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`,
			schema.ContentItinerary.Table, schema.ContentItinerary.OwnerID)
		tag, err := tx.Exec(context, itineraryQuery, user.ID)
		if err != nil {
			return fmt.Errorf("delete_itineraries_failed: %w", err)
		}
		summary.ItinerariesDeleted = tag.RowsAffected()

		reviewQuery := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`,
			schema.ContentReview.Table, schema.ContentReview.OwnerID)
		tag, err = tx.Exec(context, reviewQuery, user.ID)
		if err != nil {
			return fmt.Errorf("delete_reviews_failed: %w", err)
		}
		summary.ReviewsDeleted = tag.RowsAffected()

		if err := insertAudit(context, tx, user.ID, entry); err != nil {
			return err
		}

		accountQuery := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`,
			schema.UserAccount.Table, schema.UserAccount.ID)
		tag, err = tx.Exec(context, accountQuery, user.ID)
		if err != nil {
			return fmt.Errorf("delete_account_failed: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("Account")
		}

		return nil
	})
	if err != nil {
		if apperr.IsAppError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("postgres_lifecycle_deactivate_failed: %w", err)
	}

	return summary, nil
}

/*
ChangeRole updates the persisted role and audits the change.

Parameters:
  - context: context.Context
  - user: *auth.User
  - entry: AuditEntry

Returns:
  - error: apperr.NotFound or database failures
*/
func (repository *PostgresLifecycleRepository) ChangeRole(context context.Context, user *auth.User, entry AuditEntry) error {
	return postgres.WithTx(context, repository.pool, func(tx pgx.Tx) error {
		query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = $3 WHERE %s = $1`,
			schema.UserAccount.Table, schema.UserAccount.Role, schema.UserAccount.UpdatedAt, schema.UserAccount.ID)

		user.UpdatedAt = time.Now().UTC()
		tag, err := tx.Exec(context, query, user.ID, string(user.Role), user.UpdatedAt)
		if err != nil {
			return dberr.Wrap(err, "Account")
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("Account")
		}

		return insertAudit(context, tx, user.ID, entry)
	})
}

// insertAudit appends one system.auditlog row inside tx.
func insertAudit(context context.Context, tx pgx.Tx, entityID string, entry AuditEntry) error {
	before, err := json.Marshal(entry.Before)
	if err != nil {
		return fmt.Errorf("encode_audit_failed: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7::text, ''), $8)`,
		schema.SystemAuditLog.Table,
		schema.SystemAuditLog.ID, schema.SystemAuditLog.ActorID, schema.SystemAuditLog.Action,
		schema.SystemAuditLog.EntityType, schema.SystemAuditLog.EntityID, schema.SystemAuditLog.Before,
		schema.SystemAuditLog.IPAddress, schema.SystemAuditLog.CreatedAt,
	)

	_, err = tx.Exec(context, query,
		entry.ID, entry.ActorID, entry.Action, auditEntityAccount, entityID, before, entry.IPAddress, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert_audit_failed: %w", err)
	}
	return nil
}
