// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account handles what a signed-in user can do with their own record.

It covers reading and editing the account, profile completion, UI preferences,
deactivation, and the admin views over other accounts.

# Architecture

  - Entities: DeactivationSummary, AuditEntry.
  - Domain: This package depends on the auth package for the User entity and
    its record store.
  - Lifecycle: Deactivation removes owned content before the record, inside
    one database transaction.
*/
package account

import (
	"context"
	"time"

	"github.com/taibuivan/tourly/internal/users/auth"
)

// # Domain Entities

// DeactivationSummary reports what a deactivation removed.
type DeactivationSummary struct {
	UserID             string    `json:"userId"`
	Email              string    `json:"email"`
	ItinerariesDeleted int64     `json:"itinerariesDeleted"`
	ReviewsDeleted     int64     `json:"reviewsDeleted"`
	DeactivatedAt      time.Time `json:"deactivatedAt"`
}

// AuditEntry is the system.auditlog row written alongside a lifecycle change.
type AuditEntry struct {
	ID        string
	ActorID   string
	Action    string
	Before    map[string]any
	IPAddress string
	CreatedAt time.Time
}

// Audit actions.
const (
	ActionAccountDeactivated = "account.deactivated"
	ActionRoleChanged        = "account.role_changed"
)

// Gender values accepted on the profile.
var Genders = []string{"male", "female", "other", "prefer_not_to_say"}

// # Repository Contracts

// LifecycleRepository defines the multi-table operations on an account.
type LifecycleRepository interface {
	/*
		Deactivate deletes the user's content, records the audit entry and
		deletes the account, all or nothing.

		Parameters:
		  - context: context.Context
		  - user: *auth.User
		  - entry: AuditEntry

		Returns:
		  - *DeactivationSummary: Counts of removed rows
		  - error: apperr.NotFound or storage failures
	*/
	Deactivate(context context.Context, user *auth.User, entry AuditEntry) (*DeactivationSummary, error)

	/*
		ChangeRole persists a new role and its audit entry together.

		Parameters:
		  - context: context.Context
		  - user: *auth.User (Role already set to the new value)
		  - entry: AuditEntry

		Returns:
		  - error: apperr.NotFound or storage failures
	*/
	ChangeRole(context context.Context, user *auth.User, entry AuditEntry) error
}
