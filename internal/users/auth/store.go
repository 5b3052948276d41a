// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"

	"github.com/taibuivan/tourly/internal/platform/sec"
)

// # Identity Record Access

// UserRepository defines the data access contract for Identity Records.
//
// Implementations must enforce email uniqueness themselves and report a
// violation as a 409 [apperr.AppError]; callers treat their own pre-checks as
// advisory only.
type UserRepository interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		FindByEmail returns the account with the given email (exact match).

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database failures
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		Create persists a brand-new account.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: apperr.Conflict when the email is taken, or persistence failures
	*/
	Create(context context.Context, user *User) error

	/*
		Update persists every mutable field except the password hash and the role.

		Description: The role is written only by [UserRepository.GrantAdmin] and
		the audited role change, so a stale read can never restore a revoked role.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: apperr.NotFound, apperr.Conflict (email taken) or persistence failures
	*/
	Update(context context.Context, user *User) error

	/*
		GrantAdmin sets the admin role when the record still carries email.

		Description: A no-op when the email no longer matches or the role is
		already admin.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - email: string

		Returns:
		  - error: Persistence failures
	*/
	GrantAdmin(context context.Context, userID, email string) error

	/*
		UpdatePassword replaces only the password hash.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - passwordHash: string

		Returns:
		  - error: apperr.NotFound or persistence failures
	*/
	UpdatePassword(context context.Context, userID, passwordHash string) error

	/*
		AttachCode stores a one-time code on the account, replacing any previous one.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - code: RecordCode

		Returns:
		  - error: apperr.NotFound or persistence failures
	*/
	AttachCode(context context.Context, userID string, code RecordCode) error

	/*
		ConsumeCode atomically clears the attached code if it matches.

		Description: The code matches when purpose and digest are equal, the
		expiry is after now, and (when target is not empty) the stored target
		equals target. Of two concurrent calls with the same code exactly one
		succeeds. A failed call leaves the stored code untouched.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - purpose: Purpose
		  - digest: string
		  - target: string
		  - now: time.Time

		Returns:
		  - string: The stored target ("" outside email change)
		  - error: apperr.ErrInvalidCode or persistence failures
	*/
	ConsumeCode(context context.Context, userID string, purpose Purpose, digest, target string, now time.Time) (string, error)
}

// # Account Directory

// UserFilter narrows and windows an account listing.
type UserFilter struct {
	// Roles keeps accounts holding one of these roles. Empty keeps all.
	Roles []sec.UserRole

	Limit  int
	Offset int
}

// UserDirectory lists Identity Records for administrators.
type UserDirectory interface {
	/*
		List returns one window of accounts, newest first, and the total number
		of accounts matching the filter.

		Parameters:
		  - context: context.Context
		  - filter: UserFilter

		Returns:
		  - []*User: The requested window
		  - int: Total matches across all windows
		  - error: Database failures
	*/
	List(context context.Context, filter UserFilter) ([]*User, int, error)
}

// # Identity Draft Access

// DraftRepository defines the data access contract for Identity Drafts.
//
// There is at most one draft per email; a draft disappears on its own once its
// code has expired.
type DraftRepository interface {

	/*
		Save stores the draft, discarding any previous draft for the same email.

		Parameters:
		  - context: context.Context
		  - draft: *Draft

		Returns:
		  - error: Storage failures
	*/
	Save(context context.Context, draft *Draft) error

	/*
		Find returns the pending draft for an email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *Draft: Pending registration
		  - error: apperr.NotFound or storage failures
	*/
	Find(context context.Context, email string) (*Draft, error)

	/*
		Consume atomically removes and returns the draft when digest matches
		and the code has not expired at now. A failed attempt leaves the draft
		untouched.

		Parameters:
		  - context: context.Context
		  - email: string
		  - digest: string
		  - now: time.Time

		Returns:
		  - *Draft: The removed draft
		  - error: apperr.NotFound (no draft), apperr.ErrInvalidCode or storage failures
	*/
	Consume(context context.Context, email, digest string, now time.Time) (*Draft, error)

	/*
		Delete removes the draft for an email, if any.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - error: Storage failures
	*/
	Delete(context context.Context, email string) error
}
