// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/tourly/internal/platform/apperr"
	"github.com/taibuivan/tourly/internal/platform/dberr"
	"github.com/taibuivan/tourly/internal/platform/sec"
	"github.com/taibuivan/tourly/pkg/pointer"
)

// # Identity Record Repository

// resourceAccount names the table in client-facing error messages.
const resourceAccount = "Account"

// userColumns is the projection shared by every account lookup.
const userColumns = `
	id, email, COALESCE(passwordhash, ''), role, isverified,
	firstname, lastname, birthday, gender, country, language, profilepicture,
	provider, COALESCE(providersubject, ''),
	profilecompleted, tourcompleted, hidewelcomemodal,
	createdat, updatedat`

// PostgresUserRepository implements [UserRepository] on the users.account table.
//
// Email uniqueness is enforced by the account_email_key constraint; violations
// surface as 409 through [dberr.Wrap].
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PostgreSQL implementation of the [UserRepository].
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// scanUser hydrates a [User] from a row selected with userColumns.
func scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	var role, provider string

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.IsVerified,
		&user.FirstName,
		&user.LastName,
		&user.Birthday,
		&user.Gender,
		&user.Country,
		&user.Language,
		&user.ProfilePicture,
		&provider,
		&user.ProviderSubject,
		&user.ProfileCompleted,
		&user.TourCompleted,
		&user.HideWelcomeModal,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.Role = sec.UserRole(role)
	user.Provider = Provider(provider)
	return user, nil
}

/*
FindByID retrieves an account by its primary key.

Parameters:
  - context: context.Context
  - id: string (UUIDv7)

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) FindByID(context context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users.account WHERE id = $1`

	user, err := scanUser(repository.pool.QueryRow(context, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, resourceAccount)
	}
	return user, nil
}

/*
FindByEmail retrieves an account by its email, compared exactly as stored.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) FindByEmail(context context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users.account WHERE email = $1`

	user, err := scanUser(repository.pool.QueryRow(context, query, email))
	if err != nil {
		return nil, dberr.Wrap(err, resourceAccount)
	}
	return user, nil
}

/*
List returns a window of accounts ordered by creation time, newest first.

Parameters:
  - context: context.Context
  - filter: UserFilter

Returns:
  - []*User: The window
  - int: Total matching accounts
  - error: Database failures
*/
func (repository *PostgresUserRepository) List(context context.Context, filter UserFilter) ([]*User, int, error) {
	where, args := "", []any{}
	if len(filter.Roles) > 0 {
		roles := make([]string, 0, len(filter.Roles))
		for _, role := range filter.Roles {
			roles = append(roles, string(role))
		}
		where = ` WHERE role = ANY($1)`
		args = append(args, roles)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM users.account` + where
	if err := repository.pool.QueryRow(context, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres_user_repo_count_failed: %w", err)
	}

	listQuery := fmt.Sprintf(`SELECT %s FROM users.account%s ORDER BY createdat DESC, id DESC LIMIT $%d OFFSET $%d`,
		userColumns, where, len(args)+1, len(args)+2)

	rows, err := repository.pool.Query(context, listQuery, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_user_repo_list_failed: %w", err)
	}
	defer rows.Close()

	users := make([]*User, 0, filter.Limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres_user_repo_scan_failed: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres_user_repo_list_failed: %w", err)
	}

	return users, total, nil
}

/*
Create persists a new account.

Description: The password hash is stored as NULL for federated accounts; the
table's check constraint rejects any other combination.

Parameters:
  - context: context.Context
  - user: *User

Returns:
  - error: apperr.Conflict on a duplicate email, or database errors
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {
	const query = `
		INSERT INTO users.account (
			id, email, passwordhash, role, isverified,
			firstname, lastname, birthday, gender, country, language, profilepicture,
			provider, providersubject,
			profilecompleted, tourcompleted, hidewelcomemodal,
			createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := repository.pool.Exec(context, query,
		user.ID,
		user.Email,
		pointer.NilIfZero(user.PasswordHash),
		string(user.Role),
		user.IsVerified,
		user.FirstName,
		user.LastName,
		user.Birthday,
		user.Gender,
		user.Country,
		user.Language,
		user.ProfilePicture,
		string(user.Provider),
		pointer.NilIfZero(user.ProviderSubject),
		user.ProfileCompleted,
		user.TourCompleted,
		user.HideWelcomeModal,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return dberr.Wrap(err, resourceAccount)
	}

	return nil
}

/*
Update persists every mutable column except the password hash and the role.

Parameters:
  - context: context.Context
  - user: *User

Returns:
  - error: apperr.NotFound, apperr.Conflict on a duplicate email, or database errors
*/
func (repository *PostgresUserRepository) Update(context context.Context, user *User) error {
	const query = `
		UPDATE users.account SET
			email = $2, isverified = $3,
			firstname = $4, lastname = $5, birthday = $6, gender = $7,
			country = $8, language = $9, profilepicture = $10,
			provider = $11, providersubject = $12,
			profilecompleted = $13, tourcompleted = $14, hidewelcomemodal = $15,
			updatedat = $16
		WHERE id = $1`

	user.UpdatedAt = time.Now().UTC()

	tag, err := repository.pool.Exec(context, query,
		user.ID,
		user.Email,
		user.IsVerified,
		user.FirstName,
		user.LastName,
		user.Birthday,
		user.Gender,
		user.Country,
		user.Language,
		user.ProfilePicture,
		string(user.Provider),
		pointer.NilIfZero(user.ProviderSubject),
		user.ProfileCompleted,
		user.TourCompleted,
		user.HideWelcomeModal,
		user.UpdatedAt,
	)
	if err != nil {
		return dberr.Wrap(err, resourceAccount)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(resourceAccount)
	}

	return nil
}

/*
GrantAdmin promotes the account to admin while it still carries email.

Parameters:
  - context: context.Context
  - userID: string
  - email: string

Returns:
  - error: Database errors
*/
func (repository *PostgresUserRepository) GrantAdmin(context context.Context, userID, email string) error {
	const query = `
		UPDATE users.account
		SET role = 'admin', updatedat = $3
		WHERE id = $1 AND email = $2 AND role <> 'admin'`

	if _, err := repository.pool.Exec(context, query, userID, email, time.Now().UTC()); err != nil {
		return dberr.Wrap(err, resourceAccount)
	}
	return nil
}

/*
UpdatePassword replaces the password hash of a local account.

Parameters:
  - context: context.Context
  - userID: string
  - passwordHash: string

Returns:
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) UpdatePassword(context context.Context, userID, passwordHash string) error {
	const query = `
		UPDATE users.account
		SET passwordhash = $2, updatedat = $3
		WHERE id = $1 AND provider = 'local'`

	tag, err := repository.pool.Exec(context, query, userID, passwordHash, time.Now().UTC())
	if err != nil {
		return dberr.Wrap(err, resourceAccount)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(resourceAccount)
	}

	return nil
}

// # One-Time Codes

/*
AttachCode stores a code digest on the account, replacing any previous code.

Parameters:
  - context: context.Context
  - userID: string
  - code: RecordCode

Returns:
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) AttachCode(context context.Context, userID string, code RecordCode) error {
	const query = `
		UPDATE users.account
		SET otphash = $2, otppurpose = $3, otptarget = $4, otpexpiresat = $5
		WHERE id = $1`

	tag, err := repository.pool.Exec(context, query,
		userID, code.Digest, string(code.Purpose), pointer.NilIfZero(code.Target), code.ExpiresAt,
	)
	if err != nil {
		return dberr.Wrap(err, resourceAccount)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(resourceAccount)
	}

	return nil
}

/*
ConsumeCode clears the attached code in a single conditional UPDATE.

Description: The WHERE clause is the sole arbiter of a code's validity. Two
concurrent submissions of the same code serialize on the row lock; the second
re-evaluates the predicate against the cleared row and matches nothing.

Parameters:
  - context: context.Context
  - userID: string
  - purpose: Purpose
  - digest: string
  - target: string (optional)
  - now: time.Time

Returns:
  - string: The stored target
  - error: apperr.ErrInvalidCode or database errors
*/
func (repository *PostgresUserRepository) ConsumeCode(context context.Context, userID string, purpose Purpose, digest, target string, now time.Time) (string, error) {
	const query = `
		UPDATE users.account AS account
		SET otphash = NULL, otppurpose = NULL, otptarget = NULL, otpexpiresat = NULL
		FROM (SELECT id, otptarget FROM users.account WHERE id = $1 FOR UPDATE) AS previous
		WHERE account.id = previous.id
		  AND account.otphash = $2
		  AND account.otppurpose = $3
		  AND account.otpexpiresat > $4
		  AND ($5::text = '' OR account.otptarget = $5::text)
		RETURNING COALESCE(previous.otptarget, '')`

	var storedTarget string
	err := repository.pool.QueryRow(context, query, userID, digest, string(purpose), now, target).Scan(&storedTarget)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.ErrInvalidCode
		}
		return "", fmt.Errorf("postgres_user_repo_consume_code_failed: %w", err)
	}

	return storedTarget, nil
}

