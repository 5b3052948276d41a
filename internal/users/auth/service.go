// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/tourly/internal/platform/apperr"
	"github.com/taibuivan/tourly/internal/platform/ctxutil"
	"github.com/taibuivan/tourly/internal/platform/limiter"
	"github.com/taibuivan/tourly/internal/platform/sec"
	"github.com/taibuivan/tourly/pkg/uuid"
)

// # Contracts & Types

// PasswordHasher is the Secret Hasher used for account passwords.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(encodedHash, plain string) bool
}

// TokenIssuer mints session tokens.
type TokenIssuer interface {
	GenerateAccessToken(userID, role, firstName, lastName string) (string, error)
}

// Session is the result of a successful sign-in.
type Session struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// PendingRegistration is the result of a registration request.
type PendingRegistration struct {
	PendingID string
	ExpiresAt time.Time
}

// Service implements the identity lifecycle use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, code handling
// or sign-in logic must be reviewed by the security team.
type Service struct {
	users      UserRepository
	drafts     DraftRepository
	codes      *CodeEngine
	hasher     PasswordHasher
	tokens     TokenIssuer
	federation IdentityVerifier
	attempts   AttemptLimiter
	policy     sec.AccessPolicy
	now        func() time.Time

	// dummyHash is verified against when no account exists, so that unknown
	// emails and wrong passwords take the same time.
	dummyHash string
}

// Dependencies groups the collaborators of [Service].
type Dependencies struct {
	Users      UserRepository
	Drafts     DraftRepository
	Codes      *CodeEngine
	Hasher     PasswordHasher
	Tokens     TokenIssuer
	Federation IdentityVerifier // nil disables Google sign-in
	Attempts   AttemptLimiter
	Policy     sec.AccessPolicy
}

// NewService constructs a new [Service].
func NewService(deps Dependencies) (*Service, error) {
	dummyHash, err := deps.Hasher.Hash(uuid.New())
	if err != nil {
		return nil, fmt.Errorf("auth_service_init_failed: %w", err)
	}

	return &Service{
		users:      deps.Users,
		drafts:     deps.Drafts,
		codes:      deps.Codes,
		hasher:     deps.Hasher,
		tokens:     deps.Tokens,
		federation: deps.Federation,
		attempts:   deps.Attempts,
		policy:     deps.Policy,
		now:        time.Now,
		dummyHash:  dummyHash,
	}, nil
}

// # Registration Flow

// RegisterInput holds the data required to start a registration.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

/*
Register creates an Identity Draft and emails its one-time code.

Description: Rejects emails that already own a record, hashes the password,
replaces any previous draft for the email and delivers the code. No record
exists until the code is verified.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *PendingRegistration: Draft handle
  - error: Conflict (email exists), 429, 503 (delivery) or storage errors
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*PendingRegistration, error) {

	// Fast path only; the unique constraint decides at promotion.
	if err := service.ensureEmailFree(context, input.Email); err != nil {
		return nil, err
	}

	passwordHash, err := service.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	code, err := service.codes.Issue(context, PurposeRegistration, input.Email, input.Email)
	if err != nil {
		return nil, err
	}

	draft := &Draft{
		PendingID:    uuid.New(),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		PasswordHash: passwordHash,
		CodeDigest:   code.Digest,
		ExpiresAt:    code.ExpiresAt,
	}

	if err := service.drafts.Save(context, draft); err != nil {
		return nil, fmt.Errorf("auth_service_register_failed: %w", err)
	}

	if err := service.codes.Deliver(context, PurposeRegistration, input.Email, code); err != nil {
		service.discardDraft(context, input.Email)
		return nil, err
	}

	ctxutil.GetLogger(context).InfoContext(context, "registration_started", slog.String("pending_id", draft.PendingID))
	return &PendingRegistration{PendingID: draft.PendingID, ExpiresAt: draft.ExpiresAt}, nil
}

/*
ResendRegistrationCode replaces the pending draft with a fresh code.

Description: The previous draft is discarded (its code stops working) and a new
one is created with the same names and password hash.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *PendingRegistration: New draft handle
  - error: NotFound (no draft), 429, 503 or storage errors
*/
func (service *Service) ResendRegistrationCode(context context.Context, email string) (*PendingRegistration, error) {
	previous, err := service.drafts.Find(context, email)
	if err != nil {
		return nil, err
	}

	code, err := service.codes.Issue(context, PurposeRegistration, email, email)
	if err != nil {
		return nil, err
	}

	draft := *previous
	draft.CodeDigest = code.Digest
	draft.ExpiresAt = code.ExpiresAt

	if err := service.drafts.Save(context, &draft); err != nil {
		return nil, fmt.Errorf("auth_service_resend_failed: %w", err)
	}

	if err := service.codes.Deliver(context, PurposeRegistration, email, code); err != nil {
		service.restoreDraft(context, previous)
		return nil, err
	}

	return &PendingRegistration{PendingID: draft.PendingID, ExpiresAt: draft.ExpiresAt}, nil
}

/*
VerifyRegistration promotes a draft into a verified Identity Record.

Description: The draft is consumed atomically, so of two concurrent
submissions of the same code only one promotes. The record is created with
isVerified = true; the unique email constraint is the authoritative conflict
signal. A failed attempt leaves the draft untouched, and replaying a code whose
draft was already promoted is an invalid code.

Parameters:
  - context: context.Context
  - email: string
  - presented: string

Returns:
  - *User: The new record
  - error: NotFound (no draft), ErrInvalidCode, Conflict, 429 or storage errors
*/
func (service *Service) VerifyRegistration(context context.Context, email, presented string) (*User, error) {
	var draft *Draft
	err := service.codes.Verify(context, PurposeRegistration, email, email, presented, func(digest string, now time.Time) error {
		consumed, err := service.drafts.Consume(context, email, digest, now)
		if apperr.IsNotFound(err) && apperr.IsConflict(service.ensureEmailFree(context, email)) {
			// The draft was already promoted: a replayed code.
			return apperr.ErrInvalidCode
		}
		if err != nil {
			return err
		}
		draft = consumed
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Second advisory check, right before promotion.
	if err := service.ensureEmailFree(context, email); err != nil {
		return nil, err
	}

	user := &User{
		ID:           uuid.New(),
		Email:        draft.Email,
		PasswordHash: draft.PasswordHash,
		Role:         service.policy.RoleFor(draft.Email, sec.RoleTourist),
		IsVerified:   true,
		FirstName:    draft.FirstName,
		LastName:     draft.LastName,
		Provider:     ProviderLocal,
	}

	if err := service.users.Create(context, user); err != nil {
		if apperr.IsConflict(err) {
			return nil, apperr.Conflict("Email is already registered")
		}

		// Give the user another chance with the same code.
		if restoreErr := service.drafts.Save(context, draft); restoreErr != nil {
			ctxutil.GetLogger(context).WarnContext(context, "draft_restore_failed", slog.Any("error", restoreErr))
		}
		return nil, fmt.Errorf("auth_service_promote_failed: %w", err)
	}

	ctxutil.GetLogger(context).InfoContext(context, "user_registered", slog.String("user_id", user.ID))
	return user, nil
}

// # Authentication Flow

/*
Login proves an email/password pair and issues a session token.

Description: Unknown emails, federated accounts and wrong passwords all return
the same [apperr.ErrInvalidCredentials] after a full hash verification.
Repeated failures for one email are answered with 429.

Parameters:
  - context: context.Context
  - email: string
  - password: string

Returns:
  - *Session: Token and record
  - error: ErrInvalidCredentials, 429 or storage errors
*/
func (service *Service) Login(context context.Context, email, password string) (*Session, error) {
	if err := service.attempts.Check(context, limiter.LoginFailures, email); err != nil {
		return nil, err
	}

	user, err := service.users.FindByEmail(context, email)
	if err != nil && !apperr.IsNotFound(err) {
		return nil, fmt.Errorf("auth_service_login_failed: %w", err)
	}

	passwordHash := service.dummyHash
	if user != nil && user.PasswordHash != "" {
		passwordHash = user.PasswordHash
	}

	if !service.hasher.Verify(passwordHash, password) || user == nil || user.PasswordHash == "" {
		if _, hitErr := service.attempts.Hit(context, limiter.LoginFailures, email); hitErr != nil {
			return nil, fmt.Errorf("auth_service_login_failed: %w", hitErr)
		}
		ctxutil.GetLogger(context).InfoContext(context, "login_failed")
		return nil, apperr.ErrInvalidCredentials
	}

	if err := service.attempts.Reset(context, limiter.LoginFailures, email); err != nil {
		ctxutil.GetLogger(context).WarnContext(context, "login_failure_reset_failed", slog.Any("error", err))
	}

	return service.issueSession(context, user)
}

/*
GoogleLogin signs in with a Google ID token, creating or linking the account.

Description: Without a record for the verified email, a federated record is
created (no password, role tourist or admin for the super-admin). An existing
federated record has its avatar and provider subject resynchronized. An
existing local record is signed into as-is and marked verified. The super-admin
grant is re-applied; an admin is never downgraded.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - *Session: Token and record
  - error: ErrFederationFailed, 503 (disabled) or storage errors
*/
func (service *Service) GoogleLogin(context context.Context, token string) (*Session, error) {
	if service.federation == nil {
		return nil, apperr.ServiceUnavailable("Google sign-in is not configured")
	}

	identity, err := service.federation.Verify(context, token)
	if err != nil {
		ctxutil.GetLogger(context).InfoContext(context, "federation_rejected", slog.Any("error", err))
		return nil, apperr.ErrFederationFailed
	}

	user, err := service.users.FindByEmail(context, identity.Email)
	switch {
	case apperr.IsNotFound(err):
		user, err = service.createFederated(context, identity)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("auth_service_google_login_failed: %w", err)
	default:
		if err := service.syncFederated(context, user, identity); err != nil {
			return nil, err
		}
	}

	return service.issueSession(context, user)
}

// createFederated creates the record of a first-time federated sign-in.
// A concurrent creation for the same email resolves to the winner's record.
func (service *Service) createFederated(context context.Context, identity *FederatedIdentity) (*User, error) {
	user := &User{
		ID:              uuid.New(),
		Email:           identity.Email,
		Role:            service.policy.RoleFor(identity.Email, sec.RoleTourist),
		IsVerified:      true,
		FirstName:       identity.GivenName,
		LastName:        identity.FamilyName,
		ProfilePicture:  identity.AvatarURL,
		Provider:        identity.Provider,
		ProviderSubject: identity.Subject,
	}

	err := service.users.Create(context, user)
	if apperr.IsConflict(err) {
		existing, findErr := service.users.FindByEmail(context, identity.Email)
		if findErr != nil {
			return nil, fmt.Errorf("auth_service_google_login_failed: %w", findErr)
		}
		return existing, service.syncFederated(context, existing, identity)
	}
	if err != nil {
		return nil, fmt.Errorf("auth_service_google_create_failed: %w", err)
	}

	ctxutil.GetLogger(context).InfoContext(context, "user_registered",
		slog.String("user_id", user.ID),
		slog.String("provider", string(user.Provider)),
	)
	return user, nil
}

// syncFederated refreshes provider-owned attributes on an existing record.
func (service *Service) syncFederated(context context.Context, user *User, identity *FederatedIdentity) error {
	changed := false

	if user.Provider == identity.Provider {
		if identity.AvatarURL != "" && user.ProfilePicture != identity.AvatarURL {
			user.ProfilePicture = identity.AvatarURL
			changed = true
		}
		if user.ProviderSubject != identity.Subject {
			user.ProviderSubject = identity.Subject
			changed = true
		}
	}

	if !user.IsVerified {
		user.IsVerified = true
		changed = true
	}

	if changed {
		if err := service.users.Update(context, user); err != nil {
			return fmt.Errorf("auth_service_google_sync_failed: %w", err)
		}
	}
	return SyncSuperAdmin(context, service.users, service.policy, user)
}

// issueSession mints the token for a proven record.
func (service *Service) issueSession(context context.Context, user *User) (*Session, error) {
	token, err := service.tokens.GenerateAccessToken(user.ID, string(user.Role), user.FirstName, user.LastName)
	if err != nil {
		return nil, fmt.Errorf("auth_service_token_generation_failed: %w", err)
	}

	ctxutil.GetLogger(context).InfoContext(context, "user_signed_in",
		slog.String("user_id", user.ID),
		slog.String("provider", string(user.Provider)),
	)
	return &Session{Token: token, User: user}, nil
}

// # Password Recovery

/*
SendPasswordResetCode attaches a reset code to the account and emails it.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - error: NotFound (unknown email), ValidationError (federated), 429, 503 or storage errors
*/
func (service *Service) SendPasswordResetCode(context context.Context, email string) error {
	user, err := service.localAccount(context, email)
	if err != nil {
		return err
	}

	code, err := service.codes.Issue(context, PurposePasswordReset, user.ID, email)
	if err != nil {
		return err
	}

	if err := service.users.AttachCode(context, user.ID, RecordCode{
		Purpose:   PurposePasswordReset,
		Digest:    code.Digest,
		ExpiresAt: code.ExpiresAt,
	}); err != nil {
		return fmt.Errorf("auth_service_reset_request_failed: %w", err)
	}

	return service.codes.Deliver(context, PurposePasswordReset, user.Email, code)
}

/*
ResetPassword replaces the password of the account located by email.

Parameters:
  - context: context.Context
  - email: string
  - presented: string
  - newPassword: string

Returns:
  - error: NotFound, ValidationError (federated), ErrInvalidCode, 429 or storage errors
*/
func (service *Service) ResetPassword(context context.Context, email, presented, newPassword string) error {
	user, err := service.localAccount(context, email)
	if err != nil {
		return err
	}

	err = service.codes.Verify(context, PurposePasswordReset, user.ID, email, presented, func(digest string, now time.Time) error {
		_, err := service.users.ConsumeCode(context, user.ID, PurposePasswordReset, digest, "", now)
		return err
	})
	if err != nil {
		return err
	}

	passwordHash, err := service.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	if err := service.users.UpdatePassword(context, user.ID, passwordHash); err != nil {
		return fmt.Errorf("auth_service_reset_password_failed: %w", err)
	}

	// A fresh password clears any lockout for the account.
	if err := service.attempts.Reset(context, limiter.LoginFailures, email); err != nil {
		ctxutil.GetLogger(context).WarnContext(context, "login_failure_reset_failed", slog.Any("error", err))
	}

	ctxutil.GetLogger(context).InfoContext(context, "password_reset", slog.String("user_id", user.ID))
	return nil
}

// localAccount loads the record for email and rejects federated accounts.
func (service *Service) localAccount(context context.Context, email string) (*User, error) {
	user, err := service.users.FindByEmail(context, email)
	if err != nil {
		return nil, err
	}
	if user.IsFederated() {
		return nil, apperr.ValidationError("This account signs in with Google and has no password")
	}
	return user, nil
}

// # Email Change

/*
SendEmailVerificationCode sends a code to targetEmail for the authenticated account.

Description: The target must not belong to another account; this is checked
before any code is generated. The code is bound to the target, so it can only
confirm the address it was delivered to.

Parameters:
  - context: context.Context
  - userID: string
  - targetEmail: string

Returns:
  - error: ValidationError (email taken), NotFound, 429, 503 or storage errors
*/
func (service *Service) SendEmailVerificationCode(context context.Context, userID, targetEmail string) error {
	owner, err := service.users.FindByEmail(context, targetEmail)
	if err != nil && !apperr.IsNotFound(err) {
		return fmt.Errorf("auth_service_email_check_failed: %w", err)
	}
	if owner != nil && owner.ID != userID {
		return errEmailTaken()
	}

	code, err := service.codes.Issue(context, PurposeEmailChange, userID, userID)
	if err != nil {
		return err
	}

	if err := service.users.AttachCode(context, userID, RecordCode{
		Purpose:   PurposeEmailChange,
		Digest:    code.Digest,
		Target:    targetEmail,
		ExpiresAt: code.ExpiresAt,
	}); err != nil {
		return fmt.Errorf("auth_service_email_code_failed: %w", err)
	}

	return service.codes.Deliver(context, PurposeEmailChange, targetEmail, code)
}

/*
VerifyEmailCode confirms the address the code was sent to for the authenticated account.

Description: When newEmail is given it must equal the address the code was
sent to. On success that address becomes the account email (if different) and
isVerified becomes true. The super-admin grant is synchronized on the way.

Parameters:
  - context: context.Context
  - userID: string
  - presented: string
  - newEmail: string (optional)

Returns:
  - *User: Updated record
  - error: ErrInvalidCode, ValidationError (email taken), 429 or storage errors
*/
func (service *Service) VerifyEmailCode(context context.Context, userID, presented, newEmail string) (*User, error) {
	var target string
	err := service.codes.Verify(context, PurposeEmailChange, userID, userID, presented, func(digest string, now time.Time) error {
		stored, err := service.users.ConsumeCode(context, userID, PurposeEmailChange, digest, newEmail, now)
		target = stored
		return err
	})
	if err != nil {
		return nil, err
	}

	user, err := service.users.FindByID(context, userID)
	if err != nil {
		return nil, err
	}

	previousEmail := user.Email
	if target != "" {
		user.Email = target
	}
	user.IsVerified = true

	if err := service.users.Update(context, user); err != nil {
		if apperr.IsConflict(err) {
			return nil, errEmailTaken()
		}
		return nil, fmt.Errorf("auth_service_email_change_failed: %w", err)
	}
	if err := SyncSuperAdmin(context, service.users, service.policy, user); err != nil {
		return nil, err
	}

	ctxutil.GetLogger(context).InfoContext(context, "email_verified",
		slog.String("user_id", user.ID),
		slog.Bool("changed", previousEmail != user.Email),
	)
	return user, nil
}

// # Helpers

// ensureEmailFree fails with 409 when a record already owns the email.
func (service *Service) ensureEmailFree(context context.Context, email string) error {
	_, err := service.users.FindByEmail(context, email)
	if err == nil {
		return apperr.Conflict("Email is already registered")
	}
	if !apperr.IsNotFound(err) {
		return fmt.Errorf("auth_service_email_check_failed: %w", err)
	}
	return nil
}

// SyncSuperAdmin grants the admin role to a record carrying the super-admin email.
func SyncSuperAdmin(context context.Context, users UserRepository, policy sec.AccessPolicy, user *User) error {
	if !policy.IsSuperAdmin(user.Email) || user.Role == sec.RoleAdmin {
		return nil
	}
	if err := users.GrantAdmin(context, user.ID, user.Email); err != nil {
		return fmt.Errorf("grant_super_admin_failed: %w", err)
	}
	user.Role = sec.RoleAdmin
	return nil
}

// discardDraft removes a draft whose code could not be delivered.
func (service *Service) discardDraft(context context.Context, email string) {
	if err := service.drafts.Delete(context, email); err != nil {
		ctxutil.GetLogger(context).WarnContext(context, "draft_discard_failed", slog.Any("error", err))
	}
}

// restoreDraft puts back the draft an undelivered resend replaced. A draft that
// expired meanwhile is discarded instead.
func (service *Service) restoreDraft(context context.Context, previous *Draft) {
	if err := service.drafts.Save(context, previous); err != nil {
		ctxutil.GetLogger(context).WarnContext(context, "draft_restore_failed", slog.Any("error", err))
		service.discardDraft(context, previous.Email)
	}
}

func errEmailTaken() error {
	return apperr.ValidationError("Email is already in use", apperr.FieldError{
		Field:   FieldEmail,
		Message: "Email is already in use by another account",
	})
}

// # Principal Resolution

// PrincipalResolver loads the current principal for a verified session token.
// It performs no writes.
type PrincipalResolver struct {
	users UserRepository
}

// NewPrincipalResolver creates a resolver over the record store.
func NewPrincipalResolver(users UserRepository) *PrincipalResolver {
	return &PrincipalResolver{users: users}
}

// LoadPrincipal implements the session middleware's loader.
func (resolver *PrincipalResolver) LoadPrincipal(context context.Context, userID string) (*sec.Principal, error) {
	user, err := resolver.users.FindByID(context, userID)
	if err != nil {
		return nil, err
	}
	return user.Principal(), nil
}
