// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/tourly/internal/platform/apperr"
	"github.com/taibuivan/tourly/internal/platform/constants"
	"github.com/taibuivan/tourly/internal/platform/sec"
	"github.com/taibuivan/tourly/internal/users/auth"
	"github.com/taibuivan/tourly/pkg/pagination"
	"github.com/taibuivan/tourly/pkg/uuid"
)

// # Service Layer

// Service orchestrates account management for the authenticated user.
//
// Every write passes through [Service.save], which re-applies the super-admin
// grant so that the configured email always persists the admin role. Other
// role changes go through [Service.ChangeRole] only.
type Service struct {
	userRepository      auth.UserRepository
	lifecycleRepository LifecycleRepository
	directory           auth.UserDirectory
	hasher              auth.PasswordHasher
	policy              sec.AccessPolicy
	logger              *slog.Logger
	now                 func() time.Time
}

// NewService constructs a new [Service] with its repository dependencies.
func NewService(
	userRepo auth.UserRepository,
	lifecycleRepo LifecycleRepository,
	directory auth.UserDirectory,
	hasher auth.PasswordHasher,
	policy sec.AccessPolicy,
	logger *slog.Logger,
) *Service {
	return &Service{
		userRepository:      userRepo,
		lifecycleRepository: lifecycleRepo,
		directory:           directory,
		hasher:              hasher,
		policy:              policy,
		logger:              logger,
		now:                 time.Now,
	}
}

// # Account

/*
GetMe retrieves the full private record of the authenticated user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *auth.User: Record without secrets
  - error: Not found or execution failures
*/
func (service *Service) GetMe(context context.Context, userID string) (*auth.User, error) {
	return service.userRepository.FindByID(context, userID)
}

// UpdateAccountInput holds the optional account-level changes.
type UpdateAccountInput struct {
	FirstName *string
	LastName  *string
	Email     *string
	Password  *string
}

/*
UpdateAccount applies names, email and password changes.

Description: A new email must not belong to another account and resets
isVerified to false until it is confirmed through the email verification flow.
Federated accounts have no password and cannot set one. A new password is
hashed before anything is written.

Parameters:
  - context: context.Context
  - userID: string
  - input: UpdateAccountInput

Returns:
  - *auth.User: The updated record
  - error: Conflict (email taken), ValidationError (federated password) or storage failures
*/
func (service *Service) UpdateAccount(context context.Context, userID string, input UpdateAccountInput) (*auth.User, error) {
	user, err := service.userRepository.FindByID(context, userID)
	if err != nil {
		return nil, err
	}

	var passwordHash string
	if input.Password != nil {
		if user.IsFederated() {
			return nil, apperr.ValidationError("This account signs in with Google and has no password")
		}
		if passwordHash, err = service.hasher.Hash(*input.Password); err != nil {
			return nil, fmt.Errorf("account_service_hash_failed: %w", err)
		}
	}

	if input.FirstName != nil {
		user.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		user.LastName = *input.LastName
	}

	if input.Email != nil && *input.Email != user.Email {
		owner, err := service.userRepository.FindByEmail(context, *input.Email)
		if err != nil && !apperr.IsNotFound(err) {
			return nil, fmt.Errorf("account_service_email_check_failed: %w", err)
		}
		if owner != nil {
			return nil, apperr.Conflict("Email is already in use")
		}
		user.Email = *input.Email
		user.IsVerified = false
	}

	if err := service.save(context, user); err != nil {
		if apperr.IsConflict(err) {
			return nil, apperr.Conflict("Email is already in use")
		}
		return nil, err
	}

	if passwordHash != "" {
		if err := service.userRepository.UpdatePassword(context, user.ID, passwordHash); err != nil {
			return nil, fmt.Errorf("account_service_update_password_failed: %w", err)
		}
		service.logger.Info("user_password_changed", slog.String("user_id", user.ID))
	}

	service.logger.Info("user_account_updated", slog.String("user_id", user.ID))
	return user, nil
}

// # Profile

// UpdateProfileInput defines the mutable subset of profile fields.
type UpdateProfileInput struct {
	FirstName      *string
	LastName       *string
	Birthday       *time.Time
	Gender         *string
	Country        *string
	Language       *string
	ProfilePicture *string
}

/*
UpdateProfile applies a partial set of profile changes.

Description: The completion flag is left alone; a partially filled profile
stays incomplete until [Service.CompleteProfile] is called.

Parameters:
  - context: context.Context
  - userID: string
  - input: UpdateProfileInput

Returns:
  - *auth.User: The updated record
  - error: Update or storage failures
*/
func (service *Service) UpdateProfile(context context.Context, userID string, input UpdateProfileInput) (*auth.User, error) {
	user, err := service.userRepository.FindByID(context, userID)
	if err != nil {
		return nil, err
	}

	// Apply delta updates
	if input.FirstName != nil {
		user.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		user.LastName = *input.LastName
	}
	if input.Birthday != nil {
		birthday := *input.Birthday
		user.Birthday = &birthday
	}
	if input.Gender != nil {
		user.Gender = *input.Gender
	}
	if input.Country != nil {
		user.Country = *input.Country
	}
	if input.Language != nil {
		user.Language = *input.Language
	}
	if input.ProfilePicture != nil {
		user.ProfilePicture = *input.ProfilePicture
	}

	if err := service.save(context, user); err != nil {
		return nil, err
	}

	service.logger.Info("user_profile_updated", slog.String("user_id", userID))
	return user, nil
}

/*
CompleteProfile marks the profile as complete once every required field is set.

Description: Idempotent. Calling it on a completed profile returns the record
unchanged without writing.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *auth.User: The record with profileCompleted = true
  - error: ValidationError listing the missing fields, or storage failures
*/
func (service *Service) CompleteProfile(context context.Context, userID string) (*auth.User, error) {
	user, err := service.userRepository.FindByID(context, userID)
	if err != nil {
		return nil, err
	}

	if user.ProfileCompleted {
		return user, nil
	}

	if missing := user.MissingProfileFields(); len(missing) > 0 {
		details := make([]apperr.FieldError, 0, len(missing))
		for _, field := range missing {
			details = append(details, apperr.FieldError{Field: field, Message: "This field is required"})
		}
		return nil, apperr.ValidationError("Profile is incomplete", details...)
	}

	user.ProfileCompleted = true
	if err := service.save(context, user); err != nil {
		return nil, err
	}

	service.logger.Info("user_profile_completed", slog.String("user_id", userID))
	return user, nil
}

// PreferencesInput holds the UI flags a user can toggle.
type PreferencesInput struct {
	TourCompleted    *bool
	HideWelcomeModal *bool
}

/*
UpdatePreferences persists the onboarding UI flags.

Parameters:
  - context: context.Context
  - userID: string
  - input: PreferencesInput

Returns:
  - *auth.User: The updated record
  - error: Storage failures
*/
func (service *Service) UpdatePreferences(context context.Context, userID string, input PreferencesInput) (*auth.User, error) {
	user, err := service.userRepository.FindByID(context, userID)
	if err != nil {
		return nil, err
	}

	if input.TourCompleted != nil {
		user.TourCompleted = *input.TourCompleted
	}
	if input.HideWelcomeModal != nil {
		user.HideWelcomeModal = *input.HideWelcomeModal
	}

	if err := service.save(context, user); err != nil {
		return nil, err
	}

	return user, nil
}

// # Lifecycle

/*
Deactivate permanently deletes the authenticated user's account.

Description: The confirmation text must equal the deactivation phrase exactly;
otherwise nothing is read or deleted. Owned itineraries and reviews go first,
then an audit entry is written and the record is removed.

Parameters:
  - context: context.Context
  - userID: string
  - confirmation: string
  - ipAddress: string

Returns:
  - *DeactivationSummary: What was removed
  - error: ErrConfirmationMismatch, NotFound or storage failures
*/
func (service *Service) Deactivate(context context.Context, userID, confirmation, ipAddress string) (*DeactivationSummary, error) {
	if confirmation != constants.DeactivationPhrase {
		return nil, apperr.ErrConfirmationMismatch
	}

	user, err := service.userRepository.FindByID(context, userID)
	if err != nil {
		return nil, err
	}

	summary, err := service.lifecycleRepository.Deactivate(context, user, AuditEntry{
		ID:        uuid.New(),
		ActorID:   user.ID,
		Action:    ActionAccountDeactivated,
		Before:    snapshot(user),
		IPAddress: ipAddress,
		CreatedAt: service.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("account_service_deactivate_failed: %w", err)
	}

	service.logger.Warn("user_account_deactivated",
		slog.String("user_id", user.ID),
		slog.Int64("itineraries_deleted", summary.ItinerariesDeleted),
		slog.Int64("reviews_deleted", summary.ReviewsDeleted),
	)
	return summary, nil
}

// # Administration

/*
GetUser returns any account by id. Admin only.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *auth.User: Record without secrets
  - error: NotFound or storage failures
*/
func (service *Service) GetUser(context context.Context, userID string) (*auth.User, error) {
	return service.userRepository.FindByID(context, userID)
}

// UserPage is one page of an account listing.
type UserPage struct {
	Items []*auth.User    `json:"items"`
	Meta  pagination.Meta `json:"meta"`
}

/*
ListUsers returns one page of accounts, newest first. Admin only.

Parameters:
  - context: context.Context
  - roles: []sec.UserRole (empty keeps every role)
  - page: pagination.Params

Returns:
  - *UserPage: Records without secrets and page metadata
  - error: Storage failures
*/
func (service *Service) ListUsers(context context.Context, roles []sec.UserRole, page pagination.Params) (*UserPage, error) {
	users, total, err := service.directory.List(context, auth.UserFilter{
		Roles:  roles,
		Limit:  page.Limit,
		Offset: page.Offset(),
	})
	if err != nil {
		return nil, fmt.Errorf("account_service_list_users_failed: %w", err)
	}

	return &UserPage{Items: users, Meta: pagination.NewMeta(page.Page, page.Limit, total)}, nil
}

/*
ChangeRole sets the persisted role of an account. Super-admin only.

Description: The super-admin's own account always keeps the admin role. The
change applies from the next request because authorization re-reads the record.

Parameters:
  - context: context.Context
  - actorID: string
  - userID: string
  - role: sec.UserRole
  - ipAddress: string

Returns:
  - *auth.User: The updated record
  - error: ValidationError, NotFound or storage failures
*/
func (service *Service) ChangeRole(context context.Context, actorID, userID string, role sec.UserRole, ipAddress string) (*auth.User, error) {
	if !role.Valid() {
		return nil, apperr.ValidationError("Unknown role", apperr.FieldError{Field: auth.FieldRole, Message: "Must be one of: admin, tourist, guest"})
	}

	user, err := service.userRepository.FindByID(context, userID)
	if err != nil {
		return nil, err
	}

	if service.policy.IsSuperAdmin(user.Email) && role != sec.RoleAdmin {
		return nil, apperr.ValidationError("The super-admin account always keeps the admin role")
	}

	if user.Role == role {
		return user, nil
	}

	entry := AuditEntry{
		ID:        uuid.New(),
		ActorID:   actorID,
		Action:    ActionRoleChanged,
		Before:    snapshot(user),
		IPAddress: ipAddress,
		CreatedAt: service.now().UTC(),
	}

	user.Role = role
	if err := service.lifecycleRepository.ChangeRole(context, user, entry); err != nil {
		return nil, fmt.Errorf("account_service_change_role_failed: %w", err)
	}

	service.logger.Info("user_role_changed",
		slog.String("user_id", user.ID),
		slog.String("actor_id", actorID),
		slog.String("role", string(role)),
	)
	return user, nil
}

// # Helpers

// save persists a record, leaving the stored role alone except for the super-admin grant.
func (service *Service) save(context context.Context, user *auth.User) error {
	if err := service.userRepository.Update(context, user); err != nil {
		return err
	}
	return auth.SyncSuperAdmin(context, service.userRepository, service.policy, user)
}

// snapshot captures the audited attributes of a record.
func snapshot(user *auth.User) map[string]any {
	return map[string]any{
		"email":    user.Email,
		"role":     string(user.Role),
		"provider": string(user.Provider),
	}
}
