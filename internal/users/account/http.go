// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/tourly/internal/platform/apperr"
	"github.com/taibuivan/tourly/internal/platform/middleware"
	requestutil "github.com/taibuivan/tourly/internal/platform/request"
	"github.com/taibuivan/tourly/internal/platform/respond"
	"github.com/taibuivan/tourly/internal/platform/sec"
	"github.com/taibuivan/tourly/internal/platform/validate"
	"github.com/taibuivan/tourly/internal/users/auth"
	"github.com/taibuivan/tourly/pkg/pagination"
	"github.com/taibuivan/tourly/pkg/query"
)

// maxPictureURLLength bounds the stored profile picture reference.
const maxPictureURLLength = 2048

// Handler implements the HTTP layer for account management.
type Handler struct {
	accountService *Service
	policy         sec.AccessPolicy
}

// NewHandler constructs a new account [Handler].
func NewHandler(service *Service, policy sec.AccessPolicy) *Handler {
	return &Handler{accountService: service, policy: policy}
}

// Routes returns a [chi.Router] configured with the account endpoints.
//
// Every route requires a session; the admin routes additionally require the
// Admin or Super-admin capability.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	handler.Register(router)
	return router
}

// Register attaches the account routes to router, which must not have routes yet.
func (handler *Handler) Register(router chi.Router) {
	router.Use(middleware.RequireAuth)

	// Self-service
	router.Get("/me", handler.getMe)
	router.Put("/account", handler.updateAccount)
	router.Patch("/profile", handler.updateProfile)
	router.Post("/complete-profile", handler.completeProfile)
	router.Patch("/preferences", handler.updatePreferences)
	router.Delete("/deactivate-account", handler.deactivate)

	// Administration
	router.With(middleware.RequireAdmin(handler.policy)).Get("/admin/users", handler.listUsers)
	router.With(middleware.RequireAdmin(handler.policy)).Get("/admin/users/{id}", handler.getUser)
	router.With(middleware.RequireSuperAdmin(handler.policy)).Put("/admin/users/{id}/role", handler.changeRole)
}

// # Request Payloads

type updateAccountRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email"`
	Password  *string `json:"password"`
}

type updateProfileRequest struct {
	FirstName      *string `json:"firstName"`
	LastName       *string `json:"lastName"`
	Birthday       *string `json:"birthday"`
	Gender         *string `json:"gender"`
	Country        *string `json:"country"`
	Language       *string `json:"language"`
	ProfilePicture *string `json:"profilePicture"`
}

type preferencesRequest struct {
	TourCompleted    *bool `json:"tourCompleted"`
	HideWelcomeModal *bool `json:"hideWelcomeModal"`
}

type deactivateRequest struct {
	ConfirmationText string `json:"confirmationText"`
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

type deactivateResponse struct {
	Message string               `json:"message"`
	Summary *DeactivationSummary `json:"summary"`
}

// # Account Endpoints

/*
GET /me.

Description: Retrieves the full private record of the authenticated user.

Response:
  - 200: User: Record without secrets
  - 401: Authentication required
*/
func (handler *Handler) getMe(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.GetMe(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
PUT /account.

Description: Updates names, email or password. A new email is stored
unverified.

Request:
  - body: updateAccountRequest (all fields optional)

Response:
  - 200: User: The updated record
  - 400: Validation failure or password on a Google account
  - 409: Email already in use
*/
func (handler *Handler) updateAccount(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input updateAccountRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validateName(validator, auth.FieldFirstName, input.FirstName)
	validateName(validator, auth.FieldLastName, input.LastName)
	if input.Email != nil {
		auth.ValidateEmail(validator, auth.FieldEmail, *input.Email)
	}
	if input.Password != nil {
		auth.ValidatePassword(validator, auth.FieldPassword, *input.Password)
	}

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.UpdateAccount(request.Context(), userID, UpdateAccountInput{
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     input.Email,
		Password:  input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// # Profile Endpoints

/*
PATCH /profile.

Description: Applies partial profile updates. Does not mark the profile complete.

Request:
  - body: updateProfileRequest (Partial JSON, birthday as YYYY-MM-DD)

Response:
  - 200: User: The updated record
  - 400: Validation failure
*/
func (handler *Handler) updateProfile(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input updateProfileRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validateName(validator, auth.FieldFirstName, input.FirstName)
	validateName(validator, auth.FieldLastName, input.LastName)
	if input.Birthday != nil {
		validator.PastDate(auth.FieldBirthday, *input.Birthday, time.Now())
	}
	if input.Gender != nil {
		validator.OneOf(auth.FieldGender, *input.Gender, Genders...)
	}
	if input.Country != nil {
		validator.Country(auth.FieldCountry, *input.Country)
	}
	if input.Language != nil {
		validator.Language(auth.FieldLanguage, *input.Language)
	}
	if input.ProfilePicture != nil {
		validator.MaxLen(auth.FieldProfilePicture, *input.ProfilePicture, maxPictureURLLength)
	}

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	profile := UpdateProfileInput{
		FirstName:      input.FirstName,
		LastName:       input.LastName,
		Gender:         input.Gender,
		Country:        input.Country,
		Language:       input.Language,
		ProfilePicture: input.ProfilePicture,
	}
	if input.Birthday != nil {
		birthday, _ := time.Parse(time.DateOnly, *input.Birthday)
		profile.Birthday = &birthday
	}

	user, err := handler.accountService.UpdateProfile(request.Context(), userID, profile)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
POST /complete-profile.

Description: Marks the profile complete. Idempotent.

Response:
  - 200: User: Record with profileCompleted = true
  - 400: Missing required fields (listed in details)
*/
func (handler *Handler) completeProfile(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.CompleteProfile(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
PATCH /preferences.

Description: Persists onboarding UI flags.

Response:
  - 200: User: The updated record
*/
func (handler *Handler) updatePreferences(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input preferencesRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	user, err := handler.accountService.UpdatePreferences(request.Context(), userID, PreferencesInput{
		TourCompleted:    input.TourCompleted,
		HideWelcomeModal: input.HideWelcomeModal,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// # Lifecycle Endpoints

/*
DELETE /deactivate-account.

Description: Permanently deletes the account and its content after an exact
confirmation phrase.

Request:
  - body: deactivateRequest (ConfirmationText)

Response:
  - 200: deactivateResponse
  - 400: Confirmation text does not match
*/
func (handler *Handler) deactivate(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input deactivateRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if input.ConfirmationText == "" {
		respond.Error(writer, request, validate.RequiredError(auth.FieldConfirmationText, "This field is required"))
		return
	}

	summary, err := handler.accountService.Deactivate(request.Context(), userID, input.ConfirmationText, middleware.RealIP(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, deactivateResponse{
		Message: "Your account has been deactivated.",
		Summary: summary,
	})
}

// # Administration Endpoints

/*
GET /admin/users.

Description: Lists accounts, newest first. Requires the Admin capability.

Request:
  - query: page, limit, role (comma-separated roles)

Response:
  - 200: UserPage
  - 400: Unknown role in the filter
  - 403: Not an admin
*/
func (handler *Handler) listUsers(writer http.ResponseWriter, request *http.Request) {
	validator := &validate.Validator{}

	var roles []sec.UserRole
	for _, role := range query.StringSlice(request.URL.Query().Get("role")) {
		validator.OneOf(auth.FieldRole, role, string(sec.RoleAdmin), string(sec.RoleTourist), string(sec.RoleGuest))
		roles = append(roles, sec.UserRole(role))
	}

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	page, err := handler.accountService.ListUsers(request.Context(), roles, pagination.FromRequest(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, page)
}

/*
GET /admin/users/{id}.

Description: Retrieves any account. Requires the Admin capability.

Response:
  - 200: User
  - 403: Not an admin
  - 404: Unknown account
*/
func (handler *Handler) getUser(writer http.ResponseWriter, request *http.Request) {
	userID := requestutil.Param(request, "id")

	validator := &validate.Validator{}
	validator.UUID("id", userID)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, apperr.NotFound("Account"))
		return
	}

	user, err := handler.accountService.GetUser(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
PUT /admin/users/{id}/role.

Description: Changes the persisted role of an account. Requires the
Super-admin capability.

Request:
  - body: changeRoleRequest (Role)

Response:
  - 200: User
  - 400: Unknown role
  - 403: Not the super-admin
*/
func (handler *Handler) changeRole(writer http.ResponseWriter, request *http.Request) {
	actorID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changeRoleRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.OneOf(auth.FieldRole, input.Role, string(sec.RoleAdmin), string(sec.RoleTourist), string(sec.RoleGuest))
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.ChangeRole(request.Context(), actorID, requestutil.Param(request, "id"), sec.UserRole(input.Role), middleware.RealIP(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// validateName checks an optional name field.
func validateName(validator *validate.Validator, field string, value *string) {
	if value == nil {
		return
	}
	validator.Required(field, *value).MaxLen(field, *value, auth.MaxNameLength)
}
