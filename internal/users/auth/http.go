// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/tourly/internal/platform/middleware"
	requestutil "github.com/taibuivan/tourly/internal/platform/request"
	"github.com/taibuivan/tourly/internal/platform/respond"
	"github.com/taibuivan/tourly/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements the identity HTTP endpoints.
//
// # Scope
//
// Registration, sign-in (password and Google), password recovery and email
// verification. Account management lives in the account package.
type Handler struct {
	authService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{authService: service}
}

// Routes returns a [chi.Router] configured with the identity routes.
//
// # Endpoints
//   - POST /register, /verify-otp, /resend-otp : Draft lifecycle.
//   - POST /login, /google-login                : Session issuance.
//   - POST /send-otp, /reset-password           : Password recovery.
//   - POST /send-email-verification-otp, /verify-email-otp (auth) : Email change.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	handler.Register(router)
	return router
}

// Register attaches the identity routes to an existing router.
func (handler *Handler) Register(router chi.Router) {
	// Public endpoints
	router.Post("/register", handler.register)
	router.Post("/verify-otp", handler.verifyRegistration)
	router.Post("/resend-otp", handler.resendRegistrationCode)
	router.Post("/login", handler.login)
	router.Post("/google-login", handler.googleLogin)
	router.Post("/send-otp", handler.sendPasswordResetCode)
	router.Post("/reset-password", handler.resetPassword)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Post("/send-email-verification-otp", handler.sendEmailVerificationCode)
		r.Post("/verify-email-otp", handler.verifyEmailCode)
	})
}

// # Request Payloads

type registerRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type verifyCodeRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type googleLoginRequest struct {
	Token string `json:"token"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

type verifyEmailCodeRequest struct {
	OTP      string `json:"otp"`
	NewEmail string `json:"newEmail"`
}

// # Response Payloads

type pendingResponse struct {
	Message   string `json:"message"`
	PendingID string `json:"pendingId"`
}

type verifiedResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

// # Registration

/*
Register starts a registration and emails a one-time code.

POST /register

Description: Validates input, rejects taken emails and stores an Identity
Draft. No account exists until the code is verified.

Request:
  - Body: registerRequest (FirstName, LastName, Email, Password)

Response:
  - 201: pendingResponse
  - 400: ErrInvalidJSON or validation failure
  - 409: Email already registered
  - 429: Too many codes requested
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldFirstName, input.FirstName).
		MaxLen(FieldFirstName, input.FirstName, MaxNameLength).
		Required(FieldLastName, input.LastName).
		MaxLen(FieldLastName, input.LastName, MaxNameLength)
	ValidateEmail(validator, FieldEmail, input.Email)
	ValidatePassword(validator, FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	pending, err := handler.authService.Register(request.Context(), RegisterInput{
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     input.Email,
		Password:  input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, pendingResponse{
		Message:   "Verification code sent. Check your email to finish registration.",
		PendingID: pending.PendingID,
	})
}

/*
VerifyRegistration promotes a draft into a verified account.

POST /verify-otp

Request:
  - Body: verifyCodeRequest (Email, OTP)

Response:
  - 200: verifiedResponse
  - 400: Invalid or expired code
  - 404: No pending registration
  - 409: Email already registered
*/
func (handler *Handler) verifyRegistration(writer http.ResponseWriter, request *http.Request) {
	var input verifyCodeRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	ValidateEmail(validator, FieldEmail, input.Email)
	validator.Required(FieldOTP, input.OTP)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.VerifyRegistration(request.Context(), input.Email, input.OTP)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, verifiedResponse{
		Message: "Email verified. Your account is ready.",
		UserID:  user.ID,
	})
}

/*
ResendRegistrationCode replaces the pending draft's code.

POST /resend-otp

Request:
  - Body: emailRequest (Email)

Response:
  - 200: pendingResponse
  - 404: No pending registration
  - 429: Too many codes requested
*/
func (handler *Handler) resendRegistrationCode(writer http.ResponseWriter, request *http.Request) {
	var input emailRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	ValidateEmail(validator, FieldEmail, input.Email)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	pending, err := handler.authService.ResendRegistrationCode(request.Context(), input.Email)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, pendingResponse{
		Message:   "A new verification code has been sent.",
		PendingID: pending.PendingID,
	})
}

// # Sign-in

/*
Login authenticates with email and password.

POST /login

Response:
  - 200: Session (token, user)
  - 401: Invalid email or password
  - 429: Too many failed attempts
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email)
	validator.Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Login(request.Context(), input.Email, input.Password)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, session)
}

/*
GoogleLogin authenticates with a Google ID token.

POST /google-login

Response:
  - 200: Session (token, user)
  - 401: Token rejected
  - 503: Google sign-in not configured
*/
func (handler *Handler) googleLogin(writer http.ResponseWriter, request *http.Request) {
	var input googleLoginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if input.Token == "" {
		respond.Error(writer, request, validate.RequiredError(FieldToken, "This field is required"))
		return
	}

	session, err := handler.authService.GoogleLogin(request.Context(), input.Token)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, session)
}

// # Password Recovery

/*
SendPasswordResetCode emails a password reset code.

POST /send-otp

Response:
  - 200: Message
  - 400: Account signs in with Google
  - 404: Unknown email
*/
func (handler *Handler) sendPasswordResetCode(writer http.ResponseWriter, request *http.Request) {
	var input emailRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	ValidateEmail(validator, FieldEmail, input.Email)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.SendPasswordResetCode(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, "A password reset code has been sent to your email.")
}

/*
ResetPassword sets a new password using a reset code.

POST /reset-password

Response:
  - 200: Message
  - 400: Validation failure or invalid code
  - 404: Unknown email
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	ValidateEmail(validator, FieldEmail, input.Email)
	validator.Required(FieldOTP, input.OTP)
	ValidatePassword(validator, FieldNewPassword, input.NewPassword)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.ResetPassword(request.Context(), input.Email, input.OTP, input.NewPassword); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, "Your password has been reset. You can now sign in.")
}

// # Email Verification

/*
SendEmailVerificationCode emails a code to the address the user wants to use.

POST /send-email-verification-otp (auth)

Response:
  - 200: Message
  - 400: Email belongs to another account
*/
func (handler *Handler) sendEmailVerificationCode(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input emailRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	ValidateEmail(validator, FieldEmail, input.Email)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.SendEmailVerificationCode(request.Context(), userID, input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, "A verification code has been sent to "+input.Email+".")
}

/*
VerifyEmailCode confirms the email the code was sent to.

POST /verify-email-otp (auth)

Response:
  - 200: User
  - 400: Invalid code or email taken
*/
func (handler *Handler) verifyEmailCode(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input verifyEmailCodeRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldOTP, input.OTP)
	if input.NewEmail != "" {
		ValidateEmail(validator, FieldNewEmail, input.NewEmail)
	}

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.VerifyEmailCode(request.Context(), userID, input.OTP, input.NewEmail)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// # Shared Rules

// ValidateEmail applies the email rules shared by every identity endpoint.
func ValidateEmail(validator *validate.Validator, field, value string) {
	if value == "" {
		validator.Required(field, value)
		return
	}
	validator.MaxLen(field, value, MaxEmailLength).Email(field, value)
}

// ValidatePassword applies the password strength rules.
func ValidatePassword(validator *validate.Validator, field, value string) {
	validator.Required(field, value).
		MinLen(field, value, MinPasswordLength).
		MaxLen(field, value, MaxPasswordLength)
}
