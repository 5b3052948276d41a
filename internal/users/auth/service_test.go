// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/tourly/internal/platform/apperr"
	"github.com/taibuivan/tourly/internal/platform/constants"
	"github.com/taibuivan/tourly/internal/platform/limiter"
	"github.com/taibuivan/tourly/internal/platform/sec"
	"github.com/taibuivan/tourly/internal/users/auth"
	"github.com/taibuivan/tourly/internal/users/auth/authtest"
)

const (
	superAdminEmail = "root@tourly.app"
	alicePassword   = "Passw0rd!"
)

// # Fixture

type stubVerifier struct {
	identity *auth.FederatedIdentity
	err      error
}

func (verifier *stubVerifier) Verify(_ context.Context, _ string) (*auth.FederatedIdentity, error) {
	if verifier.err != nil {
		return nil, verifier.err
	}
	clone := *verifier.identity
	return &clone, nil
}

type fixture struct {
	service    *auth.Service
	users      *authtest.MemoryUsers
	drafts     *auth.RedisDraftRepository
	outbox     *authtest.Outbox
	tokens     *sec.TokenService
	hasher     *sec.PasswordHasher
	federation *stubVerifier
	redis      *miniredis.Miniredis
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tokens, err := sec.NewTokenService("0123456789abcdef0123456789abcdef", constants.AuthIssuer, constants.SessionTokenTTL)
	require.NoError(t, err)

	f := &fixture{
		users:      authtest.NewMemoryUsers(),
		drafts:     auth.NewDraftRepository(client),
		outbox:     &authtest.Outbox{},
		tokens:     tokens,
		hasher:     sec.NewPasswordHasher(sec.HasherParams{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}),
		federation: &stubVerifier{},
		redis:      server,
		now:        time.Now(),
	}

	attempts := limiter.New(client)
	codes := auth.NewCodeEngine(
		sec.NewCodeDigester("otp-test-secret", constants.OneTimeCodeDigits),
		f.outbox,
		attempts,
		constants.OneTimeCodeTTL,
	).WithClock(func() time.Time { return f.now })

	f.service, err = auth.NewService(auth.Dependencies{
		Users:      f.users,
		Drafts:     f.drafts,
		Codes:      codes,
		Hasher:     f.hasher,
		Tokens:     tokens,
		Federation: f.federation,
		Attempts:   attempts,
		Policy:     sec.AccessPolicy{SuperAdminEmail: superAdminEmail},
	})
	require.NoError(t, err)

	return f
}

// seedLocal stores a verified local account.
func (f *fixture) seedLocal(t *testing.T, id, email, password string) *auth.User {
	t.Helper()
	passwordHash, err := f.hasher.Hash(password)
	require.NoError(t, err)

	user := &auth.User{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         sec.RoleTourist,
		IsVerified:   true,
		FirstName:    "Test",
		LastName:     "User",
		Provider:     auth.ProviderLocal,
	}
	f.users.Put(user)
	return user
}

// seedGoogle stores a federated account.
func (f *fixture) seedGoogle(id, email string, role sec.UserRole) *auth.User {
	user := &auth.User{
		ID:              id,
		Email:           email,
		Role:            role,
		IsVerified:      true,
		FirstName:       "Fed",
		LastName:        "User",
		Provider:        auth.ProviderGoogle,
		ProviderSubject: "google-" + id,
	}
	f.users.Put(user)
	return user
}

func (f *fixture) registerAlice(t *testing.T) (*auth.PendingRegistration, string) {
	t.Helper()
	pending, err := f.service.Register(context.Background(), auth.RegisterInput{
		FirstName: "Alice",
		LastName:  "Doe",
		Email:     "alice@example.com",
		Password:  alicePassword,
	})
	require.NoError(t, err)
	return pending, f.outbox.LastCode()
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	appError := apperr.As(err)
	require.NotNil(t, appError, "expected an AppError, got %v", err)
	assert.Equal(t, status, appError.HTTPStatus, appError.Message)
}

// # Registration

/*
TestRegistration_AliceScenario walks register, verify and replay of the same code.
*/
func TestRegistration_AliceScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending, code := f.registerAlice(t)
	assert.NotEmpty(t, pending.PendingID)
	assert.Len(t, code, 6)
	assert.Equal(t, "alice@example.com", f.outbox.Last().To)

	// Draft exists, no record yet; the code is never stored in plain text.
	draft, err := f.drafts.Find(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.NotContains(t, draft.CodeDigest, code)
	assert.NotEqual(t, alicePassword, draft.PasswordHash)
	assert.Equal(t, 0, f.users.Len())

	user, err := f.service.VerifyRegistration(ctx, "alice@example.com", code)
	require.NoError(t, err)
	assert.True(t, user.IsVerified)
	assert.Equal(t, sec.RoleTourist, user.Role)
	assert.Equal(t, auth.ProviderLocal, user.Provider)
	assert.Equal(t, 1, f.users.Len())

	_, err = f.drafts.Find(ctx, "alice@example.com")
	assert.True(t, apperr.IsNotFound(err), "draft must be gone")

	// Single use.
	_, err = f.service.VerifyRegistration(ctx, "alice@example.com", code)
	assert.ErrorIs(t, err, apperr.ErrInvalidCode)
	requireStatus(t, err, http.StatusBadRequest)
	assert.Equal(t, 1, f.users.Creates)

	session, err := f.service.Login(ctx, "alice@example.com", alicePassword)
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.User.ID)
}

/*
TestVerifyRegistration_FailedAttemptsKeepDraft ensures wrong and expired codes have no side effects.
*/
func TestVerifyRegistration_FailedAttemptsKeepDraft(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong_code", func(t *testing.T) {
		f := newFixture(t)
		_, code := f.registerAlice(t)
		before, err := f.drafts.Find(ctx, "alice@example.com")
		require.NoError(t, err)

		wrong := "000000"
		if code == wrong {
			wrong = "111111"
		}
		_, err = f.service.VerifyRegistration(ctx, "alice@example.com", wrong)
		assert.ErrorIs(t, err, apperr.ErrInvalidCode)

		after, err := f.drafts.Find(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, before.CodeDigest, after.CodeDigest)
		assert.Equal(t, 0, f.users.Len())

		// The right code still works afterwards.
		_, err = f.service.VerifyRegistration(ctx, "alice@example.com", code)
		assert.NoError(t, err)
	})

	t.Run("expired_code", func(t *testing.T) {
		f := newFixture(t)
		_, code := f.registerAlice(t)

		f.now = f.now.Add(constants.OneTimeCodeTTL + time.Second)
		_, err := f.service.VerifyRegistration(ctx, "alice@example.com", code)
		assert.ErrorIs(t, err, apperr.ErrInvalidCode)

		_, err = f.drafts.Find(ctx, "alice@example.com")
		assert.NoError(t, err)
		assert.Equal(t, 0, f.users.Len())
	})

	t.Run("malformed_code", func(t *testing.T) {
		f := newFixture(t)
		f.registerAlice(t)

		_, err := f.service.VerifyRegistration(ctx, "alice@example.com", "12ab")
		assert.ErrorIs(t, err, apperr.ErrInvalidCode)
		assert.Equal(t, 0, f.users.Len())
	})
}

/*
TestVerifyRegistration_NoDraft returns 404 when nothing is pending.
*/
func TestVerifyRegistration_NoDraft(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.VerifyRegistration(context.Background(), "ghost@example.com", "123456")
	requireStatus(t, err, http.StatusNotFound)
}

/*
TestRegister_EmailTaken rejects registration for an existing record before sending a code.
*/
func TestRegister_EmailTaken(t *testing.T) {
	f := newFixture(t)
	f.seedLocal(t, "u-1", "alice@example.com", alicePassword)

	_, err := f.service.Register(context.Background(), auth.RegisterInput{
		FirstName: "Alice", LastName: "Doe", Email: "alice@example.com", Password: alicePassword,
	})
	requireStatus(t, err, http.StatusConflict)
	assert.Equal(t, 0, f.outbox.Len())
}

/*
TestVerifyRegistration_RecordAppearedMeanwhile relies on the store to reject the promotion.
*/
func TestVerifyRegistration_RecordAppearedMeanwhile(t *testing.T) {
	f := newFixture(t)
	_, code := f.registerAlice(t)

	f.seedGoogle("u-1", "alice@example.com", sec.RoleTourist)

	_, err := f.service.VerifyRegistration(context.Background(), "alice@example.com", code)
	requireStatus(t, err, http.StatusConflict)
	assert.Equal(t, 1, f.users.Len())
}

/*
TestRegister_DeliveryFailure surfaces a 503 and leaves no draft behind.
*/
func TestRegister_DeliveryFailure(t *testing.T) {
	f := newFixture(t)
	f.outbox.Fail = true

	_, err := f.service.Register(context.Background(), auth.RegisterInput{
		FirstName: "Alice", LastName: "Doe", Email: "alice@example.com", Password: alicePassword,
	})
	requireStatus(t, err, http.StatusServiceUnavailable)
	assert.ErrorIs(t, err, authtest.ErrDeliveryFailed)

	_, err = f.drafts.Find(context.Background(), "alice@example.com")
	assert.True(t, apperr.IsNotFound(err))
}

/*
TestResendRegistrationCode replaces the previous code.
*/
func TestResendRegistrationCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending, first := f.registerAlice(t)

	resent, err := f.service.ResendRegistrationCode(ctx, "alice@example.com")
	require.NoError(t, err)
	second := f.outbox.LastCode()
	assert.Equal(t, pending.PendingID, resent.PendingID)
	assert.Equal(t, 2, f.outbox.Len())

	if first != second {
		_, err = f.service.VerifyRegistration(ctx, "alice@example.com", first)
		assert.ErrorIs(t, err, apperr.ErrInvalidCode)
	}

	user, err := f.service.VerifyRegistration(ctx, "alice@example.com", second)
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.FirstName)

	_, err = f.service.ResendRegistrationCode(ctx, "alice@example.com")
	requireStatus(t, err, http.StatusNotFound)
}

/*
TestResendRegistrationCode_DeliveryFailure keeps the earlier code usable.
*/
func TestResendRegistrationCode_DeliveryFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, first := f.registerAlice(t)

	f.outbox.Fail = true
	_, err := f.service.ResendRegistrationCode(ctx, "alice@example.com")
	requireStatus(t, err, http.StatusServiceUnavailable)
	f.outbox.Fail = false

	user, err := f.service.VerifyRegistration(ctx, "alice@example.com", first)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
}

/*
TestRegister_IssuanceBudget caps how many codes one email can request.
*/
func TestRegister_IssuanceBudget(t *testing.T) {
	f := newFixture(t)

	for range constants.MaxCodeIssuance {
		f.registerAlice(t)
	}

	_, err := f.service.Register(context.Background(), auth.RegisterInput{
		FirstName: "Alice", LastName: "Doe", Email: "Alice@Example.com", Password: alicePassword,
	})
	requireStatus(t, err, http.StatusTooManyRequests)
	assert.Equal(t, constants.MaxCodeIssuance, f.outbox.Len())
}

/*
TestVerifyRegistration_FailureBudget stops guessing after too many wrong codes.
*/
func TestVerifyRegistration_FailureBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, code := f.registerAlice(t)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	for range constants.MaxCodeFailures {
		_, err := f.service.VerifyRegistration(ctx, "alice@example.com", wrong)
		assert.ErrorIs(t, err, apperr.ErrInvalidCode)
	}

	_, err := f.service.VerifyRegistration(ctx, "alice@example.com", code)
	requireStatus(t, err, http.StatusTooManyRequests)
	assert.Equal(t, 0, f.users.Len())
}

// # Login

/*
TestLogin covers success and the indistinguishable failure shapes.
*/
func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.seedLocal(t, "u-alice", "alice@example.com", alicePassword)
	f.seedGoogle("u-gina", "gina@example.com", sec.RoleTourist)

	session, err := f.service.Login(ctx, "alice@example.com", alicePassword)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, session.User.ID)

	claims, err := f.tokens.VerifyToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, claims.UserID)
	assert.Equal(t, string(sec.RoleTourist), claims.Role)

	wrongPassword, err := f.service.Login(ctx, "alice@example.com", "wrong-password")
	assert.Nil(t, wrongPassword)
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)

	_, unknownErr := f.service.Login(ctx, "nobody@example.com", alicePassword)
	assert.ErrorIs(t, unknownErr, apperr.ErrInvalidCredentials)
	assert.Equal(t, err.Error(), unknownErr.Error())
	requireStatus(t, unknownErr, http.StatusUnauthorized)

	_, federatedErr := f.service.Login(ctx, "gina@example.com", "")
	assert.ErrorIs(t, federatedErr, apperr.ErrInvalidCredentials)
}

/*
TestLogin_FailureBudget locks an email out after repeated wrong passwords.
*/
func TestLogin_FailureBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedLocal(t, "u-alice", "alice@example.com", alicePassword)

	for range constants.MaxLoginFailures {
		_, err := f.service.Login(ctx, "alice@example.com", "wrong-password")
		assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
	}

	_, err := f.service.Login(ctx, "alice@example.com", alicePassword)
	requireStatus(t, err, http.StatusTooManyRequests)

	// Other emails keep their own budget.
	_, err = f.service.Login(ctx, "bob@example.com", "x")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
}

// # Password Reset

/*
TestPasswordReset covers the reset code flow end to end.
*/
func TestPasswordReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.seedLocal(t, "u-alice", "alice@example.com", alicePassword)

	require.NoError(t, f.service.SendPasswordResetCode(ctx, "alice@example.com"))
	code := f.outbox.LastCode()
	stored, ok := f.users.Code(alice.ID)
	require.True(t, ok)
	assert.Equal(t, auth.PurposePasswordReset, stored.Purpose)
	assert.NotContains(t, stored.Digest, code)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	err := f.service.ResetPassword(ctx, "alice@example.com", wrong, "N3wPassword!")
	assert.ErrorIs(t, err, apperr.ErrInvalidCode)
	_, ok = f.users.Code(alice.ID)
	assert.True(t, ok, "a failed attempt must not clear the code")

	require.NoError(t, f.service.ResetPassword(ctx, "alice@example.com", code, "N3wPassword!"))

	_, err = f.service.Login(ctx, "alice@example.com", alicePassword)
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
	_, err = f.service.Login(ctx, "alice@example.com", "N3wPassword!")
	assert.NoError(t, err)

	err = f.service.ResetPassword(ctx, "alice@example.com", code, "Another1!")
	assert.ErrorIs(t, err, apperr.ErrInvalidCode)
}

/*
TestPasswordReset_Rejections covers unknown and federated accounts.
*/
func TestPasswordReset_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedGoogle("u-gina", "gina@example.com", sec.RoleTourist)

	requireStatus(t, f.service.SendPasswordResetCode(ctx, "nobody@example.com"), http.StatusNotFound)
	requireStatus(t, f.service.SendPasswordResetCode(ctx, "gina@example.com"), http.StatusBadRequest)
	requireStatus(t, f.service.ResetPassword(ctx, "gina@example.com", "123456", "N3wPassword!"), http.StatusBadRequest)
	assert.Equal(t, 0, f.outbox.Len())
}

/*
TestPasswordReset_CodeFromOtherPurpose ensures a reset code is useless elsewhere.
*/
func TestPasswordReset_CodeFromOtherPurpose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.seedLocal(t, "u-alice", "alice@example.com", alicePassword)

	require.NoError(t, f.service.SendPasswordResetCode(ctx, "alice@example.com"))
	code := f.outbox.LastCode()

	_, err := f.service.VerifyEmailCode(ctx, alice.ID, code, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidCode)
}

// # Email Change

/*
TestEmailChange_TakenEmail fails before any code is generated or sent.
*/
func TestEmailChange_TakenEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.seedLocal(t, "u-alice", "alice@example.com", alicePassword)
	f.seedLocal(t, "u-bob", "bob@example.com", alicePassword)

	err := f.service.SendEmailVerificationCode(ctx, alice.ID, "bob@example.com")
	requireStatus(t, err, http.StatusBadRequest)
	assert.Equal(t, 0, f.outbox.Len())
	_, ok := f.users.Code(alice.ID)
	assert.False(t, ok)
}

/*
TestEmailChange applies the address the code was sent to.
*/
func TestEmailChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.seedLocal(t, "u-alice", "alice@example.com", alicePassword)
	bob := f.seedLocal(t, "u-bob", "bob@example.com", alicePassword)

	require.NoError(t, f.service.SendEmailVerificationCode(ctx, alice.ID, "alice@new.example.com"))
	code := f.outbox.LastCode()
	assert.Equal(t, "alice@new.example.com", f.outbox.Last().To)

	// Another account cannot redeem it.
	_, err := f.service.VerifyEmailCode(ctx, bob.ID, code, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidCode)

	// The code only confirms the address it was delivered to.
	_, err = f.service.VerifyEmailCode(ctx, alice.ID, code, "other@example.com")
	assert.ErrorIs(t, err, apperr.ErrInvalidCode)

	user, err := f.service.VerifyEmailCode(ctx, alice.ID, code, "alice@new.example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice@new.example.com", user.Email)
	assert.True(t, user.IsVerified)
	assert.Equal(t, "alice@new.example.com", f.users.Get(alice.ID).Email)

	_, err = f.service.VerifyEmailCode(ctx, alice.ID, code, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidCode)
}

/*
TestEmailChange_TakenWhilePending relies on the store when the target is claimed meanwhile.
*/
func TestEmailChange_TakenWhilePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.seedLocal(t, "u-alice", "alice@example.com", alicePassword)

	require.NoError(t, f.service.SendEmailVerificationCode(ctx, alice.ID, "claimed@example.com"))
	code := f.outbox.LastCode()
	f.seedLocal(t, "u-carol", "claimed@example.com", alicePassword)

	_, err := f.service.VerifyEmailCode(ctx, alice.ID, code, "")
	requireStatus(t, err, http.StatusBadRequest)
	assert.Equal(t, "alice@example.com", f.users.Get(alice.ID).Email)
}

/*
TestEmailChange_SuperAdminGrant synchronizes the admin role for the super-admin email.
*/
func TestEmailChange_SuperAdminGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.seedLocal(t, "u-alice", "alice@example.com", alicePassword)

	require.NoError(t, f.service.SendEmailVerificationCode(ctx, alice.ID, superAdminEmail))
	user, err := f.service.VerifyEmailCode(ctx, alice.ID, f.outbox.LastCode(), "")
	require.NoError(t, err)
	assert.Equal(t, sec.RoleAdmin, user.Role)
}

// # Google Sign-in

/*
TestGoogleLogin covers creation, resynchronization and linking.
*/
func TestGoogleLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("creates_federated_account", func(t *testing.T) {
		f := newFixture(t)
		f.federation.identity = &auth.FederatedIdentity{
			Provider: auth.ProviderGoogle, Subject: "g-1", Email: "gina@example.com",
			GivenName: "Gina", FamilyName: "Lee", AvatarURL: "https://example.com/g.png",
		}

		session, err := f.service.GoogleLogin(ctx, "token")
		require.NoError(t, err)
		assert.Equal(t, auth.ProviderGoogle, session.User.Provider)
		assert.Equal(t, sec.RoleTourist, session.User.Role)
		assert.True(t, session.User.IsVerified)
		assert.Empty(t, f.users.Get(session.User.ID).PasswordHash)

		again, err := f.service.GoogleLogin(ctx, "token")
		require.NoError(t, err)
		assert.Equal(t, session.User.ID, again.User.ID)
		assert.Equal(t, 1, f.users.Len())
	})

	t.Run("super_admin_created_as_admin", func(t *testing.T) {
		f := newFixture(t)
		f.federation.identity = &auth.FederatedIdentity{Provider: auth.ProviderGoogle, Subject: "g-root", Email: superAdminEmail}

		session, err := f.service.GoogleLogin(ctx, "token")
		require.NoError(t, err)
		assert.Equal(t, sec.RoleAdmin, session.User.Role)
	})

	t.Run("resyncs_avatar_and_keeps_admin", func(t *testing.T) {
		f := newFixture(t)
		existing := f.seedGoogle("u-gina", "gina@example.com", sec.RoleAdmin)
		f.federation.identity = &auth.FederatedIdentity{
			Provider: auth.ProviderGoogle, Subject: "g-new", Email: "gina@example.com", AvatarURL: "https://example.com/new.png",
		}

		session, err := f.service.GoogleLogin(ctx, "token")
		require.NoError(t, err)
		stored := f.users.Get(existing.ID)
		assert.Equal(t, "https://example.com/new.png", stored.ProfilePicture)
		assert.Equal(t, "g-new", stored.ProviderSubject)
		assert.Equal(t, sec.RoleAdmin, session.User.Role)
	})

	t.Run("existing_local_account", func(t *testing.T) {
		f := newFixture(t)
		alice := f.seedLocal(t, "u-alice", "alice@example.com", alicePassword)
		f.federation.identity = &auth.FederatedIdentity{
			Provider: auth.ProviderGoogle, Subject: "g-alice", Email: "alice@example.com", AvatarURL: "https://example.com/a.png",
		}

		session, err := f.service.GoogleLogin(ctx, "token")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, session.User.ID)

		stored := f.users.Get(alice.ID)
		assert.Equal(t, auth.ProviderLocal, stored.Provider)
		assert.NotEmpty(t, stored.PasswordHash)
		assert.Empty(t, stored.ProviderSubject)
	})

	t.Run("rejected_token", func(t *testing.T) {
		f := newFixture(t)
		f.federation.err = errors.New("bad audience")

		_, err := f.service.GoogleLogin(ctx, "token")
		assert.ErrorIs(t, err, apperr.ErrFederationFailed)
		requireStatus(t, err, http.StatusUnauthorized)
		assert.Equal(t, 0, f.users.Len())
	})
}

/*
TestGoogleLogin_Disabled answers 503 when no verifier is configured.
*/
func TestGoogleLogin_Disabled(t *testing.T) {
	f := newFixture(t)
	client := redis.NewClient(&redis.Options{Addr: f.redis.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	service, err := auth.NewService(auth.Dependencies{
		Users:    f.users,
		Drafts:   f.drafts,
		Hasher:   f.hasher,
		Tokens:   f.tokens,
		Attempts: limiter.New(client),
	})
	require.NoError(t, err)

	_, err = service.GoogleLogin(context.Background(), "token")
	requireStatus(t, err, http.StatusServiceUnavailable)
}

// # Principal Resolution

/*
TestPrincipalResolver reads the current stored role, not a cached snapshot.
*/
func TestPrincipalResolver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.seedLocal(t, "u-alice", "alice@example.com", alicePassword)
	resolver := auth.NewPrincipalResolver(f.users)

	principal, err := resolver.LoadPrincipal(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, sec.RoleTourist, principal.Role)

	alice.Role = sec.RoleAdmin
	f.users.Put(alice)

	principal, err = resolver.LoadPrincipal(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, sec.RoleAdmin, principal.Role)

	_, err = resolver.LoadPrincipal(ctx, "missing")
	assert.True(t, apperr.IsNotFound(err))
}
