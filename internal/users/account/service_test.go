// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/tourly/internal/platform/apperr"
	"github.com/taibuivan/tourly/internal/platform/constants"
	"github.com/taibuivan/tourly/internal/platform/sec"
	"github.com/taibuivan/tourly/internal/users/account"
	"github.com/taibuivan/tourly/internal/users/auth"
	"github.com/taibuivan/tourly/internal/users/auth/authtest"
	"github.com/taibuivan/tourly/pkg/pagination"
	"github.com/taibuivan/tourly/pkg/pointer"
	"github.com/taibuivan/tourly/pkg/uuid"
)

const superAdminEmail = "root@tourly.app"

// # Fixture

// lifecycleRecorder is a [account.LifecycleRepository] over [authtest.MemoryUsers].
type lifecycleRecorder struct {
	mu    sync.Mutex
	users *authtest.MemoryUsers

	// Owned content rows per user id.
	itineraries map[string]int64
	reviews     map[string]int64

	audit       []account.AuditEntry
	deactivated int
}

func (recorder *lifecycleRecorder) Deactivate(_ context.Context, user *auth.User, entry account.AuditEntry) (*account.DeactivationSummary, error) {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()

	if recorder.users.Get(user.ID) == nil {
		return nil, apperr.NotFound("Account")
	}

	summary := &account.DeactivationSummary{
		UserID:             user.ID,
		Email:              user.Email,
		ItinerariesDeleted: recorder.itineraries[user.ID],
		ReviewsDeleted:     recorder.reviews[user.ID],
		DeactivatedAt:      entry.CreatedAt,
	}
	delete(recorder.itineraries, user.ID)
	delete(recorder.reviews, user.ID)
	recorder.audit = append(recorder.audit, entry)
	recorder.users.Remove(user.ID)
	recorder.deactivated++

	return summary, nil
}

func (recorder *lifecycleRecorder) ChangeRole(_ context.Context, user *auth.User, entry account.AuditEntry) error {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()

	stored := recorder.users.Get(user.ID)
	if stored == nil {
		return apperr.NotFound("Account")
	}
	stored.Role = user.Role
	recorder.users.Put(stored)
	recorder.audit = append(recorder.audit, entry)
	return nil
}

// interleavedUsers runs between once, right after the next record read.
type interleavedUsers struct {
	*authtest.MemoryUsers
	between func()
}

func (store *interleavedUsers) FindByID(ctx context.Context, id string) (*auth.User, error) {
	user, err := store.MemoryUsers.FindByID(ctx, id)
	if between := store.between; between != nil {
		store.between = nil
		between()
	}
	return user, err
}

// failingHasher refuses to hash.
type failingHasher struct{}

func (failingHasher) Hash(string) (string, error) { return "", errors.New("hash unavailable") }
func (failingHasher) Verify(string, string) bool  { return false }

type fixture struct {
	service   *account.Service
	users     *authtest.MemoryUsers
	lifecycle *lifecycleRecorder
	hasher    *sec.PasswordHasher
	tokens    *sec.TokenService
	policy    sec.AccessPolicy
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	tokens, err := sec.NewTokenService("0123456789abcdef0123456789abcdef", constants.AuthIssuer, constants.SessionTokenTTL)
	require.NoError(t, err)

	users := authtest.NewMemoryUsers()
	f := &fixture{
		users: users,
		lifecycle: &lifecycleRecorder{
			users:       users,
			itineraries: make(map[string]int64),
			reviews:     make(map[string]int64),
		},
		hasher: sec.NewPasswordHasher(sec.HasherParams{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}),
		tokens: tokens,
		policy: sec.AccessPolicy{SuperAdminEmail: superAdminEmail},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.service = account.NewService(f.users, f.lifecycle, f.users, f.hasher, f.policy, logger)
	return f
}

// serviceWith builds a second service over the fixture's stores.
func (f *fixture) serviceWith(users auth.UserRepository, hasher auth.PasswordHasher) *account.Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return account.NewService(users, f.lifecycle, f.users, hasher, f.policy, logger)
}

// seed stores an account with the given email, provider and role.
func (f *fixture) seed(t *testing.T, email string, provider auth.Provider, role sec.UserRole) *auth.User {
	t.Helper()

	user := &auth.User{
		ID:         uuid.New(),
		Email:      email,
		Role:       role,
		IsVerified: true,
		FirstName:  "Test",
		LastName:   "User",
		Provider:   provider,
	}
	if provider == auth.ProviderLocal {
		passwordHash, err := f.hasher.Hash("Passw0rd!")
		require.NoError(t, err)
		user.PasswordHash = passwordHash
	} else {
		user.ProviderSubject = "google-" + user.ID
	}

	f.users.Put(user)
	return user
}

func (f *fixture) token(t *testing.T, user *auth.User) string {
	t.Helper()
	token, err := f.tokens.GenerateAccessToken(user.ID, string(user.Role), user.FirstName, user.LastName)
	require.NoError(t, err)
	return token
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError, "expected an AppError, got %v", err)
	assert.Equal(t, status, appError.HTTPStatus)
}

// # Account

func TestService_UpdateAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("email_change_unverifies", func(t *testing.T) {
		f := newFixture(t)
		alice := f.seed(t, "alice@example.com", auth.ProviderLocal, sec.RoleTourist)

		user, err := f.service.UpdateAccount(ctx, alice.ID, account.UpdateAccountInput{
			FirstName: pointer.To("Alicia"),
			Email:     pointer.To("alicia@example.com"),
		})
		require.NoError(t, err)
		assert.Equal(t, "alicia@example.com", user.Email)
		assert.Equal(t, "Alicia", user.FirstName)
		assert.False(t, user.IsVerified)
		assert.False(t, f.users.Get(alice.ID).IsVerified)
	})

	t.Run("same_email_keeps_verification", func(t *testing.T) {
		f := newFixture(t)
		alice := f.seed(t, "alice@example.com", auth.ProviderLocal, sec.RoleTourist)

		user, err := f.service.UpdateAccount(ctx, alice.ID, account.UpdateAccountInput{Email: pointer.To("alice@example.com")})
		require.NoError(t, err)
		assert.True(t, user.IsVerified)
	})

	t.Run("taken_email", func(t *testing.T) {
		f := newFixture(t)
		alice := f.seed(t, "alice@example.com", auth.ProviderLocal, sec.RoleTourist)
		f.seed(t, "bob@example.com", auth.ProviderLocal, sec.RoleTourist)

		_, err := f.service.UpdateAccount(ctx, alice.ID, account.UpdateAccountInput{Email: pointer.To("bob@example.com")})
		requireStatus(t, err, http.StatusConflict)
		assert.Equal(t, "alice@example.com", f.users.Get(alice.ID).Email)
	})

	t.Run("password_change", func(t *testing.T) {
		f := newFixture(t)
		alice := f.seed(t, "alice@example.com", auth.ProviderLocal, sec.RoleTourist)

		_, err := f.service.UpdateAccount(ctx, alice.ID, account.UpdateAccountInput{Password: pointer.To("N3wPassword!")})
		require.NoError(t, err)
		assert.True(t, f.hasher.Verify(f.users.Get(alice.ID).PasswordHash, "N3wPassword!"))
	})

	t.Run("federated_password_rejected", func(t *testing.T) {
		f := newFixture(t)
		fed := f.seed(t, "fed@example.com", auth.ProviderGoogle, sec.RoleTourist)

		_, err := f.service.UpdateAccount(ctx, fed.ID, account.UpdateAccountInput{Password: pointer.To("N3wPassword!")})
		requireStatus(t, err, http.StatusBadRequest)
		assert.Empty(t, f.users.Get(fed.ID).PasswordHash)
	})

	t.Run("hash_failure_writes_nothing", func(t *testing.T) {
		f := newFixture(t)
		alice := f.seed(t, "alice@example.com", auth.ProviderLocal, sec.RoleTourist)
		service := f.serviceWith(f.users, failingHasher{})

		_, err := service.UpdateAccount(ctx, alice.ID, account.UpdateAccountInput{
			Email:    pointer.To("alicia@example.com"),
			Password: pointer.To("N3wPassword!"),
		})
		require.Error(t, err)

		stored := f.users.Get(alice.ID)
		assert.Equal(t, "alice@example.com", stored.Email)
		assert.True(t, stored.IsVerified)
		assert.Equal(t, alice.PasswordHash, stored.PasswordHash)
	})

	t.Run("super_admin_email_grants_admin", func(t *testing.T) {
		f := newFixture(t)
		alice := f.seed(t, "alice@example.com", auth.ProviderLocal, sec.RoleTourist)

		user, err := f.service.UpdateAccount(ctx, alice.ID, account.UpdateAccountInput{Email: pointer.To(superAdminEmail)})
		require.NoError(t, err)
		assert.Equal(t, sec.RoleAdmin, user.Role)
		assert.Equal(t, sec.RoleAdmin, f.users.Get(alice.ID).Role)
	})
}

// # Profile

func TestService_Profile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.seed(t, "alice@example.com", auth.ProviderLocal, sec.RoleTourist)

	_, err := f.service.CompleteProfile(ctx, alice.ID)
	requireStatus(t, err, http.StatusBadRequest)
	details := apperr.As(err).Details
	fields := make([]string, 0, len(details))
	for _, detail := range details {
		fields = append(fields, detail.Field)
	}
	assert.ElementsMatch(t, []string{auth.FieldBirthday, auth.FieldGender, auth.FieldCountry}, fields)

	birthday := time.Date(1990, 4, 1, 0, 0, 0, 0, time.UTC)
	user, err := f.service.UpdateProfile(ctx, alice.ID, account.UpdateProfileInput{
		Birthday: &birthday,
		Gender:   pointer.To("female"),
		Country:  pointer.To("VN"),
		Language: pointer.To("vi"),
	})
	require.NoError(t, err)
	assert.False(t, user.ProfileCompleted)
	assert.Equal(t, "VN", user.Country)

	user, err = f.service.CompleteProfile(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, user.ProfileCompleted)

	again, err := f.service.CompleteProfile(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, again.ProfileCompleted)
	assert.Equal(t, user.UpdatedAt, again.UpdatedAt)
}

func TestService_UpdatePreferences(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.seed(t, "alice@example.com", auth.ProviderLocal, sec.RoleTourist)

	user, err := f.service.UpdatePreferences(ctx, alice.ID, account.PreferencesInput{TourCompleted: pointer.To(true)})
	require.NoError(t, err)
	assert.True(t, user.TourCompleted)
	assert.False(t, user.HideWelcomeModal)

	user, err = f.service.UpdatePreferences(ctx, alice.ID, account.PreferencesInput{HideWelcomeModal: pointer.To(true)})
	require.NoError(t, err)
	assert.True(t, user.TourCompleted)
	assert.True(t, user.HideWelcomeModal)
}

/*
TestService_DemotionSurvivesSelfServiceWrites demotes an admin between the read
and the write of their own update. The demotion must stick.
*/
func TestService_DemotionSurvivesSelfServiceWrites(t *testing.T) {
	ctx := context.Background()

	writes := map[string]func(service *account.Service, userID string) error{
		"preferences": func(service *account.Service, userID string) error {
			_, err := service.UpdatePreferences(ctx, userID, account.PreferencesInput{TourCompleted: pointer.To(true)})
			return err
		},
		"profile": func(service *account.Service, userID string) error {
			_, err := service.UpdateProfile(ctx, userID, account.UpdateProfileInput{Country: pointer.To("VN")})
			return err
		},
		"account": func(service *account.Service, userID string) error {
			_, err := service.UpdateAccount(ctx, userID, account.UpdateAccountInput{FirstName: pointer.To("Alicia")})
			return err
		},
	}

	for name, write := range writes {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			root := f.seed(t, superAdminEmail, auth.ProviderLocal, sec.RoleAdmin)
			alice := f.seed(t, "alice@example.com", auth.ProviderLocal, sec.RoleAdmin)

			users := &interleavedUsers{MemoryUsers: f.users}
			users.between = func() {
				_, err := f.service.ChangeRole(ctx, root.ID, alice.ID, sec.RoleTourist, "")
				require.NoError(t, err)
			}

			require.NoError(t, write(f.serviceWith(users, f.hasher), alice.ID))
			assert.Equal(t, sec.RoleTourist, f.users.Get(alice.ID).Role)
		})
	}
}

// # Lifecycle

func TestService_Deactivate(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong_phrase_deletes_nothing", func(t *testing.T) {
		f := newFixture(t)
		alice := f.seed(t, "alice@example.com", auth.ProviderLocal, sec.RoleTourist)
		f.lifecycle.itineraries[alice.ID] = 2

		for _, phrase := range []string{"", "delete my account", "DELETE MY ACCOUNT ", "DELETE"} {
			_, err := f.service.Deactivate(ctx, alice.ID, phrase, "203.0.113.7")
			assert.ErrorIs(t, err, apperr.ErrConfirmationMismatch)
		}

		assert.Zero(t, f.lifecycle.deactivated)
		assert.NotNil(t, f.users.Get(alice.ID))
		assert.Equal(t, int64(2), f.lifecycle.itineraries[alice.ID])
	})

	t.Run("removes_content_and_account", func(t *testing.T) {
		f := newFixture(t)
		alice := f.seed(t, "alice@example.com", auth.ProviderLocal, sec.RoleTourist)
		bob := f.seed(t, "bob@example.com", auth.ProviderLocal, sec.RoleTourist)
		f.lifecycle.itineraries[alice.ID] = 2
		f.lifecycle.reviews[alice.ID] = 1
		f.lifecycle.itineraries[bob.ID] = 4

		summary, err := f.service.Deactivate(ctx, alice.ID, constants.DeactivationPhrase, "203.0.113.7")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, summary.UserID)
		assert.Equal(t, int64(2), summary.ItinerariesDeleted)
		assert.Equal(t, int64(1), summary.ReviewsDeleted)

		assert.Nil(t, f.users.Get(alice.ID))
		assert.NotNil(t, f.users.Get(bob.ID))
		assert.Equal(t, int64(4), f.lifecycle.itineraries[bob.ID])

		require.Len(t, f.lifecycle.audit, 1)
		entry := f.lifecycle.audit[0]
		assert.Equal(t, account.ActionAccountDeactivated, entry.Action)
		assert.Equal(t, alice.ID, entry.ActorID)
		assert.Equal(t, "alice@example.com", entry.Before["email"])
		assert.Equal(t, "203.0.113.7", entry.IPAddress)

		_, err = f.service.Deactivate(ctx, alice.ID, constants.DeactivationPhrase, "")
		requireStatus(t, err, http.StatusNotFound)
	})
}

// # Administration

func TestService_ChangeRole(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	root := f.seed(t, superAdminEmail, auth.ProviderLocal, sec.RoleAdmin)
	alice := f.seed(t, "alice@example.com", auth.ProviderLocal, sec.RoleTourist)

	_, err := f.service.ChangeRole(ctx, root.ID, alice.ID, sec.UserRole("owner"), "")
	requireStatus(t, err, http.StatusBadRequest)

	_, err = f.service.ChangeRole(ctx, root.ID, root.ID, sec.RoleTourist, "")
	requireStatus(t, err, http.StatusBadRequest)
	assert.Equal(t, sec.RoleAdmin, f.users.Get(root.ID).Role)

	user, err := f.service.ChangeRole(ctx, root.ID, alice.ID, sec.RoleTourist, "")
	require.NoError(t, err)
	assert.Equal(t, sec.RoleTourist, user.Role)
	assert.Empty(t, f.lifecycle.audit)

	user, err = f.service.ChangeRole(ctx, root.ID, alice.ID, sec.RoleAdmin, "198.51.100.1")
	require.NoError(t, err)
	assert.Equal(t, sec.RoleAdmin, user.Role)
	assert.Equal(t, sec.RoleAdmin, f.users.Get(alice.ID).Role)

	require.Len(t, f.lifecycle.audit, 1)
	assert.Equal(t, account.ActionRoleChanged, f.lifecycle.audit[0].Action)
	assert.Equal(t, root.ID, f.lifecycle.audit[0].ActorID)
	assert.Equal(t, "tourist", f.lifecycle.audit[0].Before["role"])

	_, err = f.service.ChangeRole(ctx, root.ID, uuid.New(), sec.RoleGuest, "")
	requireStatus(t, err, http.StatusNotFound)
}

func TestService_ListUsers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, superAdminEmail, auth.ProviderLocal, sec.RoleAdmin)
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		f.seed(t, email, auth.ProviderLocal, sec.RoleTourist)
	}
	f.seed(t, "g@example.com", auth.ProviderGoogle, sec.RoleGuest)

	page, err := f.service.ListUsers(ctx, nil, pagination.Params{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 5, page.Meta.Total)
	assert.Equal(t, 3, page.Meta.TotalPages)
	assert.Equal(t, "g@example.com", page.Items[0].Email)

	page, err = f.service.ListUsers(ctx, []sec.UserRole{sec.RoleTourist}, pagination.Params{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Meta.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "a@example.com", page.Items[0].Email)
}
