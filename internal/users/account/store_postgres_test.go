//go:build integration

// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/tourly/internal/platform/apperr"
	"github.com/taibuivan/tourly/internal/platform/postgres/pgtest"
	"github.com/taibuivan/tourly/internal/platform/sec"
	"github.com/taibuivan/tourly/internal/users/account"
	"github.com/taibuivan/tourly/internal/users/auth"
	"github.com/taibuivan/tourly/pkg/uuid"
)

/*
TestPostgresLifecycleRepository_Deactivate removes owned content and the record
in one transaction and keeps the audit row.
*/
func TestPostgresLifecycleRepository_Deactivate(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.Open(t)
	users := auth.NewUserRepository(pool)
	lifecycle := account.NewLifecycleRepository(pool)

	alice := &auth.User{
		ID: uuid.New(), Email: "alice@example.com", PasswordHash: "hash",
		Role: sec.RoleTourist, IsVerified: true, Provider: auth.ProviderLocal,
	}
	require.NoError(t, users.Create(ctx, alice))

	for _, title := range []string{"Hanoi", "Hue"} {
		_, err := pool.Exec(ctx, `INSERT INTO content.itinerary (id, ownerid, title) VALUES ($1, $2, $3)`, uuid.New(), alice.ID, title)
		require.NoError(t, err)
	}
	_, err := pool.Exec(ctx, `INSERT INTO content.review (id, ownerid, rating) VALUES ($1, $2, 5)`, uuid.New(), alice.ID)
	require.NoError(t, err)

	entry := account.AuditEntry{
		ID:        uuid.New(),
		ActorID:   alice.ID,
		Action:    account.ActionAccountDeactivated,
		Before:    map[string]any{"email": alice.Email},
		CreatedAt: time.Now().UTC(),
	}
	summary, err := lifecycle.Deactivate(ctx, alice, entry)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.ItinerariesDeleted)
	assert.Equal(t, int64(1), summary.ReviewsDeleted)

	assert.Zero(t, pgtest.Count(t, pool, `SELECT COUNT(*) FROM users.account WHERE id = $1`, alice.ID))
	assert.Zero(t, pgtest.Count(t, pool, `SELECT COUNT(*) FROM content.itinerary WHERE ownerid = $1`, alice.ID))
	assert.Zero(t, pgtest.Count(t, pool, `SELECT COUNT(*) FROM content.review WHERE ownerid = $1`, alice.ID))
	assert.Equal(t, 1, pgtest.Count(t, pool,
		`SELECT COUNT(*) FROM system.auditlog WHERE entityid = $1 AND action = $2 AND ipaddress IS NULL`,
		alice.ID, account.ActionAccountDeactivated))

	entry.ID = uuid.New()
	_, err = lifecycle.Deactivate(ctx, alice, entry)
	assert.True(t, apperr.IsNotFound(err))
	assert.Equal(t, 1, pgtest.Count(t, pool, `SELECT COUNT(*) FROM system.auditlog`))
}

/*
TestPostgresLifecycleRepository_ChangeRole writes the role and its audit row together.
*/
func TestPostgresLifecycleRepository_ChangeRole(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.Open(t)
	users := auth.NewUserRepository(pool)
	lifecycle := account.NewLifecycleRepository(pool)

	alice := &auth.User{
		ID: uuid.New(), Email: "alice@example.com", PasswordHash: "hash",
		Role: sec.RoleTourist, IsVerified: true, Provider: auth.ProviderLocal,
	}
	require.NoError(t, users.Create(ctx, alice))

	alice.Role = sec.RoleAdmin
	require.NoError(t, lifecycle.ChangeRole(ctx, alice, account.AuditEntry{
		ID:        uuid.New(),
		ActorID:   uuid.New(),
		Action:    account.ActionRoleChanged,
		Before:    map[string]any{"role": "tourist"},
		IPAddress: "198.51.100.1",
		CreatedAt: time.Now().UTC(),
	}))

	stored, err := users.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, sec.RoleAdmin, stored.Role)
	assert.Equal(t, 1, pgtest.Count(t, pool,
		`SELECT COUNT(*) FROM system.auditlog WHERE entityid = $1 AND ipaddress = '198.51.100.1'`, alice.ID))

	ghost := &auth.User{ID: uuid.New(), Role: sec.RoleGuest}
	err = lifecycle.ChangeRole(ctx, ghost, account.AuditEntry{ID: uuid.New(), Action: account.ActionRoleChanged, CreatedAt: time.Now().UTC()})
	assert.True(t, apperr.IsNotFound(err))
}
