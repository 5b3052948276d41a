// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package authtest provides in-memory doubles for the identity stores.
package authtest

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/taibuivan/tourly/internal/platform/apperr"
	"github.com/taibuivan/tourly/internal/platform/sec"
	"github.com/taibuivan/tourly/internal/users/auth"
)

// MemoryUsers is an [auth.UserRepository] backed by a map.
//
// It enforces email uniqueness like the database constraint and returns copies,
// so callers cannot mutate stored records by accident.
type MemoryUsers struct {
	mu    sync.Mutex
	users map[string]*auth.User
	codes map[string]auth.RecordCode

	// Creates counts successful Create calls.
	Creates int
}

// NewMemoryUsers returns an empty store.
func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{
		users: make(map[string]*auth.User),
		codes: make(map[string]auth.RecordCode),
	}
}

// Put stores a record directly, bypassing the uniqueness check.
func (store *MemoryUsers) Put(user *auth.User) {
	store.mu.Lock()
	defer store.mu.Unlock()
	clone := *user
	store.users[user.ID] = &clone
}

// Get returns a copy of the stored record or nil.
func (store *MemoryUsers) Get(id string) *auth.User {
	store.mu.Lock()
	defer store.mu.Unlock()
	user, ok := store.users[id]
	if !ok {
		return nil
	}
	clone := *user
	return &clone
}

// Code returns the code attached to a record, if any.
func (store *MemoryUsers) Code(id string) (auth.RecordCode, bool) {
	store.mu.Lock()
	defer store.mu.Unlock()
	code, ok := store.codes[id]
	return code, ok
}

// Len returns the number of stored records.
func (store *MemoryUsers) Len() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.users)
}

// Remove deletes a record.
func (store *MemoryUsers) Remove(id string) {
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.users, id)
	delete(store.codes, id)
}

func (store *MemoryUsers) FindByID(_ context.Context, id string) (*auth.User, error) {
	if user := store.Get(id); user != nil {
		return user, nil
	}
	return nil, apperr.NotFound("Account")
}

func (store *MemoryUsers) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, user := range store.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("Account")
}

func (store *MemoryUsers) Create(_ context.Context, user *auth.User) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.emailTaken(user.Email, user.ID) {
		return apperr.Conflict("Account already exists")
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	clone := *user
	store.users[user.ID] = &clone
	store.Creates++
	return nil
}

func (store *MemoryUsers) Update(_ context.Context, user *auth.User) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if _, ok := store.users[user.ID]; !ok {
		return apperr.NotFound("Account")
	}
	if store.emailTaken(user.Email, user.ID) {
		return apperr.Conflict("Account already exists")
	}
	user.UpdatedAt = time.Now().UTC()
	stored := store.users[user.ID]
	clone := *user
	clone.PasswordHash = stored.PasswordHash
	clone.Role = stored.Role
	store.users[user.ID] = &clone
	return nil
}

func (store *MemoryUsers) GrantAdmin(_ context.Context, userID, email string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if user, ok := store.users[userID]; ok && user.Email == email {
		user.Role = sec.RoleAdmin
	}
	return nil
}

func (store *MemoryUsers) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	user, ok := store.users[userID]
	if !ok || user.Provider != auth.ProviderLocal {
		return apperr.NotFound("Account")
	}
	user.PasswordHash = passwordHash
	return nil
}

func (store *MemoryUsers) AttachCode(_ context.Context, userID string, code auth.RecordCode) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if _, ok := store.users[userID]; !ok {
		return apperr.NotFound("Account")
	}
	store.codes[userID] = code
	return nil
}

func (store *MemoryUsers) ConsumeCode(_ context.Context, userID string, purpose auth.Purpose, digest, target string, now time.Time) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	code, ok := store.codes[userID]
	if !ok || code.Purpose != purpose || code.Digest != digest || !code.ExpiresAt.After(now) {
		return "", apperr.ErrInvalidCode
	}
	if target != "" && code.Target != target {
		return "", apperr.ErrInvalidCode
	}
	delete(store.codes, userID)
	return code.Target, nil
}

// List returns stored records newest first. Records are ordered by id, which
// is time-ordered for generated ids.
func (store *MemoryUsers) List(_ context.Context, filter auth.UserFilter) ([]*auth.User, int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	matched := make([]*auth.User, 0, len(store.users))
	for _, user := range store.users {
		if len(filter.Roles) > 0 && !slices.Contains(filter.Roles, user.Role) {
			continue
		}
		clone := *user
		matched = append(matched, &clone)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := len(matched)
	start := min(filter.Offset, total)
	end := min(start+filter.Limit, total)
	return matched[start:end], total, nil
}

// emailTaken reports whether another record owns email. Callers hold mu.
func (store *MemoryUsers) emailTaken(email, exceptID string) bool {
	for id, user := range store.users {
		if id != exceptID && user.Email == email {
			return true
		}
	}
	return false
}

var (
	_ auth.UserRepository = (*MemoryUsers)(nil)
	_ auth.UserDirectory  = (*MemoryUsers)(nil)
)
