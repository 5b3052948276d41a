// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/tourly/internal/platform/apperr"
	"github.com/taibuivan/tourly/internal/platform/constants"
)

// # Identity Draft Repository

// resourceRegistration names a pending draft in client-facing error messages.
const resourceRegistration = "Pending registration"

// Draft hash fields.
const (
	draftFieldPendingID    = "pending_id"
	draftFieldFirstName    = "first_name"
	draftFieldLastName     = "last_name"
	draftFieldEmail        = "email"
	draftFieldPasswordHash = "password_hash"
	draftFieldCode         = "code"
	draftFieldExpiresAt    = "expires_at"
)

// consumeDraftLua atomically performs HGET→validate→DEL on a draft.
// KEYS[1] = draft key
// ARGV[1] = presented code digest
// ARGV[2] = current unix time in milliseconds
//
// Returns the flattened draft hash on success, or an error reply
// "not_found" / "invalid_code". A failed attempt never modifies the draft.
var consumeDraftLua = redis.NewScript(`
local stored = redis.call('HGET', KEYS[1], 'code')
if not stored then
  return {err='not_found'}
end

local expiresAt = tonumber(redis.call('HGET', KEYS[1], 'expires_at'))
if stored ~= ARGV[1] or expiresAt == nil or expiresAt <= tonumber(ARGV[2]) then
  return {err='invalid_code'}
end

local fields = redis.call('HGETALL', KEYS[1])
redis.call('DEL', KEYS[1])
return fields
`)

// RedisDraftRepository implements [DraftRepository] with one Redis hash per email.
//
// The key expires together with the code, so abandoned registrations vanish
// without a cleanup job.
type RedisDraftRepository struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewDraftRepository creates a new Redis-backed [DraftRepository].
func NewDraftRepository(client redis.UniversalClient) *RedisDraftRepository {
	return &RedisDraftRepository{client: client, now: time.Now}
}

func draftKey(email string) string {
	return constants.RedisPrefixDraft + email
}

/*
Save replaces any draft for the email in one MULTI/EXEC block.

Parameters:
  - context: context.Context
  - draft: *Draft

Returns:
  - error: Storage failures
*/
func (repository *RedisDraftRepository) Save(context context.Context, draft *Draft) error {
	ttl := draft.ExpiresAt.Sub(repository.now())
	if ttl <= 0 {
		return fmt.Errorf("redis_draft_save_failed: draft already expired")
	}

	key := draftKey(draft.Email)
	_, err := repository.client.TxPipelined(context, func(pipe redis.Pipeliner) error {
		pipe.Del(context, key)
		pipe.HSet(context, key, map[string]any{
			draftFieldPendingID:    draft.PendingID,
			draftFieldFirstName:    draft.FirstName,
			draftFieldLastName:     draft.LastName,
			draftFieldEmail:        draft.Email,
			draftFieldPasswordHash: draft.PasswordHash,
			draftFieldCode:         draft.CodeDigest,
			draftFieldExpiresAt:    strconv.FormatInt(draft.ExpiresAt.UnixMilli(), 10),
		})
		pipe.PExpire(context, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis_draft_save_failed: %w", err)
	}

	return nil
}

/*
Find returns the draft for an email.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *Draft: Pending registration
  - error: apperr.NotFound or connectivity errors
*/
func (repository *RedisDraftRepository) Find(context context.Context, email string) (*Draft, error) {
	fields, err := repository.client.HGetAll(context, draftKey(email)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis_draft_find_failed: %w", err)
	}
	if len(fields) == 0 {
		return nil, apperr.NotFound(resourceRegistration)
	}

	return decodeDraft(fields)
}

/*
Consume removes and returns the draft when the digest matches and has not expired.

Parameters:
  - context: context.Context
  - email: string
  - digest: string
  - now: time.Time

Returns:
  - *Draft: The removed draft
  - error: apperr.NotFound, apperr.ErrInvalidCode or connectivity errors
*/
func (repository *RedisDraftRepository) Consume(context context.Context, email, digest string, now time.Time) (*Draft, error) {
	result, err := consumeDraftLua.Run(context, repository.client, []string{draftKey(email)}, digest, now.UnixMilli()).Slice()
	if err != nil {
		var replyError redis.Error
		if errors.As(err, &replyError) {
			switch reply := replyError.Error(); {
			case strings.HasSuffix(reply, "not_found"):
				return nil, apperr.NotFound(resourceRegistration)
			case strings.HasSuffix(reply, "invalid_code"):
				return nil, apperr.ErrInvalidCode
			}
		}
		return nil, fmt.Errorf("redis_draft_consume_failed: %w", err)
	}

	fields := make(map[string]string, len(result)/2)
	for index := 0; index+1 < len(result); index += 2 {
		name, _ := result[index].(string)
		value, _ := result[index+1].(string)
		fields[name] = value
	}

	return decodeDraft(fields)
}

/*
Delete removes the draft for an email.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - error: Deletion failures
*/
func (repository *RedisDraftRepository) Delete(context context.Context, email string) error {
	if err := repository.client.Del(context, draftKey(email)).Err(); err != nil {
		return fmt.Errorf("redis_draft_delete_failed: %w", err)
	}
	return nil
}

// decodeDraft maps the stored hash back onto a [Draft].
func decodeDraft(fields map[string]string) (*Draft, error) {
	expiresAtMillis, err := strconv.ParseInt(fields[draftFieldExpiresAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis_draft_decode_failed: %w", err)
	}

	return &Draft{
		PendingID:    fields[draftFieldPendingID],
		FirstName:    fields[draftFieldFirstName],
		LastName:     fields[draftFieldLastName],
		Email:        fields[draftFieldEmail],
		PasswordHash: fields[draftFieldPasswordHash],
		CodeDigest:   fields[draftFieldCode],
		ExpiresAt:    time.UnixMilli(expiresAtMillis),
	}, nil
}
