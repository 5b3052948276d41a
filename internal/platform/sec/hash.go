// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// # Password Hashing

const argon2Algorithm = "argon2id"

// HasherParams tunes the argon2id cost. Values are embedded in every hash so they
// can be raised later without invalidating stored credentials.
type HasherParams struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultHasherParams follows the OWASP baseline for argon2id.
var DefaultHasherParams = HasherParams{
	Memory:      64 * 1024,
	Time:        3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// ErrMalformedHash is returned when a stored hash is not a valid argon2id PHC string.
var ErrMalformedHash = errors.New("sec: malformed password hash")

// PasswordHasher is the memory-hard one-way transform for long-term credentials.
type PasswordHasher struct {
	params HasherParams
}

// NewPasswordHasher returns a hasher using the given cost parameters.
func NewPasswordHasher(params HasherParams) *PasswordHasher {
	return &PasswordHasher{params: params}
}

// Hash derives a salted argon2id hash and encodes it in PHC string format.
func (hasher *PasswordHasher) Hash(plainTextPassword string) (string, error) {
	salt := make([]byte, hasher.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("sec: failed to read salt: %w", err)
	}

	key := argon2.IDKey(
		[]byte(plainTextPassword),
		salt,
		hasher.params.Time,
		hasher.params.Memory,
		hasher.params.Parallelism,
		hasher.params.KeyLength,
	)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Algorithm,
		argon2.Version,
		hasher.params.Memory,
		hasher.params.Time,
		hasher.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether plainTextPassword matches encodedHash.
//
// Malformed hashes never match. The comparison is constant-time.
func (hasher *PasswordHasher) Verify(encodedHash, plainTextPassword string) bool {
	decoded, err := decodeHash(encodedHash)
	if err != nil {
		return false
	}

	computed := argon2.IDKey(
		[]byte(plainTextPassword),
		decoded.salt,
		decoded.time,
		decoded.memory,
		decoded.parallelism,
		uint32(len(decoded.key)),
	)

	return subtle.ConstantTimeCompare(computed, decoded.key) == 1
}

type decodedHash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

// decodeHash parses "$argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>".
func decodeHash(encodedHash string) (*decodedHash, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != argon2Algorithm {
		return nil, ErrMalformedHash
	}

	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return nil, ErrMalformedHash
	}

	decoded := &decodedHash{}
	var parallelism uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &decoded.memory, &decoded.time, &parallelism); err != nil {
		return nil, ErrMalformedHash
	}
	if decoded.memory == 0 || decoded.time == 0 || parallelism == 0 || parallelism > 255 {
		return nil, ErrMalformedHash
	}
	decoded.parallelism = uint8(parallelism)

	var err error
	if decoded.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(decoded.salt) == 0 {
		return nil, ErrMalformedHash
	}
	if decoded.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(decoded.key) == 0 {
		return nil, ErrMalformedHash
	}

	return decoded, nil
}
