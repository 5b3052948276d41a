// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// # One-Time Codes

// CodeDigester binds short numeric codes to a purpose and subject before storage.
//
// Stored digests are HMAC-SHA256(key, purpose|subject|code). The plaintext code
// only ever exists in the outbound email.
type CodeDigester struct {
	key    []byte
	digits int
}

// NewCodeDigester returns a digester keyed with secret that generates codes of the given length.
func NewCodeDigester(secret string, digits int) *CodeDigester {
	return &CodeDigester{key: []byte(secret), digits: digits}
}

// Generate returns a uniformly random numeric code, zero-padded to the configured length.
func (digester *CodeDigester) Generate() (string, error) {
	upper := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digester.digits)), nil)
	n, err := rand.Int(rand.Reader, upper)
	if err != nil {
		return "", fmt.Errorf("sec: failed to generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", digester.digits, n), nil
}

// Digest returns the hex digest stored in place of the code.
func (digester *CodeDigester) Digest(purpose, subject, code string) string {
	mac := hmac.New(sha256.New, digester.key)
	mac.Write([]byte(purpose))
	mac.Write([]byte{0})
	mac.Write([]byte(subject))
	mac.Write([]byte{0})
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

// WellFormed reports whether code has the expected length and only digits.
func (digester *CodeDigester) WellFormed(code string) bool {
	if len(code) != digester.digits {
		return false
	}
	return strings.IndexFunc(code, func(r rune) bool { return r < '0' || r > '9' }) == -1
}
