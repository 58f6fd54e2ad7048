// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

var (
	ErrInvalidAdminKey = errors.New("invalid admin key")
	ErrInvalidToken    = errors.New("invalid token format")
)

// voterTokenBytes is the entropy of a voter token (192 bits).
const voterTokenBytes = 24

// HMAC purposes. Each derived value mixes in its own label so an admin key
// can never be replayed as a slug or the other way round.
const (
	purposeAdmin = "admin-key"
	purposeSlug  = "share-slug"
	purposeIP    = "ip-hash"
)

func mac(salt, purpose, value string) []byte {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(purpose))
	h.Write([]byte{0})
	h.Write([]byte(value))
	return h.Sum(nil)
}

// NewID returns a random (version 4) UUID for a database record.
func NewID() (uuid.UUID, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to generate ID: %w", err)
	}
	return id, nil
}

// GenerateAdminKey creates an HMAC-based admin key for a poll.
// This is deterministic and verifiable, so the key is never stored.
func GenerateAdminKey(pollID, salt string) string {
	return base64.RawURLEncoding.EncodeToString(mac(salt, purposeAdmin, pollID))
}

// ValidateAdminKey checks if the provided admin key is valid for the poll
func ValidateAdminKey(pollID, adminKey, salt string) error {
	expected := GenerateAdminKey(pollID, salt)
	if !hmac.Equal([]byte(adminKey), []byte(expected)) {
		return ErrInvalidAdminKey
	}
	return nil
}

// GenerateVoterToken creates a random secure token for a voter.
// The token identifies the voter's ballot and allows replacing it.
func GenerateVoterToken() (string, error) {
	b := make([]byte, voterTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate voter token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// CheckVoterToken rejects values that could not have come from
// GenerateVoterToken before they reach the database.
func CheckVoterToken(token string) error {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(b) != voterTokenBytes {
		return ErrInvalidToken
	}
	return nil
}

// GenerateShareSlug creates a short, deterministic URL slug for a poll.
// The first 8 bytes of the HMAC are base62 encoded.
func GenerateShareSlug(pollID, salt string) string {
	return base62Encode(mac(salt, purposeSlug, pollID)[:8])
}

// base62Encode converts bytes to base62 (0-9, a-z, A-Z)
func base62Encode(data []byte) string {
	const base62Chars = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

	num := new(big.Int).SetBytes(data)
	if num.Sign() == 0 {
		return "0"
	}

	base := big.NewInt(62)
	mod := new(big.Int)
	var out []byte
	for num.Sign() > 0 {
		num.DivMod(num, base, mod)
		out = append(out, base62Chars[mod.Int64()])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

// HashIP creates a one-way hash of an IP address for privacy.
// Returns the first 16 hex chars (64 bits), enough for deduplication.
func HashIP(ip, salt string) string {
	return hex.EncodeToString(mac(salt, purposeIP, ip)[:8])
}
