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
	"net/http"
	"strings"
)

var (
	ErrAuthRequired = errors.New("voter identity required")
	ErrInvalidToken = errors.New("invalid token format")
)

// VoterTokenHeader carries the voter token on API requests
const VoterTokenHeader = "X-Voter-Token"

// GenerateID creates a random hex ID of the specified byte length
func GenerateID(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// IssueVoterToken creates a token binding voterID to an HMAC signature.
// Format: <voterID>.<signature>
func IssueVoterToken(voterID, salt string) string {
	return voterID + "." + sign(voterID, salt)
}

// VoterFromToken verifies a token and returns the voter id it carries
func VoterFromToken(token, salt string) (string, error) {
	if token == "" {
		return "", ErrAuthRequired
	}

	i := strings.LastIndexByte(token, '.')
	if i <= 0 || i == len(token)-1 {
		return "", ErrInvalidToken
	}

	voterID, sig := token[:i], token[i+1:]
	if !hmac.Equal([]byte(sig), []byte(sign(voterID, salt))) {
		return "", ErrInvalidToken
	}
	return voterID, nil
}

// VoterFromRequest reads the voter token from X-Voter-Token, falling back to
// an Authorization: Bearer header
func VoterFromRequest(r *http.Request, salt string) (string, error) {
	token := r.Header.Get(VoterTokenHeader)
	if token == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
	}
	return VoterFromToken(token, salt)
}

func sign(voterID, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(voterID))
	sum := h.Sum(nil)
	// Use URL-safe base64 and trim padding for cleaner tokens
	return strings.TrimRight(base64.URLEncoding.EncodeToString(sum), "=")
}
