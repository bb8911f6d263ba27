// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gate

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// TokenLifetime is how long an issued token remains valid.
	// Matches the 24-hour login cookie the web client used.
	TokenLifetime = 24 * time.Hour

	// tokenPrefix marks gate-issued tokens.
	tokenPrefix = "kms_"

	// tokenBytes is the entropy of an issued token.
	tokenBytes = 32
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrBadCredentials is returned when the username or password is wrong.
	// Unknown user and wrong password are deliberately indistinguishable.
	ErrBadCredentials = errors.New("invalid username or password")

	// ErrTokenInvalid is returned for unknown or expired tokens.
	ErrTokenInvalid = errors.New("invalid or expired token")
)

// =============================================================================
// GATE
// =============================================================================

// Credential pairs a username with its bcrypt password hash.
type Credential struct {
	User         string
	PasswordHash string
}

// Gate validates logins against a fixed credential list and tracks
// issued tokens in memory. Tokens do not survive a daemon restart;
// clients log in again.
type Gate struct {
	mu     sync.RWMutex
	creds  map[string]string // user -> bcrypt hash
	tokens map[string]tokenRecord
	now    func() time.Time
}

type tokenRecord struct {
	user      string
	expiresAt time.Time
}

// dummyHash is a valid bcrypt hash that matches no gate password.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("gate-timing-pad"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}()

// New creates a gate for the given credential list.
func New(creds []Credential) *Gate {
	g := &Gate{
		creds:  make(map[string]string, len(creds)),
		tokens: make(map[string]tokenRecord),
		now:    time.Now,
	}
	for _, c := range creds {
		g.creds[c.User] = c.PasswordHash
	}
	return g
}

// HashPassword produces a bcrypt hash suitable for a Credential.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Login checks the credentials and issues a token on success.
func (g *Gate) Login(user, password string) (string, error) {
	g.mu.RLock()
	hash, ok := g.creds[user]
	g.mu.RUnlock()

	if !ok {
		// SECURITY: Burn a comparison anyway so unknown users cost the
		// same as wrong passwords.
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return "", ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", ErrBadCredentials
	}

	token, err := generateToken()
	if err != nil {
		return "", err
	}

	g.mu.Lock()
	g.tokens[token] = tokenRecord{user: user, expiresAt: g.now().Add(TokenLifetime)}
	g.mu.Unlock()

	return token, nil
}

// Validate resolves a token to its user, expiring it when past its TTL.
func (g *Gate) Validate(token string) (string, error) {
	g.mu.RLock()
	rec, ok := g.tokens[token]
	g.mu.RUnlock()

	if !ok {
		return "", ErrTokenInvalid
	}
	if g.now().After(rec.expiresAt) {
		g.mu.Lock()
		delete(g.tokens, token)
		g.mu.Unlock()
		return "", ErrTokenInvalid
	}
	return rec.user, nil
}

// Revoke invalidates a token. Unknown tokens are a no-op.
func (g *Gate) Revoke(token string) {
	g.mu.Lock()
	delete(g.tokens, token)
	g.mu.Unlock()
}

func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return tokenPrefix + hex.EncodeToString(buf), nil
}
