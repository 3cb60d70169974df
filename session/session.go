// Package session persists the signed-in user's bearer token. The token is kept
// apart from the cart, sealed with NaCl secretbox, and dropped once it expires.
package session

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/nacl/secretbox"

	"library-storefront/library"
	"library-storefront/storage"
)

// StorageKey is where the sealed token is persisted.
const StorageKey = "library-auth-token"

const nonceLength = 24

var (
	// ErrExpired is returned by Set for a token that has already expired.
	ErrExpired = errors.New("session: token expired")
	// ErrEmptyToken is returned by Set for an empty token.
	ErrEmptyToken = errors.New("session: empty token")

	errSealed = errors.New("session: cannot open sealed token")
)

type record struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	User      *library.User `json:"user,omitempty"`
}

// Session holds at most one token. It implements apiclient.TokenSource.
type Session struct {
	mu     sync.RWMutex
	store  storage.Store
	key    *[keyLength]byte
	logger *slog.Logger
	now    func() time.Time

	current *record
}

// New returns an empty session sealed with key. Call Load to restore a saved token.
func New(store storage.Store, key *[keyLength]byte, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{store: store, key: key, logger: logger, now: time.Now}
}

// Load restores the persisted token. Missing, unreadable and expired tokens
// leave the session signed out without an error; an expired one is deleted.
func (s *Session) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil

	sealed, err := s.store.Get(ctx, StorageKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("load session", "error", err)
		}
		return
	}

	var rec record
	plain, err := s.open(sealed)
	if err == nil {
		err = json.Unmarshal(plain, &rec)
	}
	if err != nil || rec.Token == "" {
		s.logger.Warn("discarding unreadable session", "error", err)
		s.deleteLocked(ctx)
		return
	}

	if s.expired(&rec) {
		s.logger.Debug("discarding expired session", "expires_at", rec.ExpiresAt)
		s.deleteLocked(ctx)
		return
	}
	s.current = &rec
}

// Set stores token. When expiresAt is zero the expiry is read from the token's
// JWT exp claim, if it has one; tokens without either never expire.
func (s *Session) Set(ctx context.Context, token string, expiresAt time.Time, user *library.User) error {
	if token == "" {
		return ErrEmptyToken
	}
	if expiresAt.IsZero() {
		expiresAt = tokenExpiry(token)
	}
	rec := &record{Token: token, ExpiresAt: expiresAt, User: user}
	if s.expired(rec) {
		return ErrExpired
	}

	plain, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	sealed, err := s.seal(plain)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Put(ctx, StorageKey, sealed); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	s.current = rec
	return nil
}

// Clear signs out and removes the persisted token.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	if err := s.store.Delete(ctx, StorageKey); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Token returns the bearer token, or "" when signed out or expired.
func (s *Session) Token() string {
	s.mu.RLock()
	rec := s.current
	s.mu.RUnlock()
	if rec == nil {
		return ""
	}
	if s.expired(rec) {
		s.mu.Lock()
		if s.current == rec {
			s.current = nil
		}
		s.mu.Unlock()
		return ""
	}
	return rec.Token
}

// Authenticated reports whether a usable token is present.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// User returns the user the token was issued to, when the login response said.
func (s *Session) User() (library.User, bool) {
	if !s.Authenticated() {
		return library.User{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil || s.current.User == nil {
		return library.User{}, false
	}
	return *s.current.User, true
}

// ExpiresAt returns the token expiry; zero when signed out or never expiring.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return time.Time{}
	}
	return s.current.ExpiresAt
}

// Shutdown satisfies the container's shutdown hook; the store is owned elsewhere.
func (s *Session) Shutdown() error { return nil }

func (s *Session) expired(rec *record) bool {
	return !rec.ExpiresAt.IsZero() && !s.now().Before(rec.ExpiresAt)
}

func (s *Session) deleteLocked(ctx context.Context) {
	if err := s.store.Delete(ctx, StorageKey); err != nil {
		s.logger.Warn("delete session", "error", err)
	}
}

func (s *Session) seal(plain []byte) ([]byte, error) {
	var nonce [nonceLength]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plain, &nonce, s.key), nil
}

func (s *Session) open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceLength {
		return nil, errSealed
	}
	var nonce [nonceLength]byte
	copy(nonce[:], sealed[:nonceLength])
	plain, ok := secretbox.Open(nil, sealed[nonceLength:], &nonce, s.key)
	if !ok {
		return nil, errSealed
	}
	return plain, nil
}

// tokenExpiry reads the exp claim. The signature is not verified.
func tokenExpiry(token string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
