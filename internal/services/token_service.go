package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/skyquote/skyquote/pkg/metrics"
	"github.com/skyquote/skyquote/pkg/token"
)

// TokenPurpose distinguishes the two token families. They share generation,
// hashing and validation; only the backing entity differs.
type TokenPurpose string

const (
	PurposeMagicLink  TokenPurpose = "magic_link"
	PurposeInvitation TokenPurpose = "invitation"
)

var (
	// ErrTokenNotFound indicates no stored hash matches the presented token.
	ErrTokenNotFound = errors.New("token: not found")
	// ErrTokenExpired indicates the token's lifetime has elapsed.
	ErrTokenExpired = errors.New("token: expired")
	// ErrTokenConsumed signals the one-time consumption marker is already set.
	ErrTokenConsumed = errors.New("token: already consumed")
)

// TokenRecord is the store-independent view of a stored single-use token.
type TokenRecord struct {
	ID         string
	Purpose    TokenPurpose
	SubjectID  string
	TokenHash  string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}

// TokenStore persists token records against their backing entity.
type TokenStore interface {
	Purpose() TokenPurpose
	Insert(ctx context.Context, rec *TokenRecord) error
	FindByHash(ctx context.Context, hash string) (*TokenRecord, error)
	// MarkConsumed performs the atomic conditional update flipping the
	// consumption marker; it reports false when another caller won the race.
	MarkConsumed(ctx context.Context, id string, at time.Time) (bool, error)
}

// TokenOption customises TokenService behaviour.
type TokenOption func(*TokenService)

// WithTokenSize adjusts the number of random bytes in generated tokens.
func WithTokenSize(size int) TokenOption {
	return func(s *TokenService) {
		if size > 0 {
			s.tokenLength = size
		}
	}
}

// WithTokenClock injects a custom time source, primarily for testing.
func WithTokenClock(clock func() time.Time) TokenOption {
	return func(s *TokenService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// TokenService issues, validates and consumes single-use opaque tokens. Raw
// tokens leave this service exactly once, at issuance; only digests are
// stored.
type TokenService struct {
	tokenLength int
	now         func() time.Time
}

// NewTokenService constructs a TokenService.
func NewTokenService(opts ...TokenOption) *TokenService {
	service := &TokenService{
		tokenLength: token.DefaultLength,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Issue generates a raw token, persists its digest against subjectID through
// the store, and returns the raw token alongside the stored record.
func (s *TokenService) Issue(ctx context.Context, store TokenStore, subjectID string, ttl time.Duration) (string, *TokenRecord, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return "", nil, errors.New("token service: subject id is required")
	}
	if ttl <= 0 {
		return "", nil, errors.New("token service: ttl must be positive")
	}

	raw, err := token.Generate(s.tokenLength)
	if err != nil {
		return "", nil, fmt.Errorf("token service: generate: %w", err)
	}

	rec := &TokenRecord{
		Purpose:   store.Purpose(),
		SubjectID: subjectID,
		TokenHash: token.Digest(raw),
		ExpiresAt: s.now().Add(ttl),
	}
	if err := store.Insert(ctx, rec); err != nil {
		return "", nil, fmt.Errorf("token service: persist: %w", err)
	}

	metrics.TokensIssued.WithLabelValues(string(store.Purpose())).Inc()
	return raw, rec, nil
}

// Validate resolves a presented raw token to its record. Lookup is by exact
// digest match; not-found, expired and consumed surface as distinct error
// kinds for logging while the HTTP boundary renders them uniformly enough
// that an external prober cannot separate them by timing.
func (s *TokenService) Validate(ctx context.Context, store TokenStore, raw string) (*TokenRecord, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrTokenNotFound
	}

	purpose := string(store.Purpose())
	rec, err := store.FindByHash(ctx, token.Digest(raw))
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			metrics.TokenValidations.WithLabelValues(purpose, "not_found").Inc()
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("token service: lookup: %w", err)
	}

	if s.now().After(rec.ExpiresAt) {
		metrics.TokenValidations.WithLabelValues(purpose, "expired").Inc()
		return nil, ErrTokenExpired
	}
	if rec.ConsumedAt != nil {
		metrics.TokenValidations.WithLabelValues(purpose, "consumed").Inc()
		return nil, ErrTokenConsumed
	}

	metrics.TokenValidations.WithLabelValues(purpose, "ok").Inc()
	return rec, nil
}

// Consume atomically flips the record's consumption marker. Exactly one of N
// concurrent attempts succeeds; the rest observe ErrTokenConsumed.
func (s *TokenService) Consume(ctx context.Context, store TokenStore, rec *TokenRecord) (*TokenRecord, error) {
	if rec == nil {
		return nil, errors.New("token service: record is required")
	}

	now := s.now()
	ok, err := store.MarkConsumed(ctx, rec.ID, now)
	if err != nil {
		return nil, fmt.Errorf("token service: consume: %w", err)
	}
	if !ok {
		return nil, ErrTokenConsumed
	}

	consumed := *rec
	consumed.ConsumedAt = &now
	return &consumed, nil
}
