package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/skyquote/skyquote/internal/auth"
	"github.com/skyquote/skyquote/internal/models"
	"github.com/skyquote/skyquote/pkg/logger"
	"github.com/skyquote/skyquote/pkg/mail"
)

// Session is the result of consuming a magic link: a signed bearer token for
// the resolved identity.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Identity  *models.UserIdentity
}

// MagicLinkOption customises the MagicLinkService.
type MagicLinkOption func(*MagicLinkService)

// WithMagicLinkClock injects a custom time source.
func WithMagicLinkClock(clock func() time.Time) MagicLinkOption {
	return func(s *MagicLinkService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithMagicLinkMailer enables outbound login emails. Links are built against
// baseURL.
func WithMagicLinkMailer(mailer mail.Mailer, baseURL string) MagicLinkOption {
	return func(s *MagicLinkService) {
		s.mailer = mailer
		s.baseURL = baseURL
	}
}

// MagicLinkService implements passwordless login: a registered identity
// requests a link by email and trades the single-use token for a session.
type MagicLinkService struct {
	db         *gorm.DB
	tokens     *TokenService
	identities *IdentityService
	jwt        *auth.JWTService
	ttl        time.Duration
	now        func() time.Time
	mailer     mail.Mailer
	baseURL    string
	log        *zap.Logger
}

// NewMagicLinkService constructs a MagicLinkService. ttl bounds the link's
// validity window.
func NewMagicLinkService(db *gorm.DB, tokens *TokenService, identities *IdentityService, jwtService *auth.JWTService, ttl time.Duration, opts ...MagicLinkOption) (*MagicLinkService, error) {
	if db == nil {
		return nil, errors.New("magic link service: db is required")
	}
	if tokens == nil {
		return nil, errors.New("magic link service: token service is required")
	}
	if identities == nil {
		return nil, errors.New("magic link service: identity service is required")
	}
	if jwtService == nil {
		return nil, errors.New("magic link service: jwt service is required")
	}
	if ttl <= 0 {
		return nil, errors.New("magic link service: ttl must be positive")
	}
	service := &MagicLinkService{
		db:         db,
		tokens:     tokens,
		identities: identities,
		jwt:        jwtService,
		ttl:        ttl,
		now:        time.Now,
		log:        logger.WithModule("magic_link"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Request issues a fresh magic link for the identity registered under email.
// Unknown emails return ErrIdentityNotFound; the HTTP boundary deliberately
// renders that the same as success so the endpoint cannot be used to probe
// which emails are registered.
func (s *MagicLinkService) Request(ctx context.Context, email string) error {
	ctx = ensureContext(ctx)

	identity, err := s.identities.Resolve(ctx, email)
	if err != nil {
		return err
	}

	raw, _, err := s.tokens.Issue(ctx, NewMagicLinkStore(s.db), identity.ID, s.ttl)
	if err != nil {
		return err
	}

	s.log.Info("magic link issued",
		zap.String("identity_id", identity.ID),
		zap.String("role", string(identity.Role)))

	if s.mailer != nil {
		msg := mail.Message{
			To:      []string{identity.Email},
			Subject: "Your sign-in link",
			Body: fmt.Sprintf("Sign in here:\r\n\r\n%s/auth/magic/%s\r\n\r\nThe link works once and expires in %s.\r\n",
				s.baseURL, raw, s.ttl),
		}
		if err := s.mailer.Send(ctx, msg); err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
			s.log.Warn("magic link email delivery failed",
				zap.String("identity_id", identity.ID),
				zap.Error(err))
		}
	}
	return nil
}

// Consume trades a raw magic link token for a session. The consumption flip
// is atomic; of N concurrent attempts with the same token exactly one gets a
// session and the rest observe ErrTokenConsumed.
func (s *MagicLinkService) Consume(ctx context.Context, rawToken string) (*Session, error) {
	ctx = ensureContext(ctx)

	store := NewMagicLinkStore(s.db)
	rec, err := s.tokens.Validate(ctx, store, rawToken)
	if err != nil {
		return nil, err
	}
	if _, err := s.tokens.Consume(ctx, store, rec); err != nil {
		return nil, err
	}

	identity, err := s.identities.ResolveByID(ctx, rec.SubjectID)
	if err != nil {
		return nil, err
	}

	signed, expiresAt, err := s.jwt.Generate(identity)
	if err != nil {
		return nil, err
	}

	s.log.Info("magic link consumed",
		zap.String("identity_id", identity.ID),
		zap.String("role", string(identity.Role)))

	return &Session{Token: signed, ExpiresAt: expiresAt, Identity: identity}, nil
}

// PurgeExpired deletes magic links that can never be consumed again: expired
// unused links, and used links past a retention window.
func (s *MagicLinkService) PurgeExpired(ctx context.Context, retainUsed time.Duration) (int64, error) {
	ctx = ensureContext(ctx)

	now := s.now()
	result := s.db.WithContext(ctx).
		Where("(used_at IS NULL AND expires_at < ?) OR (used_at IS NOT NULL AND used_at < ?)", now, now.Add(-retainUsed)).
		Delete(&models.MagicLink{})
	if result.Error != nil {
		return 0, fmt.Errorf("magic link service: purge: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		s.log.Info("purged dead magic links", zap.Int64("count", result.RowsAffected))
	}
	return result.RowsAffected, nil
}
