package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/skyquote/skyquote/internal/models"
)

// MagicLinkStore backs magic-link tokens onto the auth_magic_links table.
type MagicLinkStore struct {
	db *gorm.DB
}

// NewMagicLinkStore wraps a database handle (or transaction).
func NewMagicLinkStore(db *gorm.DB) *MagicLinkStore {
	return &MagicLinkStore{db: db}
}

func (s *MagicLinkStore) Purpose() TokenPurpose { return PurposeMagicLink }

func (s *MagicLinkStore) Insert(ctx context.Context, rec *TokenRecord) error {
	link := models.MagicLink{
		IdentityID: rec.SubjectID,
		TokenHash:  rec.TokenHash,
		ExpiresAt:  rec.ExpiresAt,
	}
	if err := s.db.WithContext(ctx).Create(&link).Error; err != nil {
		return err
	}
	rec.ID = link.ID
	return nil
}

func (s *MagicLinkStore) FindByHash(ctx context.Context, hash string) (*TokenRecord, error) {
	var link models.MagicLink
	if err := s.db.WithContext(ctx).
		Where("token_hash = ?", hash).
		First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	return &TokenRecord{
		ID:         link.ID,
		Purpose:    PurposeMagicLink,
		SubjectID:  link.IdentityID,
		TokenHash:  link.TokenHash,
		ExpiresAt:  link.ExpiresAt,
		ConsumedAt: link.UsedAt,
	}, nil
}

// MarkConsumed flips used_at from NULL exactly once; concurrent attempts on
// the same link resolve to a single success.
func (s *MagicLinkStore) MarkConsumed(ctx context.Context, id string, at time.Time) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&models.MagicLink{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", at)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// InvitationTokenStore backs invitation tokens onto the pilot_invitations
// table. Invitations carry no expires_at column; validity derives from
// sent_at plus the configured TTL, and consumption maps to the invitation
// reaching a terminal status.
type InvitationTokenStore struct {
	db  *gorm.DB
	ttl time.Duration
}

// NewInvitationTokenStore wraps a database handle with the invitation TTL.
func NewInvitationTokenStore(db *gorm.DB, ttl time.Duration) *InvitationTokenStore {
	return &InvitationTokenStore{db: db, ttl: ttl}
}

func (s *InvitationTokenStore) Purpose() TokenPurpose { return PurposeInvitation }

// Insert attaches the digest to an already-created invitation row. Round
// creation happens in the round manager's transaction; subjectID is the
// invitation ID.
func (s *InvitationTokenStore) Insert(ctx context.Context, rec *TokenRecord) error {
	result := s.db.WithContext(ctx).
		Model(&models.PilotInvitation{}).
		Where("id = ?", rec.SubjectID).
		Update("token_hash", rec.TokenHash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	rec.ID = rec.SubjectID
	return nil
}

func (s *InvitationTokenStore) FindByHash(ctx context.Context, hash string) (*TokenRecord, error) {
	var invitation models.PilotInvitation
	if err := s.db.WithContext(ctx).
		Where("token_hash = ?", hash).
		First(&invitation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	rec := &TokenRecord{
		ID:        invitation.ID,
		Purpose:   PurposeInvitation,
		SubjectID: invitation.ID,
		TokenHash: invitation.TokenHash,
		ExpiresAt: invitation.SentAt.Add(s.ttl),
	}
	if !invitation.Status.Active() {
		when := invitation.UpdatedAt
		if invitation.Status == models.InvitationExpired {
			// Swept invitations read as expired, not consumed.
			rec.ExpiresAt = invitation.UpdatedAt.Add(-time.Second)
		} else {
			rec.ConsumedAt = &when
		}
	}
	return rec, nil
}

// MarkConsumed finalises the invitation as DECLINED, setting opened_at on
// the way if the pilot never viewed it. Only active invitations qualify.
func (s *InvitationTokenStore) MarkConsumed(ctx context.Context, id string, at time.Time) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&models.PilotInvitation{}).
		Where("id = ? AND status IN ?", id, []models.InvitationStatus{models.InvitationSent, models.InvitationOpened}).
		Updates(map[string]any{
			"status":     models.InvitationDeclined,
			"opened_at":  gorm.Expr("COALESCE(opened_at, ?)", at),
			"updated_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
