package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/skyquote/skyquote/internal/models"
	"github.com/skyquote/skyquote/pkg/logger"
	"github.com/skyquote/skyquote/pkg/mail"
	"github.com/skyquote/skyquote/pkg/metrics"
)

var (
	// ErrPilotNotFound indicates a referenced pilot does not exist.
	ErrPilotNotFound = errors.New("invitation: pilot not found")
	// ErrActiveInvitation rejects a round that would give a pilot a second
	// live invitation for the same enquiry.
	ErrActiveInvitation = errors.New("invitation: pilot already holds an active invitation for this enquiry")
	// ErrNoPilots rejects an empty round.
	ErrNoPilots = errors.New("invitation: at least one pilot is required")
)

var activeStatuses = []models.InvitationStatus{models.InvitationSent, models.InvitationOpened}

// RoundResult reports the outcome of one invitation round.
type RoundResult struct {
	Round       int
	Invitations []models.PilotInvitation
	// Reinvited lists pilots who previously declined this enquiry and were
	// invited again anyway. The round proceeds; callers surface the list as
	// a warning.
	Reinvited []string
}

// InvitationOption customises the InvitationService.
type InvitationOption func(*InvitationService)

// WithInvitationClock injects a custom time source.
func WithInvitationClock(clock func() time.Time) InvitationOption {
	return func(s *InvitationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithInvitationMailer enables outbound invitation emails. Links are built
// against baseURL.
func WithInvitationMailer(mailer mail.Mailer, baseURL string) InvitationOption {
	return func(s *InvitationService) {
		s.mailer = mailer
		s.baseURL = baseURL
	}
}

// InvitationService manages invitation rounds for an enquiry: issuing tokens,
// recording pilot responses and sweeping stale invitations.
type InvitationService struct {
	db      *gorm.DB
	tokens  *TokenService
	ttl     time.Duration
	now     func() time.Time
	mailer  mail.Mailer
	baseURL string
	log     *zap.Logger
}

// NewInvitationService constructs an InvitationService. ttl bounds how long
// an invitation link stays usable after being sent.
func NewInvitationService(db *gorm.DB, tokens *TokenService, ttl time.Duration, opts ...InvitationOption) (*InvitationService, error) {
	if db == nil {
		return nil, errors.New("invitation service: db is required")
	}
	if tokens == nil {
		return nil, errors.New("invitation service: token service is required")
	}
	if ttl <= 0 {
		return nil, errors.New("invitation service: ttl must be positive")
	}
	service := &InvitationService{
		db:     db,
		tokens: tokens,
		ttl:    ttl,
		now:    time.Now,
		log:    logger.WithModule("invitations"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// StartRound issues the next invitation round for an enquiry. The round
// number, invitation rows, token digests, the status transition (on the
// first round) and the audit event all commit atomically; emails go out
// after commit and never roll the round back.
func (s *InvitationService) StartRound(ctx context.Context, enquiryID string, pilotIDs []string, actor Actor) (*RoundResult, error) {
	ctx = ensureContext(ctx)

	pilotIDs = dedupeIDs(pilotIDs)
	if len(pilotIDs) == 0 {
		return nil, ErrNoPilots
	}

	var (
		result RoundResult
		pilots map[string]models.Pilot
		raws   map[string]string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		enquiry, err := lockEnquiry(tx, enquiryID)
		if err != nil {
			return err
		}

		switch enquiry.Status {
		case models.EnquiryAckSent:
			now := s.now()
			update := tx.Model(&models.Enquiry{}).
				Where("id = ? AND status = ?", enquiry.ID, models.EnquiryAckSent).
				Updates(map[string]any{"status": models.EnquiryInvitesSent, "updated_at": now})
			if update.Error != nil {
				return fmt.Errorf("invitation service: transition enquiry: %w", update.Error)
			}
			if update.RowsAffected == 0 {
				return &InvalidTransitionError{Current: enquiry.Status, Trigger: models.TriggerBeginInviting}
			}
		case models.EnquiryInvitesSent:
			// Later rounds need no status change.
		default:
			return &InvalidTransitionError{Current: enquiry.Status, Trigger: models.TriggerBeginInviting}
		}

		pilots, err = loadPilots(tx, pilotIDs)
		if err != nil {
			return err
		}

		var activeCount int64
		if err := tx.Model(&models.PilotInvitation{}).
			Where("enquiry_id = ? AND pilot_id IN ? AND status IN ?", enquiryID, pilotIDs, activeStatuses).
			Count(&activeCount).Error; err != nil {
			return fmt.Errorf("invitation service: check active invitations: %w", err)
		}
		if activeCount > 0 {
			return ErrActiveInvitation
		}

		if err := tx.Model(&models.PilotInvitation{}).
			Distinct("pilot_id").
			Where("enquiry_id = ? AND pilot_id IN ? AND status = ?", enquiryID, pilotIDs, models.InvitationDeclined).
			Pluck("pilot_id", &result.Reinvited).Error; err != nil {
			return fmt.Errorf("invitation service: check prior declines: %w", err)
		}

		var maxRound int
		if err := tx.Model(&models.PilotInvitation{}).
			Where("enquiry_id = ?", enquiryID).
			Select("COALESCE(MAX(invite_round), 0)").
			Scan(&maxRound).Error; err != nil {
			return fmt.Errorf("invitation service: max round: %w", err)
		}
		result.Round = maxRound + 1

		store := NewInvitationTokenStore(tx, s.ttl)
		raws = make(map[string]string, len(pilotIDs))
		sentAt := s.now()
		for _, pilotID := range pilotIDs {
			invitation := models.PilotInvitation{
				EnquiryID:   enquiryID,
				PilotID:     pilotID,
				InviteRound: result.Round,
				Status:      models.InvitationSent,
				SentAt:      sentAt,
			}
			if err := tx.Create(&invitation).Error; err != nil {
				return fmt.Errorf("invitation service: create invitation: %w", err)
			}

			raw, _, err := s.tokens.Issue(ctx, store, invitation.ID, s.ttl)
			if err != nil {
				return err
			}
			raws[invitation.ID] = raw
			result.Invitations = append(result.Invitations, invitation)
		}

		return appendEvent(tx, enquiryID, actor, models.EventInvitesStarted, models.RoundStartedPayload{
			Round:     result.Round,
			PilotIDs:  pilotIDs,
			Reinvited: result.Reinvited,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.InvitationsSent.Add(float64(len(result.Invitations)))
	metrics.EnquiryTransitions.WithLabelValues(string(models.TriggerBeginInviting), "ok").Inc()
	s.log.Info("invitation round issued",
		zap.String("enquiry_id", enquiryID),
		zap.Int("round", result.Round),
		zap.Int("pilots", len(result.Invitations)),
		zap.Int("reinvited_decliners", len(result.Reinvited)))

	s.deliver(ctx, pilots, result.Invitations, raws)
	return &result, nil
}

// Open resolves an invitation link for viewing and marks the invitation
// OPENED on first view. Reopening an already-opened link is a no-op; the
// link stays usable until it is declined, accepted or expires.
func (s *InvitationService) Open(ctx context.Context, rawToken string) (*models.PilotInvitation, error) {
	ctx = ensureContext(ctx)

	var invitation *models.PilotInvitation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := NewInvitationTokenStore(tx, s.ttl)
		rec, err := s.tokens.Validate(ctx, store, rawToken)
		if err != nil {
			return err
		}

		now := s.now()
		update := tx.Model(&models.PilotInvitation{}).
			Where("id = ? AND status = ?", rec.ID, models.InvitationSent).
			Updates(map[string]any{
				"status":     models.InvitationOpened,
				"opened_at":  now,
				"updated_at": now,
			})
		if update.Error != nil {
			return fmt.Errorf("invitation service: mark opened: %w", update.Error)
		}

		invitation, err = loadInvitation(tx, rec.ID)
		if err != nil {
			return err
		}

		if update.RowsAffected == 1 {
			return appendEvent(tx, invitation.EnquiryID,
				Actor{Type: models.ActorPilot, ID: invitation.PilotID},
				models.EventInviteResponded, models.InviteResponsePayload{
					InvitationID: invitation.ID,
					PilotID:      invitation.PilotID,
					Response:     models.InvitationOpened,
				})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invitation, nil
}

// Decline finalises an invitation as DECLINED. The token is consumed in the
// process; exactly one of N concurrent declines on the same link succeeds.
func (s *InvitationService) Decline(ctx context.Context, rawToken string) (*models.PilotInvitation, error) {
	ctx = ensureContext(ctx)

	var invitation *models.PilotInvitation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := NewInvitationTokenStore(tx, s.ttl)
		rec, err := s.tokens.Validate(ctx, store, rawToken)
		if err != nil {
			return err
		}
		if _, err := s.tokens.Consume(ctx, store, rec); err != nil {
			return err
		}

		invitation, err = loadInvitation(tx, rec.ID)
		if err != nil {
			return err
		}

		return appendEvent(tx, invitation.EnquiryID,
			Actor{Type: models.ActorPilot, ID: invitation.PilotID},
			models.EventInviteResponded, models.InviteResponsePayload{
				InvitationID: invitation.ID,
				PilotID:      invitation.PilotID,
				Response:     models.InvitationDeclined,
			})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("invitation declined",
		zap.String("invitation_id", invitation.ID),
		zap.String("enquiry_id", invitation.EnquiryID))
	return invitation, nil
}

// ExpireStale sweeps invitations whose TTL has elapsed without a response.
// It is the only writer of the EXPIRED status and is safe to run repeatedly;
// a second sweep over the same rows matches nothing.
func (s *InvitationService) ExpireStale(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	now := s.now()
	cutoff := now.Add(-s.ttl)
	result := s.db.WithContext(ctx).
		Model(&models.PilotInvitation{}).
		Where("status IN ? AND sent_at < ?", activeStatuses, cutoff).
		Updates(map[string]any{"status": models.InvitationExpired, "updated_at": now})
	if result.Error != nil {
		return 0, fmt.Errorf("invitation service: expire stale: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		metrics.InvitationsExpired.Add(float64(result.RowsAffected))
		s.log.Info("expired stale invitations", zap.Int64("count", result.RowsAffected))
	}
	return result.RowsAffected, nil
}

// Rounds lists every invitation for an enquiry grouped by ascending round.
func (s *InvitationService) Rounds(ctx context.Context, enquiryID string) ([]models.PilotInvitation, error) {
	ctx = ensureContext(ctx)

	var invitations []models.PilotInvitation
	if err := s.db.WithContext(ctx).
		Preload("Pilot").
		Where("enquiry_id = ?", enquiryID).
		Order("invite_round ASC, sent_at ASC").
		Find(&invitations).Error; err != nil {
		return nil, fmt.Errorf("invitation service: rounds: %w", err)
	}
	return invitations, nil
}

// deliver sends invitation emails after the round has committed. Delivery
// failures are logged and do not affect the round.
func (s *InvitationService) deliver(ctx context.Context, pilots map[string]models.Pilot, invitations []models.PilotInvitation, raws map[string]string) {
	if s.mailer == nil {
		return
	}
	for _, invitation := range invitations {
		pilot, ok := pilots[invitation.PilotID]
		if !ok || pilot.Email == "" {
			continue
		}
		msg := mail.Message{
			To:      []string{pilot.Email},
			Subject: "New drone survey enquiry available",
			Body: fmt.Sprintf("Hi %s,\r\n\r\nA new survey enquiry matches your profile. View the details and respond here:\r\n\r\n%s/invite/%s\r\n\r\nThis link expires %s after sending.\r\n",
				pilot.Name, s.baseURL, raws[invitation.ID], s.ttl),
		}
		if err := s.mailer.Send(ctx, msg); err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
			s.log.Warn("invitation email delivery failed",
				zap.String("invitation_id", invitation.ID),
				zap.Error(err))
		}
	}
}

func loadPilots(tx *gorm.DB, pilotIDs []string) (map[string]models.Pilot, error) {
	var rows []models.Pilot
	if err := tx.Where("id IN ?", pilotIDs).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("invitation service: load pilots: %w", err)
	}
	pilots := make(map[string]models.Pilot, len(rows))
	for _, pilot := range rows {
		pilots[pilot.ID] = pilot
	}
	for _, id := range pilotIDs {
		if _, ok := pilots[id]; !ok {
			return nil, fmt.Errorf("invitation service: pilot %s: %w", id, ErrPilotNotFound)
		}
	}
	return pilots, nil
}

func loadInvitation(tx *gorm.DB, id string) (*models.PilotInvitation, error) {
	var invitation models.PilotInvitation
	if err := tx.Preload("Enquiry").Where("id = ?", id).First(&invitation).Error; err != nil {
		return nil, fmt.Errorf("invitation service: load invitation: %w", err)
	}
	return &invitation, nil
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	var result []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
