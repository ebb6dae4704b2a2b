package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/skyquote/skyquote/internal/models"
	"github.com/skyquote/skyquote/pkg/metrics"
)

var (
	// ErrEnquiryNotFound indicates the enquiry does not exist.
	ErrEnquiryNotFound = errors.New("enquiry: not found")
	// ErrInvalidTransition is the sentinel matched by errors.Is for any
	// rejected state machine edge.
	ErrInvalidTransition = errors.New("enquiry: invalid transition")
)

// InvalidTransitionError identifies the current status and the rejected
// trigger. It matches ErrInvalidTransition under errors.Is.
type InvalidTransitionError struct {
	Current models.EnquiryStatus
	Trigger models.EnquiryTrigger
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("enquiry: invalid transition: %s not allowed from %s", e.Trigger, e.Current)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Actor identifies who triggered a state-affecting action.
type Actor struct {
	Type models.ActorType
	ID   string
}

// SystemActor is the actor recorded for automated actions.
var SystemActor = Actor{Type: models.ActorSystem}

// CreateEnquiryInput carries the client-submitted request fields.
type CreateEnquiryInput struct {
	RequesterName  string
	RequesterEmail string
	RequesterPhone string
	Service        string
	SiteLocation   string
	FlexibleDates  bool
	Details        string
	ConsentContact bool
	ConsentMarket  bool
	PolicyVersion  string
	SourceForm     string
}

// EnquiryOption customises the EnquiryService.
type EnquiryOption func(*EnquiryService)

// WithEnquiryClock injects a custom time source.
func WithEnquiryClock(clock func() time.Time) EnquiryOption {
	return func(s *EnquiryService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// EnquiryService owns the enquiry record and its append-only event log, and
// enforces the allowed status transitions.
type EnquiryService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewEnquiryService constructs an EnquiryService.
func NewEnquiryService(db *gorm.DB, opts ...EnquiryOption) (*EnquiryService, error) {
	if db == nil {
		return nil, errors.New("enquiry service: db is required")
	}
	service := &EnquiryService{db: db, now: time.Now}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Create records a new enquiry with status NEW and appends the creation
// event in the same transaction.
func (s *EnquiryService) Create(ctx context.Context, input CreateEnquiryInput) (*models.Enquiry, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(input.RequesterEmail) == "" {
		return nil, errors.New("enquiry service: requester email is required")
	}
	if strings.TrimSpace(input.Service) == "" {
		return nil, errors.New("enquiry service: service is required")
	}
	if strings.TrimSpace(input.SiteLocation) == "" {
		return nil, errors.New("enquiry service: site location is required")
	}

	enquiry := &models.Enquiry{
		RequesterName:  strings.TrimSpace(input.RequesterName),
		RequesterEmail: normaliseEmail(input.RequesterEmail),
		RequesterPhone: strings.TrimSpace(input.RequesterPhone),
		Service:        strings.TrimSpace(input.Service),
		SiteLocation:   strings.TrimSpace(input.SiteLocation),
		FlexibleDates:  input.FlexibleDates,
		Details:        strings.TrimSpace(input.Details),
		ConsentContact: input.ConsentContact,
		ConsentMarket:  input.ConsentMarket,
		PolicyVersion:  strings.TrimSpace(input.PolicyVersion),
		SourceForm:     strings.TrimSpace(input.SourceForm),
		Status:         models.EnquiryNew,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(enquiry).Error; err != nil {
			return fmt.Errorf("enquiry service: create: %w", err)
		}
		return appendEvent(tx, enquiry.ID, SystemActor, models.EventEnquiryCreated, models.StatusChangePayload{
			To: models.EnquiryNew,
		})
	})
	if err != nil {
		return nil, err
	}
	return enquiry, nil
}

// Transition applies one trigger to the enquiry. Status update and event
// append are one atomic unit; invalid edges fail with InvalidTransitionError
// and write nothing. Re-closing an already closed enquiry is a no-op.
func (s *EnquiryService) Transition(ctx context.Context, enquiryID string, trigger models.EnquiryTrigger, actor Actor) (*models.Enquiry, error) {
	ctx = ensureContext(ctx)

	var enquiry *models.Enquiry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := lockEnquiry(tx, enquiryID)
		if err != nil {
			return err
		}

		if current.Status == models.EnquiryClosed && trigger == models.TriggerClose {
			// Duplicate close requests are tolerated; closed_at stays stable.
			enquiry = current
			return nil
		}

		next, ok := models.NextStatus(current.Status, trigger)
		if !ok {
			return &InvalidTransitionError{Current: current.Status, Trigger: trigger}
		}

		now := s.now()
		updates := map[string]any{
			"status":     next,
			"updated_at": now,
		}
		if next == models.EnquiryClosed {
			updates["closed_at"] = now
		}

		result := tx.Model(&models.Enquiry{}).
			Where("id = ? AND status = ?", current.ID, current.Status).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("enquiry service: update status: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			// Concurrent writer moved the enquiry first.
			return &InvalidTransitionError{Current: current.Status, Trigger: trigger}
		}

		if err := appendEvent(tx, current.ID, actor, eventTypeFor(trigger), models.StatusChangePayload{
			From:    current.Status,
			To:      next,
			Trigger: trigger,
		}); err != nil {
			return err
		}

		current.Status = next
		current.UpdatedAt = now
		if next == models.EnquiryClosed {
			current.ClosedAt = &now
		}
		enquiry = current
		return nil
	})
	if err != nil {
		metrics.EnquiryTransitions.WithLabelValues(string(trigger), "rejected").Inc()
		return nil, err
	}

	metrics.EnquiryTransitions.WithLabelValues(string(trigger), "ok").Inc()
	return enquiry, nil
}

// Get loads one enquiry by ID.
func (s *EnquiryService) Get(ctx context.Context, enquiryID string) (*models.Enquiry, error) {
	ctx = ensureContext(ctx)

	var enquiry models.Enquiry
	if err := s.db.WithContext(ctx).Where("id = ?", enquiryID).First(&enquiry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEnquiryNotFound
		}
		return nil, fmt.Errorf("enquiry service: get: %w", err)
	}
	return &enquiry, nil
}

// List returns enquiries ordered by creation time descending, optionally
// filtered by status.
func (s *EnquiryService) List(ctx context.Context, status models.EnquiryStatus, page, perPage int) ([]models.Enquiry, int64, error) {
	ctx = ensureContext(ctx)

	if page <= 0 {
		page = 1
	}
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}

	query := s.db.WithContext(ctx).Model(&models.Enquiry{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("enquiry service: count: %w", err)
	}

	var results []models.Enquiry
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&results).Error; err != nil {
		return nil, 0, fmt.Errorf("enquiry service: list: %w", err)
	}
	return results, total, nil
}

// Events returns the append-only audit trail for an enquiry, oldest first.
func (s *EnquiryService) Events(ctx context.Context, enquiryID string) ([]models.EnquiryEvent, error) {
	ctx = ensureContext(ctx)

	var events []models.EnquiryEvent
	if err := s.db.WithContext(ctx).
		Where("enquiry_id = ?", enquiryID).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("enquiry service: events: %w", err)
	}
	return events, nil
}

func eventTypeFor(trigger models.EnquiryTrigger) models.EnquiryEventType {
	switch trigger {
	case models.TriggerAcknowledge:
		return models.EventEnquiryAcked
	case models.TriggerBeginInviting:
		return models.EventInvitesStarted
	default:
		return models.EventEnquiryClosed
	}
}

// lockEnquiry reads the row inside the transaction; the conditional update
// on status provides the concurrency guard on engines without row locks.
func lockEnquiry(tx *gorm.DB, enquiryID string) (*models.Enquiry, error) {
	var enquiry models.Enquiry
	if err := tx.Where("id = ?", enquiryID).First(&enquiry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEnquiryNotFound
		}
		return nil, fmt.Errorf("enquiry service: load: %w", err)
	}
	return &enquiry, nil
}

// appendEvent writes one immutable audit row within the caller's transaction.
func appendEvent(tx *gorm.DB, enquiryID string, actor Actor, eventType models.EnquiryEventType, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("enquiry service: marshal payload: %w", err)
	}

	event := models.EnquiryEvent{
		EnquiryID: enquiryID,
		ActorType: actor.Type,
		ActorID:   actor.ID,
		EventType: eventType,
		Payload:   datatypes.JSON(encoded),
	}
	if err := tx.Create(&event).Error; err != nil {
		return fmt.Errorf("enquiry service: append event: %w", err)
	}
	return nil
}
