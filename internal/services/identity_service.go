package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/skyquote/skyquote/internal/models"
)

var (
	// ErrIdentityNotFound indicates no identity is registered for the email.
	ErrIdentityNotFound = errors.New("identity: not found")
	// ErrIdentityConflict signals the email is already bound to a principal of
	// the other type. Role flips are never silent.
	ErrIdentityConflict = errors.New("identity: email bound to a different principal type")
	// ErrConstraintViolation surfaces a store-level uniqueness or FK failure.
	ErrConstraintViolation = errors.New("identity: constraint violation")
)

// IdentityService is the single source of truth mapping an email address to
// exactly one principal (admin or pilot) and a role.
type IdentityService struct {
	db *gorm.DB
}

// NewIdentityService constructs an IdentityService.
func NewIdentityService(db *gorm.DB) (*IdentityService, error) {
	if db == nil {
		return nil, errors.New("identity service: db is required")
	}
	return &IdentityService{db: db}, nil
}

// UpsertAdmin binds an email to an admin principal, creating the Admin row
// when missing. Re-running for an existing admin email changes nothing; an
// email already bound to a pilot fails with ErrIdentityConflict and leaves
// the existing identity untouched.
func (s *IdentityService) UpsertAdmin(ctx context.Context, email string) (*models.UserIdentity, error) {
	ctx = ensureContext(ctx)
	email = normaliseEmail(email)
	if email == "" {
		return nil, errors.New("identity service: email is required")
	}

	var identity *models.UserIdentity
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findIdentity(tx, email)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Role != models.RoleAdmin {
				return ErrIdentityConflict
			}
			identity = existing
			return nil
		}

		admin := models.Admin{Email: email}
		if err := tx.Where(models.Admin{Email: email}).
			FirstOrCreate(&admin).Error; err != nil {
			return wrapConstraint("create admin", err)
		}

		identity = &models.UserIdentity{
			Email:   email,
			Role:    models.RoleAdmin,
			AdminID: &admin.ID,
		}
		if err := tx.Create(identity).Error; err != nil {
			return wrapConstraint("create identity", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return identity, nil
}

// UpsertPilot binds an email to an existing pilot principal. Idempotent for
// the same pilot; an email owned by an admin (or a different pilot) fails
// with ErrIdentityConflict.
func (s *IdentityService) UpsertPilot(ctx context.Context, email, pilotID string) (*models.UserIdentity, error) {
	ctx = ensureContext(ctx)
	email = normaliseEmail(email)
	pilotID = strings.TrimSpace(pilotID)
	if email == "" {
		return nil, errors.New("identity service: email is required")
	}
	if pilotID == "" {
		return nil, errors.New("identity service: pilot id is required")
	}

	var identity *models.UserIdentity
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pilot models.Pilot
		if err := tx.Where("id = ?", pilotID).First(&pilot).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("identity service: pilot %s: %w", pilotID, ErrIdentityNotFound)
			}
			return err
		}

		existing, err := findIdentity(tx, email)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Role != models.RoleDronePilot || existing.PilotID == nil || *existing.PilotID != pilot.ID {
				return ErrIdentityConflict
			}
			identity = existing
			return nil
		}

		identity = &models.UserIdentity{
			Email:   email,
			Role:    models.RoleDronePilot,
			PilotID: &pilot.ID,
		}
		if err := tx.Create(identity).Error; err != nil {
			return wrapConstraint("create identity", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return identity, nil
}

// Resolve returns the identity registered for an email, or
// ErrIdentityNotFound. The authentication flow uses it to decide which
// principal type governs the session granted after a magic link is consumed.
func (s *IdentityService) Resolve(ctx context.Context, email string) (*models.UserIdentity, error) {
	ctx = ensureContext(ctx)
	email = normaliseEmail(email)
	if email == "" {
		return nil, ErrIdentityNotFound
	}

	identity, err := findIdentity(s.db.WithContext(ctx), email)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, ErrIdentityNotFound
	}
	return identity, nil
}

// ResolveByID loads an identity by primary key, used by session middleware.
func (s *IdentityService) ResolveByID(ctx context.Context, id string) (*models.UserIdentity, error) {
	ctx = ensureContext(ctx)

	var identity models.UserIdentity
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&identity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	return &identity, nil
}

func findIdentity(tx *gorm.DB, email string) (*models.UserIdentity, error) {
	var identity models.UserIdentity
	if err := tx.Where("email = ?", email).First(&identity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("identity service: find by email: %w", err)
	}
	return &identity, nil
}

func wrapConstraint(op string, err error) error {
	if isUniqueConstraintError(err) {
		return fmt.Errorf("identity service: %s: %w", op, ErrConstraintViolation)
	}
	return fmt.Errorf("identity service: %s: %w", op, err)
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
