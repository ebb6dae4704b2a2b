package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyquote/skyquote/internal/models"
)

func testIdentity() *models.UserIdentity {
	adminID := "admin-1"
	identity := &models.UserIdentity{
		Email:   "ops@example.com",
		Role:    models.RoleAdmin,
		AdminID: &adminID,
	}
	identity.ID = "identity-1"
	return identity
}

func TestJWTRoundTrip(t *testing.T) {
	svc, err := NewJWTService("secret-secret-secret", "skyquote-test", time.Hour)
	require.NoError(t, err)

	signed, expiresAt, err := svc.Generate(testIdentity())
	require.NoError(t, err)
	assert.NotEmpty(t, signed)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.Validate(signed)
	require.NoError(t, err)
	assert.Equal(t, "identity-1", claims.Subject)
	assert.Equal(t, "ops@example.com", claims.Email)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, "skyquote-test", claims.Issuer)
}

func TestJWTRejectsGarbage(t *testing.T) {
	svc, err := NewJWTService("secret-secret-secret", "skyquote-test", time.Hour)
	require.NoError(t, err)

	_, err = svc.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Validate("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	signer, err := NewJWTService("secret-one-secret-one", "skyquote-test", time.Hour)
	require.NoError(t, err)
	verifier, err := NewJWTService("secret-two-secret-two", "skyquote-test", time.Hour)
	require.NoError(t, err)

	signed, _, err := signer.Generate(testIdentity())
	require.NoError(t, err)

	_, err = verifier.Validate(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTRejectsExpired(t *testing.T) {
	svc, err := NewJWTService("secret-secret-secret", "skyquote-test", time.Hour)
	require.NoError(t, err)

	past := time.Now().Add(-2 * time.Hour)
	svc.now = func() time.Time { return past }
	signed, _, err := svc.Generate(testIdentity())
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Validate(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTRequiresSecret(t *testing.T) {
	_, err := NewJWTService("", "skyquote-test", time.Hour)
	assert.Error(t, err)
}
