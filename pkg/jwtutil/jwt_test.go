package jwtutil

import (
	"taskhub/internal/model"
	"taskhub/pkg/config"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "test-secret", ExpirationHours: 24})

	tenantID := uuid.New()
	user := &model.User{
		ID:       uuid.New(),
		TenantID: &tenantID,
		Email:    "admin@acme.test",
		Role:     model.RoleTenantAdmin,
	}

	token, err := GenerateToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID)
	assert.Equal(t, "admin@acme.test", claims.Email)
	assert.Equal(t, "tenant_admin", claims.Role)
	require.NotNil(t, claims.TenantID)
	assert.Equal(t, tenantID.String(), *claims.TenantID)

	assert.Equal(t, 86400, ExpiresIn())
}

func TestSuperAdminTokenHasNoTenant(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "test-secret", ExpirationHours: 24})

	user := &model.User{
		ID:    uuid.New(),
		Email: "root@system.test",
		Role:  model.RoleSuperAdmin,
	}

	token, err := GenerateToken(user)
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Nil(t, claims.TenantID)
	assert.Equal(t, "super_admin", claims.Role)
}

func TestExpiredTokenRejected(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "test-secret", ExpirationHours: 24})
	expiration = -time.Hour

	user := &model.User{ID: uuid.New(), Email: "gone@acme.test", Role: model.RoleUser}
	token, err := GenerateToken(user)
	require.NoError(t, err)

	expiration = 24 * time.Hour
	_, err = ValidateToken(token)
	assert.Error(t, err)
}

func TestTamperedTokenRejected(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "test-secret", ExpirationHours: 24})

	user := &model.User{ID: uuid.New(), Email: "user@acme.test", Role: model.RoleUser}
	token, err := GenerateToken(user)
	require.NoError(t, err)

	Initialize(&config.JWTConfig{SigningKey: "other-secret", ExpirationHours: 24})
	_, err = ValidateToken(token)
	assert.Error(t, err)
}
