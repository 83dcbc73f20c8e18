package jwtutil

import (
	"taskhub/internal/model"
	"taskhub/pkg/config"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	signingKey []byte
	expiration = 24 * time.Hour
)

// Initialize sets the signing secret and token lifetime. Called once at
// startup; the values are read-only afterwards.
func Initialize(cfg *config.JWTConfig) {
	signingKey = []byte(cfg.SigningKey)
	if cfg.ExpirationHours > 0 {
		expiration = time.Duration(cfg.ExpirationHours) * time.Hour
	}
}

// UserClaims represents the JWT claims carried by a bearer token
type UserClaims struct {
	UserID   string  `json:"user_id"`
	Email    string  `json:"email"`
	Role     string  `json:"role"`
	TenantID *string `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

// ExpiresIn returns the configured token lifetime in seconds.
func ExpiresIn() int {
	return int(expiration / time.Second)
}

// GenerateToken creates a signed bearer token for the user
func GenerateToken(user *model.User) (string, error) {
	var tenantID *string
	if user.TenantID != nil {
		s := user.TenantID.String()
		tenantID = &s
	}

	claims := UserClaims{
		UserID:   user.ID.String(),
		Email:    user.Email,
		Role:     string(user.Role),
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingKey)
}

// ValidateToken validates and parses a bearer token
func ValidateToken(tokenString string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		return signingKey, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}
