// Package jwt provides session token generation and validation using RS256.
package jwt

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/postforge/postforge/internal/shared/errors"
)

// Claims represents the session token claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Config holds JWT configuration.
type Config struct {
	PrivateKeyPath string
	PublicKeyPath  string
	TokenTTL       time.Duration
	Issuer         string
}

// Manager handles session token operations.
type Manager struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	tokenTTL   time.Duration
	issuer     string
}

// NewManager creates a new JWT manager from PEM key files.
func NewManager(cfg Config) (*Manager, error) {
	privateKey, err := LoadPrivateKey(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("loading private key: %w", err)
	}

	publicKey, err := LoadPublicKey(cfg.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("loading public key: %w", err)
	}

	return &Manager{
		privateKey: privateKey,
		publicKey:  publicKey,
		tokenTTL:   cfg.TokenTTL,
		issuer:     cfg.Issuer,
	}, nil
}

// NewManagerWithKeys creates a JWT manager with provided keys.
func NewManagerWithKeys(privateKey *rsa.PrivateKey, publicKey *rsa.PublicKey, cfg Config) *Manager {
	return &Manager{
		privateKey: privateKey,
		publicKey:  publicKey,
		tokenTTL:   cfg.TokenTTL,
		issuer:     cfg.Issuer,
	}
}

// Generate creates a signed session token for the given user.
func (m *Manager) Generate(userID, email string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.tokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   userID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
		},
		UserID: userID,
		Email:  email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signedToken, err := token.SignedString(m.privateKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}

	return signedToken, expiresAt, nil
}

// Validate validates a session token and returns its claims.
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.publicKey, nil
	})

	if err != nil {
		if err == jwt.ErrTokenExpired {
			return nil, errors.TokenExpired("token has expired")
		}
		return nil, errors.TokenInvalid("invalid token").Wrap(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.TokenInvalid("invalid token claims")
	}

	return claims, nil
}

// TokenTTL returns the configured session token TTL.
func (m *Manager) TokenTTL() time.Duration {
	return m.tokenTTL
}

// PublicKey returns the public key for external verification.
func (m *Manager) PublicKey() *rsa.PublicKey {
	return m.publicKey
}
