// Package connection provides the credential store for OAuth provider
// connections. A user holds at most one connection per provider, enforced by a
// uniqueness constraint on (user_id, provider).
package connection

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Provider identifiers. Google is reserved in the schema; only LinkedIn has an
// adapter today.
const (
	ProviderLinkedIn = "linkedin"
	ProviderGoogle   = "google"
)

// Connection represents a stored OAuth connection.
type Connection struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Provider       string
	ProviderUserID string
	AccessToken    string
	RefreshToken   *string
	TokenExpiresAt *time.Time
	Scopes         []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Expired reports whether the connection's access token is expired at the
// given instant. A connection with no recorded expiry is treated as expired;
// assuming a live token without evidence would let posting fail downstream.
func (c *Connection) Expired(now time.Time) bool {
	if c.TokenExpiresAt == nil {
		return true
	}
	return !now.Before(*c.TokenExpiresAt)
}

// HasScope reports whether the connection was granted the given scope.
func (c *Connection) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Repository defines the interface for connection data operations.
type Repository interface {
	// Get returns the connection for (userID, provider), or a NOT_FOUND error.
	Get(ctx context.Context, userID uuid.UUID, provider string) (*Connection, error)

	// Upsert inserts the connection or updates the existing row for
	// (userID, provider). When the incoming record carries no refresh token the
	// stored one is preserved: providers commonly omit the refresh token on
	// reconnection and it must not be silently nulled out.
	Upsert(ctx context.Context, conn *Connection) error

	// Delete removes the connection for (userID, provider). Deleting an absent
	// connection is not an error.
	Delete(ctx context.Context, userID uuid.UUID, provider string) error

	// CountExpiringBefore counts connections for a provider whose token expiry
	// is known and earlier than the given instant.
	CountExpiringBefore(ctx context.Context, provider string, t time.Time) (int64, error)
}
