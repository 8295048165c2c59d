// Package provider implements OAuth 2.0 provider adapters.
//
// Each adapter is a plain request/response mapping over the provider's HTTP
// endpoints: no retries, no caching, no rate-limit handling. Authorization
// codes are single-use and expire within seconds, so a failed exchange is
// surfaced immediately rather than retried.
package provider

import (
	"context"
	"time"
)

// Token holds the result of a code exchange or refresh.
type Token struct {
	AccessToken  string
	RefreshToken string     // empty when the provider did not return one
	ExpiresAt    *time.Time // nil when the provider did not report an expiry
	Scopes       []string   // granted scopes from the token response, empty when not reported
}

// Profile represents the normalized user profile returned by a provider.
type Profile struct {
	ProviderUserID string
	Email          string
	Name           string
}

// Provider defines the interface for OAuth providers.
type Provider interface {
	// Name returns a stable provider identifier used for storage and logging.
	Name() string

	// Scopes returns the scopes requested during authorization.
	Scopes() []string

	// AuthCodeURL builds the provider authorization URL for the given state
	// token. Deterministic, no side effects.
	AuthCodeURL(state string) string

	// ExchangeCode exchanges an authorization code for tokens. Returns a
	// PROVIDER_EXCHANGE error carrying the provider's raw error body when the
	// provider rejects the code.
	ExchangeCode(ctx context.Context, code string) (*Token, error)

	// FetchProfile retrieves the user's profile with the given access token.
	// Returns a PROVIDER_PROFILE error on a non-success response.
	FetchProfile(ctx context.Context, accessToken string) (*Profile, error)

	// RefreshToken exchanges a refresh token for a new access token. Returns a
	// PROVIDER_REFRESH error when the provider rejects the refresh token,
	// signalling the caller must re-run the full connect flow.
	RefreshToken(ctx context.Context, refreshToken string) (*Token, error)
}
