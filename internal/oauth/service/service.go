// Package service orchestrates the OAuth connect, callback, status, refresh
// and disconnect flows across the provider adapter, the credential store and
// the state codec.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/postforge/postforge/internal/connection"
	"github.com/postforge/postforge/internal/oauth/provider"
	"github.com/postforge/postforge/internal/oauth/state"
	"github.com/postforge/postforge/internal/shared/errors"
	"github.com/postforge/postforge/internal/shared/events"
	"github.com/postforge/postforge/internal/shared/logger"
	"github.com/postforge/postforge/internal/shared/metrics"
)

// Config holds the OAuth service configuration.
type Config struct {
	Provider    provider.Provider
	Connections connection.Repository
	State       *state.Codec
	Events      *events.Client
	Metrics     *metrics.Metrics
	Logger      *logger.Logger
}

// Service coordinates OAuth flows for a single provider.
type Service struct {
	provider    provider.Provider
	connections connection.Repository
	state       *state.Codec
	events      *events.Client
	metrics     *metrics.Metrics
	log         *logger.Logger

	// now is overridable in tests.
	now func() time.Time
}

// New creates a new OAuth service.
func New(cfg Config) *Service {
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.New(metrics.Config{})
	}
	return &Service{
		provider:    cfg.Provider,
		connections: cfg.Connections,
		state:       cfg.State,
		events:      cfg.Events,
		metrics:     m,
		log:         log.WithComponent("oauth"),
		now:         time.Now,
	}
}

// Status describes a user's connection to the provider.
type Status struct {
	Connected      bool       `json:"connected"`
	Provider       string     `json:"provider"`
	ProviderUserID string     `json:"provider_user_id,omitempty"`
	Scopes         []string   `json:"scopes,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Expired        bool       `json:"expired,omitempty"`
	NeedsRefresh   bool       `json:"needs_refresh,omitempty"`
	CanPost        bool       `json:"can_post"`
}

// CallbackResult describes a completed authorization flow.
type CallbackResult struct {
	Provider       string
	ConnectedEmail string
	ConnectedName  string
	Status         *Status
}

// Connect begins the authorization flow and returns the URL the client should
// redirect the user to.
func (s *Service) Connect(ctx context.Context, userID uuid.UUID) (string, error) {
	token, err := s.state.Encode(userID)
	if err != nil {
		s.metrics.RecordOAuthFlow(s.provider.Name(), "connect", err)
		return "", err
	}

	s.metrics.RecordOAuthFlow(s.provider.Name(), "connect", nil)
	s.log.WithContext(ctx).Info("oauth flow started",
		"provider", s.provider.Name(),
		"user_id", userID,
	)

	return s.provider.AuthCodeURL(token), nil
}

// HandleCallback completes the authorization flow: it verifies the state
// token, exchanges the code, fetches the member profile and stores the
// connection. Nothing is written until the state token has been verified.
func (s *Service) HandleCallback(ctx context.Context, stateToken, code string) (*CallbackResult, error) {
	name := s.provider.Name()

	userID, err := s.state.Decode(stateToken)
	if err != nil {
		s.metrics.RecordOAuthFlow(name, "callback", err)
		s.log.WithContext(ctx).WithError(err).Warn("oauth callback rejected",
			"provider", name,
		)
		return nil, err
	}

	if code == "" {
		err := errors.InvalidInput("authorization code is required")
		s.metrics.RecordOAuthFlow(name, "callback", err)
		return nil, err
	}

	start := s.now()
	token, err := s.provider.ExchangeCode(ctx, code)
	s.metrics.RecordProviderCall(name, "exchange", s.now().Sub(start))
	if err != nil {
		s.metrics.RecordOAuthFlow(name, "callback", err)
		s.log.WithContext(ctx).WithError(err).Error("oauth code exchange failed",
			"provider", name,
			"user_id", userID,
		)
		return nil, err
	}

	start = s.now()
	profile, err := s.provider.FetchProfile(ctx, token.AccessToken)
	s.metrics.RecordProviderCall(name, "profile", s.now().Sub(start))
	if err != nil {
		s.metrics.RecordOAuthFlow(name, "callback", err)
		s.log.WithContext(ctx).WithError(err).Error("oauth profile fetch failed",
			"provider", name,
			"user_id", userID,
		)
		return nil, err
	}

	// Prefer the scopes the provider actually granted; the configured set is
	// only a fallback for providers that omit them from the token response.
	scopes := token.Scopes
	if len(scopes) == 0 {
		scopes = s.provider.Scopes()
	}

	conn := &connection.Connection{
		UserID:         userID,
		Provider:       name,
		ProviderUserID: profile.ProviderUserID,
		AccessToken:    token.AccessToken,
		TokenExpiresAt: token.ExpiresAt,
		Scopes:         scopes,
	}
	if token.RefreshToken != "" {
		conn.RefreshToken = &token.RefreshToken
	}

	if err := s.connections.Upsert(ctx, conn); err != nil {
		s.metrics.RecordOAuthFlow(name, "callback", err)
		return nil, err
	}

	s.metrics.RecordOAuthFlow(name, "callback", nil)
	s.publishEvent(ctx, events.TypeOAuthConnected, userID, map[string]any{
		"provider":         name,
		"provider_user_id": profile.ProviderUserID,
	})
	s.log.WithContext(ctx).Info("oauth connection established",
		"provider", name,
		"user_id", userID,
		"provider_user_id", profile.ProviderUserID,
	)

	return &CallbackResult{
		Provider:       name,
		ConnectedEmail: profile.Email,
		ConnectedName:  profile.Name,
		Status:         s.statusOf(conn),
	}, nil
}

// GetStatus reports the user's connection state. An absent connection is not
// an error; it reports connected=false.
func (s *Service) GetStatus(ctx context.Context, userID uuid.UUID) (*Status, error) {
	conn, err := s.connections.Get(ctx, userID, s.provider.Name())
	if err != nil {
		if errors.IsCode(err, errors.CodeNotFound) {
			return &Status{Connected: false, Provider: s.provider.Name()}, nil
		}
		return nil, err
	}
	return s.statusOf(conn), nil
}

// Refresh exchanges the stored refresh token for a fresh access token and
// persists the result.
func (s *Service) Refresh(ctx context.Context, userID uuid.UUID) (*Status, error) {
	name := s.provider.Name()

	conn, err := s.connections.Get(ctx, userID, name)
	if err != nil {
		s.metrics.RecordOAuthFlow(name, "refresh", err)
		return nil, err
	}
	if conn.RefreshToken == nil {
		err := errors.FailedPrecondition("connection has no refresh token; reconnect to obtain one")
		s.metrics.RecordOAuthFlow(name, "refresh", err)
		return nil, err
	}

	start := s.now()
	token, err := s.provider.RefreshToken(ctx, *conn.RefreshToken)
	s.metrics.RecordProviderCall(name, "refresh", s.now().Sub(start))
	if err != nil {
		s.metrics.RecordOAuthFlow(name, "refresh", err)
		s.log.WithContext(ctx).WithError(err).Error("oauth token refresh failed",
			"provider", name,
			"user_id", userID,
		)
		return nil, err
	}

	conn.AccessToken = token.AccessToken
	conn.TokenExpiresAt = token.ExpiresAt
	if token.RefreshToken != "" {
		conn.RefreshToken = &token.RefreshToken
	}

	if err := s.connections.Upsert(ctx, conn); err != nil {
		s.metrics.RecordOAuthFlow(name, "refresh", err)
		return nil, err
	}

	s.metrics.RecordOAuthFlow(name, "refresh", nil)
	s.publishEvent(ctx, events.TypeOAuthRefreshed, userID, map[string]any{
		"provider": name,
	})

	return s.statusOf(conn), nil
}

// Disconnect removes the user's connection. Disconnecting when no connection
// exists succeeds.
func (s *Service) Disconnect(ctx context.Context, userID uuid.UUID) error {
	name := s.provider.Name()

	if err := s.connections.Delete(ctx, userID, name); err != nil {
		s.metrics.RecordOAuthFlow(name, "disconnect", err)
		return err
	}

	s.metrics.RecordOAuthFlow(name, "disconnect", nil)
	s.publishEvent(ctx, events.TypeOAuthDisconnected, userID, map[string]any{
		"provider": name,
	})
	s.log.WithContext(ctx).Info("oauth connection removed",
		"provider", name,
		"user_id", userID,
	)

	return nil
}

func (s *Service) statusOf(conn *connection.Connection) *Status {
	expired := conn.Expired(s.now())
	return &Status{
		Connected:      true,
		Provider:       conn.Provider,
		ProviderUserID: conn.ProviderUserID,
		Scopes:         conn.Scopes,
		ExpiresAt:      conn.TokenExpiresAt,
		Expired:        expired,
		NeedsRefresh:   expired && conn.RefreshToken != nil,
		CanPost:        !expired && conn.HasScope(provider.ScopePostShare),
	}
}

func (s *Service) publishEvent(ctx context.Context, eventType string, userID uuid.UUID, data map[string]any) {
	data["user_id"] = userID.String()
	if err := s.events.Publish(ctx, events.NewEvent(eventType, data)); err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("failed to publish event",
			"event_type", eventType,
		)
	}
}
