package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/postforge/postforge/internal/shared/errors"
)

func newTestProvider(t *testing.T, tokenHandler, userInfoHandler http.HandlerFunc) *LinkedInProvider {
	t.Helper()

	mux := http.NewServeMux()
	if tokenHandler != nil {
		mux.HandleFunc("/oauth/v2/accessToken", tokenHandler)
	}
	if userInfoHandler != nil {
		mux.HandleFunc("/v2/userinfo", userInfoHandler)
	}

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return NewLinkedInProvider(LinkedInConfig{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		RedirectURL:  "http://localhost:8080/auth/linkedin/callback",
		Endpoint: &oauth2.Endpoint{
			AuthURL:  srv.URL + "/oauth/v2/authorization",
			TokenURL: srv.URL + "/oauth/v2/accessToken",
		},
		UserInfoURL: srv.URL + "/v2/userinfo",
	})
}

func TestLinkedInProvider_AuthCodeURL(t *testing.T) {
	provider := NewLinkedInProvider(LinkedInConfig{
		ClientID:    "test-client",
		RedirectURL: "http://localhost:8080/auth/linkedin/callback",
	})

	url := provider.AuthCodeURL("state-token-123")

	assert.Contains(t, url, "client_id=test-client")
	assert.Contains(t, url, "state=state-token-123")
	assert.Contains(t, url, "scope=openid+profile+email+w_member_social")
	assert.Contains(t, url, "response_type=code")
}

func TestLinkedInProvider_ExchangeCode(t *testing.T) {
	t.Run("successful exchange", func(t *testing.T) {
		provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "auth-code-1", r.FormValue("code"))

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"access_token": "access-1",
				"refresh_token": "refresh-1",
				"expires_in": 3600,
				"scope": "openid,profile,email",
				"token_type": "Bearer"
			}`))
		}, nil)

		token, err := provider.ExchangeCode(context.Background(), "auth-code-1")
		require.NoError(t, err)

		assert.Equal(t, "access-1", token.AccessToken)
		assert.Equal(t, "refresh-1", token.RefreshToken)
		require.NotNil(t, token.ExpiresAt)
		assert.WithinDuration(t, time.Now().Add(time.Hour), *token.ExpiresAt, time.Minute)
		// Granted scopes come from the token response; LinkedIn comma
		// separates them.
		assert.Equal(t, []string{"openid", "profile", "email"}, token.Scopes)
	})

	t.Run("scopes omitted from token response", func(t *testing.T) {
		provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"access-1","token_type":"Bearer"}`))
		}, nil)

		token, err := provider.ExchangeCode(context.Background(), "auth-code-1")
		require.NoError(t, err)
		assert.Empty(t, token.Scopes)
	})

	t.Run("provider rejects code", func(t *testing.T) {
		provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant","error_description":"code expired"}`))
		}, nil)

		_, err := provider.ExchangeCode(context.Background(), "stale-code")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeProviderExchange))

		var appErr *errors.Error
		require.ErrorAs(t, err, &appErr)
		details, ok := appErr.Details.(map[string]any)
		require.True(t, ok)
		assert.Contains(t, details["provider_body"], "invalid_grant")
	})
}

func TestLinkedInProvider_FetchProfile(t *testing.T) {
	t.Run("successful fetch", func(t *testing.T) {
		provider := newTestProvider(t, nil, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"sub": "linkedin-member-42",
				"name": "Ada Lovelace",
				"email": "ada@example.com"
			}`))
		})

		profile, err := provider.FetchProfile(context.Background(), "access-1")
		require.NoError(t, err)

		assert.Equal(t, "linkedin-member-42", profile.ProviderUserID)
		assert.Equal(t, "Ada Lovelace", profile.Name)
		assert.Equal(t, "ada@example.com", profile.Email)
	})

	t.Run("name assembled from parts", func(t *testing.T) {
		provider := newTestProvider(t, nil, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"sub": "linkedin-member-7",
				"given_name": "Grace",
				"family_name": "Hopper"
			}`))
		})

		profile, err := provider.FetchProfile(context.Background(), "access-1")
		require.NoError(t, err)
		assert.Equal(t, "Grace Hopper", profile.Name)
	})

	t.Run("unauthorized token", func(t *testing.T) {
		provider := newTestProvider(t, nil, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Invalid access token"}`))
		})

		_, err := provider.FetchProfile(context.Background(), "revoked")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeProviderProfile))
	})

	t.Run("missing subject", func(t *testing.T) {
		provider := newTestProvider(t, nil, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"name":"No Subject"}`))
		})

		_, err := provider.FetchProfile(context.Background(), "access-1")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeProviderProfile))
	})
}

func TestLinkedInProvider_RefreshToken(t *testing.T) {
	t.Run("successful refresh", func(t *testing.T) {
		provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "refresh_token", r.FormValue("grant_type"))
			assert.Equal(t, "refresh-1", r.FormValue("refresh_token"))

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"access_token": "access-2",
				"refresh_token": "refresh-2",
				"expires_in": 3600,
				"token_type": "Bearer"
			}`))
		}, nil)

		token, err := provider.RefreshToken(context.Background(), "refresh-1")
		require.NoError(t, err)

		assert.Equal(t, "access-2", token.AccessToken)
		assert.Equal(t, "refresh-2", token.RefreshToken)
	})

	t.Run("provider rejects refresh token", func(t *testing.T) {
		provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
		}, nil)

		_, err := provider.RefreshToken(context.Background(), "expired-refresh")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeProviderRefresh))
	})
}

func TestLinkedInProvider_Name(t *testing.T) {
	provider := NewLinkedInProvider(LinkedInConfig{})
	assert.Equal(t, "linkedin", provider.Name())
	assert.Contains(t, provider.Scopes(), ScopePostShare)
}
