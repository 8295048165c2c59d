package provider

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/linkedin"

	"github.com/postforge/postforge/internal/shared/errors"
)

const linkedInUserInfoURL = "https://api.linkedin.com/v2/userinfo"

// ScopePostShare is the LinkedIn scope required to publish posts on the
// member's behalf.
const ScopePostShare = "w_member_social"

// LinkedInConfig holds LinkedIn OAuth configuration.
type LinkedInConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// HTTPClient is the outbound client for token and profile calls. Defaults
	// to a client with a 15s timeout so a hung provider call cannot pin a
	// request forever.
	HTTPClient *http.Client

	// Endpoint and UserInfoURL override the LinkedIn endpoints, for tests.
	Endpoint    *oauth2.Endpoint
	UserInfoURL string
}

// LinkedInProvider implements OAuth for LinkedIn.
type LinkedInProvider struct {
	config      *oauth2.Config
	httpClient  *http.Client
	userInfoURL string
}

// linkedInUserInfo represents the LinkedIn OpenID Connect userinfo response.
type linkedInUserInfo struct {
	Sub        string `json:"sub"`
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Email      string `json:"email"`
}

// NewLinkedInProvider creates a new LinkedIn OAuth provider.
func NewLinkedInProvider(cfg LinkedInConfig) *LinkedInProvider {
	endpoint := linkedin.Endpoint
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}

	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = linkedInUserInfoURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	return &LinkedInProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "profile", "email", ScopePostShare},
			Endpoint:     endpoint,
		},
		httpClient:  httpClient,
		userInfoURL: userInfoURL,
	}
}

// Name returns the provider name.
func (p *LinkedInProvider) Name() string {
	return "linkedin"
}

// Scopes returns the scopes requested during authorization.
func (p *LinkedInProvider) Scopes() []string {
	return p.config.Scopes
}

// AuthCodeURL returns the LinkedIn OAuth authorization URL.
func (p *LinkedInProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// ExchangeCode exchanges an authorization code for tokens.
func (p *LinkedInProvider) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	tok, err := p.config.Exchange(p.withClient(ctx), code)
	if err != nil {
		return nil, providerError(errors.CodeProviderExchange, "linkedin token exchange failed", err)
	}

	return tokenFromOAuth2(tok), nil
}

// FetchProfile retrieves the member profile from the userinfo endpoint.
func (p *LinkedInProvider) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, errors.InternalWrap("creating userinfo request", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.CodeProviderProfile, "fetching linkedin profile", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, errors.ProviderProfile("linkedin userinfo request failed").
			WithDetails(map[string]any{
				"status":        resp.StatusCode,
				"provider_body": string(body),
			})
	}

	var info linkedInUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, errors.Wrap(errors.CodeProviderProfile, "decoding linkedin profile", err)
	}

	if info.Sub == "" {
		return nil, errors.ProviderProfile("linkedin profile missing subject identifier")
	}

	name := info.Name
	if name == "" {
		name = fmt.Sprintf("%s %s", info.GivenName, info.FamilyName)
	}

	return &Profile{
		ProviderUserID: info.Sub,
		Email:          info.Email,
		Name:           name,
	}, nil
}

// RefreshToken exchanges a refresh token for a new access token.
func (p *LinkedInProvider) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	source := p.config.TokenSource(p.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})

	tok, err := source.Token()
	if err != nil {
		return nil, providerError(errors.CodeProviderRefresh, "linkedin token refresh rejected", err)
	}

	return tokenFromOAuth2(tok), nil
}

// withClient routes oauth2 library calls through the adapter's HTTP client.
func (p *LinkedInProvider) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func tokenFromOAuth2(tok *oauth2.Token) *Token {
	token := &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry
		token.ExpiresAt = &expiry
	}
	// LinkedIn reports the granted scopes in the token response, comma
	// separated rather than the space separation RFC 6749 prescribes.
	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		token.Scopes = strings.Fields(strings.ReplaceAll(scope, ",", " "))
	}
	return token
}

// providerError maps an oauth2 failure to a coded error, attaching the
// provider's raw error body when the library exposes it.
func providerError(code errors.Code, message string, err error) *errors.Error {
	var retrieveErr *oauth2.RetrieveError
	if stderrors.As(err, &retrieveErr) {
		return errors.Wrap(code, message, err).WithDetails(map[string]any{
			"status":        retrieveErr.Response.StatusCode,
			"provider_body": string(retrieveErr.Body),
		})
	}
	return errors.Wrap(code, message, err)
}
