package server

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postforge/postforge/internal/auth/jwt"
	"github.com/postforge/postforge/internal/connection"
	"github.com/postforge/postforge/internal/identity/repository"
	identity "github.com/postforge/postforge/internal/identity/service"
	"github.com/postforge/postforge/internal/oauth/provider"
	oauth "github.com/postforge/postforge/internal/oauth/service"
	"github.com/postforge/postforge/internal/oauth/state"
	"github.com/postforge/postforge/internal/shared/errors"
)

// In-memory fakes backing the full HTTP stack.

type userStore struct {
	users map[uuid.UUID]*repository.User
}

func newUserStore() *userStore {
	return &userStore{users: make(map[uuid.UUID]*repository.User)}
}

func (s *userStore) CreateUser(ctx context.Context, user *repository.User) error {
	for _, u := range s.users {
		if u.Email == user.Email {
			return errors.AlreadyExists("a user with this email already exists")
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *userStore) GetUserByID(ctx context.Context, id uuid.UUID) (*repository.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, errors.NotFound("user not found")
	}
	copied := *user
	return &copied, nil
}

func (s *userStore) GetUserByEmail(ctx context.Context, email string) (*repository.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, errors.NotFound("user not found")
}

func (s *userStore) UpdateUser(ctx context.Context, user *repository.User) error {
	if _, ok := s.users[user.ID]; !ok {
		return errors.NotFound("user not found")
	}
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

type connStore struct {
	conns map[string]*connection.Connection
}

func newConnStore() *connStore {
	return &connStore{conns: make(map[string]*connection.Connection)}
}

func connKey(userID uuid.UUID, p string) string { return userID.String() + "/" + p }

func (s *connStore) Get(ctx context.Context, userID uuid.UUID, p string) (*connection.Connection, error) {
	conn, ok := s.conns[connKey(userID, p)]
	if !ok {
		return nil, errors.NotFound("connection not found")
	}
	copied := *conn
	return &copied, nil
}

func (s *connStore) Upsert(ctx context.Context, conn *connection.Connection) error {
	existing, ok := s.conns[connKey(conn.UserID, conn.Provider)]
	if ok && conn.RefreshToken == nil {
		conn.RefreshToken = existing.RefreshToken
	}
	copied := *conn
	s.conns[connKey(conn.UserID, conn.Provider)] = &copied
	return nil
}

func (s *connStore) Delete(ctx context.Context, userID uuid.UUID, p string) error {
	delete(s.conns, connKey(userID, p))
	return nil
}

func (s *connStore) CountExpiringBefore(ctx context.Context, p string, t time.Time) (int64, error) {
	return 0, nil
}

type stubProvider struct {
	token       provider.Token
	profile     provider.Profile
	exchangeErr error
}

func (f *stubProvider) Name() string { return "linkedin" }

func (f *stubProvider) Scopes() []string {
	return []string{"openid", "profile", "email", provider.ScopePostShare}
}

func (f *stubProvider) AuthCodeURL(state string) string {
	return "https://www.linkedin.com/oauth/v2/authorization?client_id=test&state=" + state
}

func (f *stubProvider) ExchangeCode(ctx context.Context, code string) (*provider.Token, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	token := f.token
	return &token, nil
}

func (f *stubProvider) FetchProfile(ctx context.Context, accessToken string) (*provider.Profile, error) {
	profile := f.profile
	return &profile, nil
}

func (f *stubProvider) RefreshToken(ctx context.Context, refreshToken string) (*provider.Token, error) {
	token := f.token
	return &token, nil
}

func newTestServer(t *testing.T) (*Server, *stubProvider, *connStore) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	manager := jwt.NewManagerWithKeys(key, &key.PublicKey, jwt.Config{
		Issuer:   "postforge-test",
		TokenTTL: time.Hour,
	})

	codec, err := state.NewCodec([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	expiry := time.Now().Add(time.Hour)
	stub := &stubProvider{
		token: provider.Token{
			AccessToken:  "provider-access",
			RefreshToken: "provider-refresh",
			ExpiresAt:    &expiry,
		},
		profile: provider.Profile{
			ProviderUserID: "member-1",
			Email:          "a@b.com",
			Name:           "Member One",
		},
	}

	conns := newConnStore()

	identitySvc := identity.New(identity.Config{Repository: newUserStore()})
	oauthSvc := oauth.New(oauth.Config{
		Provider:    stub,
		Connections: conns,
		State:       codec,
	})

	srv := New(Config{
		Identity:   identitySvc,
		OAuth:      oauthSvc,
		JWTManager: manager,
	})

	return srv, stub, conns
}

func do(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var envelope struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Data
}

func uuidFromToken(t *testing.T, srv *Server, token string) uuid.UUID {
	t.Helper()

	claims, err := srv.config.JWTManager.Validate(token)
	require.NoError(t, err)
	id, err := uuid.Parse(claims.UserID)
	require.NoError(t, err)
	return id
}

func TestServer_RegisterLoginMe(t *testing.T) {
	srv, _, _ := newTestServer(t)
	handler := srv.Handler()

	rec := do(t, handler, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    "a@b.com",
		"name":     "Member One",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	data := decodeData(t, rec)
	token, _ := data["token"].(string)
	require.NotEmpty(t, token)
	user, _ := data["user"].(map[string]any)
	assert.Equal(t, "a@b.com", user["email"])

	t.Run("duplicate registration conflicts", func(t *testing.T) {
		rec := do(t, handler, http.MethodPost, "/auth/register", "", map[string]string{
			"email":    "a@b.com",
			"name":     "Other",
			"password": "password456",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "ALREADY_EXISTS")
	})

	t.Run("login returns a fresh token", func(t *testing.T) {
		rec := do(t, handler, http.MethodPost, "/auth/login", "", map[string]string{
			"email":    "a@b.com",
			"password": "password123",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		data := decodeData(t, rec)
		assert.NotEmpty(t, data["token"])
	})

	t.Run("wrong password is unauthorized", func(t *testing.T) {
		rec := do(t, handler, http.MethodPost, "/auth/login", "", map[string]string{
			"email":    "a@b.com",
			"password": "wrong-password",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_CREDENTIALS")
	})

	t.Run("me requires auth", func(t *testing.T) {
		rec := do(t, handler, http.MethodGet, "/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("me returns profile with default preferences", func(t *testing.T) {
		rec := do(t, handler, http.MethodGet, "/me", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		data := decodeData(t, rec)
		prefs, _ := data["preferences"].(map[string]any)
		require.NotNil(t, prefs)
		assert.Equal(t, "professional", prefs["tone"])
	})

	t.Run("preferences patch merges", func(t *testing.T) {
		rec := do(t, handler, http.MethodPatch, "/me/preferences", token, map[string]any{
			"brandVoice": "direct and pragmatic",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		data := decodeData(t, rec)
		prefs, _ := data["preferences"].(map[string]any)
		assert.Equal(t, "direct and pragmatic", prefs["brandVoice"])
		assert.Equal(t, "professional", prefs["tone"])
	})
}

func TestServer_LinkedInFlow(t *testing.T) {
	srv, _, conns := newTestServer(t)
	handler := srv.Handler()

	rec := do(t, handler, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    "a@b.com",
		"name":     "Member One",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	token, _ := decodeData(t, rec)["token"].(string)
	require.NotEmpty(t, token)

	t.Run("status before connect", func(t *testing.T) {
		rec := do(t, handler, http.MethodGet, "/auth/linkedin/status", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		data := decodeData(t, rec)
		assert.Equal(t, false, data["connected"])
		assert.Equal(t, false, data["canPost"])
	})

	rec = do(t, handler, http.MethodGet, "/auth/linkedin", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	authURL, _ := data["authUrl"].(string)
	stateToken, _ := data["state"].(string)
	require.NotEmpty(t, stateToken)
	assert.Contains(t, authURL, stateToken)

	t.Run("connect requires auth", func(t *testing.T) {
		rec := do(t, handler, http.MethodGet, "/auth/linkedin", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("callback with forged state writes nothing", func(t *testing.T) {
		rec := do(t, handler, http.MethodGet, "/auth/linkedin/callback?code=x&state=forged.tok", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_STATE")
		assert.Empty(t, conns.conns)
	})

	t.Run("callback without params", func(t *testing.T) {
		rec := do(t, handler, http.MethodGet, "/auth/linkedin/callback", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	rec = do(t, handler, http.MethodGet, "/auth/linkedin/callback?code=stub-code&state="+stateToken, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data = decodeData(t, rec)
	assert.Equal(t, "linkedin", data["provider"])
	assert.Equal(t, "a@b.com", data["connectedEmail"])
	assert.Equal(t, "Member One", data["connectedName"])

	t.Run("status after connect", func(t *testing.T) {
		rec := do(t, handler, http.MethodGet, "/auth/linkedin/status", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		data := decodeData(t, rec)
		assert.Equal(t, true, data["connected"])
		assert.Equal(t, true, data["canPost"])
		assert.Equal(t, false, data["needsRefresh"])
		assert.Equal(t, "member-1", data["providerUserId"])
	})

	t.Run("status with expired token asks for refresh", func(t *testing.T) {
		userID := uuidFromToken(t, srv, token)
		conn, err := conns.Get(context.Background(), userID, "linkedin")
		require.NoError(t, err)
		expired := time.Now().Add(-time.Minute)
		conn.TokenExpiresAt = &expired
		require.NoError(t, conns.Upsert(context.Background(), conn))

		rec := do(t, handler, http.MethodGet, "/auth/linkedin/status", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		data := decodeData(t, rec)
		assert.Equal(t, true, data["connected"])
		assert.Equal(t, true, data["expired"])
		assert.Equal(t, true, data["needsRefresh"])
		assert.Equal(t, false, data["canPost"])

		// Restore a live token for the remaining subtests.
		live := time.Now().Add(time.Hour)
		conn.TokenExpiresAt = &live
		require.NoError(t, conns.Upsert(context.Background(), conn))
	})

	t.Run("refresh extends the session with the provider", func(t *testing.T) {
		rec := do(t, handler, http.MethodPost, "/auth/linkedin/refresh", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		data := decodeData(t, rec)
		assert.NotEmpty(t, data["expiresAt"])
	})

	t.Run("disconnect and repeat", func(t *testing.T) {
		rec := do(t, handler, http.MethodDelete, "/auth/linkedin", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = do(t, handler, http.MethodGet, "/auth/linkedin/status", token, nil)
		data := decodeData(t, rec)
		assert.Equal(t, false, data["connected"])

		// Idempotent.
		rec = do(t, handler, http.MethodDelete, "/auth/linkedin", token, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("refresh without connection", func(t *testing.T) {
		rec := do(t, handler, http.MethodPost, "/auth/linkedin/refresh", token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestServer_CallbackExchangeFailure(t *testing.T) {
	srv, stub, conns := newTestServer(t)
	stub.exchangeErr = errors.ProviderExchange("linkedin token exchange failed").
		WithDetails(map[string]any{"provider_body": `{"error":"invalid_grant"}`})
	handler := srv.Handler()

	rec := do(t, handler, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    "a@b.com",
		"name":     "Member One",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	token, _ := decodeData(t, rec)["token"].(string)

	rec = do(t, handler, http.MethodGet, "/auth/linkedin", token, nil)
	stateToken, _ := decodeData(t, rec)["state"].(string)

	rec = do(t, handler, http.MethodGet, "/auth/linkedin/callback?code=stale&state="+stateToken, "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "PROVIDER_EXCHANGE")
	// The provider's raw error body is the diagnostic detail.
	assert.Contains(t, rec.Body.String(), "invalid_grant")
	assert.Empty(t, conns.conns)
}

func TestServer_RefreshWithoutRefreshToken(t *testing.T) {
	srv, stub, _ := newTestServer(t)
	stub.token.RefreshToken = ""
	handler := srv.Handler()

	rec := do(t, handler, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    "a@b.com",
		"name":     "Member One",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	token, _ := decodeData(t, rec)["token"].(string)

	rec = do(t, handler, http.MethodGet, "/auth/linkedin", token, nil)
	stateToken, _ := decodeData(t, rec)["state"].(string)

	rec = do(t, handler, http.MethodGet, "/auth/linkedin/callback?code=stub&state="+stateToken, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, handler, http.MethodPost, "/auth/linkedin/refresh", token, nil)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Contains(t, rec.Body.String(), "FAILED_PRECONDITION")
}

func TestServer_InvalidBody(t *testing.T) {
	srv, _, _ := newTestServer(t)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
}
