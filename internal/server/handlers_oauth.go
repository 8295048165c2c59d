package server

import (
	"net/http"
	"net/url"
	"time"

	"github.com/postforge/postforge/internal/middleware"
	"github.com/postforge/postforge/internal/shared/errors"
)

type connectResponse struct {
	AuthURL string `json:"authUrl"`
	State   string `json:"state"`
}

func (s *Server) handleLinkedInConnect(w http.ResponseWriter, r *http.Request) {
	info := middleware.GetUserInfo(r.Context())

	authURL, err := s.oauth.Connect(r.Context(), info.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	parsed, err := url.Parse(authURL)
	if err != nil {
		writeError(w, errors.InternalWrap("parsing authorization url", err))
		return
	}

	writeData(w, http.StatusOK, connectResponse{
		AuthURL: authURL,
		State:   parsed.Query().Get("state"),
	})
}

type callbackResponse struct {
	Provider       string `json:"provider"`
	ConnectedEmail string `json:"connectedEmail"`
	ConnectedName  string `json:"connectedName"`
}

func (s *Server) handleLinkedInCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	code := query.Get("code")
	state := query.Get("state")

	if code == "" || state == "" {
		writeError(w, errors.InvalidInput("code and state query parameters are required"))
		return
	}

	result, err := s.oauth.HandleCallback(r.Context(), state, code)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, callbackResponse{
		Provider:       result.Provider,
		ConnectedEmail: result.ConnectedEmail,
		ConnectedName:  result.ConnectedName,
	})
}

type statusResponse struct {
	Connected      bool       `json:"connected"`
	Provider       string     `json:"provider"`
	ProviderUserID string     `json:"providerUserId,omitempty"`
	Scopes         []string   `json:"scopes,omitempty"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
	Expired        bool       `json:"expired"`
	NeedsRefresh   bool       `json:"needsRefresh"`
	CanPost        bool       `json:"canPost"`
}

func (s *Server) handleLinkedInStatus(w http.ResponseWriter, r *http.Request) {
	info := middleware.GetUserInfo(r.Context())

	status, err := s.oauth.GetStatus(r.Context(), info.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, statusResponse{
		Connected:      status.Connected,
		Provider:       status.Provider,
		ProviderUserID: status.ProviderUserID,
		Scopes:         status.Scopes,
		ExpiresAt:      status.ExpiresAt,
		Expired:        status.Expired,
		NeedsRefresh:   status.NeedsRefresh,
		CanPost:        status.CanPost,
	})
}

type refreshResponse struct {
	ExpiresAt *time.Time `json:"expiresAt"`
}

func (s *Server) handleLinkedInRefresh(w http.ResponseWriter, r *http.Request) {
	info := middleware.GetUserInfo(r.Context())

	status, err := s.oauth.Refresh(r.Context(), info.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, refreshResponse{ExpiresAt: status.ExpiresAt})
}

func (s *Server) handleLinkedInDisconnect(w http.ResponseWriter, r *http.Request) {
	info := middleware.GetUserInfo(r.Context())

	if err := s.oauth.Disconnect(r.Context(), info.ID); err != nil {
		writeError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "linkedin connection removed")
}
