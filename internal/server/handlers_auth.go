package server

import (
	"net/http"

	identity "github.com/postforge/postforge/internal/identity/service"
	"github.com/postforge/postforge/internal/middleware"
	"github.com/postforge/postforge/internal/shared/errors"
)

// userResponse is the user representation returned by the API.
type userResponse struct {
	ID          string              `json:"id"`
	Email       string              `json:"email"`
	Name        string              `json:"name"`
	Preferences preferencesResponse `json:"preferences"`
}

type preferencesResponse struct {
	BrandVoice      string   `json:"brandVoice"`
	Tone            string   `json:"tone"`
	DefaultHashtags []string `json:"defaultHashtags"`
	BannedPhrases   []string `json:"bannedPhrases"`
}

func toUserResponse(user *identity.User) userResponse {
	return userResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Preferences: preferencesResponse{
			BrandVoice:      user.Preferences.BrandVoice,
			Tone:            user.Preferences.Tone,
			DefaultHashtags: user.Preferences.DefaultHashtags,
			BannedPhrases:   user.Preferences.BannedPhrases,
		},
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := s.identity.Register(r.Context(), identity.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	token, _, err := s.config.JWTManager.Generate(user.ID, user.Email)
	if err != nil {
		writeError(w, errors.InternalWrap("issuing session token", err))
		return
	}

	if s.config.Metrics != nil {
		s.config.Metrics.RecordRegistration()
	}

	writeData(w, http.StatusCreated, sessionResponse{
		User:  toUserResponse(user),
		Token: token,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := s.identity.Login(r.Context(), req.Email, req.Password)
	if s.config.Metrics != nil {
		s.config.Metrics.RecordLogin(err)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	token, _, err := s.config.JWTManager.Generate(user.ID, user.Email)
	if err != nil {
		writeError(w, errors.InternalWrap("issuing session token", err))
		return
	}

	writeData(w, http.StatusOK, sessionResponse{
		User:  toUserResponse(user),
		Token: token,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	info := middleware.GetUserInfo(r.Context())

	user, err := s.identity.GetByID(r.Context(), info.ID.String())
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, toUserResponse(user))
}

type preferencesRequest struct {
	BrandVoice      *string   `json:"brandVoice"`
	Tone            *string   `json:"tone"`
	DefaultHashtags *[]string `json:"defaultHashtags"`
	BannedPhrases   *[]string `json:"bannedPhrases"`
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	info := middleware.GetUserInfo(r.Context())

	var req preferencesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := s.identity.UpdatePreferences(r.Context(), info.ID.String(), identity.PreferencesPatch{
		BrandVoice:      req.BrandVoice,
		Tone:            req.Tone,
		DefaultHashtags: req.DefaultHashtags,
		BannedPhrases:   req.BannedPhrases,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, toUserResponse(user))
}
