// Package service provides the business logic for user identities.
package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/postforge/postforge/internal/identity/repository"
	"github.com/postforge/postforge/internal/shared/errors"
	"github.com/postforge/postforge/internal/shared/events"
	"github.com/postforge/postforge/internal/shared/logger"
)

// Config holds the identity service configuration.
type Config struct {
	Repository repository.Repository
	Events     *events.Client
	Logger     *logger.Logger
}

// Service provides identity business logic.
type Service struct {
	repo   repository.Repository
	events *events.Client
	log    *logger.Logger
}

// New creates a new identity service.
func New(cfg Config) *Service {
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		repo:   cfg.Repository,
		events: cfg.Events,
		log:    log.WithComponent("identity"),
	}
}

// User represents a user exposed by the service.
type User struct {
	ID          string
	Email       string
	Name        string
	Preferences repository.Preferences
}

// RegisterInput holds the input for user registration.
type RegisterInput struct {
	Email    string
	Name     string
	Password string
}

// Register creates a new user account.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*User, error) {
	email := normalizeEmail(input.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.InvalidInput("a valid email is required")
	}
	if input.Name == "" {
		return nil, errors.InvalidInput("name is required")
	}
	if len(input.Password) < 8 {
		return nil, errors.InvalidInput("password must be at least 8 characters")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.InternalWrap("hashing password", err)
	}
	passwordHash := string(hashedPassword)

	user := &repository.User{
		Email:        email,
		Name:         input.Name,
		PasswordHash: &passwordHash,
		Preferences:  repository.DefaultPreferences(),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewEvent(events.TypeUserRegistered, map[string]any{
		"user_id": user.ID.String(),
		"email":   user.Email,
	}))

	return userFromRepo(user), nil
}

// Login authenticates a user with email and password.
//
// Unknown email, missing password hash, and a failed comparison all return the
// same INVALID_CREDENTIALS error so a caller cannot probe for account existence.
func (s *Service) Login(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.IsCode(err, errors.CodeNotFound) {
			return nil, errors.InvalidCredentials("invalid email or password")
		}
		return nil, err
	}

	if user.PasswordHash == nil {
		return nil, errors.InvalidCredentials("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		return nil, errors.InvalidCredentials("invalid email or password")
	}

	return userFromRepo(user), nil
}

// GetByID retrieves a user by ID.
func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, errors.InvalidInput("invalid user ID")
	}

	user, err := s.repo.GetUserByID(ctx, uid)
	if err != nil {
		return nil, err
	}

	return userFromRepo(user), nil
}

// GetByEmail retrieves a user by email.
func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	user, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	return userFromRepo(user), nil
}

// PreferencesPatch holds a partial preferences update. Nil fields are left
// untouched.
type PreferencesPatch struct {
	BrandVoice      *string
	Tone            *string
	DefaultHashtags *[]string
	BannedPhrases   *[]string
}

// UpdatePreferences shallow-merges the supplied fields into the user's
// preference bag.
func (s *Service) UpdatePreferences(ctx context.Context, id string, patch PreferencesPatch) (*User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, errors.InvalidInput("invalid user ID")
	}

	user, err := s.repo.GetUserByID(ctx, uid)
	if err != nil {
		return nil, err
	}

	if patch.BrandVoice != nil {
		user.Preferences.BrandVoice = *patch.BrandVoice
	}
	if patch.Tone != nil {
		user.Preferences.Tone = *patch.Tone
	}
	if patch.DefaultHashtags != nil {
		user.Preferences.DefaultHashtags = *patch.DefaultHashtags
	}
	if patch.BannedPhrases != nil {
		user.Preferences.BannedPhrases = *patch.BannedPhrases
	}

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, err
	}

	return userFromRepo(user), nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.WithContext(ctx).Warn("failed to publish event",
			"event_type", event.Type,
			"error", err,
		)
	}
}

func userFromRepo(u *repository.User) *User {
	return &User{
		ID:          u.ID.String(),
		Email:       u.Email,
		Name:        u.Name,
		Preferences: u.Preferences,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
