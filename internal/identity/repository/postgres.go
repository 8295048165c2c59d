// Package repository provides database operations for user identities.
package repository

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/postforge/postforge/internal/shared/errors"
)

// Preferences is the free-form content preference bag attached to a user.
type Preferences struct {
	BrandVoice      string   `json:"brand_voice"`
	Tone            string   `json:"tone"`
	DefaultHashtags []string `json:"default_hashtags"`
	BannedPhrases   []string `json:"banned_phrases"`
}

// DefaultPreferences returns the preferences assigned at registration.
func DefaultPreferences() Preferences {
	return Preferences{
		Tone:            "professional",
		DefaultHashtags: []string{},
		BannedPhrases:   []string{},
	}
}

// User represents a user in the database.
type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash *string
	Preferences  Preferences
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Repository defines the interface for user data operations.
type Repository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error
}

// Postgres implements Repository using PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a new PostgreSQL repository.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// CreateUser creates a new user.
func (r *Postgres) CreateUser(ctx context.Context, user *User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, email, name, password_hash, preferences, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash,
		user.Preferences, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.AlreadyExists("user with this email already exists")
		}
		return fmt.Errorf("creating user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by ID.
func (r *Postgres) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `
		SELECT id, email, name, password_hash, preferences, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var user User
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.Name, &user.PasswordHash,
		&user.Preferences, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NotFound("user not found")
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}

	return &user, nil
}

// GetUserByEmail retrieves a user by email.
func (r *Postgres) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, name, password_hash, preferences, created_at, updated_at
		FROM users
		WHERE email = $1
	`

	var user User
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&user.ID, &user.Email, &user.Name, &user.PasswordHash,
		&user.Preferences, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NotFound("user not found")
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}

	return &user, nil
}

// UpdateUser updates a user.
func (r *Postgres) UpdateUser(ctx context.Context, user *User) error {
	user.UpdatedAt = time.Now()

	query := `
		UPDATE users
		SET email = $2, name = $3, password_hash = $4, preferences = $5, updated_at = $6
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash,
		user.Preferences, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("user not found")
	}

	return nil
}

// isUniqueViolation checks if an error is a unique constraint violation.
// Postgres error code 23505 is unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
