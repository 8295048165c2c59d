package connection

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/postforge/postforge/internal/shared/errors"
)

// Postgres implements Repository using PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a new PostgreSQL repository.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Get retrieves the connection for (userID, provider).
func (r *Postgres) Get(ctx context.Context, userID uuid.UUID, provider string) (*Connection, error) {
	query := `
		SELECT id, user_id, provider, provider_user_id, access_token, refresh_token, token_expires_at, scopes, created_at, updated_at
		FROM oauth_connections
		WHERE user_id = $1 AND provider = $2
	`

	var conn Connection
	err := r.pool.QueryRow(ctx, query, userID, provider).Scan(
		&conn.ID, &conn.UserID, &conn.Provider, &conn.ProviderUserID,
		&conn.AccessToken, &conn.RefreshToken, &conn.TokenExpiresAt,
		&conn.Scopes, &conn.CreatedAt, &conn.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NotFound("connection not found")
		}
		return nil, fmt.Errorf("getting connection: %w", err)
	}

	return &conn, nil
}

// Upsert inserts or updates the connection for (userID, provider).
//
// COALESCE on the refresh token keeps the previously stored token whenever the
// new exchange did not return one.
func (r *Postgres) Upsert(ctx context.Context, conn *Connection) error {
	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}
	now := time.Now()
	conn.CreatedAt = now
	conn.UpdatedAt = now

	query := `
		INSERT INTO oauth_connections (id, user_id, provider, provider_user_id, access_token, refresh_token, token_expires_at, scopes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			provider_user_id = EXCLUDED.provider_user_id,
			access_token     = EXCLUDED.access_token,
			refresh_token    = COALESCE(EXCLUDED.refresh_token, oauth_connections.refresh_token),
			token_expires_at = EXCLUDED.token_expires_at,
			scopes           = EXCLUDED.scopes,
			updated_at       = EXCLUDED.updated_at
		RETURNING id, refresh_token, created_at
	`

	err := r.pool.QueryRow(ctx, query,
		conn.ID, conn.UserID, conn.Provider, conn.ProviderUserID,
		conn.AccessToken, conn.RefreshToken, conn.TokenExpiresAt,
		conn.Scopes, conn.CreatedAt, conn.UpdatedAt,
	).Scan(&conn.ID, &conn.RefreshToken, &conn.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting connection: %w", err)
	}

	return nil
}

// Delete removes the connection for (userID, provider). Idempotent.
func (r *Postgres) Delete(ctx context.Context, userID uuid.UUID, provider string) error {
	query := `DELETE FROM oauth_connections WHERE user_id = $1 AND provider = $2`

	if _, err := r.pool.Exec(ctx, query, userID, provider); err != nil {
		return fmt.Errorf("deleting connection: %w", err)
	}
	return nil
}

// CountExpiringBefore counts connections whose token expiry is earlier than t.
func (r *Postgres) CountExpiringBefore(ctx context.Context, provider string, t time.Time) (int64, error) {
	query := `
		SELECT COUNT(*) FROM oauth_connections
		WHERE provider = $1 AND token_expires_at IS NOT NULL AND token_expires_at < $2
	`

	var count int64
	if err := r.pool.QueryRow(ctx, query, provider, t).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting expiring connections: %w", err)
	}
	return count, nil
}
