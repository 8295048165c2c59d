// Package state issues and verifies the CSRF state tokens carried through
// the OAuth authorization redirect.
package state

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/postforge/postforge/internal/shared/errors"
)

// DefaultTTL bounds how long an issued state token stays valid. Authorization
// redirects complete within seconds, so ten minutes leaves generous slack for
// slow consent screens without keeping tokens replayable for long.
const DefaultTTL = 10 * time.Minute

// payload is the signed content of a state token.
type payload struct {
	Nonce    string    `json:"nonce"`
	UserID   uuid.UUID `json:"user_id"`
	IssuedAt time.Time `json:"issued_at"`
}

// Codec signs and verifies state tokens with HMAC-SHA256. Tokens are
// self-contained, so no server-side session storage is needed to validate
// the callback.
type Codec struct {
	secret []byte
	ttl    time.Duration

	// now is overridable in tests.
	now func() time.Time
}

// NewCodec creates a Codec from a signing secret.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) < 32 {
		return nil, errors.InvalidInput("state signing secret must be at least 32 bytes")
	}

	return &Codec{
		secret: secret,
		ttl:    DefaultTTL,
		now:    time.Now,
	}, nil
}

// Encode issues a signed state token binding the OAuth flow to a user.
func (c *Codec) Encode(userID uuid.UUID) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.InternalWrap("generating state nonce", err)
	}

	data, err := json.Marshal(payload{
		Nonce:    hex.EncodeToString(nonce),
		UserID:   userID,
		IssuedAt: c.now().UTC(),
	})
	if err != nil {
		return "", errors.InternalWrap("encoding state payload", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(data)
	return encoded + "." + c.sign(encoded), nil
}

// Decode verifies a state token's signature and freshness and returns the
// user it was issued for.
func (c *Codec) Decode(token string) (uuid.UUID, error) {
	encoded, mac, found := strings.Cut(token, ".")
	if !found || encoded == "" || mac == "" {
		return uuid.Nil, errors.InvalidState("state token is malformed")
	}

	if !hmac.Equal([]byte(mac), []byte(c.sign(encoded))) {
		return uuid.Nil, errors.InvalidState("state token signature mismatch")
	}

	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return uuid.Nil, errors.InvalidState("state token is malformed")
	}

	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return uuid.Nil, errors.InvalidState("state token is malformed")
	}

	if p.UserID == uuid.Nil {
		return uuid.Nil, errors.InvalidState("state token has no user binding")
	}

	age := c.now().Sub(p.IssuedAt)
	if age < 0 || age > c.ttl {
		return uuid.Nil, errors.InvalidState("state token has expired")
	}

	return p.UserID, nil
}

func (c *Codec) sign(encoded string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
