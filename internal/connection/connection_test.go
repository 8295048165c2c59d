package connection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConnection_Expired(t *testing.T) {
	now := time.Now()

	t.Run("no expiry recorded", func(t *testing.T) {
		conn := &Connection{}
		assert.True(t, conn.Expired(now))
	})

	t.Run("expiry in the past", func(t *testing.T) {
		past := now.Add(-time.Hour)
		conn := &Connection{TokenExpiresAt: &past}
		assert.True(t, conn.Expired(now))
	})

	t.Run("expiry exactly now", func(t *testing.T) {
		conn := &Connection{TokenExpiresAt: &now}
		assert.True(t, conn.Expired(now))
	})

	t.Run("expiry in the future", func(t *testing.T) {
		future := now.Add(time.Hour)
		conn := &Connection{TokenExpiresAt: &future}
		assert.False(t, conn.Expired(now))
	})
}

func TestConnection_HasScope(t *testing.T) {
	conn := &Connection{Scopes: []string{"openid", "profile", "w_member_social"}}

	assert.True(t, conn.HasScope("w_member_social"))
	assert.False(t, conn.HasScope("email"))

	empty := &Connection{}
	assert.False(t, empty.HasScope("openid"))
}
