package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postforge/postforge/internal/shared/errors"
)

func TestWriteError(t *testing.T) {
	t.Run("provider failure carries upstream details on 500", func(t *testing.T) {
		rec := httptest.NewRecorder()

		writeError(rec, errors.ProviderExchange("linkedin token exchange failed").
			WithDetails(map[string]any{
				"status":        http.StatusBadRequest,
				"provider_body": `{"error":"invalid_grant"}`,
			}))

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "PROVIDER_EXCHANGE")
		assert.Contains(t, rec.Body.String(), "details")
		assert.Contains(t, rec.Body.String(), "invalid_grant")
	})

	t.Run("wrapped coded error keeps its code", func(t *testing.T) {
		rec := httptest.NewRecorder()

		writeError(rec, fmt.Errorf("loading connection: %w", errors.NotFound("connection not found")))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "NOT_FOUND")
	})

	t.Run("unknown error collapses to generic 500", func(t *testing.T) {
		rec := httptest.NewRecorder()

		writeError(rec, fmt.Errorf("pool exhausted"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "INTERNAL")
		assert.NotContains(t, rec.Body.String(), "pool exhausted")
	})
}
