package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestDistributor_Server_RateLimiter(t *testing.T) {
	t.Parallel()

	t.Run("allows up to burst then denies", func(t *testing.T) {
		t.Parallel()

		rl := NewRateLimiter(rate.Every(time.Minute), 2)
		require.True(t, rl.Allow("1.2.3.4"))
		require.True(t, rl.Allow("1.2.3.4"))

		allowed, retryAfter := rl.AllowWithRetry("1.2.3.4")
		require.False(t, allowed)
		require.Greater(t, retryAfter, time.Duration(0))
	})

	t.Run("limits are tracked per IP", func(t *testing.T) {
		t.Parallel()

		rl := NewRateLimiter(rate.Every(time.Minute), 1)
		require.True(t, rl.Allow("1.2.3.4"))
		require.False(t, rl.Allow("1.2.3.4"))
		require.True(t, rl.Allow("5.6.7.8"))
	})
}

func TestDistributor_Server_RateLimitMiddleware(t *testing.T) {
	t.Parallel()

	handler := RateLimitMiddleware(NewRateLimiter(rate.Every(time.Minute), 1))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	req := httptest.NewRequest(http.MethodPost, "/claims", nil)
	req.RemoteAddr = "9.9.9.9:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}
