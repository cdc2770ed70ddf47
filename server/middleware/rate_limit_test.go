package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllow(t *testing.T) {
	rl := NewRateLimiter(1, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("client-a"), "request %d within burst", i)
	}
	assert.False(t, rl.Allow("client-a"))

	// A different key has its own budget.
	assert.True(t, rl.Allow("client-b"))
}

func TestMiddleware(t *testing.T) {
	e := echo.New()
	e.Use(NewRateLimiter(1, 2).Middleware())
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	do := func() int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do())
	assert.Equal(t, http.StatusOK, do())
	assert.Equal(t, http.StatusTooManyRequests, do())
}

func TestPruneIdle(t *testing.T) {
	t.Run("Refilled keys are dropped", func(t *testing.T) {
		rl := NewRateLimiter(1000, 1)
		require.True(t, rl.Allow("one-off"))

		// At 1000 rps the single-token burst refills almost instantly.
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, 1, rl.PruneIdle())
		assert.Empty(t, rl.limits)
	})

	t.Run("Recently active keys are kept", func(t *testing.T) {
		rl := NewRateLimiter(0.01, 1)
		require.True(t, rl.Allow("busy"))

		assert.Equal(t, 0, rl.PruneIdle())
		assert.Len(t, rl.limits, 1)
	})
}

func TestPruneLoop(t *testing.T) {
	rl := NewRateLimiter(1000, 1)
	require.True(t, rl.Allow("one-off"))

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		rl.PruneLoop(5*time.Millisecond, stop)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		rl.mu.Lock()
		defer rl.mu.Unlock()
		return len(rl.limits) == 0
	}, time.Second, 10*time.Millisecond)

	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("prune loop did not stop")
	}
}
