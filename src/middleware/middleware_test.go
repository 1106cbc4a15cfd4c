package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lob-sim/src/metrics"
)

func okApp(handlers ...fiber.Handler) *fiber.App {
	app := fiber.New()
	for _, h := range handlers {
		app.Use(h)
	}
	app.Get("/api/v1/market/state", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func get(t *testing.T, app *fiber.App, path string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("X-Real-IP", "10.0.0.1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestRateLimiterAllow(t *testing.T) {
	now := time.Unix(1_000, 0)
	rl := NewRateLimiter(3, time.Second)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("a"))
	}
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "limits are per client")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("a"), "a new window resets the count")
	assert.Len(t, rl.counters, 2, "old window for a was retired")
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	app := okApp(rl.Middleware())

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp := get(t, app, "/api/v1/market/state")
		statuses = append(statuses, resp.StatusCode)
	}
	assert.Equal(t, []int{200, 200, 429}, statuses)
}

func TestMaintenanceModeRejects(t *testing.T) {
	sa := NewServiceAvailability(0, true)
	app := okApp(sa.Middleware())

	assert.Equal(t, http.StatusServiceUnavailable, get(t, app, "/api/v1/market/state").StatusCode)
	assert.Equal(t, http.StatusOK, get(t, app, "/health").StatusCode)

	sa.SetMaintenanceMode(false)
	assert.False(t, sa.IsMaintenanceMode())
	assert.Equal(t, http.StatusOK, get(t, app, "/api/v1/market/state").StatusCode)
}

func TestOverloadRejects(t *testing.T) {
	sa := NewServiceAvailability(1, false)
	sa.inFlight.Store(1)
	app := okApp(sa.Middleware())

	assert.Equal(t, http.StatusServiceUnavailable, get(t, app, "/api/v1/market/state").StatusCode)

	sa.inFlight.Store(0)
	assert.Equal(t, http.StatusOK, get(t, app, "/api/v1/market/state").StatusCode)
	assert.Equal(t, int64(0), sa.InFlightRequests())
}

func TestOverloadBoundHoldsUnderConcurrency(t *testing.T) {
	const limit, clients = 2, 8
	sa := NewServiceAvailability(limit, false)

	var active, peak atomic.Int64
	app := fiber.New()
	app.Use(sa.Middleware())
	app.Get("/slow", func(c *fiber.Ctx) error {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		return c.SendStatus(fiber.StatusOK)
	})

	var wg sync.WaitGroup
	var ok, rejected atomic.Int64
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/slow", nil), 5_000)
			if err != nil {
				return
			}
			switch resp.StatusCode {
			case http.StatusOK:
				ok.Add(1)
			case http.StatusServiceUnavailable:
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(limit))
	assert.Equal(t, int64(clients), ok.Load()+rejected.Load())
	assert.Equal(t, int64(0), sa.InFlightRequests())
}

func TestRequestMetrics(t *testing.T) {
	collector := metrics.NewCollector()
	app := okApp(RequestMetrics(collector), RequestLogger(true))

	get(t, app, "/api/v1/market/state")
	get(t, app, "/api/v1/market/state")

	assert.Equal(t, 2.0, testutil.ToFloat64(
		collector.HTTPRequests.WithLabelValues(http.MethodGet, "/api/v1/market/state", "200")))
}
