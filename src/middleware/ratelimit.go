package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type windowKey struct {
	client string
	window int64
}

// RateLimiter is a fixed-window per-client limiter.
type RateLimiter struct {
	maxRequests    int
	windowDuration time.Duration
	counters       map[windowKey]int
	mu             sync.Mutex
	now            func() time.Time
}

func NewRateLimiter(maxRequests int, windowDuration time.Duration) *RateLimiter {
	if windowDuration < time.Second {
		windowDuration = time.Second
	}
	return &RateLimiter{
		maxRequests:    maxRequests,
		windowDuration: windowDuration,
		counters:       make(map[windowKey]int),
		now:            time.Now,
	}
}

func (rl *RateLimiter) clientID(c *fiber.Ctx) string {
	ip := c.Get("X-Forwarded-For")
	if ip == "" {
		ip = c.Get("X-Real-IP")
	}
	if ip == "" {
		ip = c.IP()
	}
	return ip
}

func (rl *RateLimiter) window(now time.Time) int64 {
	return now.Unix() / int64(rl.windowDuration.Seconds())
}

func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	key := windowKey{client: client, window: rl.window(rl.now())}
	count, exists := rl.counters[key]
	if !exists {
		// a new window for this client retires its older ones
		for k := range rl.counters {
			if k.client == client {
				delete(rl.counters, k)
			}
		}
		rl.counters[key] = 1
		return true
	}

	if count >= rl.maxRequests {
		return false
	}
	rl.counters[key] = count + 1
	return true
}

func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		client := rl.clientID(c)

		if !rl.Allow(client) {
			log.Warn().
				Str("client_ip", client).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Int("max_requests", rl.maxRequests).
				Msg("Rate limit exceeded")
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "Rate limit exceeded",
				"message": "Too many requests. Please try again later.",
			})
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(rl.maxRequests))
		c.Set("X-RateLimit-Window", rl.windowDuration.String())
		return c.Next()
	}
}
