package middleware

import (
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"lob-sim/src/models"
)

// probePaths bypass availability checks.
var probePaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// ServiceAvailability answers 503 while in maintenance or once
// maxInFlight requests are being served. Zero maxInFlight means unbounded.
type ServiceAvailability struct {
	maintenance atomic.Bool
	maxInFlight int64
	inFlight    atomic.Int64
}

func NewServiceAvailability(maxInFlight int64, maintenance bool) *ServiceAvailability {
	sa := &ServiceAvailability{maxInFlight: maxInFlight}
	sa.maintenance.Store(maintenance)

	log.Info().
		Bool("maintenance", maintenance).
		Int64("max_in_flight", maxInFlight).
		Msg("Service availability configured")
	return sa
}

func (sa *ServiceAvailability) SetMaintenanceMode(enabled bool) {
	if sa.maintenance.Swap(enabled) == enabled {
		return
	}
	log.Warn().Bool("maintenance", enabled).Msg("Maintenance mode changed")
}

func (sa *ServiceAvailability) IsMaintenanceMode() bool {
	return sa.maintenance.Load()
}

func (sa *ServiceAvailability) InFlightRequests() int64 {
	return sa.inFlight.Load()
}

func (sa *ServiceAvailability) reject(c *fiber.Ctx, reason string) error {
	log.Warn().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Str("reason", reason).
		Int64("in_flight", sa.inFlight.Load()).
		Msg("Request rejected: service unavailable")
	return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
		Error: "Service unavailable: " + reason,
	})
}

func (sa *ServiceAvailability) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, probe := probePaths[c.Path()]; probe {
			return c.Next()
		}
		if sa.maintenance.Load() {
			return sa.reject(c, "maintenance")
		}

		current := sa.inFlight.Add(1)
		defer sa.inFlight.Add(-1)
		if sa.maxInFlight > 0 && current > sa.maxInFlight {
			return sa.reject(c, "overloaded")
		}
		return c.Next()
	}
}
