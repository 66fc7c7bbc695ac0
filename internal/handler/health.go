package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/deppfellow/jokes-api/internal/middleware"
	"github.com/deppfellow/jokes-api/internal/server"
)

const defaultHealthTimeout = 5 * time.Second

type HealthHandler struct {
	Handler
}

func NewHealthHandler(s *server.Server) *HealthHandler {
	return &HealthHandler{
		Handler: NewHandler(s),
	}
}

type HealthCheck struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time"`
	Error        string `json:"error,omitempty"`
}

type HealthResponse struct {
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Environment string                 `json:"environment"`
	Database    string                 `json:"database"`
	Checks      map[string]HealthCheck `json:"checks"`
}

// CheckHealth pings the joke store and, when configured, Redis. Any failed
// check turns the response into a 503.
func (h *HealthHandler) CheckHealth(c echo.Context) error {
	start := time.Now()
	logger := middleware.GetLogger(c).With().Str("operation", "health_check").Logger()
	obs := h.server.Config.Observability

	response := HealthResponse{
		Status:      "healthy",
		Timestamp:   time.Now().UTC(),
		Environment: h.server.Config.Primary.Env,
		Database:    string(h.server.DB.Dialect),
		Checks:      make(map[string]HealthCheck),
	}

	timeout := obs.HealthChecks.Timeout
	if timeout <= 0 {
		timeout = defaultHealthTimeout
	}

	if obs.HealthCheckEnabled("database") {
		check := h.probe(c.Request().Context(), timeout, &logger, "database", h.server.DB.Ping)
		response.Checks["database"] = check
	}

	if h.server.Redis != nil && obs.HealthCheckEnabled("redis") {
		check := h.probe(c.Request().Context(), timeout, &logger, "redis", func(ctx context.Context) error {
			return h.server.Redis.Ping(ctx).Err()
		})
		response.Checks["redis"] = check
	}

	for _, check := range response.Checks {
		if check.Status != "healthy" {
			response.Status = "unhealthy"
		}
	}

	if response.Status != "healthy" {
		logger.Warn().Dur("total_duration", time.Since(start)).Msg("health check failed")
		h.recordFailure("overall", map[string]interface{}{
			"total_duration_ms": time.Since(start).Milliseconds(),
		})
		return c.JSON(http.StatusServiceUnavailable, response)
	}

	logger.Debug().Dur("total_duration", time.Since(start)).Msg("health check passed")
	return c.JSON(http.StatusOK, response)
}

func (h *HealthHandler) probe(
	parent context.Context,
	timeout time.Duration,
	logger *zerolog.Logger,
	name string,
	ping func(context.Context) error,
) HealthCheck {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	start := time.Now()
	err := ping(ctx)
	elapsed := time.Since(start)

	if err != nil {
		logger.Error().Err(err).Str("check", name).Dur("response_time", elapsed).Msg("health check failed")
		h.recordFailure(name, map[string]interface{}{
			"response_time_ms": elapsed.Milliseconds(),
			"error_message":    err.Error(),
		})
		return HealthCheck{Status: "unhealthy", ResponseTime: elapsed.String(), Error: err.Error()}
	}

	return HealthCheck{Status: "healthy", ResponseTime: elapsed.String()}
}

// recordFailure sends a HealthCheckError event when New Relic is running.
func (h *HealthHandler) recordFailure(checkType string, attrs map[string]interface{}) {
	app := h.server.LoggerService.GetApplication()
	if app == nil {
		return
	}

	attrs["check_type"] = checkType
	attrs["operation"] = "health_check"
	attrs["error_type"] = checkType + "_unhealthy"
	app.RecordCustomEvent("HealthCheckError", attrs)
}
