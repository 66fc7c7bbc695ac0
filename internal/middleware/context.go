package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"

	"github.com/deppfellow/jokes-api/internal/logger"
	"github.com/deppfellow/jokes-api/internal/server"
)

const LoggerKey = "logger"

// ContextEnhancer attaches a request-scoped logger carrying the request
// id, route, client ip and New Relic trace ids.
type ContextEnhancer struct {
	server *server.Server
}

func NewContextEnhancer(s *server.Server) *ContextEnhancer {
	return &ContextEnhancer{server: s}
}

// EnhanceContext stores the logger in the echo context and, through
// zerolog's context helpers, in the request context for the layers below.
func (ce *ContextEnhancer) EnhanceContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			reqLogger := ce.requestLogger(c)
			c.Set(LoggerKey, &reqLogger)

			req := c.Request()
			c.SetRequest(req.WithContext(reqLogger.WithContext(req.Context())))

			return next(c)
		}
	}
}

func (ce *ContextEnhancer) requestLogger(c echo.Context) zerolog.Logger {
	req := c.Request()
	l := ce.server.Logger.With().
		Str("request_id", GetRequestID(c)).
		Str("method", req.Method).
		Str("path", c.Path()).
		Str("ip", c.RealIP()).
		Logger()

	if txn := newrelic.FromContext(req.Context()); txn != nil {
		l = logger.WithTraceContext(l, txn)
	}
	return l
}

// GetLogger returns the request logger, or a no-op logger when
// EnhanceContext did not run.
func GetLogger(c echo.Context) *zerolog.Logger {
	if l, ok := c.Get(LoggerKey).(*zerolog.Logger); ok {
		return l
	}

	nop := zerolog.Nop()
	return &nop
}
