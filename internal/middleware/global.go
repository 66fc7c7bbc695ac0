package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/deppfellow/jokes-api/internal/errs"
	"github.com/deppfellow/jokes-api/internal/server"
	"github.com/deppfellow/jokes-api/internal/sqlerr"
)

// GlobalMiddlewares holds the middleware applied to every route and the
// echo error handler. It keeps the *server.Server for the CORS origins and
// the base logger.
type GlobalMiddlewares struct {
	server *server.Server
}

func NewGlobalMiddlewares(s *server.Server) *GlobalMiddlewares {
	return &GlobalMiddlewares{server: s}
}

func (global *GlobalMiddlewares) CORS() echo.MiddlewareFunc {
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: global.server.Config.Server.CORSAllowedOrigins,
	})
}

func (global *GlobalMiddlewares) Recover() echo.MiddlewareFunc {
	return middleware.Recover()
}

func (global *GlobalMiddlewares) Secure() echo.MiddlewareFunc {
	return middleware.Secure()
}

// RequestLogger emits one "API" line per request through the logger that
// EnhanceContext stored, so request_id, method, path and ip come along.
//
// Level by final status:
//   - 5xx: error, with the returned error attached
//   - 4xx: warn
//   - anything else: info
func (global *GlobalMiddlewares) RequestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogError:   true,
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogHost:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			status := v.Status
			// With an error the response is written later by the error
			// handler, so v.Status is not final yet.
			// https://github.com/labstack/echo/issues/2310#issuecomment-1288196898
			if v.Error != nil {
				status = resolveError(v.Error).Status
			}

			levelFor(GetLogger(c), status, v.Error).
				Int("status", status).
				Str("method", v.Method).
				Str("uri", v.URI).
				Str("host", v.Host).
				Str("ip", c.RealIP()).
				Str("user_agent", c.Request().UserAgent()).
				Dur("latency", v.Latency).
				Msg("API")
			return nil
		},
	})
}

// levelFor starts a log event at the level matching status.
func levelFor(logger *zerolog.Logger, status int, err error) *zerolog.Event {
	switch {
	case status >= http.StatusInternalServerError:
		return logger.Error().Err(err)
	case status >= http.StatusBadRequest:
		return logger.Warn()
	default:
		return logger.Info()
	}
}

// resolveError reduces any error to the *errs.HTTPError the client sees.
//
// Behavior:
//   - *errs.HTTPError: returned as is (handler 404s, validation 400s).
//   - *echo.HTTPError with 404: the router found no route, "Route not found".
//   - other *echo.HTTPError: status kept, message is the echo message when it
//     is a string, otherwise the status text.
//   - anything else: sqlerr.HandleError, which ends in a generic 500.
//
// The request logger, the tracing middleware and GlobalErrorHandler all use
// it, so the logged, traced and written status agree.
func resolveError(err error) *errs.HTTPError {
	var httpErr *errs.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	var echoErr *echo.HTTPError
	if !errors.As(err, &echoErr) {
		// HandleError always returns an *errs.HTTPError.
		errors.As(sqlerr.HandleError(err), &httpErr)
		return httpErr
	}

	// echo reports unknown paths as a bare 404.
	if echoErr.Code == http.StatusNotFound {
		return errs.NewNotFoundError("Route not found", nil)
	}

	// Middleware such as body limit may set a non-string Message.
	message, ok := echoErr.Message.(string)
	if !ok || message == "" {
		message = http.StatusText(echoErr.Code)
	}
	return &errs.HTTPError{
		Code:    errs.MakeUpperCaseWithUnderscores(http.StatusText(echoErr.Code)),
		Message: message,
		Status:  echoErr.Code,
	}
}

// GlobalErrorHandler is installed as echo's HTTPErrorHandler.
//
// Behavior:
//   - Logs the original error with the request logger: error level with a
//     stack for 5xx, warn otherwise.
//   - Writes nothing if the response was already committed.
//   - HEAD requests get the status with no body.
//
// Output:
//
//	{"error": "<message>", "errors": [{"field": "...", "error": "..."}]}
//
// with "errors" present only for field failures.
func (global *GlobalMiddlewares) GlobalErrorHandler(err error, c echo.Context) {
	resolved := resolveError(err)
	logger := GetLogger(c)

	event := logger.Warn()
	if resolved.Status >= http.StatusInternalServerError {
		event = logger.Error().Stack()
	}
	event.Err(err).
		Int("status", resolved.Status).
		Str("error_code", resolved.Code).
		Msg(resolved.Message)

	// A streamed or partially written response cannot be replaced.
	if c.Response().Committed {
		return
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(resolved.Status)
	} else {
		// Code and Status are json:"-", only the envelope is written.
		writeErr = c.JSON(resolved.Status, &errs.HTTPError{Message: resolved.Message, Errors: resolved.Errors})
	}
	if writeErr != nil {
		logger.Error().Err(writeErr).Msg("failed to write error response")
	}
}
