package handler

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/integrations/nrpkgerrors"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"

	"github.com/deppfellow/jokes-api/internal/middleware"
	"github.com/deppfellow/jokes-api/internal/server"
	"github.com/deppfellow/jokes-api/internal/validation"
)

// Handler gives concrete handlers access to the shared server resources.
type Handler struct {
	server *server.Server
}

func NewHandler(s *server.Server) Handler {
	return Handler{server: s}
}

// HandlerFunc is a typed endpoint. Req is a pointer to a request struct.
type HandlerFunc[Req validation.Validatable, Res any] func(c echo.Context, req Req) (Res, error)

// Handle adapts a typed endpoint to an echo.HandlerFunc.
//
// Behavior:
//   - newReq is called once per request, so requests never share state.
//   - The request is bound and validated via validation.BindAndValidate.
//   - endpoint runs only if validation passed.
//   - On success the result is written as JSON with status.
//   - Any error is returned unchanged for GlobalErrorHandler to render.
//
// Each phase is timed into the request log and, when a transaction exists,
// New Relic attributes (see requestTrace.phase).
//
// Usage:
//
//	r.GET("/jokes", handler.Handle(h.Handler, h.ListJokes, http.StatusOK,
//		func() *ListJokesRequest { return &ListJokesRequest{} }))
func Handle[Req validation.Validatable, Res any](
	h Handler,
	endpoint HandlerFunc[Req, Res],
	status int,
	newReq func() Req,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		trace := startTrace(c)
		req := newReq()

		// Phase 1: bind query/body into req and run its Validate.
		if err := trace.phase("validation", func() error {
			return validation.BindAndValidate(c, req)
		}); err != nil {
			return err
		}

		// Phase 2: the endpoint itself.
		var res Res
		if err := trace.phase("handler", func() error {
			var err error
			res, err = endpoint(c, req)
			return err
		}); err != nil {
			return err
		}

		trace.done()
		return c.JSON(status, res)
	}
}

// requestTrace reports the phases of one typed request to the request
// logger and, when present, the New Relic transaction.
//
// Fields:
//   - start: when Handle began, for total_duration.
//   - logger: the request logger with operation and route added.
//   - txn: nil when New Relic is off; every use is guarded.
//   - timing: a zerolog dict collecting per-phase durations for done.
type requestTrace struct {
	start  time.Time
	logger zerolog.Logger
	txn    *newrelic.Transaction
	timing *zerolog.Event
}

func startTrace(c echo.Context) *requestTrace {
	// c.Path() is the route pattern, e.g. /jokes, not the raw URL.
	route := c.Path()
	t := &requestTrace{
		start:  time.Now(),
		logger: middleware.GetLogger(c).With().Str("operation", "handler").Str("route", route).Logger(),
		txn:    newrelic.FromContext(c.Request().Context()),
		timing: zerolog.Dict(),
	}
	if t.txn != nil {
		t.txn.AddAttribute("handler.name", route)
	}
	t.logger.Debug().Msg("handling request")
	return t
}

// phase runs fn and records its outcome as <name>.status and
// <name>.duration_ms. A failure is logged and noticed before it is
// returned for the global error handler.
func (t *requestTrace) phase(name string, fn func() error) error {
	began := time.Now()
	err := fn()
	elapsed := time.Since(began)

	outcome := "success"
	if err != nil {
		outcome = "failed"
	}

	if t.txn != nil {
		t.txn.AddAttribute(name+".status", outcome)
		t.txn.AddAttribute(name+".duration_ms", elapsed.Milliseconds())
		if err != nil {
			t.txn.NoticeError(nrpkgerrors.Wrap(err))
		}
	}

	if err != nil {
		t.logger.Error().Err(err).
			Str("phase", name).
			Dur("phase_duration", elapsed).
			Dur("total_duration", time.Since(t.start)).
			Msg("request " + name + " failed")
		return err
	}

	t.timing.Dur(name, elapsed)
	return nil
}

// done logs the successful request with each phase duration under
// "durations" and records total.duration_ms on the transaction.
func (t *requestTrace) done() {
	total := time.Since(t.start)
	if t.txn != nil {
		t.txn.AddAttribute("total.duration_ms", total.Milliseconds())
	}
	t.logger.Info().
		Dict("durations", t.timing).
		Dur("total_duration", total).
		Msg("request completed successfully")
}
