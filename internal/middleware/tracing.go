package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/integrations/nrecho-v4"
	"github.com/newrelic/go-agent/v3/integrations/nrpkgerrors"
	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/deppfellow/jokes-api/internal/server"
)

// TracingMiddleware wraps requests in New Relic transactions and adds the
// request attributes the joke routes are filtered by.
type TracingMiddleware struct {
	server *server.Server
	nrApp  *newrelic.Application
}

func NewTracingMiddleware(s *server.Server, nrApp *newrelic.Application) *TracingMiddleware {
	return &TracingMiddleware{
		server: s,
		nrApp:  nrApp,
	}
}

// NewRelicMiddleware starts a transaction per request, or passes through
// when New Relic is off.
func (tm *TracingMiddleware) NewRelicMiddleware() echo.MiddlewareFunc {
	if tm.nrApp == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}
	return nrecho.Middleware(tm.nrApp)
}

// EnhanceTracing must run after NewRelicMiddleware. The status recorded for
// a failed request is the one the error handler will write, since the
// response is still empty when the error comes back up the chain.
func (tm *TracingMiddleware) EnhanceTracing() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			txn := newrelic.FromContext(c.Request().Context())
			if txn == nil {
				return next(c)
			}

			for key, value := range tm.requestAttributes(c) {
				txn.AddAttribute(key, value)
			}

			err := next(c)
			status := c.Response().Status
			if err != nil {
				txn.NoticeError(nrpkgerrors.Wrap(err))
				status = resolveError(err).Status
			}
			txn.AddAttribute("http.status_code", status)

			return err
		}
	}
}

func (tm *TracingMiddleware) requestAttributes(c echo.Context) map[string]string {
	attrs := map[string]string{
		"http.real_ip":    c.RealIP(),
		"http.user_agent": c.Request().UserAgent(),
		"service.env":     tm.server.Config.Primary.Env,
		"request.id":      GetRequestID(c),
		"jokes.page":      c.QueryParam("page"),
		"jokes.per_page":  c.QueryParam("per_page"),
	}
	for key, value := range attrs {
		if value == "" {
			delete(attrs, key)
		}
	}
	return attrs
}
