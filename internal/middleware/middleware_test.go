package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/jokes-api/internal/config"
	"github.com/deppfellow/jokes-api/internal/errs"
	"github.com/deppfellow/jokes-api/internal/server"
)

func newTestServer(logger zerolog.Logger) *server.Server {
	return &server.Server{Config: config.DefaultConfig(), Logger: &logger}
}

func newContext(method string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, "/jokes", nil)
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func TestGlobalErrorHandler(t *testing.T) {
	global := NewGlobalMiddlewares(newTestServer(zerolog.Nop()))

	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{
			name:   "http error as is",
			err:    errs.NewNotFoundError("No jokes found in database. Fetch jokes first!", nil),
			status: http.StatusNotFound,
			body:   `{"error": "No jokes found in database. Fetch jokes first!"}`,
		},
		{
			name:   "field errors",
			err:    errs.NewBadRequestError("Validation failed", nil, []errs.FieldError{{Field: "page", Error: "is required"}}),
			status: http.StatusBadRequest,
			body:   `{"error": "Validation failed", "errors": [{"field": "page", "error": "is required"}]}`,
		},
		{
			name:   "route not found",
			err:    echo.ErrNotFound,
			status: http.StatusNotFound,
			body:   `{"error": "Route not found"}`,
		},
		{
			name:   "method not allowed",
			err:    echo.ErrMethodNotAllowed,
			status: http.StatusMethodNotAllowed,
			body:   `{"error": "Method Not Allowed"}`,
		},
		{
			name:   "unknown error",
			err:    errors.New("call jokeapi: connection refused"),
			status: http.StatusInternalServerError,
			body:   `{"error": "Internal Server Error"}`,
		},
		{
			name:   "constraint violation",
			err:    &pgconn.PgError{Code: "23514", TableName: "jokes", ColumnName: "joke_type"},
			status: http.StatusBadRequest,
			body:   `{"error": "The Joke Type value does not meet required conditions"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(http.MethodGet)
			global.GlobalErrorHandler(tt.err, c)

			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, tt.body, rec.Body.String())
		})
	}
}

func TestGlobalErrorHandler_CommittedResponse(t *testing.T) {
	global := NewGlobalMiddlewares(newTestServer(zerolog.Nop()))

	c, rec := newContext(http.MethodGet)
	require.NoError(t, c.String(http.StatusOK, "partial"))

	global.GlobalErrorHandler(errors.New("late failure"), c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "partial", rec.Body.String())
}

func TestGlobalErrorHandler_Head(t *testing.T) {
	global := NewGlobalMiddlewares(newTestServer(zerolog.Nop()))

	c, rec := newContext(http.MethodHead)
	global.GlobalErrorHandler(echo.ErrNotFound, c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestResolveError(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, resolveError(errs.NewNotFoundError("x", nil)).Status)
	assert.Equal(t, http.StatusInternalServerError, resolveError(errors.New("boom")).Status)

	notAllowed := resolveError(echo.ErrMethodNotAllowed)
	assert.Equal(t, http.StatusMethodNotAllowed, notAllowed.Status)
	assert.Equal(t, "METHOD_NOT_ALLOWED", notAllowed.Code)

	custom := resolveError(echo.NewHTTPError(http.StatusRequestEntityTooLarge, map[string]string{"x": "y"}))
	assert.Equal(t, "Request Entity Too Large", custom.Message)
}

func TestRequestID(t *testing.T) {
	run := func(header string) (string, string) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set(RequestIDHeader, header)
		}
		rec := httptest.NewRecorder()
		c := echo.New().NewContext(req, rec)

		var seen string
		err := RequestID()(func(c echo.Context) error {
			seen = GetRequestID(c)
			return nil
		})(c)
		require.NoError(t, err)
		return seen, rec.Header().Get(RequestIDHeader)
	}

	seen, echoed := run("client-id")
	assert.Equal(t, "client-id", seen)
	assert.Equal(t, "client-id", echoed)

	seen, echoed = run("")
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, echoed)

	seen, _ = run(strings.Repeat("x", maxRequestIDLength+1))
	assert.Len(t, seen, 36)
}

func TestEnhanceContext(t *testing.T) {
	var buf bytes.Buffer
	enhancer := NewContextEnhancer(newTestServer(zerolog.New(&buf)))

	req := httptest.NewRequest(http.MethodGet, "/jokes", nil)
	c := echo.New().NewContext(req, httptest.NewRecorder())
	c.Set(RequestIDKey, "req-1")

	err := enhancer.EnhanceContext()(func(c echo.Context) error {
		GetLogger(c).Info().Msg("inside")
		zerolog.Ctx(c.Request().Context()).Info().Msg("from context")
		return nil
	})(c)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.Contains(t, line, `"request_id":"req-1"`)
		assert.Contains(t, line, `"method":"GET"`)
	}
}

func TestGetLogger_Fallback(t *testing.T) {
	c, _ := newContext(http.MethodGet)
	assert.NotNil(t, GetLogger(c))
}
