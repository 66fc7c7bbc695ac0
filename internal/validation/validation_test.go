package validation

import (
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/jokes-api/internal/errs"
)

type pageRequest struct {
	Page QueryInt `query:"page"`
}

func (r *pageRequest) Validate() error { return nil }

type createRequest struct {
	Category string `json:"category" validate:"required"`
	Lang     string `json:"lang" validate:"omitempty,oneof=en de"`
	Limit    int    `json:"limit" validate:"min=1"`
}

func (r *createRequest) Validate() error {
	return validator.New().Struct(r)
}

type customRequest struct{}

func (r *customRequest) Validate() error {
	return CustomValidationErrors{{Field: "flags", Message: "must not all be set"}}
}

type ignoresBody struct{ bound bool }

func (r *ignoresBody) Bind(echo.Context) error {
	r.bound = true
	return nil
}

func (r *ignoresBody) Validate() error { return nil }

func newContext(method, target, contentType, body string) echo.Context {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func badRequest(t *testing.T, err error) *errs.HTTPError {
	t.Helper()
	var httpErr *errs.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	return httpErr
}

func TestQueryInt_UnmarshalParam(t *testing.T) {
	tests := []struct {
		in   string
		want QueryInt
	}{
		{"3", QueryInt{Value: 3, Set: true}},
		{" 7 ", QueryInt{Value: 7, Set: true}},
		{"+2", QueryInt{Value: 2, Set: true}},
		{"-1", QueryInt{Value: -1, Set: true}},
		{"abc", QueryInt{}},
		{"2.5", QueryInt{}},
		{"", QueryInt{}},
		{"99999999999999999999999", QueryInt{Value: math.MaxInt, Set: true}},
		{"-99999999999999999999999", QueryInt{Value: math.MinInt, Set: true}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var q QueryInt
			require.NoError(t, q.UnmarshalParam(tt.in))
			assert.Equal(t, tt.want, q)
		})
	}
}

func TestQueryInt_Or(t *testing.T) {
	assert.Equal(t, 10, QueryInt{}.Or(10))
	assert.Equal(t, 0, QueryInt{Value: 0, Set: true}.Or(10))
}

func TestBindAndValidate_QueryFallback(t *testing.T) {
	req := &pageRequest{}
	require.NoError(t, BindAndValidate(newContext(http.MethodGet, "/?page=oops", "", ""), req))
	assert.Equal(t, 1, req.Page.Or(1))

	req = &pageRequest{}
	require.NoError(t, BindAndValidate(newContext(http.MethodGet, "/?page=4", "", ""), req))
	assert.Equal(t, 4, req.Page.Or(1))
}

func TestBindAndValidate_FieldErrors(t *testing.T) {
	c := newContext(http.MethodPost, "/", echo.MIMEApplicationJSON, `{"lang":"fr","limit":0}`)
	httpErr := badRequest(t, BindAndValidate(c, &createRequest{}))

	assert.Equal(t, "Validation failed", httpErr.Message)
	assert.ElementsMatch(t, []errs.FieldError{
		{Field: "category", Error: "is required"},
		{Field: "lang", Error: "must be one of: en de"},
		{Field: "limit", Error: "must be at least 1"},
	}, httpErr.Errors)
}

func TestBindAndValidate_MalformedBody(t *testing.T) {
	c := newContext(http.MethodPost, "/", echo.MIMEApplicationJSON, `{"category":`)
	httpErr := badRequest(t, BindAndValidate(c, &createRequest{}))
	assert.NotEmpty(t, httpErr.Message)
	assert.Nil(t, httpErr.Errors)
}

func TestBindAndValidate_CustomErrors(t *testing.T) {
	httpErr := badRequest(t, BindAndValidate(newContext(http.MethodGet, "/", "", ""), &customRequest{}))
	assert.Equal(t, []errs.FieldError{{Field: "flags", Error: "must not all be set"}}, httpErr.Errors)
}

func TestBindAndValidate_PayloadBinder(t *testing.T) {
	req := &ignoresBody{}
	c := newContext(http.MethodPost, "/", "text/plain", "whatever")
	require.NoError(t, BindAndValidate(c, req))
	assert.True(t, req.bound)
}
