package validation

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/deppfellow/jokes-api/internal/errs"
)

// Validatable is implemented by request payloads.
type Validatable interface {
	Validate() error
}

// Binder lets a payload replace echo's default binding, for example to
// ignore a request body it never reads.
type Binder interface {
	Bind(c echo.Context) error
}

// CustomValidationError is a field problem that validator tags cannot express.
type CustomValidationError struct {
	Field   string
	Message string
}

type CustomValidationErrors []CustomValidationError

func (c CustomValidationErrors) Error() string {
	return "Validation failed"
}

// BindAndValidate fills payload from the request and validates it. Both
// bind and validation failures come back as a 400 *errs.HTTPError.
func BindAndValidate(c echo.Context, payload Validatable) error {
	if err := bind(c, payload); err != nil {
		return errs.NewBadRequestError(bindErrorMessage(err), nil, nil)
	}

	if err := payload.Validate(); err != nil {
		msg, fieldErrors := extractValidationError(err)
		return errs.NewBadRequestError(msg, nil, fieldErrors)
	}

	return nil
}

func bind(c echo.Context, payload Validatable) error {
	if b, ok := payload.(Binder); ok {
		return b.Bind(c)
	}
	return c.Bind(payload)
}

func bindErrorMessage(err error) string {
	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		if msg, ok := echoErr.Message.(string); ok && msg != "" {
			return msg
		}
		return http.StatusText(echoErr.Code)
	}
	return "Invalid request"
}

func extractValidationError(err error) (string, []errs.FieldError) {
	var fieldErrors []errs.FieldError

	var custom CustomValidationErrors
	if errors.As(err, &custom) {
		for _, e := range custom {
			fieldErrors = append(fieldErrors, errs.FieldError{Field: e.Field, Error: e.Message})
		}
		return "Validation failed", fieldErrors
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error(), nil
	}

	for _, fe := range validationErrors {
		field := strings.ToLower(fe.Field())
		var msg string

		switch fe.Tag() {
		case "required":
			msg = "is required"
		case "min":
			if fe.Kind() == reflect.String {
				msg = fmt.Sprintf("must be at least %s characters", fe.Param())
			} else {
				msg = fmt.Sprintf("must be at least %s", fe.Param())
			}
		case "max":
			if fe.Kind() == reflect.String {
				msg = fmt.Sprintf("must not exceed %s characters", fe.Param())
			} else {
				msg = fmt.Sprintf("must not exceed %s", fe.Param())
			}
		case "oneof":
			msg = fmt.Sprintf("must be one of: %s", fe.Param())
		case "url":
			msg = "must be a valid URL"
		default:
			if fe.Param() != "" {
				msg = fmt.Sprintf("%s: %s:%s", field, fe.Tag(), fe.Param())
			} else {
				msg = fmt.Sprintf("%s: %s", field, fe.Tag())
			}
		}

		fieldErrors = append(fieldErrors, errs.FieldError{Field: field, Error: msg})
	}

	return "Validation failed", fieldErrors
}

// QueryInt is an integer query parameter that never fails binding. Input
// that is not an integer leaves it unset so the caller's default applies.
// Out-of-range integers saturate.
type QueryInt struct {
	Value int
	Set   bool
}

// UnmarshalParam implements echo.BindUnmarshaler.
func (q *QueryInt) UnmarshalParam(param string) error {
	s := strings.TrimSpace(param)
	n, err := strconv.Atoi(s)
	switch {
	case err == nil:
		*q = QueryInt{Value: n, Set: true}
	case errors.Is(err, strconv.ErrRange):
		if strings.HasPrefix(s, "-") {
			*q = QueryInt{Value: math.MinInt, Set: true}
		} else {
			*q = QueryInt{Value: math.MaxInt, Set: true}
		}
	default:
		*q = QueryInt{}
	}
	return nil
}

// Or returns the bound value, or def when the parameter was absent or
// malformed.
func (q QueryInt) Or(def int) int {
	if q.Set {
		return q.Value
	}
	return def
}
