package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	RequestIDHeader = "X-Request-ID"
	RequestIDKey    = "request_id"
)

// maxRequestIDLength bounds a client-supplied id before it reaches logs.
const maxRequestIDLength = 128

// RequestID reuses the caller's X-Request-ID or generates a uuid, echoes it
// on the response and stores it under RequestIDKey.
func RequestID() echo.MiddlewareFunc {
	assign := middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		TargetHeader: RequestIDHeader,
		Generator:    uuid.NewString,
		RequestIDHandler: func(c echo.Context, requestID string) {
			c.Set(RequestIDKey, requestID)
		},
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		withID := assign(next)
		return func(c echo.Context) error {
			header := c.Request().Header
			if len(header.Get(RequestIDHeader)) > maxRequestIDLength {
				header.Del(RequestIDHeader)
			}
			return withID(c)
		}
	}
}

func GetRequestID(c echo.Context) string {
	requestID, _ := c.Get(RequestIDKey).(string)
	return requestID
}
