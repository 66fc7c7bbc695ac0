// Package middleware holds the HTTP middleware shared by every route:
// request ids, the request-scoped logger, request logging, panic recovery,
// secure headers, CORS, New Relic tracing and the global error handler.
package middleware
