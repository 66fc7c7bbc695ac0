// Package errs defines the error type handlers return when they already
// know the HTTP status and client-facing message, plus its constructors.
// The global error handler writes these as {"error": "<message>"}.
package errs
