// Package validation binds request input into typed payloads and turns
// validator failures into field errors a client can read.
package validation
