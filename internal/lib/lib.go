// Package lib groups integrations that do not belong to a single layer:
// the JokeAPI client and the asynq-backed refresh job.
package lib
