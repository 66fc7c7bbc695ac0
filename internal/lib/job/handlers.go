package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

func (j *JobService) handleFetchJokesTask(ctx context.Context, t *asynq.Task) error {
	var p FetchJokesPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal fetch jokes payload: %w", err)
	}

	start := time.Now()
	j.logger.Info().
		Str("type", TaskFetchJokes).
		Str("trigger", p.Trigger).
		Msg("Processing fetch jokes task")

	if err := j.fetch(ctx); err != nil {
		j.logger.Error().
			Err(err).
			Str("type", TaskFetchJokes).
			Str("trigger", p.Trigger).
			Dur("duration", time.Since(start)).
			Msg("Failed to refresh jokes")
		// Refreshes are not retried; the next scheduled run tries again.
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	j.logger.Info().
		Str("type", TaskFetchJokes).
		Dur("duration", time.Since(start)).
		Msg("Successfully refreshed jokes")

	return nil
}
