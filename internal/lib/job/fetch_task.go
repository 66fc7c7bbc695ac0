package job

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskFetchJokes = "jokes:fetch"
	QueueDefault   = "default"

	TriggerSchedule = "schedule"
	TriggerWarmup   = "warmup"
)

type FetchJokesPayload struct {
	Trigger string `json:"trigger"`
}

// NewFetchJokesTask builds a refresh task. It is never retried and must
// finish within two minutes.
func NewFetchJokesTask(trigger string) (*asynq.Task, error) {
	payload, err := json.Marshal(FetchJokesPayload{Trigger: trigger})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskFetchJokes,
		payload,
		asynq.MaxRetry(0),
		asynq.Queue(QueueDefault),
		asynq.Timeout(2*time.Minute),
	), nil
}
