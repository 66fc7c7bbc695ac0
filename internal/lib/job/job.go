// Package job runs the periodic joke cache refresh on asynq.
//
// A scheduler enqueues a jokes:fetch task on the configured cron spec and a
// worker server executes it against Redis. Nothing here runs unless
// jobs.enabled is set.
package job

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/deppfellow/jokes-api/internal/config"
)

// FetchFunc performs one fetch-and-store pass.
type FetchFunc func(ctx context.Context) error

type JobService struct {
	// Client enqueues tasks.
	Client *asynq.Client

	server    *asynq.Server
	scheduler *asynq.Scheduler
	schedule  string
	fetch     FetchFunc
	logger    *zerolog.Logger
}

func NewJobService(logger *zerolog.Logger, cfg *config.Config) *JobService {
	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Address}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Jobs.Concurrency,
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})

	return &JobService{
		Client:    asynq.NewClient(redisOpt),
		server:    server,
		scheduler: asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{}),
		schedule:  cfg.Jobs.FetchSchedule,
		logger:    logger,
	}
}

// InitHandlers sets the function the fetch task runs. It must be called
// before Start.
func (j *JobService) InitHandlers(fetch FetchFunc) {
	j.fetch = fetch
}

// Start registers the schedule and starts the worker and scheduler. Both
// run in the background until Stop.
func (j *JobService) Start() error {
	if j.fetch == nil {
		return errors.New("job handlers not initialized")
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskFetchJokes, j.handleFetchJokesTask)

	task, err := NewFetchJokesTask(TriggerSchedule)
	if err != nil {
		return err
	}
	entryID, err := j.scheduler.Register(j.schedule, task)
	if err != nil {
		return err
	}

	j.logger.Info().
		Str("schedule", j.schedule).
		Str("entry_id", entryID).
		Msg("Starting background job server")

	if err := j.server.Start(mux); err != nil {
		return err
	}
	return j.scheduler.Start()
}

// EnqueueFetch queues an immediate refresh, used to warm an empty store.
func (j *JobService) EnqueueFetch(ctx context.Context) (*asynq.TaskInfo, error) {
	task, err := NewFetchJokesTask(TriggerWarmup)
	if err != nil {
		return nil, err
	}
	return j.Client.EnqueueContext(ctx, task)
}

func (j *JobService) Stop() {
	j.logger.Info().Msg("Stopping background job server")
	j.scheduler.Shutdown()
	j.server.Shutdown()
	_ = j.Client.Close()
}
