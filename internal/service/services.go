// Package service holds the business logic between the handlers and the
// repositories.
package service

import (
	"github.com/deppfellow/jokes-api/internal/lib/job"
	"github.com/deppfellow/jokes-api/internal/lib/jokeapi"
	"github.com/deppfellow/jokes-api/internal/repository"
	"github.com/deppfellow/jokes-api/internal/server"
)

type Services struct {
	Joke *JokeService
	Job  *job.JobService
}

// NewServices wires the services against the shared server resources. The
// optional jokeapi options let tests point the client at a stub.
func NewServices(s *server.Server, repos *repository.Repositories, opts ...jokeapi.Option) *Services {
	client := jokeapi.NewClient(s.Config.Upstream, s.Logger, opts...)

	return &Services{
		Joke: NewJokeService(s, repos.Joke, client),
		Job:  s.Job,
	}
}
