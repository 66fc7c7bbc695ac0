package handler

import (
	"github.com/deppfellow/jokes-api/internal/server"
	"github.com/deppfellow/jokes-api/internal/service"
)

type Handlers struct {
	Health  *HealthHandler
	OpenAPI *OpenAPIHandler
	Jokes   *JokeHandler
}

func NewHandlers(s *server.Server, services *service.Services) *Handlers {
	return &Handlers{
		Health:  NewHealthHandler(s),
		OpenAPI: NewOpenAPIHandler(s),
		Jokes:   NewJokeHandler(s, services.Joke),
	}
}
