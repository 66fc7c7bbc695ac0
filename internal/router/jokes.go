package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/deppfellow/jokes-api/internal/handler"
)

func registerJokeRoutes(r *echo.Echo, h *handler.Handlers) {
	jokes := h.Jokes

	r.GET("/jokes", handler.Handle(
		jokes.Handler,
		jokes.ListJokes,
		http.StatusOK,
		func() *handler.ListJokesRequest { return &handler.ListJokesRequest{} },
	))

	r.POST("/fetch-jokes", handler.Handle(
		jokes.Handler,
		jokes.FetchJokes,
		http.StatusOK,
		func() *handler.FetchJokesRequest { return &handler.FetchJokesRequest{} },
	))
}
