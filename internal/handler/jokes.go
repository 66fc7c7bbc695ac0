package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/deppfellow/jokes-api/internal/errs"
	"github.com/deppfellow/jokes-api/internal/model"
	"github.com/deppfellow/jokes-api/internal/server"
	"github.com/deppfellow/jokes-api/internal/service"
	"github.com/deppfellow/jokes-api/internal/validation"
)

const (
	DefaultPage    = 1
	DefaultPerPage = 10

	msgNoJokes      = "No jokes found in database. Fetch jokes first!"
	msgJokesFetched = "Jokes fetched and stored successfully!"
)

// ListJokesRequest reads page and per_page from the query string only.
// Malformed values fall back to the defaults.
type ListJokesRequest struct {
	Page    validation.QueryInt `query:"page"`
	PerPage validation.QueryInt `query:"per_page"`
}

func (r *ListJokesRequest) Bind(c echo.Context) error {
	return (&echo.DefaultBinder{}).BindQueryParams(c, r)
}

func (r *ListJokesRequest) Validate() error {
	return nil
}

type ListJokesResponse struct {
	Total       int64        `json:"total"`
	Pages       int          `json:"pages"`
	CurrentPage int          `json:"current_page"`
	Jokes       []model.Joke `json:"jokes"`
}

// FetchJokesRequest has no input. Any request body is ignored.
type FetchJokesRequest struct{}

func (r *FetchJokesRequest) Bind(echo.Context) error {
	return nil
}

func (r *FetchJokesRequest) Validate() error {
	return nil
}

type MessageResponse struct {
	Message string `json:"message"`
}

type JokeHandler struct {
	Handler
	jokeService *service.JokeService
}

func NewJokeHandler(s *server.Server, jokeService *service.JokeService) *JokeHandler {
	return &JokeHandler{
		Handler:     NewHandler(s),
		jokeService: jokeService,
	}
}

// ListJokes serves one page of stored jokes. An empty page, whether the
// store is empty or the page is past the end, is a 404.
func (h *JokeHandler) ListJokes(c echo.Context, req *ListJokesRequest) (*ListJokesResponse, error) {
	page, err := h.jokeService.List(c.Request().Context(), req.Page.Or(DefaultPage), req.PerPage.Or(DefaultPerPage))
	if err != nil {
		return nil, h.internalError(err)
	}

	if page.Empty() {
		return nil, errs.NewNotFoundError(msgNoJokes, nil)
	}

	return &ListJokesResponse{
		Total:       page.Total,
		Pages:       page.Pages,
		CurrentPage: page.Page,
		Jokes:       page.Items,
	}, nil
}

// FetchJokes runs one fetch-and-store. Failures are left to the global
// error handler.
func (h *JokeHandler) FetchJokes(c echo.Context, _ *FetchJokesRequest) (*MessageResponse, error) {
	if _, err := h.jokeService.FetchAndStore(c.Request().Context()); err != nil {
		return nil, err
	}

	return &MessageResponse{Message: msgJokesFetched}, nil
}

// internalError carries the raw error text unless the server is configured
// to hide it.
func (h *JokeHandler) internalError(err error) *errs.HTTPError {
	httpErr := errs.NewInternalServerError()
	if h.server.Config.Server.ExposeInternalErrors {
		return httpErr.WithMessage(err.Error())
	}
	return httpErr
}
