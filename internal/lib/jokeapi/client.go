// Package jokeapi is a small client for the JokeAPI v2 joke endpoint.
package jokeapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/deppfellow/jokes-api/internal/config"
)

// maxBodyBytes bounds how much of an upstream response is read.
const maxBodyBytes = 8 << 20

var validate = validator.New()

// Flags are the content flags JokeAPI attaches to every joke.
type Flags struct {
	NSFW      bool `json:"nsfw"`
	Religious bool `json:"religious"`
	Political bool `json:"political"`
	Racist    bool `json:"racist"`
	Sexist    bool `json:"sexist"`
	Explicit  bool `json:"explicit"`
}

// Joke is one entry of the upstream jokes array. Missing fields decode to
// their zero values.
type Joke struct {
	ID       int    `json:"id"`
	Category string `json:"category"`
	Type     string `json:"type" validate:"oneof=single twopart"`
	Flags    Flags  `json:"flags"`
	Safe     bool   `json:"safe"`
	Lang     string `json:"lang"`
	Joke     string `json:"joke"`
	Setup    string `json:"setup"`
	Delivery string `json:"delivery"`
}

// Supported reports whether the entry has a type the store accepts.
func (j Joke) Supported() bool {
	return validate.Struct(j) == nil
}

// Response is the multi-joke envelope. Jokes is a pointer so a body
// without the array can be told apart from an empty one.
type Response struct {
	Error   bool    `json:"error"`
	Message string  `json:"message"`
	Amount  int     `json:"amount"`
	Jokes   *[]Joke `json:"jokes"`
}

// Client fetches jokes from a fixed URL.
type Client struct {
	url        string
	userAgent  string
	httpClient *http.Client
	logger     *zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

func WithURL(url string) Option {
	return func(c *Client) {
		c.url = url
	}
}

// NewClient builds a client whose outbound calls are recorded as New Relic
// external segments when a transaction is in the request context.
func NewClient(cfg config.UpstreamConfig, logger *zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		url:       cfg.URL,
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newrelic.NewRoundTripper(http.DefaultTransport),
		},
		logger: logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchJokes issues one GET and returns the decoded jokes array. A
// transport failure, a non-2xx status, a non-JSON body or a body without a
// jokes array is an error.
func (c *Client) FetchJokes(ctx context.Context) ([]Joke, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build jokeapi request")
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "call jokeapi")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read jokeapi response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("jokeapi returned status %d", resp.StatusCode)
	}

	var payload Response
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.Wrap(err, "decode jokeapi response")
	}

	if payload.Jokes == nil {
		if payload.Error {
			return nil, errors.Errorf("jokeapi error: %s", payload.Message)
		}
		return nil, errors.New("jokeapi response has no jokes array")
	}

	c.logger.Debug().
		Str("url", c.url).
		Int("received", len(*payload.Jokes)).
		Msg("fetched jokes from jokeapi")

	return *payload.Jokes, nil
}
