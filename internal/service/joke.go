package service

import (
	"context"
	"fmt"
	"time"

	"github.com/deppfellow/jokes-api/internal/lib/jokeapi"
	"github.com/deppfellow/jokes-api/internal/model"
	"github.com/deppfellow/jokes-api/internal/repository"
	"github.com/deppfellow/jokes-api/internal/server"
)

// JokeSource is the upstream the fetch operation reads from.
type JokeSource interface {
	FetchJokes(ctx context.Context) ([]jokeapi.Joke, error)
}

// FetchResult counts what one fetch did.
type FetchResult struct {
	Received int
	Stored   int
	Skipped  int
}

type JokeService struct {
	server *server.Server
	repo   *repository.JokeRepository
	source JokeSource
}

func NewJokeService(s *server.Server, repo *repository.JokeRepository, source JokeSource) *JokeService {
	return &JokeService{
		server: s,
		repo:   repo,
		source: source,
	}
}

// FetchAndStore pulls one batch of jokes from upstream and stores every
// supported entry in a single commit. Either all mapped jokes are stored or
// none are.
func (s *JokeService) FetchAndStore(ctx context.Context) (FetchResult, error) {
	start := time.Now()
	logger := s.server.Logger.With().Str("operation", "fetch_jokes").Logger()

	entries, err := s.source.FetchJokes(ctx)
	if err != nil {
		logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("failed to fetch jokes from upstream")
		return FetchResult{}, err
	}

	result := FetchResult{Received: len(entries)}
	batch := s.repo.NewBatch()

	for _, entry := range entries {
		joke, ok := ToRecord(entry)
		if !ok {
			result.Skipped++
			logger.Debug().Str("type", entry.Type).Int("upstream_id", entry.ID).Msg("skipping unsupported joke type")
			continue
		}
		if err := batch.Add(joke); err != nil {
			return result, fmt.Errorf("queue joke: %w", err)
		}
	}

	stored, err := batch.Commit(ctx)
	if err != nil {
		logger.Error().Err(err).
			Int("received", result.Received).
			Int("pending", batch.Len()).
			Msg("failed to store fetched jokes")
		return result, err
	}
	result.Stored = stored

	logger.Info().
		Int("received", result.Received).
		Int("stored", result.Stored).
		Int("skipped", result.Skipped).
		Dur("duration", time.Since(start)).
		Msg("jokes fetched and stored")

	return result, nil
}

// List returns one page of stored jokes.
func (s *JokeService) List(ctx context.Context, page, perPage int) (model.JokePage, error) {
	return s.repo.Paginate(ctx, page, perPage)
}

// ToRecord maps an upstream entry to a stored joke. It reports false for
// entries whose type is neither single nor twopart.
func ToRecord(entry jokeapi.Joke) (model.Joke, bool) {
	if !entry.Supported() {
		return model.Joke{}, false
	}

	var joke model.Joke
	switch model.JokeType(entry.Type) {
	case model.JokeTypeSingle:
		joke = model.NewSingleJoke(entry.Joke)
	case model.JokeTypeTwoPart:
		joke = model.NewTwoPartJoke(entry.Setup, entry.Delivery)
	}

	joke.Category = entry.Category
	joke.NSFW = entry.Flags.NSFW
	joke.Political = entry.Flags.Political
	joke.Sexist = entry.Flags.Sexist
	joke.Safe = entry.Safe
	joke.Lang = entry.Lang
	return joke, true
}
