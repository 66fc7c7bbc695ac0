package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/deppfellow/jokes-api/internal/database"
	"github.com/deppfellow/jokes-api/internal/model"
)

const (
	jokesTable = "jokes"

	// FallbackPerPage replaces a per_page below one.
	FallbackPerPage = 20

	// insertChunkSize caps rows per INSERT so the statement stays well
	// under SQLite's bound parameter limit.
	insertChunkSize = 100
)

var (
	insertColumns = []string{
		"category", "joke_type", "joke", "setup", "delivery",
		"nsfw", "political", "sexist", "safe", "lang",
	}
	selectColumns = append([]string{"id"}, insertColumns...)
)

// ErrUnsupportedJokeType is returned when a batch is handed a joke whose
// type is neither single nor twopart.
var ErrUnsupportedJokeType = errors.New("unsupported joke type")

type JokeRepository struct {
	db *database.Database
}

func NewJokeRepository(db *database.Database) *JokeRepository {
	return &JokeRepository{db: db}
}

// JokeBatch is a pending write set. Nothing reaches the store until Commit.
// A batch is not safe for concurrent use.
type JokeBatch struct {
	repo    *JokeRepository
	pending []model.Joke
}

func (r *JokeRepository) NewBatch() *JokeBatch {
	return &JokeBatch{repo: r}
}

// Add queues one joke for insertion.
func (b *JokeBatch) Add(joke model.Joke) error {
	if !joke.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedJokeType, joke.Type)
	}
	b.pending = append(b.pending, joke)
	return nil
}

func (b *JokeBatch) Len() int {
	return len(b.pending)
}

// Commit inserts every pending joke in a single transaction and returns how
// many were written. On failure nothing is persisted and the pending set
// is kept.
func (b *JokeBatch) Commit(ctx context.Context) (int, error) {
	if len(b.pending) == 0 {
		return 0, nil
	}

	db := b.repo.db
	err := db.RunInTx(ctx, func(tx *sql.Tx) error {
		for start := 0; start < len(b.pending); start += insertChunkSize {
			end := min(start+insertChunkSize, len(b.pending))

			insert := db.Builder().Insert(jokesTable).Columns(insertColumns...)
			for _, j := range b.pending[start:end] {
				insert = insert.Values(
					j.Category, string(j.Type), j.Joke, j.Setup, j.Delivery,
					j.NSFW, j.Political, j.Sexist, j.Safe, j.Lang,
				)
			}

			query, args, err := insert.ToSql()
			if err != nil {
				return fmt.Errorf("build insert: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("commit jokes: %w", err)
	}

	n := len(b.pending)
	b.pending = nil
	return n, nil
}

// Count returns the number of stored jokes.
func (r *JokeRepository) Count(ctx context.Context) (int64, error) {
	query, args, err := r.db.Builder().Select("COUNT(*)").From(jokesTable).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}

	var total int64
	if err := r.db.DB.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count jokes: %w", err)
	}
	return total, nil
}

// Paginate returns the 1-indexed page of jokes ordered by id. A page past
// the end comes back with no items rather than an error.
func (r *JokeRepository) Paginate(ctx context.Context, page, perPage int) (model.JokePage, error) {
	page, perPage = NormalizePage(page, perPage)

	total, err := r.Count(ctx)
	if err != nil {
		return model.JokePage{}, err
	}

	result := model.JokePage{
		Items:   []model.Joke{},
		Total:   total,
		Pages:   PageCount(total, perPage),
		Page:    page,
		PerPage: perPage,
	}

	// Checked before computing the offset so huge page numbers cannot
	// overflow it.
	if page > result.Pages {
		return result, nil
	}
	offset := uint64(page-1) * uint64(perPage)

	query, args, err := r.db.Builder().
		Select(selectColumns...).
		From(jokesTable).
		OrderBy("id ASC").
		Limit(uint64(perPage)).
		Offset(offset).
		ToSql()
	if err != nil {
		return model.JokePage{}, fmt.Errorf("build page query: %w", err)
	}

	rows, err := r.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return model.JokePage{}, fmt.Errorf("query jokes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		joke, err := scanJoke(rows)
		if err != nil {
			return model.JokePage{}, err
		}
		result.Items = append(result.Items, joke)
	}
	if err := rows.Err(); err != nil {
		return model.JokePage{}, fmt.Errorf("iterate jokes: %w", err)
	}

	return result, nil
}

func scanJoke(rows *sql.Rows) (model.Joke, error) {
	var (
		j                     model.Joke
		jokeType              string
		text, setup, delivery sql.NullString
	)
	err := rows.Scan(
		&j.ID, &j.Category, &jokeType, &text, &setup, &delivery,
		&j.NSFW, &j.Political, &j.Sexist, &j.Safe, &j.Lang,
	)
	if err != nil {
		return model.Joke{}, fmt.Errorf("scan joke: %w", err)
	}

	j.Type = model.JokeType(jokeType)
	j.Joke = nullableString(text)
	j.Setup = nullableString(setup)
	j.Delivery = nullableString(delivery)
	return j, nil
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

// NormalizePage clamps page to at least 1 and replaces a per_page below 1
// with FallbackPerPage.
func NormalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = FallbackPerPage
	}
	return page, perPage
}

// PageCount is ceil(total/perPage), or 0 for an empty store.
func PageCount(total int64, perPage int) int {
	if total <= 0 || perPage <= 0 {
		return 0
	}
	// Rounded up without adding perPage first, which overflows near MaxInt.
	pages := total / int64(perPage)
	if total%int64(perPage) != 0 {
		pages++
	}
	return int(pages)
}
