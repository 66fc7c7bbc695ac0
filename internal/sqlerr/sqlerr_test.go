package sqlerr

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/jokes-api/internal/errs"
)

const jokesDDL = `CREATE TABLE jokes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	category TEXT NOT NULL,
	joke_type TEXT NOT NULL CHECK (joke_type IN ('single', 'twopart')),
	slug TEXT UNIQUE
)`

func openJokes(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(jokesDDL)
	require.NoError(t, err)
	return db
}

func asHTTPError(t *testing.T, err error) *errs.HTTPError {
	t.Helper()
	var httpErr *errs.HTTPError
	require.True(t, errors.As(err, &httpErr), "want *errs.HTTPError, got %T", err)
	return httpErr
}

func TestHandleError_SQLiteNotNull(t *testing.T) {
	db := openJokes(t)

	_, err := db.Exec(`INSERT INTO jokes (category, joke_type) VALUES (NULL, 'single')`)
	require.Error(t, err)

	sqlErr := Convert(err)
	require.NotNil(t, sqlErr)
	assert.Equal(t, NotNullViolation, sqlErr.Code)
	assert.Equal(t, "jokes", sqlErr.TableName)
	assert.Equal(t, "category", sqlErr.ColumnName)

	httpErr := asHTTPError(t, HandleError(err))
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.Equal(t, "JOKE_REQUIRED", httpErr.Code)
	assert.Equal(t, "The Category is required", httpErr.Message)
	assert.Equal(t, []errs.FieldError{{Field: "category", Error: "is required"}}, httpErr.Errors)
}

func TestHandleError_SQLiteCheck(t *testing.T) {
	db := openJokes(t)

	_, err := db.Exec(`INSERT INTO jokes (category, joke_type) VALUES ('Pun', 'knock-knock')`)
	require.Error(t, err)

	sqlErr := Convert(err)
	require.NotNil(t, sqlErr)
	assert.Equal(t, CheckViolation, sqlErr.Code)
	assert.Equal(t, "joke_type", sqlErr.ColumnName)

	httpErr := asHTTPError(t, HandleError(err))
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.Equal(t, "The Joke Type value does not meet required conditions", httpErr.Message)
}

func TestHandleError_SQLiteUnique(t *testing.T) {
	db := openJokes(t)

	_, err := db.Exec(`INSERT INTO jokes (category, joke_type, slug) VALUES ('Pun', 'single', 'a')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO jokes (category, joke_type, slug) VALUES ('Pun', 'single', 'a')`)
	require.Error(t, err)

	sqlErr := Convert(err)
	require.NotNil(t, sqlErr)
	assert.Equal(t, UniqueViolation, sqlErr.Code)
	assert.Equal(t, "slug", sqlErr.ColumnName)

	httpErr := asHTTPError(t, HandleError(err))
	assert.Equal(t, "JOKE_ALREADY_EXISTS", httpErr.Code)
	assert.Equal(t, "A Joke with this Slug already exists", httpErr.Message)
}

func TestHandleError_Postgres(t *testing.T) {
	tests := []struct {
		name    string
		pgErr   *pgconn.PgError
		code    string
		message string
	}{
		{
			name: "unique from constraint name",
			pgErr: &pgconn.PgError{
				Code: "23505", Severity: "ERROR", TableName: "jokes",
				ConstraintName: "jokes_slug_key",
			},
			code:    "JOKE_ALREADY_EXISTS",
			message: "A Joke with this Slug already exists",
		},
		{
			name: "foreign key",
			pgErr: &pgconn.PgError{
				Code: "23503", Severity: "ERROR", TableName: "ratings", ColumnName: "joke_id",
			},
			code:    "RATING_NOT_FOUND",
			message: "The referenced Joke does not exist",
		},
		{
			name: "check without column",
			pgErr: &pgconn.PgError{
				Code: "23514", Severity: "ERROR", TableName: "jokes",
				ConstraintName: "jokes_joke_type_check",
			},
			code:    "JOKE_INVALID",
			message: "One or more values do not meet required conditions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fmt.Errorf("insert jokes: %w", tt.pgErr)
			httpErr := asHTTPError(t, HandleError(err))
			assert.Equal(t, http.StatusBadRequest, httpErr.Status)
			assert.Equal(t, tt.code, httpErr.Code)
			assert.Equal(t, tt.message, httpErr.Message)
		})
	}
}

func TestHandleError_Fallbacks(t *testing.T) {
	httpErr := asHTTPError(t, HandleError(sql.ErrNoRows))
	assert.Equal(t, http.StatusNotFound, httpErr.Status)

	httpErr = asHTTPError(t, HandleError(fmt.Errorf("lookup: %w", pgx.ErrNoRows)))
	assert.Equal(t, http.StatusNotFound, httpErr.Status)

	httpErr = asHTTPError(t, HandleError(errors.New("connection refused")))
	assert.Equal(t, http.StatusInternalServerError, httpErr.Status)
	assert.Equal(t, "Internal Server Error", httpErr.Message)

	deadlock := &pgconn.PgError{Code: "40P01", Severity: "ERROR"}
	httpErr = asHTTPError(t, HandleError(deadlock))
	assert.Equal(t, http.StatusInternalServerError, httpErr.Status)

	original := errs.NewNotFoundError("No jokes found in database. Fetch jokes first!", nil)
	assert.Same(t, original, HandleError(original))
}

func TestMapCode(t *testing.T) {
	assert.Equal(t, UniqueViolation, MapCode("23505"))
	assert.Equal(t, ForeignKeyViolation, MapCode("23503"))
	assert.Equal(t, NotNullViolation, MapCode("23502"))
	assert.Equal(t, CheckViolation, MapCode("23514"))
	assert.Equal(t, Other, MapCode("42P01"))
	assert.Equal(t, SeverityFatal, MapSeverity("fatal"))
	assert.Equal(t, SeverityOther, MapSeverity("LOG"))
}

func TestTrimCodeSuffix(t *testing.T) {
	assert.Equal(t, "jokes.category", trimCodeSuffix("jokes.category (1299)"))
	assert.Equal(t, "joke_type IN (x)", trimCodeSuffix("joke_type IN (x)"))
	assert.Equal(t, "plain", trimCodeSuffix("plain"))
}

func TestExtractColumnForUniqueViolation(t *testing.T) {
	assert.Equal(t, "slug", extractColumnForUniqueViolation(&Error{ConstraintName: "unique_jokes_slug"}))
	assert.Equal(t, "slug", extractColumnForUniqueViolation(&Error{ConstraintName: "jokes_slug_key"}))
	assert.Equal(t, "lang", extractColumnForUniqueViolation(&Error{ColumnName: "lang", ConstraintName: "ignored_key"}))
	assert.Empty(t, extractColumnForUniqueViolation(&Error{}))
}
