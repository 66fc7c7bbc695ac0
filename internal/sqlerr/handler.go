package sqlerr

import (
	"cmp"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"modernc.org/sqlite"

	"github.com/deppfellow/jokes-api/internal/errs"
)

var uniqueKeyPattern = regexp.MustCompile(`_([^_]+)_(?:key|ukey)$`)

// Convert finds a PostgreSQL or SQLite driver error in err's chain and
// normalises it.
//
// Behavior:
//   - An *Error already in the chain is returned as is.
//   - A *pgconn.PgError goes through ConvertPgError.
//   - A *sqlite.Error goes through ConvertSQLiteError.
//   - Anything else returns nil.
func Convert(err error) *Error {
	var sqlErr *Error
	// errors.As walks Unwrap(), so repository wrapping such as
	// "insert jokes: %w" does not hide the driver error.
	if errors.As(err, &sqlErr) {
		return sqlErr
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return ConvertPgError(pgErr)
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return ConvertSQLiteError(liteErr)
	}

	return nil
}

// violation describes how one constraint failure is reported to clients.
//
//   - action is the suffix of the error code, e.g. INVALID in JOKE_INVALID.
//   - message builds the sentence returned as {"error": ...}.
//   - fields, when set, adds per-field entries under "errors".
type violation struct {
	action  string
	message func(e *Error) string
	fields  func(e *Error) []errs.FieldError
}

var violations = map[Code]violation{
	ForeignKeyViolation: {
		action: "NOT_FOUND",
		message: func(e *Error) string {
			return "The referenced " + entityName(e) + " does not exist"
		},
	},
	UniqueViolation: {
		action: "ALREADY_EXISTS",
		message: func(e *Error) string {
			subject := "identifier"
			if column := extractColumnForUniqueViolation(e); column != "" {
				subject = humanize(column)
			}
			return fmt.Sprintf("A %s with this %s already exists", entityName(e), subject)
		},
	},
	NotNullViolation: {
		action: "REQUIRED",
		message: func(e *Error) string {
			return "The " + cmp.Or(humanize(e.ColumnName), "field") + " is required"
		},
		fields: func(e *Error) []errs.FieldError {
			return []errs.FieldError{{Field: strings.ToLower(e.ColumnName), Error: "is required"}}
		},
	},
	CheckViolation: {
		action: "INVALID",
		message: func(e *Error) string {
			if column := humanize(e.ColumnName); column != "" {
				return "The " + column + " value does not meet required conditions"
			}
			return "One or more values do not meet required conditions"
		},
	},
}

// HandleError maps an error to the *errs.HTTPError a client sees.
//
// Behavior:
//   - An *errs.HTTPError anywhere in the chain is returned unchanged.
//   - Foreign key, unique, not-null and check violations become 400s.
//   - Other database errors (deadlocks, lost connections) become a 500.
//   - sql.ErrNoRows and pgx.ErrNoRows become a 404.
//   - Everything else becomes a generic 500.
//
// Output examples:
//   - NOT NULL on jokes.category: 400 JOKE_REQUIRED "The Category is required"
//   - FK on ratings.joke_id:      400 RATING_NOT_FOUND "The referenced Joke does not exist"
//
// The driver message itself never reaches the client.
func HandleError(err error) error {
	var httpErr *errs.HTTPError
	if errors.As(err, &httpErr) {
		// Already decided upstream, e.g. a handler's 404.
		return err
	}

	if sqlErr := Convert(err); sqlErr != nil {
		rule, ok := violations[sqlErr.Code]
		if !ok {
			// A database failure the client cannot fix by changing input.
			return errs.NewInternalServerError()
		}

		code := errorCode(sqlErr.TableName, rule.action)
		var fields []errs.FieldError
		if rule.fields != nil {
			fields = rule.fields(sqlErr)
		}
		return errs.NewBadRequestError(rule.message(sqlErr), &code, fields)
	}

	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return errs.NewNotFoundError("Resource not found", nil)
	}

	return errs.NewInternalServerError()
}

// errorCode builds <ENTITY>_<ACTION> from the table name.
//
// Output format:
//   - "jokes", INVALID   -> JOKE_INVALID
//   - "", ALREADY_EXISTS -> RECORD_ALREADY_EXISTS
func errorCode(table, action string) string {
	return strings.ToUpper(singular(cmp.Or(table, "record"))) + "_" + action
}

// entityName prefers a foreign-key column ("joke_id" gives "Joke"), then
// the singular table name, then "record".
func entityName(e *Error) string {
	column := strings.ToLower(e.ColumnName)
	if ref, ok := strings.CutSuffix(column, "_id"); ok && ref != "" {
		return humanize(ref)
	}
	if e.TableName != "" {
		return humanize(singular(e.TableName))
	}
	return "record"
}

func singular(name string) string {
	if len(name) > 1 {
		if trimmed, ok := strings.CutSuffix(name, "s"); ok {
			return trimmed
		}
		if trimmed, ok := strings.CutSuffix(name, "S"); ok {
			return trimmed
		}
	}
	return name
}

// humanize turns "joke_type" into "Joke Type".
func humanize(text string) string {
	if text == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.ReplaceAll(text, "_", " "))
}

// extractColumnForUniqueViolation uses the reported column when the driver
// gives one (SQLite), otherwise it reads it from constraint names shaped
// unique_<table>_<column> or <table>_<column>_key.
func extractColumnForUniqueViolation(e *Error) string {
	if e.ColumnName != "" {
		return e.ColumnName
	}

	name := e.ConstraintName
	// unique_jokes_slug: the column is the last segment.
	if rest, ok := strings.CutPrefix(name, "unique_"); ok {
		if i := strings.LastIndex(rest, "_"); i >= 0 {
			return rest[i+1:]
		}
	}

	// jokes_slug_key, the default PostgreSQL name for UNIQUE (slug).
	if matches := uniqueKeyPattern.FindStringSubmatch(name); len(matches) > 1 {
		return matches[1]
	}
	return ""
}
