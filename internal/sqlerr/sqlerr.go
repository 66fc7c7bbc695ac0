// Package sqlerr normalises PostgreSQL and SQLite driver errors into one
// Error type and turns them into HTTP errors a client can act on.
package sqlerr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Code classifies a database error independently of the driver.
type Code string

const (
	Other               Code = "OTHER"
	UniqueViolation     Code = "UNIQUE_VIOLATION"
	ForeignKeyViolation Code = "FOREIGN_KEY_VIOLATION"
	NotNullViolation    Code = "NOT_NULL_VIOLATION"
	CheckViolation      Code = "CHECK_VIOLATION"
)

type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityFatal   Severity = "FATAL"
	SeverityPanic   Severity = "PANIC"
	SeverityWarning Severity = "WARNING"
	SeverityOther   Severity = "OTHER"
)

// Error is a driver error with its classification and whatever table,
// column and constraint details the driver reported.
type Error struct {
	Code           Code
	Severity       Severity
	DatabaseCode   string
	Message        string
	TableName      string
	ColumnName     string
	ConstraintName string
	driverErr      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.DatabaseCode)
}

func (e *Error) Unwrap() error {
	return e.driverErr
}

// MapCode classifies a PostgreSQL SQLSTATE.
func MapCode(sqlState string) Code {
	switch sqlState {
	case "23505":
		return UniqueViolation
	case "23503":
		return ForeignKeyViolation
	case "23502":
		return NotNullViolation
	case "23514":
		return CheckViolation
	default:
		return Other
	}
}

func MapSeverity(severity string) Severity {
	switch strings.ToUpper(severity) {
	case "ERROR":
		return SeverityError
	case "FATAL":
		return SeverityFatal
	case "PANIC":
		return SeverityPanic
	case "WARNING":
		return SeverityWarning
	default:
		return SeverityOther
	}
}

// MapSQLiteCode classifies an extended SQLite result code.
func MapSQLiteCode(code int) Code {
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return UniqueViolation
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return ForeignKeyViolation
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return NotNullViolation
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		return CheckViolation
	default:
		return Other
	}
}

func ConvertPgError(src *pgconn.PgError) *Error {
	return &Error{
		Code:           MapCode(src.Code),
		Severity:       MapSeverity(src.Severity),
		DatabaseCode:   src.Code,
		Message:        src.Message,
		TableName:      src.TableName,
		ColumnName:     src.ColumnName,
		ConstraintName: src.ConstraintName,
		driverErr:      src,
	}
}

// ConvertSQLiteError pulls table and column out of messages such as
// "NOT NULL constraint failed: jokes.category". For CHECK failures SQLite
// reports the constraint expression; its leading identifier is taken as the
// column.
func ConvertSQLiteError(src *sqlite.Error) *Error {
	out := &Error{
		Code:         MapSQLiteCode(src.Code()),
		Severity:     SeverityError,
		DatabaseCode: strconv.Itoa(src.Code()),
		Message:      src.Error(),
		driverErr:    src,
	}

	const marker = "constraint failed: "
	msg := src.Error()
	i := strings.LastIndex(msg, marker)
	if i < 0 {
		return out
	}
	detail := trimCodeSuffix(strings.TrimSpace(msg[i+len(marker):]))

	if out.Code == CheckViolation {
		out.ConstraintName = detail
		if fields := strings.Fields(detail); len(fields) > 0 && isIdentifier(fields[0]) {
			out.ColumnName = fields[0]
		}
		return out
	}

	// Multi-column failures list "t.a, t.b"; the first column is enough.
	first, _, _ := strings.Cut(detail, ",")
	if table, column, ok := strings.Cut(strings.TrimSpace(first), "."); ok {
		out.TableName = table
		out.ColumnName = column
	}
	return out
}

// trimCodeSuffix drops a trailing " (275)" result code.
func trimCodeSuffix(s string) string {
	j := strings.LastIndex(s, " (")
	if j < 0 || !strings.HasSuffix(s, ")") {
		return s
	}
	if _, err := strconv.Atoi(s[j+2 : len(s)-1]); err != nil {
		return s
	}
	return s[:j]
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != '_' && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
