// Package repository holds the SQL behind the joke store. Queries are built
// with squirrel so the same code serves SQLite and PostgreSQL.
package repository

import (
	"github.com/deppfellow/jokes-api/internal/server"
)

// Repositories groups every repository so services receive one value.
type Repositories struct {
	Joke *JokeRepository
}

func NewRepositories(s *server.Server) *Repositories {
	return &Repositories{
		Joke: NewJokeRepository(s.DB),
	}
}
