// Package model holds the domain types shared by the store, services and
// handlers.
package model

// JokeType is the shape of a joke. Only the two values below are stored.
type JokeType string

const (
	JokeTypeSingle  JokeType = "single"
	JokeTypeTwoPart JokeType = "twopart"
)

func (t JokeType) Valid() bool {
	return t == JokeTypeSingle || t == JokeTypeTwoPart
}

// Joke is one stored joke. A single joke carries Joke; a twopart joke
// carries Setup and Delivery. The absent texts are nil and encode as null.
type Joke struct {
	ID        int64    `json:"id"`
	Category  string   `json:"category"`
	Type      JokeType `json:"type"`
	Joke      *string  `json:"joke"`
	Setup     *string  `json:"setup"`
	Delivery  *string  `json:"delivery"`
	NSFW      bool     `json:"nsfw"`
	Political bool     `json:"political"`
	Sexist    bool     `json:"sexist"`
	Safe      bool     `json:"safe"`
	Lang      string   `json:"lang"`
}

// NewSingleJoke and NewTwoPartJoke build records that satisfy the
// text/type pairing.
func NewSingleJoke(text string) Joke {
	return Joke{Type: JokeTypeSingle, Joke: &text}
}

func NewTwoPartJoke(setup, delivery string) Joke {
	return Joke{Type: JokeTypeTwoPart, Setup: &setup, Delivery: &delivery}
}

// JokePage is one page of jokes ordered by id.
type JokePage struct {
	Items   []Joke
	Total   int64
	Pages   int
	Page    int
	PerPage int
}

// Empty reports whether the page holds no jokes, which covers both an
// empty store and a page past the end.
func (p JokePage) Empty() bool {
	return len(p.Items) == 0
}
