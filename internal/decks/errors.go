package decks

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("deck not found")
	ErrCardNotFound  = errors.New("card not found")
	ErrCardNotInDeck = errors.New("card not found in deck")
	ErrInvalidCount  = errors.New("count must be between 1 and 4")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidCards  = errors.New("invalid cards")
)

// InvalidCard describes one rejected entry of a card list replacement.
type InvalidCard struct {
	Index  int    `json:"index"`
	ID     any    `json:"id"`
	Count  any    `json:"count"`
	Reason string `json:"reason"`
}

// InvalidCardsError rejects a whole card list. It matches ErrInvalidCards
// under errors.Is.
type InvalidCardsError struct {
	Entries []InvalidCard
}

func (e *InvalidCardsError) Error() string {
	reasons := make([]string, 0, len(e.Entries))
	for _, entry := range e.Entries {
		reasons = append(reasons, fmt.Sprintf("cards[%d]: %s", entry.Index, entry.Reason))
	}
	return "invalid cards: " + strings.Join(reasons, "; ")
}

func (e *InvalidCardsError) Unwrap() error {
	return ErrInvalidCards
}
