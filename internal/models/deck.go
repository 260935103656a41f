package models

import "time"

const (
	MinCardCount = 1
	MaxCardCount = 4
)

type DeckCard struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

type Deck struct {
	ID           int        `json:"id"`
	UserID       string     `json:"userId"`
	Name         string     `json:"name"`
	ImageURL     string     `json:"imageUrl"`
	Cards        []DeckCard `json:"cards"`
	Favorite     bool       `json:"favorite"`
	LastModified time.Time  `json:"lastModified"`
}

// CardCount is the total number of cards in the deck, counting copies.
func (d *Deck) CardCount() int {
	total := 0
	for _, c := range d.Cards {
		total += c.Count
	}
	return total
}

// Clone returns a copy of the deck that shares no memory with the original.
func (d *Deck) Clone() Deck {
	out := *d
	out.Cards = make([]DeckCard, len(d.Cards))
	copy(out.Cards, d.Cards)
	return out
}

type DeckSummary struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	ImageURL  string `json:"imageUrl"`
	CardCount int    `json:"cardCount"`
}

func (d *Deck) Summary() DeckSummary {
	return DeckSummary{
		ID:        d.ID,
		Name:      d.Name,
		ImageURL:  d.ImageURL,
		CardCount: d.CardCount(),
	}
}

// DeckView is the full deck as returned to its owner.
type DeckView struct {
	ID           int        `json:"id"`
	UserID       string     `json:"userId"`
	Name         string     `json:"name"`
	ImageURL     string     `json:"imageUrl"`
	Cards        []DeckCard `json:"cards"`
	CardCount    int        `json:"cardCount"`
	Favorite     bool       `json:"favorite"`
	LastModified time.Time  `json:"lastModified"`
}

func (d *Deck) View() DeckView {
	return DeckView{
		ID:           d.ID,
		UserID:       d.UserID,
		Name:         d.Name,
		ImageURL:     d.ImageURL,
		Cards:        d.Cards,
		CardCount:    d.CardCount(),
		Favorite:     d.Favorite,
		LastModified: d.LastModified,
	}
}
