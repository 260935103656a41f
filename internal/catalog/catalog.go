// Package catalog holds the read-only card reference data.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/models"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 250
)

var ErrCatalogMissing = errors.New("catalog file not found")

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	cards []models.Card
	byID  map[string]int
}

func New(cards []models.Card) *Catalog {
	c := &Catalog{
		cards: make([]models.Card, 0, len(cards)),
		byID:  make(map[string]int, len(cards)),
	}
	for _, card := range cards {
		if card.ID == "" {
			continue
		}
		if _, dup := c.byID[card.ID]; dup {
			continue
		}
		c.byID[card.ID] = len(c.cards)
		c.cards = append(c.cards, card)
	}
	return c
}

// Load reads a JSON array of cards. A missing file yields an empty catalog
// together with ErrCatalogMissing so the caller can decide how loud to be.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(nil), ErrCatalogMissing
	}
	if err != nil {
		return New(nil), fmt.Errorf("reading catalog file: %w", err)
	}

	var cards []models.Card
	if err := json.Unmarshal(data, &cards); err != nil {
		return New(nil), fmt.Errorf("parsing catalog file: %w", err)
	}

	return New(cards), nil
}

func (c *Catalog) Len() int {
	return len(c.cards)
}

func (c *Catalog) Get(id string) (models.Card, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.Card{}, false
	}
	return c.cards[i], true
}

// Random picks a card uniformly. It reports false for an empty catalog.
func (c *Catalog) Random() (models.Card, bool) {
	if len(c.cards) == 0 {
		return models.Card{}, false
	}
	return c.cards[rand.IntN(len(c.cards))], true
}

type Query struct {
	Search    string
	Supertype string
	SetID     string
	Page      int
	PageSize  int
}

type Page struct {
	Cards      []models.Card `json:"cards"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	TotalPages int           `json:"totalPages"`
}

// Search filters by a case-insensitive name substring, supertype and set id,
// then returns the requested 1-based page in catalog order.
func (c *Catalog) Search(q Query) Page {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}

	needle := strings.ToLower(strings.TrimSpace(q.Search))
	matched := make([]models.Card, 0)
	for _, card := range c.cards {
		if needle != "" && !strings.Contains(strings.ToLower(card.Name), needle) {
			continue
		}
		if q.Supertype != "" && !strings.EqualFold(card.Supertype, q.Supertype) {
			continue
		}
		if q.SetID != "" && (card.Set == nil || card.Set.ID != q.SetID) {
			continue
		}
		matched = append(matched, card)
	}

	totalPages := (len(matched) + q.PageSize - 1) / q.PageSize
	start := len(matched)
	if q.Page <= totalPages {
		start = (q.Page - 1) * q.PageSize
	}
	end := min(start+q.PageSize, len(matched))

	return Page{
		Cards:      matched[start:end],
		Total:      len(matched),
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: totalPages,
	}
}
