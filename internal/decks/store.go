// Package decks owns deck records and the rules that keep their card lists,
// counts and cover images consistent with the card catalog.
package decks

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/models"
)

const (
	DefaultPageSize       = 10
	MaxPageSize           = 100
	DefaultRecentLimit    = 3
	DefaultFavoritesLimit = 6
	unknownCardName       = "Unknown Card"
)

// Catalog is the read-only card lookup the store validates against.
type Catalog interface {
	Get(id string) (models.Card, bool)
	Random() (models.Card, bool)
}

// Persister durably stores the full deck list. lastID is the highest deck id
// ever issued so ids survive restarts without being reused.
type Persister interface {
	SaveDecks(ctx context.Context, decks []models.Deck, lastID int) error
}

type Store struct {
	mu        sync.RWMutex
	decks     []models.Deck
	lastID    int
	catalog   Catalog
	persister Persister
	now       func() time.Time
}

func NewStore(initial []models.Deck, lastID int, catalog Catalog, persister Persister) *Store {
	s := &Store{
		decks:     make([]models.Deck, 0, len(initial)),
		lastID:    lastID,
		catalog:   catalog,
		persister: persister,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, d := range initial {
		s.decks = append(s.decks, d.Clone())
		if d.ID > s.lastID {
			s.lastID = d.ID
		}
	}
	return s
}

type ListOptions struct {
	Search   string
	Page     int
	PageSize int
}

type ListResult struct {
	Decks      []models.DeckSummary `json:"decks"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"pageSize"`
	Total      int                  `json:"total"`
	TotalPages int                  `json:"totalPages"`
}

// List returns the owner's decks, optionally filtered by a case-insensitive
// name substring, one 1-based page at a time.
func (s *Store) List(owner string, opts ListOptions) ListResult {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = DefaultPageSize
	}
	if opts.PageSize > MaxPageSize {
		opts.PageSize = MaxPageSize
	}
	needle := strings.ToLower(strings.TrimSpace(opts.Search))

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]models.DeckSummary, 0)
	for i := range s.decks {
		d := &s.decks[i]
		if d.UserID != owner {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(d.Name), needle) {
			continue
		}
		matched = append(matched, d.Summary())
	}

	totalPages := (len(matched) + opts.PageSize - 1) / opts.PageSize
	start := len(matched)
	if opts.Page <= totalPages {
		start = (opts.Page - 1) * opts.PageSize
	}
	end := min(start+opts.PageSize, len(matched))

	return ListResult{
		Decks:      matched[start:end],
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		Total:      len(matched),
		TotalPages: totalPages,
	}
}

// ListRecent returns the owner's most recently modified decks.
func (s *Store) ListRecent(owner string, limit int) []models.DeckSummary {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	s.mu.RLock()
	owned := s.ownedLocked(owner)
	s.mu.RUnlock()

	slices.SortStableFunc(owned, func(a, b models.Deck) int {
		return b.LastModified.Compare(a.LastModified)
	})

	return summaries(owned, limit)
}

// ListFavorites returns the owner's favorite decks in insertion order. The
// result never exceeds DefaultFavoritesLimit entries.
func (s *Store) ListFavorites(owner string, limit int) []models.DeckSummary {
	if limit <= 0 || limit > DefaultFavoritesLimit {
		limit = DefaultFavoritesLimit
	}

	s.mu.RLock()
	owned := s.ownedLocked(owner)
	s.mu.RUnlock()

	favorites := owned[:0]
	for _, d := range owned {
		if d.Favorite {
			favorites = append(favorites, d)
		}
	}

	return summaries(favorites, limit)
}

func (s *Store) Get(owner string, id int) (models.Deck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, err := s.findLocked(owner, id)
	if err != nil {
		return models.Deck{}, err
	}
	return d.Clone(), nil
}

type CardDetail struct {
	models.Card
	Count   int  `json:"count"`
	Missing bool `json:"missing,omitempty"`
}

type Detail struct {
	ID           int          `json:"id"`
	UserID       string       `json:"userId"`
	Name         string       `json:"name"`
	ImageURL     string       `json:"imageUrl"`
	Cards        []CardDetail `json:"cards"`
	CardCount    int          `json:"cardCount"`
	Favorite     bool         `json:"favorite"`
	LastModified time.Time    `json:"lastModified"`
}

// GetDetail is Get with every card entry joined against the catalog. Entries
// the catalog does not know are returned as "Unknown Card" placeholders.
func (s *Store) GetDetail(owner string, id int) (Detail, error) {
	d, err := s.Get(owner, id)
	if err != nil {
		return Detail{}, err
	}

	cards := make([]CardDetail, 0, len(d.Cards))
	for _, entry := range d.Cards {
		card, ok := s.catalog.Get(entry.ID)
		if !ok {
			cards = append(cards, CardDetail{
				Card:    models.Card{ID: entry.ID, Name: unknownCardName},
				Count:   entry.Count,
				Missing: true,
			})
			continue
		}
		cards = append(cards, CardDetail{Card: card, Count: entry.Count})
	}

	return Detail{
		ID:           d.ID,
		UserID:       d.UserID,
		Name:         d.Name,
		ImageURL:     d.ImageURL,
		Cards:        cards,
		CardCount:    d.CardCount(),
		Favorite:     d.Favorite,
		LastModified: d.LastModified,
	}, nil
}

// Create adds an empty deck. Without an image URL a cover is derived from
// the catalog.
func (s *Store) Create(ctx context.Context, owner, name string, imageURL *string) (models.DeckSummary, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.DeckSummary{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID = max(s.lastID, s.maxIDLocked()) + 1
	d := models.Deck{
		ID:           s.lastID,
		UserID:       owner,
		Name:         name,
		Cards:        []models.DeckCard{},
		LastModified: s.now(),
	}
	if imageURL != nil && strings.TrimSpace(*imageURL) != "" {
		d.ImageURL = strings.TrimSpace(*imageURL)
	} else {
		d.ImageURL = DeriveImageURL(s.catalog, d.Cards, d.ImageURL)
	}

	s.decks = append(s.decks, d)
	s.persistLocked(ctx)

	return d.Summary(), nil
}

type UpdateInput struct {
	Name     *string
	ImageURL *string
	Cards    *[]CardInput
}

// CardInput is an unchecked card list entry as received from a client.
type CardInput struct {
	ID    any `json:"id"`
	Count any `json:"count"`
}

// Update applies a partial update. A card list replacement is validated as
// a whole; one bad entry rejects the update and nothing is changed. A blank
// image URL counts as absent, as in Create.
func (s *Store) Update(ctx context.Context, owner string, id int, in UpdateInput) (models.DeckSummary, error) {
	var name string
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
		if name == "" {
			return models.DeckSummary{}, fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.findLocked(owner, id)
	if err != nil {
		return models.DeckSummary{}, err
	}

	var cards []models.DeckCard
	if in.Cards != nil {
		cards, err = s.validateCards(*in.Cards)
		if err != nil {
			return models.DeckSummary{}, err
		}
	}

	var imageURL string
	if in.ImageURL != nil {
		imageURL = strings.TrimSpace(*in.ImageURL)
	}

	if in.Name != nil {
		d.Name = name
	}
	if in.Cards != nil {
		d.Cards = cards
		if imageURL == "" {
			d.ImageURL = DeriveImageURL(s.catalog, d.Cards, d.ImageURL)
		}
	}
	if imageURL != "" {
		d.ImageURL = imageURL
	}
	d.LastModified = s.now()
	s.persistLocked(ctx)

	return d.Summary(), nil
}

func (s *Store) Delete(ctx context.Context, owner string, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(owner, id)
	if idx < 0 {
		return ErrNotFound
	}
	s.decks = slices.Delete(s.decks, idx, idx+1)
	s.persistLocked(ctx)

	return nil
}

func (s *Store) SetFavorite(ctx context.Context, owner string, id int, favorite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.findLocked(owner, id)
	if err != nil {
		return err
	}
	d.Favorite = favorite
	d.LastModified = s.now()
	s.persistLocked(ctx)

	return nil
}

// AddCard puts count copies of a card in the deck. A card already present
// has its count replaced, not increased.
func (s *Store) AddCard(ctx context.Context, owner string, id int, cardID string, count int) (models.DeckCard, error) {
	if !validCount(count) {
		return models.DeckCard{}, ErrInvalidCount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.findLocked(owner, id)
	if err != nil {
		return models.DeckCard{}, err
	}
	if _, ok := s.catalog.Get(cardID); !ok {
		return models.DeckCard{}, ErrCardNotFound
	}

	entry := models.DeckCard{ID: cardID, Count: count}
	if i := cardIndex(d.Cards, cardID); i >= 0 {
		d.Cards[i].Count = count
	} else {
		d.Cards = append(d.Cards, entry)
	}
	d.ImageURL = DeriveImageURL(s.catalog, d.Cards, d.ImageURL)
	d.LastModified = s.now()
	s.persistLocked(ctx)

	return entry, nil
}

func (s *Store) RemoveCard(ctx context.Context, owner string, id int, cardID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.findLocked(owner, id)
	if err != nil {
		return err
	}
	i := cardIndex(d.Cards, cardID)
	if i < 0 {
		return ErrCardNotInDeck
	}

	d.Cards = slices.Delete(d.Cards, i, i+1)
	d.ImageURL = DeriveImageURL(s.catalog, d.Cards, d.ImageURL)
	d.LastModified = s.now()
	s.persistLocked(ctx)

	return nil
}

func (s *Store) UpdateCardCount(ctx context.Context, owner string, id int, cardID string, count int) (models.DeckCard, error) {
	if !validCount(count) {
		return models.DeckCard{}, ErrInvalidCount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.findLocked(owner, id)
	if err != nil {
		return models.DeckCard{}, err
	}
	i := cardIndex(d.Cards, cardID)
	if i < 0 {
		return models.DeckCard{}, ErrCardNotInDeck
	}

	d.Cards[i].Count = count
	d.LastModified = s.now()
	s.persistLocked(ctx)

	return d.Cards[i], nil
}

// Snapshot returns a deep copy of every deck and the id high-water mark.
func (s *Store) Snapshot() ([]models.Deck, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(), s.lastID
}

// DeriveImageURL picks a deck cover: the small image of the first card when
// the list is non-empty, otherwise a random catalog card's small image.
// current is returned when no image can be found.
func DeriveImageURL(catalog Catalog, cards []models.DeckCard, current string) string {
	var (
		card models.Card
		ok   bool
	)
	if len(cards) > 0 {
		card, ok = catalog.Get(cards[0].ID)
	} else {
		card, ok = catalog.Random()
	}
	if ok && card.SmallImage() != "" {
		return card.SmallImage()
	}
	return current
}

func (s *Store) validateCards(entries []CardInput) ([]models.DeckCard, error) {
	var invalid []InvalidCard
	cards := make([]models.DeckCard, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))

	for i, entry := range entries {
		reject := func(reason string) {
			invalid = append(invalid, InvalidCard{Index: i, ID: entry.ID, Count: entry.Count, Reason: reason})
		}

		cardID, ok := entry.ID.(string)
		if !ok || strings.TrimSpace(cardID) == "" {
			reject("id must be a non-empty string")
			continue
		}
		count, ok := integerCount(entry.Count)
		if !ok {
			reject("count must be an integer")
			continue
		}
		if !validCount(count) {
			reject(ErrInvalidCount.Error())
			continue
		}
		if _, ok := s.catalog.Get(cardID); !ok {
			reject(ErrCardNotFound.Error())
			continue
		}
		if _, dup := seen[cardID]; dup {
			reject("duplicate card id")
			continue
		}
		seen[cardID] = struct{}{}
		cards = append(cards, models.DeckCard{ID: cardID, Count: count})
	}

	if len(invalid) > 0 {
		return nil, &InvalidCardsError{Entries: invalid}
	}
	return cards, nil
}

func integerCount(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

func validCount(count int) bool {
	return count >= models.MinCardCount && count <= models.MaxCardCount
}

func cardIndex(cards []models.DeckCard, cardID string) int {
	return slices.IndexFunc(cards, func(c models.DeckCard) bool { return c.ID == cardID })
}

func summaries(decks []models.Deck, limit int) []models.DeckSummary {
	if len(decks) > limit {
		decks = decks[:limit]
	}
	out := make([]models.DeckSummary, 0, len(decks))
	for i := range decks {
		out = append(out, decks[i].Summary())
	}
	return out
}

func (s *Store) ownedLocked(owner string) []models.Deck {
	var owned []models.Deck
	for i := range s.decks {
		if s.decks[i].UserID == owner {
			owned = append(owned, s.decks[i].Clone())
		}
	}
	return owned
}

func (s *Store) indexLocked(owner string, id int) int {
	return slices.IndexFunc(s.decks, func(d models.Deck) bool {
		return d.ID == id && d.UserID == owner
	})
}

func (s *Store) findLocked(owner string, id int) (*models.Deck, error) {
	idx := s.indexLocked(owner, id)
	if idx < 0 {
		return nil, ErrNotFound
	}
	return &s.decks[idx], nil
}

func (s *Store) maxIDLocked() int {
	highest := 0
	for i := range s.decks {
		highest = max(highest, s.decks[i].ID)
	}
	return highest
}

func (s *Store) snapshotLocked() []models.Deck {
	out := make([]models.Deck, 0, len(s.decks))
	for i := range s.decks {
		out = append(out, s.decks[i].Clone())
	}
	return out
}

func (s *Store) persistLocked(ctx context.Context) {
	if s.persister == nil {
		return
	}
	if err := s.persister.SaveDecks(context.WithoutCancel(ctx), s.snapshotLocked(), s.lastID); err != nil {
		slog.Error("error persisting decks", "component", "decks", "error", err)
	}
}
