package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/models"
)

const lastDeckIDKey = "last_deck_id"

// DeckRepository stores every deck as an ordered snapshot together with the
// highest deck id ever issued.
type DeckRepository struct {
	db *DB
}

func NewDeckRepository(db *DB) *DeckRepository {
	return &DeckRepository{db: db}
}

func (r *DeckRepository) LoadAll(ctx context.Context) ([]models.Deck, int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, image_url, cards, favorite, last_modified FROM decks ORDER BY position`,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("querying decks: %w", err)
	}
	defer rows.Close()

	var decks []models.Deck
	for rows.Next() {
		var (
			d     models.Deck
			cards string
		)
		if err := rows.Scan(&d.ID, &d.UserID, &d.Name, &d.ImageURL, &cards, &d.Favorite, &d.LastModified); err != nil {
			return nil, 0, fmt.Errorf("scanning deck: %w", err)
		}
		if err := json.Unmarshal([]byte(cards), &d.Cards); err != nil {
			return nil, 0, fmt.Errorf("decoding cards of deck %d: %w", d.ID, err)
		}
		if d.Cards == nil {
			d.Cards = []models.DeckCard{}
		}
		decks = append(decks, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating decks: %w", err)
	}

	lastID, err := r.lastID(ctx)
	if err != nil {
		return nil, 0, err
	}

	return decks, lastID, nil
}

// SaveDecks replaces the stored decks, keeping their order.
func (r *DeckRepository) SaveDecks(ctx context.Context, decks []models.Deck, lastID int) error {
	return r.db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM decks`); err != nil {
			return fmt.Errorf("clearing decks: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO decks (id, position, user_id, name, image_url, cards, favorite, last_modified)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		)
		if err != nil {
			return fmt.Errorf("preparing deck insert: %w", err)
		}
		defer stmt.Close()

		for i, d := range decks {
			cards := d.Cards
			if cards == nil {
				cards = []models.DeckCard{}
			}
			encoded, err := json.Marshal(cards)
			if err != nil {
				return fmt.Errorf("encoding cards of deck %d: %w", d.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, d.ID, i, d.UserID, d.Name, d.ImageURL, string(encoded), d.Favorite, d.LastModified.UTC()); err != nil {
				return fmt.Errorf("inserting deck %d: %w", d.ID, err)
			}
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			lastDeckIDKey, strconv.Itoa(lastID),
		)
		if err != nil {
			return fmt.Errorf("storing last deck id: %w", err)
		}
		return nil
	})
}

func (r *DeckRepository) lastID(ctx context.Context) (int, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, lastDeckIDKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("querying last deck id: %w", err)
	}

	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing last deck id %q: %w", raw, err)
	}
	return id, nil
}
