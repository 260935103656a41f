// Package seed provides the sample accounts and decks installed into an
// empty database.
package seed

import (
	"time"

	"github.com/google/uuid"

	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/decks"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/models"
)

const day = 24 * time.Hour

// Data is a consistent set of sample users and the decks they own.
type Data struct {
	Users  []models.User
	Decks  []models.Deck
	LastID int
}

// Build returns the sample data relative to now. Deck cover images are
// derived from cat the same way the deck store derives them.
func Build(now time.Time, cat decks.Catalog) Data {
	john := models.User{
		ID:          uuid.NewString(),
		Name:        "John Doe",
		Username:    "jdoe42",
		Password:    "12345",
		Pronouns:    "he/him",
		Description: "Pokemon TCG enthusiast and collector since 1999.",
		CreatedAt:   now.Add(-30 * day),
	}
	jane := models.User{
		ID:          uuid.NewString(),
		Name:        "Jane Doe",
		Username:    "janedoe",
		Password:    "919191",
		Pronouns:    "she/her",
		Description: "Competitive Pokemon TCG player with a focus on Electric-type decks.",
		CreatedAt:   now.Add(-15 * day),
	}

	sample := []models.Deck{
		{
			ID:           1,
			UserID:       john.ID,
			Name:         "John's Fire Deck",
			Cards:        []models.DeckCard{{ID: "sm1-12", Count: 2}, {ID: "swsh1-25", Count: 4}},
			Favorite:     true,
			LastModified: now,
		},
		{
			ID:           2,
			UserID:       john.ID,
			Name:         "John's Water Deck",
			Cards:        []models.DeckCard{{ID: "sm2-31", Count: 3}, {ID: "swsh2-41", Count: 2}},
			LastModified: now.Add(-day),
		},
		{
			ID:           3,
			UserID:       jane.ID,
			Name:         "Jane's Electric Deck",
			Cards:        []models.DeckCard{{ID: "sm3-41", Count: 2}, {ID: "swsh3-51", Count: 3}},
			Favorite:     true,
			LastModified: now,
		},
	}
	for i := range sample {
		sample[i].ImageURL = decks.DeriveImageURL(cat, sample[i].Cards, "")
	}

	return Data{
		Users:  []models.User{john, jane},
		Decks:  sample,
		LastID: len(sample),
	}
}
