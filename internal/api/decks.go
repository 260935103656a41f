package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/constants"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/decks"
)

type DeckHandler struct {
	decks *decks.Store
}

func NewDeckHandler(store *decks.Store) *DeckHandler {
	return &DeckHandler{decks: store}
}

// GET /api/decks
func (h *DeckHandler) List(w http.ResponseWriter, r *http.Request) {
	session, ok := GetUser(r)
	if !ok {
		forbidden(w)
		return
	}

	q := r.URL.Query()
	result := h.decks.List(session.ID, decks.ListOptions{
		Search:   q.Get("search"),
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "pageSize", decks.DefaultPageSize),
	})

	writeJSON(w, http.StatusOK, result)
}

// GET /api/decks/recent
func (h *DeckHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	session, ok := GetUser(r)
	if !ok {
		forbidden(w)
		return
	}

	writeJSON(w, http.StatusOK, h.decks.ListRecent(session.ID, queryInt(r, "limit", decks.DefaultRecentLimit)))
}

// GET /api/decks/favorites
func (h *DeckHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	session, ok := GetUser(r)
	if !ok {
		forbidden(w)
		return
	}

	writeJSON(w, http.StatusOK, h.decks.ListFavorites(session.ID, queryInt(r, "limit", decks.DefaultFavoritesLimit)))
}

// GET /api/decks/{deckID}
func (h *DeckHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, deckID, ok := deckRequest(w, r)
	if !ok {
		return
	}

	if withDetails, _ := strconv.ParseBool(r.URL.Query().Get("includeCardDetails")); withDetails {
		detail, err := h.decks.GetDetail(session, deckID)
		if !handleDeckError(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, detail)
		return
	}

	deck, err := h.decks.Get(session, deckID)
	if !handleDeckError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, deck.View())
}

type CreateDeckRequest struct {
	Name     string  `json:"name" validate:"required,max=100"`
	ImageURL *string `json:"imageUrl" validate:"omitempty,url,max=2048"`
}

// POST /api/decks
func (h *DeckHandler) Create(w http.ResponseWriter, r *http.Request) {
	session, ok := GetUser(r)
	if !ok {
		forbidden(w)
		return
	}

	var req CreateDeckRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	summary, err := h.decks.Create(r.Context(), session.ID, sanitizeText(req.Name), req.ImageURL)
	if !handleDeckError(w, err) {
		return
	}

	writeJSON(w, http.StatusCreated, summary)
}

type UpdateDeckRequest struct {
	Name     *string            `json:"name" validate:"omitempty,max=100"`
	ImageURL *string            `json:"imageUrl" validate:"omitempty,url,max=2048"`
	Cards    *[]decks.CardInput `json:"cards"`
}

// PATCH /api/decks/{deckID}
func (h *DeckHandler) Update(w http.ResponseWriter, r *http.Request) {
	session, deckID, ok := deckRequest(w, r)
	if !ok {
		return
	}

	var req UpdateDeckRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	summary, err := h.decks.Update(r.Context(), session, deckID, decks.UpdateInput{
		Name:     sanitizeTextPtr(req.Name),
		ImageURL: req.ImageURL,
		Cards:    req.Cards,
	})
	if !handleDeckError(w, err) {
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// DELETE /api/decks/{deckID}
func (h *DeckHandler) Delete(w http.ResponseWriter, r *http.Request) {
	session, deckID, ok := deckRequest(w, r)
	if !ok {
		return
	}

	if !handleDeckError(w, h.decks.Delete(r.Context(), session, deckID)) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type FavoriteRequest struct {
	Favorite *bool `json:"favorite" validate:"required"`
}

type FavoriteResponse struct {
	ID       int  `json:"id"`
	Favorite bool `json:"favorite"`
}

// PUT /api/decks/{deckID}/favorite
func (h *DeckHandler) SetFavorite(w http.ResponseWriter, r *http.Request) {
	session, deckID, ok := deckRequest(w, r)
	if !ok {
		return
	}

	var req FavoriteRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	if !handleDeckError(w, h.decks.SetFavorite(r.Context(), session, deckID, *req.Favorite)) {
		return
	}
	writeJSON(w, http.StatusOK, FavoriteResponse{ID: deckID, Favorite: *req.Favorite})
}

type AddCardRequest struct {
	CardID string `json:"cardId" validate:"required"`
	Count  *int   `json:"count"`
}

// POST /api/decks/{deckID}/cards
func (h *DeckHandler) AddCard(w http.ResponseWriter, r *http.Request) {
	session, deckID, ok := deckRequest(w, r)
	if !ok {
		return
	}

	var req AddCardRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	count := 1
	if req.Count != nil {
		count = *req.Count
	}

	entry, err := h.decks.AddCard(r.Context(), session, deckID, strings.TrimSpace(req.CardID), count)
	if !handleDeckError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type UpdateCardCountRequest struct {
	Count *int `json:"count" validate:"required"`
}

// PATCH /api/decks/{deckID}/cards/{cardID}
func (h *DeckHandler) UpdateCardCount(w http.ResponseWriter, r *http.Request) {
	session, deckID, ok := deckRequest(w, r)
	if !ok {
		return
	}

	var req UpdateCardCountRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	entry, err := h.decks.UpdateCardCount(r.Context(), session, deckID, chi.URLParam(r, "cardID"), *req.Count)
	if !handleDeckError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// DELETE /api/decks/{deckID}/cards/{cardID}
func (h *DeckHandler) RemoveCard(w http.ResponseWriter, r *http.Request) {
	session, deckID, ok := deckRequest(w, r)
	if !ok {
		return
	}

	if !handleDeckError(w, h.decks.RemoveCard(r.Context(), session, deckID, chi.URLParam(r, "cardID"))) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// deckRequest resolves the session owner and the {deckID} URL parameter.
// Ids that are not positive integers cannot name a deck and answer 404.
func deckRequest(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	session, ok := GetUser(r)
	if !ok {
		forbidden(w)
		return "", 0, false
	}

	deckID, err := strconv.Atoi(chi.URLParam(r, "deckID"))
	if err != nil || deckID < 1 {
		notFound(w, "Deck not found")
		return "", 0, false
	}
	return session.ID, deckID, true
}

func handleDeckError(w http.ResponseWriter, err error) bool {
	var invalidCards *decks.InvalidCardsError
	switch {
	case err == nil:
		return true
	case errors.As(err, &invalidCards):
		writeErrorDetails(w, http.StatusBadRequest, constants.ErrCodeInvalidCards, "Invalid cards", invalidCards.Entries)
	case errors.Is(err, decks.ErrNotFound):
		notFound(w, "Deck not found")
	case errors.Is(err, decks.ErrCardNotFound):
		writeError(w, http.StatusNotFound, constants.ErrCodeCardNotFound, "Card not found")
	case errors.Is(err, decks.ErrCardNotInDeck):
		writeError(w, http.StatusNotFound, constants.ErrCodeCardNotInDeck, "Card not found in deck")
	case errors.Is(err, decks.ErrInvalidCount):
		writeError(w, http.StatusBadRequest, constants.ErrCodeInvalidCount, "Count must be between 1 and 4")
	case errors.Is(err, decks.ErrInvalidInput):
		badRequest(w, err.Error())
	default:
		slog.Error("error handling deck request", "error", err)
		internalError(w)
	}
	return false
}

// queryInt reads an integer query parameter, falling back to def when it is
// absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
