package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/catalog"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/constants"
)

type CardHandler struct {
	catalog *catalog.Catalog
}

func NewCardHandler(c *catalog.Catalog) *CardHandler {
	return &CardHandler{catalog: c}
}

// GET /api/cards
func (h *CardHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := h.catalog.Search(catalog.Query{
		Search:    q.Get("q"),
		Supertype: q.Get("supertype"),
		SetID:     q.Get("set"),
		Page:      queryInt(r, "page", 1),
		PageSize:  queryInt(r, "pageSize", catalog.DefaultPageSize),
	})

	writeJSON(w, http.StatusOK, page)
}

// GET /api/cards/{cardID}
func (h *CardHandler) Get(w http.ResponseWriter, r *http.Request) {
	card, ok := h.catalog.Get(chi.URLParam(r, "cardID"))
	if !ok {
		writeError(w, http.StatusNotFound, constants.ErrCodeCardNotFound, "Card not found")
		return
	}

	writeJSON(w, http.StatusOK, card)
}
