package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/blob"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/db"
)

type MediaHandler struct {
	repo  *db.BlobRepository
	blobs *blob.Service
}

func NewMediaHandler(repo *db.BlobRepository, blobs *blob.Service) *MediaHandler {
	return &MediaHandler{repo: repo, blobs: blobs}
}

// GET /media/{blobID}
func (h *MediaHandler) GetBlob(w http.ResponseWriter, r *http.Request) {
	blobID := strings.TrimSpace(chi.URLParam(r, "blobID"))
	if blobID == "" {
		notFound(w, "Media not found")
		return
	}

	record, err := h.repo.FindByID(r.Context(), blobID)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Media not found")
		return
	}
	if err != nil {
		slog.Error("error loading blob record", "error", err, "blob_id", blobID)
		internalError(w)
		return
	}

	file, err := h.blobs.Open(r.Context(), record.StoragePath)
	if errors.Is(err, blob.ErrNotFound) {
		notFound(w, "Media not found")
		return
	}
	if err != nil {
		slog.Error("error opening blob", "error", err, "blob_id", blobID)
		internalError(w)
		return
	}
	defer file.Close()

	content, ok := file.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(file)
		if err != nil {
			slog.Error("error reading blob", "error", err, "blob_id", blobID)
			internalError(w)
			return
		}
		content = bytes.NewReader(data)
	}

	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("ETag", fmt.Sprintf("%q", record.ID))
	w.Header().Set("Content-Type", record.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", record.ID+extensionFor(record.MimeType)))

	http.ServeContent(w, r, "", record.CreatedAt, content)
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
