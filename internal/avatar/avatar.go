// Package avatar stores uploaded profile pictures as media blobs.
package avatar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vincent-petithory/dataurl"

	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/blob"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/db"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/mediaurl"
)

var ErrInvalidPicture = errors.New("invalid profile picture")

type Store struct {
	blobs   *blob.Service
	repo    *db.BlobRepository
	baseURL string
	maxEdge int
	quality int
}

func NewStore(blobs *blob.Service, repo *db.BlobRepository, baseURL string, maxEdge int) *Store {
	return &Store{
		blobs:   blobs,
		repo:    repo,
		baseURL: baseURL,
		maxEdge: maxEdge,
		quality: blob.DefaultNormalizeQuality,
	}
}

// StoreDataURL decodes an image data URL, normalizes it and returns the media
// URL of the stored result.
func (s *Store) StoreDataURL(ctx context.Context, ownerID, raw string) (string, error) {
	if limit := s.blobs.MaxUploadBytes(); int64(len(raw)) > limit*4/3+64 {
		return "", blob.ErrFileTooLarge
	}

	parsed, err := dataurl.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPicture, err)
	}
	if parsed.MediaType.Type != "image" {
		return "", fmt.Errorf("%w: media type %s is not an image", ErrInvalidPicture, parsed.MediaType.ContentType())
	}

	return s.store(ctx, ownerID, bytes.NewReader(parsed.Data))
}

// StoreUpload normalizes a raw uploaded image and returns the media URL of
// the stored result.
func (s *Store) StoreUpload(ctx context.Context, ownerID string, src io.Reader) (string, error) {
	return s.store(ctx, ownerID, src)
}

func (s *Store) store(ctx context.Context, ownerID string, src io.Reader) (string, error) {
	normalized, err := blob.NormalizeStaticImage(src, s.maxEdge, s.quality)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPicture, err)
	}

	stored, err := s.blobs.Save(ctx, blob.KindProfilePicture, bytes.NewReader(normalized.Data))
	if err != nil {
		return "", err
	}

	err = s.repo.Create(ctx, db.BlobRecord{
		ID:          stored.ID,
		OwnerID:     ownerID,
		Kind:        string(stored.Kind),
		StoragePath: stored.StoragePath,
		MimeType:    stored.MimeType,
		SizeBytes:   stored.SizeBytes,
		Width:       normalized.Width,
		Height:      normalized.Height,
		CreatedAt:   stored.CreatedAt,
	})
	if err != nil {
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), stored.StoragePath); delErr != nil {
			slog.Warn("error deleting orphaned picture", "component", "avatar", "error", delErr, "blob_id", stored.ID)
		}
		return "", fmt.Errorf("recording picture: %w", err)
	}

	return mediaurl.Blob(s.baseURL, stored.ID), nil
}

// Owns reports whether pictureURL is media on this server uploaded by ownerID.
func (s *Store) Owns(ctx context.Context, ownerID, pictureURL string) bool {
	_, ok := s.ownedRecord(ctx, ownerID, pictureURL)
	return ok
}

// Release deletes a picture previously stored for ownerID. URLs that do not
// point at this server's media, or at another user's picture, are ignored.
func (s *Store) Release(ctx context.Context, ownerID, pictureURL string) {
	record, ok := s.ownedRecord(ctx, ownerID, pictureURL)
	if !ok {
		return
	}

	if err := s.repo.DeleteByID(ctx, record.ID); err != nil && !errors.Is(err, db.ErrNotFound) {
		slog.Warn("error deleting picture row", "component", "avatar", "error", err, "blob_id", record.ID)
		return
	}
	if err := s.blobs.Delete(ctx, record.StoragePath); err != nil {
		slog.Warn("error deleting picture file", "component", "avatar", "error", err, "blob_id", record.ID)
	}
}

func (s *Store) ownedRecord(ctx context.Context, ownerID, pictureURL string) (*db.BlobRecord, bool) {
	blobID, ok := mediaurl.Owned(s.baseURL, strings.TrimSpace(pictureURL))
	if !ok {
		return nil, false
	}

	record, err := s.repo.FindByID(ctx, blobID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, false
	}
	if err != nil {
		slog.Warn("error loading picture", "component", "avatar", "error", err, "blob_id", blobID)
		return nil, false
	}
	if record.OwnerID != ownerID || record.Kind != string(blob.KindProfilePicture) {
		return nil, false
	}
	return record, true
}
