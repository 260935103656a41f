package blob

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/db"
)

const (
	DefaultCleanupInterval = 1 * time.Hour
	DefaultCleanupGrace    = 1 * time.Hour
	DefaultCleanupBatch    = 100
)

// CleanupService removes stored pictures that no profile references any more,
// such as uploads replaced before the old file could be released.
type CleanupService struct {
	repo      *db.BlobRepository
	blobs     *Service
	interval  time.Duration
	grace     time.Duration
	batchSize int
}

func NewCleanupService(repo *db.BlobRepository, blobs *Service) *CleanupService {
	return &CleanupService{
		repo:      repo,
		blobs:     blobs,
		interval:  DefaultCleanupInterval,
		grace:     DefaultCleanupGrace,
		batchSize: DefaultCleanupBatch,
	}
}

func (s *CleanupService) Start(ctx context.Context) {
	slog.Info("starting blob cleanup service", "component", "blob_cleanup", "interval", s.interval)

	s.runCleanup(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping blob cleanup service", "component", "blob_cleanup")
			return
		case <-ticker.C:
			s.runCleanup(ctx)
		}
	}
}

func (s *CleanupService) runCleanup(ctx context.Context) int {
	cutoff := time.Now().UTC().Add(-s.grace)
	rows, err := s.repo.ListUnreferenced(ctx, cutoff, s.batchSize)
	if err != nil {
		slog.Error("error listing unreferenced blobs", "component", "blob_cleanup", "error", err)
		return 0
	}

	deleted := 0
	for _, row := range rows {
		if err := s.repo.DeleteByID(ctx, row.ID); err != nil {
			if !errors.Is(err, db.ErrNotFound) {
				slog.Error("error deleting unreferenced blob row", "component", "blob_cleanup", "error", err, "blob_id", row.ID)
			}
			continue
		}
		deleted++

		if err := s.blobs.Delete(ctx, row.StoragePath); err != nil {
			slog.Warn("error deleting unreferenced blob file", "component", "blob_cleanup", "error", err, "blob_id", row.ID)
		}
	}

	if deleted > 0 {
		slog.Info("deleted unreferenced blobs", "component", "blob_cleanup", "count", deleted)
	}
	return deleted
}
