package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/api"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/avatar"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/blob"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/catalog"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/config"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/db"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/decks"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/seed"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/token"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/users"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.UsesDefaultSecret() {
		slog.Warn("signing tokens with the built-in development secret; set DECKS_AUTH_TOKEN_SECRET")
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	database, err := db.Open(startupCtx, cfg.Database.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.Info("database opened", "path", cfg.Database.Path)

	cards, err := catalog.Load(cfg.Catalog.Path)
	switch {
	case errors.Is(err, catalog.ErrCatalogMissing):
		slog.Warn("card catalog not found, starting with an empty catalog; run fetchcards to create it", "path", cfg.Catalog.Path)
	case err != nil:
		slog.Error("failed to load card catalog, starting with an empty catalog", "error", err, "path", cfg.Catalog.Path)
	default:
		slog.Info("card catalog loaded", "path", cfg.Catalog.Path, "cards", cards.Len())
	}

	userRepo := db.NewUserRepository(database)
	deckRepo := db.NewDeckRepository(database)
	if err := seedIfEmpty(startupCtx, userRepo, deckRepo, cards); err != nil {
		slog.Error("failed to seed database", "error", err)
		os.Exit(1)
	}

	storedUsers, err := userRepo.LoadAll(startupCtx)
	if err != nil {
		slog.Error("failed to load users", "error", err)
		os.Exit(1)
	}
	storedDecks, lastDeckID, err := deckRepo.LoadAll(startupCtx)
	if err != nil {
		slog.Error("failed to load decks", "error", err)
		os.Exit(1)
	}

	backend, err := newBlobBackend(startupCtx, cfg)
	if err != nil {
		slog.Error("failed to initialize blob storage", "error", err)
		os.Exit(1)
	}
	blobService, err := blob.NewService(backend, cfg.Storage.MaxUploadBytes)
	if err != nil {
		slog.Error("failed to initialize blob storage", "error", err)
		os.Exit(1)
	}
	slog.Info("blob storage initialized", "driver", cfg.Storage.Driver, "upload_max_bytes", cfg.Storage.MaxUploadBytes)

	blobRepo := db.NewBlobRepository(database)
	pictures := avatar.NewStore(blobService, blobRepo, cfg.Server.BaseURL, cfg.Profile.PictureMaxEdge)

	directory := users.NewDirectory(storedUsers, users.Options{
		Persister:         userRepo,
		Pictures:          pictures,
		TrustedImageHosts: cfg.Profile.TrustedImageHosts,
		MediaBaseURL:      cfg.Server.BaseURL,
	})
	deckStore := decks.NewStore(storedDecks, lastDeckID, cards, deckRepo)
	slog.Info("state loaded", "users", directory.Len(), "decks", len(storedDecks))

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	go blob.NewCleanupService(blobRepo, blobService).Start(cleanupCtx)

	server, err := api.NewServer(api.Deps{
		Config:   cfg,
		DB:       database,
		Codec:    token.NewCodec(cfg.Auth.TokenSecret),
		Users:    directory,
		Decks:    deckStore,
		Catalog:  cards,
		Blobs:    blobService,
		BlobRepo: blobRepo,
		Pictures: pictures,
	})
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	addr := cfg.Addr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", addr, "base_url", cfg.Server.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down")

	cleanupCancel()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

// seedIfEmpty installs the sample users and decks on first start.
func seedIfEmpty(ctx context.Context, userRepo *db.UserRepository, deckRepo *db.DeckRepository, cards *catalog.Catalog) error {
	count, err := userRepo.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	if count > 0 {
		return nil
	}

	data := seed.Build(time.Now().UTC(), cards)
	if err := userRepo.SaveUsers(ctx, data.Users); err != nil {
		return fmt.Errorf("saving sample users: %w", err)
	}
	if err := deckRepo.SaveDecks(ctx, data.Decks, data.LastID); err != nil {
		return fmt.Errorf("saving sample decks: %w", err)
	}

	slog.Info("seeded sample data", "users", len(data.Users), "decks", len(data.Decks))
	return nil
}

func newBlobBackend(ctx context.Context, cfg *config.Config) (blob.Backend, error) {
	if cfg.Storage.Driver != config.StorageDriverMinIO {
		return blob.NewFSBackend(cfg.Storage.Path)
	}

	client, err := minio.New(cfg.Storage.MinIO.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.MinIO.AccessKey, cfg.Storage.MinIO.SecretKey, ""),
		Secure: cfg.Storage.MinIO.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}
	return blob.NewMinIOBackend(ctx, client, cfg.Storage.MinIO.Bucket)
}
