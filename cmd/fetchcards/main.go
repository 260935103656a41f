// Command fetchcards downloads the configured card sets from the Pokémon TCG
// API and writes the catalog file the server loads at startup.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/catalog"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/config"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	configPath := flag.String("config", "", "path to config file (optional)")
	output := flag.String("out", "", "catalog file to write (defaults to catalog.path)")
	sets := flag.String("sets", "", "comma separated set ids (defaults to catalog.sets)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	path := cfg.Catalog.Path
	if *output != "" {
		path = *output
	}
	setIDs := cfg.Catalog.Sets
	if *sets != "" {
		setIDs = splitList(*sets)
	}
	if cfg.Catalog.APIKey == "" {
		slog.Warn("no card api key configured, requests are subject to lower rate limits; set POKEMON_TCG_API_KEY")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fetcher := catalog.NewFetcher(cfg.Catalog.APIBaseURL, cfg.Catalog.APIKey)
	cards, err := fetcher.FetchSets(ctx, setIDs)
	if err != nil {
		slog.Error("card download interrupted", "error", err, "cards", len(cards))
		os.Exit(1)
	}

	if err := catalog.WriteFile(path, cards); err != nil {
		slog.Error("failed to write catalog", "error", err, "path", path)
		os.Exit(1)
	}
	slog.Info("catalog written", "path", path, "sets", len(setIDs), "cards", len(cards))
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
