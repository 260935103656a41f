package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/models"
)

const (
	DefaultAPIBaseURL = "https://api.pokemontcg.io/v2"
	apiPageSize       = 250
	apiKeyHeader      = "X-Api-Key"
)

var errRateLimited = errors.New("rate limited by card api")

type cardsPage struct {
	Data       []models.Card `json:"data"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	Count      int           `json:"count"`
	TotalCount int           `json:"totalCount"`
}

// Fetcher downloads card data from the Pokémon TCG API.
type Fetcher struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	retryWait  time.Duration
	maxRetries uint64
	setPacer   *rate.Limiter
}

func NewFetcher(baseURL, apiKey string) *Fetcher {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultAPIBaseURL
	}
	return &Fetcher{
		client:     &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		retryWait:  5 * time.Second,
		maxRetries: 5,
		setPacer:   rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// FetchSets downloads every set in order. A failing set is logged and
// skipped; cards gathered before the failure are kept.
func (f *Fetcher) FetchSets(ctx context.Context, setIDs []string) ([]models.Card, error) {
	runID := uuid.NewString()
	var all []models.Card

	for _, setID := range setIDs {
		if err := f.setPacer.Wait(ctx); err != nil {
			return all, err
		}

		cards, err := f.FetchSet(ctx, setID)
		all = append(all, cards...)
		if err != nil {
			if ctx.Err() != nil {
				return all, ctx.Err()
			}
			slog.Error("error fetching card set", "component", "catalog_fetch", "run_id", runID, "set", setID, "error", err)
			continue
		}
		slog.Info("fetched card set", "component", "catalog_fetch", "run_id", runID, "set", setID, "count", len(cards))
	}

	return all, nil
}

// FetchSet pages through a single set until the reported total is reached.
func (f *Fetcher) FetchSet(ctx context.Context, setID string) ([]models.Card, error) {
	var cards []models.Card
	for page := 1; ; page++ {
		resp, err := f.fetchPage(ctx, setID, page)
		if err != nil {
			return cards, fmt.Errorf("fetching %s page %d: %w", setID, page, err)
		}
		if len(resp.Data) == 0 {
			return cards, nil
		}
		cards = append(cards, resp.Data...)

		pageSize := resp.PageSize
		if pageSize <= 0 {
			pageSize = apiPageSize
		}
		total := resp.TotalCount
		if total <= 0 {
			total = resp.Count
		}
		if resp.Page*pageSize >= total {
			return cards, nil
		}
	}
}

func (f *Fetcher) fetchPage(ctx context.Context, setID string, page int) (*cardsPage, error) {
	q := url.Values{}
	q.Set("q", "set.id:"+setID)
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(apiPageSize))
	endpoint := f.baseURL + "/cards?" + q.Encode()

	var out cardsPage
	backoff := retry.WithMaxRetries(f.maxRetries, retry.NewConstant(f.retryWait))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("building request: %w", err)
		}
		if f.apiKey != "" {
			req.Header.Set(apiKeyHeader, f.apiKey)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("requesting cards: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			slog.Warn("card api rate limit hit, backing off", "component", "catalog_fetch", "set", setID, "page", page, "wait", f.retryWait)
			_, _ = io.Copy(io.Discard, resp.Body)
			return retry.RetryableError(errRateLimited)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		out = cardsPage{}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("decoding cards page: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &out, nil
}

// WriteFile stores cards as indented JSON, replacing path atomically.
func WriteFile(path string, cards []models.Card) error {
	if cards == nil {
		cards = []models.Card{}
	}
	data, err := json.MarshalIndent(cards, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cards: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating catalog directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "cards-*.json.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary catalog file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("writing catalog file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing catalog file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("finalizing catalog file: %w", err)
	}

	return nil
}
