// Package extract implements the upstream property-search client. One
// fetch runs per configured location, concurrently but bounded, and the
// combined results are deduplicated by property id (first listed
// location wins) before the single-threaded transform stage begins.
package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/estateops/vegasetl/pkg/config"
	"github.com/estateops/vegasetl/pkg/etlerrors"
	"github.com/estateops/vegasetl/pkg/logger"
	"github.com/estateops/vegasetl/pkg/models"
)

// searchLocationField is the internal extraction marker attached to
// every raw record; the transform stage never projects it onto the
// canonical schema.
const searchLocationField = "search_location"

// searchResponse is the shape of the upstream search payload.
type searchResponse struct {
	Props []map[string]interface{} `json:"props"`
}

// Client fetches raw property records from the search API.
type Client struct {
	cfg     config.APIConfig
	http    *http.Client
	limiter *rateLimiter
	logger  *zap.Logger
}

// NewClient creates a search client from the API configuration.
func NewClient(cfg config.APIConfig, logger *zap.Logger) *Client {
	rate := cfg.RequestsPerSecond
	if rate <= 0 {
		rate = 2
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: newRateLimiter(rate, 1),
		logger:  logger,
	}
}

// FetchAll fetches every configured location and merges the results,
// deduplicated by property id. Merge order follows the configured
// location order so the first-seen winner is deterministic regardless
// of fetch completion order.
func (c *Client) FetchAll(ctx context.Context) ([]models.RawRecord, error) {
	results := make([][]models.RawRecord, len(c.cfg.Locations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.MaxConcurrency)

	for i, location := range c.cfg.Locations {
		i, location := i, location
		g.Go(func() error {
			records, err := c.Fetch(gctx, location)
			if err != nil {
				return err
			}
			results[i] = records
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{})
	merged := make([]models.RawRecord, 0, 256)
	for _, records := range results {
		for _, rec := range records {
			if id, ok := rec.Int("zpid"); ok {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
			}
			merged = append(merged, rec)
		}
	}

	c.logger.Info("extraction completed",
		zap.Int("locations", len(c.cfg.Locations)),
		zap.Int("records", len(merged)))

	return merged, nil
}

// Fetch fetches raw property records for one location.
func (c *Client) Fetch(ctx context.Context, location string) ([]models.RawRecord, error) {
	if c.cfg.Key == "" {
		return nil, etlerrors.New(etlerrors.ErrorTypeConfig, "api.key is not set")
	}

	ctx = context.WithValue(ctx, logger.LocationKey, location)
	log := logger.WithContext(ctx, c.logger)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeExtract, "rate limit wait interrupted")
	}

	params := url.Values{}
	params.Set("location", location)
	params.Set("status_type", c.cfg.Status)
	params.Set("home_type", c.cfg.HomeType)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeExtract, "failed to build search request")
	}
	req.Header.Set("x-rapidapi-key", c.cfg.Key)
	req.Header.Set("x-rapidapi-host", c.cfg.Host)

	log.Info("fetching listings", zap.String("status", c.cfg.Status))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeExtract, "search request failed")
	}
	defer resp.Body.Close() // Ignore close error

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, etlerrors.New(etlerrors.ErrorTypeExtract,
			fmt.Sprintf("search request returned status %d", resp.StatusCode)).
			WithDetail("location", location).
			WithDetail("body", string(body))
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeExtract, "failed to decode search response")
	}

	records := make([]models.RawRecord, 0, len(payload.Props))
	for _, props := range payload.Props {
		rec := models.RawRecord(props)
		rec[searchLocationField] = location
		records = append(records, rec)
	}

	log.Info("fetched listings", zap.Int("records", len(records)))

	return records, nil
}
