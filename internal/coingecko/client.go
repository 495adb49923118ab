// Package coingecko is the cached, retrying client for the public CoinGecko API.
package coingecko

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"crypto-portal/internal/cache"
	"crypto-portal/internal/models"
	"crypto-portal/internal/retry"
)

const (
	DefaultBaseURL = "https://api.coingecko.com/api/v3"

	DefaultTopCoinsLimit = 100
	DefaultTickerLimit   = 10
	DefaultChartDays     = 30
)

// HTTPDoer is the part of *http.Client the client needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches market data through a TTL cache keyed by request URL.
//
// Concurrent misses for the same URL each go upstream unless WithSingleFlight is set;
// whichever finishes last owns the cache slot.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient HTTPDoer
	cache      *cache.Cache
	retry      *retry.Driver
	flight     *singleflight.Group
	log        zerolog.Logger

	policy retry.Policy
	sleep  retry.SleepFunc
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithAPIKey sends key as the demo API key header.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) { c.httpClient = doer }
}

// WithCache shares an externally owned cache.
func WithCache(store *cache.Cache) Option {
	return func(c *Client) { c.cache = store }
}

func WithRetryPolicy(policy retry.Policy) Option {
	return func(c *Client) { c.policy = policy }
}

// WithSleep replaces the backoff timer, mostly for tests.
func WithSleep(sleep retry.SleepFunc) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithSingleFlight collapses concurrent identical cache misses into one upstream call.
func WithSingleFlight() Option {
	return func(c *Client) { c.flight = &singleflight.Group{} }
}

// NewClient creates a client with a private cache, the default retry policy and a 10s HTTP timeout.
func NewClient(log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log:    log.With().Str("client", "coingecko").Logger(),
		policy: retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = cache.New(cache.DefaultTTL, nil)
	}
	c.retry = retry.NewDriver(c.policy, c.sleep, c.log)
	return c
}

// GetTopCoins returns the first limit coins by market cap.
func (c *Client) GetTopCoins(ctx context.Context, limit int) ([]models.CoinSummary, error) {
	if limit <= 0 {
		limit = DefaultTopCoinsLimit
	}
	return fetchJSON[[]models.CoinSummary](ctx, c, c.marketsURL(limit))
}

// GetTickerCoins is GetTopCoins with the smaller ticker default.
func (c *Client) GetTickerCoins(ctx context.Context, limit int) ([]models.CoinSummary, error) {
	if limit <= 0 {
		limit = DefaultTickerLimit
	}
	return fetchJSON[[]models.CoinSummary](ctx, c, c.marketsURL(limit))
}

func (c *Client) GetCoinDetail(ctx context.Context, coinID string) (*models.CoinDetail, error) {
	u := fmt.Sprintf("%s/coins/%s?localization=false&tickers=false&market_data=true&community_data=false&developer_data=false",
		c.baseURL, url.PathEscape(coinID))

	detail, err := fetchJSON[*models.CoinDetail](ctx, c, u)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// GetCoinChartData returns the price, market cap and volume series for the last days.
// A one-day window is requested hourly, anything longer daily.
func (c *Client) GetCoinChartData(ctx context.Context, coinID string, days int) (*models.ChartData, error) {
	if days <= 0 {
		days = DefaultChartDays
	}
	u := fmt.Sprintf("%s/coins/%s/market_chart?vs_currency=usd&days=%d&interval=%s",
		c.baseURL, url.PathEscape(coinID), days, ChartInterval(days))

	chart, err := fetchJSON[*models.ChartData](ctx, c, u)
	if err != nil {
		return nil, err
	}
	return chart, nil
}

// SearchCoins returns the coin matches for a free-text query.
func (c *Client) SearchCoins(ctx context.Context, query string) ([]models.SearchCoin, error) {
	u := fmt.Sprintf("%s/search?query=%s", c.baseURL, encodeQuery(query))

	resp, err := fetchJSON[*models.SearchResponse](ctx, c, u)
	if err != nil {
		return nil, err
	}
	if resp.Coins == nil {
		return []models.SearchCoin{}, nil
	}
	return resp.Coins, nil
}

func (c *Client) GetGlobalData(ctx context.Context) (*models.GlobalData, error) {
	resp, err := fetchJSON[*models.GlobalResponse](ctx, c, c.baseURL+"/global")
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// GetTrending returns the coins trending in CoinGecko searches over the last 24h.
func (c *Client) GetTrending(ctx context.Context) (*models.TrendingResponse, error) {
	resp, err := fetchJSON[*models.TrendingResponse](ctx, c, c.baseURL+"/search/trending")
	if err != nil {
		return nil, err
	}
	if resp.Coins == nil {
		// Copy so the cached entry is never modified.
		out := *resp
		out.Coins = []models.TrendingCoin{}
		return &out, nil
	}
	return resp, nil
}

// ChartInterval is "hourly" for a one-day window and "daily" otherwise.
func ChartInterval(days int) string {
	if days == 1 {
		return "hourly"
	}
	return "daily"
}

func (c *Client) marketsURL(limit int) string {
	return fmt.Sprintf("%s/coins/markets?vs_currency=usd&order=market_cap_desc&per_page=%d&page=1&sparkline=false&price_change_percentage=24h",
		c.baseURL, limit)
}

// encodeQuery percent-encodes q with spaces as %20 rather than '+'.
func encodeQuery(q string) string {
	return strings.ReplaceAll(url.QueryEscape(q), "+", "%20")
}

// fetchJSON serves u from the cache or fetches, decodes and caches it.
func fetchJSON[T any](ctx context.Context, c *Client, u string) (T, error) {
	var zero T

	if payload, ok := c.cache.Get(u); ok {
		if v, ok := payload.(T); ok {
			c.log.Debug().Str("url", u).Msg("Cache hit")
			return v, nil
		}
	}

	if c.flight == nil {
		return fetchAndStore[T](ctx, c, u)
	}

	// The shared fetch must outlive any single caller; each caller still stops waiting on its own ctx.
	ch := c.flight.DoChan(u, func() (any, error) {
		return fetchAndStore[T](context.WithoutCancel(ctx), c, u)
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		if res.Shared {
			c.log.Debug().Str("url", u).Msg("Shared in-flight request")
		}
		return res.Val.(T), nil
	}
}

func fetchAndStore[T any](ctx context.Context, c *Client, u string) (T, error) {
	var zero T

	// Entries are stamped with the request start, so retries never extend freshness.
	started := c.cache.Now()

	resp, err := c.retry.Do(ctx, func(ctx context.Context) (*http.Response, error) {
		return c.get(ctx, u)
	})
	if err != nil {
		return zero, fmt.Errorf("failed to fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return zero, &StatusError{StatusCode: resp.StatusCode, URL: u}
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return zero, fmt.Errorf("failed to decode response: %w", err)
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return zero, fmt.Errorf("failed to decode response: %w", ErrNullPayload)
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, fmt.Errorf("failed to decode response: %w", err)
	}

	c.cache.SetAt(u, v, started)
	c.log.Debug().Str("url", u).Msg("Fetched and cached")
	return v, nil
}

func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}
	return c.httpClient.Do(req)
}

const userAgent = "crypto-portal/1.0"
