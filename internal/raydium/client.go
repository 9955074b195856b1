// Package raydium talks to the Raydium trade API: prices, priority fees,
// swap quotes and unsigned swap transactions.
package raydium

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/0xayot/davids-sling/internal/pricecache"
)

// ---------------------------------------------------------------------------
// Raydium trade API client
// https://docs.raydium.io/raydium/traders/trade-api
// ---------------------------------------------------------------------------

var (
	ErrQuoteUnavailable = errors.New("raydium: quote unavailable")
	ErrBuildFailed      = errors.New("raydium: build transaction failed")
)

// Cache keys and lifetimes shared with the price feed.
const (
	PriceCacheKey = "raydium_price"
	FeeCacheKey   = "solana_gas_prices"

	PriceTTL = 5 * time.Second
	FeeTTL   = 5 * time.Minute
)

// Config configures the client.
type Config struct {
	APIURL       string        `yaml:"api_url"`
	SwapURL      string        `yaml:"swap_url"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// DefaultConfig returns the public endpoints.
func DefaultConfig() Config {
	return Config{
		APIURL:       "https://api-v3.raydium.io",
		SwapURL:      "https://transaction-v1.raydium.io",
		Timeout:      15 * time.Second,
		MaxRetries:   2,
		RetryBackoff: 500 * time.Millisecond,
	}
}

// FeeSource estimates a compute unit price when auto-fee is unavailable.
type FeeSource interface {
	RecentPriorityFee(ctx context.Context) (uint64, error)
}

// Client is safe for concurrent use.
type Client struct {
	config     Config
	httpClient *http.Client
	cache      *pricecache.Cache
	fallback   FeeSource

	priceCount atomic.Int64
	quoteCount atomic.Int64
	buildCount atomic.Int64
	errorCount atomic.Int64
}

// New creates a client. A nil httpClient gets one with config.Timeout.
func New(config Config, cache *pricecache.Cache, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	if cache == nil {
		cache = pricecache.New(nil)
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = DefaultConfig().RetryBackoff
	}
	return &Client{config: config, httpClient: httpClient, cache: cache}
}

// SetFeeFallback installs the source used when auto-fee fails.
func (c *Client) SetFeeFallback(f FeeSource) {
	c.fallback = f
}

// statusError is a non-2xx response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.code, e.body)
}

func retryable(err error) bool {
	var de *decodeError
	if errors.As(err, &de) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return true
}

// doJSON performs the request with retries and decodes the body into out.
func (c *Client) doJSON(ctx context.Context, method, url string, payload []byte, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.config.RetryBackoff * time.Duration(1<<uint(attempt-1))):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		lastErr = c.roundTrip(req, out)
		if lastErr == nil {
			return nil
		}
		c.errorCount.Add(1)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !retryable(lastErr) {
			return lastErr
		}
		log.Debug().Err(lastErr).Int("attempt", attempt+1).Str("url", url).Msg("raydium: request failed")
	}
	return lastErr
}

func (c *Client) roundTrip(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode, body: truncate(string(data), 200)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &decodeError{err: err}
	}
	return nil
}

// decodeError is never retried.
type decodeError struct{ err error }

func (e *decodeError) Error() string { return "decode: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Stats is a point-in-time view of client counters.
type Stats struct {
	PriceCount int64 `json:"price_count"`
	QuoteCount int64 `json:"quote_count"`
	BuildCount int64 `json:"build_count"`
	ErrorCount int64 `json:"error_count"`
}

func (c *Client) Stats() Stats {
	return Stats{
		PriceCount: c.priceCount.Load(),
		QuoteCount: c.quoteCount.Load(),
		BuildCount: c.buildCount.Load(),
		ErrorCount: c.errorCount.Load(),
	}
}
