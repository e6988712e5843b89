package sapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/roach88/catchup/internal/record"
)

// searchEndpoint is the cursor-paginated catalog search the backfill crawls.
const searchEndpoint = "/shows/search/filters"

// Page is one verbatim provider response plus the pagination metadata the
// worker needs to drive the loop.
type Page struct {
	Payload    []byte // unmodified response body, archived as-is
	NextCursor string
	HasMore    bool
	ItemCount  int
}

// Client fetches one catalog page per call. cursor == "" requests the
// first page of the scope's sequence.
//
// Implementations must distinguish transient from permanent failures
// (TransientError vs PermanentError) so the worker can decide whether a
// retry invocation is sensible.
type Client interface {
	FetchPage(ctx context.Context, scope record.Scope, params map[string]string, cursor string) (*Page, error)
}

// envelope pulls only the pagination fields out of a response; the payload
// itself stays verbatim for the raw archive.
type envelope struct {
	Shows      []json.RawMessage `json:"shows"`
	HasMore    bool              `json:"hasMore"`
	NextCursor string            `json:"nextCursor"`
}

// HTTPClient is the RapidAPI-backed Client.
type HTTPClient struct {
	baseURL     string
	apiKey      string
	apiHost     string
	httpc       *http.Client
	limiter     *rate.Limiter
	maxAttempts int

	// Incremental backoff between retries, per the provider's guidance:
	// start, then +increment per attempt, capped at max.
	backoffStart     time.Duration
	backoffIncrement time.Duration
	backoffMax       time.Duration

	log *slog.Logger
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) { h.httpc = c }
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64) HTTPOption {
	return func(h *HTTPClient) { h.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// WithMaxAttempts sets the per-page attempt budget (default 3).
func WithMaxAttempts(n int) HTTPOption {
	return func(h *HTTPClient) { h.maxAttempts = n }
}

// WithBackoff tunes the retry backoff schedule. Tests set zeros.
func WithBackoff(start, increment, max time.Duration) HTTPOption {
	return func(h *HTTPClient) {
		h.backoffStart = start
		h.backoffIncrement = increment
		h.backoffMax = max
	}
}

// WithLogger sets the structured logger (default slog.Default).
func WithLogger(log *slog.Logger) HTTPOption {
	return func(h *HTTPClient) { h.log = log }
}

// NewHTTPClient builds a provider client for the given RapidAPI
// credentials and base URL.
func NewHTTPClient(baseURL, apiKey, apiHost string, opts ...HTTPOption) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}

	h := &HTTPClient{
		baseURL:          strings.TrimRight(baseURL, "/"),
		apiKey:           apiKey,
		apiHost:          apiHost,
		httpc:            &http.Client{Timeout: 30 * time.Second},
		limiter:          rate.NewLimiter(rate.Limit(5), 1),
		maxAttempts:      3,
		backoffStart:     time.Second,
		backoffIncrement: time.Second,
		backoffMax:       5 * time.Second,
		log:              slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// FetchPage fetches one page of the scope's catalog search, retrying
// transient failures up to the attempt budget.
func (h *HTTPClient) FetchPage(ctx context.Context, scope record.Scope, params map[string]string, cursor string) (*Page, error) {
	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	query.Set("country", scope.Country)
	if query.Get("catalogs") == "" && scope.CatalogsBundle != "" {
		query.Set("catalogs", scope.CatalogsBundle)
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	} else {
		query.Del("cursor")
	}

	reqURL := h.baseURL + searchEndpoint + "?" + query.Encode()

	var lastErr error
	for attempt := 1; attempt <= h.maxAttempts; attempt++ {
		if err := h.limiter.Wait(ctx); err != nil {
			return nil, &TransientError{Err: err}
		}

		page, err := h.fetchOnce(ctx, reqURL)
		if err == nil {
			return page, nil
		}
		if !IsTransient(err) {
			return nil, err
		}
		lastErr = err

		if attempt < h.maxAttempts {
			delay := h.backoffDelay(attempt)
			h.log.Warn("provider fetch retry",
				"attempt", attempt, "delay", delay, "error", err)
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, &TransientError{Err: err}
			}
		}
	}
	return nil, lastErr
}

func (h *HTTPClient) fetchOnce(ctx context.Context, reqURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &PermanentError{Err: err}
	}
	req.Header.Set("x-rapidapi-key", h.apiKey)
	req.Header.Set("x-rapidapi-host", h.apiHost)

	start := time.Now()
	resp, err := h.httpc.Do(req)
	if err != nil {
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Status: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &TransientError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("provider returned %s", resp.Status),
		}
	case resp.StatusCode != http.StatusOK:
		return nil, &PermanentError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("provider returned %s", resp.Status),
		}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &PermanentError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("decode response: %w", err),
		}
	}

	h.log.Debug("provider fetch ok",
		"status", resp.StatusCode,
		"items", len(env.Shows),
		"has_more", env.HasMore,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return &Page{
		Payload:    body,
		NextCursor: env.NextCursor,
		HasMore:    env.HasMore,
		ItemCount:  len(env.Shows),
	}, nil
}

func (h *HTTPClient) backoffDelay(attempt int) time.Duration {
	delay := h.backoffStart + time.Duration(attempt-1)*h.backoffIncrement
	if delay > h.backoffMax {
		delay = h.backoffMax
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
