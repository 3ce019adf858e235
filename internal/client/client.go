package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/floodwatch/flood-monitor-service/internal/observability"
)

// FloodClient fetches raw records from the flood-monitoring API.
// Fetch follows pagination transparently; each call re-queries from the
// first page, so a fresh call always reflects current upstream state.
type FloodClient interface {
	Fetch(ctx context.Context, endpoint string, params url.Values) ([]json.RawMessage, error)
	FetchStations(ctx context.Context) ([]json.RawMessage, error)
	FetchStationReadings(ctx context.Context, stationID string, since time.Time) ([]json.RawMessage, error)
	Ping(ctx context.Context) error
}

var (
	ErrNetwork         = errors.New("network failure")
	ErrTimeout         = errors.New("request timeout")
	ErrRateLimited     = errors.New("rate limited")
	ErrStationNotFound = errors.New("station not found")
)

// HTTPFloodClient talks to the Environment Agency flood-monitoring REST API.
type HTTPFloodClient struct {
	baseURL        string
	timeout        time.Duration
	client         *http.Client
	pageLimit      int
	maxPages       int
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
}

// NewHTTPFloodClient returns a client with default retry policy
// (3 attempts, 100ms base delay, 2s max delay).
func NewHTTPFloodClient(baseURL string, timeout time.Duration, pageLimit, maxPages int) (*HTTPFloodClient, error) {
	return NewHTTPFloodClientWithRetry(baseURL, timeout, pageLimit, maxPages, 3, 100*time.Millisecond, 2*time.Second)
}

func NewHTTPFloodClientWithRetry(baseURL string, timeout time.Duration, pageLimit, maxPages, retryAttempts int, retryBaseDelay, retryMaxDelay time.Duration) (*HTTPFloodClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrNetwork)
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if pageLimit <= 0 {
		pageLimit = 500
	}
	if maxPages <= 0 {
		maxPages = 20
	}

	return &HTTPFloodClient{
		baseURL:        strings.TrimRight(baseURL, "/"),
		timeout:        timeout,
		pageLimit:      pageLimit,
		maxPages:       maxPages,
		retryAttempts:  retryAttempts,
		retryBaseDelay: retryBaseDelay,
		retryMaxDelay:  retryMaxDelay,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// itemsEnvelope is the common response shape: a JSON-LD context plus items.
// Items stay raw here; decoding into typed records is the boundary layers' job.
type itemsEnvelope struct {
	Items []json.RawMessage `json:"items"`
}

// Fetch retrieves all records for an endpoint, following offset-based
// pagination (_limit/_offset) until a short page or the page cap.
func (c *HTTPFloodClient) Fetch(ctx context.Context, endpoint string, params url.Values) ([]json.RawMessage, error) {
	var all []json.RawMessage
	pages := 0
	for offset := 0; pages < c.maxPages; offset += c.pageLimit {
		page, err := c.fetchPage(ctx, endpoint, params, offset)
		if err != nil {
			return nil, err
		}
		pages++
		all = append(all, page...)
		if len(page) < c.pageLimit {
			break
		}
	}
	observability.FloodAPIPagesPerFetch.Observe(float64(pages))
	return all, nil
}

// fetchPage retrieves a single page, retrying transient failures with
// exponential backoff and jitter.
func (c *HTTPFloodClient) fetchPage(ctx context.Context, endpoint string, params url.Values, offset int) ([]json.RawMessage, error) {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.FloodAPIRetriesTotal.Inc()
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		page, err := c.callAPI(ctx, endpoint, params, offset)
		if err == nil {
			return page, nil
		}

		lastErr = err
		if !c.isRetryable(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("exhausted retries: %w", lastErr)
}

func (c *HTTPFloodClient) callAPI(ctx context.Context, endpoint string, params url.Values, offset int) ([]json.RawMessage, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, endpoint, params, offset)
	if err != nil {
		observability.FloodAPICallsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("build request: %w", err)
	}

	corrID := extractCorrelationID(ctx)
	if corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		category := string(CategorizeError(err))
		observability.FloodAPICallsTotal.WithLabelValues(endpoint, category).Inc()
		observability.FloodAPIDuration.WithLabelValues(endpoint, category).Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || isTimeoutError(err) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		if errors.Is(err, context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.FloodAPICallsTotal.WithLabelValues(endpoint, status).Inc()
	observability.FloodAPIDuration.WithLabelValues(endpoint, status).Observe(duration)

	if err := c.handleErrorResponse(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %v", ErrNetwork, err)
	}

	var envelope itemsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return envelope.Items, nil
}

// FetchStations retrieves the full station collection.
func (c *HTTPFloodClient) FetchStations(ctx context.Context) ([]json.RawMessage, error) {
	return c.Fetch(ctx, "/id/stations", nil)
}

// FetchStationReadings retrieves readings for one station since the given
// time. The upstream `since` bound is inclusive; `_sorted` asks for
// newest-first ordering, matching what the dashboard's table shows.
func (c *HTTPFloodClient) FetchStationReadings(ctx context.Context, stationID string, since time.Time) ([]json.RawMessage, error) {
	params := url.Values{}
	params.Set("since", since.UTC().Format(time.RFC3339))
	params.Set("_sorted", "")
	return c.Fetch(ctx, "/id/stations/"+url.PathEscape(stationID)+"/readings", params)
}

// Ping checks upstream reachability with a minimal one-item request.
func (c *HTTPFloodClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	u := c.baseURL + "/id/stations?_limit=1"
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d", ErrNetwork, resp.StatusCode)
	}
	return nil
}

func (c *HTTPFloodClient) isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout) {
		return true
	}
	if errors.Is(err, ErrStationNotFound) {
		return false
	}
	return errors.Is(err, ErrNetwork)
}

func (c *HTTPFloodClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func (c *HTTPFloodClient) buildRequest(ctx context.Context, endpoint string, params url.Values, offset int) (*http.Request, error) {
	u, err := url.Parse(c.baseURL + endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint URL: %w", err)
	}

	q := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("_limit", strconv.Itoa(c.pageLimit))
	if offset > 0 {
		q.Set("_offset", strconv.Itoa(offset))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *HTTPFloodClient) handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w", ErrStationNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: HTTP %d", ErrNetwork, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrNetwork, resp.StatusCode)
	}

	return nil
}

func isTimeoutError(err error) bool {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return strings.Contains(err.Error(), "Client.Timeout exceeded")
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
