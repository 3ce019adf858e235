// Package readings fetches raw reading records for a station and normalizes
// them into the uniform row schema the presentation layer consumes.
package readings

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/floodwatch/flood-monitor-service/internal/client"
	"github.com/floodwatch/flood-monitor-service/internal/models"
)

// DefaultWindowLength is the rolling window used when the caller does not
// supply one.
const DefaultWindowLength = 24 * time.Hour

// Fetcher retrieves raw reading records for one station over a time window,
// delegating pagination to the API client.
type Fetcher struct {
	client client.FloodClient
	window time.Duration
	clock  clockwork.Clock
}

// NewFetcher returns a Fetcher with the default rolling window.
func NewFetcher(c client.FloodClient) *Fetcher {
	return NewFetcherWithWindow(c, DefaultWindowLength)
}

// NewFetcherWithWindow returns a Fetcher whose zero-window default spans
// the given length back from now.
func NewFetcherWithWindow(c client.FloodClient, window time.Duration) *Fetcher {
	return NewFetcherWithClock(c, window, nil)
}

// NewFetcherWithClock pins window resolution to the given clock so
// callers that already inject a clock get consistent time from one
// source. A nil clock falls back to the package clock.
func NewFetcherWithClock(c client.FloodClient, window time.Duration, clk clockwork.Clock) *Fetcher {
	if window <= 0 {
		window = DefaultWindowLength
	}
	return &Fetcher{client: c, window: window, clock: clk}
}

// ResolveWindow fills in the default window (now-24h to now, inclusive)
// when w is zero, and returns w unchanged otherwise.
func ResolveWindow(w models.Window) models.Window {
	if !w.IsZero() {
		return w
	}
	now := clock.Now().UTC()
	return models.Window{Start: now.Add(-DefaultWindowLength), End: now}
}

// ResolveWindow is like the package function but uses the fetcher's
// configured window length and clock.
func (f *Fetcher) ResolveWindow(w models.Window) models.Window {
	if !w.IsZero() {
		return w
	}
	now := f.now().UTC()
	return models.Window{Start: now.Add(-f.window), End: now}
}

func (f *Fetcher) now() time.Time {
	if f.clock != nil {
		return f.clock.Now()
	}
	return clock.Now()
}

// Fetch retrieves all raw reading records for the station within the window.
// Zero readings in the window is a valid outcome: the result is an empty
// slice and a nil error. Transport failures propagate with the client's
// error taxonomy.
func (f *Fetcher) Fetch(ctx context.Context, stationID string, window models.Window) ([]json.RawMessage, models.Window, error) {
	window = f.ResolveWindow(window)
	raw, err := f.client.FetchStationReadings(ctx, stationID, window.Start)
	if err != nil {
		return nil, window, err
	}
	return raw, window, nil
}
