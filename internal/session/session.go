// Package session holds the explicit per-session state: the current
// station catalog and the current readings working set. State is replaced
// wholesale on refresh (last-write-wins); there is no merge or append.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/floodwatch/flood-monitor-service/internal/catalog"
	"github.com/floodwatch/flood-monitor-service/internal/client"
	"github.com/floodwatch/flood-monitor-service/internal/models"
	"github.com/floodwatch/flood-monitor-service/internal/observability"
	"github.com/floodwatch/flood-monitor-service/internal/readings"
)

// Session owns the in-memory catalog cache and readings working set.
// One logical actor drives it per the request/response model; the mutex
// only guards against the HTTP server's OS-level concurrency.
type Session struct {
	client  client.FloodClient
	fetcher *readings.Fetcher
	logger  *zap.Logger
	clock   clockwork.Clock

	catalogTTL  time.Duration
	readingsTTL time.Duration

	mu            sync.Mutex
	stations      []models.Station
	stationsByID  map[string]models.Station
	catalogBuilt  time.Time
	workingSet    []models.Reading
	workingSetKey string
	workingSetAt  time.Time
}

// New creates a Session with the default rolling readings window. Pass a
// nil clock for real time.
func New(c client.FloodClient, logger *zap.Logger, catalogTTL, readingsTTL time.Duration, clk clockwork.Clock) *Session {
	return NewWithWindow(c, logger, catalogTTL, readingsTTL, readings.DefaultWindowLength, clk)
}

// NewWithWindow creates a Session whose default readings window spans the
// given length back from now.
func NewWithWindow(c client.FloodClient, logger *zap.Logger, catalogTTL, readingsTTL, window time.Duration, clk clockwork.Clock) *Session {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Session{
		client:      c,
		fetcher:     readings.NewFetcherWithClock(c, window, clk),
		logger:      logger,
		clock:       clk,
		catalogTTL:  catalogTTL,
		readingsTTL: readingsTTL,
	}
}

// Stations returns the current catalog, refreshing from upstream when the
// cached one has expired or none has been fetched yet.
func (s *Session) Stations(ctx context.Context) ([]models.Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stations != nil && s.clock.Since(s.catalogBuilt) < s.catalogTTL {
		observability.CatalogCacheHitsTotal.Inc()
		return s.stations, nil
	}
	return s.refreshLocked(ctx)
}

// Refresh forces a catalog rebuild, replacing the cached one entirely.
func (s *Session) Refresh(ctx context.Context) ([]models.Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Session) refreshLocked(ctx context.Context) ([]models.Station, error) {
	raw, err := s.client.FetchStations(ctx)
	if err != nil {
		// keep serving nothing rather than a half-replaced catalog
		return nil, fmt.Errorf("fetch stations: %w", err)
	}

	stations, skipped := catalog.Build(raw)
	byID := make(map[string]models.Station, len(stations))
	for _, st := range stations {
		byID[st.ID] = st
	}

	s.stations = stations
	s.stationsByID = byID
	s.catalogBuilt = s.clock.Now()
	s.workingSet = nil
	s.workingSetKey = ""

	observability.CatalogRefreshesTotal.Inc()
	observability.CatalogSize.Set(float64(len(stations)))
	if s.logger != nil {
		s.logger.Info("catalog refreshed",
			zap.Int("stations", len(stations)),
			zap.Int("skipped", skipped))
	}
	return stations, nil
}

// FilterStations applies criteria to the current catalog, refreshing it
// first if needed.
func (s *Session) FilterStations(ctx context.Context, criteria models.FilterCriteria) ([]models.Station, error) {
	stations, err := s.Stations(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Filter(stations, criteria), nil
}

// Station looks up one station in the current catalog.
func (s *Session) Station(ctx context.Context, id string) (models.Station, bool, error) {
	if _, err := s.Stations(ctx); err != nil {
		return models.Station{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stationsByID[id]
	return st, ok, nil
}

// Readings returns the normalized working set for a station and window.
// Readings for stations absent from the current catalog are not fetched:
// the caller gets client.ErrStationNotFound, preserving the invariant that
// every reading references a cataloged station. Each fetch replaces the
// working set; a repeat request for the same station and window within the
// readings TTL is served from it. Default-window requests count as the
// same window until the TTL expires, at which point the window re-anchors
// to now.
func (s *Session) Readings(ctx context.Context, stationID string, window models.Window) ([]models.Reading, error) {
	station, ok, err := s.Station(ctx, stationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s not in catalog", client.ErrStationNotFound, stationID)
	}

	key := workingSetKey(stationID, window)

	s.mu.Lock()
	if s.workingSetKey == key && s.clock.Since(s.workingSetAt) < s.readingsTTL {
		rows := s.workingSet
		s.mu.Unlock()
		observability.ReadingsCacheHitsTotal.Inc()
		return rows, nil
	}
	s.mu.Unlock()

	observability.ReadingsFetchesTotal.Inc()
	observability.RecordReadingsQuery(station.RiverName)
	raw, resolved, err := s.fetcher.Fetch(ctx, stationID, window)
	if err != nil {
		return nil, fmt.Errorf("fetch readings for %s: %w", stationID, err)
	}

	rows, dropped := readings.Normalize(raw, station, resolved)
	if s.logger != nil && dropped > 0 {
		s.logger.Debug("dropped malformed readings",
			zap.String("station", stationID),
			zap.Int("dropped", dropped))
	}

	s.mu.Lock()
	s.workingSet = rows
	s.workingSetKey = key
	s.workingSetAt = s.clock.Now()
	s.mu.Unlock()

	return rows, nil
}

// CatalogAge reports how long ago the catalog was built, and false when no
// catalog has been fetched yet. Used by the health endpoint.
func (s *Session) CatalogAge() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stations == nil {
		return 0, false
	}
	return s.clock.Since(s.catalogBuilt), true
}

// workingSetKey identifies a cached working set. Default-window requests
// share one key per station: the default window re-anchors to now on each
// resolution, so keying it by resolved bounds would change the key every
// call and no request would ever hit the working set. The window for those
// entries is re-resolved only when the TTL expires and a fresh fetch runs.
func workingSetKey(stationID string, w models.Window) string {
	if w.IsZero() {
		return stationID + "|default"
	}
	return stationID + "|" + w.Start.UTC().Format(time.RFC3339) + "|" + w.End.UTC().Format(time.RFC3339)
}
