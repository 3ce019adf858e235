package models

import "time"

// StationStatus is the normalized operational status of a monitoring station.
// Source records carry status as a URI (e.g. ".../statusActive"); anything
// outside the known vocabulary maps to StatusUnknown.
type StationStatus string

const (
	StatusActive    StationStatus = "active"
	StatusSuspended StationStatus = "suspended"
	StatusClosed    StationStatus = "closed"
	StatusUnknown   StationStatus = "unknown"
)

// MeasureType is the physical quantity a reading reports.
type MeasureType string

const (
	MeasureLevel   MeasureType = "level"
	MeasureFlow    MeasureType = "flow"
	MeasureUnknown MeasureType = "unknown"
)

// Station is one physical monitoring point from the station catalog.
// Rebuilt fresh on every catalog fetch; treated as immutable after build.
type Station struct {
	ID           string        `json:"id"`
	Label        string        `json:"label"`
	RiverName    string        `json:"riverName,omitempty"`
	Town         string        `json:"town,omitempty"`
	Catchment    string        `json:"catchment,omitempty"`
	Status       StationStatus `json:"status"`
	Lat          *float64      `json:"lat,omitempty"`
	Long         *float64      `json:"long,omitempty"`
	MeasureCount int           `json:"measureCount"`
}

// HasCoordinates reports whether both coordinates are present.
func (s Station) HasCoordinates() bool {
	return s.Lat != nil && s.Long != nil
}

// Reading is a single timestamped measurement from a station. Timestamps are
// normalized to UTC. Unit is verbatim from the source; no conversion is done,
// so a single station's series may mix units and consumers must check.
type Reading struct {
	StationID string      `json:"stationId"`
	Timestamp time.Time   `json:"timestamp"`
	Measure   MeasureType `json:"measure"`
	Qualifier string      `json:"qualifier,omitempty"`
	Value     float64     `json:"value"`
	Unit      string      `json:"unit"`
}

// FilterCriteria narrows a station catalog. Zero value matches everything.
// Name and River are case-insensitive substring matches; Statuses is exact
// set membership. Criteria combine with logical AND.
type FilterCriteria struct {
	Name     string
	River    string
	Statuses []StationStatus
}

// IsEmpty reports whether no criteria are set.
func (c FilterCriteria) IsEmpty() bool {
	return c.Name == "" && c.River == "" && len(c.Statuses) == 0
}

// Window is an inclusive time range over which readings are requested.
// The zero value means "use the default window" (now-24h to now).
type Window struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether the window is unset.
func (w Window) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// Contains reports whether t falls within the window, inclusive of both bounds.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}
