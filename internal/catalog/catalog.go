// Package catalog builds the normalized station catalog from raw API
// records and filters it against user criteria. All functions are pure:
// malformed records are skipped and counted, never returned as errors.
package catalog

import (
	"encoding/json"
	"strings"

	"github.com/floodwatch/flood-monitor-service/internal/models"
	"github.com/floodwatch/flood-monitor-service/internal/observability"
)

// rawStation is the subset of the upstream station record the catalog
// needs. Everything is optional at the JSON layer; mandatory fields are
// enforced in Build.
type rawStation struct {
	StationReference string            `json:"stationReference"`
	Label            json.RawMessage   `json:"label"`
	RiverName        string            `json:"riverName"`
	Town             string            `json:"town"`
	CatchmentName    string            `json:"catchmentName"`
	Status           json.RawMessage   `json:"status"`
	Lat              *float64          `json:"lat"`
	Long             *float64          `json:"long"`
	Measures         []json.RawMessage `json:"measures"`
}

// Build turns raw station records into the normalized catalog, preserving
// source order. Records missing stationReference or label are skipped and
// counted; everything else defaults rather than fails.
func Build(raw []json.RawMessage) ([]models.Station, int) {
	stations := make([]models.Station, 0, len(raw))
	skipped := 0

	for _, rec := range raw {
		var rs rawStation
		if err := json.Unmarshal(rec, &rs); err != nil {
			skipped++
			continue
		}
		label := decodeLabel(rs.Label)
		if rs.StationReference == "" || label == "" {
			skipped++
			continue
		}

		stations = append(stations, models.Station{
			ID:           rs.StationReference,
			Label:        label,
			RiverName:    rs.RiverName,
			Town:         rs.Town,
			Catchment:    rs.CatchmentName,
			Status:       ParseStatus(decodeStatus(rs.Status)),
			Lat:          rs.Lat,
			Long:         rs.Long,
			MeasureCount: len(rs.Measures),
		})
	}

	observability.StationsSkippedTotal.Add(float64(skipped))
	return stations, skipped
}

// decodeLabel handles the upstream quirk where label is usually a string
// but occasionally an array of strings; the first entry wins.
func decodeLabel(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	return ""
}

// decodeStatus tolerates status as a plain string or a URI object.
func decodeStatus(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		ID string `json:"@id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}

// ParseStatus maps the source status vocabulary to the normalized enum.
// Upstream reports status as a URI like
// "http://environment.data.gov.uk/flood-monitoring/def/core/statusActive"
// (sometimes with a #fragment); only the final segment matters.
// Unrecognized values map to StatusUnknown, never an error.
func ParseStatus(s string) models.StationStatus {
	if i := strings.LastIndex(s, "#"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "status"))
	switch s {
	case "active":
		return models.StatusActive
	case "suspended":
		return models.StatusSuspended
	case "closed":
		return models.StatusClosed
	default:
		return models.StatusUnknown
	}
}

// Filter returns the stations matching all provided criteria, preserving
// catalog order. Empty criteria match everything. Name and river matches
// are case-insensitive substrings; a station with no river name never
// matches a non-empty river filter.
func Filter(stations []models.Station, criteria models.FilterCriteria) []models.Station {
	if criteria.IsEmpty() {
		return stations
	}

	name := strings.ToLower(criteria.Name)
	river := strings.ToLower(criteria.River)
	statuses := make(map[models.StationStatus]struct{}, len(criteria.Statuses))
	for _, st := range criteria.Statuses {
		statuses[st] = struct{}{}
	}

	out := make([]models.Station, 0, len(stations))
	for _, s := range stations {
		if name != "" && !strings.Contains(strings.ToLower(s.Label), name) {
			continue
		}
		if river != "" {
			if s.RiverName == "" || !strings.Contains(strings.ToLower(s.RiverName), river) {
				continue
			}
		}
		if len(statuses) > 0 {
			if _, ok := statuses[s.Status]; !ok {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}
