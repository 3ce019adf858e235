package readings

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/floodwatch/flood-monitor-service/internal/models"
	"github.com/floodwatch/flood-monitor-service/internal/observability"
)

// rawReading mirrors the upstream reading record. The measure field is
// either a URI string or an embedded object depending on the endpoint's
// view parameters, so it stays raw until decoded.
type rawReading struct {
	DateTime string          `json:"dateTime"`
	Value    *float64        `json:"value"`
	Measure  json.RawMessage `json:"measure"`
}

// rawMeasure is the embedded form of the measure field.
type rawMeasure struct {
	ID        string `json:"@id"`
	Parameter string `json:"parameter"`
	Qualifier string `json:"qualifier"`
	UnitName  string `json:"unitName"`
}

// Normalize maps raw reading records onto the uniform Reading schema for
// one station, returning rows sorted ascending by timestamp (stable: ties
// keep fetch order) and the count of records dropped.
//
// Records missing a timestamp or a value, or whose timestamp does not
// parse, are dropped and counted, never errored. Timestamps are converted
// to UTC. Units are verbatim from the source with no conversion, so mixed
// units within one series pass through unchanged. Rows outside the
// inclusive window are excluded.
func Normalize(raw []json.RawMessage, station models.Station, window models.Window) ([]models.Reading, int) {
	out := make([]models.Reading, 0, len(raw))
	dropped := 0
	drop := func(reason string) {
		dropped++
		observability.ReadingsSkippedTotal.WithLabelValues(reason).Inc()
	}

	for _, rec := range raw {
		var rr rawReading
		if err := json.Unmarshal(rec, &rr); err != nil {
			drop("malformed")
			continue
		}
		if rr.DateTime == "" {
			drop("missing_timestamp")
			continue
		}
		if rr.Value == nil {
			drop("missing_value")
			continue
		}
		ts, err := time.Parse(time.RFC3339, rr.DateTime)
		if err != nil {
			drop("bad_timestamp")
			continue
		}
		ts = ts.UTC()
		if !window.IsZero() && !window.Contains(ts) {
			continue
		}

		measure := decodeMeasure(rr.Measure)
		out = append(out, models.Reading{
			StationID: station.ID,
			Timestamp: ts,
			Measure:   parseMeasureType(measure.Parameter, measure.ID),
			Qualifier: measure.Qualifier,
			Value:     *rr.Value,
			Unit:      measure.UnitName,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, dropped
}

// decodeMeasure tolerates the measure field being an object, a bare URI
// string, or absent.
func decodeMeasure(raw json.RawMessage) rawMeasure {
	if len(raw) == 0 {
		return rawMeasure{}
	}
	var m rawMeasure
	if err := json.Unmarshal(raw, &m); err == nil {
		return m
	}
	var uri string
	if err := json.Unmarshal(raw, &uri); err == nil {
		return rawMeasure{ID: uri}
	}
	return rawMeasure{}
}

// parseMeasureType maps the source parameter vocabulary to the measure
// enum. When the parameter is absent the measure URI is consulted: measure
// ids embed the parameter name (e.g. ".../1491TH-level-stage-i-15_min-mASD").
func parseMeasureType(parameter, measureID string) models.MeasureType {
	switch strings.ToLower(strings.TrimSpace(parameter)) {
	case "level", "stage":
		return models.MeasureLevel
	case "flow":
		return models.MeasureFlow
	}
	id := strings.ToLower(measureID)
	if strings.Contains(id, "-level-") || strings.Contains(id, "-stage-") {
		return models.MeasureLevel
	}
	if strings.Contains(id, "-flow-") {
		return models.MeasureFlow
	}
	return models.MeasureUnknown
}
