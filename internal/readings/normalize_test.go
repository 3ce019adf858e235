package readings

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/floodwatch/flood-monitor-service/internal/models"
)

func raw(t *testing.T, records ...string) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, 0, len(records))
	for _, r := range records {
		out = append(out, json.RawMessage(r))
	}
	return out
}

var testStation = models.Station{ID: "S1", Label: "River Ouse at York", RiverName: "Ouse", Status: models.StatusActive}

func TestNormalize_DropsRecordsMissingValueOrTimestamp(t *testing.T) {
	in := raw(t,
		`{"dateTime":"2024-01-01T00:00:00Z","value":1.2,"measure":{"parameter":"level","unitName":"m"}}`,
		`{"dateTime":"2024-01-01T01:00:00Z","value":null}`,
		`{"value":0.8,"measure":{"parameter":"level","unitName":"m"}}`,
		`{"dateTime":"yesterday teatime","value":0.9}`,
	)

	rows, dropped := Normalize(in, testStation, models.Window{})
	if len(rows) != 1 {
		t.Fatalf("Normalize() returned %d rows, want 1", len(rows))
	}
	if dropped != 3 {
		t.Errorf("Normalize() dropped = %d, want 3", dropped)
	}
	r := rows[0]
	if r.StationID != "S1" {
		t.Errorf("StationID = %q, want S1", r.StationID)
	}
	if r.Value != 1.2 || r.Unit != "m" {
		t.Errorf("row = %+v, want value 1.2 unit m", r)
	}
	if r.Measure != models.MeasureLevel {
		t.Errorf("Measure = %q, want level", r.Measure)
	}
}

func TestNormalize_SortedAscendingStable(t *testing.T) {
	// out-of-order input, with two readings sharing a timestamp in fetch order
	in := raw(t,
		`{"dateTime":"2024-01-01T02:00:00Z","value":3,"measure":{"parameter":"level","unitName":"m","qualifier":"Stage"}}`,
		`{"dateTime":"2024-01-01T00:00:00Z","value":1,"measure":{"parameter":"level","unitName":"m","qualifier":"Stage"}}`,
		`{"dateTime":"2024-01-01T01:00:00Z","value":2,"measure":{"parameter":"level","unitName":"m","qualifier":"Stage"}}`,
		`{"dateTime":"2024-01-01T01:00:00Z","value":2.5,"measure":{"parameter":"flow","unitName":"m3/s","qualifier":""}}`,
	)

	rows, dropped := Normalize(in, testStation, models.Window{})
	if dropped != 0 {
		t.Fatalf("dropped = %d, want 0", dropped)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].Timestamp.Before(rows[i-1].Timestamp) {
			t.Fatalf("rows not sorted ascending: %v before %v", rows[i].Timestamp, rows[i-1].Timestamp)
		}
	}
	// tie at 01:00: the level reading was fetched first, so it stays first
	if rows[1].Value != 2 || rows[2].Value != 2.5 {
		t.Errorf("tie not stable: got values %v, %v at positions 1, 2", rows[1].Value, rows[2].Value)
	}
}

func TestNormalize_TimestampsConvertedToUTC(t *testing.T) {
	in := raw(t,
		`{"dateTime":"2024-06-01T01:30:00+01:00","value":1,"measure":{"parameter":"level","unitName":"m"}}`,
	)
	rows, _ := Normalize(in, testStation, models.Window{})
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	want := time.Date(2024, 6, 1, 0, 30, 0, 0, time.UTC)
	if !rows[0].Timestamp.Equal(want) || rows[0].Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp = %v, want %v in UTC", rows[0].Timestamp, want)
	}
}

func TestNormalize_WindowInclusiveBothBounds(t *testing.T) {
	window := models.Window{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC),
	}
	in := raw(t,
		`{"dateTime":"2023-12-31T23:59:59Z","value":0,"measure":{"parameter":"level","unitName":"m"}}`,
		`{"dateTime":"2024-01-01T00:00:00Z","value":1,"measure":{"parameter":"level","unitName":"m"}}`,
		`{"dateTime":"2024-01-01T02:00:00Z","value":2,"measure":{"parameter":"level","unitName":"m"}}`,
		`{"dateTime":"2024-01-01T02:00:01Z","value":3,"measure":{"parameter":"level","unitName":"m"}}`,
	)

	rows, dropped := Normalize(in, testStation, window)
	if dropped != 0 {
		t.Errorf("out-of-window rows must not count as dropped, got %d", dropped)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (both bounds inclusive)", len(rows))
	}
	if rows[0].Value != 1 || rows[1].Value != 2 {
		t.Errorf("rows = %v, want boundary readings 1 and 2", rows)
	}
}

func TestNormalize_MixedUnitsPassThrough(t *testing.T) {
	in := raw(t,
		`{"dateTime":"2024-01-01T00:00:00Z","value":1,"measure":{"parameter":"level","unitName":"m"}}`,
		`{"dateTime":"2024-01-01T01:00:00Z","value":105,"measure":{"parameter":"level","unitName":"mm"}}`,
	)
	rows, _ := Normalize(in, testStation, models.Window{})
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Unit != "m" || rows[1].Unit != "mm" {
		t.Errorf("units = %q, %q; want m, mm passed through unconverted", rows[0].Unit, rows[1].Unit)
	}
}

func TestNormalize_MeasureFromURI(t *testing.T) {
	tests := []struct {
		name string
		rec  string
		want models.MeasureType
	}{
		{
			"embedded object level",
			`{"dateTime":"2024-01-01T00:00:00Z","value":1,"measure":{"parameter":"level","unitName":"mASD"}}`,
			models.MeasureLevel,
		},
		{
			"embedded object flow",
			`{"dateTime":"2024-01-01T00:00:00Z","value":1,"measure":{"parameter":"flow","unitName":"m3/s"}}`,
			models.MeasureFlow,
		},
		{
			"bare measure URI",
			`{"dateTime":"2024-01-01T00:00:00Z","value":1,"measure":"http://environment.data.gov.uk/flood-monitoring/id/measures/1491TH-level-stage-i-15_min-mASD"}`,
			models.MeasureLevel,
		},
		{
			"flow URI",
			`{"dateTime":"2024-01-01T00:00:00Z","value":1,"measure":"http://environment.data.gov.uk/flood-monitoring/id/measures/1491TH-flow--i-15_min-m3_s"}`,
			models.MeasureFlow,
		},
		{
			"no measure",
			`{"dateTime":"2024-01-01T00:00:00Z","value":1}`,
			models.MeasureUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, dropped := Normalize(raw(t, tt.rec), testStation, models.Window{})
			if dropped != 0 || len(rows) != 1 {
				t.Fatalf("rows=%d dropped=%d, want 1/0", len(rows), dropped)
			}
			if rows[0].Measure != tt.want {
				t.Errorf("Measure = %q, want %q", rows[0].Measure, tt.want)
			}
		})
	}
}

func TestNormalize_EmptyInput(t *testing.T) {
	rows, dropped := Normalize(nil, testStation, models.Window{})
	if len(rows) != 0 || dropped != 0 {
		t.Errorf("Normalize(nil) = %d rows, %d dropped; want 0, 0", len(rows), dropped)
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	in := raw(t,
		`{"dateTime":"2024-01-01T02:00:00Z","value":3,"measure":{"parameter":"level","unitName":"m"}}`,
		`{"dateTime":"2024-01-01T00:00:00Z","value":1,"measure":{"parameter":"level","unitName":"m"}}`,
	)
	first, _ := Normalize(in, testStation, models.Window{})
	second, _ := Normalize(in, testStation, models.Window{})
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("row %d differs between identical runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}
