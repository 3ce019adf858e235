package readings

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/floodwatch/flood-monitor-service/internal/models"
)

var csvHeader = []string{"timestamp", "measure", "value", "unit"}

// WriteCSV writes readings as flat CSV rows (timestamp, measure, value,
// unit) with a header row. Timestamps are RFC3339 UTC; values use the
// shortest representation that round-trips a float64.
func WriteCSV(w io.Writer, rows []models.Reading) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			r.Timestamp.UTC().Format(time.RFC3339),
			string(r.Measure),
			strconv.FormatFloat(r.Value, 'g', -1, 64),
			r.Unit,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses rows previously written by WriteCSV. The station
// association is not part of the flat form; StationID is left empty.
func ReadCSV(r io.Reader) ([]models.Reading, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	rows := records
	if len(records[0]) == len(csvHeader) && records[0][0] == csvHeader[0] {
		rows = records[1:]
	}

	out := make([]models.Reading, 0, len(rows))
	for i, rec := range rows {
		if len(rec) != len(csvHeader) {
			return nil, fmt.Errorf("csv row %d: expected %d fields, got %d", i+1, len(csvHeader), len(rec))
		}
		ts, err := time.Parse(time.RFC3339, rec[0])
		if err != nil {
			return nil, fmt.Errorf("csv row %d: parse timestamp: %w", i+1, err)
		}
		value, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("csv row %d: parse value: %w", i+1, err)
		}
		out = append(out, models.Reading{
			Timestamp: ts.UTC(),
			Measure:   models.MeasureType(rec[1]),
			Value:     value,
			Unit:      rec[3],
		})
	}
	return out, nil
}
