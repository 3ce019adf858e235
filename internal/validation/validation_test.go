package validation

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/floodwatch/flood-monitor-service/internal/models"
)

func TestValidateStationID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"typical reference", "1491TH", "1491TH", nil},
		{"reference with letters", "E2043", "E2043", nil},
		{"trimmed", "  1491TH  ", "1491TH", nil},
		{"hyphen and underscore", "L3404_RE-1", "L3404_RE-1", nil},
		{"empty", "", "", ErrStationIDEmpty},
		{"whitespace only", "   ", "", ErrStationIDEmpty},
		{"path traversal", "../stations", "", ErrStationIDInvalidChars},
		{"embedded space", "1491 TH", "", ErrStationIDInvalidChars},
		{"too long", strings.Repeat("A", 65), "", ErrStationIDTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateStationID(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ValidateStationID(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateStationID(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ValidateStationID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseStatuses(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []models.StationStatus
		wantErr error
	}{
		{"empty means no filter", "", nil, nil},
		{"single", "active", []models.StationStatus{models.StatusActive}, nil},
		{"multiple with spaces", "active, closed", []models.StationStatus{models.StatusActive, models.StatusClosed}, nil},
		{"case insensitive", "Suspended", []models.StationStatus{models.StatusSuspended}, nil},
		{"unknown keyword", "unknown", []models.StationStatus{models.StatusUnknown}, nil},
		{"invalid", "retired", nil, ErrUnknownStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatuses(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseStatuses(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStatuses(%q) unexpected error: %v", tt.input, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseStatuses(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParseStatuses(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseWindow(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	t.Run("both empty yields zero window", func(t *testing.T) {
		w, err := ParseWindow("", "", now)
		if err != nil {
			t.Fatalf("ParseWindow() error = %v", err)
		}
		if !w.IsZero() {
			t.Errorf("ParseWindow(\"\", \"\") = %v, want zero window", w)
		}
	})

	t.Run("explicit bounds", func(t *testing.T) {
		w, err := ParseWindow("2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z", now)
		if err != nil {
			t.Fatalf("ParseWindow() error = %v", err)
		}
		if !w.Start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("Start = %v", w.Start)
		}
		if !w.End.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("End = %v", w.End)
		}
	})

	t.Run("lone since runs to now", func(t *testing.T) {
		w, err := ParseWindow("2024-03-15T00:00:00Z", "", now)
		if err != nil {
			t.Fatalf("ParseWindow() error = %v", err)
		}
		if !w.End.Equal(now) {
			t.Errorf("End = %v, want %v", w.End, now)
		}
	})

	t.Run("lone until starts 24h earlier", func(t *testing.T) {
		w, err := ParseWindow("", "2024-03-15T06:00:00Z", now)
		if err != nil {
			t.Fatalf("ParseWindow() error = %v", err)
		}
		want := time.Date(2024, 3, 14, 6, 0, 0, 0, time.UTC)
		if !w.Start.Equal(want) {
			t.Errorf("Start = %v, want %v", w.Start, want)
		}
	})

	t.Run("offset timestamps normalized to UTC", func(t *testing.T) {
		w, err := ParseWindow("2024-06-01T01:00:00+01:00", "2024-06-01T12:00:00+01:00", now)
		if err != nil {
			t.Fatalf("ParseWindow() error = %v", err)
		}
		if w.Start.Location() != time.UTC || w.End.Location() != time.UTC {
			t.Error("window bounds not normalized to UTC")
		}
	})

	t.Run("garbage timestamp", func(t *testing.T) {
		if _, err := ParseWindow("yesterday", "", now); !errors.Is(err, ErrBadTimestamp) {
			t.Errorf("error = %v, want ErrBadTimestamp", err)
		}
	})

	t.Run("inverted window", func(t *testing.T) {
		_, err := ParseWindow("2024-01-02T00:00:00Z", "2024-01-01T00:00:00Z", now)
		if !errors.Is(err, ErrWindowInverted) {
			t.Errorf("error = %v, want ErrWindowInverted", err)
		}
	})
}
