package validation

import (
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/floodwatch/flood-monitor-service/internal/models"
)

// ErrStationIDEmpty is returned when the station id is empty or whitespace-only after trim.
var ErrStationIDEmpty = errors.New("station id is required")

// ErrStationIDTooLong is returned when the station id exceeds the maximum length.
var ErrStationIDTooLong = errors.New("station id too long")

// ErrStationIDInvalidChars is returned when the station id contains disallowed characters.
var ErrStationIDInvalidChars = errors.New("station id contains invalid characters")

// ErrUnknownStatus is returned for a status filter value outside the enum.
var ErrUnknownStatus = errors.New("unknown status")

// ErrBadTimestamp is returned for an unparsable since/until query value.
var ErrBadTimestamp = errors.New("invalid timestamp")

// ErrWindowInverted is returned when the window end precedes its start.
var ErrWindowInverted = errors.New("window end precedes start")

// MaxStationIDLength bounds station references; upstream ids are short
// alphanumerics (e.g. "1491TH", "E2043").
const MaxStationIDLength = 64

// ValidateStationID trims the input and restricts it to the characters that
// occur in upstream station references: letters, digits, hyphen, underscore,
// dot. Returns the trimmed id or an error suitable for 400 responses.
func ValidateStationID(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", ErrStationIDEmpty
	}
	if len(s) > MaxStationIDLength {
		return "", ErrStationIDTooLong
	}
	for _, c := range s {
		if !isAllowedStationIDRune(c) {
			return "", ErrStationIDInvalidChars
		}
	}
	return s, nil
}

func isAllowedStationIDRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case '-', '_', '.':
		return true
	}
	return false
}

// ParseStatuses parses a comma-separated status filter into the enum set.
// Empty input means no status filter.
func ParseStatuses(input string) ([]models.StationStatus, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}
	parts := strings.Split(input, ",")
	out := make([]models.StationStatus, 0, len(parts))
	for _, p := range parts {
		switch models.StationStatus(strings.ToLower(strings.TrimSpace(p))) {
		case models.StatusActive:
			out = append(out, models.StatusActive)
		case models.StatusSuspended:
			out = append(out, models.StatusSuspended)
		case models.StatusClosed:
			out = append(out, models.StatusClosed)
		case models.StatusUnknown:
			out = append(out, models.StatusUnknown)
		default:
			return nil, ErrUnknownStatus
		}
	}
	return out, nil
}

// ParseWindow parses optional since/until query values into a Window.
// Both empty yields the zero window (callers apply the default). A lone
// since runs to now; a lone until starts 24h before it.
func ParseWindow(since, until string, now time.Time) (models.Window, error) {
	since = strings.TrimSpace(since)
	until = strings.TrimSpace(until)
	if since == "" && until == "" {
		return models.Window{}, nil
	}

	var w models.Window
	var err error
	if since != "" {
		w.Start, err = time.Parse(time.RFC3339, since)
		if err != nil {
			return models.Window{}, ErrBadTimestamp
		}
		w.Start = w.Start.UTC()
	}
	if until != "" {
		w.End, err = time.Parse(time.RFC3339, until)
		if err != nil {
			return models.Window{}, ErrBadTimestamp
		}
		w.End = w.End.UTC()
	}
	if w.End.IsZero() {
		w.End = now.UTC()
	}
	if w.Start.IsZero() {
		w.Start = w.End.Add(-24 * time.Hour)
	}
	if w.End.Before(w.Start) {
		return models.Window{}, ErrWindowInverted
	}
	return w, nil
}
