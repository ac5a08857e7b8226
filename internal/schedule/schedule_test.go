package schedule

import (
	"testing"
	"time"
)

func newTestMarket(t *testing.T) *Market {
	t.Helper()
	m, err := New("America/New_York")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func et(t *testing.T, value string) time.Time {
	t.Helper()
	loc, _ := time.LoadLocation("America/New_York")
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	if err != nil {
		t.Fatalf("bad time %q: %v", value, err)
	}
	return ts
}

func TestIsOpen(t *testing.T) {
	m := newTestMarket(t)

	tests := []struct {
		name string
		at   string
		want bool
	}{
		{"mid-session tuesday", "2026-01-06 12:00", true},
		{"open boundary", "2026-01-06 09:30", true},
		{"before open", "2026-01-06 09:29", false},
		{"close boundary excluded", "2026-01-06 16:00", false},
		{"last open minute", "2026-01-06 15:59", true},
		{"saturday", "2026-01-03 12:00", false},
		{"sunday", "2026-01-04 12:00", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.IsOpen(et(t, tt.at)); got != tt.want {
				t.Errorf("IsOpen(%s) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestIsOpen_ConvertsTimezone(t *testing.T) {
	m := newTestMarket(t)
	// 17:00 UTC on a Tuesday is 12:00 ET.
	utc := time.Date(2026, 1, 6, 17, 0, 0, 0, time.UTC)
	if !m.IsOpen(utc) {
		t.Error("UTC instants must be evaluated in exchange time")
	}
}

func TestNextOpen(t *testing.T) {
	m := newTestMarket(t)

	tests := []struct {
		name string
		at   string
		want string
	}{
		{"during session returns now", "2026-01-06 12:00", "2026-01-06 12:00"},
		{"before open same day", "2026-01-06 07:00", "2026-01-06 09:30"},
		{"after close rolls to next day", "2026-01-06 18:00", "2026-01-07 09:30"},
		{"friday evening rolls to monday", "2026-01-09 18:00", "2026-01-12 09:30"},
		{"saturday rolls to monday", "2026-01-10 10:00", "2026-01-12 09:30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.NextOpen(et(t, tt.at))
			if !got.Equal(et(t, tt.want)) {
				t.Errorf("NextOpen(%s) = %v, want %s", tt.at, got, tt.want)
			}
		})
	}
}
