// Package schedule gates polling to US equity market hours.
package schedule

import (
	"time"
)

// Market reports whether a given instant falls inside the regular trading
// session of its configured exchange timezone.
type Market struct {
	loc *time.Location
}

// New creates a Market for the given IANA timezone, typically
// "America/New_York".
func New(timezone string) (*Market, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return &Market{loc: loc}, nil
}

// IsOpen reports whether t falls inside the regular session:
// Monday through Friday, 9:30 to 16:00 exchange time. Exchange holidays are
// not modeled; a holiday poll fetches an unchanged sheet and alerts nothing.
func (m *Market) IsOpen(t time.Time) bool {
	local := t.In(m.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	minutes := local.Hour()*60 + local.Minute()
	return minutes >= 9*60+30 && minutes < 16*60
}

// NextOpen returns the next session start at or after t.
func (m *Market) NextOpen(t time.Time) time.Time {
	local := t.In(m.loc)
	for {
		open := time.Date(local.Year(), local.Month(), local.Day(), 9, 30, 0, 0, m.loc)
		switch local.Weekday() {
		case time.Saturday, time.Sunday:
		default:
			if !local.After(open) {
				return open
			}
			if m.IsOpen(local) {
				return local
			}
		}
		local = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, m.loc).AddDate(0, 0, 1)
	}
}
