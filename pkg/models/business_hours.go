package models

import "time"

// BusinessHours is the window timing handlers snap into when a wait is
// marked business-hours-only. Days are time.Weekday values; the window is
// [Open, Close) on each listed day.
type BusinessHours struct {
	OpenHour    int            `json:"open_hour"`
	OpenMinute  int            `json:"open_minute"`
	CloseHour   int            `json:"close_hour"`
	CloseMinute int            `json:"close_minute"`
	Days        []time.Weekday `json:"days"`
}

// DefaultBusinessHours is 09:00-17:00, Monday through Friday.
func DefaultBusinessHours() *BusinessHours {
	return &BusinessHours{
		OpenHour:  9,
		CloseHour: 17,
		Days: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
	}
}

func (b *BusinessHours) openAt(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), b.OpenHour, b.OpenMinute, 0, 0, day.Location())
}

func (b *BusinessHours) closeAt(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), b.CloseHour, b.CloseMinute, 0, 0, day.Location())
}

func (b *BusinessHours) workday(d time.Weekday) bool {
	for _, day := range b.Days {
		if day == d {
			return true
		}
	}

	return false
}

// Adjust moves t forward to the nearest instant inside the window. An
// instant on a non-working day advances to the next working day's opening;
// before opening snaps to opening; at or after closing rolls to the next
// working day's opening.
func (b *BusinessHours) Adjust(t time.Time) time.Time {
	// Bounded by a week of non-working days plus the close rollover.
	for range 8 {
		if !b.workday(t.Weekday()) {
			t = b.openAt(t.AddDate(0, 0, 1))

			continue
		}

		if t.Before(b.openAt(t)) {
			return b.openAt(t)
		}

		if !t.Before(b.closeAt(t)) {
			t = b.openAt(t.AddDate(0, 0, 1))

			continue
		}

		return t
	}

	return t
}

// NextOpening returns the opening instant of the next working day strictly
// after t's date, at the given time of day.
func (b *BusinessHours) NextOpening(t time.Time) time.Time {
	next := b.openAt(t.AddDate(0, 0, 1))
	for !b.workday(next.Weekday()) {
		next = next.AddDate(0, 0, 1)
	}

	return next
}
