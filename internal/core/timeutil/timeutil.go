// Package timeutil holds the calendar-day logic shared by the query layer,
// the spreadsheet feed and the daily notifier. All "what day is it" decisions
// go through these two functions so the venue's timezone is applied
// consistently no matter where the server runs.
package timeutil

import "time"

// DayInTZ returns the civil calendar date of t as observed in loc.
func DayInTZ(t time.Time, loc *time.Location) (year int, month time.Month, day int) {
	return t.In(loc).Date()
}

// SameDayInTZ reports whether two instants fall on the same calendar day as
// observed in loc. The comparison uses the location's own civil-date
// computation, so DST transition days compare correctly without any offset
// arithmetic.
func SameDayInTZ(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := DayInTZ(a, loc)
	by, bm, bd := DayInTZ(b, loc)
	return ay == by && am == bm && ad == bd
}

// InstantAtLocalTime constructs the UTC instant corresponding to the given
// civil time in loc. For example, noon on 2024-01-15 in America/Chicago is
// 2024-01-15T18:00:00Z.
func InstantAtLocalTime(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, loc).UTC()
}
