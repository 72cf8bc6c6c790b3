package domain

import "time"

// AddMonthClamped moves t forward one calendar month, clamping the day at the
// target month's boundary: Jan 31 becomes Feb 28 (29 in leap years), never
// Mar 2/3. time.AddDate normalizes overflow instead of clamping, so it cannot
// be used here.
func AddMonthClamped(t time.Time) time.Time {
	year, month, day := t.Date()
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(firstOfNext.Year(), firstOfNext.Month()); day > last {
		day = last
	}
	return time.Date(firstOfNext.Year(), firstOfNext.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
