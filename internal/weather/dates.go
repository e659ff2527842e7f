package weather

import "time"

// DateLayout is the calendar-day format used on the wire and in stores.
const DateLayout = "2006-01-02"

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ShiftYears moves date by whole years keeping month and day.
// It reports false when the day does not exist in the target year (Feb 29).
func ShiftYears(date time.Time, years int) (time.Time, bool) {
	y, m, d := date.Date()
	target := y + years
	if m == time.February && d == 29 && !isLeap(target) {
		return time.Time{}, false
	}
	return time.Date(target, m, d, 0, 0, 0, 0, time.UTC), true
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
