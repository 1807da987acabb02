package util

import "time"

// LookbackRange returns [now-days, now] with both ends truncated to the bar length, in UTC.
// Truncation keeps the range stable for every request made within the same bar.
func LookbackRange(now time.Time, days int, bar time.Duration) (time.Time, time.Time) {
	if bar <= 0 {
		bar = 24 * time.Hour
	}
	to := now.UTC().Truncate(bar)
	from := to.AddDate(0, 0, -days)
	return from, to
}

// DateKey formats t as YYYYMMDD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("20060102")
}
