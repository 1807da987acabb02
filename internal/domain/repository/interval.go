package repository

import (
	"fmt"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"
)

// Interval is a candle resolution such as "1h" or "1d".
type Interval string

const (
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
	Interval1w  Interval = "1w"
)

var supportedIntervals = map[Interval]struct{}{
	"1m": {}, "5m": {}, Interval15m: {}, "30m": {},
	Interval1h: {}, "2h": {}, Interval4h: {}, "6h": {}, "12h": {},
	Interval1d: {}, Interval1w: {},
}

// DefaultInterval returns the default resolution.
func DefaultInterval() Interval { return Interval1d }

// ParseInterval validates s and returns it as an Interval.
func ParseInterval(s string) (Interval, error) {
	if s == "" {
		return DefaultInterval(), nil
	}
	iv := Interval(s)
	if _, ok := supportedIntervals[iv]; !ok {
		return "", fmt.Errorf("unsupported interval %q", s)
	}
	return iv, nil
}

// Duration returns the bar length.
func (i Interval) Duration() time.Duration {
	d, err := str2duration.ParseDuration(string(i))
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// BarsPerDay returns the number of bars in one day; weekly bars yield a fraction.
func (i Interval) BarsPerDay() float64 {
	return float64(24*time.Hour) / float64(i.Duration())
}

// BarsPerYear returns the number of bars per 365-day year (crypto trades every day).
func (i Interval) BarsPerYear() float64 {
	return 365 * i.BarsPerDay()
}

func (i Interval) String() string { return string(i) }
