package util

import (
	"time"

	"github.com/dustin/go-humanize"
)

// FormatBytes renders a byte count as a human-readable size (e.g. "2.0 kB")
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// FormatAge renders a timestamp relative to now (e.g. "3 months ago")
func FormatAge(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return humanize.Time(t)
}

// FormatCount renders an integer with thousands separators
func FormatCount(n int) string {
	return humanize.Comma(int64(n))
}
