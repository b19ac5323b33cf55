package utils

import (
	"math"
	"time"

	"github.com/dustin/go-humanize"
)

// CalculateElapsedDays calculates the number of whole days elapsed between since and now.
// Partial days are floored, so a time in the future yields a negative count.
func CalculateElapsedDays(since, now time.Time) int {
	return int(math.Floor(now.Sub(since).Hours() / 24))
}

// FormatRelativeDate formats a date together with how long ago it was relative to now
func FormatRelativeDate(t, now time.Time) string {
	daysAgo := CalculateElapsedDays(t, now)
	if daysAgo < 1 {
		return "Today"
	}
	if daysAgo == 1 {
		return "Yesterday"
	}
	return t.Format("2006-01-02") + " (" + humanize.RelTime(t, now, "ago", "from now") + ")"
}
