package formatter

import (
	"fmt"
	"io"
	"time"
)

// PrintTimestamp prints the audit timestamp and duration
func PrintTimestamp(writer io.Writer, startTime time.Time, duration time.Duration) {
	timeStr := startTime.Format("2006-01-02 15:04:05")
	durationStr := fmt.Sprintf("%.2fs", duration.Seconds())

	fmt.Fprintf(writer, "Audit completed at %s (took %s)\n", timeStr, durationStr)
}
