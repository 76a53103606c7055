package printer

import (
	"fmt"
	"time"
)

var agoUnits = []struct {
	name string
	size time.Duration
}{
	{name: "day", size: 24 * time.Hour},
	{name: "hour", size: time.Hour},
	{name: "minute", size: time.Minute},
	{name: "second", size: time.Second},
}

// TimeAgo returns a human-readable relative time string in UTC.
// Examples: "5 seconds ago (UTC)", "1 minute ago (UTC)", "3 days ago (UTC)".
func TimeAgo(t time.Time) string {
	diff := time.Now().UTC().Sub(t.UTC())
	if diff < 0 {
		return "in the future (UTC)"
	}

	for _, u := range agoUnits {
		if diff < u.size && u.size != time.Second {
			continue
		}

		n := int(diff / u.size)
		if n == 1 {
			return fmt.Sprintf("1 %s ago (UTC)", u.name)
		}
		return fmt.Sprintf("%d %ss ago (UTC)", n, u.name)
	}

	return "0 seconds ago (UTC)"
}

// FormatTimestamp returns a formatted timestamp string in UTC.
// Format: "2006-01-02 15:04:05 UTC".
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

// FormatElapsed returns the time between two instants rounded to seconds, e.g "2m30s".
func FormatElapsed(from, to time.Time) string {
	d := to.Sub(from)
	if d < 0 {
		d = 0
	}
	return d.Round(time.Second).String()
}

// FormatProgress returns a progress percentage without decimals, e.g "45%".
func FormatProgress(p float64) string {
	return fmt.Sprintf("%.0f%%", p)
}
