package printer

import "fmt"

var byteUnits = []string{"KB", "MB", "GB", "TB"}

// FormatBytes returns a human-readable byte size string, used for image payloads.
// Examples: "0 B", "512 B", "1.5 KB", "3.2 MB".
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		return "0 B"
	}
	if bytes < 1024 {
		return fmt.Sprintf("%d B", bytes)
	}

	size := float64(bytes) / 1024
	unit := 0
	for size >= 1024 && unit < len(byteUnits)-1 {
		size /= 1024
		unit++
	}

	return fmt.Sprintf("%.1f %s", size, byteUnits[unit])
}
