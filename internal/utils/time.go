package utils

import (
	"fmt"
	"time"
)

// DeltaTime formats a duration as a human-readable string.
// Format: "Xh Ym Zs" or "Ym Zs" or "Zs" depending on duration.
func DeltaTime(d time.Duration) string {
	totalSeconds := int(d.Seconds())

	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
