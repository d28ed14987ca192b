// Package utils provides small formatting helpers shared across the ACP
// client and CLI.
package utils

import "fmt"

// units for file size formatting
var sizeUnits = []string{"B", "kB", "MB", "GB", "TB", "PB"}

// FormatFileSize converts a size in bytes to a human-readable string, used
// to summarize firmware image sizes and transfer totals.
func FormatFileSize(size int64) string {
	if size == 0 {
		return "0 B"
	}

	floatSize := float64(size)
	unitIndex := 0

	for unitIndex < len(sizeUnits)-1 && floatSize >= 1024 {
		floatSize /= 1024
		unitIndex++
	}

	return fmt.Sprintf("%4.2f %s", floatSize, sizeUnits[unitIndex])
}
