// Package utils holds small formatting helpers shared by the storage packages.
package utils

import "fmt"

// ByteCountSI returns a string representation of a byte count b,
// by formatting it as a SI value.
func ByteCountSI(b uint64) string {
	const unit = 1000
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "kMGTPE"[exp])
}
