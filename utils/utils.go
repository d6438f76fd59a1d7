package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// GetDefaultReportPath returns the default path for the report database, next to the executable
func GetDefaultReportPath() string {
	exePath, err := os.Executable()
	if err != nil {
		return "dupfinder.db"
	}
	return filepath.Join(filepath.Dir(exePath), "dupfinder.db")
}

// ParseThreshold parses and validates a similarity threshold in (0,1]
func ParseThreshold(thresholdStr string) (float64, error) {
	parsed, err := strconv.ParseFloat(thresholdStr, 64)
	if err != nil || parsed <= 0 || parsed > 1 {
		return 0, fmt.Errorf("invalid threshold value '%s', expected a number in (0,1]", thresholdStr)
	}
	return parsed, nil
}

// FormatElapsed renders a duration as "N ms", "N.N sec" or "N.N min"
func FormatElapsed(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%d ms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1f sec", d.Seconds())
	default:
		return fmt.Sprintf("%.1f min", d.Minutes())
	}
}
