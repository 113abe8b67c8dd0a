package analytics

import (
	"strconv"
	"time"
)

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339Nano)
}

func formatFlag(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// formatFloat keeps output stable across runs: no exponent, shortest exact digits.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatOptionalFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}
