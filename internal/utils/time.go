package utils

import (
	"time"
)

// DayKey truncates a timestamp to its UTC calendar day, the bucket
// used by attendance analytics.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
