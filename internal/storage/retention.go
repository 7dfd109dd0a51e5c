package storage

import (
	"time"
)

// DefaultRetentionDays is how long per-day records are kept.
const DefaultRetentionDays = 90

// RetentionCutoff returns the oldest date key (YYYY-MM-DD) that survives pruning.
func RetentionCutoff(now time.Time, days int) string {
	if days <= 0 {
		days = DefaultRetentionDays
	}
	return now.AddDate(0, 0, -days).Format("2006-01-02")
}

// PruneDateKeyed removes entries whose date key sorts before cutoff and
// returns how many were removed. Keys that are not dates are left alone.
func PruneDateKeyed[V any](records map[string]V, cutoff string) int {
	removed := 0
	for key := range records {
		if _, err := time.Parse("2006-01-02", key); err != nil {
			continue
		}
		if key < cutoff {
			delete(records, key)
			removed++
		}
	}
	return removed
}
