package api

import (
	"sort"
	"time"
)

// SortRunsNewestFirst orders runs by CreatedAt descending, breaking ties by ID.
func SortRunsNewestFirst(list []Run) []Run {
	if len(list) == 0 {
		return nil
	}
	sorted := make([]Run, len(list))
	copy(sorted, list)
	sort.Slice(sorted, func(i, j int) bool {
		ti := parseRunTime(sorted[i].CreatedAt)
		tj := parseRunTime(sorted[j].CreatedAt)
		if ti.Equal(tj) {
			return sorted[i].ID < sorted[j].ID
		}
		return ti.After(tj)
	})
	return sorted
}

func parseRunTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}

// ShortID trims a run UUID to its first block for table output.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
