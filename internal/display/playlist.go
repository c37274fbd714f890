package display

import (
	"sort"
	"time"
)

// Per-type play durations used when an item has no stored duration.
const (
	DefaultImageDuration = 10 * time.Second
	DefaultVideoDuration = 30 * time.Second

	// MaxDurationSeconds caps a single item's play time at one day.
	MaxDurationSeconds = 86400
)

// PlayDuration returns how long item stays live: its stored duration when
// positive, otherwise the default for its type. Stored durations above
// MaxDurationSeconds are capped.
func PlayDuration(item MediaEntry) time.Duration {
	if item.DurationSeconds != nil && *item.DurationSeconds > 0 {
		return time.Duration(min(*item.DurationSeconds, MaxDurationSeconds) * float64(time.Second))
	}
	if item.FileType == FileTypeVideo {
		return DefaultVideoDuration
	}
	return DefaultImageDuration
}

// SortCatalog orders items in place: items with a display order first
// (ascending), then the unordered ones, each group newest approval first.
func SortCatalog(items []MediaEntry) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch {
		case a.DisplayOrder != nil && b.DisplayOrder == nil:
			return true
		case a.DisplayOrder == nil && b.DisplayOrder != nil:
			return false
		case a.DisplayOrder != nil && *a.DisplayOrder != *b.DisplayOrder:
			return *a.DisplayOrder < *b.DisplayOrder
		}
		if !a.ApprovedAt.Equal(b.ApprovedAt) {
			return a.ApprovedAt.After(b.ApprovedAt)
		}
		return a.ID < b.ID
	})
}

// clampIndex forces index into [0, n-1]; with n == 0 it returns 0.
func clampIndex(index, n int) int {
	if n <= 0 || index < 0 {
		return 0
	}
	if index >= n {
		return n - 1
	}
	return index
}

// indexOf returns the position of id in items, or -1.
func indexOf(items []MediaEntry, id MediaID) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}
