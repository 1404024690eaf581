package entities

import "time"

// PriceHistoryEntry is one validity range of a creator's review pricing. The
// history is append-only: changing the range closes the open entry and
// appends a new one, so at most one entry per creator has no EffectiveTo.
type PriceHistoryEntry struct {
	EntryID       string
	CreatorID     string
	PriceMin      int64
	PriceMax      int64
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
	ChangedBy     string
	Reason        string
	CreatedAt     time.Time
}

func (e PriceHistoryEntry) IsOpen() bool {
	return e.EffectiveTo == nil
}

// SameRange reports whether the entry carries the same min/max bounds.
func (e PriceHistoryEntry) SameRange(min, max int64) bool {
	return e.PriceMin == min && e.PriceMax == max
}

// CoversAt reports whether the range was in force at the given instant.
// Ranges are half-open: [EffectiveFrom, EffectiveTo).
func (e PriceHistoryEntry) CoversAt(at time.Time) bool {
	if at.Before(e.EffectiveFrom) {
		return false
	}
	return e.EffectiveTo == nil || at.Before(*e.EffectiveTo)
}
