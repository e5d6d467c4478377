package models

import "time"

// PriceChange is one append-only price transition for a known property.
// A row exists only when the property already had a different, non-zero
// stored price.
type PriceChange struct {
	ID         int64     `json:"id" db:"id"`
	PropertyID string    `json:"property_id" db:"property_id"`
	Address    string    `json:"address" db:"address"`
	OldPrice   int       `json:"old_price" db:"old_price"`
	NewPrice   int       `json:"new_price" db:"new_price"`
	ChangedAt  time.Time `json:"changed_at" db:"changed_at"`
}

// Diff is new minus old; negative for a drop.
func (c *PriceChange) Diff() int {
	return c.NewPrice - c.OldPrice
}

// BatchStats summarizes one UpsertBatch call.
type BatchStats struct {
	Total        int
	New          int
	Updated      int
	NewIDs       []string
	PriceChanges []PriceChange
}

// ChangeReport is the classifier's output for one cycle. New excludes
// properties that price-changed this cycle; those are covered by the
// drop/rise lists instead.
type ChangeReport struct {
	New        []Property
	PriceDrops []PriceChange
	PriceRises []PriceChange
	Removed    []Property
}

// Empty reports whether the cycle produced nothing worth notifying about.
func (r *ChangeReport) Empty() bool {
	return len(r.New) == 0 && len(r.PriceDrops) == 0 && len(r.Removed) == 0
}
