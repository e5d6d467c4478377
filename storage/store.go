package storage

import (
	"context"
	"fmt"
	"time"

	"rentwatch/config"
	"rentwatch/models"
)

// Store owns all persisted property, price-change and run state. Every
// logical operation runs as a single transaction: a crash mid-batch can
// never leave a price-change row without the matching property update.
type Store interface {
	// UpsertBatch inserts unseen properties and updates known ones,
	// appending a PriceChange whenever a known property arrives with a
	// different, non-zero prior price. The notified flag is reset only on
	// a price drop so the property re-enters the notification feed; a
	// rise is recorded without re-notifying.
	UpsertBatch(ctx context.Context, props []*models.Property, now time.Time) (*models.BatchStats, error)

	// ClassifyMissing returns active properties seen within the window but
	// absent from the current batch: "disappeared this cycle" candidates.
	// The window here is short (hours), unlike the staleness sweep.
	ClassifyMissing(ctx context.Context, currentIDs map[string]struct{}, window time.Duration) ([]models.Property, error)

	// SweepStale marks properties unseen for the window as inactive.
	// Rows are never deleted here; see PurgeInactive.
	SweepStale(ctx context.Context, window time.Duration) (int64, error)

	// PurgeInactive hard-deletes properties unseen for the (long) window,
	// along with their price-change rows. Optional retention, off the
	// default path.
	PurgeInactive(ctx context.Context, window time.Duration) (int64, error)

	// NewUnnotified is the sole feed for "what to notify about":
	// properties with is_notified = false, most recently first-seen first.
	NewUnnotified(ctx context.Context) ([]models.Property, error)

	// MarkNotified flips is_notified for exactly the given identities.
	// Called only after a delivery attempt succeeded for at least one
	// recipient (at-least-once semantics).
	MarkNotified(ctx context.Context, ids []string) error

	// RecordRun appends one audit row. Callers treat failures here as
	// best-effort; a broken audit log never fails a cycle.
	RecordRun(ctx context.Context, run *models.MonitoringRun) error

	Stats(ctx context.Context) (*models.StoreStats, error)
	RecentProperties(ctx context.Context, limit int) ([]models.Property, error)
	ActiveProperties(ctx context.Context) ([]models.Property, error)

	Close() error
}

// Open returns the Store backend selected by configuration.
func Open(ctx context.Context, cfg *config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return NewSQLiteStore(cfg.DBPath)
	case "postgres":
		return NewPostgresStore(ctx, cfg.PostgresURL)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}
