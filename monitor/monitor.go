package monitor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"rentwatch/config"
	"rentwatch/models"
	"rentwatch/notify"
	"rentwatch/scraper"
	"rentwatch/storage"
)

// Notifier is the delivery seam; the monitor only needs to know which
// identities ended up covered by a delivered digest.
type Notifier interface {
	Notify(ctx context.Context, report *models.ChangeReport) (*notify.DeliveryResult, error)
}

// Monitor runs the fetch, diff and notify pipeline. Cycles are strictly
// sequential; nothing here is safe for concurrent RunCycle calls.
type Monitor struct {
	cfg        *config.Config
	store      storage.Store
	fetcher    *scraper.Fetcher
	normalizer *scraper.Normalizer
	notifier   Notifier
}

func New(cfg *config.Config, store storage.Store, fetcher *scraper.Fetcher, notifier Notifier) *Monitor {
	return &Monitor{
		cfg:        cfg,
		store:      store,
		fetcher:    fetcher,
		normalizer: scraper.NewNormalizer(cfg.API.SiteBase),
		notifier:   notifier,
	}
}

// RunCycle executes one full monitoring pass. State changes land before
// notification; a digest that fails to send is retried next cycle via
// the unnotified feed, never lost.
func (m *Monitor) RunCycle(ctx context.Context) error {
	runID := uuid.NewString()
	started := time.Now().UTC()
	log.Printf("Cycle %s starting", runID[:8])

	if swept, err := m.store.SweepStale(ctx, m.cfg.Monitoring.StaleWindow()); err != nil {
		log.Printf("Stale sweep failed: %v", err)
	} else if swept > 0 {
		log.Printf("Marked %d stale properties inactive", swept)
	}

	doc, fp, err := m.fetcher.Fetch(ctx)
	if err != nil {
		m.recordRun(ctx, &models.MonitoringRun{
			RunID:        runID,
			RunAt:        started,
			Success:      false,
			ErrorMessage: err.Error(),
		})
		return fmt.Errorf("fetch: %w", err)
	}

	listings := scraper.Extract(doc, m.cfg.API.DataPaths)
	props := m.normalizer.NormalizeBatch(listings)
	log.Printf("Cycle %s: %d listings, %d usable (fingerprint %s)",
		runID[:8], len(listings), len(props), fp)

	now := time.Now().UTC()
	stats, err := m.store.UpsertBatch(ctx, props, now)
	if err != nil {
		m.recordRun(ctx, &models.MonitoringRun{
			RunID:               runID,
			RunAt:               started,
			PropertiesFound:     len(props),
			Success:             false,
			ErrorMessage:        err.Error(),
			ResponseFingerprint: fp,
		})
		return fmt.Errorf("upsert batch: %w", err)
	}
	log.Printf("Cycle %s: %d new, %d updated, %d price changes",
		runID[:8], stats.New, stats.Updated, len(stats.PriceChanges))

	currentIDs := make(map[string]struct{}, len(props))
	for _, p := range props {
		currentIDs[p.ID] = struct{}{}
	}

	missing, err := m.store.ClassifyMissing(ctx, currentIDs, m.cfg.Monitoring.RemovedWindow())
	if err != nil {
		log.Printf("Missing classification failed: %v", err)
		missing = nil
	}
	if len(missing) > 0 {
		log.Printf("Cycle %s: %d listings disappeared", runID[:8], len(missing))
	}

	unnotified, err := m.store.NewUnnotified(ctx)
	if err != nil {
		return fmt.Errorf("load unnotified: %w", err)
	}

	report := BuildReport(stats, unnotified, missing)
	if !report.Empty() {
		result, err := m.notifier.Notify(ctx, report)
		if err != nil {
			log.Printf("Notification failed, will retry next cycle: %v", err)
		}
		if result != nil && len(result.NotifiedIDs) > 0 {
			if err := m.store.MarkNotified(ctx, result.NotifiedIDs); err != nil {
				// Worst case is a duplicate alert next cycle.
				log.Printf("Failed to mark notified: %v", err)
			}
		}
	}

	m.recordRun(ctx, &models.MonitoringRun{
		RunID:               runID,
		RunAt:               started,
		PropertiesFound:     len(props),
		NewCount:            stats.New,
		Success:             true,
		ResponseFingerprint: fp,
	})

	log.Printf("Cycle %s done in %s", runID[:8], time.Since(started).Round(time.Millisecond))
	return nil
}

// Purge drops long-inactive rows per the retention window.
func (m *Monitor) Purge(ctx context.Context) {
	purged, err := m.store.PurgeInactive(ctx, m.cfg.Monitoring.PurgeWindow())
	if err != nil {
		log.Printf("Retention purge failed: %v", err)
		return
	}
	if purged > 0 {
		log.Printf("Purged %d long-inactive properties", purged)
	}
}

func (m *Monitor) recordRun(ctx context.Context, run *models.MonitoringRun) {
	if err := m.store.RecordRun(ctx, run); err != nil {
		log.Printf("Failed to record run %s: %v", run.RunID[:8], err)
	}
}
