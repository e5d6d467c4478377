package monitor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"rentwatch/config"
	"rentwatch/httputil"
	"rentwatch/models"
	"rentwatch/notify"
	"rentwatch/scraper"
	"rentwatch/storage"
)

type captureNotifier struct {
	reports []*models.ChangeReport
	fail    bool
}

func (n *captureNotifier) Notify(ctx context.Context, report *models.ChangeReport) (*notify.DeliveryResult, error) {
	n.reports = append(n.reports, report)
	if n.fail {
		return &notify.DeliveryResult{}, fmt.Errorf("smtp down")
	}
	result := &notify.DeliveryResult{DigestsSent: 1}
	for _, p := range report.New {
		result.NotifiedIDs = append(result.NotifiedIDs, p.ID)
	}
	for _, c := range report.PriceDrops {
		result.NotifiedIDs = append(result.NotifiedIDs, c.PropertyID)
	}
	return result, nil
}

func feedDoc(listings ...string) string {
	out := "["
	for i, l := range listings {
		if i > 0 {
			out += ","
		}
		out += l
	}
	out += "]"
	return `{"pageProps":{"feed":{"private":` + out + `}}}`
}

func listing(token string, price int) string {
	return fmt.Sprintf(`{
		"token": %q,
		"price": %d,
		"additionalDetails": {"roomsCount": 3},
		"address": {
			"street": {"text": "הרצל"},
			"house": {"number": "10"},
			"city": {"text": "חיפה"}
		}
	}`, token, price)
}

func newTestMonitor(t *testing.T, srvURL string, notifier Notifier) (*Monitor, storage.Store) {
	t.Helper()

	cfg := &config.Config{
		API: config.APIConfig{
			URL:            srvURL,
			SiteBase:       "https://example.invalid",
			SectionPath:    "/realestate/rent",
			DataPaths:      []string{"pageProps.feed.private"},
			TimeoutSeconds: 5,
		},
		Monitoring: config.MonitoringConfig{
			RemovedWindowHours: 24,
			StaleAfterDays:     14,
			PurgeAfterDays:     30,
		},
	}

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	fetcher := scraper.NewFetcher(cfg, httputil.NewScrapingClient(5*time.Second))
	return New(cfg, store, fetcher, notifier), store
}

func TestRunCycle_EndToEnd(t *testing.T) {
	var phase atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch phase.Load() {
		case 0:
			fmt.Fprint(w, feedDoc(listing("x1", 3000), listing("x2", 4500)))
		default:
			fmt.Fprint(w, feedDoc(listing("x1", 2800), listing("x2", 4500)))
		}
	}))
	defer srv.Close()

	notifier := &captureNotifier{}
	m, store := newTestMonitor(t, srv.URL, notifier)
	ctx := context.Background()

	if err := m.RunCycle(ctx); err != nil {
		t.Fatalf("first cycle failed: %v", err)
	}
	if len(notifier.reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(notifier.reports))
	}
	if got := len(notifier.reports[0].New); got != 2 {
		t.Fatalf("expected 2 new listings reported, got %d", got)
	}

	pending, err := store.NewUnnotified(ctx)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("delivered listings must be marked, %d still pending", len(pending))
	}

	// Second cycle: same inventory, x1 dropped to 2800.
	phase.Store(1)
	if err := m.RunCycle(ctx); err != nil {
		t.Fatalf("second cycle failed: %v", err)
	}
	if len(notifier.reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(notifier.reports))
	}

	second := notifier.reports[1]
	if len(second.New) != 0 {
		t.Fatalf("no listing is new in cycle 2, got %v", second.New)
	}
	if len(second.PriceDrops) != 1 {
		t.Fatalf("expected 1 price drop, got %d", len(second.PriceDrops))
	}
	if d := second.PriceDrops[0]; d.OldPrice != 3000 || d.NewPrice != 2800 {
		t.Fatalf("unexpected drop %+v", d)
	}
}

func TestRunCycle_PriceRiseNeverReannounced(t *testing.T) {
	var phase atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch phase.Load() {
		case 0:
			fmt.Fprint(w, feedDoc(listing("x1", 3000)))
		default:
			fmt.Fprint(w, feedDoc(listing("x1", 3500)))
		}
	}))
	defer srv.Close()

	notifier := &captureNotifier{}
	m, store := newTestMonitor(t, srv.URL, notifier)
	ctx := context.Background()

	// Cycle 1: x1 appears, is reported and marked notified.
	if err := m.RunCycle(ctx); err != nil {
		t.Fatalf("first cycle failed: %v", err)
	}
	if len(notifier.reports) != 1 || len(notifier.reports[0].New) != 1 {
		t.Fatalf("expected one new-listing report, got %v", notifier.reports)
	}

	// Cycle 2: price rises to 3500; rises alone do not alert.
	phase.Store(1)
	if err := m.RunCycle(ctx); err != nil {
		t.Fatalf("second cycle failed: %v", err)
	}
	if len(notifier.reports) != 1 {
		t.Fatalf("a bare rise must not produce a report, got %d", len(notifier.reports))
	}

	// Cycle 3: unchanged inventory; the risen listing must not come back
	// as new.
	if err := m.RunCycle(ctx); err != nil {
		t.Fatalf("third cycle failed: %v", err)
	}
	if len(notifier.reports) != 1 {
		last := notifier.reports[len(notifier.reports)-1]
		t.Fatalf("risen listing re-announced: %+v", last)
	}

	pending, err := store.NewUnnotified(ctx)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("risen listing left pending: %v", pending)
	}
}

func TestRunCycle_QuietCycleSendsNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, feedDoc(listing("x1", 3000)))
	}))
	defer srv.Close()

	notifier := &captureNotifier{}
	m, _ := newTestMonitor(t, srv.URL, notifier)
	ctx := context.Background()

	if err := m.RunCycle(ctx); err != nil {
		t.Fatalf("first cycle failed: %v", err)
	}
	if err := m.RunCycle(ctx); err != nil {
		t.Fatalf("second cycle failed: %v", err)
	}
	if len(notifier.reports) != 1 {
		t.Fatalf("a no-change cycle must stay silent, got %d reports", len(notifier.reports))
	}
}

func TestRunCycle_FailedDeliveryRetriesNextCycle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, feedDoc(listing("x1", 3000)))
	}))
	defer srv.Close()

	notifier := &captureNotifier{fail: true}
	m, store := newTestMonitor(t, srv.URL, notifier)
	ctx := context.Background()

	if err := m.RunCycle(ctx); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	pending, err := store.NewUnnotified(ctx)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("undelivered listing must stay pending, got %d", len(pending))
	}

	// Delivery recovers; the same listing is offered again.
	notifier.fail = false
	if err := m.RunCycle(ctx); err != nil {
		t.Fatalf("retry cycle failed: %v", err)
	}
	last := notifier.reports[len(notifier.reports)-1]
	if len(last.New) != 1 || last.New[0].ID != "x1" {
		t.Fatalf("expected x1 re-offered, got %v", last.New)
	}

	pending, _ = store.NewUnnotified(ctx)
	if len(pending) != 0 {
		t.Fatalf("expected feed drained after recovery, got %d", len(pending))
	}
}

func TestRunCycle_FetchFailureRecordsRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	notifier := &captureNotifier{}
	m, store := newTestMonitor(t, srv.URL, notifier)
	ctx := context.Background()

	if err := m.RunCycle(ctx); err == nil {
		t.Fatal("expected cycle error on blocked fetch")
	}
	if len(notifier.reports) != 0 {
		t.Fatal("a failed fetch must not notify")
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.RunsToday != 1 {
		t.Fatalf("failed run must still be recorded, got %d runs", stats.RunsToday)
	}
	if stats.SuccessRate != 0 {
		t.Fatalf("expected 0%% success, got %g", stats.SuccessRate)
	}
}
