package monitor

import (
	"context"
	"fmt"
	"strings"

	"rentwatch/storage"
)

// FormatStats renders the -stats report: store totals plus the most
// recently seen listings.
func FormatStats(ctx context.Context, store storage.Store) (string, error) {
	stats, err := store.Stats(ctx)
	if err != nil {
		return "", fmt.Errorf("load stats: %w", err)
	}

	var b strings.Builder
	b.WriteString("=== Monitoring Stats ===\n")
	fmt.Fprintf(&b, "Properties tracked:  %d (%d active)\n", stats.TotalProperties, stats.ActiveProperties)
	fmt.Fprintf(&b, "New in last 24h:     %d\n", stats.NewToday)
	fmt.Fprintf(&b, "Runs in last 24h:    %d (%.0f%% success, %.1f listings/run)\n",
		stats.RunsToday, stats.SuccessRate, stats.AvgPerRun)

	recent, err := store.RecentProperties(ctx, 5)
	if err != nil {
		return "", fmt.Errorf("load recent: %w", err)
	}
	if len(recent) > 0 {
		b.WriteString("\nMost recently seen:\n")
		for _, p := range recent {
			fmt.Fprintf(&b, "  ₪%-6d %s\n", p.Price, p.Address)
		}
	}
	return b.String(), nil
}
