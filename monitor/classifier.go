package monitor

import "rentwatch/models"

// BuildReport assembles the cycle's change report. Properties whose
// price changed this cycle are excluded from the new-listings list;
// the drop/rise lists already cover them and a "new" alert for a
// months-old listing that merely repriced would mislead.
func BuildReport(stats *models.BatchStats, unnotified, missing []models.Property) *models.ChangeReport {
	changed := make(map[string]struct{}, len(stats.PriceChanges))
	for _, c := range stats.PriceChanges {
		changed[c.PropertyID] = struct{}{}
	}

	report := &models.ChangeReport{Removed: missing}

	for _, p := range unnotified {
		if _, ok := changed[p.ID]; ok {
			continue
		}
		report.New = append(report.New, p)
	}

	for _, c := range stats.PriceChanges {
		switch {
		case c.Diff() < 0:
			report.PriceDrops = append(report.PriceDrops, c)
		case c.Diff() > 0:
			report.PriceRises = append(report.PriceRises, c)
		}
	}

	return report
}
