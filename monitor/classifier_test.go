package monitor

import (
	"testing"

	"rentwatch/models"
)

func TestBuildReport_SeparatesDropsAndRises(t *testing.T) {
	stats := &models.BatchStats{
		PriceChanges: []models.PriceChange{
			{PropertyID: "down", OldPrice: 3000, NewPrice: 2800},
			{PropertyID: "up", OldPrice: 4000, NewPrice: 4200},
		},
	}

	report := BuildReport(stats, nil, nil)
	if len(report.PriceDrops) != 1 || report.PriceDrops[0].PropertyID != "down" {
		t.Fatalf("unexpected drops %v", report.PriceDrops)
	}
	if len(report.PriceRises) != 1 || report.PriceRises[0].PropertyID != "up" {
		t.Fatalf("unexpected rises %v", report.PriceRises)
	}
}

func TestBuildReport_PriceChangedExcludedFromNew(t *testing.T) {
	stats := &models.BatchStats{
		PriceChanges: []models.PriceChange{
			{PropertyID: "x1", OldPrice: 3000, NewPrice: 2800},
		},
	}
	unnotified := []models.Property{
		{ID: "x1", Address: "הרצל 10, חיפה"},
		{ID: "x2", Address: "העצמאות 5, חיפה"},
	}

	report := BuildReport(stats, unnotified, nil)
	if len(report.New) != 1 || report.New[0].ID != "x2" {
		t.Fatalf("repriced listing leaked into New: %v", report.New)
	}
	if len(report.PriceDrops) != 1 {
		t.Fatalf("expected the reprice as a drop, got %v", report.PriceDrops)
	}
}

func TestBuildReport_CarriesRemoved(t *testing.T) {
	missing := []models.Property{{ID: "gone", Address: "הרצל 1, חיפה"}}
	report := BuildReport(&models.BatchStats{}, nil, missing)
	if len(report.Removed) != 1 || report.Removed[0].ID != "gone" {
		t.Fatalf("unexpected removed list %v", report.Removed)
	}
}

func TestBuildReport_EmptyCycle(t *testing.T) {
	report := BuildReport(&models.BatchStats{Total: 40, Updated: 40}, nil, nil)
	if !report.Empty() {
		t.Fatal("an all-updates cycle with no changes must be empty")
	}
}
