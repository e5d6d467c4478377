package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("defaults enable notifications, so missing credentials must fail validation")
	}

	t.Setenv("SENDER_EMAIL", "watch@example.com")
	t.Setenv("SENDER_PASSWORD", "app-password")
	t.Setenv("RECIPIENTS", "a@example.com")

	cfg, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Storage.Driver != "sqlite" || cfg.Storage.DBPath != "rentwatch.db" {
		t.Fatalf("unexpected storage defaults %+v", cfg.Storage)
	}
	if cfg.Monitoring.CheckIntervalMinutes.Min != 7 || cfg.Monitoring.CheckIntervalMinutes.Max != 13 {
		t.Fatalf("unexpected interval defaults %+v", cfg.Monitoring.CheckIntervalMinutes)
	}
	if cfg.Notifications.MinRemovedToAlert != 5 {
		t.Fatalf("unexpected removed threshold %d", cfg.Notifications.MinRemovedToAlert)
	}
	if len(cfg.API.DataPaths) != 2 || cfg.API.DataPaths[0] != "pageProps.feed.private" {
		t.Fatalf("private listings must come before promoted: %v", cfg.API.DataPaths)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
search:
  max_price: 6500
  min_rooms: 3
monitoring:
  check_interval_minutes:
    min: 10
    max: 20
notifications:
  enabled: false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Search.MaxPrice != 6500 || cfg.Search.MinRooms != 3 {
		t.Fatalf("file values not applied: %+v", cfg.Search)
	}
	if cfg.Monitoring.CheckIntervalMinutes.Min != 10 {
		t.Fatalf("interval not applied: %+v", cfg.Monitoring.CheckIntervalMinutes)
	}
	if cfg.Notifications.Enabled {
		t.Fatal("notifications should be disabled by file")
	}
	// Untouched keys keep their defaults.
	if cfg.API.SiteBase != "https://www.yad2.co.il" {
		t.Fatalf("default lost: %s", cfg.API.SiteBase)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
notifications:
  enabled: false
storage:
  db_path: from-file.db
`)
	t.Setenv("DB_PATH", "from-env.db")
	t.Setenv("RECIPIENTS", "a@example.com, b@example.com ,")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Storage.DBPath != "from-env.db" {
		t.Fatalf("env must win over file, got %s", cfg.Storage.DBPath)
	}
	if len(cfg.Notifications.Recipients) != 2 || cfg.Notifications.Recipients[1] != "b@example.com" {
		t.Fatalf("recipient list not parsed: %v", cfg.Notifications.Recipients)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := map[string]string{
		"postgres without url": `
notifications:
  enabled: false
storage:
  driver: postgres
`,
		"unknown driver": `
notifications:
  enabled: false
storage:
  driver: redis
`,
		"inverted interval": `
notifications:
  enabled: false
monitoring:
  check_interval_minutes:
    min: 20
    max: 5
`,
	}

	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestMonitoringWindows(t *testing.T) {
	m := MonitoringConfig{RemovedWindowHours: 24, StaleAfterDays: 14, PurgeAfterDays: 30}
	if m.RemovedWindow().Hours() != 24 {
		t.Fatalf("unexpected removed window %s", m.RemovedWindow())
	}
	if m.StaleWindow().Hours() != 14*24 {
		t.Fatalf("unexpected stale window %s", m.StaleWindow())
	}
	if m.PurgeWindow().Hours() != 30*24 {
		t.Fatalf("unexpected purge window %s", m.PurgeWindow())
	}
}
