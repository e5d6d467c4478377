package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	API           APIConfig          `yaml:"api"`
	Search        SearchConfig       `yaml:"search"`
	Monitoring    MonitoringConfig   `yaml:"monitoring"`
	Notifications NotificationConfig `yaml:"notifications"`
	Storage       StorageConfig      `yaml:"storage"`
	Export        ExportConfig       `yaml:"export"`
	Log           LogConfig          `yaml:"log"`
}

type APIConfig struct {
	// URL of the listings data endpoint. A {build} placeholder is replaced
	// with the build ID discovered during warm-up.
	URL            string   `yaml:"url"`
	SiteBase       string   `yaml:"site_base"`
	SectionPath    string   `yaml:"section_path"`
	DataPaths      []string `yaml:"data_paths"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Warmup         bool     `yaml:"warmup"`
}

func (c *APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type SearchConfig struct {
	MaxPrice int     `yaml:"max_price"`
	MinRooms float64 `yaml:"min_rooms"`
	MaxRooms float64 `yaml:"max_rooms"`
	TopArea  int     `yaml:"top_area"`
	Area     int     `yaml:"area"`
}

type IntervalRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

type DelayRange struct {
	MinSeconds float64 `yaml:"min_seconds"`
	MaxSeconds float64 `yaml:"max_seconds"`
}

type MonitoringConfig struct {
	Cron                 string        `yaml:"cron"`
	CheckIntervalMinutes IntervalRange `yaml:"check_interval_minutes"`
	RemovedWindowHours   int           `yaml:"removed_window_hours"`
	StaleAfterDays       int           `yaml:"stale_after_days"`
	PurgeAfterDays       int           `yaml:"purge_after_days"`
	RandomUserAgents     bool          `yaml:"random_user_agents"`
	PreRequestDelay      DelayRange    `yaml:"pre_request_delay"`
}

func (c *MonitoringConfig) RemovedWindow() time.Duration {
	return time.Duration(c.RemovedWindowHours) * time.Hour
}

func (c *MonitoringConfig) StaleWindow() time.Duration {
	return time.Duration(c.StaleAfterDays) * 24 * time.Hour
}

func (c *MonitoringConfig) PurgeWindow() time.Duration {
	return time.Duration(c.PurgeAfterDays) * 24 * time.Hour
}

type NotificationConfig struct {
	Enabled           bool     `yaml:"enabled"`
	SenderEmail       string   `yaml:"sender_email"`
	SenderPassword    string   `yaml:"sender_password"`
	Recipients        []string `yaml:"recipients"`
	SMTPHost          string   `yaml:"smtp_host"`
	SMTPPort          int      `yaml:"smtp_port"`
	MinRemovedToAlert int      `yaml:"min_removed_for_alert"`
	MaxItemsPerDigest int      `yaml:"max_items_per_digest"`
}

type StorageConfig struct {
	Driver      string `yaml:"driver"` // sqlite or postgres
	DBPath      string `yaml:"db_path"`
	PostgresURL string `yaml:"postgres_url"`
}

type ExportConfig struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

func (c *ExportConfig) S3Enabled() bool {
	return c.Bucket != ""
}

type LogConfig struct {
	Path      string `yaml:"path"`
	MaxSizeMB int    `yaml:"max_size_mb"`
}

// Load builds the configuration once at process start: file defaults first,
// then environment overrides. Business logic never reads the environment
// directly.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		API: APIConfig{
			SiteBase:       "https://www.yad2.co.il",
			SectionPath:    "/realestate/rent",
			URL:            "https://www.yad2.co.il/realestate/_next/data/{build}/rent.json",
			DataPaths:      []string{"pageProps.feed.private", "pageProps.feed.promoted"},
			TimeoutSeconds: 30,
			Warmup:         true,
		},
		Search: SearchConfig{
			MaxPrice: 5000,
			MinRooms: 2.5,
			MaxRooms: 5,
			TopArea:  25,
			Area:     5,
		},
		Monitoring: MonitoringConfig{
			CheckIntervalMinutes: IntervalRange{Min: 7, Max: 13},
			RemovedWindowHours:   24,
			StaleAfterDays:       14,
			PurgeAfterDays:       30,
			RandomUserAgents:     true,
			PreRequestDelay:      DelayRange{MinSeconds: 2, MaxSeconds: 8},
		},
		Notifications: NotificationConfig{
			Enabled:           true,
			SMTPPort:          587,
			MinRemovedToAlert: 5,
			MaxItemsPerDigest: 10,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			DBPath: "rentwatch.db",
		},
		Log: LogConfig{
			Path:      "rentwatch.log",
			MaxSizeMB: 2,
		},
	}
}

func (c *Config) applyEnv() {
	c.API.URL = getEnv("API_URL", c.API.URL)
	c.Storage.DBPath = getEnv("DB_PATH", c.Storage.DBPath)
	c.Storage.PostgresURL = getEnv("DATABASE_URL", c.Storage.PostgresURL)
	c.Storage.Driver = getEnv("STORAGE_DRIVER", c.Storage.Driver)

	c.Notifications.SenderEmail = getEnv("SENDER_EMAIL", c.Notifications.SenderEmail)
	c.Notifications.SenderPassword = getEnv("SENDER_PASSWORD", c.Notifications.SenderPassword)
	if v := os.Getenv("RECIPIENTS"); v != "" {
		c.Notifications.Recipients = splitRecipients(v)
	}

	c.Monitoring.Cron = getEnv("CHECK_CRON", c.Monitoring.Cron)
	c.Monitoring.CheckIntervalMinutes.Min = getEnvInt("CHECK_INTERVAL_MIN", c.Monitoring.CheckIntervalMinutes.Min)
	c.Monitoring.CheckIntervalMinutes.Max = getEnvInt("CHECK_INTERVAL_MAX", c.Monitoring.CheckIntervalMinutes.Max)

	c.Export.Bucket = getEnv("EXPORT_S3_BUCKET", c.Export.Bucket)
	c.Export.Region = getEnv("EXPORT_S3_REGION", c.Export.Region)
	c.Export.Endpoint = getEnv("EXPORT_S3_ENDPOINT", c.Export.Endpoint)
	c.Export.AccessKeyID = getEnv("EXPORT_S3_ACCESS_KEY_ID", c.Export.AccessKeyID)
	c.Export.SecretAccessKey = getEnv("EXPORT_S3_SECRET_ACCESS_KEY", c.Export.SecretAccessKey)
}

func (c *Config) validate() error {
	if c.API.URL == "" {
		return fmt.Errorf("api.url is required")
	}
	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("storage.db_path is required for the sqlite driver")
		}
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("storage.postgres_url (or DATABASE_URL) is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver: %s", c.Storage.Driver)
	}
	if c.Notifications.Enabled {
		if c.Notifications.SenderEmail == "" || c.Notifications.SenderPassword == "" {
			return fmt.Errorf("notifications enabled but sender credentials missing (SENDER_EMAIL / SENDER_PASSWORD)")
		}
		if len(c.Notifications.Recipients) == 0 {
			return fmt.Errorf("notifications enabled but no recipients configured (RECIPIENTS)")
		}
	}
	if min, max := c.Monitoring.CheckIntervalMinutes.Min, c.Monitoring.CheckIntervalMinutes.Max; min <= 0 || max < min {
		return fmt.Errorf("invalid check interval range: %d-%d", min, max)
	}
	return nil
}

func splitRecipients(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
