package models

import "time"

// MonitoringRun is one audit row per fetch attempt, success or failure.
// Used for operational statistics only, never for correctness.
type MonitoringRun struct {
	ID                  int64     `json:"id" db:"id"`
	RunID               string    `json:"run_id" db:"run_id"`
	RunAt               time.Time `json:"run_at" db:"run_at"`
	PropertiesFound     int       `json:"properties_found" db:"properties_found"`
	NewCount            int       `json:"new_count" db:"new_count"`
	Success             bool      `json:"success" db:"success"`
	ErrorMessage        string    `json:"error_message" db:"error_message"`
	ResponseFingerprint string    `json:"response_fingerprint" db:"response_fingerprint"`
}

// StoreStats is the read-only summary for the stats command.
type StoreStats struct {
	TotalProperties  int     `json:"total_properties"`
	ActiveProperties int     `json:"active_properties"`
	NewToday         int     `json:"new_today"`
	RunsToday        int     `json:"runs_today"`
	AvgPerRun        float64 `json:"avg_properties_per_run"`
	SuccessRate      float64 `json:"success_rate"`
}
