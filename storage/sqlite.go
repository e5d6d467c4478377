package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"rentwatch/models"
)

// SQLiteStore is the default, single-writer store backend.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS properties (
		id TEXT PRIMARY KEY,
		title TEXT,
		price INTEGER,
		address TEXT,
		neighborhood TEXT,
		rooms REAL,
		floor INTEGER,
		size_sqm INTEGER,
		images JSON,
		amenities JSON,
		contact_name TEXT,
		phone TEXT,
		description TEXT,
		url TEXT,
		first_seen DATETIME,
		last_seen DATETIME,
		is_active BOOLEAN DEFAULT TRUE,
		is_notified BOOLEAN DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS price_changes (
		id INTEGER PRIMARY KEY,
		property_id TEXT NOT NULL,
		old_price INTEGER NOT NULL,
		new_price INTEGER NOT NULL,
		changed_at DATETIME,
		FOREIGN KEY (property_id) REFERENCES properties(id)
	);

	CREATE TABLE IF NOT EXISTS monitoring_runs (
		id INTEGER PRIMARY KEY,
		run_id TEXT,
		run_at DATETIME,
		properties_found INTEGER,
		new_count INTEGER,
		success BOOLEAN,
		error_message TEXT,
		response_fingerprint TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_properties_last_seen ON properties(last_seen);
	CREATE INDEX IF NOT EXISTS idx_properties_unnotified ON properties(is_notified) WHERE is_notified = FALSE;
	CREATE INDEX IF NOT EXISTS idx_changes_property ON price_changes(property_id, changed_at);
	CREATE INDEX IF NOT EXISTS idx_runs_time ON monitoring_runs(run_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

const propertyColumns = `id, title, price, address, neighborhood, rooms, floor, size_sqm,
	images, amenities, contact_name, phone, description, url,
	first_seen, last_seen, is_active, is_notified`

func (s *SQLiteStore) UpsertBatch(ctx context.Context, props []*models.Property, now time.Time) (*models.BatchStats, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin upsert batch: %w", err)
	}
	defer tx.Rollback()

	stats := &models.BatchStats{Total: len(props)}

	for _, p := range props {
		var oldPrice int
		err := tx.QueryRowContext(ctx,
			`SELECT price FROM properties WHERE id = ?`, p.ID).Scan(&oldPrice)

		switch {
		case err == sql.ErrNoRows:
			images, amenities := encodeLists(p)
			_, err = tx.ExecContext(ctx, `
				INSERT INTO properties (`+propertyColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, TRUE, FALSE)`,
				p.ID, p.Title, p.Price, p.Address, p.Neighborhood, p.Rooms, p.Floor, p.SizeSqm,
				images, amenities, p.ContactName, p.Phone, p.Description, p.URL,
				now, now)
			if err != nil {
				return nil, fmt.Errorf("insert property %s: %w", p.ID, err)
			}
			stats.New++
			stats.NewIDs = append(stats.NewIDs, p.ID)

		case err != nil:
			return nil, fmt.Errorf("lookup property %s: %w", p.ID, err)

		default:
			priceChanged := oldPrice != 0 && p.Price != oldPrice
			// Only a drop re-enters the notification feed. Rises are
			// recorded but must never resurface the listing as new.
			priceDropped := priceChanged && p.Price < oldPrice
			if priceChanged {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO price_changes (property_id, old_price, new_price, changed_at)
					VALUES (?, ?, ?, ?)`,
					p.ID, oldPrice, p.Price, now); err != nil {
					return nil, fmt.Errorf("insert price change %s: %w", p.ID, err)
				}
				stats.PriceChanges = append(stats.PriceChanges, models.PriceChange{
					PropertyID: p.ID,
					Address:    p.Address,
					OldPrice:   oldPrice,
					NewPrice:   p.Price,
					ChangedAt:  now,
				})
			}

			images, amenities := encodeLists(p)
			_, err = tx.ExecContext(ctx, `
				UPDATE properties SET
					title = ?, price = ?, address = ?, neighborhood = ?, rooms = ?,
					floor = ?, size_sqm = ?, images = ?, amenities = ?,
					contact_name = ?, phone = ?, description = ?, url = ?,
					last_seen = ?, is_active = TRUE,
					is_notified = CASE WHEN ? THEN FALSE ELSE is_notified END
				WHERE id = ?`,
				p.Title, p.Price, p.Address, p.Neighborhood, p.Rooms,
				p.Floor, p.SizeSqm, images, amenities,
				p.ContactName, p.Phone, p.Description, p.URL,
				now, priceDropped, p.ID)
			if err != nil {
				return nil, fmt.Errorf("update property %s: %w", p.ID, err)
			}
			stats.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit upsert batch: %w", err)
	}
	return stats, nil
}

func (s *SQLiteStore) ClassifyMissing(ctx context.Context, currentIDs map[string]struct{}, window time.Duration) ([]models.Property, error) {
	// Timestamps are stored as UTC text; cutoffs must be UTC to compare.
	cutoff := time.Now().UTC().Add(-window)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+propertyColumns+`
		FROM properties
		WHERE is_active = TRUE AND last_seen >= ?
		ORDER BY last_seen DESC`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var missing []models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		if _, seen := currentIDs[p.ID]; !seen {
			missing = append(missing, *p)
		}
	}
	return missing, rows.Err()
}

func (s *SQLiteStore) SweepStale(ctx context.Context, window time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-window)
	result, err := s.db.ExecContext(ctx, `
		UPDATE properties SET is_active = FALSE
		WHERE is_active = TRUE AND last_seen < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *SQLiteStore) PurgeInactive(ctx context.Context, window time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-window)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM price_changes WHERE property_id IN
			(SELECT id FROM properties WHERE last_seen < ?)`, cutoff); err != nil {
		return 0, err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM properties WHERE last_seen < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	deleted, _ := result.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return deleted, nil
}

func (s *SQLiteStore) NewUnnotified(ctx context.Context) ([]models.Property, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+propertyColumns+`
		FROM properties
		WHERE is_notified = FALSE
		ORDER BY first_seen DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProperties(rows)
}

func (s *SQLiteStore) MarkNotified(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE properties SET is_notified = TRUE WHERE id IN (`+placeholders+`)`, args...)
	return err
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run *models.MonitoringRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO monitoring_runs (run_id, run_at, properties_found, new_count, success, error_message, response_fingerprint)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.RunAt, run.PropertiesFound, run.NewCount, run.Success, run.ErrorMessage, run.ResponseFingerprint)
	return err
}

func (s *SQLiteStore) Stats(ctx context.Context) (*models.StoreStats, error) {
	stats := &models.StoreStats{}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM properties`).Scan(&stats.TotalProperties); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM properties WHERE is_active = TRUE`).Scan(&stats.ActiveProperties); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM properties
		WHERE first_seen > datetime('now', '-1 day')`).Scan(&stats.NewToday); err != nil {
		return nil, err
	}

	var avg sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(properties_found) FROM monitoring_runs
		WHERE run_at > datetime('now', '-1 day')`).Scan(&stats.RunsToday, &avg); err != nil {
		return nil, err
	}
	stats.AvgPerRun = avg.Float64

	var rate sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, `
		SELECT CAST(SUM(CASE WHEN success THEN 1 ELSE 0 END) AS REAL) / NULLIF(COUNT(*), 0) * 100
		FROM monitoring_runs WHERE run_at > datetime('now', '-1 day')`).Scan(&rate); err != nil {
		return nil, err
	}
	stats.SuccessRate = rate.Float64

	return stats, nil
}

func (s *SQLiteStore) RecentProperties(ctx context.Context, limit int) ([]models.Property, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+propertyColumns+`
		FROM properties ORDER BY last_seen DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProperties(rows)
}

func (s *SQLiteStore) ActiveProperties(ctx context.Context) ([]models.Property, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+propertyColumns+`
		FROM properties WHERE is_active = TRUE ORDER BY first_seen DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProperties(rows)
}

func encodeLists(p *models.Property) (images, amenities string) {
	imgBytes, _ := json.Marshal(p.Images)
	amnBytes, _ := json.Marshal(p.Amenities)
	return string(imgBytes), string(amnBytes)
}

func scanProperty(rows *sql.Rows) (*models.Property, error) {
	var p models.Property
	var images, amenities sql.NullString
	err := rows.Scan(&p.ID, &p.Title, &p.Price, &p.Address, &p.Neighborhood, &p.Rooms,
		&p.Floor, &p.SizeSqm, &images, &amenities, &p.ContactName, &p.Phone,
		&p.Description, &p.URL, &p.FirstSeen, &p.LastSeen, &p.IsActive, &p.IsNotified)
	if err != nil {
		return nil, err
	}
	if images.Valid {
		json.Unmarshal([]byte(images.String), &p.Images)
	}
	if amenities.Valid {
		json.Unmarshal([]byte(amenities.String), &p.Amenities)
	}
	return &p, nil
}

func collectProperties(rows *sql.Rows) ([]models.Property, error) {
	var props []models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		props = append(props, *p)
	}
	return props, rows.Err()
}
