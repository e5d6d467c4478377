package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rentwatch/models"
)

// PostgresStore is the pooled backend for deployments where several
// consumers (dashboards, exports) read the same data.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS properties (
		id TEXT PRIMARY KEY,
		title TEXT,
		price INTEGER,
		address TEXT,
		neighborhood TEXT,
		rooms DOUBLE PRECISION,
		floor INTEGER,
		size_sqm INTEGER,
		images JSONB,
		amenities JSONB,
		contact_name TEXT,
		phone TEXT,
		description TEXT,
		url TEXT,
		first_seen TIMESTAMPTZ,
		last_seen TIMESTAMPTZ,
		is_active BOOLEAN DEFAULT TRUE,
		is_notified BOOLEAN DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS price_changes (
		id BIGSERIAL PRIMARY KEY,
		property_id TEXT NOT NULL REFERENCES properties(id),
		old_price INTEGER NOT NULL,
		new_price INTEGER NOT NULL,
		changed_at TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS monitoring_runs (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT,
		run_at TIMESTAMPTZ,
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
	_, err := s.pool.Exec(ctx, schema)
	return err
}

const pgPropertyColumns = `id, title, price, address, neighborhood, rooms, floor, size_sqm,
	images, amenities, contact_name, phone, description, url,
	first_seen, last_seen, is_active, is_notified`

func (s *PostgresStore) UpsertBatch(ctx context.Context, props []*models.Property, now time.Time) (*models.BatchStats, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin upsert batch: %w", err)
	}
	defer tx.Rollback(ctx)

	stats := &models.BatchStats{Total: len(props)}

	for _, p := range props {
		var oldPrice int
		err := tx.QueryRow(ctx,
			`SELECT price FROM properties WHERE id = $1`, p.ID).Scan(&oldPrice)

		switch {
		case err == pgx.ErrNoRows:
			images, amenities := encodeLists(p)
			_, err = tx.Exec(ctx, `
				INSERT INTO properties (`+pgPropertyColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, TRUE, FALSE)`,
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
				if _, err := tx.Exec(ctx, `
					INSERT INTO price_changes (property_id, old_price, new_price, changed_at)
					VALUES ($1, $2, $3, $4)`,
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
			_, err = tx.Exec(ctx, `
				UPDATE properties SET
					title = $1, price = $2, address = $3, neighborhood = $4, rooms = $5,
					floor = $6, size_sqm = $7, images = $8, amenities = $9,
					contact_name = $10, phone = $11, description = $12, url = $13,
					last_seen = $14, is_active = TRUE,
					is_notified = CASE WHEN $15 THEN FALSE ELSE is_notified END
				WHERE id = $16`,
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

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit upsert batch: %w", err)
	}
	return stats, nil
}

func (s *PostgresStore) ClassifyMissing(ctx context.Context, currentIDs map[string]struct{}, window time.Duration) ([]models.Property, error) {
	cutoff := time.Now().Add(-window)
	rows, err := s.pool.Query(ctx, `
		SELECT `+pgPropertyColumns+`
		FROM properties
		WHERE is_active = TRUE AND last_seen >= $1
		ORDER BY last_seen DESC`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var missing []models.Property
	for rows.Next() {
		p, err := scanPgProperty(rows)
		if err != nil {
			return nil, err
		}
		if _, seen := currentIDs[p.ID]; !seen {
			missing = append(missing, *p)
		}
	}
	return missing, rows.Err()
}

func (s *PostgresStore) SweepStale(ctx context.Context, window time.Duration) (int64, error) {
	cutoff := time.Now().Add(-window)
	tag, err := s.pool.Exec(ctx, `
		UPDATE properties SET is_active = FALSE
		WHERE is_active = TRUE AND last_seen < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) PurgeInactive(ctx context.Context, window time.Duration) (int64, error) {
	cutoff := time.Now().Add(-window)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM price_changes WHERE property_id IN
			(SELECT id FROM properties WHERE last_seen < $1)`, cutoff); err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `DELETE FROM properties WHERE last_seen < $1`, cutoff)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) NewUnnotified(ctx context.Context) ([]models.Property, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pgPropertyColumns+`
		FROM properties
		WHERE is_notified = FALSE
		ORDER BY first_seen DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPgProperties(rows)
}

func (s *PostgresStore) MarkNotified(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE properties SET is_notified = TRUE WHERE id = ANY($1)`, ids)
	return err
}

func (s *PostgresStore) RecordRun(ctx context.Context, run *models.MonitoringRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO monitoring_runs (run_id, run_at, properties_found, new_count, success, error_message, response_fingerprint)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.RunID, run.RunAt, run.PropertiesFound, run.NewCount, run.Success, run.ErrorMessage, run.ResponseFingerprint)
	return err
}

func (s *PostgresStore) Stats(ctx context.Context) (*models.StoreStats, error) {
	stats := &models.StoreStats{}

	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_active),
			COUNT(*) FILTER (WHERE first_seen > NOW() - INTERVAL '1 day')
		FROM properties`).Scan(&stats.TotalProperties, &stats.ActiveProperties, &stats.NewToday)
	if err != nil {
		return nil, err
	}

	var avg, rate *float64
	err = s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			AVG(properties_found),
			SUM(CASE WHEN success THEN 1 ELSE 0 END)::float / NULLIF(COUNT(*), 0) * 100
		FROM monitoring_runs
		WHERE run_at > NOW() - INTERVAL '1 day'`).Scan(&stats.RunsToday, &avg, &rate)
	if err != nil {
		return nil, err
	}
	if avg != nil {
		stats.AvgPerRun = *avg
	}
	if rate != nil {
		stats.SuccessRate = *rate
	}
	return stats, nil
}

func (s *PostgresStore) RecentProperties(ctx context.Context, limit int) ([]models.Property, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pgPropertyColumns+`
		FROM properties ORDER BY last_seen DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPgProperties(rows)
}

func (s *PostgresStore) ActiveProperties(ctx context.Context) ([]models.Property, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pgPropertyColumns+`
		FROM properties WHERE is_active = TRUE ORDER BY first_seen DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPgProperties(rows)
}

func scanPgProperty(rows pgx.Rows) (*models.Property, error) {
	var p models.Property
	var images, amenities []byte
	err := rows.Scan(&p.ID, &p.Title, &p.Price, &p.Address, &p.Neighborhood, &p.Rooms,
		&p.Floor, &p.SizeSqm, &images, &amenities, &p.ContactName, &p.Phone,
		&p.Description, &p.URL, &p.FirstSeen, &p.LastSeen, &p.IsActive, &p.IsNotified)
	if err != nil {
		return nil, err
	}
	if len(images) > 0 {
		json.Unmarshal(images, &p.Images)
	}
	if len(amenities) > 0 {
		json.Unmarshal(amenities, &p.Amenities)
	}
	return &p, nil
}

func collectPgProperties(rows pgx.Rows) ([]models.Property, error) {
	var props []models.Property
	for rows.Next() {
		p, err := scanPgProperty(rows)
		if err != nil {
			return nil, err
		}
		props = append(props, *p)
	}
	return props, rows.Err()
}
