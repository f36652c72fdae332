package history

import (
	"context"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// WarmStore persists periodic rollup summaries to Postgres — the warm
// tier between the hot in-memory rings and the cold off-box archive.
// Losing it loses trend history across restarts, not live readings.
type WarmStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// ConnectWarmStore opens a pool against dsn and runs pending migrations.
func ConnectWarmStore(ctx context.Context, dsn string, log zerolog.Logger) (*WarmStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("warm store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("warm store: ping: %w", err)
	}

	if err := migrateWarmStore(dsn); err != nil {
		pool.Close()
		return nil, fmt.Errorf("warm store: migrate: %w", err)
	}

	return &WarmStore{pool: pool, log: log}, nil
}

func migrateWarmStore(dsn string) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, "pgx5://"+dsn)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// Close releases the pool.
func (w *WarmStore) Close() {
	w.pool.Close()
}

// Pool exposes the underlying connection pool for metrics collection.
func (w *WarmStore) Pool() *pgxpool.Pool {
	return w.pool
}

// SaveRollup persists one period's per-tank stats, keyed by (period,
// device, tank). period is a label like "2026-07" (monthly) or an hourly
// bucket ISO string — the schema doesn't distinguish, only the caller's
// cadence does.
func (w *WarmStore) SaveRollup(ctx context.Context, period string, stats []MonthlyStats) error {
	batch := make([][]any, 0, len(stats))
	for _, s := range stats {
		batch = append(batch, []any{
			period, s.Key.DeviceUID, s.Key.TankNumber,
			s.MinLevel, s.MaxLevel, s.AvgLevel,
			s.MinVoltage, s.MaxVoltage, s.AvgVoltage, s.SampleCount,
		})
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, row := range batch {
		_, err := tx.Exec(ctx, `
			INSERT INTO tank_rollups
				(period, device_uid, tank_number, min_level, max_level, avg_level,
				 min_voltage, max_voltage, avg_voltage, sample_count)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			ON CONFLICT (period, device_uid, tank_number) DO UPDATE SET
				min_level = EXCLUDED.min_level,
				max_level = EXCLUDED.max_level,
				avg_level = EXCLUDED.avg_level,
				min_voltage = EXCLUDED.min_voltage,
				max_voltage = EXCLUDED.max_voltage,
				avg_voltage = EXCLUDED.avg_voltage,
				sample_count = EXCLUDED.sample_count
		`, row...)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// Rollup is one persisted row, as returned by LoadRollups.
type Rollup struct {
	Period     string
	DeviceUID  string
	TankNumber int
	MonthlyStats
}

// LoadRollups returns every persisted rollup row for period; the
// month-over-month and year-over-year HTTP endpoints call it for every
// period they report.
func (w *WarmStore) LoadRollups(ctx context.Context, period string) ([]Rollup, error) {
	rows, err := w.pool.Query(ctx, `
		SELECT device_uid, tank_number, min_level, max_level, avg_level,
		       min_voltage, max_voltage, avg_voltage, sample_count
		FROM tank_rollups WHERE period = $1
	`, period)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rollup
	for rows.Next() {
		var r Rollup
		r.Period = period
		if err := rows.Scan(&r.DeviceUID, &r.TankNumber, &r.MinLevel, &r.MaxLevel, &r.AvgLevel,
			&r.MinVoltage, &r.MaxVoltage, &r.AvgVoltage, &r.SampleCount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
