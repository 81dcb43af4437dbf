// Package catalog keeps a SQLite record of completed inspections: one row
// per run with the scalar summary, plus per-channel statistics. Arrays are
// never stored.
package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/quiet-tools/todinspect/internal/monitoring"
	"github.com/quiet-tools/todinspect/internal/timeutil"
	"github.com/quiet-tools/todinspect/internal/tod"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is an open inspection catalogue.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Entry is one recorded inspection.
type Entry struct {
	ID        string
	CreatedAt time.Time
	Summary   tod.Summary
}

// Open opens (creating if needed) the catalogue at path and applies any
// pending migrations. A nil clock uses wall time.
func Open(path string, clock timeutil.Clock) (*Store, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, clock: clock}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrateUp runs all pending migrations up to the latest version.
func (s *Store) migrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// Closing m would close the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied migration version.
func (s *Store) SchemaVersion() (uint, error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, err
	}
	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, nil
		}
		return 0, err
	}
	if dirty {
		return version, fmt.Errorf("catalogue schema version %d is dirty", version)
	}
	return version, nil
}

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// Record stores a summary and returns the new entry.
func (s *Store) Record(ctx context.Context, sum tod.Summary) (Entry, error) {
	e := Entry{
		ID:        uuid.NewString(),
		CreatedAt: s.clock.Now().UTC(),
		Summary:   sum,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO inspections (
			inspection_id, path, channels, samples, pointing_channels,
			time_start, time_end, layout_matches,
			phi_min, phi_max, theta_min, theta_max, psi_min, psi_max,
			created_unix_nanos
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, sum.Path, sum.Channels, sum.Samples, sum.PointingChannels,
		nullable(sum.TimeStart), nullable(sum.TimeEnd), sum.LayoutMatches,
		nullable(sum.Phi.Min), nullable(sum.Phi.Max),
		nullable(sum.Theta.Min), nullable(sum.Theta.Max),
		nullable(sum.Psi.Min), nullable(sum.Psi.Max),
		e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert inspection: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO channel_stats (inspection_id, channel, label, mean, stddev, min, max)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return Entry{}, err
	}
	defer stmt.Close()
	for _, cs := range sum.Stats {
		if _, err := stmt.ExecContext(ctx, e.ID, cs.Channel, cs.Label,
			nullable(cs.Mean), nullable(cs.StdDev), nullable(cs.Min), nullable(cs.Max)); err != nil {
			return Entry{}, fmt.Errorf("insert channel %d stats: %w", cs.Channel, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Entry{}, err
	}
	monitoring.Debugf("catalogued %s as %s", sum.Path, e.ID)
	return e, nil
}

// List returns every entry, newest first, without per-channel statistics.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	return s.query(ctx, `
		SELECT inspection_id, path, channels, samples, pointing_channels,
		       time_start, time_end, layout_matches,
		       phi_min, phi_max, theta_min, theta_max, psi_min, psi_max,
		       created_unix_nanos
		FROM inspections
		ORDER BY created_unix_nanos DESC, inspection_id`)
}

// ForPath returns the entries recorded for one file, newest first.
func (s *Store) ForPath(ctx context.Context, path string) ([]Entry, error) {
	return s.query(ctx, `
		SELECT inspection_id, path, channels, samples, pointing_channels,
		       time_start, time_end, layout_matches,
		       phi_min, phi_max, theta_min, theta_max, psi_min, psi_max,
		       created_unix_nanos
		FROM inspections
		WHERE path = ?
		ORDER BY created_unix_nanos DESC, inspection_id`, path)
}

// Get returns one entry including its per-channel statistics.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	entries, err := s.query(ctx, `
		SELECT inspection_id, path, channels, samples, pointing_channels,
		       time_start, time_end, layout_matches,
		       phi_min, phi_max, theta_min, theta_max, psi_min, psi_max,
		       created_unix_nanos
		FROM inspections
		WHERE inspection_id = ?`, id)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, sql.ErrNoRows
	}
	e := entries[0]

	rows, err := s.db.QueryContext(ctx, `
		SELECT channel, label, mean, stddev, min, max
		FROM channel_stats
		WHERE inspection_id = ?
		ORDER BY channel`, id)
	if err != nil {
		return Entry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var cs tod.ChannelStats
		var mean, std, lo, hi sql.NullFloat64
		if err := rows.Scan(&cs.Channel, &cs.Label, &mean, &std, &lo, &hi); err != nil {
			return Entry{}, err
		}
		cs.Mean, cs.StdDev, cs.Min, cs.Max = orNaN(mean), orNaN(std), orNaN(lo), orNaN(hi)
		e.Summary.Stats = append(e.Summary.Stats, cs)
	}
	return e, rows.Err()
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var created int64
		var start, end, phiMin, phiMax, thetaMin, thetaMax, psiMin, psiMax sql.NullFloat64
		sum := &e.Summary
		if err := rows.Scan(&e.ID, &sum.Path, &sum.Channels, &sum.Samples, &sum.PointingChannels,
			&start, &end, &sum.LayoutMatches,
			&phiMin, &phiMax, &thetaMin, &thetaMax, &psiMin, &psiMax,
			&created); err != nil {
			return nil, err
		}
		sum.TimeStart, sum.TimeEnd = orNaN(start), orNaN(end)
		sum.Phi = tod.AngleRange{Min: orNaN(phiMin), Max: orNaN(phiMax)}
		sum.Theta = tod.AngleRange{Min: orNaN(thetaMin), Max: orNaN(thetaMax)}
		sum.Psi = tod.AngleRange{Min: orNaN(psiMin), Max: orNaN(psiMax)}
		e.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// SQLite has no NaN; it is stored as NULL.
func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
