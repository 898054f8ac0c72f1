// Package sqlite persists finished frames to an on-disk SQLite
// database: a reference frame serializer behind the snake.FrameSink
// interface, for acquisitions that don't ship frames to a dedicated
// columnar store. Schema migrations run through
// golang-migrate/migrate/v4 against an embedded source.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/snakecore/tagimage/internal/snake"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// FrameStore persists FinishedFrame messages. One header row per frame
// in `frames`, one row per (channel, voxel) in `frame_voxels`, one row
// per voxel in the merged display map in `frame_merged`.
type FrameStore struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite database at path and
// brings its schema up to the latest migration.
func Open(path string) (*FrameStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open %q: %w", path, err)
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	store := &FrameStore{db: db}
	if err := store.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// applyPragmas runs each PRAGMA (WAL mode, a busy timeout, and the
// synchronous and temp_store settings) once through the pool,
// regardless of how the database file came to exist. journal_mode=WAL
// persists in the database file; the other settings apply to the pooled
// connection that ran them, not to connections the pool opens later.
func applyPragmas(db *sql.DB) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("sqlite: failed to apply %q: %w", pragma, err)
		}
	}
	return nil
}

func (s *FrameStore) migrateUp() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("sqlite: failed to create migration source: %w", err)
	}
	dbDriver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("sqlite: failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("sqlite: failed to build migrator: %w", err)
	}
	m.Log = &migrateLogger{}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("sqlite: migration up failed: %w", err)
	}
	return nil
}

type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) { log.Printf("[sqlite-migrate] "+format, v...) }
func (l *migrateLogger) Verbose() bool                          { return false }

// Submit implements snake.FrameSink: it writes one frame, atomically,
// as a single transaction.
func (s *FrameStore) Submit(ctx context.Context, frame snake.FinishedFrame) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO frames (sequence, max_frame_time) VALUES (?, ?)`,
		frame.Sequence, int64(frame.MaxFrameTime)); err != nil {
		return fmt.Errorf("sqlite: failed to insert frame header: %w", err)
	}

	voxelStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO frame_voxels (sequence, channel, row, col, plane, count) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: failed to prepare voxel insert: %w", err)
	}
	defer voxelStmt.Close()

	for channel, m := range frame.Channels {
		for key, count := range m {
			if _, err := voxelStmt.ExecContext(ctx, frame.Sequence, channel, key.Row, key.Column, key.Plane, count); err != nil {
				return fmt.Errorf("sqlite: failed to insert voxel: %w", err)
			}
		}
	}

	mergedStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO frame_merged (sequence, row, col, plane, r, g, b) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: failed to prepare merged insert: %w", err)
	}
	defer mergedStmt.Close()

	for key, color := range frame.Merged {
		if _, err := mergedStmt.ExecContext(ctx, frame.Sequence, key.Row, key.Column, key.Plane, color.R, color.G, color.B); err != nil {
			return fmt.Errorf("sqlite: failed to insert merged voxel: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: failed to commit frame: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *FrameStore) Close() error {
	return s.db.Close()
}

// FrameCount reports how many frame headers have been persisted, for
// tests and diagnostics.
func (s *FrameStore) FrameCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM frames`).Scan(&n)
	return n, err
}
