// Package sqlite persists mapping runs in SQLite: the settings a run was
// built with, the raw sweeps it consumed and snapshots of the grids it
// produced. The schema is managed by embedded migrations.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/sonarmap/internal/config"
	"github.com/banshee-data/sonarmap/internal/geometry"
	"github.com/banshee-data/sonarmap/internal/grid"
	"github.com/banshee-data/sonarmap/internal/monitoring"
	"github.com/banshee-data/sonarmap/internal/sonar"
	"github.com/banshee-data/sonarmap/internal/timeutil"
)

var logf = monitoring.Tagged("store")

// ErrNotFound is returned when a run or snapshot does not exist.
var ErrNotFound = errors.New("store: not found")

// pragmas are applied to every pooled connection through the DSN.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"temp_store(MEMORY)",
	"foreign_keys(1)",
}

func dsn(path string) string {
	q := make([]string, len(pragmas))
	for i, p := range pragmas {
		q[i] = "_pragma=" + p
	}
	return "file:" + path + "?" + strings.Join(q, "&")
}

// Store is a SQLite database of mapping runs.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Open opens (creating if needed) the database at path and migrates it to
// the latest schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to %s: %w", path, err)
	}

	s := &Store{db: db, clock: timeutil.RealClock{}}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	logf("opened %s", path)
	return s, nil
}

// SetClock replaces the time source used for timestamps and retries.
func (s *Store) SetClock(c timeutil.Clock) { s.clock = c }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Run is a mapping session.
type Run struct {
	RunID      string
	GridName   string
	Settings   string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// CreateRun records a new run built with settings and returns its id.
func (s *Store) CreateRun(settings config.Settings) (string, error) {
	var b strings.Builder
	if err := settings.Put(&b, ""); err != nil {
		return "", fmt.Errorf("format settings: %w", err)
	}
	id := uuid.New().String()
	err := s.retryOnBusy(func() error {
		_, err := s.db.Exec(
			`INSERT INTO mapping_runs (run_id, grid_name, settings_text, started_at) VALUES (?, ?, ?, ?)`,
			id, settings.GridName, b.String(), s.clock.Now().UnixNano(),
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// FinishRun stamps the run's finish time.
func (s *Store) FinishRun(runID string) error {
	var res sql.Result
	err := s.retryOnBusy(func() error {
		var err error
		res, err = s.db.Exec(`UPDATE mapping_runs SET finished_at = ? WHERE run_id = ?`, s.clock.Now().UnixNano(), runID)
		return err
	})
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return nil
}

// GetRun returns the run with id runID.
func (s *Store) GetRun(runID string) (*Run, error) {
	var r Run
	var started int64
	var finished sql.NullInt64
	err := s.db.QueryRow(
		`SELECT run_id, grid_name, settings_text, started_at, finished_at FROM mapping_runs WHERE run_id = ?`, runID,
	).Scan(&r.RunID, &r.GridName, &r.Settings, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	r.StartedAt = time.Unix(0, started)
	if finished.Valid {
		t := time.Unix(0, finished.Int64)
		r.FinishedAt = &t
	}
	return &r, nil
}

// RecordSweep stores sweep number seq of a run. The pose keeps the mapping
// frame; the ranges are stored space separated.
func (s *Store) RecordSweep(runID string, seq int, r sonar.Reading) error {
	ranges := make([]string, len(r.Ranges))
	for i, v := range r.Ranges {
		ranges[i] = strconv.Itoa(v)
	}
	err := s.retryOnBusy(func() error {
		_, err := s.db.Exec(
			`INSERT INTO sonar_sweeps (run_id, seq, x, y, theta, ranges) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, seq, r.Pose.X, r.Pose.Y, r.Pose.Theta, strings.Join(ranges, " "),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert sweep %d: %w", seq, err)
	}
	return nil
}

// ListSweeps returns a run's sweeps in sequence order.
func (s *Store) ListSweeps(runID string) ([]sonar.Reading, error) {
	rows, err := s.db.Query(
		`SELECT x, y, theta, ranges FROM sonar_sweeps WHERE run_id = ? ORDER BY seq`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query sweeps: %w", err)
	}
	defer rows.Close()

	var out []sonar.Reading
	for rows.Next() {
		var x, y int
		var theta float64
		var text string
		if err := rows.Scan(&x, &y, &theta, &text); err != nil {
			return nil, fmt.Errorf("scan sweep: %w", err)
		}
		var ranges [sonar.NumSonars]int
		for i, f := range strings.Fields(text) {
			if i >= len(ranges) {
				break
			}
			if ranges[i], err = strconv.Atoi(f); err != nil {
				return nil, fmt.Errorf("sweep range %d %q: %w", i, f, err)
			}
		}
		out = append(out, sonar.NewReading(geometry.Pose{Coord: geometry.C(x, y), Theta: theta}, ranges))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sweeps: %w", err)
	}
	return out, nil
}

// Snapshot is a stored grid.
type Snapshot struct {
	SnapshotID string
	RunID      string
	Name       string
	CreatedAt  time.Time
	Grid       *grid.Cartesian[float64]
}

// SaveSnapshot stores g under name for a run and returns the snapshot id.
func (s *Store) SaveSnapshot(runID, name string, g *grid.Cartesian[float64]) (string, error) {
	blob, err := grid.Encode(g)
	if err != nil {
		return "", fmt.Errorf("encode grid: %w", err)
	}
	id := uuid.New().String()
	err = s.retryOnBusy(func() error {
		_, err := s.db.Exec(
			`INSERT INTO map_snapshots (snapshot_id, run_id, name, width, height, grid_blob, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, runID, name, g.Width(), g.Height(), blob, s.clock.Now().UnixNano(),
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("insert snapshot: %w", err)
	}
	logf("saved snapshot %s of run %s (%dx%d, %d bytes)", name, runID, g.Width(), g.Height(), len(blob))
	return id, nil
}

// LoadSnapshot returns the snapshot with id snapshotID.
func (s *Store) LoadSnapshot(snapshotID string) (*Snapshot, error) {
	var snap Snapshot
	var created int64
	var blob []byte
	err := s.db.QueryRow(
		`SELECT snapshot_id, run_id, name, grid_blob, created_at FROM map_snapshots WHERE snapshot_id = ?`, snapshotID,
	).Scan(&snap.SnapshotID, &snap.RunID, &snap.Name, &blob, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %s: %w", snapshotID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	snap.CreatedAt = time.Unix(0, created)
	if snap.Grid, err = grid.Decode[float64](blob); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", snapshotID, err)
	}
	return &snap, nil
}

// ListSnapshots returns the ids of a run's snapshots, oldest first.
func (s *Store) ListSnapshots(runID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT snapshot_id FROM map_snapshots WHERE run_id = ? ORDER BY created_at, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// retryOnBusy retries fn while SQLite reports the database as locked.
func (s *Store) retryOnBusy(fn func() error) error {
	const attempts = 5
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !isBusy(err) {
			return err
		}
		s.clock.Sleep(time.Duration(i+1) * 20 * time.Millisecond)
	}
	return err
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
