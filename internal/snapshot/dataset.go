package snapshot

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"

	_ "modernc.org/sqlite"

	"github.com/san-kum/dendrite/internal/grid"
	"github.com/san-kum/dendrite/internal/sim"
)

// ErrNotFound indicates a step with no stored snapshot.
var ErrNotFound = errors.New("snapshot: not found")

// Field names inside a snapshot.
const (
	FieldPhase       = "p"
	FieldTemperature = "T"
)

// DatasetFile is the conventional file name inside a run directory.
const DatasetFile = "snapshots.db"

type Dataset struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

// OpenDataset opens or creates the SQLite file at path and migrates it to
// the current schema. A nil logger means slog.Default().
func OpenDataset(path string, log *slog.Logger) (*Dataset, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open %s: %w", path, err)
	}
	// One writer; also keeps PRAGMAs on the single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshot: configure %s: %w", path, err)
	}
	if err := migrateUp(db, log); err != nil {
		db.Close()
		return nil, err
	}
	return &Dataset{db: db, path: path, log: log}, nil
}

func (d *Dataset) Path() string { return d.path }

// WriteSnapshot stores s, replacing any earlier snapshot of the same step.
func (d *Dataset) WriteSnapshot(s sim.Snapshot) error {
	n := s.Grid.Size()
	if len(s.Phase) != n || len(s.Temp) != n {
		return fmt.Errorf("%w: snapshot at step %d has %d/%d entries for %s",
			grid.ErrShapeMismatch, s.Step, len(s.Phase), len(s.Temp), s.Grid)
	}

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("snapshot: begin: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{`DELETE FROM fields WHERE step = ?`, `DELETE FROM snapshots WHERE step = ?`} {
		if _, err := tx.Exec(q, s.Step); err != nil {
			return fmt.Errorf("snapshot: replace step %d: %w", s.Step, err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO snapshots (step, time, nx, ny, dx) VALUES (?, ?, ?, ?, ?)`,
		s.Step, s.Time, s.Grid.Nx, s.Grid.Ny, s.Grid.Dx); err != nil {
		return fmt.Errorf("snapshot: insert step %d: %w", s.Step, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO fields (step, name, data) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("snapshot: prepare: %w", err)
	}
	defer stmt.Close()
	for _, f := range []struct {
		name string
		data []float64
	}{{FieldPhase, s.Phase}, {FieldTemperature, s.Temp}} {
		if _, err := stmt.Exec(s.Step, f.name, encodeField(f.data)); err != nil {
			return fmt.Errorf("snapshot: insert %s at step %d: %w", f.name, s.Step, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("snapshot: commit step %d: %w", s.Step, err)
	}
	d.log.Debug("snapshot stored", "step", s.Step, "path", d.path)
	return nil
}

// Steps lists stored snapshot steps in ascending order.
func (d *Dataset) Steps() ([]int, error) {
	rows, err := d.db.Query(`SELECT step FROM snapshots ORDER BY step`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: list steps: %w", err)
	}
	defer rows.Close()

	steps := make([]int, 0)
	for rows.Next() {
		var step int
		if err := rows.Scan(&step); err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// Read loads the snapshot stored for step. The returned slices are owned by
// the caller.
func (d *Dataset) Read(step int) (sim.Snapshot, error) {
	var (
		snap   sim.Snapshot
		nx, ny int
		dx     float64
	)
	err := d.db.QueryRow(`SELECT step, time, nx, ny, dx FROM snapshots WHERE step = ?`, step).
		Scan(&snap.Step, &snap.Time, &nx, &ny, &dx)
	if errors.Is(err, sql.ErrNoRows) {
		return sim.Snapshot{}, fmt.Errorf("%w: step %d", ErrNotFound, step)
	}
	if err != nil {
		return sim.Snapshot{}, fmt.Errorf("snapshot: read step %d: %w", step, err)
	}
	snap.Grid = grid.Grid{Nx: nx, Ny: ny, Dx: dx}

	rows, err := d.db.Query(`SELECT name, data FROM fields WHERE step = ?`, step)
	if err != nil {
		return sim.Snapshot{}, fmt.Errorf("snapshot: read fields at step %d: %w", step, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			name string
			blob []byte
		)
		if err := rows.Scan(&name, &blob); err != nil {
			return sim.Snapshot{}, err
		}
		data, err := decodeField(blob, snap.Grid.Size())
		if err != nil {
			return sim.Snapshot{}, fmt.Errorf("snapshot: field %s at step %d: %w", name, step, err)
		}
		switch name {
		case FieldPhase:
			snap.Phase = data
		case FieldTemperature:
			snap.Temp = data
		}
	}
	if err := rows.Err(); err != nil {
		return sim.Snapshot{}, err
	}
	if snap.Phase == nil || snap.Temp == nil {
		return sim.Snapshot{}, fmt.Errorf("%w: fields missing at step %d", ErrNotFound, step)
	}
	return snap, nil
}

func (d *Dataset) Close() error {
	return d.db.Close()
}

// encodeField lays values out as little-endian float64, row-major.
func encodeField(values []float64) []byte {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

func decodeField(buf []byte, n int) ([]float64, error) {
	if len(buf) != 8*n {
		return nil, fmt.Errorf("%w: blob has %d bytes, want %d", grid.ErrShapeMismatch, len(buf), 8*n)
	}
	values := make([]float64, n)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return values, nil
}
