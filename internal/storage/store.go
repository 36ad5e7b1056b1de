// Package storage keeps one directory per run under a base directory:
// metadata.json, history.csv and whatever the snapshot sinks write there.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/rs/xid"

	"github.com/san-kum/dendrite/internal/sim"
)

// ErrRunNotFound indicates a run id with no metadata on disk.
var ErrRunNotFound = errors.New("storage: run not found")

const (
	metadataFile = "metadata.json"
	historyFile  = "history.csv"
	runPrefix    = "run_"
)

// Run status values.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) BaseDir() string { return s.baseDir }

type RunMetadata struct {
	ID             string             `json:"id"`
	Timestamp      time.Time          `json:"timestamp"`
	Status         string             `json:"status"`
	Error          string             `json:"error,omitempty"`
	Preset         string             `json:"preset,omitempty"`
	Seed           uint64             `json:"seed"`
	Solver         string             `json:"solver"`
	Nx             int                `json:"nx"`
	Ny             int                `json:"ny"`
	Dx             float64            `json:"dx"`
	Dt             float64            `json:"dt"`
	Steps          int                `json:"steps"`
	OutputInterval int                `json:"output_interval"`
	Params         map[string]float64 `json:"params"`
	StepsTaken     int                `json:"steps_taken"`
	Snapshots      int                `json:"snapshots"`
	ElapsedSeconds float64            `json:"elapsed_seconds"`
	NonConverged   sim.NonConverged   `json:"non_converged"`
	Metrics        map[string]float64 `json:"metrics"`
}

// Create allocates a fresh run directory and returns its id and path.
func (s *Store) Create() (string, string, error) {
	runID := runPrefix + xid.New().String()
	runDir := s.Dir(runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", "", fmt.Errorf("storage: create run dir: %w", err)
	}
	return runID, runDir, nil
}

func (s *Store) Dir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

// SaveMetadata writes meta to its run directory, replacing earlier
// versions.
func (s *Store) SaveMetadata(meta *RunMetadata) error {
	if meta.ID == "" {
		return fmt.Errorf("storage: metadata without run id")
	}
	metaPath := filepath.Join(s.Dir(meta.ID), metadataFile)
	metaFile, err := os.Create(metaPath)
	if err != nil {
		return err
	}
	defer metaFile.Close()

	return ExportJSON(metaFile, meta)
}

// ExportJSON writes meta as indented JSON.
func ExportJSON(w io.Writer, meta *RunMetadata) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

// SaveHistory writes per-snapshot metric values as CSV with a step column
// followed by one column per metric in name order.
func (s *Store) SaveHistory(runID string, steps []int, history map[string][]float64) error {
	csvPath := filepath.Join(s.Dir(runID), historyFile)
	csvFile, err := os.Create(csvPath)
	if err != nil {
		return err
	}
	defer csvFile.Close()

	names := make([]string, 0, len(history))
	for name := range history {
		names = append(names, name)
	}
	sort.Strings(names)

	w := csv.NewWriter(csvFile)
	if err := w.Write(append([]string{"step"}, names...)); err != nil {
		return err
	}
	for i, step := range steps {
		row := []string{strconv.Itoa(step)}
		for _, name := range names {
			val := 0.0
			if i < len(history[name]) {
				val = history[name][i]
			}
			row = append(row, strconv.FormatFloat(val, 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (s *Store) LoadHistory(runID string) ([]int, map[string][]float64, error) {
	csvPath := filepath.Join(s.Dir(runID), historyFile)
	file, err := os.Open(csvPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}

	history := make(map[string][]float64)
	if len(records) < 1 {
		return []int{}, history, nil
	}
	header := records[0]
	steps := make([]int, 0, len(records)-1)
	for _, name := range header[1:] {
		history[name] = make([]float64, 0, len(records)-1)
	}

	for _, record := range records[1:] {
		step, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, nil, fmt.Errorf("storage: history step %q: %w", record[0], err)
		}
		steps = append(steps, step)
		for j := 1; j < len(record) && j < len(header); j++ {
			val, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				return nil, nil, fmt.Errorf("storage: history %s at step %d: %w", header[j], step, err)
			}
			history[header[j]] = append(history[header[j]], val)
		}
	}
	return steps, history, nil
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	metaPath := filepath.Join(s.Dir(runID), metadataFile)
	data, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("storage: decode %s: %w", metaPath, err)
	}
	return &meta, nil
}
