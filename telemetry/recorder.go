package telemetry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
)

// Recorder accumulates step records and writes them as CSV into a per-run
// output directory. A nil Recorder is valid and records nothing.
type Recorder struct {
	runID  string
	dir    string
	logger *slog.Logger

	every int
	rows  []*StepStats
}

// NewRecorder creates a recorder writing into dir/<run-id>/. An empty dir
// disables output and returns nil (recording is optional).
func NewRecorder(dir string, everyNSteps int, logger *slog.Logger) (*Recorder, error) {
	if dir == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	runID := uuid.NewString()
	runDir := filepath.Join(dir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	if everyNSteps < 1 {
		everyNSteps = 1
	}
	return &Recorder{
		runID:  runID,
		dir:    runDir,
		logger: logger,
		every:  everyNSteps,
	}, nil
}

// RunID returns the unique id of this run.
func (r *Recorder) RunID() string {
	if r == nil {
		return ""
	}
	return r.runID
}

// Dir returns the run output directory.
func (r *Recorder) Dir() string {
	if r == nil {
		return ""
	}
	return r.dir
}

// Record buffers one step row, honoring the configured throttle. Explosion
// rows are always kept.
func (r *Recorder) Record(s StepStats) {
	if r == nil {
		return
	}
	if s.Explosion {
		r.logger.Warn("explosion recorded", "step", s.Step, "simTime", s.SimTime)
	} else if s.Step%r.every != 0 {
		return
	}
	row := s
	r.rows = append(r.rows, &row)
}

// Len returns the number of buffered rows.
func (r *Recorder) Len() int {
	if r == nil {
		return 0
	}
	return len(r.rows)
}

// Flush writes the buffered rows to steps.csv, replacing any previous
// flush of this run.
func (r *Recorder) Flush() error {
	if r == nil {
		return nil
	}
	path := filepath.Join(r.dir, "steps.csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating steps.csv: %w", err)
	}
	defer f.Close()
	if err := gocsv.MarshalFile(&r.rows, f); err != nil {
		return fmt.Errorf("writing steps.csv: %w", err)
	}
	return nil
}
