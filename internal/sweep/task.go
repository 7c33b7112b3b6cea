package sweep

import (
	"path/filepath"

	"sfhtools/internal/core"
	"sfhtools/internal/pars"
)

// File name prefixes inside the test directory. The run id is appended.
const (
	ParsPrefix    = "calcparsTEST"
	OutPrefix     = "outTEST"
	ConsolePrefix = "consoleTEST"
)

// Task is one prepared grid point: its pars file has been written and its
// invocation is ready to dispatch.
type Task struct {
	Point  GridPoint
	Depths pars.Depths

	ParsPath string
	OutPath  string

	Invocation core.Invocation

	// PrepErr is set when the pars file could not be written. Such a task
	// is reported as failed and never dispatched.
	PrepErr error
}

// RunID is the task's three-digit identifier.
func (t Task) RunID() string { return t.Point.RunID() }

// ArtifactPaths returns the pars, out and console paths for runID under dir.
func ArtifactPaths(dir, runID string) (parsPath, outPath, consolePath string) {
	return filepath.Join(dir, ParsPrefix+runID),
		filepath.Join(dir, OutPrefix+runID),
		filepath.Join(dir, ConsolePrefix+runID)
}
