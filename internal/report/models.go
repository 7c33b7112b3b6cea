// Package report holds the per-task status of a depth sweep and persists it.
package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"sfhtools/internal/pars"
)

// TaskState is the terminal state of one grid point.
type TaskState string

const (
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
	TaskCancelled TaskState = "cancelled"
	TaskPlanned   TaskState = "planned"
)

// FailureClass says which layer a task failure came from.
type FailureClass string

const (
	ClassNone      FailureClass = ""
	ClassExecution FailureClass = "execution"
	ClassWorkspace FailureClass = "workspace"
	ClassTimeout   FailureClass = "timeout"
	ClassCancelled FailureClass = "cancelled"
	ClassSystem    FailureClass = "system"
)

// TaskStatus is the outcome of one grid point.
type TaskStatus struct {
	RunID string `json:"run_id"`
	I     int    `json:"i"`
	J     int    `json:"j"`

	Depths pars.Depths `json:"depths"`

	ParsPath    string `json:"pars_path"`
	OutPath     string `json:"out_path"`
	ConsolePath string `json:"console_path"`
	Command     string `json:"command"`

	State      TaskState    `json:"state"`
	ExitCode   *int         `json:"exit_code"`
	DurationMS int64        `json:"duration_ms"`
	Class      FailureClass `json:"failure_class,omitempty"`
	Code       string       `json:"error_code,omitempty"`
	Message    string       `json:"error_message,omitempty"`
}

// Validate checks the fields every status must carry.
func (s TaskStatus) Validate() error {
	var errs []error
	if strings.TrimSpace(s.RunID) == "" {
		errs = append(errs, errors.New("run_id is required"))
	}
	switch s.State {
	case TaskSucceeded, TaskPlanned:
		if s.Class != ClassNone {
			errs = append(errs, fmt.Errorf("state %s must not carry failure_class %q", s.State, s.Class))
		}
	case TaskFailed, TaskCancelled:
		if s.Class == ClassNone {
			errs = append(errs, fmt.Errorf("state %s requires failure_class", s.State))
		}
		if strings.TrimSpace(s.Message) == "" {
			errs = append(errs, errors.New("error_message is required for failed tasks"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid state %q", s.State))
	}
	return errors.Join(errs...)
}

// Report is the record of one sweep.
type Report struct {
	SweepID    string    `json:"sweep_id"`
	GalaxyDir  string    `json:"galaxy_dir"`
	TestDir    string    `json:"test_dir"`
	Filters    string    `json:"filters,omitempty"`
	Tool       string    `json:"tool"`
	Workers    int       `json:"workers"`
	Step       float64   `json:"step"`
	MaxOffset  int       `json:"max_offset"`
	StartTime  time.Time `json:"start_time"`
	FinishTime time.Time `json:"finish_time"`
	DryRun     bool      `json:"dry_run,omitempty"`

	Baseline pars.Depths  `json:"baseline"`
	Tasks    []TaskStatus `json:"tasks"`
}

// Validate checks the report and every task status.
func (r *Report) Validate() error {
	if r == nil {
		return errors.New("nil report")
	}
	var errs []error
	if strings.TrimSpace(r.SweepID) == "" {
		errs = append(errs, errors.New("sweep_id is required"))
	}
	if r.StartTime.IsZero() {
		errs = append(errs, errors.New("start_time is required"))
	}
	if r.Tasks == nil {
		errs = append(errs, errors.New("tasks must be an array (not null)"))
	}
	seen := make(map[string]bool, len(r.Tasks))
	for i, t := range r.Tasks {
		if err := t.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("tasks[%d]: %w", i, err))
		}
		if seen[t.RunID] {
			errs = append(errs, fmt.Errorf("tasks[%d]: duplicate run_id %q", i, t.RunID))
		}
		seen[t.RunID] = true
	}
	return errors.Join(errs...)
}

// Summary counts tasks by state.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
	Planned   int `json:"planned"`
}

// OK reports whether no task failed or was cancelled.
func (s Summary) OK() bool { return s.Failed == 0 && s.Cancelled == 0 }

// Summary counts the report's tasks by state.
func (r *Report) Summary() Summary {
	var s Summary
	if r == nil {
		return s
	}
	s.Total = len(r.Tasks)
	for _, t := range r.Tasks {
		switch t.State {
		case TaskSucceeded:
			s.Succeeded++
		case TaskFailed:
			s.Failed++
		case TaskCancelled:
			s.Cancelled++
		case TaskPlanned:
			s.Planned++
		}
	}
	return s
}

// Unsuccessful returns the failed and cancelled tasks in run id order.
func (r *Report) Unsuccessful() []TaskStatus {
	if r == nil {
		return nil
	}
	var out []TaskStatus
	for _, t := range r.Tasks {
		if t.State == TaskFailed || t.State == TaskCancelled {
			out = append(out, t)
		}
	}
	return out
}
