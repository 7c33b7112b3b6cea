package sweep

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sfhtools/internal/core"
	"sfhtools/internal/report"
)

// InputError reports a missing or malformed sweep input (pars template,
// resolution fragment). The whole sweep is aborted before dispatch.
type InputError struct {
	Code    string
	Message string
	Cause   error
}

func (e *InputError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("input failure (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("input failure: %s", e.Message)
}

func (e *InputError) Unwrap() error { return e.Cause }

// WorkspaceError reports a filesystem failure. When RunID is empty it
// concerns the test directory and aborts the sweep; otherwise it concerns a
// single grid point's files and fails only that task.
type WorkspaceError struct {
	RunID   string
	Code    string
	Message string
	Cause   error
}

func (e *WorkspaceError) Error() string {
	if e == nil {
		return ""
	}
	if e.RunID != "" {
		return fmt.Sprintf("workspace failure run=%s (%s): %s", e.RunID, e.Code, e.Message)
	}
	return fmt.Sprintf("workspace failure (%s): %s", e.Code, e.Message)
}

func (e *WorkspaceError) Unwrap() error { return e.Cause }

// classification is the report-facing view of a task outcome.
type classification struct {
	State   report.TaskState
	Class   report.FailureClass
	Code    string
	Message string
}

// classify maps an Outcome onto the failure taxonomy.
func classify(o Outcome) classification {
	if o.Err == nil && !o.Dispatched {
		return classification{
			State:   report.TaskCancelled,
			Class:   report.ClassCancelled,
			Code:    "NotDispatched",
			Message: "sweep cancelled before dispatch",
		}
	}
	if o.Err != nil {
		return classifyError(o.Err)
	}
	if o.Result == nil {
		return classification{State: report.TaskFailed, Class: report.ClassSystem, Code: "NilResult", Message: "runner returned no result"}
	}
	if o.Result.ExitCode != 0 {
		msg := fmt.Sprintf("exit status %d", o.Result.ExitCode)
		if tail := lastLine(o.Result.Stderr); tail != "" {
			msg += ": " + tail
		}
		return classification{State: report.TaskFailed, Class: report.ClassExecution, Code: "NonZeroExit", Message: msg}
	}
	return classification{State: report.TaskSucceeded}
}

func classifyError(err error) classification {
	var ws *WorkspaceError
	var ce *core.ConsoleError
	var se *core.StartError
	switch {
	case errors.As(err, &ws):
		return classification{State: report.TaskFailed, Class: report.ClassWorkspace, Code: nonEmptyOr(ws.Code, "Workspace"), Message: err.Error()}
	case errors.As(err, &ce):
		return classification{State: report.TaskFailed, Class: report.ClassWorkspace, Code: "ConsoleFile", Message: err.Error()}
	case errors.As(err, &se):
		return classification{State: report.TaskFailed, Class: report.ClassExecution, Code: "StartFailed", Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return classification{State: report.TaskFailed, Class: report.ClassTimeout, Code: "Timeout", Message: err.Error()}
	case errors.Is(err, context.Canceled):
		return classification{State: report.TaskCancelled, Class: report.ClassCancelled, Code: "Cancelled", Message: err.Error()}
	default:
		return classification{State: report.TaskFailed, Class: report.ClassSystem, Code: "UnknownError", Message: err.Error()}
	}
}

func lastLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}

func nonEmptyOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
