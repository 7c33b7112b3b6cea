package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// ExecutionResult contains the results of one invocation.
type ExecutionResult struct {
	// ID echoes Invocation.ID.
	ID string

	// ExitCode is the process exit code.
	// 0 indicates success, non-zero indicates failure.
	ExitCode int

	// Duration is the wall time from start to exit.
	Duration time.Duration

	// Stderr is the captured standard error. Standard output goes to the
	// console file and is not kept in memory.
	Stderr []byte
}

// Succeeded reports whether the process exited with status 0.
func (r *ExecutionResult) Succeeded() bool { return r != nil && r.ExitCode == 0 }

// StartError is returned when the command could not be started at all,
// for example because the executable is missing.
type StartError struct {
	Command string
	Err     error
}

func (e *StartError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("start %q: %v", e.Command, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// ConsoleError is returned when the console file cannot be created or closed.
type ConsoleError struct {
	Path string
	Err  error
}

func (e *ConsoleError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("console file %s: %v", e.Path, e.Err)
}

func (e *ConsoleError) Unwrap() error { return e.Err }

// Executor runs invocations as child processes.
type Executor struct {
	// Timeout bounds a single invocation. Zero means no limit.
	Timeout time.Duration

	// Logger receives per-invocation debug output. Nil disables it.
	Logger *zap.Logger
}

// NewExecutor creates an Executor with no timeout.
func NewExecutor(logger *zap.Logger) *Executor {
	return &Executor{Logger: logger}
}

// Execute runs inv and blocks until the process exits.
//
// Standard output is redirected into inv.ConsolePath; standard error is
// returned in the result. A non-zero exit status is reported through
// ExitCode with a nil error. Errors are returned only when the process could
// not be run to completion: the console file could not be created
// (*ConsoleError), the command could not be started (*StartError), or ctx
// was cancelled or the timeout elapsed (wrapping ctx.Err()).
//
// On cancellation the whole process group is killed so that helper processes
// spawned by the tool do not outlive the sweep.
func (e *Executor) Execute(ctx context.Context, inv Invocation) (*ExecutionResult, error) {
	if err := inv.Validate(); err != nil {
		return nil, fmt.Errorf("invalid invocation %q: %w", inv.ID, err)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	console, err := os.Create(inv.ConsolePath)
	if err != nil {
		return nil, &ConsoleError{Path: inv.ConsolePath, Err: err}
	}

	cmd := exec.Command(inv.Args[0], inv.Args[1:]...)
	cmd.Dir = inv.Dir
	cmd.Env = buildEnv(os.Environ(), inv.Env)

	// Set process group so we can kill the entire process tree on cancellation
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stderr bytes.Buffer
	cmd.Stdout = console
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		_ = console.Close()
		return nil, &StartError{Command: inv.Args[0], Err: err}
	}
	e.logger().Debug("started",
		zap.String("run_id", inv.ID),
		zap.Int("pid", cmd.Process.Pid),
		zap.String("cmd", inv.CommandLine()))

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var waitErr error
	select {
	case <-ctx.Done():
		// Kill the process group (negative PID)
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		<-done
		_ = console.Close()
		return nil, fmt.Errorf("execution of %s cancelled: %w", inv.ID, ctx.Err())
	case waitErr = <-done:
	}
	elapsed := time.Since(start)

	if err := console.Close(); err != nil {
		return nil, &ConsoleError{Path: inv.ConsolePath, Err: err}
	}

	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, fmt.Errorf("waiting for %s: %w", inv.ID, waitErr)
		}
		exitCode = exitErr.ExitCode()
	}

	e.logger().Debug("exited",
		zap.String("run_id", inv.ID),
		zap.Int("exit_code", exitCode),
		zap.Duration("duration", elapsed))

	return &ExecutionResult{
		ID:       inv.ID,
		ExitCode: exitCode,
		Duration: elapsed,
		Stderr:   stderr.Bytes(),
	}, nil
}

func (e *Executor) logger() *zap.Logger {
	if e == nil || e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// buildEnv appends extra to base in key order, so repeated runs hand the
// tool an identical environment.
func buildEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(base)+len(extra))
	env = append(env, base...)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
