package core

import (
	"errors"
	"strings"
)

// Invocation describes a single external command run.
//
// Invocations are plain values; building one has no side effects.
type Invocation struct {
	// ID is the caller's identifier for the run (the sweep uses the
	// zero-padded run id). It only appears in logs and results.
	ID string `json:"id"`

	// Args is the command and its arguments. Args[0] is resolved on PATH.
	Args []string `json:"args"`

	// ConsolePath is created (or truncated) and receives the command's
	// standard output.
	ConsolePath string `json:"console_path"`

	// Dir is the working directory. Empty means the caller's.
	Dir string `json:"dir,omitempty"`

	// Env adds variables on top of the inherited environment.
	Env map[string]string `json:"env,omitempty"`
}

// CommandLine renders Args for logs.
func (inv Invocation) CommandLine() string {
	return strings.Join(inv.Args, " ")
}

// Validate checks that the invocation can be started.
func (inv Invocation) Validate() error {
	var errs []error
	if len(inv.Args) == 0 || strings.TrimSpace(inv.Args[0]) == "" {
		errs = append(errs, errors.New("command is required"))
	}
	if strings.TrimSpace(inv.ConsolePath) == "" {
		errs = append(errs, errors.New("console path is required"))
	}
	return errors.Join(errs...)
}
