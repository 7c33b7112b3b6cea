package pars

import (
	"errors"
	"fmt"
)

// ErrFiltersNotFound is returned when no line of a pars file carries a
// comma-separated filter pair.
var ErrFiltersNotFound = errors.New("no filter pair found")

// FormatError reports a pars file that does not follow the Layout.
//
// Line and Field are zero-based; Field is -1 when the whole line is at fault.
type FormatError struct {
	Path  string
	Line  int
	Field int
	Msg   string
	Err   error
}

func (e *FormatError) Error() string {
	if e == nil {
		return ""
	}
	where := fmt.Sprintf("line %d", e.Line)
	if e.Field >= 0 {
		where = fmt.Sprintf("line %d field %d", e.Line, e.Field)
	}
	src := e.Path
	if src == "" {
		src = "pars"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", src, where, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", src, where, e.Msg)
}

func (e *FormatError) Unwrap() error { return e.Err }

func formatErrorf(line, field int, err error, format string, args ...any) error {
	return &FormatError{Line: line, Field: field, Msg: fmt.Sprintf(format, args...), Err: err}
}

// withPath stamps the source path on a FormatError produced by Parse.
func withPath(err error, path string) error {
	var fe *FormatError
	if errors.As(err, &fe) && fe != nil && fe.Path == "" {
		fe.Path = path
	}
	return err
}
