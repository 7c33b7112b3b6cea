// Package sfh reads calcsfh/zcombine star formation history results and
// draws them.
//
// A result file has one header line followed by one row per time bin:
//
//	log(t_begin) log(t_end) dmod SFR SFR_err_up SFR_err_dn ...
//
// Ages are log10 years and SFR is in solar masses per year. Columns past the
// sixth are ignored.
package sfh

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Column indexes in a result row.
const (
	colLogBegin = 0
	colLogEnd   = 1
	colSFR      = 3
	colErrUp    = 4
	colErrDn    = 5

	minColumns = 6
)

// SFRScale converts Msun/yr into the 1e-3 Msun/yr unit the figures use.
const SFRScale = 1e3

// ErrNoBins is returned for a result file with no data rows.
var ErrNoBins = errors.New("no time bins")

// ParseError reports a malformed row. Line is 1-based and counts the header.
type ParseError struct {
	Path   string
	Line   int
	Column int
	Msg    string
	Err    error
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}
	src := e.Path
	if src == "" {
		src = "sfh"
	}
	where := fmt.Sprintf("line %d", e.Line)
	if e.Column >= 0 {
		where = fmt.Sprintf("line %d column %d", e.Line, e.Column)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", src, where, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", src, where, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Bin is one time bin as written by calcsfh.
type Bin struct {
	LogBegin float64
	LogEnd   float64
	SFR      float64 // Msun/yr
	ErrUp    float64
	ErrDn    float64
}

// BeginGyr is the bin's young edge in Gyr.
func (b Bin) BeginGyr() float64 { return math.Pow(10, b.LogBegin) / 1e9 }

// EndGyr is the bin's old edge in Gyr.
func (b Bin) EndGyr() float64 { return math.Pow(10, b.LogEnd) / 1e9 }

// History is a parsed result file. Bins keep file order.
type History struct {
	Path string
	Bins []Bin
}

// Load reads the result file at path.
func Load(path string) (*History, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sfh: %w", err)
	}
	defer f.Close()

	h, err := Parse(f)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) && pe.Path == "" {
			pe.Path = path
		}
		return nil, err
	}
	h.Path = path
	return h, nil
}

// Parse reads a result file: one header line, then whitespace-separated rows.
// Blank lines and lines starting with '#' are skipped.
func Parse(r io.Reader) (*History, error) {
	sc := bufio.NewScanner(r)
	h := &History{}
	line := 0
	for sc.Scan() {
		line++
		if line == 1 {
			continue
		}
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < minColumns {
			return nil, &ParseError{Line: line, Column: -1, Msg: fmt.Sprintf("expected at least %d columns, got %d", minColumns, len(fields))}
		}
		var vals [minColumns]float64
		for _, c := range []int{colLogBegin, colLogEnd, colSFR, colErrUp, colErrDn} {
			v, err := strconv.ParseFloat(fields[c], 64)
			if err != nil {
				return nil, &ParseError{Line: line, Column: c, Msg: fmt.Sprintf("%q is not a number", fields[c]), Err: err}
			}
			vals[c] = v
		}
		if vals[colLogEnd] < vals[colLogBegin] {
			return nil, &ParseError{Line: line, Column: colLogEnd, Msg: "bin ends before it begins"}
		}
		h.Bins = append(h.Bins, Bin{
			LogBegin: vals[colLogBegin],
			LogEnd:   vals[colLogEnd],
			SFR:      vals[colSFR],
			ErrUp:    vals[colErrUp],
			ErrDn:    vals[colErrDn],
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read sfh: %w", err)
	}
	if len(h.Bins) == 0 {
		return nil, ErrNoBins
	}
	return h, nil
}

// Series is the plotting view of a History: linear ages in Gyr and rates in
// units of 1e-3 Msun/yr, one entry per bin.
type Series struct {
	Begin []float64
	End   []float64
	SFR   []float64
	ErrUp []float64
	ErrDn []float64
}

// Series converts the bins for plotting.
func (h *History) Series() Series {
	n := len(h.Bins)
	s := Series{
		Begin: make([]float64, n),
		End:   make([]float64, n),
		SFR:   make([]float64, n),
		ErrUp: make([]float64, n),
		ErrDn: make([]float64, n),
	}
	for i, b := range h.Bins {
		s.Begin[i] = b.BeginGyr()
		s.End[i] = b.EndGyr()
		s.SFR[i] = b.SFR
		s.ErrUp[i] = b.ErrUp
		s.ErrDn[i] = b.ErrDn
	}
	floats.Scale(SFRScale, s.SFR)
	floats.Scale(SFRScale, s.ErrUp)
	floats.Scale(SFRScale, s.ErrDn)
	return s
}

// Len is the number of bins.
func (s Series) Len() int { return len(s.SFR) }

// Width returns End - Begin per bin.
func (s Series) Width() []float64 {
	w := make([]float64, len(s.End))
	floats.SubTo(w, s.End, s.Begin)
	return w
}

// Mid returns the bin centres.
func (s Series) Mid() []float64 {
	m := make([]float64, len(s.Begin))
	floats.AddTo(m, s.Begin, s.End)
	floats.Scale(0.5, m)
	return m
}

// DropOldest returns the series without its last n bins. The result shares
// storage with s.
func (s Series) DropOldest(n int) Series {
	k := s.Len() - n
	if k < 0 {
		k = 0
	}
	return Series{
		Begin: s.Begin[:k],
		End:   s.End[:k],
		SFR:   s.SFR[:k],
		ErrUp: s.ErrUp[:k],
		ErrDn: s.ErrDn[:k],
	}
}
