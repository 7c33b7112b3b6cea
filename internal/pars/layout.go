package pars

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// maxLineSize bounds a single pars line; resolution blocks are short but
// header lines can carry long isochrone paths.
const maxLineSize = 1 << 20

// Layout names the fixed line offsets of a pars file.
//
// The blue depth line immediately follows the header and the red depth line
// immediately follows the blue one; only the header and trailer lengths vary.
type Layout struct {
	// HeaderLines is the number of opaque lines before the depth lines.
	HeaderLines int `yaml:"header_lines"`

	// TrailerLines is the number of opaque lines between the depth lines and
	// the time-resolution block.
	TrailerLines int `yaml:"trailer_lines"`
}

// DefaultLayout is the layout calcsfh expects.
var DefaultLayout = Layout{HeaderLines: 5, TrailerLines: 2}

// BlueLine is the zero-based index of the blue depth line.
func (l Layout) BlueLine() int { return l.HeaderLines }

// RedLine is the zero-based index of the red depth line.
func (l Layout) RedLine() int { return l.HeaderLines + 1 }

// Validate rejects layouts that cannot describe a pars file.
func (l Layout) Validate() error {
	if l.HeaderLines < 0 {
		return fmt.Errorf("header_lines must be >= 0 (got %d)", l.HeaderLines)
	}
	if l.TrailerLines < 0 {
		return fmt.Errorf("trailer_lines must be >= 0 (got %d)", l.TrailerLines)
	}
	return nil
}

// DepthLine is one filter's depth line split on whitespace.
//
// Fields[0] and Fields[1] are the faint and bright depths; any further fields
// belong to calcsfh and are carried through unchanged.
type DepthLine struct {
	Fields []string
}

// File is a parsed pars template.
type File struct {
	Layout Layout

	Header  []string
	Blue    DepthLine
	Red     DepthLine
	Trailer []string

	// Rest holds the template's own resolution block. It is never written
	// back: generated files take their resolution block from a fragment.
	Rest []string

	// eol is the line terminator of the template's first line. Generated
	// files use it for every line they write.
	eol string

	depths Depths
}

// newline is the terminator Render writes after each line.
func (f *File) newline() string {
	if f.eol == "" {
		return "\n"
	}
	return f.eol
}

// Depths returns the baseline depths read from the depth lines.
func (f *File) Depths() Depths { return f.depths }

// Parse reads a pars file laid out as described by layout.
//
// The header and both depth lines are required. Missing trailer lines are
// tolerated and simply not written back, matching what calcsfh templates in
// the wild contain. The line terminator of the first line ("\n" or "\r\n")
// is kept and reused when the file is rendered.
func Parse(r io.Reader, layout Layout) (*File, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	br := bufio.NewReader(r)
	f := &File{Layout: layout}
	n := 0
	for {
		raw, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read pars: %w", err)
		}
		if raw == "" {
			break
		}
		line := strings.TrimRight(raw, "\r\n")
		if n == 0 {
			f.eol = raw[len(line):]
		}
		switch {
		case n < layout.HeaderLines:
			f.Header = append(f.Header, line)
		case n == layout.BlueLine():
			f.Blue = DepthLine{Fields: strings.Fields(line)}
		case n == layout.RedLine():
			f.Red = DepthLine{Fields: strings.Fields(line)}
		case n < layout.RedLine()+1+layout.TrailerLines:
			f.Trailer = append(f.Trailer, line)
		default:
			f.Rest = append(f.Rest, line)
		}
		n++
		if err != nil {
			break
		}
	}

	if n <= layout.RedLine() {
		return nil, formatErrorf(n, -1, nil, "file ends after %d lines, need at least %d", n, layout.RedLine()+1)
	}

	blueFaint, blueBright, err := f.Blue.pair(layout.BlueLine())
	if err != nil {
		return nil, err
	}
	redFaint, redBright, err := f.Red.pair(layout.RedLine())
	if err != nil {
		return nil, err
	}
	f.depths = Depths{BlueFaint: blueFaint, BlueBright: blueBright, RedFaint: redFaint, RedBright: redBright}
	return f, nil
}

// Open parses the pars file at path with DefaultLayout.
func Open(path string) (*File, error) {
	return OpenLayout(path, DefaultLayout)
}

// OpenLayout parses the pars file at path with the given layout.
func OpenLayout(path string, layout Layout) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pars: %w", err)
	}
	defer fh.Close()

	f, err := Parse(fh, layout)
	if err != nil {
		return nil, withPath(err, path)
	}
	return f, nil
}

func (d DepthLine) pair(line int) (faint, bright float64, err error) {
	if len(d.Fields) < 2 {
		return 0, 0, formatErrorf(line, -1, nil, "expected at least 2 depth fields, got %d", len(d.Fields))
	}
	faint, err = strconv.ParseFloat(d.Fields[0], 64)
	if err != nil {
		return 0, 0, formatErrorf(line, 0, err, "faint depth %q is not a number", d.Fields[0])
	}
	bright, err = strconv.ParseFloat(d.Fields[1], 64)
	if err != nil {
		return 0, 0, formatErrorf(line, 1, err, "bright depth %q is not a number", d.Fields[1])
	}
	if math.IsNaN(faint) || math.IsInf(faint, 0) {
		return 0, 0, formatErrorf(line, 0, nil, "faint depth %q is not finite", d.Fields[0])
	}
	if math.IsNaN(bright) || math.IsInf(bright, 0) {
		return 0, 0, formatErrorf(line, 1, nil, "bright depth %q is not finite", d.Fields[1])
	}
	return faint, bright, nil
}

// with returns the line text with the first two fields replaced.
func (d DepthLine) with(faint, bright float64) string {
	fields := make([]string, len(d.Fields))
	copy(fields, d.Fields)
	fields[0] = FormatDepth(faint)
	fields[1] = FormatDepth(bright)
	return strings.Join(fields, " ")
}
