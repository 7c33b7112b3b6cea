package pars

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
)

// filterPair matches "WFC475W,WFC814W" as written by the MATCH tooling and the
// bare "F475W,F814W" form. The instrument prefix is dropped and the label is
// reported with the conventional "F" prefix.
var filterPair = regexp.MustCompile(`(?:WFC|UVIS|IR|F)(\d{3,4}[A-Z]{1,2})\s*,\s*(?:WFC|UVIS|IR|F)(\d{3,4}[A-Z]{1,2})`)

// Filters names the blue and red filters of a pars file.
type Filters struct {
	Blue string `json:"blue"`
	Red  string `json:"red"`
}

func (f Filters) String() string { return f.Blue + "," + f.Red }

// FilterNames returns the filter pair from the first matching line of the
// pars file at path. It wraps ErrFiltersNotFound when no line matches.
func FilterNames(path string) (Filters, error) {
	fh, err := os.Open(path)
	if err != nil {
		return Filters{}, fmt.Errorf("open pars: %w", err)
	}
	defer fh.Close()

	sc := bufio.NewScanner(fh)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		if f, ok := MatchFilters(sc.Text()); ok {
			return f, nil
		}
	}
	if err := sc.Err(); err != nil {
		return Filters{}, fmt.Errorf("read pars: %w", err)
	}
	return Filters{}, fmt.Errorf("%s: %w", path, ErrFiltersNotFound)
}

// MatchFilters extracts a filter pair from a single line.
func MatchFilters(line string) (Filters, bool) {
	m := filterPair.FindStringSubmatch(line)
	if m == nil {
		return Filters{}, false
	}
	return Filters{Blue: "F" + m[1], Red: "F" + m[2]}, true
}
