package pars

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// Render writes a pars file built from the template f: the header verbatim,
// the depth lines with their first two fields replaced by depths, the trailer
// verbatim, then the resolution fragment verbatim. Lines end the way the
// template's first line does.
func (f *File) Render(w io.Writer, depths Depths, resolution io.Reader) error {
	bw := bufio.NewWriter(w)
	eol := f.newline()
	for _, line := range f.Header {
		if err := writeLine(bw, eol, line); err != nil {
			return err
		}
	}
	if err := writeLine(bw, eol, f.Blue.with(depths.BlueFaint, depths.BlueBright)); err != nil {
		return err
	}
	if err := writeLine(bw, eol, f.Red.with(depths.RedFaint, depths.RedBright)); err != nil {
		return err
	}
	for _, line := range f.Trailer {
		if err := writeLine(bw, eol, line); err != nil {
			return err
		}
	}
	if resolution != nil {
		if _, err := io.Copy(bw, resolution); err != nil {
			return fmt.Errorf("copy resolution block: %w", err)
		}
	}
	return bw.Flush()
}

// WriteFile creates (or truncates) path and renders the pars file into it.
func (f *File) WriteFile(path string, depths Depths, resolution io.Reader) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create pars: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close pars: %w", cerr))
		}
	}()

	if err := f.Render(out, depths, resolution); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Generate writes outPath from the template at templatePath, the given
// depths and the resolution fragment at resolutionPath.
func Generate(templatePath, outPath string, depths Depths, resolutionPath string) error {
	tmpl, err := Open(templatePath)
	if err != nil {
		return err
	}
	res, err := os.Open(resolutionPath)
	if err != nil {
		return fmt.Errorf("open resolution fragment: %w", err)
	}
	defer res.Close()

	return tmpl.WriteFile(outPath, depths, res)
}

func writeLine(w *bufio.Writer, eol, line string) error {
	if _, err := w.WriteString(line); err != nil {
		return err
	}
	_, err := w.WriteString(eol)
	return err
}
