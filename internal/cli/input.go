package cli

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/plot/vg"

	"sfhtools/internal/config"
	"sfhtools/internal/pars"
	"sfhtools/internal/sfh"
	"sfhtools/internal/sweep"
)

const (
	ExitSuccess           = 0
	ExitTaskFailure       = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

func configErrorf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitConfigError, Message: fmt.Sprintf(format, args...)}
}

// DepthFlags are the raw depth-test arguments. Empty strings and zero
// numbers mean "use the config value".
type DepthFlags struct {
	GalaxyDir  string
	Phot       string
	Pars       string
	Fake       string
	Resolution string
	Workers    int
	DryRun     bool
}

// DepthInvocation is the fully canonicalized description of a depth test.
//
// All paths are absolute and Clean. Phot, pars, fake and the test directory
// are resolved under GalaxyDir; the resolution fragment is resolved under
// the working directory the command was started from.
type DepthInvocation struct {
	WorkDir        string
	GalaxyDir      string
	ParsPath       string
	PhotPath       string
	FakePath       string
	ResolutionPath string
	TestDir        string

	Grid           sweep.Grid
	Tool           sweep.Tool
	Timeout        time.Duration
	Workers        int
	Layout         pars.Layout
	DirMode        os.FileMode
	RecursiveChmod bool
	DryRun         bool
}

// ParseDepthInvocation merges flags over cfg and canonicalizes every path.
//
// workDir must be absolute; it stands in for the process working directory
// so that resolution never depends on hidden state.
func ParseDepthInvocation(workDir string, cfg *config.Config, flags DepthFlags) (DepthInvocation, error) {
	if err := requireAbs(workDir); err != nil {
		return DepthInvocation{}, err
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if flags.Workers < 0 {
		return DepthInvocation{}, invalidInvocationf("--workers must be > 0 (got %d)", flags.Workers)
	}

	merged := *cfg
	merged.Paths.Phot = orDefault(flags.Phot, cfg.Paths.Phot)
	merged.Paths.Pars = orDefault(flags.Pars, cfg.Paths.Pars)
	merged.Paths.Fake = orDefault(flags.Fake, cfg.Paths.Fake)
	merged.Paths.Resolution = orDefault(flags.Resolution, cfg.Paths.Resolution)
	if flags.Workers > 0 {
		merged.Workers = flags.Workers
	}
	if err := merged.Validate(); err != nil {
		return DepthInvocation{}, configErrorf("invalid configuration: %v", err)
	}

	if strings.TrimSpace(flags.GalaxyDir) == "" {
		return DepthInvocation{}, invalidInvocationf("galaxy directory is required")
	}
	galaxyDir, err := resolveUnderWorkDir(workDir, flags.GalaxyDir)
	if err != nil {
		return DepthInvocation{}, err
	}

	inv := DepthInvocation{
		WorkDir:        filepath.Clean(workDir),
		GalaxyDir:      galaxyDir,
		Workers:        merged.Workers,
		Layout:         pars.Layout{HeaderLines: merged.Pars.HeaderLines, TrailerLines: merged.Pars.TrailerLines},
		RecursiveChmod: merged.Workspace.RecursiveChmod,
		DryRun:         flags.DryRun,
	}
	inv.Tool = sweep.Tool{
		Binary: merged.Tool.Binary,
		Args:   append([]string(nil), merged.Tool.Args...),
		Env:    maps.Clone(merged.Tool.Env),
	}

	for _, p := range []struct {
		dst  *string
		base string
		raw  string
	}{
		{&inv.ParsPath, galaxyDir, merged.Paths.Pars},
		{&inv.PhotPath, galaxyDir, merged.Paths.Phot},
		{&inv.FakePath, galaxyDir, merged.Paths.Fake},
		{&inv.TestDir, galaxyDir, merged.Paths.TestDir},
		{&inv.ResolutionPath, inv.WorkDir, merged.Paths.Resolution},
	} {
		resolved, err := resolveUnderWorkDir(p.base, p.raw)
		if err != nil {
			return DepthInvocation{}, err
		}
		*p.dst = resolved
	}

	// calcsfh runs inside the galaxy dir, so a relative binary path must be
	// pinned to the working dir. Bare names are still looked up on PATH.
	if strings.ContainsRune(inv.Tool.Binary, filepath.Separator) && !filepath.IsAbs(inv.Tool.Binary) {
		inv.Tool.Binary = filepath.Join(inv.WorkDir, inv.Tool.Binary)
	}

	grid, err := sweep.GridFromDelta(merged.Grid.Step, merged.Grid.MaxDelta)
	if err != nil {
		return DepthInvocation{}, configErrorf("invalid grid: %v", err)
	}
	if err := grid.Validate(); err != nil {
		return DepthInvocation{}, configErrorf("invalid grid: %v", err)
	}
	inv.Grid = grid

	// Validate has already parsed both.
	inv.Timeout, _ = merged.ToolTimeout()
	inv.DirMode, _ = merged.DirMode()

	return inv, nil
}

// PlotFlags are the raw plot arguments. Zero values mean "use the config
// value".
type PlotFlags struct {
	SFHPath   string
	Out       string
	Title     string
	Width     string
	Height    string
	AvgMaxAge float64
	Burst     float64
}

// PlotInvocation is the canonical description of a plot run.
type PlotInvocation struct {
	WorkDir string
	SFHPath string
	OutPath string
	Options sfh.PlotOptions
}

// ParsePlotInvocation merges flags over cfg and resolves both paths under
// workDir.
func ParsePlotInvocation(workDir string, cfg *config.Config, flags PlotFlags) (PlotInvocation, error) {
	if err := requireAbs(workDir); err != nil {
		return PlotInvocation{}, err
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if strings.TrimSpace(flags.SFHPath) == "" {
		return PlotInvocation{}, invalidInvocationf("sfh result file is required")
	}
	if flags.AvgMaxAge < 0 {
		return PlotInvocation{}, invalidInvocationf("--avg-max-age must be > 0 (got %v)", flags.AvgMaxAge)
	}
	if flags.Burst < 0 {
		return PlotInvocation{}, invalidInvocationf("--burst must be > 0 (got %v)", flags.Burst)
	}

	sfhPath, err := resolveUnderWorkDir(workDir, flags.SFHPath)
	if err != nil {
		return PlotInvocation{}, err
	}
	outPath, err := resolveUnderWorkDir(workDir, orDefault(flags.Out, cfg.Plot.Out))
	if err != nil {
		return PlotInvocation{}, err
	}
	if _, err := sfh.FormatOf(outPath); err != nil {
		return PlotInvocation{}, invalidInvocationf("%v", err)
	}

	opts := sfh.DefaultPlotOptions()
	if flags.Title != "" {
		opts.Title = flags.Title
	}
	opts.AvgMaxAge = cfg.Plot.AvgMaxAge
	if flags.AvgMaxAge > 0 {
		opts.AvgMaxAge = flags.AvgMaxAge
	}
	opts.Burst = cfg.Plot.Burst
	if flags.Burst > 0 {
		opts.Burst = flags.Burst
	}
	if opts.Width, err = parseLength("--width", orDefault(flags.Width, cfg.Plot.Width)); err != nil {
		return PlotInvocation{}, err
	}
	if opts.Height, err = parseLength("--height", orDefault(flags.Height, cfg.Plot.Height)); err != nil {
		return PlotInvocation{}, err
	}

	return PlotInvocation{
		WorkDir: filepath.Clean(workDir),
		SFHPath: sfhPath,
		OutPath: outPath,
		Options: opts,
	}, nil
}

func parseLength(flag, raw string) (vg.Length, error) {
	l, err := vg.ParseLength(strings.TrimSpace(raw))
	if err != nil {
		return 0, invalidInvocationf("invalid %s %q: %v", flag, raw, err)
	}
	if l <= 0 {
		return 0, invalidInvocationf("%s must be positive (got %q)", flag, raw)
	}
	return l, nil
}

func requireAbs(workDir string) error {
	if strings.TrimSpace(workDir) == "" {
		return invalidInvocationf("working directory is required")
	}
	if !filepath.IsAbs(workDir) {
		return invalidInvocationf("working directory must be an absolute path (got %q)", workDir)
	}
	return nil
}

func resolveUnderWorkDir(workDir, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", invalidInvocationf("path must not be empty")
	}
	clean := filepath.Clean(p)

	// If absolute, accept as-is; it is still deterministic.
	// If relative, resolve under workDir.
	if filepath.IsAbs(clean) {
		return clean, nil
	}
	return filepath.Clean(filepath.Join(workDir, clean)), nil
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

// ExitCode extracts a semantic exit code from an error.
// Unknown errors map to ExitInternalError.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	return ExitInternalError
}
