package cli

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"gonum.org/v1/plot/vg"

	"sfhtools/internal/config"
	"sfhtools/internal/sweep"
)

func TestParseDepthInvocation_DeterministicStruct(t *testing.T) {
	workDir := t.TempDir()
	flags := DepthFlags{
		GalaxyDir: "galaxies/../10210_UGC1281/sfh/",
		Pars:      "input_data/./pars",
	}

	inv1, err := ParseDepthInvocation(workDir, config.DefaultConfig(), flags)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inv2, err := ParseDepthInvocation(workDir, config.DefaultConfig(), flags)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(inv1, inv2) {
		t.Fatalf("expected identical invocations, got\n%#v\n%#v", inv1, inv2)
	}

	galaxy := filepath.Join(workDir, "10210_UGC1281", "sfh")
	if inv1.GalaxyDir != galaxy {
		t.Fatalf("galaxy dir not resolved/canonicalized: %q", inv1.GalaxyDir)
	}
	if inv1.ParsPath != filepath.Join(galaxy, "input_data", "pars") {
		t.Fatalf("pars path not resolved under galaxy dir: %q", inv1.ParsPath)
	}
	if inv1.PhotPath != filepath.Join(galaxy, "input_data", "phot") {
		t.Fatalf("phot path not resolved under galaxy dir: %q", inv1.PhotPath)
	}
	if inv1.FakePath != filepath.Join(galaxy, "input_data", "fake") {
		t.Fatalf("fake path not resolved under galaxy dir: %q", inv1.FakePath)
	}
	if inv1.TestDir != filepath.Join(galaxy, "calctests") {
		t.Fatalf("test dir not resolved under galaxy dir: %q", inv1.TestDir)
	}
	if inv1.ResolutionPath != filepath.Join(workDir, "sfh_fullres") {
		t.Fatalf("resolution fragment must resolve under the working dir: %q", inv1.ResolutionPath)
	}
	if inv1.Grid != sweep.DefaultGrid {
		t.Fatalf("expected default grid, got %#v", inv1.Grid)
	}
	if !reflect.DeepEqual(inv1.Tool, sweep.DefaultTool) {
		t.Fatalf("expected default tool, got %#v", inv1.Tool)
	}
	if inv1.DirMode != 0o770 {
		t.Fatalf("expected dir mode 0770, got %o", inv1.DirMode)
	}
}

func TestParseDepthInvocation_ResolvesAgainstWorkDir_NotCwd(t *testing.T) {
	workDir := t.TempDir()
	otherCwd := t.TempDir()

	oldCwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldCwd) })
	if err := os.Chdir(otherCwd); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}

	inv, err := ParseDepthInvocation(workDir, nil, DepthFlags{GalaxyDir: "gal", Resolution: "res/sfh_fullres"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.GalaxyDir != filepath.Join(workDir, "gal") {
		t.Fatalf("expected galaxy under workdir, got %q", inv.GalaxyDir)
	}
	if inv.ResolutionPath != filepath.Join(workDir, "res", "sfh_fullres") {
		t.Fatalf("expected resolution under workdir, got %q", inv.ResolutionPath)
	}
}

func TestParseDepthInvocation_AbsolutePathsAreKept(t *testing.T) {
	workDir := t.TempDir()
	phot := filepath.Join(t.TempDir(), "phot")

	inv, err := ParseDepthInvocation(workDir, nil, DepthFlags{GalaxyDir: "gal", Phot: phot})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.PhotPath != phot {
		t.Fatalf("expected absolute phot kept, got %q", inv.PhotPath)
	}
}

func TestParseDepthInvocation_FlagsOverrideConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Workers = 2
	cfg.Grid.Step = 0.1
	cfg.Grid.MaxDelta = 0.2
	cfg.Tool.Timeout = "30m"
	cfg.Workspace.DirMode = ""

	inv, err := ParseDepthInvocation(t.TempDir(), cfg, DepthFlags{GalaxyDir: "gal", Workers: 6, DryRun: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.Workers != 6 {
		t.Fatalf("--workers must override config, got %d", inv.Workers)
	}
	if !inv.DryRun {
		t.Fatalf("expected dry run")
	}
	if inv.Grid != (sweep.Grid{Step: 0.1, MaxOffset: 2}) {
		t.Fatalf("unexpected grid %#v", inv.Grid)
	}
	if inv.Timeout.Minutes() != 30 {
		t.Fatalf("unexpected timeout %s", inv.Timeout)
	}
	if inv.DirMode != 0 {
		t.Fatalf("empty dir_mode must leave permissions alone, got %o", inv.DirMode)
	}

	inv, err = ParseDepthInvocation(t.TempDir(), cfg, DepthFlags{GalaxyDir: "gal"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.Workers != 2 {
		t.Fatalf("expected config workers, got %d", inv.Workers)
	}
}

func TestParseDepthInvocation_Errors(t *testing.T) {
	workDir := t.TempDir()

	cases := []struct {
		name    string
		workDir string
		cfg     func(*config.Config)
		flags   DepthFlags
		want    int
	}{
		{name: "missing galaxy", workDir: workDir, flags: DepthFlags{}, want: ExitInvalidInvocation},
		{name: "relative workdir", workDir: "relative", flags: DepthFlags{GalaxyDir: "g"}, want: ExitInvalidInvocation},
		{name: "negative workers", workDir: workDir, flags: DepthFlags{GalaxyDir: "g", Workers: -1}, want: ExitInvalidInvocation},
		{name: "bad config", workDir: workDir, cfg: func(c *config.Config) { c.Tool.Binary = "" }, flags: DepthFlags{GalaxyDir: "g"}, want: ExitConfigError},
		{name: "grid too large", workDir: workDir, cfg: func(c *config.Config) { c.Grid.Step = 0.001 }, flags: DepthFlags{GalaxyDir: "g"}, want: ExitConfigError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			if tc.cfg != nil {
				tc.cfg(cfg)
			}
			_, err := ParseDepthInvocation(tc.workDir, cfg, tc.flags)
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := ExitCode(err); got != tc.want {
				t.Fatalf("expected exit code %d, got %d (%v)", tc.want, got, err)
			}
		})
	}
}

func TestParsePlotInvocation(t *testing.T) {
	workDir := t.TempDir()

	inv, err := ParsePlotInvocation(workDir, nil, PlotFlags{SFHPath: "10210_UGC1281/out_v5.final"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.SFHPath != filepath.Join(workDir, "10210_UGC1281", "out_v5.final") {
		t.Fatalf("sfh path not resolved: %q", inv.SFHPath)
	}
	if inv.OutPath != filepath.Join(workDir, "sfh.png") {
		t.Fatalf("expected default output, got %q", inv.OutPath)
	}
	if inv.Options.Width != 12*vg.Inch || inv.Options.Height != 8*vg.Inch {
		t.Fatalf("unexpected size %v x %v", inv.Options.Width, inv.Options.Height)
	}
	if inv.Options.AvgMaxAge != 6 || inv.Options.Burst != 2 {
		t.Fatalf("unexpected reference lines %v / %v", inv.Options.AvgMaxAge, inv.Options.Burst)
	}

	inv, err = ParsePlotInvocation(workDir, nil, PlotFlags{
		SFHPath:   "out.final",
		Out:       "figs/ugc1281.pdf",
		Title:     "UGC1281",
		Width:     "20cm",
		AvgMaxAge: 4,
		Burst:     3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.Options.Title != "UGC1281" || inv.Options.AvgMaxAge != 4 || inv.Options.Burst != 3 {
		t.Fatalf("flags not applied: %#v", inv.Options)
	}
	if inv.Options.Width != 20*vg.Centimeter {
		t.Fatalf("unexpected width %v", inv.Options.Width)
	}
}

func TestParsePlotInvocation_Errors(t *testing.T) {
	workDir := t.TempDir()
	for name, flags := range map[string]PlotFlags{
		"missing file":   {},
		"bad width":      {SFHPath: "f", Width: "wide"},
		"zero height":    {SFHPath: "f", Height: "0in"},
		"bad format":     {SFHPath: "f", Out: "sfh.bmp"},
		"no extension":   {SFHPath: "f", Out: "sfh"},
		"negative age":   {SFHPath: "f", AvgMaxAge: -1},
		"negative burst": {SFHPath: "f", Burst: -2},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePlotInvocation(workDir, nil, flags)
			if err == nil {
				t.Fatalf("expected error")
			}
			if ExitCode(err) != ExitInvalidInvocation {
				t.Fatalf("expected exit code %d, got %d", ExitInvalidInvocation, ExitCode(err))
			}
		})
	}
}

func TestParseDepthInvocation_ToolBinary(t *testing.T) {
	workDir := t.TempDir()
	for raw, want := range map[string]string{
		"calcsfh":            "calcsfh",
		"bin/calcsfh":        filepath.Join(workDir, "bin", "calcsfh"),
		"/opt/match/calcsfh": "/opt/match/calcsfh",
	} {
		cfg := config.DefaultConfig()
		cfg.Tool.Binary = raw
		inv, err := ParseDepthInvocation(workDir, cfg, DepthFlags{GalaxyDir: "gal"})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", raw, err)
		}
		if inv.Tool.Binary != want {
			t.Fatalf("%s: expected binary %q, got %q", raw, want, inv.Tool.Binary)
		}
	}
}
