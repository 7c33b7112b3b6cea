package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"sfhtools/internal/config"
	"sfhtools/internal/report"
)

// DefaultConfigFile is the configuration file the commands look for in the
// working directory.
const DefaultConfigFile = "sfhtools.yaml"

// RunDepthTest parses and executes a depth test. It is the entrypoint the
// depth-test command uses and is suitable for black-box tests.
func RunDepthTest(ctx context.Context, workDir string, cfg *config.Config, flags DepthFlags, logger *zap.Logger, out io.Writer) (Result, error) {
	inv, err := ParseDepthInvocation(workDir, cfg, flags)
	if err != nil {
		return Result{ExitCode: ExitCode(err)}, err
	}
	return ExecuteDepthTest(ctx, inv, logger, out)
}

// RunPlot parses and executes a plot.
func RunPlot(workDir string, cfg *config.Config, flags PlotFlags, logger *zap.Logger, out io.Writer) (Result, error) {
	inv, err := ParsePlotInvocation(workDir, cfg, flags)
	if err != nil {
		return Result{ExitCode: ExitCode(err)}, err
	}
	return ExecutePlot(inv, logger, out)
}

// RunStatus prints the report the last depth test left in the galaxy's test
// directory. The exit code reflects that sweep: 0 when every grid point
// fitted, 1 otherwise, 3 when there is no readable report.
func RunStatus(workDir string, cfg *config.Config, galaxyDir string, out io.Writer) (Result, error) {
	if err := requireAbs(workDir); err != nil {
		return Result{ExitCode: ExitCode(err)}, err
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if out == nil {
		out = io.Discard
	}
	if strings.TrimSpace(galaxyDir) == "" {
		err := invalidInvocationf("galaxy directory is required")
		return Result{ExitCode: ExitCode(err)}, err
	}
	galaxy, err := resolveUnderWorkDir(workDir, galaxyDir)
	if err != nil {
		return Result{ExitCode: ExitCode(err)}, err
	}
	testDir, err := resolveUnderWorkDir(galaxy, cfg.Paths.TestDir)
	if err != nil {
		return Result{ExitCode: ExitCode(err)}, err
	}

	store, err := report.NewStore(testDir)
	if err != nil {
		return Result{ExitCode: ExitInternalError}, err
	}
	rep, err := store.Load()
	if err != nil {
		return Result{ExitCode: ExitConfigError}, fmt.Errorf("no usable sweep report in %s: %w", testDir, err)
	}
	if err := report.Render(out, rep); err != nil {
		return Result{ExitCode: ExitInternalError, Report: rep}, err
	}

	res := Result{ExitCode: ExitSuccess, Report: rep}
	if !rep.Summary().OK() {
		res.ExitCode = ExitTaskFailure
	}
	return res, nil
}

// RunInitConfig writes cfg as YAML to path (relative to workDir). An
// existing file is only replaced when force is set.
func RunInitConfig(workDir string, cfg *config.Config, path string, force bool, out io.Writer) (Result, error) {
	if err := requireAbs(workDir); err != nil {
		return Result{ExitCode: ExitCode(err)}, err
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if out == nil {
		out = io.Discard
	}
	dst, err := resolveUnderWorkDir(workDir, orDefault(path, DefaultConfigFile))
	if err != nil {
		return Result{ExitCode: ExitCode(err)}, err
	}
	if _, err := os.Stat(dst); err == nil && !force {
		err := invalidInvocationf("%s already exists (use --force to replace it)", dst)
		return Result{ExitCode: ExitCode(err)}, err
	}
	if err := cfg.Validate(); err != nil {
		err := configErrorf("invalid configuration: %v", err)
		return Result{ExitCode: ExitCode(err)}, err
	}
	if err := cfg.Save(dst); err != nil {
		return Result{ExitCode: ExitConfigError}, err
	}
	fmt.Fprintf(out, "wrote %s\n", dst)
	return Result{ExitCode: ExitSuccess}, nil
}
