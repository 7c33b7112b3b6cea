package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"sfhtools/internal/core"
	"sfhtools/internal/pars"
	"sfhtools/internal/report"
	"sfhtools/internal/sfh"
	"sfhtools/internal/sweep"
)

// Result is the outcome of one command.
type Result struct {
	ExitCode int
	Report   *report.Report
	Stats    *sfh.Stats
}

// ExecuteDepthTest runs a depth sweep with calcsfh executed as child
// processes.
func ExecuteDepthTest(ctx context.Context, inv DepthInvocation, logger *zap.Logger, out io.Writer) (Result, error) {
	executor := core.NewExecutor(logger)
	executor.Timeout = inv.Timeout
	return ExecuteDepthTestWithRunner(ctx, inv, executor, logger, out)
}

// ExecuteDepthTestWithRunner maps a canonical DepthInvocation to a sweep.
//
// Responsibilities:
//   - Build the sweep driver from the invocation.
//   - Run the sweep; the driver saves the report into the test directory.
//   - Print the report summary to out.
//   - Translate outcomes to semantic exit codes: 1 when any grid point
//     failed or was cancelled, 3 for bad inputs or an unusable test
//     directory, 4 for anything unexpected (including a panic).
func ExecuteDepthTestWithRunner(ctx context.Context, inv DepthInvocation, runner sweep.Runner, logger *zap.Logger, out io.Writer) (res Result, execErr error) {
	res.ExitCode = ExitInternalError
	if runner == nil {
		return res, fmt.Errorf("nil runner")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if out == nil {
		out = io.Discard
	}

	defer func() {
		if r := recover(); r != nil {
			res.ExitCode = ExitInternalError
			execErr = fmt.Errorf("panic: %v", r)
			logger.Error("depth test panicked", zap.Any("panic", r))
		}
	}()

	driver, err := sweep.NewDriver(sweep.Options{
		GalaxyDir:      inv.GalaxyDir,
		ParsPath:       inv.ParsPath,
		PhotPath:       inv.PhotPath,
		FakePath:       inv.FakePath,
		ResolutionPath: inv.ResolutionPath,
		TestDir:        inv.TestDir,
		Grid:           inv.Grid,
		Tool:           inv.Tool,
		Workers:        inv.Workers,
		Layout:         inv.Layout,
		DirMode:        inv.DirMode,
		RecursiveChmod: inv.RecursiveChmod,
		DryRun:         inv.DryRun,
	}, runner, logger)
	if err != nil {
		res.ExitCode = ExitConfigError
		return res, err
	}

	rep, err := driver.Sweep(ctx)
	res.Report = rep
	if rep != nil {
		if rerr := report.Render(out, rep); rerr != nil {
			logger.Warn("render report", zap.Error(rerr))
		}
	}
	if err != nil {
		res.ExitCode = exitCodeFor(err)
		return res, err
	}

	res.ExitCode = ExitSuccess
	if !rep.Summary().OK() {
		res.ExitCode = ExitTaskFailure
	}
	return res, nil
}

// ExecutePlot loads the SFH result file and writes the figure.
func ExecutePlot(inv PlotInvocation, logger *zap.Logger, out io.Writer) (Result, error) {
	res := Result{ExitCode: ExitInternalError}
	if logger == nil {
		logger = zap.NewNop()
	}
	if out == nil {
		out = io.Discard
	}

	h, err := sfh.Load(inv.SFHPath)
	if err != nil {
		res.ExitCode = exitCodeFor(err)
		return res, err
	}
	logger.Debug("sfh loaded", zap.String("path", inv.SFHPath), zap.Int("bins", len(h.Bins)))

	st, err := sfh.Render(h, inv.OutPath, inv.Options)
	if err != nil {
		res.ExitCode = exitCodeFor(err)
		return res, err
	}
	res.Stats = &st
	res.ExitCode = ExitSuccess

	logger.Info("figure written",
		zap.String("path", inv.OutPath),
		zap.Float64("avg_sfr", st.AvgSFR),
		zap.Float64("burst_sfr", st.BurstSFR),
	)
	_, err = fmt.Fprintf(out, "<SFR> 0-%g Gyr = %.4g x 1e-3 Msun/yr\nburst (b = %g) = %.4g x 1e-3 Msun/yr\nwrote %s\n",
		st.MaxAge, st.AvgSFR, st.BurstFactor, st.BurstSFR, inv.OutPath)
	if err != nil {
		logger.Warn("print summary", zap.Error(err))
	}
	return res, nil
}

// exitCodeFor classifies a command error into a semantic exit code.
func exitCodeFor(err error) int {
	var invErr *InvocationError
	var inputErr *sweep.InputError
	var wsErr *sweep.WorkspaceError
	var formatErr *pars.FormatError
	var parseErr *sfh.ParseError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &invErr):
		return ExitCode(err)
	case errors.As(err, &inputErr), errors.As(err, &wsErr), errors.As(err, &formatErr), errors.As(err, &parseErr):
		return ExitConfigError
	case errors.Is(err, pars.ErrFiltersNotFound), errors.Is(err, sfh.ErrNoBins), errors.Is(err, os.ErrNotExist), errors.Is(err, os.ErrPermission):
		return ExitConfigError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ExitTaskFailure
	default:
		return ExitInternalError
	}
}
