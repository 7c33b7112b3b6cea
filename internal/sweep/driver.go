package sweep

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sfhtools/internal/core"
	"sfhtools/internal/pars"
	"sfhtools/internal/report"
)

// Tool is the external program run once per grid point.
type Tool struct {
	// Binary is resolved on PATH unless it contains a separator.
	Binary string
	// Args follow the four positional paths (pars, phot, fake, out).
	Args []string
	// Env is added to the inherited environment of every run.
	Env map[string]string
}

// DefaultTool runs calcsfh with a Kroupa IMF and PARSEC isochrones.
var DefaultTool = Tool{Binary: "calcsfh", Args: []string{"-Kroupa", "-PARSEC"}}

// Options configures a Driver. All paths are used as given; callers resolve
// them beforehand.
type Options struct {
	GalaxyDir      string
	ParsPath       string
	PhotPath       string
	FakePath       string
	ResolutionPath string

	// TestDir receives every generated file and the report.
	TestDir string

	Grid    Grid
	Tool    Tool
	Workers int
	Layout  pars.Layout

	// DirMode is applied to TestDir after creating it. Zero leaves the
	// umask-derived mode alone.
	DirMode os.FileMode
	// RecursiveChmod applies DirMode to everything below TestDir as well.
	RecursiveChmod bool

	// DryRun writes the pars files but executes nothing.
	DryRun bool
}

// Validate checks the options a sweep cannot start without.
func (o Options) Validate() error {
	var errs []error
	for _, f := range []struct{ name, v string }{
		{"galaxy dir", o.GalaxyDir},
		{"pars path", o.ParsPath},
		{"phot path", o.PhotPath},
		{"fake path", o.FakePath},
		{"resolution path", o.ResolutionPath},
		{"test dir", o.TestDir},
		{"tool binary", o.Tool.Binary},
	} {
		if strings.TrimSpace(f.v) == "" {
			errs = append(errs, fmt.Errorf("%s is required", f.name))
		}
	}
	if err := o.Grid.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := o.Layout.Validate(); err != nil {
		errs = append(errs, err)
	}
	if o.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be > 0 (got %d)", o.Workers))
	}
	return errors.Join(errs...)
}

// Driver prepares and runs a depth sweep.
type Driver struct {
	opts   Options
	runner Runner
	logger *zap.Logger

	tmpl    *pars.File
	filters pars.Filters

	now   func() time.Time
	newID func() string
}

// NewDriver validates opts and returns a driver dispatching to runner.
func NewDriver(opts Options, runner Runner, logger *zap.Logger) (*Driver, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sweep options: %w", err)
	}
	if runner == nil {
		return nil, errors.New("runner is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		opts:   opts,
		runner: runner,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}, nil
}

// Sweep runs the whole depth test: it reads the filter names and baseline
// depths from the template, prepares every grid point, dispatches the pool
// and saves the report into the test directory.
//
// An error is returned only when the sweep could not start (bad inputs,
// unusable test directory) or the report could not be saved. Per-task
// failures are reported in the returned report.
func (d *Driver) Sweep(ctx context.Context) (*report.Report, error) {
	filters, err := pars.FilterNames(d.opts.ParsPath)
	if err != nil {
		return nil, &InputError{Code: "FilterNames", Message: "cannot determine filter names", Cause: err}
	}
	d.filters = filters

	tmpl, err := d.template()
	if err != nil {
		return nil, err
	}
	baseline := tmpl.Depths()
	arr := baseline.Array()
	d.logger.Info("baseline depths",
		zap.String("filters", filters.String()),
		zap.Float64s("depths", arr[:]),
	)

	tasks, err := d.Prepare(ctx, baseline)
	if err != nil {
		return nil, err
	}

	rep := d.Run(ctx, tasks)
	rep.Baseline = baseline

	store, err := report.NewStore(d.opts.TestDir)
	if err != nil {
		return rep, &WorkspaceError{Code: "ReportWrite", Message: err.Error(), Cause: err}
	}
	if err := store.Save(rep); err != nil {
		return rep, &WorkspaceError{Code: "ReportWrite", Message: err.Error(), Cause: err}
	}
	d.logger.Info("report saved", zap.String("path", store.Path()))
	return rep, nil
}

// Prepare creates the test directory, writes one pars file per grid point
// and builds the invocation for each. Nothing is executed.
//
// Tasks come back in run-id order. A pars file that cannot be written fails
// only its own task (Task.PrepErr); an unusable test directory or template
// aborts the whole preparation.
func (d *Driver) Prepare(ctx context.Context, baseline pars.Depths) ([]Task, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := d.ensureTestDir(); err != nil {
		return nil, err
	}
	tmpl, err := d.template()
	if err != nil {
		return nil, err
	}
	resolution, err := os.ReadFile(d.opts.ResolutionPath)
	if err != nil {
		return nil, &InputError{Code: "Resolution", Message: fmt.Sprintf("read resolution fragment %s", d.opts.ResolutionPath), Cause: err}
	}

	points := d.opts.Grid.Points()
	tasks := make([]Task, 0, len(points))
	for _, p := range points {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		task := d.task(p, baseline)
		if err := tmpl.WriteFile(task.ParsPath, task.Depths, bytes.NewReader(resolution)); err != nil {
			task.PrepErr = &WorkspaceError{RunID: task.RunID(), Code: "ParsWrite", Message: err.Error(), Cause: err}
			d.logger.Warn("pars file not written", zap.String("run_id", task.RunID()), zap.Error(err))
		}
		tasks = append(tasks, task)
	}

	if d.opts.RecursiveChmod && d.opts.DirMode != 0 {
		if err := chmodTree(d.opts.TestDir, d.opts.DirMode); err != nil {
			return nil, &WorkspaceError{Code: "Chmod", Message: err.Error(), Cause: err}
		}
	}

	d.logger.Debug("sweep prepared", zap.Int("tasks", len(tasks)), zap.String("path", d.opts.TestDir))
	return tasks, nil
}

// Run dispatches tasks and blocks until the pool drains. In dry-run mode
// every task is reported as planned.
func (d *Driver) Run(ctx context.Context, tasks []Task) *report.Report {
	rep := &report.Report{
		SweepID:   d.newID(),
		GalaxyDir: d.opts.GalaxyDir,
		TestDir:   d.opts.TestDir,
		Filters:   d.filtersString(),
		Tool:      d.opts.Tool.Binary,
		Workers:   d.opts.Workers,
		Step:      d.opts.Grid.Step,
		MaxOffset: d.opts.Grid.MaxOffset,
		StartTime: d.now().UTC(),
		DryRun:    d.opts.DryRun,
		Tasks:     make([]report.TaskStatus, 0, len(tasks)),
	}

	if d.opts.DryRun {
		for _, t := range tasks {
			st := d.status(t)
			if t.PrepErr != nil {
				c := classifyError(t.PrepErr)
				st.State, st.Class, st.Code, st.Message = c.State, c.Class, c.Code, c.Message
			} else {
				st.State = report.TaskPlanned
			}
			rep.Tasks = append(rep.Tasks, st)
		}
		rep.FinishTime = d.now().UTC()
		d.logger.Info("dry run", zap.String("sweep_id", rep.SweepID), zap.Int("tasks", len(tasks)))
		return rep
	}

	d.logger.Info("sweep starting",
		zap.String("sweep_id", rep.SweepID),
		zap.Int("tasks", len(tasks)),
		zap.Int("workers", d.opts.Workers),
	)

	for _, o := range Dispatch(ctx, tasks, d.opts.Workers, d.runner) {
		st := d.status(o.Task)
		c := classify(o)
		st.State, st.Class, st.Code, st.Message = c.State, c.Class, c.Code, c.Message
		if o.Result != nil {
			code := o.Result.ExitCode
			st.ExitCode = &code
			st.DurationMS = o.Result.Duration.Milliseconds()
		}
		d.logTask(st)
		rep.Tasks = append(rep.Tasks, st)
	}
	rep.FinishTime = d.now().UTC()

	s := rep.Summary()
	d.logger.Info("sweep finished",
		zap.String("sweep_id", rep.SweepID),
		zap.Int("succeeded", s.Succeeded),
		zap.Int("failed", s.Failed),
		zap.Int("cancelled", s.Cancelled),
		zap.Duration("duration", rep.FinishTime.Sub(rep.StartTime)),
	)
	return rep
}

func (d *Driver) task(p GridPoint, baseline pars.Depths) Task {
	id := p.RunID()
	parsPath, outPath, consolePath := ArtifactPaths(d.opts.TestDir, id)

	args := make([]string, 0, 5+len(d.opts.Tool.Args))
	args = append(args, d.opts.Tool.Binary, parsPath, d.opts.PhotPath, d.opts.FakePath, outPath)
	args = append(args, d.opts.Tool.Args...)

	return Task{
		Point:    p,
		Depths:   d.opts.Grid.Perturb(baseline, p),
		ParsPath: parsPath,
		OutPath:  outPath,
		Invocation: core.Invocation{
			ID:          id,
			Args:        args,
			ConsolePath: consolePath,
			Dir:         d.opts.GalaxyDir,
			Env:         d.opts.Tool.Env,
		},
	}
}

func (d *Driver) status(t Task) report.TaskStatus {
	return report.TaskStatus{
		RunID:       t.RunID(),
		I:           t.Point.I,
		J:           t.Point.J,
		Depths:      t.Depths,
		ParsPath:    t.ParsPath,
		OutPath:     t.OutPath,
		ConsolePath: t.Invocation.ConsolePath,
		Command:     t.Invocation.CommandLine(),
	}
}

func (d *Driver) logTask(st report.TaskStatus) {
	fields := []zap.Field{
		zap.String("run_id", st.RunID),
		zap.Int("i", st.I),
		zap.Int("j", st.J),
		zap.Int64("duration_ms", st.DurationMS),
	}
	if st.ExitCode != nil {
		fields = append(fields, zap.Int("exit_code", *st.ExitCode))
	}
	if st.State == report.TaskSucceeded {
		d.logger.Debug("task succeeded", fields...)
		return
	}
	fields = append(fields, zap.String("class", string(st.Class)), zap.String("message", st.Message))
	d.logger.Warn("task "+string(st.State), fields...)
}

func (d *Driver) template() (*pars.File, error) {
	if d.tmpl != nil {
		return d.tmpl, nil
	}
	tmpl, err := pars.OpenLayout(d.opts.ParsPath, d.opts.Layout)
	if err != nil {
		return nil, &InputError{Code: "ParsTemplate", Message: fmt.Sprintf("read pars template %s", d.opts.ParsPath), Cause: err}
	}
	d.tmpl = tmpl
	return tmpl, nil
}

func (d *Driver) filtersString() string {
	if d.filters == (pars.Filters{}) {
		return ""
	}
	return d.filters.String()
}

func (d *Driver) ensureTestDir() error {
	dir := d.opts.TestDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &WorkspaceError{Code: "TestDir", Message: fmt.Sprintf("create %s", dir), Cause: err}
	}
	if d.opts.DirMode != 0 {
		if err := os.Chmod(dir, d.opts.DirMode); err != nil {
			return &WorkspaceError{Code: "Chmod", Message: fmt.Sprintf("chmod %s", dir), Cause: err}
		}
	}
	return nil
}

func chmodTree(root string, mode os.FileMode) error {
	return filepath.WalkDir(root, func(path string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		return os.Chmod(path, mode)
	})
}
