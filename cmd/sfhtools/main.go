package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sfhtools/internal/cli"
	"sfhtools/internal/config"
	"sfhtools/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool
	logFile    string

	cfg    *config.Config
	logger *zap.Logger

	// exitCode is set by commands that ran to completion.
	exitCode = -1

	depthFlags cli.DepthFlags
	plotFlags  cli.PlotFlags
	forceInit  bool
)

var rootCmd = &cobra.Command{
	Use:   "sfhtools",
	Short: "Photometric depth sweeps and SFH figures for calcsfh fits",
	Long: `sfhtools drives the calcsfh star formation history fitter.

depth-test reruns calcsfh over a grid of perturbed completeness depths and
reports which grid points fit. plot draws the star formation history that a
finished fit wrote.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return &cli.InvocationError{ExitCode: cli.ExitConfigError, Message: err.Error()}
		}
		if logFile != "" {
			logger, err = logging.NewWithOutput(verbose, logFile)
		} else {
			logger, err = logging.New(verbose)
		}
		if err != nil {
			return &cli.InvocationError{ExitCode: cli.ExitInternalError, Message: fmt.Sprintf("failed to initialize logger: %v", err)}
		}
		logger.Debug("configuration loaded", zap.String("path", configPath))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var depthTestCmd = &cobra.Command{
	Use:   "depth-test <galaxy-dir>",
	Short: "Run calcsfh over a grid of perturbed completeness depths",
	Long: `Reads the baseline depths from the galaxy's pars file, writes one pars
file per grid point into the test directory and runs calcsfh on each of them
in parallel.

Exit status is 0 when every grid point fitted, 1 when any failed or was
cancelled, 2 for bad arguments, 3 for unusable inputs or configuration.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workDir, err := os.Getwd()
		if err != nil {
			return err
		}
		depthFlags.GalaxyDir = args[0]
		res, err := cli.RunDepthTest(cmd.Context(), workDir, cfg, depthFlags, logger, cmd.OutOrStdout())
		exitCode = res.ExitCode
		return err
	},
}

var plotCmd = &cobra.Command{
	Use:   "plot <sfh-file>",
	Short: "Draw the star formation history from a calcsfh result file",
	Long: `Draws the lifetime and recent star formation rate panels with the mean
SFR and the burst threshold marked. The output format follows the extension
of --out (png, svg, pdf, eps, jpg, tif).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workDir, err := os.Getwd()
		if err != nil {
			return err
		}
		plotFlags.SFHPath = args[0]
		res, err := cli.RunPlot(workDir, cfg, plotFlags, logger, cmd.OutOrStdout())
		exitCode = res.ExitCode
		return err
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <galaxy-dir>",
	Short: "Print the report of the last depth test",
	Long: `Reads the report the last depth-test saved in the galaxy's test directory
and prints it. Exit status is 0 when every grid point fitted and 1 otherwise.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workDir, err := os.Getwd()
		if err != nil {
			return err
		}
		res, err := cli.RunStatus(workDir, cfg, args[0], cmd.OutOrStdout())
		exitCode = res.ExitCode
		return err
	},
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config [path]",
	Short: "Write the effective configuration as YAML",
	Long: `Writes the configuration sfhtools would run with (defaults, the --config
file and environment overrides) to path, sfhtools.yaml by default.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workDir, err := os.Getwd()
		if err != nil {
			return err
		}
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		res, err := cli.RunInitConfig(workDir, cfg, path, forceInit, cmd.OutOrStdout())
		exitCode = res.ExitCode
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", cli.DefaultConfigFile, "configuration file (defaults apply when missing)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write JSON logs to this file instead of stderr")

	f := depthTestCmd.Flags()
	f.StringVar(&depthFlags.Phot, "phot", "", "photometry file, relative to the galaxy dir")
	f.StringVar(&depthFlags.Pars, "pars", "", "pars template, relative to the galaxy dir")
	f.StringVar(&depthFlags.Fake, "fake", "", "artificial star file, relative to the galaxy dir")
	f.StringVar(&depthFlags.Resolution, "resolution", "", "age resolution fragment, relative to the working dir")
	f.IntVarP(&depthFlags.Workers, "workers", "j", 0, "concurrent calcsfh processes (default from config)")
	f.BoolVar(&depthFlags.DryRun, "dry-run", false, "write pars files and plan invocations without running calcsfh")

	f = plotCmd.Flags()
	f.StringVarP(&plotFlags.Out, "out", "o", "", "output figure (default from config)")
	f.StringVar(&plotFlags.Title, "title", "", "figure title")
	f.StringVar(&plotFlags.Width, "width", "", "figure width, e.g. 12in or 30cm")
	f.StringVar(&plotFlags.Height, "height", "", "figure height")
	f.Float64Var(&plotFlags.AvgMaxAge, "avg-max-age", 0, "age in Gyr the mean SFR is averaged up to")
	f.Float64Var(&plotFlags.Burst, "burst", 0, "burst threshold as a multiple of the mean SFR")

	initConfigCmd.Flags().BoolVar(&forceInit, "force", false, "replace an existing file")

	rootCmd.AddCommand(depthTestCmd, plotCmd, statusCmd, initConfigCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	code := exitCode
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var invErr *cli.InvocationError
		switch {
		case errors.As(err, &invErr):
			code = cli.ExitCode(err)
		case code < 0:
			// Cobra rejected the arguments before a command ran.
			code = cli.ExitInvalidInvocation
		}
	}
	if code < 0 {
		code = cli.ExitSuccess
	}
	os.Exit(code)
}
