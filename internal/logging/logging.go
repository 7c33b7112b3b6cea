// Package logging builds the zap logger shared by the sfhtools commands.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production (JSON, stderr) logger. verbose lowers the level
// to debug, which adds per-run start and exit records.
func New(verbose bool) (*zap.Logger, error) {
	return build(verbose, nil)
}

// NewWithOutput is New writing to the given zap output paths instead of
// stderr.
func NewWithOutput(verbose bool, paths ...string) (*zap.Logger, error) {
	return build(verbose, paths)
}

func build(verbose bool, paths []string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	config.EncoderConfig.TimeKey = "ts"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if len(paths) > 0 {
		config.OutputPaths = paths
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.Named("sfhtools"), nil
}
