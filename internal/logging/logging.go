// Package logging builds the process-wide zap logger. Components never
// construct loggers themselves; they receive *zap.Logger from their caller.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New returns a logger at the given level. JSON encoding is used for the
// Lambda and server entrypoints so log aggregators can parse the output;
// the CLI passes json=false for human-readable console lines.
func New(level string, json bool) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if !json {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = lvl

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
