// Package logging provides categorized zap loggers for harvester.
// Each subsystem gets a named child logger so log lines can be filtered
// per category (orchestrator, browser, oracle, ...).
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names used across the codebase.
const (
	CategoryOrchestrator = "orchestrator"
	CategoryBrowser      = "browser"
	CategoryOracle       = "oracle"
	CategoryCheckpoint   = "checkpoint"
	CategoryRetry        = "retry"
	CategoryArtifacts    = "artifacts"
	CategoryHealth       = "health"
	CategoryExtract      = "extract"
)

// Config controls the root logger construction.
type Config struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	JSONFormat bool   `yaml:"json_format"` // structured JSON instead of console output
	File       string `yaml:"file"`        // optional log file; stderr when empty
}

// New builds the root logger from config.
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		var err error
		level, err = zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if cfg.JSONFormat {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	sink := zapcore.AddSync(os.Stderr)
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		sink = zapcore.AddSync(f)
	}

	core := zapcore.NewCore(enc, sink, level)
	return zap.New(core), nil
}

// Named returns a category-scoped child of the given logger.
// A nil parent yields a no-op logger so call sites never nil-check.
func Named(parent *zap.Logger, category string) *zap.Logger {
	if parent == nil {
		return zap.NewNop()
	}
	return parent.Named(category)
}
