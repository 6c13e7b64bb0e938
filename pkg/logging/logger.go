// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging configures structured logging for DraftForge components.
//
// The drafter service logs JSON to stderr for container log collectors;
// the CLI logs human-readable text and stays quiet below warn so status
// lines and draft text are not interleaved with log noise. Both surfaces
// build their slog.Logger here so the "service" attribute and level
// handling stay consistent.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// =============================================================================
// Log Levels
// =============================================================================

// Level represents log severity. Levels follow the slog convention and
// are ordered Debug < Info < Warn < Error; setting a minimum level
// discards everything below it.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns "DEBUG", "INFO", "WARN", "ERROR", or "UNKNOWN".
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// toSlogLevel bridges Level to the standard library.
func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel maps a level name to a Level. Matching is case-insensitive
// and unknown names fall back to the given default, so a typo in an env
// var degrades to a usable logger instead of failing startup.
func ParseLevel(name string, fallback Level) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return fallback
	}
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures logger construction. A zero-value Config creates a
// text logger writing Info+ messages to stderr.
type Config struct {
	// Level sets the minimum log level. Default: LevelInfo.
	Level Level

	// Service identifies the component generating logs. When set it is
	// attached to every entry as the "service" attribute.
	Service string

	// JSON selects machine-parseable JSON output instead of text.
	JSON bool

	// Writer overrides the output destination. Default: os.Stderr.
	Writer io.Writer
}

// ServiceConfig builds the production config for a long-running service:
// JSON to stderr, level from LOG_LEVEL (default info).
func ServiceConfig(service string) Config {
	return Config{
		Level:   ParseLevel(os.Getenv("LOG_LEVEL"), LevelInfo),
		Service: service,
		JSON:    true,
	}
}

// CLIConfig builds the config for the terminal client: text output, warn
// by default so streams stay readable, debug when DRAFTFORGE_DEBUG=1.
func CLIConfig() Config {
	level := ParseLevel(os.Getenv("LOG_LEVEL"), LevelWarn)
	if os.Getenv("DRAFTFORGE_DEBUG") == "1" {
		level = LevelDebug
	}
	return Config{
		Level:   level,
		Service: "draftforge-cli",
	}
}

// =============================================================================
// Construction
// =============================================================================

// New builds a slog.Logger from the config.
func New(config Config) *slog.Logger {
	writer := config.Writer
	if writer == nil {
		writer = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: config.Level.toSlogLevel()}

	var handler slog.Handler
	if config.JSON {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	logger := slog.New(handler)
	if config.Service != "" {
		logger = logger.With("service", config.Service)
	}
	return logger
}

// Setup builds a logger from the config and installs it as the process
// default, so package-level slog calls across the codebase route through
// it.
func Setup(config Config) *slog.Logger {
	logger := New(config)
	slog.SetDefault(logger)
	return logger
}
