/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package log provides the process-wide slog logger for the CLI and the
// storage layers. Core packages return errors and never log.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
	lj "gopkg.in/natefinch/lumberjack.v2"

	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/version"
)

// AppName is attached to every record.
const AppName = "vnengine"

// Options controls logger initialization. FromEnv fills it from:
//   - VNE_LOG_LEVEL=debug|info|warn|error
//   - VNE_LOG_FORMAT=console|json
//   - VNE_LOG_FILE=<path> (adds a rotated JSON file sink)
//   - VNE_LOG_SOURCE=true|false
type Options struct {
	Level      string `env:"VNE_LOG_LEVEL" envDefault:"info"`
	Format     string `env:"VNE_LOG_FORMAT" envDefault:"console"`
	AddSource  bool   `env:"VNE_LOG_SOURCE"`
	File       string `env:"VNE_LOG_FILE"`
	MaxSizeMB  int    `env:"VNE_LOG_MAX_SIZE_MB" envDefault:"10"`
	MaxBackups int    `env:"VNE_LOG_MAX_BACKUPS" envDefault:"3"`

	// Output receives console records; nil means stderr.
	Output io.Writer `env:"-"`
}

var (
	mu      sync.RWMutex
	current *slog.Logger
)

// L returns the process logger, initializing it from the environment on
// first use.
func L() *slog.Logger {
	mu.RLock()
	l := current
	mu.RUnlock()
	if l != nil {
		return l
	}
	Init(FromEnv())
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Init replaces the process logger and slog's default.
func Init(opts Options) {
	lvl := parseLevel(opts.Level)
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var console slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		console = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource})
	} else {
		console = newConsoleHandler(out, lvl, opts.AddSource)
	}
	h := console
	if file := strings.TrimSpace(opts.File); file != "" {
		w := &lj.Logger{
			Filename:   file,
			MaxSize:    max(opts.MaxSizeMB, 1),
			MaxBackups: opts.MaxBackups,
			MaxAge:     28,
			Compress:   true,
		}
		h = fanout{console, slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource})}
	}

	logger := slog.New(h).With(
		slog.String("app", AppName),
		slog.String("ver", version.Version),
	)
	mu.Lock()
	current = logger
	mu.Unlock()
	slog.SetDefault(logger)
}

// FromEnv reads Options from VNE_LOG_* variables. Malformed values fall back
// to the defaults.
func FromEnv() Options {
	opts, err := env.ParseAs[Options]()
	if err != nil {
		return Options{Level: "info", Format: "console", MaxSizeMB: 10, MaxBackups: 3}
	}
	return opts
}

// WithComponent returns a logger with the component attribute set.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

// WithOperation annotates l with an operation name.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
