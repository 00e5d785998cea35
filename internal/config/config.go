/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	applog "github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/log"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/security"
)

// AppConfig is the user configuration persisted as YAML in the user config
// directory. Environment variables override file values at load time and are
// never written back.
//
// config_version: bump when the structure changes incompatibly.
type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Limits        LimitsConfig  `yaml:"limits"`
	Policy        PolicyConfig  `yaml:"policy"`
	DryRun        DryRunConfig  `yaml:"dry_run"`
	Storage       StorageConfig `yaml:"storage"`
	Archive       ArchiveConfig `yaml:"archive"`
	Logging       LoggingConfig `yaml:"logging"`
}

type LimitsConfig struct {
	MaxEvents      int `yaml:"max_events" env:"VNE_MAX_EVENTS"`
	MaxTextLength  int `yaml:"max_text_length" env:"VNE_MAX_TEXT_LENGTH"`
	MaxLabelLength int `yaml:"max_label_length" env:"VNE_MAX_LABEL_LENGTH"`
	MaxAssetLength int `yaml:"max_asset_length" env:"VNE_MAX_ASSET_LENGTH"`
	MaxCharacters  int `yaml:"max_characters" env:"VNE_MAX_CHARACTERS"`
	MaxScriptBytes int `yaml:"max_script_bytes" env:"VNE_MAX_SCRIPT_BYTES"`
}

type PolicyConfig struct {
	AllowEmptySpeaker bool `yaml:"allow_empty_speaker" env:"VNE_ALLOW_EMPTY_SPEAKER"`
}

type DryRunConfig struct {
	MaxSteps int `yaml:"max_steps" env:"VNE_DRY_RUN_MAX_STEPS"`
}

type StorageConfig struct {
	// SaveDir roots the slot store; empty means <user config dir>/vnengine/saves.
	SaveDir string `yaml:"save_dir" env:"VNE_SAVE_DIR"`
}

type ArchiveConfig struct {
	// DSN is a Postgres connection string. The archive is off when empty.
	DSN string `yaml:"dsn" env:"VNE_ARCHIVE_DSN"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"VNE_LOG_LEVEL"`
	Format string `yaml:"format" env:"VNE_LOG_FORMAT"`
	Source bool   `yaml:"source" env:"VNE_LOG_SOURCE"`
	File   string `yaml:"file" env:"VNE_LOG_FILE"`
}

// EnvConfigPath overrides ConfigPath.
const EnvConfigPath = "VNE_CONFIG"

// Defaults returns the application defaults.
func Defaults() AppConfig {
	l := security.DefaultLimits()
	return AppConfig{
		ConfigVersion: 1,
		Limits: LimitsConfig{
			MaxEvents:      l.MaxEvents,
			MaxTextLength:  l.MaxTextLength,
			MaxLabelLength: l.MaxLabelLength,
			MaxAssetLength: l.MaxAssetLength,
			MaxCharacters:  l.MaxCharacters,
			MaxScriptBytes: l.MaxScriptBytes,
		},
		DryRun:  DryRunConfig{MaxSteps: 2048},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config directory: %w", err)
	}
	return filepath.Join(base, "vnengine", "config.yaml"), nil
}

// Load reads the config file at ConfigPath if present, then applies
// environment overrides. When no config directory can be resolved the
// defaults plus environment overrides are used.
func Load() (AppConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		slog.Warn("config directory unavailable, using defaults", slog.Any("err", err))
		return withEnv(Defaults())
	}
	return LoadFrom(path)
}

// LoadFrom is Load for an explicit file. A missing file yields the defaults.
func LoadFrom(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Defaults(), fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	return withEnv(cfg)
}

func withEnv(cfg AppConfig) (AppConfig, error) {
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("config env overrides: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// Save writes cfg to ConfigPath.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

// SaveTo writes cfg as YAML to path.
func SaveTo(path string, cfg AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// normalize replaces non-positive limits with their defaults.
func (c *AppConfig) normalize() {
	d := Defaults()
	fix := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	fix(&c.Limits.MaxEvents, d.Limits.MaxEvents)
	fix(&c.Limits.MaxTextLength, d.Limits.MaxTextLength)
	fix(&c.Limits.MaxLabelLength, d.Limits.MaxLabelLength)
	fix(&c.Limits.MaxAssetLength, d.Limits.MaxAssetLength)
	fix(&c.Limits.MaxCharacters, d.Limits.MaxCharacters)
	fix(&c.Limits.MaxScriptBytes, d.Limits.MaxScriptBytes)
	fix(&c.DryRun.MaxSteps, d.DryRun.MaxSteps)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}

// SecurityLimits returns the resource limits to pass to the script pipeline.
func (c AppConfig) SecurityLimits() security.Limits {
	return security.Limits{
		MaxEvents:      c.Limits.MaxEvents,
		MaxTextLength:  c.Limits.MaxTextLength,
		MaxLabelLength: c.Limits.MaxLabelLength,
		MaxAssetLength: c.Limits.MaxAssetLength,
		MaxCharacters:  c.Limits.MaxCharacters,
		MaxScriptBytes: c.Limits.MaxScriptBytes,
	}
}

// SecurityPolicy returns the content policy to pass to the script pipeline.
func (c AppConfig) SecurityPolicy() security.Policy {
	return security.Policy{AllowEmptySpeaker: c.Policy.AllowEmptySpeaker}
}

// LogOptions maps the logging section onto logger options.
func (c AppConfig) LogOptions() applog.Options {
	o := applog.FromEnv()
	o.Level = c.Logging.Level
	o.Format = c.Logging.Format
	o.AddSource = c.Logging.Source
	o.File = c.Logging.File
	return o
}

// SaveDir resolves the slot store root.
func (c AppConfig) SaveDir() (string, error) {
	if d := strings.TrimSpace(c.Storage.SaveDir); d != "" {
		return d, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve save directory: %w", err)
	}
	return filepath.Join(base, "vnengine", "saves"), nil
}
