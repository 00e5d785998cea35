/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package project reads and writes the YAML project manifest that names a
// visual novel's metadata, display settings and declared assets.
package project

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	applog "github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/log"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/migrate"
)

// FileName is the manifest file at a project root.
const FileName = "project.yaml"

// MaxManifestBytes bounds the manifest file size.
const MaxManifestBytes = 1 << 20

// Manifest is the single source of truth for a project; assets not declared
// here are not loaded.
type Manifest struct {
	SchemaVersion string   `yaml:"manifest_schema_version"`
	Metadata      Metadata `yaml:"metadata"`
	Settings      Settings `yaml:"settings"`
	Assets        Assets   `yaml:"assets"`
}

type Metadata struct {
	Name        string `yaml:"name"`
	Author      string `yaml:"author"`
	Version     string `yaml:"version"`
	Description string `yaml:"description,omitempty"`
}

type Settings struct {
	// Resolution is [width, height] in pixels.
	Resolution         [2]uint32 `yaml:"resolution,flow"`
	DefaultLanguage    string    `yaml:"default_language"`
	SupportedLanguages []string  `yaml:"supported_languages"`
}

type Assets struct {
	Backgrounds map[string]string         `yaml:"backgrounds"`
	Characters  map[string]CharacterAsset `yaml:"characters"`
	Audio       map[string]string         `yaml:"audio"`
}

type CharacterAsset struct {
	Path string `yaml:"path"`
	// Scale defaults to 1 when absent.
	Scale *float32 `yaml:"scale,omitempty"`
}

// New returns a manifest with the default settings: 1280x720, English only.
func New(name, author string) *Manifest {
	return &Manifest{
		SchemaVersion: ManifestVersion,
		Metadata:      Metadata{Name: name, Author: author, Version: "0.1.0"},
		Settings: Settings{
			Resolution:         [2]uint32{1280, 720},
			DefaultLanguage:    "en",
			SupportedLanguages: []string{"en"},
		},
		Assets: Assets{
			Backgrounds: map[string]string{},
			Characters:  map[string]CharacterAsset{},
			Audio:       map[string]string{},
		},
	}
}

// Validate checks the manifest for values the runtime cannot use.
func (m *Manifest) Validate() error {
	var errs []error
	if strings.TrimSpace(m.Metadata.Name) == "" {
		errs = append(errs, errors.New("metadata.name is required"))
	}
	if m.Settings.Resolution[0] == 0 || m.Settings.Resolution[1] == 0 {
		errs = append(errs, fmt.Errorf("settings.resolution %dx%d must be positive", m.Settings.Resolution[0], m.Settings.Resolution[1]))
	}
	if m.Settings.DefaultLanguage == "" {
		errs = append(errs, errors.New("settings.default_language is required"))
	} else if !slices.Contains(m.Settings.SupportedLanguages, m.Settings.DefaultLanguage) {
		errs = append(errs, fmt.Errorf("default language %q is not in supported_languages", m.Settings.DefaultLanguage))
	}
	check := func(kind, id, p string) {
		if err := checkAssetPath(p); err != nil {
			errs = append(errs, fmt.Errorf("assets.%s[%s]: %w", kind, id, err))
		}
	}
	for _, id := range sortedKeys(m.Assets.Backgrounds) {
		check("backgrounds", id, m.Assets.Backgrounds[id])
	}
	for _, id := range sortedKeys(m.Assets.Characters) {
		c := m.Assets.Characters[id]
		check("characters", id, c.Path)
		if c.Scale != nil && *c.Scale <= 0 {
			errs = append(errs, fmt.Errorf("assets.characters[%s]: scale must be positive", id))
		}
	}
	for _, id := range sortedKeys(m.Assets.Audio) {
		check("audio", id, m.Assets.Audio[id])
	}
	return errors.Join(errs...)
}

// checkAssetPath accepts relative paths that stay inside the project root.
func checkAssetPath(p string) error {
	if strings.TrimSpace(p) == "" {
		return errors.New("empty path")
	}
	slash := filepath.ToSlash(p)
	if path.IsAbs(slash) || filepath.IsAbs(p) {
		return fmt.Errorf("path %q must be relative", p)
	}
	clean := path.Clean(slash)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("path %q escapes the project root", p)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Parse decodes manifest YAML, migrating older layouts first. The returned
// report is empty when the document was already current.
func Parse(b []byte) (*Manifest, *migrate.Report, error) {
	if len(b) > MaxManifestBytes {
		return nil, nil, fmt.Errorf("manifest is %d bytes, limit %d", len(b), MaxManifestBytes)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse manifest: %w", err)
	}
	if doc == nil {
		return nil, nil, errors.New("manifest is empty")
	}
	report, err := Migrate(doc)
	if err != nil {
		return nil, nil, err
	}
	// Round-trip through YAML to decode the migrated map into typed fields.
	norm, err := yaml.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("encode migrated manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(norm, &m); err != nil {
		return nil, nil, fmt.Errorf("decode manifest: %w", err)
	}
	m.fillMaps()
	if err := m.Validate(); err != nil {
		return nil, nil, err
	}
	return &m, report, nil
}

func (m *Manifest) fillMaps() {
	if m.Assets.Backgrounds == nil {
		m.Assets.Backgrounds = map[string]string{}
	}
	if m.Assets.Characters == nil {
		m.Assets.Characters = map[string]CharacterAsset{}
	}
	if m.Assets.Audio == nil {
		m.Assets.Audio = map[string]string{}
	}
}

// Load reads the manifest at path.
func Load(p string) (*Manifest, *migrate.Report, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, nil, fmt.Errorf("read manifest: %w", err)
	}
	m, report, err := Parse(b)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
	}
	if len(report.Entries) > 0 {
		applog.WithComponent("project").Info("manifest migrated",
			slog.String("file", p), slog.String("from", report.From), slog.String("to", report.To))
	}
	return m, report, nil
}

// Marshal encodes m as YAML stamped with the current schema version.
func (m *Manifest) Marshal() ([]byte, error) {
	c := *m
	c.SchemaVersion = ManifestVersion
	b, err := yaml.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return b, nil
}

// Save validates m and writes it to path through a temp file and rename.
func (m *Manifest) Save(p string) error {
	if err := m.Validate(); err != nil {
		return err
	}
	b, err := m.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}
