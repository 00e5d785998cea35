/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package project

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestNewDefaults(t *testing.T) {
	m := New("Test Project", "Tester")
	if m.Settings.Resolution != [2]uint32{1280, 720} || m.Settings.DefaultLanguage != "en" {
		t.Fatalf("settings = %+v", m.Settings)
	}
	if m.Metadata.Version != "0.1.0" || m.SchemaVersion != ManifestVersion {
		t.Fatalf("metadata = %+v version %q", m.Metadata, m.SchemaVersion)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := New("Night Market", "Ava")
	scale := float32(0.8)
	m.Assets.Backgrounds["market"] = "bg/market.png"
	m.Assets.Characters["ava"] = CharacterAsset{Path: "chars/ava.png", Scale: &scale}
	m.Assets.Audio["theme"] = "audio/theme.ogg"
	path := filepath.Join(t.TempDir(), "proj", FileName)
	if err := m.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, report, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(report.Entries) != 0 {
		t.Fatalf("current manifest should not migrate: %+v", report)
	}
	if !reflect.DeepEqual(got, m) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, m)
	}
}

const legacyManifest = `name: Old Project
author: Someone
resolution: 1920x1080
language: de
assets:
  characters:
    bob: chars/bob.png
`

func TestLegacyManifestMigrates(t *testing.T) {
	m, report, err := Parse([]byte(legacyManifest))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if report.From != LegacyManifestVersion || report.To != ManifestVersion || !report.Changed() {
		t.Fatalf("report = %+v", report)
	}
	if m.Metadata.Name != "Old Project" || m.Metadata.Author != "Someone" || m.Metadata.Version != "0.1.0" {
		t.Fatalf("metadata = %+v", m.Metadata)
	}
	if m.Settings.Resolution != [2]uint32{1920, 1080} {
		t.Fatalf("resolution = %v", m.Settings.Resolution)
	}
	if m.Settings.DefaultLanguage != "de" || !reflect.DeepEqual(m.Settings.SupportedLanguages, []string{"de"}) {
		t.Fatalf("languages = %+v", m.Settings)
	}
	if m.Assets.Characters["bob"].Path != "chars/bob.png" || m.Assets.Characters["bob"].Scale != nil {
		t.Fatalf("characters = %+v", m.Assets.Characters)
	}
}

func TestMigrationIsIdempotent(t *testing.T) {
	var doc map[string]any
	if err := yaml.Unmarshal([]byte(legacyManifest), &doc); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if _, err := Migrate(doc); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	once, err := yaml.Marshal(doc)
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	report, err := Migrate(doc)
	if err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	twice, err := yaml.Marshal(doc)
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if len(report.Entries) != 0 || string(once) != string(twice) {
		t.Fatalf("second migration changed the document:\n%s\n---\n%s", once, twice)
	}
	if doc["manifest_schema_version"] != ManifestVersion {
		t.Fatalf("version not stamped: %v", doc["manifest_schema_version"])
	}
}

func TestBadResolutionRollsBack(t *testing.T) {
	var doc map[string]any
	if err := yaml.Unmarshal([]byte("name: X\nresolution: wide\n"), &doc); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if _, err := Migrate(doc); err == nil || !strings.Contains(err.Error(), "manifest_legacy_to_1_0") {
		t.Fatalf("expected step failure, got %v", err)
	}
	if doc["resolution"] != "wide" || doc["metadata"] != nil {
		t.Fatalf("document not restored: %+v", doc)
	}
}

func TestValidateRejects(t *testing.T) {
	m := New("", "x")
	m.Settings.Resolution = [2]uint32{0, 720}
	m.Settings.DefaultLanguage = "fr"
	m.Assets.Backgrounds["escape"] = "../outside.png"
	m.Assets.Audio["abs"] = "/etc/passwd"
	err := m.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{"metadata.name", "resolution", `"fr"`, "escapes", "relative"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
	if err := m.Save(filepath.Join(t.TempDir(), FileName)); err == nil {
		t.Fatalf("Save accepted an invalid manifest")
	}
}

func TestParseRejectsOversizeAndEmpty(t *testing.T) {
	if _, _, err := Parse(make([]byte, MaxManifestBytes+1)); err == nil {
		t.Fatalf("oversize manifest accepted")
	}
	if _, _, err := Parse([]byte("")); err == nil {
		t.Fatalf("empty manifest accepted")
	}
	if _, _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing file: %v", err)
	}
}

