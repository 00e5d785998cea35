/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package project

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/migrate"
)

// ManifestVersion is the current manifest schema version.
const ManifestVersion = "1.0"

// LegacyManifestVersion is assumed for manifests without a version field.
const LegacyManifestVersion = "0.9"

// Chain upgrades manifest documents. Legacy manifests kept name, author and
// a "WIDTHxHEIGHT" resolution at the top level and a single language key.
var Chain = migrate.Chain{
	Schema:      "manifest",
	Current:     ManifestVersion,
	Legacy:      LegacyManifestVersion,
	VersionKeys: []string{"manifest_schema_version", "schema_version"},
	Steps: []migrate.Step{
		{ID: "manifest_legacy_to_1_0", From: migrate.LegacyWildcard, To: ManifestVersion, Apply: manifestLegacyTo10},
	},
}

// Migrate upgrades a decoded manifest document in place. Running it on its
// own output changes nothing.
func Migrate(doc map[string]any) (*migrate.Report, error) {
	return Chain.Migrate(doc)
}

func manifestLegacyTo10(doc map[string]any) (bool, error) {
	changed := false
	section := func(key string) (map[string]any, error) {
		v, ok := doc[key]
		if !ok || v == nil {
			m := map[string]any{}
			doc[key] = m
			changed = true
			return m, nil
		}
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s must be a mapping", key)
		}
		return m, nil
	}
	meta, err := section("metadata")
	if err != nil {
		return false, err
	}
	settings, err := section("settings")
	if err != nil {
		return false, err
	}
	assets, err := section("assets")
	if err != nil {
		return false, err
	}

	for _, key := range []string{"name", "author", "version", "description"} {
		v, ok := doc[key]
		if !ok {
			continue
		}
		if _, exists := meta[key]; !exists {
			meta[key] = v
		}
		delete(doc, key)
		changed = true
	}
	if _, ok := meta["version"]; !ok {
		meta["version"] = "0.1.0"
		changed = true
	}

	if v, ok := doc["resolution"]; ok {
		if _, exists := settings["resolution"]; !exists {
			settings["resolution"] = v
		}
		delete(doc, "resolution")
		changed = true
	}
	if s, ok := settings["resolution"].(string); ok {
		w, h, err := parseResolution(s)
		if err != nil {
			return false, err
		}
		settings["resolution"] = []any{w, h}
		changed = true
	}
	if _, ok := settings["resolution"]; !ok {
		settings["resolution"] = []any{1280, 720}
		changed = true
	}

	lang, _ := doc["language"].(string)
	if _, ok := doc["language"]; ok {
		delete(doc, "language")
		changed = true
	}
	if lang == "" {
		lang, _ = settings["default_language"].(string)
	}
	if lang == "" {
		lang = "en"
	}
	if _, ok := settings["default_language"]; !ok {
		settings["default_language"] = lang
		changed = true
	}
	if _, ok := settings["supported_languages"]; !ok {
		settings["supported_languages"] = []any{lang}
		changed = true
	}

	for _, key := range []string{"backgrounds", "characters", "audio"} {
		if _, ok := assets[key]; !ok {
			assets[key] = map[string]any{}
			changed = true
		}
	}
	// Characters were once a bare path per id.
	if chars, ok := assets["characters"].(map[string]any); ok {
		for id, v := range chars {
			if p, ok := v.(string); ok {
				chars[id] = map[string]any{"path": p}
				changed = true
			}
		}
	}
	return changed, nil
}

func parseResolution(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("resolution %q is not WIDTHxHEIGHT", s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(ws))
	if err != nil {
		return 0, 0, fmt.Errorf("resolution width %q: %w", ws, err)
	}
	h, err := strconv.Atoi(strings.TrimSpace(hs))
	if err != nil {
		return 0, 0, fmt.Errorf("resolution height %q: %w", hs, err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("resolution %q must be positive", s)
	}
	return w, h, nil
}
