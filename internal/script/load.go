/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package script turns raw script text into a validated compiled script.
// It covers the loader (JSON text to event.Script) and the compiler
// (event.Script to compiled.Script).
package script

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/event"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/migrate"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/schema"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/security"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/vnerr"
)

// errorContext is how many bytes of source are kept on each side of a parse error.
const errorContext = 160

type versionProbe struct {
	SchemaVersion       *string `json:"schema_version"`
	LegacySchemaVersion *string `json:"script_schema_version"`
}

func (p versionProbe) version() (string, bool) {
	switch {
	case p.SchemaVersion != nil:
		return *p.SchemaVersion, true
	case p.LegacySchemaVersion != nil:
		return *p.LegacySchemaVersion, true
	}
	return "", false
}

// Load parses a raw script. A present schema version must equal the current
// one; a missing version is accepted as legacy and left empty. Callers holding
// older documents should use LoadMigrated.
func Load(text []byte, limits security.Limits) (*event.Script, error) {
	var probe versionProbe
	if err := json.Unmarshal(text, &probe); err != nil {
		return nil, parseError(text, err)
	}
	version, present := probe.version()
	if present && version != event.SchemaVersion {
		return nil, vnerr.Invalid("schema incompatible: found %s, expected %s", version, event.SchemaVersion)
	}
	if err := schema.Validate(schema.RawScript, text); err != nil {
		return nil, &vnerr.Error{Kind: vnerr.Serialization, Reason: err.Error()}
	}
	var s event.Script
	if err := json.Unmarshal(text, &s); err != nil {
		return nil, parseError(text, err)
	}
	s.SchemaVersion = version
	if s.Labels == nil {
		s.Labels = map[string]int{}
	}
	if err := CheckBudget(&s, limits.MaxScriptBytes); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadMigrated upgrades text to the current schema, then loads it.
func LoadMigrated(text []byte, limits security.Limits) (*event.Script, *migrate.Report, error) {
	var doc map[string]any
	dec := json.NewDecoder(bytes.NewReader(text))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, nil, parseError(text, err)
	}
	report, err := migrate.Script(doc)
	if err != nil {
		return nil, nil, err
	}
	migrated, err := json.Marshal(doc)
	if err != nil {
		return nil, report, fmt.Errorf("re-encode migrated script: %w", err)
	}
	s, err := Load(migrated, limits)
	return s, report, err
}

// CheckBudget enforces the script byte budget: label key lengths first, then
// the user-visible string bytes of each event in order.
func CheckBudget(s *event.Script, maxBytes int) error {
	total := 0
	for name := range s.Labels {
		total += len(name)
	}
	if total > maxBytes {
		return vnerr.Limit("script string budget (labels)")
	}
	for _, ev := range s.Events {
		total += ev.StringBytes()
		if total > maxBytes {
			return vnerr.Limit("script string budget")
		}
	}
	return nil
}

// Encode writes s as indented JSON with the current schema version stamped.
func Encode(s *event.Script) ([]byte, error) {
	out := *s
	out.SchemaVersion = event.SchemaVersion
	return json.MarshalIndent(&out, "", "  ")
}

func parseError(text []byte, err error) *vnerr.Error {
	offset := -1
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syn):
		offset = int(syn.Offset) - 1
	case errors.As(err, &typ):
		offset = int(typ.Offset) - 1
	}
	e := &vnerr.Error{Kind: vnerr.Serialization, Reason: err.Error()}
	if offset < 0 {
		return e
	}
	if offset >= len(text) {
		offset = len(text) - 1
	}
	if offset < 0 {
		offset = 0
	}
	window, local := sourceWindow(text, offset)
	span := 1
	if rest := len(window) - local; rest < span {
		span = rest
	}
	e.Window = window
	e.Span = &vnerr.Span{Offset: local, Length: span}
	return e
}

// sourceWindow cuts up to errorContext bytes on each side of offset, widened
// to UTF-8 character boundaries.
func sourceWindow(text []byte, offset int) (string, int) {
	start := offset - errorContext
	if start < 0 {
		start = 0
	}
	end := offset + 1 + errorContext
	if end > len(text) {
		end = len(text)
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}
	return string(text[start:end]), offset - start
}
