/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package localization holds per-locale string tables for scripts whose
// dialogue and choice text is written as "loc:<key>" references.
package localization

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/event"
)

// Prefix marks a script string as a catalog key.
const Prefix = "loc:"

// DefaultLocale is used when a catalog file names none.
const DefaultLocale = "en"

// MaxCatalogBytes caps catalog files accepted by Load and Parse.
const MaxCatalogBytes = 8 << 20

// Catalog maps locale codes to key/text tables. Lookups that miss in the
// requested locale fall back to DefaultLocale.
type Catalog struct {
	DefaultLocale string                       `yaml:"default_locale"`
	Locales       map[string]map[string]string `yaml:"locales"`
}

// New returns an empty catalog.
func New(defaultLocale string) *Catalog {
	return &Catalog{DefaultLocale: defaultLocale, Locales: map[string]map[string]string{}}
}

// SetLocale replaces the table for locale.
func (c *Catalog) SetLocale(locale string, entries map[string]string) {
	if c.Locales == nil {
		c.Locales = map[string]map[string]string{}
	}
	c.Locales[locale] = entries
}

// LocaleCodes returns the locale codes in lexicographic order.
func (c *Catalog) LocaleCodes() []string {
	codes := make([]string, 0, len(c.Locales))
	for k := range c.Locales {
		codes = append(codes, k)
	}
	sort.Strings(codes)
	return codes
}

// Resolve looks key up in locale, then in the default locale.
func (c *Catalog) Resolve(locale, key string) (string, bool) {
	if s, ok := c.Locales[locale][key]; ok {
		return s, true
	}
	s, ok := c.Locales[c.DefaultLocale][key]
	return s, ok
}

// ResolveOrKey is Resolve that returns key itself when nothing matches.
func (c *Catalog) ResolveOrKey(locale, key string) string {
	if s, ok := c.Resolve(locale, key); ok {
		return s
	}
	return key
}

// IssueKind classifies a catalog problem.
type IssueKind int

const (
	// MissingKey: the script references a key the locale lacks.
	MissingKey IssueKind = iota
	// OrphanKey: the locale defines a key nothing references.
	OrphanKey
)

func (k IssueKind) String() string {
	switch k {
	case MissingKey:
		return "missing_key"
	case OrphanKey:
		return "orphan_key"
	default:
		return fmt.Sprintf("IssueKind(%d)", int(k))
	}
}

type Issue struct {
	Locale string
	Key    string
	Kind   IssueKind
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s %q", i.Locale, i.Kind, i.Key)
}

// ValidateKeys checks every locale against the required key set. Blank
// keys are ignored. Issues are ordered by locale, then missing keys before
// orphans, each sorted by key.
func (c *Catalog) ValidateKeys(required []string) []Issue {
	want := make(map[string]struct{}, len(required))
	for _, k := range required {
		if k = strings.TrimSpace(k); k != "" {
			want[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var issues []Issue
	for _, locale := range c.LocaleCodes() {
		table := c.Locales[locale]
		for _, k := range keys {
			if _, ok := table[k]; !ok {
				issues = append(issues, Issue{Locale: locale, Key: k, Kind: MissingKey})
			}
		}
		defined := make([]string, 0, len(table))
		for k := range table {
			if _, ok := want[k]; !ok {
				defined = append(defined, k)
			}
		}
		sort.Strings(defined)
		for _, k := range defined {
			issues = append(issues, Issue{Locale: locale, Key: k, Kind: OrphanKey})
		}
	}
	return issues
}

// Key reports the catalog key of a "loc:" string.
func Key(s string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), Prefix)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// ScriptKeys collects the non-empty keys referenced by dialogue speakers and
// text, choice prompts and choice options, sorted and deduplicated.
func ScriptKeys(s *event.Script) []string {
	var out []string
	add := func(v string) {
		if k, ok := Key(v); ok && k != "" {
			out = append(out, k)
		}
	}
	for _, ev := range s.Events {
		switch e := ev.(type) {
		case event.Dialogue:
			add(e.Speaker)
			add(e.Text)
		case event.Choice:
			add(e.Prompt)
			for _, o := range e.Options {
				add(o.Text)
			}
		}
	}
	sort.Strings(out)
	return slices.Compact(out)
}

// Parse decodes a YAML catalog.
func Parse(b []byte) (*Catalog, error) {
	if len(b) > MaxCatalogBytes {
		return nil, fmt.Errorf("catalog is %d bytes, limit %d", len(b), MaxCatalogBytes)
	}
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c.DefaultLocale = strings.TrimSpace(c.DefaultLocale)
	if c.DefaultLocale == "" {
		c.DefaultLocale = DefaultLocale
	}
	if c.Locales == nil {
		c.Locales = map[string]map[string]string{}
	}
	for code, table := range c.Locales {
		if strings.TrimSpace(code) == "" {
			return nil, errors.New("catalog has an empty locale code")
		}
		if table == nil {
			c.Locales[code] = map[string]string{}
		}
	}
	return &c, nil
}

// Load reads and parses the catalog file at path.
func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(b)
}
