/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package migrate upgrades structured documents (scripts, project manifests)
// to their current schema version through named, traceable steps.
package migrate

import (
	"fmt"
	"strings"
)

// MaxSteps bounds a single migration run.
const MaxSteps = 8

// LegacyWildcard is the synthetic version that matches any "0.*" version
// without a dedicated step.
const LegacyWildcard = "0.x"

// ErrorKind classifies migration failures.
type ErrorKind int

const (
	InvalidEnvelope ErrorKind = iota + 1
	UnsupportedVersion
	StepFailed
)

// Error is returned by Chain.Migrate. The input document is restored to its
// pre-migration content whenever an Error is returned after a step ran.
type Error struct {
	Kind    ErrorKind
	Schema  string
	Version string
	StepID  string
	From    string
	To      string
	Msg     string
}

func (e *Error) Error() string {
	switch e.Kind {
	case InvalidEnvelope:
		return "invalid migration envelope: " + e.Msg
	case UnsupportedVersion:
		return fmt.Sprintf("unsupported %s schema version '%s'", e.Schema, e.Version)
	case StepFailed:
		return fmt.Sprintf("migration step '%s' failed (%s -> %s): %s", e.StepID, e.From, e.To, e.Msg)
	}
	return "migration error"
}

// Step upgrades a document from one version to the next. Apply reports
// whether it changed anything.
type Step struct {
	ID    string
	From  string
	To    string
	Apply func(doc map[string]any) (bool, error)
}

// Entry records one applied step.
type Entry struct {
	StepID  string `json:"step_id" yaml:"step_id"`
	From    string `json:"from_version" yaml:"from_version"`
	To      string `json:"to_version" yaml:"to_version"`
	Changed bool   `json:"changed" yaml:"changed"`
}

// Report is the trace of one migration run. Entries is empty when the
// document was already current.
type Report struct {
	From    string  `json:"from_version" yaml:"from_version"`
	To      string  `json:"to_version" yaml:"to_version"`
	Entries []Entry `json:"entries" yaml:"entries"`
}

// Changed reports whether any step modified the document.
func (r *Report) Changed() bool {
	for _, e := range r.Entries {
		if e.Changed {
			return true
		}
	}
	return false
}

// Chain is the ordered migration plan of one schema.
type Chain struct {
	// Schema names the document family in error messages ("script", "manifest").
	Schema  string
	Current string
	// Legacy is assumed when the document has no version field.
	Legacy string
	// VersionKeys are probed in order; the first is the one stamped after each step
	// and the rest are removed once a step ran.
	VersionKeys []string
	Steps       []Step
}

// DetectVersion returns the document's declared version, or Legacy when absent.
func (c *Chain) DetectVersion(doc map[string]any) (string, error) {
	for _, key := range c.VersionKeys {
		v, ok := doc[key]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return "", &Error{Kind: InvalidEnvelope, Schema: c.Schema, Msg: fmt.Sprintf("%s must be a string", key)}
		}
		return s, nil
	}
	return c.Legacy, nil
}

func (c *Chain) stepFrom(version string) (Step, bool) {
	for _, s := range c.Steps {
		if s.From == version {
			return s, true
		}
	}
	if strings.HasPrefix(version, "0.") {
		for _, s := range c.Steps {
			if s.From == LegacyWildcard {
				return s, true
			}
		}
	}
	return Step{}, false
}

// Migrate upgrades doc in place. Versions that are current, or outside the
// legacy "0." range, pass through with an empty report.
func (c *Chain) Migrate(doc map[string]any) (*Report, error) {
	if doc == nil {
		return nil, &Error{Kind: InvalidEnvelope, Schema: c.Schema, Msg: "document must be an object"}
	}
	from, err := c.DetectVersion(doc)
	if err != nil {
		return nil, err
	}
	report := &Report{From: from, To: from, Entries: []Entry{}}
	if from == c.Current || !strings.HasPrefix(from, "0.") {
		return report, nil
	}

	snapshot := cloneMap(doc)
	rollback := func() {
		for k := range doc {
			delete(doc, k)
		}
		for k, v := range snapshot {
			doc[k] = v
		}
	}

	version := from
	for i := 0; version != c.Current; i++ {
		if i >= MaxSteps {
			rollback()
			return nil, &Error{Kind: UnsupportedVersion, Schema: c.Schema, Version: version}
		}
		step, ok := c.stepFrom(version)
		if !ok {
			rollback()
			return nil, &Error{Kind: UnsupportedVersion, Schema: c.Schema, Version: version}
		}
		changed, err := step.Apply(doc)
		if err != nil {
			rollback()
			return nil, &Error{Kind: StepFailed, Schema: c.Schema, StepID: step.ID, From: version, To: step.To, Msg: err.Error()}
		}
		doc[c.VersionKeys[0]] = step.To
		for _, k := range c.VersionKeys[1:] {
			delete(doc, k)
		}
		report.Entries = append(report.Entries, Entry{StepID: step.ID, From: version, To: step.To, Changed: changed})
		version = step.To
	}
	report.To = version
	return report, nil
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}
