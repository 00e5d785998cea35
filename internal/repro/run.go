/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package repro

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/dryrun"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/engine"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/event"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/script"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/security"
)

type MonitorResult struct {
	MonitorID string `json:"monitor_id"`
	Matched   bool   `json:"matched"`
	Detail    string `json:"detail"`
}

// Report is the verdict of one replay.
type Report struct {
	Schema          string             `json:"schema"`
	RunID           string             `json:"run_id"`
	CaseID          string             `json:"case_id,omitempty"`
	StopReason      StopReason         `json:"stop_reason"`
	StopMessage     string             `json:"stop_message"`
	FailingEventIP  *uint32            `json:"failing_event_ip"`
	ExecutedSteps   int                `json:"executed_steps"`
	MaxSteps        int                `json:"max_steps"`
	Steps           []dryrun.StepTrace `json:"steps"`
	MonitorResults  []MonitorResult    `json:"monitor_results"`
	MatchedMonitors []string           `json:"matched_monitors"`
	SignatureMatch  bool               `json:"signature_match"`
	OracleTriggered bool               `json:"oracle_triggered"`
}

// Marshal encodes the report as indented JSON.
func (r *Report) Marshal() ([]byte, error) {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode repro report: %w", err)
	}
	return b, nil
}

// Run replays c under the given policy and limits. Failures to load, compile
// or start the script are reported through StopReason, never returned.
func Run(c *Case, policy security.Policy, limits security.Limits) *Report {
	maxSteps := c.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	r := &Report{
		Schema:          ReportSchema,
		RunID:           uuid.NewString(),
		CaseID:          c.CaseID,
		MaxSteps:        maxSteps,
		Steps:           []dryrun.StepTrace{},
		MonitorResults:  []MonitorResult{},
		MatchedMonitors: []string{},
	}
	r.StopReason, r.StopMessage = execute(c, maxSteps, policy, limits, r)
	r.ExecutedSteps = len(r.Steps)
	r.SignatureMatch = matchesSignature(c.Oracle, r)
	for _, m := range c.Oracle.Monitors {
		res := evaluate(m, r)
		r.MonitorResults = append(r.MonitorResults, res)
		if res.Matched {
			r.MatchedMonitors = append(r.MatchedMonitors, res.MonitorID)
		}
	}
	r.OracleTriggered = r.SignatureMatch || len(r.MatchedMonitors) > 0
	return r
}

func execute(c *Case, maxSteps int, policy security.Policy, limits security.Limits, r *Report) (StopReason, string) {
	raw, _, err := script.LoadMigrated(c.Script, limits)
	if err == nil {
		err = policy.ValidateRaw(raw, limits)
	}
	if err != nil {
		return CompileError, fmt.Sprintf("compile failed: %v", err)
	}
	compiled, err := script.Compile(raw)
	if err != nil {
		return CompileError, fmt.Sprintf("compile failed: %v", err)
	}
	e, err := engine.New(compiled, policy, limits)
	if err != nil {
		return InitError, fmt.Sprintf("engine init failed: %v", err)
	}
	o := dryrun.Execute(e, maxSteps, dryrun.Scripted(c.ChoiceRoute))
	r.Steps = o.Steps
	r.FailingEventIP = o.FailingEventIP
	switch o.Reason {
	case dryrun.StepLimit:
		return StepLimit, fmt.Sprintf("step limit reached (%d)", maxSteps)
	case dryrun.RuntimeError:
		return RuntimeError, fmt.Sprintf("step failed: %v", o.Err)
	}
	return Finished, "end of script"
}

// foldKind folds an event kind for case-insensitive comparison. A Caser
// keeps state, so each call gets its own.
func foldKind(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

func sameKind(got event.Kind, want string) bool {
	return foldKind(string(got)) == foldKind(want)
}

func matchesSignature(o Oracle, r *Report) bool {
	kind := ""
	if o.ExpectedEventKind != nil {
		kind = strings.TrimSpace(*o.ExpectedEventKind)
	}
	if o.ExpectedStopReason == nil && o.ExpectedEventIP == nil && kind == "" {
		return false
	}
	if o.ExpectedStopReason != nil && *o.ExpectedStopReason != r.StopReason {
		return false
	}
	if o.ExpectedEventIP != nil {
		failed := r.FailingEventIP != nil && *r.FailingEventIP == *o.ExpectedEventIP
		if !failed && stepAt(r.Steps, *o.ExpectedEventIP) == nil {
			return false
		}
	}
	if kind != "" {
		if o.ExpectedEventIP != nil {
			s := stepAt(r.Steps, *o.ExpectedEventIP)
			return s != nil && sameKind(s.EventKind, kind)
		}
		for _, s := range r.Steps {
			if sameKind(s.EventKind, kind) {
				return true
			}
		}
		return false
	}
	return true
}

func stepAt(steps []dryrun.StepTrace, ip uint32) *dryrun.StepTrace {
	for i := range steps {
		if steps[i].EventIP == ip {
			return &steps[i]
		}
	}
	return nil
}

func traceAt(r *Report, step int) *dryrun.StepTrace {
	if step < 0 || step >= len(r.Steps) {
		return nil
	}
	return &r.Steps[step]
}

func optText(s *string) string {
	if s == nil {
		return "none"
	}
	return strconv.Quote(*s)
}

func sameOpt(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func evaluate(m Monitor, r *Report) MonitorResult {
	res := MonitorResult{MonitorID: m.ID}
	t := traceAt(r, m.Step)
	switch m.Type {
	case MonitorEventKindAtStep:
		want := ""
		if m.Expected != nil {
			want = foldKind(*m.Expected)
		}
		res.Matched = t != nil && want != "" && sameKind(t.EventKind, want)
		res.Detail = fmt.Sprintf("step=%d expected_kind='%s'", m.Step, want)
	case MonitorEventSignatureContains:
		res.Matched = t != nil && strings.Contains(t.EventSignature, m.Needle)
		res.Detail = fmt.Sprintf("step=%d needle='%s'", m.Step, m.Needle)
	case MonitorVisualBackgroundAtStep:
		var got *string
		if t != nil {
			got = t.VisualBackground
		}
		res.Matched = sameOpt(got, m.Expected)
		res.Detail = fmt.Sprintf("step=%d expected_bg=%s got=%s", m.Step, optText(m.Expected), optText(got))
	case MonitorVisualMusicAtStep:
		var got *string
		if t != nil {
			got = t.VisualMusic
		}
		res.Matched = sameOpt(got, m.Expected)
		res.Detail = fmt.Sprintf("step=%d expected_music=%s got=%s", m.Step, optText(m.Expected), optText(got))
	case MonitorCharacterCountAtLeast:
		got := 0
		if t != nil {
			got = t.CharacterCount
		}
		res.Matched = got >= m.Min
		res.Detail = fmt.Sprintf("step=%d min_chars=%d got=%d", m.Step, m.Min, got)
	case MonitorStopMessageContains:
		res.Matched = strings.Contains(r.StopMessage, m.Needle)
		res.Detail = fmt.Sprintf("stop_message contains '%s'", m.Needle)
	case MonitorStalledSignatureWindow:
		window := max(m.Window, 2)
		streak := 1
		for i := 1; i < len(r.Steps); i++ {
			if r.Steps[i].EventSignature != r.Steps[i-1].EventSignature {
				streak = 1
				continue
			}
			streak++
			if streak >= window {
				res.Matched = true
				break
			}
		}
		res.Detail = fmt.Sprintf("window=%d", window)
	default:
		res.Detail = fmt.Sprintf("unknown monitor type '%s'", m.Type)
	}
	return res
}
