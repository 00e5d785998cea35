/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package repro packages a script, a choice route and an oracle into a
// self-contained case document, replays it deterministically and reports
// whether the oracle fired.
package repro

import (
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/event"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/schema"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/script"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/version"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/vnerr"
)

const (
	CaseSchema      = "vnengine.repro_case.v1"
	ReportSchema    = "vnengine.repro_run_report.v1"
	DefaultMaxSteps = 2048
)

type StopReason string

const (
	Finished     StopReason = "finished"
	StepLimit    StopReason = "step_limit"
	RuntimeError StopReason = "runtime_error"
	CompileError StopReason = "compile_error"
	InitError    StopReason = "init_error"
)

// Case is a repro case document. Script holds the raw script text verbatim
// so legacy scripts replay through the same migration path as on load.
type Case struct {
	Schema        string            `json:"schema"`
	CaseID        string            `json:"case_id,omitempty"`
	Title         string            `json:"title"`
	CreatedUnixMs int64             `json:"created_unix_ms"`
	Script        json.RawMessage   `json:"script"`
	MaxSteps      int               `json:"max_steps"`
	ChoiceRoute   []int             `json:"choice_route"`
	Environment   map[string]string `json:"environment"`
	Oracle        Oracle            `json:"oracle"`
	Notes         *string           `json:"notes,omitempty"`
}

// Oracle declares what the reporter expected to see.
type Oracle struct {
	ExpectedStopReason *StopReason `json:"expected_stop_reason,omitempty"`
	ExpectedEventIP    *uint32     `json:"expected_event_ip,omitempty"`
	ExpectedEventKind  *string     `json:"expected_event_kind,omitempty"`
	Monitors           []Monitor   `json:"monitors"`
}

type MonitorType string

const (
	MonitorEventKindAtStep        MonitorType = "event_kind_at_step"
	MonitorEventSignatureContains MonitorType = "event_signature_contains"
	MonitorVisualBackgroundAtStep MonitorType = "visual_background_at_step"
	MonitorVisualMusicAtStep      MonitorType = "visual_music_at_step"
	MonitorCharacterCountAtLeast  MonitorType = "character_count_at_least"
	MonitorStopMessageContains    MonitorType = "stop_message_contains"
	MonitorStalledSignatureWindow MonitorType = "stalled_signature_window"
)

// Monitor is one declarative check over the step trace, tagged by Type.
// Only the fields its type uses are set.
type Monitor struct {
	Type     MonitorType `json:"type"`
	ID       string      `json:"monitor_id"`
	Step     int         `json:"step,omitempty"`
	Expected *string     `json:"expected,omitempty"`
	Needle   string      `json:"needle,omitempty"`
	Min      int         `json:"min,omitempty"`
	Window   int         `json:"window,omitempty"`
}

func EventKindAtStep(id string, step int, kind string) Monitor {
	return Monitor{Type: MonitorEventKindAtStep, ID: id, Step: step, Expected: &kind}
}

func EventSignatureContains(id string, step int, needle string) Monitor {
	return Monitor{Type: MonitorEventSignatureContains, ID: id, Step: step, Needle: needle}
}

func VisualBackgroundAtStep(id string, step int, expected *string) Monitor {
	return Monitor{Type: MonitorVisualBackgroundAtStep, ID: id, Step: step, Expected: expected}
}

func VisualMusicAtStep(id string, step int, expected *string) Monitor {
	return Monitor{Type: MonitorVisualMusicAtStep, ID: id, Step: step, Expected: expected}
}

func CharacterCountAtLeast(id string, step, least int) Monitor {
	return Monitor{Type: MonitorCharacterCountAtLeast, ID: id, Step: step, Min: least}
}

func StopMessageContains(id, needle string) Monitor {
	return Monitor{Type: MonitorStopMessageContains, ID: id, Needle: needle}
}

func StalledSignatureWindow(id string, window int) Monitor {
	return Monitor{Type: MonitorStalledSignatureWindow, ID: id, Window: window}
}

// NewCase wraps raw in a case with a fresh id and the current environment.
func NewCase(title string, raw *event.Script) (*Case, error) {
	text, err := script.Encode(raw)
	if err != nil {
		return nil, fmt.Errorf("encode repro script: %w", err)
	}
	return &Case{
		Schema:        CaseSchema,
		CaseID:        uuid.NewString(),
		Title:         title,
		CreatedUnixMs: time.Now().UnixMilli(),
		Script:        text,
		MaxSteps:      DefaultMaxSteps,
		ChoiceRoute:   []int{},
		Environment:   Environment(),
		Oracle:        Oracle{Monitors: []Monitor{}},
	}, nil
}

// Environment snapshots the host the case was recorded on.
func Environment() map[string]string {
	family := "unix"
	if runtime.GOOS == "windows" {
		family = "windows"
	}
	return map[string]string{
		"os":             runtime.GOOS,
		"arch":           runtime.GOARCH,
		"family":         family,
		"go_version":     runtime.Version(),
		"engine_version": version.Version,
	}
}

// ParseCase decodes and checks a case document. Missing max_steps defaults
// to DefaultMaxSteps.
func ParseCase(b []byte) (*Case, error) {
	var c Case
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, &vnerr.Error{Kind: vnerr.Serialization, Reason: "invalid repro JSON: " + err.Error()}
	}
	if c.Schema != CaseSchema {
		return nil, vnerr.Invalid("unsupported repro schema '%s'", c.Schema)
	}
	if err := schema.Validate(schema.ReproCase, b); err != nil {
		return nil, &vnerr.Error{Kind: vnerr.Serialization, Reason: err.Error()}
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	if c.ChoiceRoute == nil {
		c.ChoiceRoute = []int{}
	}
	if c.Environment == nil {
		c.Environment = map[string]string{}
	}
	if c.Oracle.Monitors == nil {
		c.Oracle.Monitors = []Monitor{}
	}
	return &c, nil
}

// Marshal encodes the case as indented JSON.
func (c *Case) Marshal() ([]byte, error) {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode repro case: %w", err)
	}
	return b, nil
}
