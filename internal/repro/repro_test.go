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
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/event"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/schema"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/script"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/security"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/vnerr"
)

func run(c *Case) *Report {
	return Run(c, security.Policy{}, security.DefaultLimits())
}

func newCase(t *testing.T, s *event.Script) *Case {
	t.Helper()
	c, err := NewCase("test", s)
	require.NoError(t, err)
	return c
}

func TestOracleHitOnSingleDialogue(t *testing.T) {
	c := newCase(t, &event.Script{
		Events: event.List{event.Dialogue{Speaker: "Ava", Text: "Hi"}},
		Labels: map[string]int{"start": 0},
	})
	finished := Finished
	c.Oracle.ExpectedStopReason = &finished
	c.Oracle.Monitors = []Monitor{EventKindAtStep("first_is_dialogue", 0, "Dialogue")}

	r := run(c)
	assert.Equal(t, Finished, r.StopReason)
	assert.Equal(t, "end of script", r.StopMessage)
	assert.True(t, r.SignatureMatch)
	assert.Equal(t, []string{"first_is_dialogue"}, r.MatchedMonitors)
	assert.Equal(t, "step=0 expected_kind='dialogue'", r.MonitorResults[0].Detail)
	assert.True(t, r.OracleTriggered)
	assert.Equal(t, 1, r.ExecutedSteps)
	_, err := uuid.Parse(r.RunID)
	assert.NoError(t, err)

	b, err := r.Marshal()
	require.NoError(t, err)
	require.NoError(t, schema.Validate(schema.ReproReport, b))
}

func TestStalledLoopIsDetected(t *testing.T) {
	c := newCase(t, &event.Script{
		Events: event.List{event.Jump{Target: "start"}},
		Labels: map[string]int{"start": 0},
	})
	c.Oracle.Monitors = []Monitor{
		StalledSignatureWindow("stalled", 4),
		StopMessageContains("limit", "step limit"),
	}

	r := run(c)
	assert.Equal(t, StepLimit, r.StopReason)
	assert.Equal(t, "step limit reached (2048)", r.StopMessage)
	assert.Equal(t, 2048, r.ExecutedSteps)
	assert.NotEmpty(t, r.Steps)
	assert.False(t, r.SignatureMatch)
	assert.Equal(t, []string{"stalled", "limit"}, r.MatchedMonitors)
	assert.Equal(t, "window=4", r.MonitorResults[0].Detail)
	assert.True(t, r.OracleTriggered)
}

func TestChoiceRouteAndVisualMonitors(t *testing.T) {
	c := newCase(t, &event.Script{
		Events: event.List{
			event.Scene{Background: event.Str("bg/a.png"), Characters: []event.Placement{{Name: "Ava"}, {Name: "Ben"}}},
			event.Choice{Prompt: "Go", Options: []event.ChoiceOption{{Text: "a", Target: "a"}, {Text: "b", Target: "b"}}},
			event.Dialogue{Speaker: "Ava", Text: "A"},
			event.Patch{Music: event.Str("b.ogg")},
			event.Dialogue{Speaker: "Ben", Text: "B"},
		},
		Labels: map[string]int{"start": 0, "a": 2, "b": 3},
	})
	c.ChoiceRoute = []int{7}
	c.Oracle.Monitors = []Monitor{
		VisualBackgroundAtStep("bg", 1, event.Str("bg/a.png")),
		VisualMusicAtStep("music", 3, event.Str("b.ogg")),
		CharacterCountAtLeast("cast", 0, 2),
		EventSignatureContains("ben", 3, "dialogue|Ben"),
		EventKindAtStep("missing", 40, "dialogue"),
	}

	r := run(c)
	require.Equal(t, Finished, r.StopReason)
	var ips []uint32
	for _, s := range r.Steps {
		ips = append(ips, s.EventIP)
	}
	assert.Equal(t, []uint32{0, 1, 3, 4}, ips)
	assert.Equal(t, []string{"bg", "music", "cast", "ben"}, r.MatchedMonitors)
	assert.Equal(t, `step=1 expected_bg="bg/a.png" got="bg/a.png"`, r.MonitorResults[0].Detail)
}

func TestExpectedIPAndKind(t *testing.T) {
	c := newCase(t, &event.Script{
		Events: event.List{
			event.Dialogue{Speaker: "A", Text: "x"},
			event.SetVar{Key: "v", Value: 1},
		},
		Labels: map[string]int{"start": 0},
	})
	ip := uint32(1)
	kind := " SET_VAR "
	c.Oracle.ExpectedEventIP = &ip
	c.Oracle.ExpectedEventKind = &kind
	assert.True(t, run(c).SignatureMatch)

	other := "dialogue"
	c.Oracle.ExpectedEventKind = &other
	assert.False(t, run(c).SignatureMatch)
}

func TestCompileAndInitErrors(t *testing.T) {
	c := newCase(t, &event.Script{
		Events: event.List{event.Jump{Target: "nowhere"}},
		Labels: map[string]int{"start": 0},
	})
	r := run(c)
	assert.Equal(t, CompileError, r.StopReason)
	assert.Contains(t, r.StopMessage, "compile failed: ")
	assert.Empty(t, r.Steps)
	assert.False(t, r.OracleTriggered)

	tight := security.DefaultLimits()
	c = newCase(t, &event.Script{
		Events: event.List{event.Dialogue{Speaker: "A", Text: "x"}, event.Dialogue{Speaker: "A", Text: "y"}},
		Labels: map[string]int{"start": 0},
	})
	tight.MaxEvents = 1
	r = Run(c, security.Policy{}, tight)
	assert.Equal(t, CompileError, r.StopReason)
}

func TestParseCase(t *testing.T) {
	c := newCase(t, &event.Script{
		Events: event.List{event.Dialogue{Speaker: "A", Text: "x"}},
		Labels: map[string]int{"start": 0},
	})
	c.Oracle.Monitors = []Monitor{StalledSignatureWindow("s", 3)}
	b, err := c.Marshal()
	require.NoError(t, err)

	back, err := ParseCase(b)
	require.NoError(t, err)
	assert.Equal(t, c.CaseID, back.CaseID)
	assert.Equal(t, c.Oracle, back.Oracle)
	assert.Equal(t, DefaultMaxSteps, back.MaxSteps)
	assert.NotEmpty(t, back.Environment["engine_version"])

	_, err = ParseCase([]byte(`{"schema": "vnengine.repro_case.v0", "title": "x", "script": {}, "oracle": {}}`))
	assert.Equal(t, vnerr.InvalidScript, vnerr.KindOf(err))

	_, err = ParseCase([]byte(`{"schema": "vnengine.repro_case.v1", "title": "x", "script": {}, "oracle": {"monitors": [{"type": "stalled_signature_window", "monitor_id": "w", "window": 1}]}}`))
	assert.Equal(t, vnerr.Serialization, vnerr.KindOf(err))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.Equal(t, CaseSchema, doc["schema"])
}

func TestMinimalScript(t *testing.T) {
	s := &event.Script{
		Events: event.List{
			event.Dialogue{Speaker: "A", Text: "0"},
			event.Dialogue{Speaker: "A", Text: "1"},
			event.Jump{Target: "three"},
			event.Dialogue{Speaker: "A", Text: "3"},
			event.Dialogue{Speaker: "A", Text: "4"},
		},
		Labels: map[string]int{"start": 0, "three": 3},
	}
	m, clamped := MinimalScript(s, 2, 1)
	assert.Zero(t, clamped)
	require.Len(t, m.Events, 3)
	assert.Equal(t, event.Jump{Target: "repro_2"}, m.Events[1])
	assert.Equal(t, 0, m.Labels["start"])
	assert.Equal(t, 2, m.Labels["repro_2"])
	assert.Equal(t, 3, m.Labels[EndLabel])
}

func TestMinimalScriptPointsOutsideTargetsAtEnd(t *testing.T) {
	s := &event.Script{
		Events: event.List{
			event.Dialogue{Speaker: "A", Text: "0"},
			event.Dialogue{Speaker: "A", Text: "1"},
			event.Choice{Prompt: "Go?", Options: []event.ChoiceOption{
				{Text: "back", Target: "start"},
				{Text: "here", Target: "two"},
			}},
			event.Jump{Target: "four"},
			event.Dialogue{Speaker: "A", Text: "4"},
		},
		Labels: map[string]int{"start": 0, "two": 2, "four": 4},
	}
	m, clamped := MinimalScript(s, 3, 1)
	assert.Equal(t, 1, clamped)
	require.Len(t, m.Events, 3)
	assert.Equal(t, event.Choice{Prompt: "Go?", Options: []event.ChoiceOption{
		{Text: "back", Target: EndLabel},
		{Text: "here", Target: "repro_0"},
	}}, m.Events[0])
	assert.Equal(t, event.Jump{Target: "repro_2"}, m.Events[1])

	m, clamped = MinimalScript(s, 3, 0)
	assert.Equal(t, 1, clamped)
	require.Len(t, m.Events, 1)
	assert.Equal(t, event.Jump{Target: EndLabel}, m.Events[0])
	assert.Equal(t, 1, m.Labels[EndLabel])

	_, err := script.Build(m, security.DefaultLimits(), security.Policy{})
	require.NoError(t, err)
}
