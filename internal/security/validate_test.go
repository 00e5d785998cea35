/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package security

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/compiled"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/event"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/vnerr"
)

func kindOf(t *testing.T, err error) vnerr.Kind {
	t.Helper()
	var ve *vnerr.Error
	if !errors.As(err, &ve) {
		t.Fatalf("expected *vnerr.Error, got %v", err)
	}
	return ve.Kind
}

func rawScript(events ...event.Event) *event.Script {
	return &event.Script{Events: events, Labels: map[string]int{"start": 0, "end": len(events)}}
}

func TestValidateRawAcceptsTerminalLabel(t *testing.T) {
	s := rawScript(
		event.Dialogue{Speaker: "Ava", Text: "Hi"},
		event.Jump{Target: "end"},
	)
	if err := (Policy{}).ValidateRaw(s, DefaultLimits()); err != nil {
		t.Fatalf("ValidateRaw: %v", err)
	}
}

func TestValidateRawRejects(t *testing.T) {
	nan := float32(math.NaN())
	long := strings.Repeat("x", 200)
	cases := []struct {
		name string
		s    *event.Script
		kind vnerr.Kind
	}{
		{"empty speaker", rawScript(event.Dialogue{Speaker: " ", Text: "x"}), vnerr.SecurityPolicy},
		{"missing start", &event.Script{Labels: map[string]int{}}, vnerr.InvalidScript},
		{"label past end", &event.Script{Labels: map[string]int{"start": 2}}, vnerr.InvalidScript},
		{"unknown jump", rawScript(event.Jump{Target: "nowhere"}), vnerr.InvalidScript},
		{"empty choice", rawScript(event.Choice{Prompt: "?"}), vnerr.InvalidScript},
		{"long asset", rawScript(event.Scene{Background: &long}), vnerr.ResourceLimit},
		{"nan scale", rawScript(event.SetCharacterPosition{Name: "Ava", Scale: &nan}), vnerr.InvalidScript},
		{"long ext command", rawScript(event.ExtCall{Command: long}), vnerr.ResourceLimit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := (Policy{}).ValidateRaw(tc.s, DefaultLimits())
			if got := kindOf(t, err); got != tc.kind {
				t.Fatalf("kind = %v, want %v (%v)", got, tc.kind, err)
			}
		})
	}
}

func TestPolicyAllowsEmptySpeaker(t *testing.T) {
	s := rawScript(event.Dialogue{Speaker: "", Text: "narration"})
	if err := (Policy{AllowEmptySpeaker: true}).ValidateRaw(s, DefaultLimits()); err != nil {
		t.Fatalf("ValidateRaw: %v", err)
	}
}

func TestEventCountLimit(t *testing.T) {
	l := DefaultLimits()
	l.MaxEvents = 1
	s := rawScript(event.Dialogue{Speaker: "A", Text: "1"}, event.Dialogue{Speaker: "A", Text: "2"})
	if kindOf(t, (Policy{}).ValidateRaw(s, l)) != vnerr.ResourceLimit {
		t.Fatalf("expected ResourceLimit")
	}
}

func TestValidateCompiled(t *testing.T) {
	good := &compiled.Script{
		Events:    []compiled.Event{compiled.SetFlag{FlagID: 0, Value: true}, compiled.Jump{TargetIP: 2}},
		Labels:    map[string]uint32{"start": 0},
		FlagCount: 1,
	}
	if err := (Policy{}).ValidateCompiled(good, DefaultLimits()); err != nil {
		t.Fatalf("ValidateCompiled: %v", err)
	}

	badJump := &compiled.Script{
		Events: []compiled.Event{compiled.Jump{TargetIP: 5}},
		Labels: map[string]uint32{"start": 0},
	}
	if kindOf(t, (Policy{}).ValidateCompiled(badJump, DefaultLimits())) != vnerr.InvalidScript {
		t.Fatalf("out-of-range jump accepted")
	}

	badFlag := &compiled.Script{
		Events: []compiled.Event{compiled.SetFlag{FlagID: 1}},
		Labels: map[string]uint32{"start": 0},
	}
	if kindOf(t, (Policy{}).ValidateCompiled(badFlag, DefaultLimits())) != vnerr.InvalidScript {
		t.Fatalf("out-of-range flag accepted")
	}

	startMismatch := &compiled.Script{StartIP: 0, Labels: map[string]uint32{}}
	if kindOf(t, (Policy{}).ValidateCompiled(startMismatch, DefaultLimits())) != vnerr.InvalidScript {
		t.Fatalf("missing start label accepted")
	}
}
