/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
	"unsafe"

	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/compiled"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/event"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/security"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/vnerr"
)

func sampleScript() *event.Script {
	vol := float32(0.8)
	fade := uint64(250)
	scale := float32(1.5)
	return &event.Script{
		SchemaVersion: event.SchemaVersion,
		Events: event.List{
			event.Scene{Background: event.Str("forest.png"), Music: event.Str("theme.ogg"),
				Characters: []event.Placement{{Name: "Ava", Expression: event.Str("smile")}}},
			event.Dialogue{Speaker: "Ava", Text: "Hello"},
			event.SetFlag{Key: "met_ava", Value: true},
			event.SetVar{Key: "gold", Value: -3},
			event.JumpIf{Cond: event.Cond{Kind: event.CondFlag, Key: "seen_intro", IsSet: true}, Target: "end"},
			event.JumpIf{Cond: event.Cond{Kind: event.CondVarCmp, Key: "gold", Op: event.OpLt, Value: 0}, Target: "end"},
			event.Choice{Prompt: "Go?", Options: []event.ChoiceOption{{Text: "Yes", Target: "end"}, {Text: "No", Target: "start"}}},
			event.Patch{Music: event.Str("battle.ogg"), Remove: []string{"Ava"}},
			event.AudioAction{Channel: "sfx", Action: "play", Asset: event.Str("hit.wav"), Volume: &vol, FadeDurationMs: &fade},
			event.Transition{Kind: "dissolve", DurationMs: 300},
			event.SetCharacterPosition{Name: "Ava", X: 10, Y: -4, Scale: &scale},
			event.ExtCall{Command: "shake", Args: []string{"3"}},
			event.Dialogue{Speaker: "Ava", Text: "Hello"},
		},
		Labels: map[string]int{"start": 0, "end": 12},
	}
}

func TestCompileResolvesTargetsAndIDs(t *testing.T) {
	c, err := Compile(sampleScript())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if c.StartIP != 0 || c.Labels["end"] != 12 {
		t.Fatalf("labels = %v start=%d", c.Labels, c.StartIP)
	}
	if c.FlagCount != 2 {
		t.Fatalf("flag_count = %d, want 2", c.FlagCount)
	}
	if sf := c.Events[2].(compiled.SetFlag); sf.FlagID != 0 {
		t.Fatalf("met_ava id = %d", sf.FlagID)
	}
	if ji := c.Events[4].(compiled.JumpIf); ji.Cond.ID != 1 || ji.TargetIP != 12 {
		t.Fatalf("flag jump_if = %+v", ji)
	}
	if ji := c.Events[5].(compiled.JumpIf); ji.Cond.ID != 0 || ji.Cond.Op != event.OpLt {
		t.Fatalf("var jump_if = %+v", ji)
	}
	ch := c.Events[6].(compiled.Choice)
	if ch.Options[0].TargetIP != 12 || ch.Options[1].TargetIP != 0 {
		t.Fatalf("choice = %+v", ch)
	}
	aa := c.Events[8].(compiled.AudioAction)
	if aa.Channel != event.ChannelSFX || aa.Action != event.ActionPlay {
		t.Fatalf("audio = %+v", aa)
	}
	if tr := c.Events[9].(compiled.Transition); tr.Kind != event.TransitionDissolve {
		t.Fatalf("transition = %+v", tr)
	}
}

func TestCompileInternsRepeatedStrings(t *testing.T) {
	c, err := Compile(sampleScript())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	a := c.Events[1].(compiled.Dialogue)
	b := c.Events[12].(compiled.Dialogue)
	if unsafe.StringData(a.Text) != unsafe.StringData(b.Text) {
		t.Fatalf("repeated dialogue text not interned")
	}
	if unsafe.StringData(a.Speaker) != unsafe.StringData(c.Events[10].(compiled.SetCharacterPosition).Name) {
		t.Fatalf("speaker and character name not shared")
	}
}

func TestCompileErrors(t *testing.T) {
	s := sampleScript()
	s.Events = append(s.Events, event.Jump{Target: "nowhere"})
	if _, err := Compile(s); vnerr.KindOf(err) != vnerr.InvalidScript {
		t.Fatalf("unknown label: %v", err)
	}

	s = sampleScript()
	s.Events[8] = event.AudioAction{Channel: "ambient", Action: "play"}
	if _, err := Compile(s); vnerr.KindOf(err) != vnerr.InvalidScript {
		t.Fatalf("unknown channel: %v", err)
	}

	s = sampleScript()
	s.Labels["far"] = 99
	if _, err := Compile(s); vnerr.KindOf(err) != vnerr.InvalidScript {
		t.Fatalf("label out of range: %v", err)
	}

	s = sampleScript()
	delete(s.Labels, "start")
	if _, err := Compile(s); vnerr.KindOf(err) != vnerr.InvalidScript {
		t.Fatalf("missing start: %v", err)
	}
}

func TestBinaryRoundTripAndDeterminism(t *testing.T) {
	c1, err := Compile(sampleScript())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	c2, _ := Compile(sampleScript())
	b1, err := c1.MarshalBinary()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b2, _ := c2.MarshalBinary()
	if !bytes.Equal(b1, b2) {
		t.Fatalf("encoding not deterministic")
	}
	if string(b1[:4]) != "VNSC" {
		t.Fatalf("magic = %q", b1[:4])
	}
	back, err := compiled.Decode(b1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(c1, back) {
		t.Fatalf("round trip mismatch:\n%#v\n%#v", c1, back)
	}
	id1, _ := c1.ID()
	id2, _ := back.ID()
	if id1 != id2 {
		t.Fatalf("id changed across round trip")
	}
}

func TestBinaryCorruptionIsRejected(t *testing.T) {
	c, _ := Compile(sampleScript())
	good, _ := c.MarshalBinary()
	for i := 0; i < len(good)*8; i += 7 {
		b := append([]byte(nil), good...)
		b[i/8] ^= 1 << (i % 8)
		_, err := compiled.Decode(b)
		var ve *vnerr.Error
		if !errors.As(err, &ve) || ve.Kind != vnerr.BinaryFormat {
			t.Fatalf("bit %d: expected BinaryFormat, got %v", i, err)
		}
	}
	if _, err := compiled.Decode(good[:10]); err == nil || err.Error() != "binary format error: binary payload too small" {
		t.Fatalf("short input: %v", err)
	}
	bad := append([]byte(nil), good...)
	bad[4] = 9
	if _, err := compiled.Decode(bad); err == nil || err.Error() != "binary format error: unsupported script version 9" {
		t.Fatalf("version: %v", err)
	}
}

func TestBuildAppliesPolicy(t *testing.T) {
	s := sampleScript()
	s.Events[1] = event.Dialogue{Speaker: "  ", Text: "who?"}
	_, err := Build(s, security.DefaultLimits(), security.Policy{})
	if vnerr.KindOf(err) != vnerr.SecurityPolicy {
		t.Fatalf("expected SecurityPolicy, got %v", err)
	}
	if _, err := Build(s, security.DefaultLimits(), security.Policy{AllowEmptySpeaker: true}); err != nil {
		t.Fatalf("allowed empty speaker: %v", err)
	}
}
