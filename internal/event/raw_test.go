/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package event

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestUnmarshalTaggedEvents(t *testing.T) {
	src := `[
		{"type":"dialogue","speaker":"Ava","text":"Hi"},
		{"type":"choice","prompt":"Go?","options":[{"text":"Yes","target":"yes"}]},
		{"type":"jump_if","cond":{"kind":"var_cmp","key":"gold","op":"ge","value":3},"target":"rich"},
		{"type":"audio_action","channel":"bgm","action":"fade_out","fade_duration_ms":500}
	]`
	var l List
	if err := json.Unmarshal([]byte(src), &l); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(l) != 4 {
		t.Fatalf("len = %d", len(l))
	}
	d, ok := l[0].(Dialogue)
	if !ok || d.Speaker != "Ava" || d.Text != "Hi" {
		t.Fatalf("dialogue = %#v", l[0])
	}
	ji := l[2].(JumpIf)
	if ji.Cond.Kind != CondVarCmp || ji.Cond.Op != OpGe || ji.Cond.Value != 3 {
		t.Fatalf("cond = %#v", ji.Cond)
	}
	aa := l[3].(AudioAction)
	if aa.FadeDurationMs == nil || *aa.FadeDurationMs != 500 || aa.Asset != nil {
		t.Fatalf("audio = %#v", aa)
	}
}

func TestUnknownVariantRejected(t *testing.T) {
	_, err := Unmarshal([]byte(`{"type":"teleport"}`))
	if err == nil || !strings.Contains(err.Error(), "teleport") {
		t.Fatalf("expected unknown variant error, got %v", err)
	}
	_, err = Unmarshal([]byte(`{"type":"jump_if","cond":{"kind":"var_cmp","key":"k","op":"approx","value":1},"target":"x"}`))
	if err == nil {
		t.Fatalf("expected unknown operator error")
	}
}

func TestMarshalCarriesTypeTag(t *testing.T) {
	b, err := Marshal(ExtCall{Command: "shake"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"type":"ext_call","command":"shake","args":[]}` {
		t.Fatalf("got %s", b)
	}
	b, err = Marshal(Scene{Music: Str("a.ogg")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"type":"scene","music":"a.ogg"}` {
		t.Fatalf("got %s", b)
	}
}

func TestStringBytes(t *testing.T) {
	ev := Choice{Prompt: "ab", Options: []ChoiceOption{{Text: "c", Target: "de"}}}
	if got := ev.StringBytes(); got != 5 {
		t.Fatalf("choice bytes = %d", got)
	}
	p := Patch{Music: Str("xyz"), Remove: []string{"Bo"}, Add: []Placement{{Name: "A", Expression: Str("sad")}}}
	if got := p.StringBytes(); got != 3+2+1+3 {
		t.Fatalf("patch bytes = %d", got)
	}
}

func TestCodes(t *testing.T) {
	if c, err := ChannelCode("voice"); err != nil || c != ChannelVoice {
		t.Fatalf("voice = %d %v", c, err)
	}
	if _, err := TransitionCode("wipe"); err == nil {
		t.Fatalf("expected unknown transition error")
	}
	if ActionName(ActionFadeOut) != "fade_out" {
		t.Fatalf("fade_out name")
	}
	if !OpLe.Apply(2, 2) || OpLt.Apply(2, 2) {
		t.Fatalf("comparison semantics")
	}
}
