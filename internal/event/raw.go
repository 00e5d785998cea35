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
	"fmt"
)

// Event is a raw script event as authored. Label references are names and
// flag/variable keys are free-form strings.
type Event interface {
	EventKind() Kind
	// StringBytes is the sum of every user-visible string length in the event,
	// used by the loader's script byte budget.
	StringBytes() int
}

// Placement positions a character in a scene. In patch updates every field but
// Name is optional and only set fields are applied.
type Placement struct {
	Name       string   `json:"name"`
	Expression *string  `json:"expression,omitempty"`
	Position   *string  `json:"position,omitempty"`
	X          *int32   `json:"x,omitempty"`
	Y          *int32   `json:"y,omitempty"`
	Scale      *float32 `json:"scale,omitempty"`
}

func (p Placement) stringBytes() int {
	return len(p.Name) + optLen(p.Expression) + optLen(p.Position)
}

type Dialogue struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

type ChoiceOption struct {
	Text   string `json:"text"`
	Target string `json:"target"`
}

type Choice struct {
	Prompt  string         `json:"prompt"`
	Options []ChoiceOption `json:"options"`
}

type Scene struct {
	Background *string     `json:"background,omitempty"`
	Music      *string     `json:"music,omitempty"`
	Characters []Placement `json:"characters,omitempty"`
}

type Patch struct {
	Background *string     `json:"background,omitempty"`
	Music      *string     `json:"music,omitempty"`
	Add        []Placement `json:"add,omitempty"`
	Update     []Placement `json:"update,omitempty"`
	Remove     []string    `json:"remove,omitempty"`
}

type Jump struct {
	Target string `json:"target"`
}

type SetFlag struct {
	Key   string `json:"key"`
	Value bool   `json:"value"`
}

type SetVar struct {
	Key   string `json:"key"`
	Value int32  `json:"value"`
}

type JumpIf struct {
	Cond   Cond   `json:"cond"`
	Target string `json:"target"`
}

// ExtCall is an opaque call into the host; the pipeline only carries it.
type ExtCall struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

type AudioAction struct {
	Channel        string   `json:"channel"`
	Action         string   `json:"action"`
	Asset          *string  `json:"asset,omitempty"`
	Volume         *float32 `json:"volume,omitempty"`
	FadeDurationMs *uint64  `json:"fade_duration_ms,omitempty"`
	LoopPlayback   *bool    `json:"loop_playback,omitempty"`
}

type Transition struct {
	Kind       string  `json:"kind"`
	DurationMs uint32  `json:"duration_ms"`
	Color      *string `json:"color,omitempty"`
}

type SetCharacterPosition struct {
	Name  string   `json:"name"`
	X     int32    `json:"x"`
	Y     int32    `json:"y"`
	Scale *float32 `json:"scale,omitempty"`
}

func (Dialogue) EventKind() Kind             { return KindDialogue }
func (Choice) EventKind() Kind               { return KindChoice }
func (Scene) EventKind() Kind                { return KindScene }
func (Patch) EventKind() Kind                { return KindPatch }
func (Jump) EventKind() Kind                 { return KindJump }
func (SetFlag) EventKind() Kind              { return KindSetFlag }
func (SetVar) EventKind() Kind               { return KindSetVar }
func (JumpIf) EventKind() Kind               { return KindJumpIf }
func (ExtCall) EventKind() Kind              { return KindExtCall }
func (AudioAction) EventKind() Kind          { return KindAudioAction }
func (Transition) EventKind() Kind           { return KindTransition }
func (SetCharacterPosition) EventKind() Kind { return KindSetCharacterPosition }

func (e Dialogue) StringBytes() int { return len(e.Speaker) + len(e.Text) }

func (e Choice) StringBytes() int {
	n := len(e.Prompt)
	for _, o := range e.Options {
		n += len(o.Text) + len(o.Target)
	}
	return n
}

func (e Scene) StringBytes() int {
	n := optLen(e.Background) + optLen(e.Music)
	for _, c := range e.Characters {
		n += c.stringBytes()
	}
	return n
}

func (e Patch) StringBytes() int {
	n := optLen(e.Background) + optLen(e.Music)
	for _, c := range e.Add {
		n += c.stringBytes()
	}
	for _, c := range e.Update {
		n += c.stringBytes()
	}
	for _, r := range e.Remove {
		n += len(r)
	}
	return n
}

func (e Jump) StringBytes() int    { return len(e.Target) }
func (e SetFlag) StringBytes() int { return len(e.Key) }
func (e SetVar) StringBytes() int  { return len(e.Key) }
func (e JumpIf) StringBytes() int  { return len(e.Cond.Key) + len(e.Target) }

func (e ExtCall) StringBytes() int {
	n := len(e.Command)
	for _, a := range e.Args {
		n += len(a)
	}
	return n
}

func (e AudioAction) StringBytes() int {
	return len(e.Channel) + len(e.Action) + optLen(e.Asset)
}

func (e Transition) StringBytes() int           { return len(e.Kind) + optLen(e.Color) }
func (e SetCharacterPosition) StringBytes() int { return len(e.Name) }

func optLen(s *string) int {
	if s == nil {
		return 0
	}
	return len(*s)
}

// Marshal encodes ev in its tagged JSON form.
func Marshal(ev Event) ([]byte, error) {
	tag := ev.EventKind()
	switch e := ev.(type) {
	case Dialogue:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			Dialogue
		}{tag, e})
	case Choice:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			Choice
		}{tag, e})
	case Scene:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			Scene
		}{tag, e})
	case Patch:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			Patch
		}{tag, e})
	case Jump:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			Jump
		}{tag, e})
	case SetFlag:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			SetFlag
		}{tag, e})
	case SetVar:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			SetVar
		}{tag, e})
	case JumpIf:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			JumpIf
		}{tag, e})
	case ExtCall:
		if e.Args == nil {
			e.Args = []string{}
		}
		return json.Marshal(struct {
			Type Kind `json:"type"`
			ExtCall
		}{tag, e})
	case AudioAction:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			AudioAction
		}{tag, e})
	case Transition:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			Transition
		}{tag, e})
	case SetCharacterPosition:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			SetCharacterPosition
		}{tag, e})
	}
	return nil, fmt.Errorf("unsupported event %T", ev)
}

// Unmarshal decodes one tagged raw event.
func Unmarshal(b []byte) (Event, error) {
	var probe struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return nil, err
	}
	switch probe.Type {
	case KindDialogue:
		return decodeAs[Dialogue](b)
	case KindChoice:
		return decodeAs[Choice](b)
	case KindScene:
		return decodeAs[Scene](b)
	case KindPatch:
		return decodeAs[Patch](b)
	case KindJump:
		return decodeAs[Jump](b)
	case KindSetFlag:
		return decodeAs[SetFlag](b)
	case KindSetVar:
		return decodeAs[SetVar](b)
	case KindJumpIf:
		return decodeAs[JumpIf](b)
	case KindExtCall:
		return decodeAs[ExtCall](b)
	case KindAudioAction:
		return decodeAs[AudioAction](b)
	case KindTransition:
		return decodeAs[Transition](b)
	case KindSetCharacterPosition:
		return decodeAs[SetCharacterPosition](b)
	case "":
		return nil, fmt.Errorf("missing field `type`")
	}
	return nil, fmt.Errorf("unknown variant `%s`", probe.Type)
}

func decodeAs[T Event](b []byte) (Event, error) {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// List is an ordered event sequence with tagged JSON encoding.
type List []Event

func (l List) MarshalJSON() ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(l))
	for i, ev := range l {
		b, err := Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("events[%d]: %w", i, err)
		}
		raw = append(raw, b)
	}
	return json.Marshal(raw)
}

func (l *List) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(List, 0, len(raw))
	for i, r := range raw {
		ev, err := Unmarshal(r)
		if err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
		out = append(out, ev)
	}
	*l = out
	return nil
}

// Str returns a pointer to s, for building optional fields.
func Str(s string) *string { return &s }
