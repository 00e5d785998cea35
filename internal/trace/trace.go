/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package trace records what a player would see step by step, together with
// a digest of the engine state, as a deterministic YAML document.
package trace

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/compiled"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/engine"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/event"
)

// FormatVersion is the trace document version.
const FormatVersion uint16 = 1

type ViewKind string

const (
	ViewDialogue ViewKind = "dialogue"
	ViewChoice   ViewKind = "choice"
	ViewScene    ViewKind = "scene"
	ViewSystem   ViewKind = "system"
	ViewEnd      ViewKind = "end"
)

// UiView is the presentation of one event, tagged by Kind. Only the fields
// of that kind are set.
type UiView struct {
	Kind        ViewKind `yaml:"kind" json:"kind"`
	Speaker     string   `yaml:"speaker,omitempty" json:"speaker,omitempty"`
	Text        string   `yaml:"text,omitempty" json:"text,omitempty"`
	Prompt      string   `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	Options     []string `yaml:"options,omitempty" json:"options,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Message     string   `yaml:"message,omitempty" json:"message,omitempty"`
}

func opt(s *string) string {
	if s == nil {
		return "none"
	}
	return strconv.Quote(*s)
}

// ViewOf maps a compiled event to its view.
func ViewOf(ev compiled.Event) UiView {
	switch e := ev.(type) {
	case compiled.Dialogue:
		return UiView{Kind: ViewDialogue, Speaker: e.Speaker, Text: e.Text}
	case compiled.Choice:
		opts := make([]string, len(e.Options))
		for i, o := range e.Options {
			opts[i] = o.Text
		}
		return UiView{Kind: ViewChoice, Prompt: e.Prompt, Options: opts}
	case compiled.Scene:
		return UiView{Kind: ViewScene, Description: fmt.Sprintf("Scene bg=%s music=%s chars=%d",
			opt(e.Background), opt(e.Music), len(e.Characters))}
	case compiled.Patch:
		return UiView{Kind: ViewScene, Description: fmt.Sprintf("Patch bg=%s music=%s add=%d update=%d remove=%d",
			opt(e.Background), opt(e.Music), len(e.Add), len(e.Update), len(e.Remove))}
	case compiled.SetFlag:
		return system("SetFlag: %d = %t", e.FlagID, e.Value)
	case compiled.SetVar:
		return system("SetVar: %d = %d", e.VarID, e.Value)
	case compiled.Jump:
		return system("Jump")
	case compiled.JumpIf:
		return system("JumpIf")
	case compiled.ExtCall:
		return system("ExtCall %s(%s)", e.Command, strings.Join(e.Args, ", "))
	case compiled.AudioAction:
		return system("Audio %s %s", event.ChannelName(e.Channel), event.ActionName(e.Action))
	case compiled.Transition:
		return system("Transition %s %dms", event.TransitionName(e.Kind), e.DurationMs)
	case compiled.SetCharacterPosition:
		return system("SetCharacterPosition: %s (%d, %d)", e.Name, e.X, e.Y)
	}
	return system("Unknown event")
}

func system(format string, args ...any) UiView {
	return UiView{Kind: ViewSystem, Message: fmt.Sprintf(format, args...)}
}

type CharacterDigest struct {
	Name       string  `yaml:"name" json:"name"`
	Expression *string `yaml:"expression" json:"expression"`
	Position   *string `yaml:"position" json:"position"`
}

type VisualDigest struct {
	Background *string           `yaml:"background" json:"background"`
	Music      *string           `yaml:"music" json:"music"`
	Characters []CharacterDigest `yaml:"characters" json:"characters"`
}

// StateDigest is the observable part of an engine state: set flags in id
// order, non-zero variables, history length and the visual state.
type StateDigest struct {
	Position   uint32           `yaml:"position" json:"position"`
	Flags      []uint32         `yaml:"flags" json:"flags"`
	Vars       map[uint32]int32 `yaml:"vars" json:"vars"`
	HistoryLen int              `yaml:"history_len" json:"history_len"`
	Visual     VisualDigest     `yaml:"visual" json:"visual"`
}

// Digest summarizes s for a script with flagCount flags.
func Digest(s engine.State, flagCount uint32) StateDigest {
	d := StateDigest{
		Position:   s.Position,
		Flags:      []uint32{},
		Vars:       map[uint32]int32{},
		HistoryLen: len(s.History),
		Visual: VisualDigest{
			Background: s.Visual.Background,
			Music:      s.Visual.Music,
			Characters: make([]CharacterDigest, 0, len(s.Visual.Characters)),
		},
	}
	for id := uint32(0); id < flagCount; id++ {
		if s.Flag(id) {
			d.Flags = append(d.Flags, id)
		}
	}
	for id, v := range s.Vars {
		if v != 0 {
			d.Vars[uint32(id)] = v
		}
	}
	for _, c := range s.Visual.Characters {
		d.Visual.Characters = append(d.Visual.Characters, CharacterDigest{
			Name:       c.Name,
			Expression: c.Expression,
			Position:   c.Position,
		})
	}
	return d
}

type Step struct {
	Step  uint32      `yaml:"step" json:"step"`
	View  UiView      `yaml:"view" json:"view"`
	State StateDigest `yaml:"state" json:"state"`
}

type Trace struct {
	Steps []Step `yaml:"steps" json:"steps"`
}

// Document is the serialized trace envelope.
type Document struct {
	TraceFormatVersion  uint16 `yaml:"trace_format_version" json:"trace_format_version"`
	ScriptSchemaVersion string `yaml:"script_schema_version" json:"script_schema_version"`
	Trace               Trace  `yaml:"trace" json:"trace"`
}

// Build drives e for at most steps events, taking option 0 at every choice
// and resuming past external calls. Reaching the end of the script records
// one final end view. A failing step ends the trace with a system view
// carrying the error.
func Build(e *engine.Engine, steps int) *Document {
	doc := &Document{
		TraceFormatVersion:  FormatVersion,
		ScriptSchemaVersion: event.SchemaVersion,
		Trace:               Trace{Steps: []Step{}},
	}
	flagCount := e.FlagCount()
	for i := 0; i < steps; i++ {
		ev, err := e.CurrentEvent()
		digest := Digest(e.State(), flagCount)
		if err != nil {
			doc.push(i, UiView{Kind: ViewEnd}, digest)
			break
		}
		doc.push(i, ViewOf(ev), digest)
		switch ev.(type) {
		case compiled.Choice:
			_, _, err = e.Choose(0)
		case compiled.ExtCall:
			err = e.Resume()
		default:
			_, _, err = e.Step()
		}
		if err != nil {
			if i+1 < steps {
				doc.push(i+1, system("Error: %v", err), Digest(e.State(), flagCount))
			}
			break
		}
	}
	return doc
}

func (d *Document) push(step int, view UiView, state StateDigest) {
	d.Trace.Steps = append(d.Trace.Steps, Step{Step: uint32(step), View: view, State: state})
}

// Marshal renders the document as YAML with two-space indentation.
func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("encode trace: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode trace: %w", err)
	}
	return buf.Bytes(), nil
}

// Parse decodes a trace document.
func Parse(b []byte) (*Document, error) {
	var d Document
	if err := yaml.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("decode trace: %w", err)
	}
	if d.TraceFormatVersion != FormatVersion {
		return nil, fmt.Errorf("unsupported trace format version %d", d.TraceFormatVersion)
	}
	return &d, nil
}

// Views returns the kinds of every step, in order.
func (d *Document) Views() []ViewKind {
	out := make([]ViewKind, 0, len(d.Trace.Steps))
	for _, s := range d.Trace.Steps {
		out = append(out, s.View.Kind)
	}
	return out
}
