/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package compiled holds the runtime form of a script: label targets resolved
// to instruction pointers, flag and variable names replaced by dense ids, and
// audio/transition names replaced by small codes.
package compiled

import (
	"sort"

	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/event"
)

// FormatVersion is the binary format version of compiled scripts.
const FormatVersion uint16 = 1

// Event is one compiled event.
type Event interface {
	EventKind() event.Kind
}

type Option struct {
	Text     string
	TargetIP uint32
}

type Dialogue struct {
	Speaker string
	Text    string
}

type Choice struct {
	Prompt  string
	Options []Option
}

type Scene struct {
	Background *string
	Music      *string
	Characters []event.Placement
}

type Patch struct {
	Background *string
	Music      *string
	Add        []event.Placement
	Update     []event.Placement
	Remove     []string
}

type Jump struct {
	TargetIP uint32
}

type SetFlag struct {
	FlagID uint32
	Value  bool
}

type SetVar struct {
	VarID uint32
	Value int32
}

// Cond is a resolved predicate. ID is a flag id for flag predicates and a
// variable id for var_cmp predicates.
type Cond struct {
	Kind  event.CondKind
	ID    uint32
	IsSet bool
	Op    event.CmpOp
	Value int32
}

type JumpIf struct {
	Cond     Cond
	TargetIP uint32
}

type ExtCall struct {
	Command string
	Args    []string
}

type AudioAction struct {
	Channel        uint8
	Action         uint8
	Asset          *string
	Volume         *float32
	FadeDurationMs *uint64
	LoopPlayback   *bool
}

type Transition struct {
	Kind       uint8
	DurationMs uint32
	Color      *string
}

type SetCharacterPosition struct {
	Name  string
	X     int32
	Y     int32
	Scale *float32
}

func (Dialogue) EventKind() event.Kind             { return event.KindDialogue }
func (Choice) EventKind() event.Kind               { return event.KindChoice }
func (Scene) EventKind() event.Kind                { return event.KindScene }
func (Patch) EventKind() event.Kind                { return event.KindPatch }
func (Jump) EventKind() event.Kind                 { return event.KindJump }
func (SetFlag) EventKind() event.Kind              { return event.KindSetFlag }
func (SetVar) EventKind() event.Kind               { return event.KindSetVar }
func (JumpIf) EventKind() event.Kind               { return event.KindJumpIf }
func (ExtCall) EventKind() event.Kind              { return event.KindExtCall }
func (AudioAction) EventKind() event.Kind          { return event.KindAudioAction }
func (Transition) EventKind() event.Kind           { return event.KindTransition }
func (SetCharacterPosition) EventKind() event.Kind { return event.KindSetCharacterPosition }

// Script is an immutable compiled script.
type Script struct {
	Events    []Event
	Labels    map[string]uint32
	StartIP   uint32
	FlagCount uint32
}

// LabelNames returns label keys in lexicographic order.
func (s *Script) LabelNames() []string {
	names := make([]string, 0, len(s.Labels))
	for k := range s.Labels {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// LabelAt returns the lexicographically first label pointing at ip.
func (s *Script) LabelAt(ip uint32) (string, bool) {
	for _, name := range s.LabelNames() {
		if s.Labels[name] == ip {
			return name, true
		}
	}
	return "", false
}
