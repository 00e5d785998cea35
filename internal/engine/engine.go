/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package engine executes a compiled script one event at a time.
//
// An Engine is single-threaded: callers that need parallelism own separate
// engines. Every failure is a *vnerr.Error; InvalidChoice and EndOfScript
// leave the state untouched.
package engine

import (
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/compiled"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/event"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/security"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/vnerr"
)

// Engine runs one compiled script.
type Engine struct {
	script *compiled.Script
	policy security.Policy
	limits security.Limits
	state  State
	queued []AudioCommand
}

// New validates s and positions a fresh state at its start label. A Scene at
// the start is applied immediately and its music is queued for the first step.
func New(s *compiled.Script, policy security.Policy, limits security.Limits) (*Engine, error) {
	if err := policy.ValidateCompiled(s, limits); err != nil {
		return nil, err
	}
	e := &Engine{
		script: s,
		policy: policy,
		limits: limits,
		state:  NewState(s.StartIP, s.FlagCount),
	}
	if int(s.StartIP) < len(s.Events) {
		if sc, ok := s.Events[s.StartIP].(compiled.Scene); ok {
			before := e.state.Visual.Music
			e.state.Visual.ApplyScene(sc)
			e.queued = musicDelta(before, e.state.Visual.Music)
		}
	}
	return e, nil
}

// CurrentEvent returns the event at the current position.
func (e *Engine) CurrentEvent() (compiled.Event, error) {
	if int(e.state.Position) >= len(e.script.Events) {
		return nil, vnerr.ErrEndOfScript
	}
	return e.script.Events[e.state.Position], nil
}

// Position is the current instruction pointer.
func (e *Engine) Position() uint32 { return e.state.Position }

// Finished reports whether the engine is past the last event.
func (e *Engine) Finished() bool { return int(e.state.Position) >= len(e.script.Events) }

// Step applies the current event and returns the audio commands it produced,
// preceded by any commands queued at construction. Choices must go through
// Choose.
func (e *Engine) Step() ([]AudioCommand, compiled.Event, error) {
	ev, err := e.CurrentEvent()
	if err != nil {
		return nil, nil, err
	}
	if _, ok := ev.(compiled.Choice); ok {
		return nil, nil, vnerr.ErrInvalidChoice
	}
	cmds := e.drain()
	switch x := ev.(type) {
	case compiled.Dialogue:
		e.state.pushHistory(x.Speaker, x.Text)
		e.advance()
	case compiled.Scene:
		before := e.state.Visual.Music
		e.state.Visual.ApplyScene(x)
		cmds = append(cmds, musicDelta(before, e.state.Visual.Music)...)
		e.advance()
	case compiled.Patch:
		before := e.state.Visual.Music
		e.state.Visual.ApplyPatch(x)
		cmds = append(cmds, musicDelta(before, e.state.Visual.Music)...)
		e.advance()
	case compiled.Jump:
		e.state.Position = x.TargetIP
	case compiled.SetFlag:
		e.state.SetFlag(x.FlagID, x.Value)
		e.advance()
	case compiled.SetVar:
		e.state.SetVar(x.VarID, x.Value)
		e.advance()
	case compiled.JumpIf:
		if e.eval(x.Cond) {
			e.state.Position = x.TargetIP
		} else {
			e.advance()
		}
	case compiled.AudioAction:
		cmds = append(cmds, audioAction(&e.state.Visual, x)...)
		e.advance()
	case compiled.SetCharacterPosition:
		e.state.Visual.Place(x)
		e.advance()
	case compiled.Transition, compiled.ExtCall:
		e.advance()
	}
	return cmds, ev, nil
}

// Choose selects option idx of the current Choice and jumps to its target. A
// Scene at the target is applied right away.
func (e *Engine) Choose(idx int) ([]AudioCommand, compiled.Event, error) {
	ev, err := e.CurrentEvent()
	if err != nil {
		return nil, nil, err
	}
	ch, ok := ev.(compiled.Choice)
	if !ok || idx < 0 || idx >= len(ch.Options) {
		return nil, nil, vnerr.ErrInvalidChoice
	}
	cmds := e.drain()
	e.state.Position = ch.Options[idx].TargetIP
	if int(e.state.Position) < len(e.script.Events) {
		if sc, ok := e.script.Events[e.state.Position].(compiled.Scene); ok {
			before := e.state.Visual.Music
			e.state.Visual.ApplyScene(sc)
			cmds = append(cmds, musicDelta(before, e.state.Visual.Music)...)
		}
	}
	return cmds, ev, nil
}

// Resume returns control after an ExtCall handled by the host.
func (e *Engine) Resume() error {
	ev, err := e.CurrentEvent()
	if err != nil {
		return err
	}
	if _, ok := ev.(compiled.ExtCall); !ok {
		return vnerr.Invalid("resume called on %s event", ev.EventKind())
	}
	e.advance()
	return nil
}

// JumpToLabel moves to a named label.
func (e *Engine) JumpToLabel(name string) error {
	ip, ok := e.script.Labels[name]
	if !ok {
		return vnerr.Invalid("unknown label '%s'", name)
	}
	e.state.Position = ip
	return nil
}

func (e *Engine) drain() []AudioCommand {
	q := e.queued
	e.queued = nil
	return q
}

func (e *Engine) advance() {
	if int(e.state.Position)+1 >= len(e.script.Events) {
		e.state.Position = uint32(len(e.script.Events))
		return
	}
	e.state.Position++
}

func (e *Engine) eval(c compiled.Cond) bool {
	if c.Kind == event.CondFlag {
		return e.state.Flag(c.ID) == c.IsSet
	}
	return c.Op.Apply(e.state.Var(c.ID), c.Value)
}

// Script returns the compiled script, e.g. to derive its identity.
func (e *Engine) Script() *compiled.Script { return e.script }

// State returns a copy of the current state.
func (e *Engine) State() State { return e.state.Clone() }

// VisualState returns a copy of the current visual state.
func (e *Engine) VisualState() VisualState { return e.state.Visual.Clone() }

// HistoryLen is the number of retained dialogue entries.
func (e *Engine) HistoryLen() int { return len(e.state.History) }

func (e *Engine) Labels() map[string]uint32 { return e.script.Labels }
func (e *Engine) FlagCount() uint32         { return e.script.FlagCount }
func (e *Engine) Flag(id uint32) bool       { return e.state.Flag(id) }
func (e *Engine) SetFlag(id uint32, v bool) { e.state.SetFlag(id, v) }
func (e *Engine) Var(id uint32) int32       { return e.state.Var(id) }
func (e *Engine) Policy() security.Policy   { return e.policy }

// Restore replaces the state, e.g. after loading a save. Queued audio is
// dropped and replaced by the restored music, if any.
func (e *Engine) Restore(s State) error {
	if int(s.Position) > len(e.script.Events) {
		return vnerr.Invalid("restored position %d outside events", s.Position)
	}
	if len(s.History) > HistoryLimit {
		return vnerr.Limit("history length")
	}
	e.state = s.Clone()
	e.queued = musicDelta(nil, e.state.Visual.Music)
	return nil
}
