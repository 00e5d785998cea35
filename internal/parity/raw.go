/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package parity

import (
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/compiled"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/dryrun"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/event"
)

// Entry is one step of the raw interpreter.
type Entry struct {
	Step           int        `json:"step"`
	EventIP        uint32     `json:"event_ip"`
	EventKind      event.Kind `json:"event_kind"`
	EventSignature string     `json:"event_signature"`
}

// Simulate walks the raw script from its start label without any state
// model: JumpIf always falls through. The walk stops at the end of the
// events, after maxSteps steps, or at a target that names no label.
func Simulate(s *event.Script, maxSteps int, policy dryrun.Policy) []Entry {
	if maxSteps <= 0 {
		maxSteps = dryrun.DefaultMaxSteps
	}
	out := []Entry{}
	ip, ok := s.Labels["start"]
	if !ok {
		return out
	}
	cursor := 0
	for steps := 0; ip >= 0 && ip < len(s.Events) && steps < maxSteps; steps++ {
		ev := s.Events[ip]
		out = append(out, Entry{
			Step:           steps,
			EventIP:        uint32(ip),
			EventKind:      ev.EventKind(),
			EventSignature: Signature(ev),
		})
		next := ip + 1
		switch e := ev.(type) {
		case event.Jump:
			if next, ok = s.Labels[e.Target]; !ok {
				return out
			}
		case event.Choice:
			idx := policy.Pick(steps, len(e.Options), cursor)
			cursor++
			if idx >= len(e.Options) {
				return out
			}
			if next, ok = s.Labels[e.Options[idx].Target]; !ok {
				return out
			}
		}
		ip = next
	}
	return out
}

// Signature renders a raw event exactly as compiled.Signature renders its
// compiled form, so the two interpreters can be compared step by step.
func Signature(ev event.Event) string {
	return compiled.Signature(project(ev))
}

func project(ev event.Event) compiled.Event {
	switch e := ev.(type) {
	case event.Dialogue:
		return compiled.Dialogue{Speaker: e.Speaker, Text: e.Text}
	case event.Choice:
		return compiled.Choice{Prompt: e.Prompt, Options: make([]compiled.Option, len(e.Options))}
	case event.Scene:
		return compiled.Scene{Background: e.Background, Music: e.Music, Characters: e.Characters}
	case event.Patch:
		return compiled.Patch{Background: e.Background, Music: e.Music, Add: e.Add, Update: e.Update, Remove: e.Remove}
	case event.Jump:
		return compiled.Jump{}
	case event.SetFlag:
		return compiled.SetFlag{Value: e.Value}
	case event.SetVar:
		return compiled.SetVar{Value: e.Value}
	case event.JumpIf:
		return compiled.JumpIf{Cond: compiled.Cond{Kind: e.Cond.Kind, IsSet: e.Cond.IsSet, Op: e.Cond.Op, Value: e.Cond.Value}}
	case event.ExtCall:
		return compiled.ExtCall{Command: e.Command, Args: e.Args}
	case event.AudioAction:
		return compiled.AudioAction{
			Channel:        code(event.ChannelCode(e.Channel)),
			Action:         code(event.ActionCode(e.Action)),
			Asset:          e.Asset,
			Volume:         e.Volume,
			FadeDurationMs: e.FadeDurationMs,
			LoopPlayback:   e.LoopPlayback,
		}
	case event.Transition:
		return compiled.Transition{Kind: code(event.TransitionCode(e.Kind)), DurationMs: e.DurationMs, Color: e.Color}
	case event.SetCharacterPosition:
		return compiled.SetCharacterPosition{Name: e.Name, X: e.X, Y: e.Y, Scale: e.Scale}
	}
	return nil
}

// code maps lookup failures to a code that renders as "unknown".
func code(c uint8, err error) uint8 {
	if err != nil {
		return 255
	}
	return c
}
