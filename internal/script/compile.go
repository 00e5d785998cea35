/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"math"

	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/compiled"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/event"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/intern"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/vnerr"
)

// compiler holds the per-compile scratch state. Nothing survives Compile.
type compiler struct {
	pool   *intern.Pool
	labels map[string]uint32
	flags  map[string]uint32
	vars   map[string]uint32
}

// Compile resolves labels, assigns dense flag and variable ids in
// first-occurrence order and interns every string. It does not apply the
// security policy; see security.Policy.
func Compile(raw *event.Script) (*compiled.Script, error) {
	c := &compiler{
		pool:   intern.New(len(raw.Events) * 2),
		labels: make(map[string]uint32, len(raw.Labels)),
		flags:  map[string]uint32{},
		vars:   map[string]uint32{},
	}
	for _, name := range raw.LabelNames() {
		idx := raw.Labels[name]
		if idx < 0 || idx > len(raw.Events) {
			return nil, vnerr.Invalid("label '%s' points outside events", name)
		}
		if uint64(idx) > math.MaxUint32 {
			return nil, vnerr.Invalid("label '%s' index overflows u32", name)
		}
		c.labels[name] = uint32(idx)
	}
	start, ok := c.labels["start"]
	if !ok {
		return nil, vnerr.Invalid("missing 'start' label")
	}

	out := &compiled.Script{Labels: c.labels, StartIP: start}
	for i, ev := range raw.Events {
		ce, err := c.event(ev)
		if err != nil {
			return nil, withEventIndex(err, i)
		}
		out.Events = append(out.Events, ce)
	}
	out.FlagCount = uint32(len(c.flags))
	return out, nil
}

func withEventIndex(err error, i int) error {
	if e, ok := err.(*vnerr.Error); ok && e.Kind == vnerr.InvalidScript {
		return vnerr.Invalid("event %d: %s", i, e.Reason)
	}
	return err
}

func (c *compiler) target(name string) (uint32, error) {
	ip, ok := c.labels[name]
	if !ok {
		return 0, vnerr.Invalid("unknown label '%s'", name)
	}
	return ip, nil
}

func denseID(m map[string]uint32, key string) (uint32, error) {
	if id, ok := m[key]; ok {
		return id, nil
	}
	if uint64(len(m)) >= math.MaxUint32 {
		return 0, vnerr.Invalid("too many ids")
	}
	id := uint32(len(m))
	m[key] = id
	return id, nil
}

func (c *compiler) placement(p event.Placement) event.Placement {
	return event.Placement{
		Name:       c.pool.Intern(p.Name),
		Expression: c.pool.Opt(p.Expression),
		Position:   c.pool.Opt(p.Position),
		X:          p.X,
		Y:          p.Y,
		Scale:      p.Scale,
	}
}

func (c *compiler) placements(ps []event.Placement) []event.Placement {
	var out []event.Placement
	for _, p := range ps {
		out = append(out, c.placement(p))
	}
	return out
}

func (c *compiler) strs(ss []string) []string {
	var out []string
	for _, s := range ss {
		out = append(out, c.pool.Intern(s))
	}
	return out
}

func (c *compiler) event(ev event.Event) (compiled.Event, error) {
	switch e := ev.(type) {
	case event.Dialogue:
		return compiled.Dialogue{Speaker: c.pool.Intern(e.Speaker), Text: c.pool.Intern(e.Text)}, nil
	case event.Choice:
		out := compiled.Choice{Prompt: c.pool.Intern(e.Prompt)}
		for _, o := range e.Options {
			ip, err := c.target(o.Target)
			if err != nil {
				return nil, err
			}
			out.Options = append(out.Options, compiled.Option{Text: c.pool.Intern(o.Text), TargetIP: ip})
		}
		return out, nil
	case event.Scene:
		return compiled.Scene{
			Background: c.pool.Opt(e.Background),
			Music:      c.pool.Opt(e.Music),
			Characters: c.placements(e.Characters),
		}, nil
	case event.Patch:
		return compiled.Patch{
			Background: c.pool.Opt(e.Background),
			Music:      c.pool.Opt(e.Music),
			Add:        c.placements(e.Add),
			Update:     c.placements(e.Update),
			Remove:     c.strs(e.Remove),
		}, nil
	case event.Jump:
		ip, err := c.target(e.Target)
		if err != nil {
			return nil, err
		}
		return compiled.Jump{TargetIP: ip}, nil
	case event.SetFlag:
		id, err := denseID(c.flags, e.Key)
		if err != nil {
			return nil, err
		}
		return compiled.SetFlag{FlagID: id, Value: e.Value}, nil
	case event.SetVar:
		id, err := denseID(c.vars, e.Key)
		if err != nil {
			return nil, err
		}
		return compiled.SetVar{VarID: id, Value: e.Value}, nil
	case event.JumpIf:
		ip, err := c.target(e.Target)
		if err != nil {
			return nil, err
		}
		cond := compiled.Cond{Kind: e.Cond.Kind}
		switch e.Cond.Kind {
		case event.CondFlag:
			cond.ID, err = denseID(c.flags, e.Cond.Key)
			cond.IsSet = e.Cond.IsSet
		case event.CondVarCmp:
			if !e.Cond.Op.Valid() {
				return nil, vnerr.Invalid("unknown comparison operator '%s'", e.Cond.Op)
			}
			cond.ID, err = denseID(c.vars, e.Cond.Key)
			cond.Op = e.Cond.Op
			cond.Value = e.Cond.Value
		default:
			return nil, vnerr.Invalid("unknown condition kind '%s'", e.Cond.Kind)
		}
		if err != nil {
			return nil, err
		}
		return compiled.JumpIf{Cond: cond, TargetIP: ip}, nil
	case event.ExtCall:
		return compiled.ExtCall{Command: c.pool.Intern(e.Command), Args: c.strs(e.Args)}, nil
	case event.AudioAction:
		ch, err := event.ChannelCode(e.Channel)
		if err != nil {
			return nil, vnerr.Invalid("%s", err.Error())
		}
		act, err := event.ActionCode(e.Action)
		if err != nil {
			return nil, vnerr.Invalid("%s", err.Error())
		}
		return compiled.AudioAction{
			Channel:        ch,
			Action:         act,
			Asset:          c.pool.Opt(e.Asset),
			Volume:         e.Volume,
			FadeDurationMs: e.FadeDurationMs,
			LoopPlayback:   e.LoopPlayback,
		}, nil
	case event.Transition:
		kind, err := event.TransitionCode(e.Kind)
		if err != nil {
			return nil, vnerr.Invalid("%s", err.Error())
		}
		return compiled.Transition{Kind: kind, DurationMs: e.DurationMs, Color: c.pool.Opt(e.Color)}, nil
	case event.SetCharacterPosition:
		return compiled.SetCharacterPosition{Name: c.pool.Intern(e.Name), X: e.X, Y: e.Y, Scale: e.Scale}, nil
	}
	return nil, vnerr.Invalid("unsupported event %T", ev)
}
