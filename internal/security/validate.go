/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package security

import (
	"fmt"
	"math"
	"strings"

	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/compiled"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/event"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/vnerr"
)

// ValidateRaw checks an authored script. Label indices and targets may point
// one past the last event, which is the terminal position.
func (p Policy) ValidateRaw(s *event.Script, l Limits) error {
	if len(s.Events) > l.MaxEvents {
		return vnerr.Limit("event count")
	}
	if _, ok := s.Labels["start"]; !ok {
		return vnerr.Invalid("missing 'start' label")
	}
	for _, name := range s.LabelNames() {
		if len(name) > l.MaxLabelLength {
			return vnerr.Limit(fmt.Sprintf("label '%s' too long", name))
		}
		if idx := s.Labels[name]; idx < 0 || idx > len(s.Events) {
			return vnerr.Invalid("label '%s' points outside events", name)
		}
	}
	for _, ev := range s.Events {
		if err := p.validateEvent(s, ev, l); err != nil {
			return err
		}
	}
	return nil
}

func (p Policy) validateEvent(s *event.Script, ev event.Event, l Limits) error {
	target := func(name, what string) error {
		if len(name) > l.MaxLabelLength {
			return vnerr.Limit(what)
		}
		if _, ok := s.Labels[name]; !ok {
			return vnerr.Invalid("%s '%s' not found", what, name)
		}
		return nil
	}
	switch e := ev.(type) {
	case event.Dialogue:
		if !p.AllowEmptySpeaker && strings.TrimSpace(e.Speaker) == "" {
			return vnerr.Policy("speaker cannot be empty")
		}
		if len(e.Text) > l.MaxTextLength {
			return vnerr.Limit("dialogue text")
		}
	case event.Choice:
		if len(e.Prompt) > l.MaxTextLength {
			return vnerr.Limit("choice prompt")
		}
		if len(e.Options) == 0 {
			return vnerr.Invalid("choice must have options")
		}
		for _, o := range e.Options {
			if len(o.Text) > l.MaxTextLength {
				return vnerr.Limit("choice option")
			}
			if err := target(o.Target, "choice target"); err != nil {
				return err
			}
		}
	case event.Scene:
		if len(e.Characters) > l.MaxCharacters {
			return vnerr.Limit("character count")
		}
		if err := assetOpt(e.Background, "background asset", l); err != nil {
			return err
		}
		if err := assetOpt(e.Music, "music asset", l); err != nil {
			return err
		}
		for _, c := range e.Characters {
			if err := placement(c, l, l.MaxAssetLength); err != nil {
				return err
			}
		}
	case event.Patch:
		if len(e.Add) > l.MaxCharacters {
			return vnerr.Limit("character count")
		}
		if err := assetOpt(e.Background, "background image", l); err != nil {
			return err
		}
		if err := assetOpt(e.Music, "music file", l); err != nil {
			return err
		}
		for _, c := range append(append([]event.Placement(nil), e.Add...), e.Update...) {
			if err := placement(c, l, l.MaxLabelLength); err != nil {
				return err
			}
		}
		for _, name := range e.Remove {
			if err := asset(name, "character name", l); err != nil {
				return err
			}
		}
	case event.Jump:
		return target(e.Target, "jump target")
	case event.SetFlag:
		if len(e.Key) > l.MaxLabelLength {
			return vnerr.Limit("flag key")
		}
	case event.SetVar:
		if len(e.Key) > l.MaxLabelLength {
			return vnerr.Limit("var key")
		}
	case event.JumpIf:
		if len(e.Cond.Key) > l.MaxLabelLength {
			if e.Cond.Kind == event.CondFlag {
				return vnerr.Limit("flag key")
			}
			return vnerr.Limit("var key")
		}
		return target(e.Target, "jump_if target")
	case event.ExtCall:
		if len(e.Command) > l.MaxLabelLength {
			return vnerr.Limit("ext command")
		}
		for _, a := range e.Args {
			if len(a) > l.MaxTextLength {
				return vnerr.Limit("ext arg")
			}
		}
	case event.AudioAction:
		return assetOpt(e.Asset, "audio asset", l)
	case event.Transition:
		return assetOpt(e.Color, "transition color", l)
	case event.SetCharacterPosition:
		if err := asset(e.Name, "character name", l); err != nil {
			return err
		}
		if e.Scale != nil && !validScale(*e.Scale) {
			return vnerr.Invalid("set_character_position scale must be > 0")
		}
	}
	return nil
}

// placement checks one character entry. Positions are label-like in patches
// and asset-like in scenes, hence the explicit cap.
func placement(c event.Placement, l Limits, maxPosition int) error {
	if err := asset(c.Name, "character name", l); err != nil {
		return err
	}
	if err := assetOpt(c.Expression, "character expression", l); err != nil {
		return err
	}
	if c.Position != nil && len(*c.Position) > maxPosition {
		return vnerr.Limit("character position")
	}
	if c.Scale != nil && !validScale(*c.Scale) {
		return vnerr.Invalid("character '%s' scale must be > 0", c.Name)
	}
	return nil
}

func validScale(s float32) bool {
	f := float64(s)
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f > 0
}

func asset(v, what string, l Limits) error {
	if len(v) > l.MaxAssetLength {
		return vnerr.Limit(what)
	}
	return nil
}

func assetOpt(v *string, what string, l Limits) error {
	if v == nil {
		return nil
	}
	return asset(*v, what, l)
}

// ValidateCompiled checks that every instruction pointer lies within
// [0, len(events)] and every flag id is below the flag count.
func (p Policy) ValidateCompiled(s *compiled.Script, l Limits) error {
	n := uint32(len(s.Events))
	if len(s.Events) > l.MaxEvents {
		return vnerr.Limit("event count")
	}
	if s.StartIP > n {
		return vnerr.Invalid("compiled start_ip outside events")
	}
	if ip, ok := s.Labels["start"]; !ok || ip != s.StartIP {
		return vnerr.Invalid("compiled start label does not match start_ip")
	}
	for _, name := range s.LabelNames() {
		if s.Labels[name] > n {
			return vnerr.Invalid("label '%s' ip %d outside events", name, s.Labels[name])
		}
	}
	for _, ev := range s.Events {
		switch e := ev.(type) {
		case compiled.Choice:
			for _, o := range e.Options {
				if o.TargetIP > n {
					return vnerr.Invalid("choice target_ip %d outside events", o.TargetIP)
				}
			}
		case compiled.Jump:
			if e.TargetIP > n {
				return vnerr.Invalid("jump target_ip %d outside events", e.TargetIP)
			}
		case compiled.JumpIf:
			if e.TargetIP > n {
				return vnerr.Invalid("jump_if target_ip %d outside events", e.TargetIP)
			}
			if e.Cond.Kind == event.CondFlag && e.Cond.ID >= s.FlagCount {
				return vnerr.Invalid("flag id %d outside compiled range", e.Cond.ID)
			}
		case compiled.SetFlag:
			if e.FlagID >= s.FlagCount {
				return vnerr.Invalid("flag id %d outside compiled range", e.FlagID)
			}
		}
	}
	return nil
}
