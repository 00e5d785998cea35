/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package engine

import (
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/compiled"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/event"
)

// VisualState is what a renderer would show: background, current music and
// the ordered characters on stage.
type VisualState struct {
	Background *string           `json:"background,omitempty" yaml:"background,omitempty"`
	Music      *string           `json:"music,omitempty" yaml:"music,omitempty"`
	Characters []event.Placement `json:"characters" yaml:"characters"`
}

// ApplyScene replaces the fields the scene sets. Characters are replaced only
// when the scene lists at least one.
func (v *VisualState) ApplyScene(s compiled.Scene) {
	if s.Background != nil {
		v.Background = s.Background
	}
	if s.Music != nil {
		v.Music = s.Music
	}
	if len(s.Characters) > 0 {
		v.Characters = append([]event.Placement(nil), s.Characters...)
	}
}

// ApplyPatch updates the stage field by field. Added characters replace any
// entry with the same name; updates only touch set fields.
func (v *VisualState) ApplyPatch(p compiled.Patch) {
	if p.Background != nil {
		v.Background = p.Background
	}
	if p.Music != nil {
		v.Music = p.Music
	}
	for _, add := range p.Add {
		if i := v.index(add.Name); i >= 0 {
			v.Characters[i] = add
			continue
		}
		v.Characters = append(v.Characters, add)
	}
	for _, upd := range p.Update {
		i := v.index(upd.Name)
		if i < 0 {
			continue
		}
		c := &v.Characters[i]
		if upd.Expression != nil {
			c.Expression = upd.Expression
		}
		if upd.Position != nil {
			c.Position = upd.Position
		}
		if upd.X != nil {
			c.X = upd.X
		}
		if upd.Y != nil {
			c.Y = upd.Y
		}
		if upd.Scale != nil {
			c.Scale = upd.Scale
		}
	}
	for _, name := range p.Remove {
		if i := v.index(name); i >= 0 {
			v.Characters = append(v.Characters[:i], v.Characters[i+1:]...)
		}
	}
}

// Place moves a character already on stage. Unknown names are ignored.
func (v *VisualState) Place(p compiled.SetCharacterPosition) {
	i := v.index(p.Name)
	if i < 0 {
		return
	}
	x, y := p.X, p.Y
	c := &v.Characters[i]
	c.X, c.Y = &x, &y
	if p.Scale != nil {
		c.Scale = p.Scale
	}
}

func (v *VisualState) index(name string) int {
	for i, c := range v.Characters {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Clone returns a copy whose character slice is not shared.
func (v VisualState) Clone() VisualState {
	out := v
	out.Characters = append([]event.Placement(nil), v.Characters...)
	return out
}
