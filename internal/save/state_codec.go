/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package save

import (
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/compiled"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/engine"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/wire"
)

func encodeState(m *wire.Encoder, s engine.State) {
	m.Uint(1, uint64(s.Position))
	for _, w := range s.Flags {
		m.Uint(2, w)
	}
	for _, v := range s.Vars {
		m.Int(3, int64(v))
	}
	m.Message(4, func(vm *wire.Encoder) {
		vm.OptString(1, s.Visual.Background)
		vm.OptString(2, s.Visual.Music)
		for _, c := range s.Visual.Characters {
			vm.Message(3, func(pm *wire.Encoder) { compiled.EncodePlacement(pm, c) })
		}
	})
	for _, h := range s.History {
		m.Message(5, func(hm *wire.Encoder) {
			hm.String(1, h.Speaker)
			hm.String(2, h.Text)
		})
	}
}

func decodeState(b []byte) (engine.State, error) {
	var s engine.State
	err := wire.Each(b, func(f wire.Field) error {
		switch f.Num {
		case 1:
			v, err := f.Uint32()
			s.Position = v
			return err
		case 2:
			v, err := f.Uint()
			s.Flags = append(s.Flags, v)
			return err
		case 3:
			v, err := f.Int32()
			s.Vars = append(s.Vars, v)
			return err
		case 4:
			raw, err := f.Message()
			if err != nil {
				return err
			}
			s.Visual, err = decodeVisual(raw)
			return err
		case 5:
			raw, err := f.Message()
			if err != nil {
				return err
			}
			var h engine.HistoryEntry
			if err := wire.Each(raw, func(hf wire.Field) error {
				var err error
				switch hf.Num {
				case 1:
					h.Speaker, err = hf.Text()
				case 2:
					h.Text, err = hf.Text()
				}
				return err
			}); err != nil {
				return err
			}
			s.History = append(s.History, h)
		}
		return nil
	})
	return s, err
}

func decodeVisual(b []byte) (engine.VisualState, error) {
	var v engine.VisualState
	err := wire.Each(b, func(f wire.Field) error {
		switch f.Num {
		case 1, 2:
			s, err := f.Text()
			if err != nil {
				return err
			}
			if f.Num == 1 {
				v.Background = &s
			} else {
				v.Music = &s
			}
		case 3:
			raw, err := f.Message()
			if err != nil {
				return err
			}
			p, err := compiled.DecodePlacement(raw)
			if err != nil {
				return err
			}
			v.Characters = append(v.Characters, p)
		}
		return nil
	})
	return v, err
}
