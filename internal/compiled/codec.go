/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package compiled

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/envelope"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/event"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/intern"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/vnerr"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/wire"
)

// Magic prefixes every compiled script envelope.
var Magic = envelope.Magic{'V', 'N', 'S', 'C'}

// ID is the SHA-256 digest of a compiled script's binary envelope.
type ID [32]byte

// MarshalBinary encodes the script into its framed binary form.
func (s *Script) MarshalBinary() ([]byte, error) {
	var e wire.Encoder
	for _, ev := range s.Events {
		var encErr error
		e.Message(1, func(m *wire.Encoder) { encErr = encodeEvent(m, ev) })
		if encErr != nil {
			return nil, encErr
		}
	}
	for _, name := range s.LabelNames() {
		ip := s.Labels[name]
		e.Message(2, func(m *wire.Encoder) {
			m.String(1, name)
			m.Uint(2, uint64(ip))
		})
	}
	e.Uint(3, uint64(s.StartIP))
	e.Uint(4, uint64(s.FlagCount))
	out, err := envelope.Seal(Magic, FormatVersion, e.Bytes())
	if err != nil {
		return nil, vnerr.Binary("compiled script too large")
	}
	return out, nil
}

// ID returns the script identity used to bind saves.
func (s *Script) ID() (ID, error) {
	b, err := s.MarshalBinary()
	if err != nil {
		return ID{}, err
	}
	return sha256.Sum256(b), nil
}

// Decode parses a compiled script envelope. Nothing is returned on error.
func Decode(b []byte) (*Script, error) {
	payload, err := envelope.Open(b, Magic, FormatVersion)
	if err != nil {
		var ee *envelope.Error
		if errors.As(err, &ee) {
			return nil, scriptFrameError(ee)
		}
		return nil, vnerr.Binary(err.Error())
	}
	d := decoder{pool: intern.New(64)}
	s := &Script{Labels: map[string]uint32{}}
	err = wire.Each(payload, func(f wire.Field) error {
		switch f.Num {
		case 1:
			m, err := f.Message()
			if err != nil {
				return err
			}
			ev, err := d.event(m)
			if err != nil {
				return err
			}
			s.Events = append(s.Events, ev)
		case 2:
			m, err := f.Message()
			if err != nil {
				return err
			}
			var name string
			var ip uint32
			if err := wire.Each(m, func(lf wire.Field) error {
				var err error
				switch lf.Num {
				case 1:
					name, err = lf.Text()
				case 2:
					ip, err = lf.Uint32()
				}
				return err
			}); err != nil {
				return err
			}
			s.Labels[name] = ip
		case 3:
			v, err := f.Uint32()
			s.StartIP = v
			return err
		case 4:
			v, err := f.Uint32()
			s.FlagCount = v
			return err
		}
		return nil
	})
	if err != nil {
		return nil, vnerr.Binary("invalid payload: " + err.Error())
	}
	return s, nil
}

func scriptFrameError(e *envelope.Error) error {
	switch e.Problem {
	case envelope.TooSmall:
		return vnerr.Binary("binary payload too small")
	case envelope.BadMagic:
		return vnerr.Binary("missing script magic bytes")
	case envelope.BadVersion:
		return vnerr.Binary(fmt.Sprintf("unsupported script version %d", e.Found))
	case envelope.MissingPayload:
		return vnerr.Binary("missing payload")
	case envelope.LengthMismatch:
		return vnerr.Binary("payload length mismatch")
	case envelope.ChecksumMismatch:
		return vnerr.Binary("payload checksum mismatch")
	}
	return vnerr.Binary(e.Error())
}

func kindCode(k event.Kind) uint64 {
	for i, known := range event.Kinds {
		if known == k {
			return uint64(i + 1)
		}
	}
	return 0
}

var opCodes = []event.CmpOp{event.OpEq, event.OpNe, event.OpLt, event.OpLe, event.OpGt, event.OpGe}

func opCode(op event.CmpOp) uint64 {
	for i, o := range opCodes {
		if o == op {
			return uint64(i)
		}
	}
	return 0
}

// EncodePlacement writes p as a nested message body.
func EncodePlacement(m *wire.Encoder, p event.Placement) {
	m.String(1, p.Name)
	m.OptString(2, p.Expression)
	m.OptString(3, p.Position)
	m.OptInt(4, p.X)
	m.OptInt(5, p.Y)
	m.OptFloat32(6, p.Scale)
}

func encodePlacements(m *wire.Encoder, n wire.Number, ps []event.Placement) {
	for _, p := range ps {
		m.Message(n, func(pm *wire.Encoder) { EncodePlacement(pm, p) })
	}
}

func encodeEvent(m *wire.Encoder, ev Event) error {
	code := kindCode(ev.EventKind())
	if code == 0 {
		return vnerr.Binary(fmt.Sprintf("unsupported event %T", ev))
	}
	m.Uint(1, code)
	switch e := ev.(type) {
	case Dialogue:
		m.String(2, e.Speaker)
		m.String(3, e.Text)
	case Choice:
		m.String(2, e.Prompt)
		for _, o := range e.Options {
			m.Message(3, func(om *wire.Encoder) {
				om.String(1, o.Text)
				om.Uint(2, uint64(o.TargetIP))
			})
		}
	case Scene:
		m.OptString(2, e.Background)
		m.OptString(3, e.Music)
		encodePlacements(m, 4, e.Characters)
	case Patch:
		m.OptString(2, e.Background)
		m.OptString(3, e.Music)
		encodePlacements(m, 4, e.Add)
		encodePlacements(m, 5, e.Update)
		for _, r := range e.Remove {
			m.String(6, r)
		}
	case Jump:
		m.Uint(2, uint64(e.TargetIP))
	case SetFlag:
		m.Uint(2, uint64(e.FlagID))
		m.Bool(3, e.Value)
	case SetVar:
		m.Uint(2, uint64(e.VarID))
		m.Int(3, int64(e.Value))
	case JumpIf:
		m.Message(2, func(cm *wire.Encoder) {
			if e.Cond.Kind == event.CondFlag {
				cm.Uint(1, 0)
				cm.Uint(2, uint64(e.Cond.ID))
				cm.Bool(3, e.Cond.IsSet)
				return
			}
			cm.Uint(1, 1)
			cm.Uint(2, uint64(e.Cond.ID))
			cm.Uint(4, opCode(e.Cond.Op))
			cm.Int(5, int64(e.Cond.Value))
		})
		m.Uint(3, uint64(e.TargetIP))
	case ExtCall:
		m.String(2, e.Command)
		for _, a := range e.Args {
			m.String(3, a)
		}
	case AudioAction:
		m.Uint(2, uint64(e.Channel))
		m.Uint(3, uint64(e.Action))
		m.OptString(4, e.Asset)
		m.OptFloat32(5, e.Volume)
		m.OptUint(6, e.FadeDurationMs)
		m.OptBool(7, e.LoopPlayback)
	case Transition:
		m.Uint(2, uint64(e.Kind))
		m.Uint(3, uint64(e.DurationMs))
		m.OptString(4, e.Color)
	case SetCharacterPosition:
		m.String(2, e.Name)
		m.Int(3, int64(e.X))
		m.Int(4, int64(e.Y))
		m.OptFloat32(5, e.Scale)
	}
	return nil
}

type decoder struct {
	pool *intern.Pool
}

func (d decoder) str(f wire.Field) (string, error) {
	s, err := f.Text()
	return d.pool.Intern(s), err
}

func (d decoder) opt(f wire.Field) (*string, error) {
	s, err := d.str(f)
	return &s, err
}

func (d decoder) placement(b []byte) (event.Placement, error) {
	var p event.Placement
	err := wire.Each(b, func(f wire.Field) error {
		var err error
		switch f.Num {
		case 1:
			p.Name, err = d.str(f)
		case 2:
			p.Expression, err = d.opt(f)
		case 3:
			p.Position, err = d.opt(f)
		case 4:
			v, e := f.Int32()
			p.X, err = &v, e
		case 5:
			v, e := f.Int32()
			p.Y, err = &v, e
		case 6:
			v, e := f.Float32()
			p.Scale, err = &v, e
		}
		return err
	})
	return p, err
}

// DecodePlacement reads a message written by EncodePlacement.
func DecodePlacement(b []byte) (event.Placement, error) {
	return decoder{pool: intern.New(4)}.placement(b)
}

func (d decoder) placementField(f wire.Field, dst *[]event.Placement) error {
	m, err := f.Message()
	if err != nil {
		return err
	}
	p, err := d.placement(m)
	if err != nil {
		return err
	}
	*dst = append(*dst, p)
	return nil
}

func (d decoder) event(b []byte) (Event, error) {
	var (
		kind   event.Kind
		fields []wire.Field
	)
	err := wire.Each(b, func(f wire.Field) error {
		if f.Num == 1 {
			code, err := f.Uint()
			if err != nil {
				return err
			}
			if code == 0 || code > uint64(len(event.Kinds)) {
				return fmt.Errorf("unknown event code %d", code)
			}
			kind = event.Kinds[code-1]
			return nil
		}
		fields = append(fields, f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	each := func(fn func(wire.Field) error) error {
		for _, f := range fields {
			if err := fn(f); err != nil {
				return err
			}
		}
		return nil
	}

	switch kind {
	case event.KindDialogue:
		var e Dialogue
		err = each(func(f wire.Field) error {
			var err error
			switch f.Num {
			case 2:
				e.Speaker, err = d.str(f)
			case 3:
				e.Text, err = d.str(f)
			}
			return err
		})
		return e, err
	case event.KindChoice:
		var e Choice
		err = each(func(f wire.Field) error {
			switch f.Num {
			case 2:
				var err error
				e.Prompt, err = d.str(f)
				return err
			case 3:
				m, err := f.Message()
				if err != nil {
					return err
				}
				var o Option
				if err := wire.Each(m, func(of wire.Field) error {
					var err error
					switch of.Num {
					case 1:
						o.Text, err = d.str(of)
					case 2:
						o.TargetIP, err = of.Uint32()
					}
					return err
				}); err != nil {
					return err
				}
				e.Options = append(e.Options, o)
			}
			return nil
		})
		return e, err
	case event.KindScene:
		var e Scene
		err = each(func(f wire.Field) error {
			var err error
			switch f.Num {
			case 2:
				e.Background, err = d.opt(f)
			case 3:
				e.Music, err = d.opt(f)
			case 4:
				err = d.placementField(f, &e.Characters)
			}
			return err
		})
		return e, err
	case event.KindPatch:
		var e Patch
		err = each(func(f wire.Field) error {
			var err error
			switch f.Num {
			case 2:
				e.Background, err = d.opt(f)
			case 3:
				e.Music, err = d.opt(f)
			case 4:
				err = d.placementField(f, &e.Add)
			case 5:
				err = d.placementField(f, &e.Update)
			case 6:
				var s string
				s, err = d.str(f)
				e.Remove = append(e.Remove, s)
			}
			return err
		})
		return e, err
	case event.KindJump:
		var e Jump
		err = each(func(f wire.Field) error {
			var err error
			if f.Num == 2 {
				e.TargetIP, err = f.Uint32()
			}
			return err
		})
		return e, err
	case event.KindSetFlag:
		var e SetFlag
		err = each(func(f wire.Field) error {
			var err error
			switch f.Num {
			case 2:
				e.FlagID, err = f.Uint32()
			case 3:
				e.Value, err = f.Bool()
			}
			return err
		})
		return e, err
	case event.KindSetVar:
		var e SetVar
		err = each(func(f wire.Field) error {
			var err error
			switch f.Num {
			case 2:
				e.VarID, err = f.Uint32()
			case 3:
				e.Value, err = f.Int32()
			}
			return err
		})
		return e, err
	case event.KindJumpIf:
		var e JumpIf
		err = each(func(f wire.Field) error {
			switch f.Num {
			case 2:
				m, err := f.Message()
				if err != nil {
					return err
				}
				e.Cond, err = decodeCond(m)
				return err
			case 3:
				var err error
				e.TargetIP, err = f.Uint32()
				return err
			}
			return nil
		})
		return e, err
	case event.KindExtCall:
		var e ExtCall
		err = each(func(f wire.Field) error {
			var err error
			switch f.Num {
			case 2:
				e.Command, err = d.str(f)
			case 3:
				var s string
				s, err = d.str(f)
				e.Args = append(e.Args, s)
			}
			return err
		})
		return e, err
	case event.KindAudioAction:
		var e AudioAction
		err = each(func(f wire.Field) error {
			var err error
			switch f.Num {
			case 2:
				var v uint32
				v, err = f.Uint32()
				e.Channel = uint8(v)
			case 3:
				var v uint32
				v, err = f.Uint32()
				e.Action = uint8(v)
			case 4:
				e.Asset, err = d.opt(f)
			case 5:
				v, ferr := f.Float32()
				e.Volume, err = &v, ferr
			case 6:
				v, ferr := f.Uint()
				e.FadeDurationMs, err = &v, ferr
			case 7:
				v, ferr := f.Bool()
				e.LoopPlayback, err = &v, ferr
			}
			return err
		})
		return e, err
	case event.KindTransition:
		var e Transition
		err = each(func(f wire.Field) error {
			var err error
			switch f.Num {
			case 2:
				var v uint32
				v, err = f.Uint32()
				e.Kind = uint8(v)
			case 3:
				e.DurationMs, err = f.Uint32()
			case 4:
				e.Color, err = d.opt(f)
			}
			return err
		})
		return e, err
	case event.KindSetCharacterPosition:
		var e SetCharacterPosition
		err = each(func(f wire.Field) error {
			var err error
			switch f.Num {
			case 2:
				e.Name, err = d.str(f)
			case 3:
				e.X, err = f.Int32()
			case 4:
				e.Y, err = f.Int32()
			case 5:
				v, ferr := f.Float32()
				e.Scale, err = &v, ferr
			}
			return err
		})
		return e, err
	}
	return nil, errors.New("event without kind")
}

func decodeCond(b []byte) (Cond, error) {
	var (
		c     Cond
		isVar bool
	)
	err := wire.Each(b, func(f wire.Field) error {
		var err error
		switch f.Num {
		case 1:
			var v uint64
			v, err = f.Uint()
			isVar = v == 1
		case 2:
			c.ID, err = f.Uint32()
		case 3:
			c.IsSet, err = f.Bool()
		case 4:
			var v uint64
			v, err = f.Uint()
			if err == nil && v >= uint64(len(opCodes)) {
				err = fmt.Errorf("unknown comparison code %d", v)
			} else if err == nil {
				c.Op = opCodes[v]
			}
		case 5:
			c.Value, err = f.Int32()
		}
		return err
	})
	if isVar {
		c.Kind = event.CondVarCmp
	} else {
		c.Kind = event.CondFlag
	}
	return c, err
}
