/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package save binds engine state to the identity of the compiled script it
// was produced from and frames it in a checksummed binary envelope.
package save

import (
	"errors"

	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/compiled"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/engine"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/envelope"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/wire"
)

// FormatVersion is the save envelope version.
const FormatVersion uint16 = 1

// MaxBytes caps a save file.
const MaxBytes = 64 << 20

// Magic prefixes plain save envelopes.
var Magic = envelope.Magic{'V', 'N', 'S', 'V'}

// Data is a save: the script identity and the engine state.
type Data struct {
	ScriptID compiled.ID
	State    engine.State
}

// FromEngine snapshots e.
func FromEngine(e *engine.Engine) (*Data, error) {
	id, err := e.Script().ID()
	if err != nil {
		return nil, &Error{Kind: Serialization, Msg: err.Error()}
	}
	return &Data{ScriptID: id, State: e.State()}, nil
}

// MarshalBinary encodes d in the save envelope.
func (d *Data) MarshalBinary() ([]byte, error) {
	var w wire.Encoder
	w.Raw(1, d.ScriptID[:])
	w.Message(2, func(m *wire.Encoder) { encodeState(m, d.State) })
	out, err := envelope.Seal(Magic, FormatVersion, w.Bytes())
	if err != nil {
		return nil, &Error{Kind: TooLarge}
	}
	if len(out) > MaxBytes {
		return nil, &Error{Kind: TooLarge}
	}
	return out, nil
}

// Decode parses a save envelope.
func Decode(b []byte) (*Data, error) {
	if len(b) > MaxBytes {
		return nil, &Error{Kind: TooLarge}
	}
	payload, err := envelope.Open(b, Magic, FormatVersion)
	if err != nil {
		return nil, frameError(err)
	}
	d := &Data{}
	idSeen := false
	err = wire.Each(payload, func(f wire.Field) error {
		switch f.Num {
		case 1:
			raw, err := f.Message()
			if err != nil {
				return err
			}
			if len(raw) != len(d.ScriptID) {
				return errors.New("script id must be 32 bytes")
			}
			copy(d.ScriptID[:], raw)
			idSeen = true
		case 2:
			raw, err := f.Message()
			if err != nil {
				return err
			}
			d.State, err = decodeState(raw)
			return err
		}
		return nil
	})
	if err == nil && !idSeen {
		err = errors.New("missing script id")
	}
	if err != nil {
		return nil, &Error{Kind: Serialization, Msg: err.Error()}
	}
	return d, nil
}

// Validate fails with ScriptMismatch unless the save belongs to id.
func (d *Data) Validate(id compiled.ID) error {
	if d.ScriptID != id {
		return &Error{Kind: ScriptMismatch}
	}
	return nil
}

// Apply validates d against the engine's script and restores its state.
func (d *Data) Apply(e *engine.Engine) error {
	id, err := e.Script().ID()
	if err != nil {
		return &Error{Kind: Serialization, Msg: err.Error()}
	}
	if err := d.Validate(id); err != nil {
		return err
	}
	return e.Restore(d.State)
}

func frameError(err error) error {
	var fe *envelope.Error
	if !errors.As(err, &fe) {
		return &Error{Kind: Serialization, Msg: err.Error()}
	}
	switch fe.Problem {
	case envelope.TooSmall:
		return &Error{Kind: TooSmall}
	case envelope.TooLarge:
		return &Error{Kind: TooLarge}
	case envelope.BadMagic:
		return &Error{Kind: InvalidMagic}
	case envelope.BadVersion:
		return &Error{Kind: IncompatibleVersion, Found: fe.Found, Expected: FormatVersion}
	case envelope.MissingPayload:
		return &Error{Kind: MissingPayload}
	case envelope.LengthMismatch:
		return &Error{Kind: LengthMismatch}
	case envelope.ChecksumMismatch:
		return &Error{Kind: ChecksumMismatch}
	}
	return &Error{Kind: Serialization, Msg: err.Error()}
}
