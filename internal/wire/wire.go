/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package wire is a small field-oriented binary codec on top of the protobuf
// wire format. Encoders write fields in call order, so equal inputs produce
// byte-identical output.
package wire

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Number is a field number.
type Number = protowire.Number

// Encoder appends fields to an internal buffer.
type Encoder struct {
	buf []byte
}

func (e *Encoder) Bytes() []byte { return e.buf }

func (e *Encoder) Uint(n Number, v uint64) {
	e.buf = protowire.AppendTag(e.buf, n, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, v)
}

func (e *Encoder) Int(n Number, v int64) {
	e.Uint(n, protowire.EncodeZigZag(v))
}

func (e *Encoder) Bool(n Number, v bool) {
	e.Uint(n, protowire.EncodeBool(v))
}

func (e *Encoder) Float32(n Number, v float32) {
	e.buf = protowire.AppendTag(e.buf, n, protowire.Fixed32Type)
	e.buf = protowire.AppendFixed32(e.buf, math.Float32bits(v))
}

func (e *Encoder) String(n Number, s string) {
	e.buf = protowire.AppendTag(e.buf, n, protowire.BytesType)
	e.buf = protowire.AppendString(e.buf, s)
}

func (e *Encoder) Raw(n Number, b []byte) {
	e.buf = protowire.AppendTag(e.buf, n, protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, b)
}

// Message writes a nested message built by fn.
func (e *Encoder) Message(n Number, fn func(*Encoder)) {
	var sub Encoder
	fn(&sub)
	e.Raw(n, sub.buf)
}

// OptString writes s only when it is non-nil; presence is preserved even for "".
func (e *Encoder) OptString(n Number, s *string) {
	if s != nil {
		e.String(n, *s)
	}
}

func (e *Encoder) OptInt(n Number, v *int32) {
	if v != nil {
		e.Int(n, int64(*v))
	}
}

func (e *Encoder) OptUint(n Number, v *uint64) {
	if v != nil {
		e.Uint(n, *v)
	}
}

func (e *Encoder) OptBool(n Number, v *bool) {
	if v != nil {
		e.Bool(n, *v)
	}
}

func (e *Encoder) OptFloat32(n Number, v *float32) {
	if v != nil {
		e.Float32(n, *v)
	}
}

// ErrType is returned when a field carries an unexpected wire type.
var ErrType = errors.New("unexpected wire type")

// Field is one decoded field.
type Field struct {
	Num   Number
	Type  protowire.Type
	Value uint64 // varint and fixed32 payloads
	Data  []byte // bytes payloads
}

func (f Field) want(t protowire.Type) error {
	if f.Type != t {
		return fmt.Errorf("field %d: %w", f.Num, ErrType)
	}
	return nil
}

func (f Field) Uint() (uint64, error) { return f.Value, f.want(protowire.VarintType) }

func (f Field) Uint32() (uint32, error) {
	if err := f.want(protowire.VarintType); err != nil {
		return 0, err
	}
	if f.Value > math.MaxUint32 {
		return 0, fmt.Errorf("field %d: value %d overflows u32", f.Num, f.Value)
	}
	return uint32(f.Value), nil
}

func (f Field) Int32() (int32, error) {
	if err := f.want(protowire.VarintType); err != nil {
		return 0, err
	}
	v := protowire.DecodeZigZag(f.Value)
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, fmt.Errorf("field %d: value %d overflows i32", f.Num, v)
	}
	return int32(v), nil
}

func (f Field) Bool() (bool, error) {
	return protowire.DecodeBool(f.Value), f.want(protowire.VarintType)
}

func (f Field) Float32() (float32, error) {
	return math.Float32frombits(uint32(f.Value)), f.want(protowire.Fixed32Type)
}

func (f Field) Text() (string, error) {
	return string(f.Data), f.want(protowire.BytesType)
}

func (f Field) Message() ([]byte, error) {
	return f.Data, f.want(protowire.BytesType)
}

// Each walks every field of b in order, stopping at the first error.
func Each(b []byte, fn func(Field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		f := Field{Num: num, Type: typ}
		switch typ {
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			f.Value, n = v, m
		case protowire.Fixed32Type:
			v, m := protowire.ConsumeFixed32(b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			f.Value, n = uint64(v), m
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			f.Data, n = v, m
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			n = m
		}
		b = b[n:]
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}
