/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package envelope frames binary payloads as
// magic(4) | version(u16 LE) | crc32(u32 LE) | length(u32 LE) | payload.
package envelope

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
)

// HeaderSize is the fixed prefix length before the payload.
const HeaderSize = 14

// Magic identifies the payload domain.
type Magic [4]byte

// Problem enumerates framing failures.
type Problem int

const (
	TooSmall Problem = iota + 1
	TooLarge
	BadMagic
	BadVersion
	MissingPayload
	LengthMismatch
	ChecksumMismatch
)

// Error reports a framing failure. Found is the version read from the header
// when Problem is BadVersion.
type Error struct {
	Problem Problem
	Found   uint16
}

func (e *Error) Error() string {
	switch e.Problem {
	case TooSmall:
		return "envelope too small"
	case TooLarge:
		return "payload too large"
	case BadMagic:
		return "bad magic"
	case BadVersion:
		return fmt.Sprintf("unsupported version %d", e.Found)
	case MissingPayload:
		return "missing payload"
	case LengthMismatch:
		return "payload length mismatch"
	case ChecksumMismatch:
		return "payload checksum mismatch"
	}
	return "envelope error"
}

// Seal frames payload under magic and version.
func Seal(magic Magic, version uint16, payload []byte) ([]byte, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, &Error{Problem: TooLarge}
	}
	out := make([]byte, HeaderSize, HeaderSize+len(payload))
	copy(out[0:4], magic[:])
	binary.LittleEndian.PutUint16(out[4:6], version)
	binary.LittleEndian.PutUint32(out[6:10], crc32.ChecksumIEEE(payload))
	binary.LittleEndian.PutUint32(out[10:14], uint32(len(payload)))
	return append(out, payload...), nil
}

// Open verifies the frame and returns the payload slice (aliasing b).
// Checks run in order: size, magic, version, length, checksum.
func Open(b []byte, magic Magic, version uint16) ([]byte, error) {
	if len(b) < HeaderSize {
		return nil, &Error{Problem: TooSmall}
	}
	if [4]byte(b[0:4]) != magic {
		return nil, &Error{Problem: BadMagic}
	}
	if v := binary.LittleEndian.Uint16(b[4:6]); v != version {
		return nil, &Error{Problem: BadVersion, Found: v}
	}
	sum := binary.LittleEndian.Uint32(b[6:10])
	n := binary.LittleEndian.Uint32(b[10:14])
	payload := b[HeaderSize:]
	if len(payload) == 0 && n > 0 {
		return nil, &Error{Problem: MissingPayload}
	}
	if uint64(len(payload)) != uint64(n) {
		return nil, &Error{Problem: LengthMismatch}
	}
	if crc32.ChecksumIEEE(payload) != sum {
		return nil, &Error{Problem: ChecksumMismatch}
	}
	return payload, nil
}
