/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package save

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/envelope"
)

// AuthMagic prefixes authenticated saves:
// magic(4) | version(u16 LE) | payload_len(u32 LE) | HMAC-SHA256(32) | payload,
// where payload is a plain save envelope.
var AuthMagic = envelope.Magic{'V', 'N', 'S', 'A'}

const authHeaderSize = 4 + 2 + 4 + sha256.Size

func mac(key, payload []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(payload)
	return h.Sum(nil)
}

// EncodeAuthenticated wraps the save envelope with an HMAC tag under key.
func EncodeAuthenticated(d *Data, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, &Error{Kind: AuthKeyInvalid}
	}
	payload, err := d.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, &Error{Kind: TooLarge}
	}
	out := make([]byte, 10, authHeaderSize+len(payload))
	copy(out[0:4], AuthMagic[:])
	binary.LittleEndian.PutUint16(out[4:6], FormatVersion)
	binary.LittleEndian.PutUint32(out[6:10], uint32(len(payload)))
	out = append(out, mac(key, payload)...)
	return append(out, payload...), nil
}

// DecodeAuthenticated verifies the tag before decoding the inner save.
func DecodeAuthenticated(b, key []byte) (*Data, error) {
	if len(key) == 0 {
		return nil, &Error{Kind: AuthKeyInvalid}
	}
	if len(b) > MaxBytes+authHeaderSize {
		return nil, &Error{Kind: TooLarge}
	}
	if len(b) < authHeaderSize {
		return nil, &Error{Kind: TooSmall}
	}
	if [4]byte(b[0:4]) != AuthMagic {
		return nil, &Error{Kind: InvalidMagic}
	}
	if v := binary.LittleEndian.Uint16(b[4:6]); v != FormatVersion {
		return nil, &Error{Kind: IncompatibleVersion, Found: v, Expected: FormatVersion}
	}
	n := binary.LittleEndian.Uint32(b[6:10])
	tag := b[10:authHeaderSize]
	payload := b[authHeaderSize:]
	if len(payload) == 0 && n > 0 {
		return nil, &Error{Kind: MissingPayload}
	}
	if uint64(len(payload)) != uint64(n) {
		return nil, &Error{Kind: LengthMismatch}
	}
	if !hmac.Equal(tag, mac(key, payload)) {
		return nil, &Error{Kind: AuthenticationFailed}
	}
	return Decode(payload)
}
