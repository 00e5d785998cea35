/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package save

import "fmt"

// ErrorKind classifies save failures.
type ErrorKind int

const (
	TooSmall ErrorKind = iota + 1
	TooLarge
	InvalidMagic
	IncompatibleVersion
	ChecksumMismatch
	LengthMismatch
	MissingPayload
	ScriptMismatch
	AuthKeyInvalid
	AuthenticationFailed
	Serialization
)

// Error is returned by every save operation.
type Error struct {
	Kind     ErrorKind
	Found    uint16
	Expected uint16
	Msg      string
}

func (e *Error) Error() string {
	switch e.Kind {
	case TooSmall:
		return "save data too small"
	case TooLarge:
		return "save data too large"
	case InvalidMagic:
		return "invalid save file magic bytes"
	case IncompatibleVersion:
		return fmt.Sprintf("incompatible save version: found %d, expected %d", e.Found, e.Expected)
	case ChecksumMismatch:
		return "save file checksum mismatch"
	case LengthMismatch:
		return "save file length mismatch"
	case MissingPayload:
		return "save file missing payload"
	case ScriptMismatch:
		return "save does not match current script"
	case AuthKeyInvalid:
		return "authentication key is empty or invalid"
	case AuthenticationFailed:
		return "save authentication failed"
	case Serialization:
		return "serialization error: " + e.Msg
	}
	return "save error"
}

// Is matches on Kind so callers can test errors.Is(err, &save.Error{Kind: save.ScriptMismatch}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of a save error, or 0.
func KindOf(err error) ErrorKind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return 0
		}
		err = u.Unwrap()
	}
	return 0
}
