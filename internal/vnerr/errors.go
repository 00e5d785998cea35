/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package vnerr defines the error taxonomy shared by the script pipeline.
package vnerr

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline errors.
type Kind int

const (
	InvalidScript Kind = iota + 1
	Serialization
	ResourceLimit
	SecurityPolicy
	BinaryFormat
	EndOfScript
	InvalidChoice
)

func (k Kind) String() string {
	switch k {
	case InvalidScript:
		return "invalid_script"
	case Serialization:
		return "serialization"
	case ResourceLimit:
		return "resource_limit"
	case SecurityPolicy:
		return "security_policy"
	case BinaryFormat:
		return "binary_format"
	case EndOfScript:
		return "end_of_script"
	case InvalidChoice:
		return "invalid_choice"
	default:
		return "unknown"
	}
}

// Span locates a parse failure inside Error.Window (byte offset and length).
type Span struct {
	Offset int
	Length int
}

// Error is the typed error returned by the loader, validator, compiler, codec and engine.
// Window and Span are only set for Serialization errors raised by the loader.
type Error struct {
	Kind   Kind
	Reason string
	Window string
	Span   *Span
}

func (e *Error) Error() string {
	switch e.Kind {
	case InvalidScript:
		return "script validation failed: " + e.Reason
	case Serialization:
		return "serialization error: " + e.Reason
	case ResourceLimit:
		return "resource limit exceeded: " + e.Reason
	case SecurityPolicy:
		return "security policy violation: " + e.Reason
	case BinaryFormat:
		return "binary format error: " + e.Reason
	case EndOfScript:
		return "script exhausted"
	case InvalidChoice:
		return "choice index out of range"
	default:
		return e.Reason
	}
}

// Is reports kind equality so errors.Is(err, vnerr.ErrEndOfScript) works for any reason text.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

var (
	ErrEndOfScript   = &Error{Kind: EndOfScript}
	ErrInvalidChoice = &Error{Kind: InvalidChoice}
)

// Invalid builds an InvalidScript error.
func Invalid(format string, args ...any) *Error {
	return &Error{Kind: InvalidScript, Reason: fmt.Sprintf(format, args...)}
}

// Limit builds a ResourceLimit error naming the exceeded cap.
func Limit(which string) *Error {
	return &Error{Kind: ResourceLimit, Reason: which}
}

// Policy builds a SecurityPolicy error.
func Policy(reason string) *Error {
	return &Error{Kind: SecurityPolicy, Reason: reason}
}

// Binary builds a BinaryFormat error.
func Binary(reason string) *Error {
	return &Error{Kind: BinaryFormat, Reason: reason}
}

// KindOf returns the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
