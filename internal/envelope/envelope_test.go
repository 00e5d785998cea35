/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package envelope

import (
	"errors"
	"testing"
)

var testMagic = Magic{'T', 'E', 'S', 'T'}

func problemOf(t *testing.T, err error) Problem {
	t.Helper()
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %v", err)
	}
	return e.Problem
}

func TestSealOpen(t *testing.T) {
	b, err := Seal(testMagic, 3, []byte("payload"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if len(b) != HeaderSize+7 {
		t.Fatalf("len = %d", len(b))
	}
	p, err := Open(b, testMagic, 3)
	if err != nil || string(p) != "payload" {
		t.Fatalf("open = %q, %v", p, err)
	}
}

func TestOpenFailures(t *testing.T) {
	good, _ := Seal(testMagic, 1, []byte("abcdef"))

	if _, err := Open(good[:13], testMagic, 1); problemOf(t, err) != TooSmall {
		t.Fatalf("want TooSmall")
	}
	if _, err := Open(good, Magic{'N', 'O', 'P', 'E'}, 1); problemOf(t, err) != BadMagic {
		t.Fatalf("want BadMagic")
	}
	_, err := Open(good, testMagic, 2)
	var e *Error
	if !errors.As(err, &e) || e.Problem != BadVersion || e.Found != 1 {
		t.Fatalf("want BadVersion found=1, got %v", err)
	}
	if _, err := Open(good[:len(good)-1], testMagic, 1); problemOf(t, err) != LengthMismatch {
		t.Fatalf("want LengthMismatch")
	}
	if _, err := Open(good[:HeaderSize], testMagic, 1); problemOf(t, err) != MissingPayload {
		t.Fatalf("want MissingPayload")
	}
}

func TestEverySingleBitFlipIsDetected(t *testing.T) {
	good, _ := Seal(testMagic, 1, []byte("the quick brown fox"))
	for i := 0; i < len(good)*8; i++ {
		b := append([]byte(nil), good...)
		b[i/8] ^= 1 << (i % 8)
		if _, err := Open(b, testMagic, 1); err == nil {
			t.Fatalf("bit %d flip not detected", i)
		}
	}
}
