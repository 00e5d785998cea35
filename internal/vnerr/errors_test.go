/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vnerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessages(t *testing.T) {
	cases := map[string]error{
		"script validation failed: missing start label": Invalid("missing start label"),
		"resource limit exceeded: max_events":           Limit("max_events"),
		"security policy violation: speaker cannot be empty": Policy("speaker cannot be empty"),
		"binary format error: payload checksum mismatch":     Binary("payload checksum mismatch"),
		"script exhausted":          ErrEndOfScript,
		"choice index out of range": ErrInvalidChoice,
	}
	for want, err := range cases {
		if got := err.Error(); got != want {
			t.Fatalf("got %q want %q", got, want)
		}
	}
}

func TestIsMatchesKindThroughWrapping(t *testing.T) {
	err := fmt.Errorf("step: %w", &Error{Kind: EndOfScript})
	if !errors.Is(err, ErrEndOfScript) {
		t.Fatalf("expected wrapped end-of-script to match")
	}
	if errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("kinds must not cross-match")
	}
	if KindOf(err) != EndOfScript {
		t.Fatalf("KindOf = %v", KindOf(err))
	}
	if errors.Is(Invalid("a"), Invalid("b")) {
		t.Fatalf("distinct reasons must not match")
	}
}
