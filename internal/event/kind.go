/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package event defines the raw, authoring-facing event model of a script and
// the small code tables shared with the compiled form.
package event

// Kind names an event variant. The values double as the `type` tag of the raw
// JSON form and as the event_kind reported by the tooling.
type Kind string

const (
	KindDialogue             Kind = "dialogue"
	KindChoice               Kind = "choice"
	KindScene                Kind = "scene"
	KindJump                 Kind = "jump"
	KindSetFlag              Kind = "set_flag"
	KindSetVar               Kind = "set_var"
	KindJumpIf               Kind = "jump_if"
	KindPatch                Kind = "patch"
	KindExtCall              Kind = "ext_call"
	KindAudioAction          Kind = "audio_action"
	KindTransition           Kind = "transition"
	KindSetCharacterPosition Kind = "set_character_position"
)

// Kinds lists every event kind in declaration order.
var Kinds = []Kind{
	KindDialogue, KindChoice, KindScene, KindJump, KindSetFlag, KindSetVar,
	KindJumpIf, KindPatch, KindExtCall, KindAudioAction, KindTransition, KindSetCharacterPosition,
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}
