/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package event

import "fmt"

// Audio channel codes used by compiled audio actions.
const (
	ChannelBGM   uint8 = 0
	ChannelSFX   uint8 = 1
	ChannelVoice uint8 = 2
)

// Audio action codes.
const (
	ActionPlay    uint8 = 0
	ActionStop    uint8 = 1
	ActionFadeOut uint8 = 2
)

// Transition kind codes.
const (
	TransitionFade     uint8 = 0
	TransitionDissolve uint8 = 1
	TransitionCut      uint8 = 2
)

var (
	channelNames    = []string{"bgm", "sfx", "voice"}
	actionNames     = []string{"play", "stop", "fade_out"}
	transitionNames = []string{"fade", "dissolve", "cut"}
)

func lookup(names []string, value, what string) (uint8, error) {
	for i, n := range names {
		if n == value {
			return uint8(i), nil
		}
	}
	return 0, fmt.Errorf("unknown %s '%s'", what, value)
}

func name(names []string, code uint8) string {
	if int(code) < len(names) {
		return names[code]
	}
	return "unknown"
}

// ChannelCode maps "bgm", "sfx" and "voice" to their codes.
func ChannelCode(s string) (uint8, error) { return lookup(channelNames, s, "audio channel") }

// ActionCode maps "play", "stop" and "fade_out" to their codes.
func ActionCode(s string) (uint8, error) { return lookup(actionNames, s, "audio action") }

// TransitionCode maps "fade", "dissolve" and "cut" to their codes.
func TransitionCode(s string) (uint8, error) { return lookup(transitionNames, s, "transition kind") }

func ChannelName(c uint8) string    { return name(channelNames, c) }
func ActionName(c uint8) string     { return name(actionNames, c) }
func TransitionName(c uint8) string { return name(transitionNames, c) }
