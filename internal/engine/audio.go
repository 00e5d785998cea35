/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package engine

import (
	"time"

	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/compiled"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/event"
)

// AudioOp is the kind of an audio command.
type AudioOp int

const (
	PlayBgm AudioOp = iota + 1
	StopBgm
	PlaySfx
	StopSfx
)

func (op AudioOp) String() string {
	switch op {
	case PlayBgm:
		return "play_bgm"
	case StopBgm:
		return "stop_bgm"
	case PlaySfx:
		return "play_sfx"
	case StopSfx:
		return "stop_sfx"
	}
	return "unknown"
}

// AudioCommand is emitted for the audio backend. Fade is the fade-in for
// PlayBgm and the fade-out for StopBgm/StopSfx.
type AudioCommand struct {
	Op       AudioOp
	Channel  uint8
	Resource string
	Loop     bool
	Fade     time.Duration
	Volume   *float32
}

func sameMusic(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// musicDelta returns the command that moves playback from before to after.
func musicDelta(before, after *string) []AudioCommand {
	if sameMusic(before, after) {
		return nil
	}
	if after == nil {
		return []AudioCommand{{Op: StopBgm, Channel: event.ChannelBGM}}
	}
	return []AudioCommand{{Op: PlayBgm, Channel: event.ChannelBGM, Resource: *after, Loop: true}}
}

// audioAction applies a BGM action to the visual music state and returns the
// command for any channel.
func audioAction(v *VisualState, a compiled.AudioAction) []AudioCommand {
	var fade time.Duration
	if a.FadeDurationMs != nil {
		fade = time.Duration(*a.FadeDurationMs) * time.Millisecond
	}
	switch {
	case a.Channel == event.ChannelBGM && a.Action == event.ActionPlay:
		if a.Asset == nil {
			return nil
		}
		loop := true
		if a.LoopPlayback != nil {
			loop = *a.LoopPlayback
		}
		v.Music = a.Asset
		return []AudioCommand{{Op: PlayBgm, Channel: a.Channel, Resource: *a.Asset, Loop: loop, Fade: fade, Volume: a.Volume}}
	case a.Channel == event.ChannelBGM:
		v.Music = nil
		return []AudioCommand{{Op: StopBgm, Channel: a.Channel, Fade: fade}}
	case a.Action == event.ActionPlay:
		if a.Asset == nil {
			return nil
		}
		loop := a.LoopPlayback != nil && *a.LoopPlayback
		return []AudioCommand{{Op: PlaySfx, Channel: a.Channel, Resource: *a.Asset, Loop: loop, Volume: a.Volume}}
	default:
		return []AudioCommand{{Op: StopSfx, Channel: a.Channel, Fade: fade}}
	}
}
