/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package compiled

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/event"
)

// Signature is a stable one-line projection of an event. Two events with the
// same signature are indistinguishable to the tooling monitors.
func Signature(ev Event) string {
	switch e := ev.(type) {
	case Dialogue:
		return "dialogue|" + e.Speaker + "|" + e.Text
	case Choice:
		return fmt.Sprintf("choice|%s|%d", e.Prompt, len(e.Options))
	case Scene:
		return fmt.Sprintf("scene|bg=%s|music=%s|chars=%d", optStr(e.Background), optStr(e.Music), len(e.Characters))
	case Jump:
		return "jump"
	case SetFlag:
		return "set_flag|" + strconv.FormatBool(e.Value)
	case SetVar:
		return "set_var|" + strconv.Itoa(int(e.Value))
	case JumpIf:
		if e.Cond.Kind == event.CondFlag {
			return "jump_if|flag|" + strconv.FormatBool(e.Cond.IsSet)
		}
		return fmt.Sprintf("jump_if|var|%s|%d", e.Cond.Op, e.Cond.Value)
	case Patch:
		return fmt.Sprintf("patch|bg=%s|music=%s|add=%d|upd=%d|rm=%d",
			optStr(e.Background), optStr(e.Music), len(e.Add), len(e.Update), len(e.Remove))
	case ExtCall:
		return fmt.Sprintf("ext_call|%s|%d", e.Command, len(e.Args))
	case AudioAction:
		var b strings.Builder
		fmt.Fprintf(&b, "audio|%s|%s|asset=%s|vol=%s",
			event.ChannelName(e.Channel), event.ActionName(e.Action), optStr(e.Asset), optF32(e.Volume))
		if e.FadeDurationMs != nil {
			fmt.Fprintf(&b, "|fade=%d", *e.FadeDurationMs)
		} else {
			b.WriteString("|fade=none")
		}
		if e.LoopPlayback != nil {
			fmt.Fprintf(&b, "|loop=%t", *e.LoopPlayback)
		} else {
			b.WriteString("|loop=none")
		}
		return b.String()
	case Transition:
		return fmt.Sprintf("transition|%s|%d|%s", event.TransitionName(e.Kind), e.DurationMs, optStr(e.Color))
	case SetCharacterPosition:
		return fmt.Sprintf("set_character_position|%s|%d|%d|%s", e.Name, e.X, e.Y, optF32(e.Scale))
	}
	return "unknown"
}

func optStr(s *string) string {
	if s == nil {
		return "none"
	}
	return strconv.Quote(*s)
}

func optF32(v *float32) string {
	if v == nil {
		return "none"
	}
	return strconv.FormatFloat(float64(*v), 'f', 3, 32)
}
