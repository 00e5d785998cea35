/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package repro

import (
	"fmt"

	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/event"
)

// EndLabel names the position just past the last kept event in a
// minimal script.
const EndLabel = "repro_end"

// MinimalScript cuts the events within radius of failureIP out of s. Each
// kept event gets a "repro_<n>" label, "start" points at the first one and
// EndLabel at the end of the cut. Labels inside the window are remapped.
// Targets outside the window are pointed at EndLabel; the second result
// counts them.
func MinimalScript(s *event.Script, failureIP, radius int) (*event.Script, int) {
	if len(s.Events) == 0 {
		return &event.Script{SchemaVersion: event.SchemaVersion, Events: event.List{}, Labels: map[string]int{"start": 0, EndLabel: 0}}, 0
	}
	failure := min(max(failureIP, 0), len(s.Events)-1)
	start := max(failure-radius, 0)
	end := min(failure+radius+1, len(s.Events))

	remap := make(map[string]string)
	for _, name := range s.LabelNames() {
		if idx := s.Labels[name]; idx >= start && idx < end {
			remap[name] = fmt.Sprintf("repro_%d", idx-start)
		}
	}
	labels := make(map[string]int, end-start+2)
	for off := 0; off < end-start; off++ {
		labels[fmt.Sprintf("repro_%d", off)] = off
	}
	labels["start"] = 0
	labels[EndLabel] = end - start

	r := retargeter{remap: remap}
	events := make(event.List, 0, end-start)
	for _, ev := range s.Events[start:end] {
		events = append(events, r.event(ev))
	}
	return &event.Script{SchemaVersion: event.SchemaVersion, Events: events, Labels: labels}, r.clamped
}

type retargeter struct {
	remap   map[string]string
	clamped int
}

func (r *retargeter) target(name string) string {
	if t, ok := r.remap[name]; ok {
		return t
	}
	r.clamped++
	return EndLabel
}

func (r *retargeter) event(ev event.Event) event.Event {
	switch e := ev.(type) {
	case event.Jump:
		return event.Jump{Target: r.target(e.Target)}
	case event.JumpIf:
		return event.JumpIf{Cond: e.Cond, Target: r.target(e.Target)}
	case event.Choice:
		opts := make([]event.ChoiceOption, len(e.Options))
		for i, o := range e.Options {
			opts[i] = event.ChoiceOption{Text: o.Text, Target: r.target(o.Target)}
		}
		return event.Choice{Prompt: e.Prompt, Options: opts}
	}
	return ev
}
