/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package dryrun executes a compiled script without a host, recording one
// trace entry per step. Runs are bounded by a step budget and never block.
package dryrun

import (
	"fmt"

	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/compiled"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/engine"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/event"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/vnerr"
)

// DefaultMaxSteps bounds a run when the caller passes no budget.
const DefaultMaxSteps = 2048

type StopReason string

const (
	Finished     StopReason = "finished"
	StepLimit    StopReason = "step_limit"
	RuntimeError StopReason = "runtime_error"
)

// StepTrace is the observable state just before a step is taken.
type StepTrace struct {
	Step             int        `json:"step"`
	EventIP          uint32     `json:"event_ip"`
	EventKind        event.Kind `json:"event_kind"`
	EventSignature   string     `json:"event_signature"`
	VisualBackground *string    `json:"visual_background"`
	VisualMusic      *string    `json:"visual_music"`
	CharacterCount   int        `json:"character_count"`
}

// Outcome is the raw result of Execute. Err is set only for RuntimeError.
type Outcome struct {
	Steps          []StepTrace
	Executed       int
	Reason         StopReason
	Err            error
	FailingEventIP *uint32
}

// Report is the serialisable result of Run.
type Report struct {
	MaxSteps       int         `json:"max_steps"`
	ExecutedSteps  int         `json:"executed_steps"`
	StopReason     StopReason  `json:"stop_reason"`
	StopMessage    string      `json:"stop_message"`
	FailingEventIP *uint32     `json:"failing_event_ip"`
	Policy         string      `json:"policy"`
	Steps          []StepTrace `json:"steps"`
}

// Execute drives e until the script ends, a step fails or maxSteps steps have
// been taken. Choices are resolved by policy and ExtCalls are resumed
// immediately.
func Execute(e *engine.Engine, maxSteps int, policy Policy) Outcome {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	out := Outcome{Steps: []StepTrace{}}
	cursor := 0
	for {
		if out.Executed >= maxSteps {
			out.Reason = StepLimit
			return out
		}
		ip := e.Position()
		ev, err := e.CurrentEvent()
		if err != nil {
			out.Reason = Finished
			return out
		}
		out.Steps = append(out.Steps, capture(out.Executed, ip, ev, e.VisualState()))

		switch x := ev.(type) {
		case compiled.Choice:
			if len(x.Options) == 0 {
				err = vnerr.ErrInvalidChoice
				break
			}
			idx := policy.Pick(out.Executed, len(x.Options), cursor)
			cursor++
			_, _, err = e.Choose(idx)
		case compiled.ExtCall:
			err = e.Resume()
		default:
			_, _, err = e.Step()
		}
		if err != nil {
			out.Reason = RuntimeError
			out.Err = err
			out.FailingEventIP = &ip
			return out
		}
		out.Executed++
	}
}

func capture(step int, ip uint32, ev compiled.Event, v engine.VisualState) StepTrace {
	return StepTrace{
		Step:             step,
		EventIP:          ip,
		EventKind:        ev.EventKind(),
		EventSignature:   compiled.Signature(ev),
		VisualBackground: v.Background,
		VisualMusic:      v.Music,
		CharacterCount:   len(v.Characters),
	}
}

// Run executes e and describes how the run ended.
func Run(e *engine.Engine, maxSteps int, policy Policy) *Report {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	o := Execute(e, maxSteps, policy)
	r := &Report{
		MaxSteps:       maxSteps,
		ExecutedSteps:  o.Executed,
		StopReason:     o.Reason,
		FailingEventIP: o.FailingEventIP,
		Policy:         policy.Label(),
		Steps:          o.Steps,
	}
	switch o.Reason {
	case StepLimit:
		r.StopMessage = fmt.Sprintf("Dry Run reached %d steps; possible loop or blocking flow", maxSteps)
	case Finished:
		r.StopMessage = fmt.Sprintf("Dry Run finished in %d step(s)", o.Executed)
	case RuntimeError:
		r.StopMessage = fmt.Sprintf("Dry Run runtime error at ip %d: %v", *o.FailingEventIP, o.Err)
	}
	return r
}
