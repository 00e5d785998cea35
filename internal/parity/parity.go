/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package parity compares the raw-script preview interpreter against the
// engine running the compiled form of the same script.
//
// The preview has no state model, so after it passes a JumpIf the two runs
// may legitimately diverge. Such divergences are reported as informational;
// any earlier divergence is an error.
package parity

import (
	"fmt"

	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/compiled"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/dryrun"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/engine"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/event"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/security"
)

type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityError Severity = "error"
)

type Code string

const (
	KindMismatch    Code = "kind_mismatch"
	PayloadMismatch Code = "payload_mismatch"
	LengthMismatch  Code = "length_mismatch"
)

// Diagnostic describes the first point where preview and runtime disagree.
type Diagnostic struct {
	Severity  Severity `json:"severity"`
	Code      Code     `json:"code"`
	Route     string   `json:"route"`
	Step      int      `json:"step"`
	PreviewIP *uint32  `json:"preview_ip,omitempty"`
	RuntimeIP *uint32  `json:"runtime_ip,omitempty"`
	Message   string   `json:"message"`
}

// Result is the outcome of one parity check.
type Result struct {
	Route       string             `json:"route"`
	Preview     []Entry            `json:"preview"`
	Runtime     []dryrun.StepTrace `json:"runtime"`
	Diagnostics []Diagnostic       `json:"diagnostics"`
}

// HasErrors reports whether any diagnostic has error severity.
func (r *Result) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Options configures the engine side of a check.
type Options struct {
	MaxSteps int
	Policy   security.Policy
	Limits   security.Limits
}

// Check runs raw through the preview interpreter and c through a fresh engine,
// both choosing with choice, and compares the two step sequences.
func Check(raw *event.Script, c *compiled.Script, choice dryrun.Policy, opt Options) (*Result, error) {
	e, err := engine.New(c, opt.Policy, opt.Limits)
	if err != nil {
		return nil, fmt.Errorf("parity engine: %w", err)
	}
	maxSteps := opt.MaxSteps
	if maxSteps <= 0 {
		maxSteps = dryrun.DefaultMaxSteps
	}
	preview := Simulate(raw, maxSteps, choice)
	runtime := dryrun.Execute(e, maxSteps, choice).Steps
	return &Result{
		Route:       choice.Label(),
		Preview:     preview,
		Runtime:     runtime,
		Diagnostics: Compare(preview, runtime, choice.Label()),
	}, nil
}

// Compare reports the first kind or payload mismatch over the common prefix,
// then a length mismatch if the sequences differ in length.
func Compare(preview []Entry, runtime []dryrun.StepTrace, route string) []Diagnostic {
	diags := []Diagnostic{}
	overlap := min(len(preview), len(runtime))
	for i := 0; i < overlap; i++ {
		p, r := preview[i], runtime[i]
		pip, rip := p.EventIP, r.EventIP
		if p.EventKind != r.EventKind {
			diags = append(diags, Diagnostic{
				Severity:  severity(preview, i),
				Code:      KindMismatch,
				Route:     route,
				Step:      i,
				PreviewIP: &pip,
				RuntimeIP: &rip,
				Message: fmt.Sprintf("Parity mismatch [route=%s] at step %d: preview %s@%d vs runtime %s@%d",
					route, i, p.EventKind, p.EventIP, r.EventKind, r.EventIP),
			})
			break
		}
		if p.EventSignature != r.EventSignature {
			diags = append(diags, Diagnostic{
				Severity:  severity(preview, i),
				Code:      PayloadMismatch,
				Route:     route,
				Step:      i,
				PreviewIP: &pip,
				RuntimeIP: &rip,
				Message: fmt.Sprintf("Parity payload mismatch [route=%s] at step %d: preview '%s' vs runtime '%s'",
					route, i, p.EventSignature, r.EventSignature),
			})
			break
		}
	}
	if len(preview) != len(runtime) {
		d := Diagnostic{
			Severity: severity(preview, overlap),
			Code:     LengthMismatch,
			Route:    route,
			Step:     overlap,
			Message:  fmt.Sprintf("Parity length mismatch [route=%s]: preview=%d runtime=%d", route, len(preview), len(runtime)),
		}
		if overlap < len(preview) {
			ip := preview[overlap].EventIP
			d.PreviewIP = &ip
		}
		if overlap < len(runtime) {
			ip := runtime[overlap].EventIP
			d.RuntimeIP = &ip
		}
		diags = append(diags, d)
	}
	return diags
}

// severity is informational once the preview has passed a JumpIf before
// step, since only the engine evaluates conditions.
func severity(preview []Entry, step int) Severity {
	for i := 0; i < step && i < len(preview); i++ {
		if preview[i].EventKind == event.KindJumpIf {
			return SeverityInfo
		}
	}
	return SeverityError
}

// CheckRoutes enumerates choice routes and checks each one as a scripted
// policy.
func CheckRoutes(raw *event.Script, c *compiled.Script, opt Options, maxRoutes, maxDepth int) ([]*Result, error) {
	maxSteps := opt.MaxSteps
	if maxSteps <= 0 {
		maxSteps = dryrun.DefaultMaxSteps
	}
	var out []*Result
	for _, route := range EnumerateRoutes(raw, maxSteps, maxRoutes, maxDepth) {
		r, err := Check(raw, c, dryrun.Scripted(route), opt)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
