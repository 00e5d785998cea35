/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/compiled"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/event"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/migrate"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/security"
)

// Prepared is the output of the full front half of the pipeline.
type Prepared struct {
	Raw       *event.Script
	Compiled  *compiled.Script
	Migration *migrate.Report
}

// Prepare migrates, loads, validates and compiles script text. The compiled
// form is validated as well, so the result is ready for engine.New.
func Prepare(text []byte, limits security.Limits, policy security.Policy) (*Prepared, error) {
	raw, report, err := LoadMigrated(text, limits)
	if err != nil {
		return nil, err
	}
	c, err := Build(raw, limits, policy)
	if err != nil {
		return nil, err
	}
	return &Prepared{Raw: raw, Compiled: c, Migration: report}, nil
}

// Build validates raw, compiles it and validates the compiled result.
func Build(raw *event.Script, limits security.Limits, policy security.Policy) (*compiled.Script, error) {
	if err := policy.ValidateRaw(raw, limits); err != nil {
		return nil, err
	}
	c, err := Compile(raw)
	if err != nil {
		return nil, err
	}
	if err := policy.ValidateCompiled(c, limits); err != nil {
		return nil, err
	}
	return c, nil
}
