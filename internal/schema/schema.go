/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package schema checks JSON documents against the embedded JSON Schemas of
// the pipeline's text formats.
package schema

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var files embed.FS

// Document names an embedded schema.
type Document string

const (
	RawScript   Document = "raw_script.schema.json"
	ReproCase   Document = "repro_case.schema.json"
	ReproReport Document = "repro_report.schema.json"
)

var compiled sync.Map // Document -> *gojsonschema.Schema

func load(doc Document) (*gojsonschema.Schema, error) {
	if s, ok := compiled.Load(doc); ok {
		return s.(*gojsonschema.Schema), nil
	}
	b, err := files.ReadFile("schemas/" + string(doc))
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", doc, err)
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(b))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", doc, err)
	}
	compiled.Store(doc, s)
	return s, nil
}

// ValidationError lists every schema violation found in a document.
type ValidationError struct {
	Document Document
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", strings.TrimSuffix(string(e.Document), ".schema.json"), strings.Join(e.Problems, "; "))
}

// Validate checks data against the named schema.
func Validate(doc Document, data []byte) error {
	s, err := load(doc)
	if err != nil {
		return err
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validate %s: %w", doc, err)
	}
	if res.Valid() {
		return nil
	}
	ve := &ValidationError{Document: doc}
	for _, re := range res.Errors() {
		ve.Problems = append(ve.Problems, fmt.Sprintf("%s: %s", re.Field(), re.Description()))
	}
	return ve
}
