/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package security validates raw and compiled scripts against resource
// limits and a content policy before they reach the engine.
package security

// Limits caps the size of a script and of its individual fields. Lengths are
// measured in bytes.
type Limits struct {
	MaxEvents      int `yaml:"max_events" json:"max_events"`
	MaxTextLength  int `yaml:"max_text_length" json:"max_text_length"`
	MaxLabelLength int `yaml:"max_label_length" json:"max_label_length"`
	MaxAssetLength int `yaml:"max_asset_length" json:"max_asset_length"`
	MaxCharacters  int `yaml:"max_characters" json:"max_characters"`
	MaxScriptBytes int `yaml:"max_script_bytes" json:"max_script_bytes"`
}

// DefaultLimits returns the limits used when no configuration overrides them.
func DefaultLimits() Limits {
	return Limits{
		MaxEvents:      10_000,
		MaxTextLength:  4096,
		MaxLabelLength: 64,
		MaxAssetLength: 128,
		MaxCharacters:  32,
		MaxScriptBytes: 512 * 1024,
	}
}

// Policy holds content rules that are not size limits.
type Policy struct {
	AllowEmptySpeaker bool `yaml:"allow_empty_speaker" json:"allow_empty_speaker"`
}
