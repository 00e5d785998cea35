/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package event

import "sort"

// SchemaVersion is the current raw script schema version.
const SchemaVersion = "1.0"

// Script is the raw script envelope: ordered events plus named entry points.
// An empty SchemaVersion means the document carried no version field.
type Script struct {
	SchemaVersion string         `json:"schema_version,omitempty"`
	Events        List           `json:"events"`
	Labels        map[string]int `json:"labels"`
}

// LabelNames returns label keys in lexicographic order.
func (s *Script) LabelNames() []string {
	names := make([]string, 0, len(s.Labels))
	for k := range s.Labels {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
