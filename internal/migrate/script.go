/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package migrate

import "fmt"

// LegacyVersion is assumed for scripts that carry no schema version. It is the
// most recent legacy major, so unversioned documents take the 0.x upgrade path.
const LegacyVersion = "0.9"

// ScriptVersion is the current script schema version.
const ScriptVersion = "1.0"

var typeAliases = map[string]string{
	"extcall":           "ext_call",
	"audio":             "audio_action",
	"set_character_pos": "set_character_position",
}

// ScriptChain upgrades raw script documents.
var ScriptChain = Chain{
	Schema:      "script",
	Current:     ScriptVersion,
	Legacy:      LegacyVersion,
	VersionKeys: []string{"schema_version", "script_schema_version"},
	Steps: []Step{
		{ID: "script_legacy_to_1_0", From: LegacyWildcard, To: ScriptVersion, Apply: scriptLegacyTo10},
	},
}

// Script upgrades a decoded raw script document in place.
func Script(doc map[string]any) (*Report, error) {
	return ScriptChain.Migrate(doc)
}

func scriptLegacyTo10(doc map[string]any) (bool, error) {
	changed := false
	if _, ok := doc["events"]; !ok {
		doc["events"] = []any{}
		changed = true
	}
	if _, ok := doc["labels"]; !ok {
		doc["labels"] = map[string]any{"start": 0}
		changed = true
	}
	if _, ok := doc["labels"].(map[string]any); !ok {
		return false, fmt.Errorf("labels must be an object")
	}
	events, ok := doc["events"].([]any)
	if !ok {
		return false, fmt.Errorf("events must be an array")
	}
	for i, raw := range events {
		ev, ok := raw.(map[string]any)
		if !ok {
			return false, fmt.Errorf("events[%d] must be an object", i)
		}
		typ, _ := ev["type"].(string)
		if alias, ok := typeAliases[typ]; ok {
			ev["type"] = alias
			typ = alias
			changed = true
		}
		if typ == "ext_call" {
			if _, ok := ev["args"]; !ok {
				ev["args"] = []any{}
				changed = true
			}
		}
	}
	return changed, nil
}
