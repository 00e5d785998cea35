/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package graph

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/compiled"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/script"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/security"
)

func compile(t *testing.T, src string) *compiled.Script {
	t.Helper()
	p, err := script.Prepare([]byte(src), security.DefaultLimits(), security.Policy{})
	require.NoError(t, err)
	return p.Compiled
}

const branching = `{
	"script_schema_version": "1.0",
	"events": [
		{"type": "dialogue", "speaker": "Ava", "text": "Pick a door."},
		{"type": "choice", "prompt": "Which \"door\"?", "options": [
			{"text": "Left", "target": "left"},
			{"text": "Right", "target": "right"}
		]},
		{"type": "dialogue", "speaker": "Ava", "text": "Left it is."},
		{"type": "jump", "target": "end"},
		{"type": "jump_if", "cond": {"kind": "var_cmp", "key": "gold", "op": "ge", "value": 3}, "target": "end"},
		{"type": "dialogue", "speaker": "Ava", "text": "Right, but poor."},
		{"type": "dialogue", "speaker": "Ghost", "text": "Nobody reaches me."},
		{"type": "dialogue", "speaker": "Ava", "text": "Done."}
	],
	"labels": {"start": 0, "left": 2, "right": 4, "orphan": 6, "end": 7}
}`

func TestBuildBranchingGraph(t *testing.T) {
	g := Build(compile(t, branching))

	require.Len(t, g.Nodes, 9)
	assert.Equal(t, NodeEnd, g.Nodes[8].Kind)
	assert.Equal(t, []uint32{6}, g.Unreachable())

	st := g.Stats()
	assert.Equal(t, 8, st.TotalNodes)
	assert.Equal(t, 7, st.ReachableNodes)
	assert.Equal(t, 1, st.UnreachableNodes)
	assert.Equal(t, 5, st.DialogueCount)
	assert.Equal(t, 1, st.ChoiceCount)
	assert.Equal(t, 2, st.BranchCount)
	assert.True(t, st.EndReachable)

	out := g.Outgoing(1)
	require.Len(t, out, 2)
	assert.Equal(t, EdgeChoice, out[0].Kind)
	assert.Equal(t, uint32(2), out[0].To)
	require.NotNil(t, out[1].OptionIndex)
	assert.Equal(t, 1, *out[1].OptionIndex)

	cond := g.Outgoing(4)
	require.Len(t, cond, 2)
	assert.Equal(t, EdgeConditionalTrue, cond[0].Kind)
	assert.Equal(t, uint32(7), cond[0].To)
	assert.Equal(t, EdgeConditionalFalse, cond[1].Kind)
	assert.Equal(t, "var[0] >= 3", g.Nodes[4].Preview)

	id, ok := g.FindLabel("orphan")
	require.True(t, ok)
	assert.Equal(t, uint32(6), id)
	assert.Equal(t, []string{"orphan"}, g.Nodes[6].Labels)
	assert.Len(t, g.Incoming(7), 2)
}

func TestCycleTerminates(t *testing.T) {
	g := Build(compile(t, `{
		"script_schema_version": "1.0",
		"events": [
			{"type": "dialogue", "speaker": "A", "text": "again"},
			{"type": "jump", "target": "start"}
		],
		"labels": {"start": 0}
	}`))
	assert.Empty(t, g.Unreachable())
	assert.False(t, g.Stats().EndReachable)
}

func TestPreviewCutsOnRuneBoundary(t *testing.T) {
	short := strings.Repeat("é", 50)
	assert.Equal(t, short, Preview(short))

	long := strings.Repeat("é", 60)
	p := Preview(long)
	assert.Equal(t, strings.Repeat("é", 47)+"...", p)
	assert.Equal(t, 50, len([]rune(p)))
}

func TestDOTExport(t *testing.T) {
	dot := Build(compile(t, branching)).DOT()
	assert.True(t, strings.HasPrefix(dot, "digraph StoryGraph {\n    rankdir=TB;\n    node [shape=box];\n"))
	assert.Contains(t, dot, `n0 [label="[0] Ava: Pick a door." shape=box color=green];`)
	assert.Contains(t, dot, `n1 [label="[1] Choice: Which 'door'? (2 options)" shape=diamond color=black];`)
	assert.Contains(t, dot, `shape=box color=red];`)
	assert.Contains(t, dot, `n3 -> n7 [style=dashed];`)
	assert.Contains(t, dot, `n4 -> n7 [style=bold label="true"];`)
	assert.Contains(t, dot, `n4 -> n5 [style=dotted label="false"];`)
	assert.Contains(t, dot, `n1 -> n2 [style=solid label="Left"];`)
	assert.True(t, strings.HasSuffix(dot, "}\n"))

	again := Build(compile(t, branching)).DOT()
	assert.Equal(t, dot, again)
}

func TestJSONExport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Build(compile(t, branching)).WriteJSON(&buf))

	var doc struct {
		Nodes  []Node            `json:"nodes"`
		Edges  []Edge            `json:"edges"`
		Labels map[string]uint32 `json:"labels"`
		Stats  Stats             `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Len(t, doc.Nodes, 9)
	assert.Equal(t, uint32(4), doc.Labels["right"])
	assert.Equal(t, 1, doc.Stats.UnreachableNodes)
}

func TestPDFExport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Build(compile(t, branching)).WritePDF(&buf, PDFOptions{Title: "Doors"}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}
