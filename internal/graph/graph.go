/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package graph derives a story graph from a compiled script.
//
// Nodes are indexed by instruction pointer; node len(events) is the implicit
// end of the script. Edges live in a flat table plus per-node adjacency
// lists, so cycles never produce back-references between nodes.
package graph

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/compiled"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/event"
)

// PreviewRunes is the longest preview kept on a node.
const PreviewRunes = 50

type NodeKind string

const (
	NodeDialogue        NodeKind = "dialogue"
	NodeChoice          NodeKind = "choice"
	NodeScene           NodeKind = "scene"
	NodeJump            NodeKind = "jump"
	NodeConditionalJump NodeKind = "conditional_jump"
	NodeStateChange     NodeKind = "state_change"
	NodePatch           NodeKind = "patch"
	NodeExtCall         NodeKind = "ext_call"
	NodeAudio           NodeKind = "audio_action"
	NodeTransition      NodeKind = "transition"
	NodePlacement       NodeKind = "character_placement"
	NodeEnd             NodeKind = "end"
)

type EdgeKind string

const (
	EdgeSequential       EdgeKind = "sequential"
	EdgeJump             EdgeKind = "jump"
	EdgeConditionalTrue  EdgeKind = "conditional_true"
	EdgeConditionalFalse EdgeKind = "conditional_false"
	EdgeChoice           EdgeKind = "choice"
)

// Node is one event, or the terminal node.
type Node struct {
	ID          uint32   `json:"id"`
	Kind        NodeKind `json:"kind"`
	Speaker     string   `json:"speaker,omitempty"`
	Preview     string   `json:"preview,omitempty"`
	OptionCount int      `json:"option_count,omitempty"`
	Labels      []string `json:"labels"`
	Reachable   bool     `json:"reachable"`
}

type Edge struct {
	From        uint32   `json:"from"`
	To          uint32   `json:"to"`
	Kind        EdgeKind `json:"kind"`
	OptionIndex *int     `json:"option_index,omitempty"`
	Label       *string  `json:"label,omitempty"`
}

// Graph is the story graph of one compiled script.
type Graph struct {
	Nodes    []Node            `json:"nodes"`
	Edges    []Edge            `json:"edges"`
	StartID  uint32            `json:"start_id"`
	EndID    uint32            `json:"end_id"`
	LabelMap map[string]uint32 `json:"labels"`

	out [][]int
	in  [][]int
}

// Stats summarises a graph. The terminal node is not counted.
type Stats struct {
	TotalNodes       int  `json:"total_nodes"`
	ReachableNodes   int  `json:"reachable_nodes"`
	UnreachableNodes int  `json:"unreachable_nodes"`
	DialogueCount    int  `json:"dialogue_count"`
	ChoiceCount      int  `json:"choice_count"`
	BranchCount      int  `json:"branch_count"`
	EdgeCount        int  `json:"edge_count"`
	EndReachable     bool `json:"end_reachable"`
}

// Build derives the graph of s and marks reachability from its start.
func Build(s *compiled.Script) *Graph {
	n := uint32(len(s.Events))
	g := &Graph{
		Nodes:    make([]Node, 0, n+1),
		StartID:  s.StartIP,
		EndID:    n,
		LabelMap: make(map[string]uint32, len(s.Labels)),
	}
	byIP := make(map[uint32][]string)
	for _, name := range s.LabelNames() {
		ip := s.Labels[name]
		g.LabelMap[name] = ip
		byIP[ip] = append(byIP[ip], name)
	}
	for i, ev := range s.Events {
		ip := uint32(i)
		node := describe(ev)
		node.ID = ip
		node.Labels = labelsOrEmpty(byIP[ip])
		g.Nodes = append(g.Nodes, node)
		g.Edges = append(g.Edges, edges(ip, ev)...)
	}
	g.Nodes = append(g.Nodes, Node{ID: n, Kind: NodeEnd, Labels: labelsOrEmpty(byIP[n])})
	g.index()
	g.markReachable()
	return g
}

func labelsOrEmpty(l []string) []string {
	if l == nil {
		return []string{}
	}
	return l
}

// Preview truncates s to PreviewRunes runes, ending in "..." when cut.
func Preview(s string) string {
	if utf8.RuneCountInString(s) <= PreviewRunes {
		return s
	}
	cut, count := 0, 0
	for i := range s {
		if count == PreviewRunes-3 {
			cut = i
			break
		}
		count++
	}
	return s[:cut] + "..."
}

func describe(ev compiled.Event) Node {
	switch e := ev.(type) {
	case compiled.Dialogue:
		return Node{Kind: NodeDialogue, Speaker: e.Speaker, Preview: Preview(e.Text)}
	case compiled.Choice:
		return Node{Kind: NodeChoice, Preview: Preview(e.Prompt), OptionCount: len(e.Options)}
	case compiled.Scene:
		return Node{Kind: NodeScene, Preview: optPreview(e.Background)}
	case compiled.Jump:
		return Node{Kind: NodeJump}
	case compiled.JumpIf:
		return Node{Kind: NodeConditionalJump, Preview: Condition(e.Cond)}
	case compiled.SetFlag:
		return Node{Kind: NodeStateChange, Preview: fmt.Sprintf("flag[%d] = %t", e.FlagID, e.Value)}
	case compiled.SetVar:
		return Node{Kind: NodeStateChange, Preview: fmt.Sprintf("var[%d] = %d", e.VarID, e.Value)}
	case compiled.Patch:
		return Node{Kind: NodePatch}
	case compiled.ExtCall:
		return Node{Kind: NodeExtCall, Preview: Preview(e.Command)}
	case compiled.AudioAction:
		return Node{Kind: NodeAudio, Preview: event.ChannelName(e.Channel) + "/" + event.ActionName(e.Action)}
	case compiled.Transition:
		return Node{Kind: NodeTransition, Preview: event.TransitionName(e.Kind)}
	case compiled.SetCharacterPosition:
		scale := "none"
		if e.Scale != nil {
			scale = strconv.FormatFloat(float64(*e.Scale), 'f', 3, 32)
		}
		return Node{Kind: NodePlacement, Preview: Preview(fmt.Sprintf("%s (%d, %d) s=%s", e.Name, e.X, e.Y, scale))}
	}
	return Node{Kind: NodePatch}
}

func optPreview(s *string) string {
	if s == nil {
		return "none"
	}
	return Preview(*s)
}

// Condition renders a resolved predicate, e.g. "!flag[2]" or "var[0] >= 3".
func Condition(c compiled.Cond) string {
	if c.Kind == event.CondFlag {
		if c.IsSet {
			return fmt.Sprintf("flag[%d]", c.ID)
		}
		return fmt.Sprintf("!flag[%d]", c.ID)
	}
	return fmt.Sprintf("var[%d] %s %d", c.ID, c.Op.Symbol(), c.Value)
}

func edges(ip uint32, ev compiled.Event) []Edge {
	next := ip + 1
	switch e := ev.(type) {
	case compiled.Choice:
		out := make([]Edge, 0, len(e.Options))
		for i, opt := range e.Options {
			idx, text := i, opt.Text
			out = append(out, Edge{From: ip, To: opt.TargetIP, Kind: EdgeChoice, OptionIndex: &idx, Label: &text})
		}
		return out
	case compiled.Jump:
		return []Edge{{From: ip, To: e.TargetIP, Kind: EdgeJump}}
	case compiled.JumpIf:
		yes, no := "true", "false"
		return []Edge{
			{From: ip, To: e.TargetIP, Kind: EdgeConditionalTrue, Label: &yes},
			{From: ip, To: next, Kind: EdgeConditionalFalse, Label: &no},
		}
	}
	return []Edge{{From: ip, To: next, Kind: EdgeSequential}}
}

func (g *Graph) index() {
	g.out = make([][]int, len(g.Nodes))
	g.in = make([][]int, len(g.Nodes))
	for i, e := range g.Edges {
		if int(e.From) < len(g.Nodes) {
			g.out[e.From] = append(g.out[e.From], i)
		}
		if int(e.To) < len(g.Nodes) {
			g.in[e.To] = append(g.in[e.To], i)
		}
	}
}

func (g *Graph) markReachable() {
	if int(g.StartID) >= len(g.Nodes) {
		return
	}
	seen := make([]bool, len(g.Nodes))
	queue := []uint32{g.StartID}
	seen[g.StartID] = true
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, ei := range g.out[id] {
			to := g.Edges[ei].To
			if int(to) < len(seen) && !seen[to] {
				seen[to] = true
				queue = append(queue, to)
			}
		}
	}
	for i := range g.Nodes {
		g.Nodes[i].Reachable = seen[i]
	}
}

// Node returns the node at id.
func (g *Graph) Node(id uint32) (Node, bool) {
	if int(id) >= len(g.Nodes) {
		return Node{}, false
	}
	return g.Nodes[id], true
}

// Outgoing lists the edges leaving id in table order.
func (g *Graph) Outgoing(id uint32) []Edge {
	if int(id) >= len(g.out) {
		return nil
	}
	return g.pick(g.out[id])
}

// Incoming lists the edges entering id in table order.
func (g *Graph) Incoming(id uint32) []Edge {
	if int(id) >= len(g.in) {
		return nil
	}
	return g.pick(g.in[id])
}

func (g *Graph) pick(idx []int) []Edge {
	out := make([]Edge, 0, len(idx))
	for _, i := range idx {
		out = append(out, g.Edges[i])
	}
	return out
}

// FindLabel resolves a label to its node id.
func (g *Graph) FindLabel(name string) (uint32, bool) {
	id, ok := g.LabelMap[name]
	return id, ok
}

// Unreachable lists the ids of event nodes the start cannot reach.
func (g *Graph) Unreachable() []uint32 {
	var out []uint32
	for _, n := range g.Nodes {
		if n.Kind != NodeEnd && !n.Reachable {
			out = append(out, n.ID)
		}
	}
	return out
}

func (g *Graph) Stats() Stats {
	var st Stats
	conditional := 0
	for _, n := range g.Nodes {
		if n.Kind == NodeEnd {
			st.EndReachable = n.Reachable
			continue
		}
		st.TotalNodes++
		if n.Reachable {
			st.ReachableNodes++
		}
		switch n.Kind {
		case NodeDialogue:
			st.DialogueCount++
		case NodeChoice:
			st.ChoiceCount++
		case NodeConditionalJump:
			conditional++
		}
	}
	st.UnreachableNodes = st.TotalNodes - st.ReachableNodes
	st.BranchCount = st.ChoiceCount + conditional
	st.EdgeCount = len(g.Edges)
	return st
}
