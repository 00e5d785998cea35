/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

var dotEscaper = strings.NewReplacer(`"`, `'`, `\`, `/`, "\n", " ", "\r", " ")

// Caption is the human-readable one-line label of a node.
func (n Node) Caption() string {
	switch n.Kind {
	case NodeDialogue:
		return fmt.Sprintf("[%d] %s: %s", n.ID, n.Speaker, n.Preview)
	case NodeChoice:
		return fmt.Sprintf("[%d] Choice: %s (%d options)", n.ID, n.Preview, n.OptionCount)
	case NodeScene:
		return fmt.Sprintf("[%d] Scene: %s", n.ID, n.Preview)
	case NodeJump:
		return fmt.Sprintf("[%d] Jump", n.ID)
	case NodeConditionalJump:
		return fmt.Sprintf("[%d] If: %s", n.ID, n.Preview)
	case NodePatch:
		return fmt.Sprintf("[%d] Patch", n.ID)
	case NodeExtCall:
		return fmt.Sprintf("[%d] Call: %s", n.ID, n.Preview)
	case NodeAudio:
		return fmt.Sprintf("[%d] Audio: %s", n.ID, n.Preview)
	case NodeTransition:
		return fmt.Sprintf("[%d] Transition: %s", n.ID, n.Preview)
	case NodePlacement:
		return fmt.Sprintf("[%d] Placement: %s", n.ID, n.Preview)
	case NodeEnd:
		return fmt.Sprintf("[%d] End", n.ID)
	}
	return fmt.Sprintf("[%d] %s", n.ID, n.Preview)
}

func (n Node) shape() string {
	switch n.Kind {
	case NodeChoice, NodeConditionalJump:
		return "diamond"
	case NodeJump:
		return "ellipse"
	case NodeEnd:
		return "doublecircle"
	}
	return "box"
}

func (e Edge) style() string {
	switch e.Kind {
	case EdgeJump:
		return "dashed"
	case EdgeConditionalTrue:
		return "bold"
	case EdgeConditionalFalse:
		return "dotted"
	}
	return "solid"
}

// DOT renders the graph in Graphviz syntax. Unreachable nodes are red and the
// start node is green.
func (g *Graph) DOT() string {
	var b strings.Builder
	b.WriteString("digraph StoryGraph {\n")
	b.WriteString("    rankdir=TB;\n")
	b.WriteString("    node [shape=box];\n\n")
	for _, n := range g.Nodes {
		color := "black"
		switch {
		case !n.Reachable:
			color = "red"
		case n.ID == g.StartID:
			color = "green"
		}
		fmt.Fprintf(&b, "    n%d [label=\"%s\" shape=%s color=%s];\n",
			n.ID, dotEscaper.Replace(n.Caption()), n.shape(), color)
	}
	b.WriteString("\n")
	for _, e := range g.Edges {
		label := ""
		if e.Label != nil {
			label = fmt.Sprintf(" label=\"%s\"", dotEscaper.Replace(*e.Label))
		}
		fmt.Fprintf(&b, "    n%d -> n%d [style=%s%s];\n", e.From, e.To, e.style(), label)
	}
	b.WriteString("}\n")
	return b.String()
}

// WriteJSON writes nodes, edges, labels and stats as indented JSON.
func (g *Graph) WriteJSON(w io.Writer) error {
	doc := struct {
		*Graph
		Stats Stats `json:"stats"`
	}{g, g.Stats()}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}
	return nil
}

// PDFOptions controls the outline export. Units are points.
type PDFOptions struct {
	Title      string
	PageWidth  float64
	PageHeight float64
	FontSize   float64
}

func (o PDFOptions) withDefaults() PDFOptions {
	if o.Title == "" {
		o.Title = "Story outline"
	}
	if o.PageWidth <= 0 || o.PageHeight <= 0 {
		o.PageWidth, o.PageHeight = 595, 842
	}
	if o.FontSize <= 0 {
		o.FontSize = 10
	}
	return o
}

// WritePDF renders a printable outline: one line per node followed by its
// outgoing edges, unreachable nodes in red.
func (g *Graph) WritePDF(w io.Writer, opt PDFOptions) error {
	opt = opt.withDefaults()
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: opt.PageWidth, Ht: opt.PageHeight},
	})
	pdf.SetTitle(opt.Title, true)
	pdf.SetAuthor("vnengine", false)
	pdf.SetMargins(36, 36, 36)
	pdf.SetAutoPageBreak(true, 36)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", opt.FontSize+4)
	pdf.CellFormat(0, opt.FontSize*2, tr(opt.Title), "", 1, "L", false, 0, "")
	st := g.Stats()
	pdf.SetFont("Helvetica", "", opt.FontSize)
	pdf.CellFormat(0, opt.FontSize*1.6,
		fmt.Sprintf("%d nodes, %d reachable, %d branches, %d edges", st.TotalNodes, st.ReachableNodes, st.BranchCount, st.EdgeCount),
		"", 1, "L", false, 0, "")
	pdf.Ln(opt.FontSize / 2)

	line := opt.FontSize * 1.4
	for _, n := range g.Nodes {
		if n.Reachable {
			pdf.SetTextColor(0, 0, 0)
		} else {
			pdf.SetTextColor(200, 0, 0)
		}
		style := ""
		if len(n.Labels) > 0 {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, opt.FontSize)
		caption := n.Caption()
		if len(n.Labels) > 0 {
			caption += "  <" + strings.Join(n.Labels, ", ") + ">"
		}
		pdf.CellFormat(0, line, tr(caption), "", 1, "L", false, 0, "")

		pdf.SetTextColor(90, 90, 90)
		pdf.SetFont("Helvetica", "", opt.FontSize-1)
		for _, e := range g.Outgoing(n.ID) {
			text := fmt.Sprintf("    -> n%d (%s)", e.To, e.Kind)
			if e.Label != nil {
				text += " " + *e.Label
			}
			pdf.CellFormat(0, line, tr(text), "", 1, "L", false, 0, "")
		}
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
