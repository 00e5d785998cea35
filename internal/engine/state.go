/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package engine

// HistoryLimit caps the dialogue history; the oldest entries are evicted first.
const HistoryLimit = 200

// HistoryEntry is one spoken line.
type HistoryEntry struct {
	Speaker string `json:"speaker" yaml:"speaker"`
	Text    string `json:"text" yaml:"text"`
}

// State is the mutable part of an engine. Flags is a bitset of 64 flags per
// word; Vars is indexed by variable id. Both grow on write.
type State struct {
	Position uint32         `json:"position" yaml:"position"`
	Flags    []uint64       `json:"flags" yaml:"flags"`
	Vars     []int32        `json:"vars" yaml:"vars"`
	Visual   VisualState    `json:"visual" yaml:"visual"`
	History  []HistoryEntry `json:"history" yaml:"history"`
}

// NewState returns a state positioned at start with room for flagCount flags.
func NewState(start, flagCount uint32) State {
	return State{
		Position: start,
		Flags:    flagWords(flagCount),
	}
}

// Flag reads a flag; unknown ids read as false.
func (s *State) Flag(id uint32) bool {
	w := int(id / 64)
	if w >= len(s.Flags) {
		return false
	}
	return s.Flags[w]&(1<<(id%64)) != 0
}

func (s *State) SetFlag(id uint32, v bool) {
	w := int(id / 64)
	for w >= len(s.Flags) {
		s.Flags = append(s.Flags, 0)
	}
	if v {
		s.Flags[w] |= 1 << (id % 64)
	} else {
		s.Flags[w] &^= 1 << (id % 64)
	}
}

// Var reads a variable; unknown ids read as zero.
func (s *State) Var(id uint32) int32 {
	if int(id) >= len(s.Vars) {
		return 0
	}
	return s.Vars[id]
}

func (s *State) SetVar(id uint32, v int32) {
	for int(id) >= len(s.Vars) {
		s.Vars = append(s.Vars, 0)
	}
	s.Vars[id] = v
}

func (s *State) pushHistory(speaker, text string) {
	if len(s.History) >= HistoryLimit {
		n := copy(s.History, s.History[len(s.History)-HistoryLimit+1:])
		s.History = s.History[:n]
	}
	s.History = append(s.History, HistoryEntry{Speaker: speaker, Text: text})
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	out.Flags = append([]uint64(nil), s.Flags...)
	out.Vars = append([]int32(nil), s.Vars...)
	out.History = append([]HistoryEntry(nil), s.History...)
	out.Visual = s.Visual.Clone()
	return out
}

func flagWords(flagCount uint32) []uint64 {
	if flagCount == 0 {
		return nil
	}
	return make([]uint64, (int(flagCount)+63)/64)
}
