/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package parity

import (
	"maps"
	"slices"

	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/dryrun"
	"github.com/Kitsunp/prueba-de-uso-de-rust-sub000/internal/event"
)

// Route enumeration bounds used when the caller passes zero.
const (
	DefaultMaxRoutes = 64
	DefaultMaxDepth  = 16
)

type routeFrame struct {
	ip      int
	steps   int
	choices []int
	flags   map[string]bool
	vars    map[string]int32
}

func (f routeFrame) fork() routeFrame {
	f.choices = slices.Clone(f.choices)
	f.flags = maps.Clone(f.flags)
	f.vars = maps.Clone(f.vars)
	return f
}

// EnumerateRoutes explores the option indices a player can pick, depth
// first, and returns the distinct routes in lexicographic order. Unlike
// Simulate it tracks flags and variables so JumpIf follows the branch a real
// run would take. A route ends at the end of the script, after maxSteps
// events, after maxDepth choices, or at an unresolvable target. At least one
// (possibly empty) route is always returned.
func EnumerateRoutes(s *event.Script, maxSteps, maxRoutes, maxDepth int) [][]int {
	if maxSteps <= 0 {
		maxSteps = dryrun.DefaultMaxSteps
	}
	if maxRoutes <= 0 {
		maxRoutes = DefaultMaxRoutes
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	var routes [][]int
	start, ok := s.Labels["start"]
	if !ok {
		return [][]int{{}}
	}
	stack := []routeFrame{{ip: start, choices: []int{}, flags: map[string]bool{}, vars: map[string]int32{}}}
	for len(stack) > 0 && len(routes) < maxRoutes {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.steps >= maxSteps || f.ip < 0 || f.ip >= len(s.Events) {
			routes = append(routes, f.choices)
			continue
		}
		ev := s.Events[f.ip]
		if ch, isChoice := ev.(event.Choice); isChoice {
			if len(ch.Options) == 0 || len(f.choices) >= maxDepth {
				routes = append(routes, f.choices)
				continue
			}
			pushed := false
			for i := len(ch.Options) - 1; i >= 0; i-- {
				target, ok := s.Labels[ch.Options[i].Target]
				if !ok {
					continue
				}
				next := f.fork()
				next.steps++
				next.ip = target
				next.choices = append(next.choices, i)
				stack = append(stack, next)
				pushed = true
			}
			if !pushed {
				routes = append(routes, f.choices)
			}
			continue
		}

		next := f.ip + 1
		switch e := ev.(type) {
		case event.SetFlag:
			f.flags[e.Key] = e.Value
		case event.SetVar:
			f.vars[e.Key] = e.Value
		case event.Jump:
			if next, ok = s.Labels[e.Target]; !ok {
				routes = append(routes, f.choices)
				continue
			}
		case event.JumpIf:
			if holds(e.Cond, f) {
				if next, ok = s.Labels[e.Target]; !ok {
					routes = append(routes, f.choices)
					continue
				}
			}
		}
		f.ip = next
		f.steps++
		stack = append(stack, f)
	}
	if len(routes) == 0 {
		routes = append(routes, []int{})
	}
	slices.SortFunc(routes, slices.Compare[[]int])
	routes = slices.CompactFunc(routes, slices.Equal[[]int])
	if len(routes) > maxRoutes {
		routes = routes[:maxRoutes]
	}
	return routes
}

func holds(c event.Cond, f routeFrame) bool {
	if c.Kind == event.CondFlag {
		return f.flags[c.Key] == c.IsSet
	}
	return c.Op.Apply(f.vars[c.Key], c.Value)
}
