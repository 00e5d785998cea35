/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package dryrun

import (
	"fmt"
	"strconv"
	"strings"
)

// Strategy names how a Policy picks choice options.
type Strategy string

const (
	StrategyFirst       Strategy = "first"
	StrategyLast        Strategy = "last"
	StrategyAlternating Strategy = "alternating"
	StrategyScripted    Strategy = "scripted"
)

// Policy picks an option index whenever a run reaches a Choice. The zero
// value always picks option 0.
type Policy struct {
	Strategy Strategy
	Route    []int
}

func First() Policy       { return Policy{Strategy: StrategyFirst} }
func Last() Policy        { return Policy{Strategy: StrategyLast} }
func Alternating() Policy { return Policy{Strategy: StrategyAlternating} }

// Scripted follows route, one entry per Choice reached. Entries past the end
// of route pick option 0; every pick is clamped to the last option.
func Scripted(route []int) Policy {
	return Policy{Strategy: StrategyScripted, Route: append([]int(nil), route...)}
}

// ParsePolicy builds a policy from its CLI name. A non-empty route always
// selects the scripted strategy.
func ParsePolicy(name string, route []int) (Policy, error) {
	if len(route) > 0 {
		return Scripted(route), nil
	}
	switch Strategy(strings.ToLower(strings.TrimSpace(name))) {
	case "", StrategyFirst:
		return First(), nil
	case StrategyLast:
		return Last(), nil
	case StrategyAlternating:
		return Alternating(), nil
	case StrategyScripted:
		return Scripted(nil), nil
	}
	return Policy{}, fmt.Errorf("unknown choice policy %q", name)
}

// ParseRoute parses a comma separated list of option indices.
func ParseRoute(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	route := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid route entry %q", p)
		}
		route = append(route, n)
	}
	return route, nil
}

// Pick returns the option to take at a Choice with optionCount options.
// step is the index of the current step, cursor counts the choices already
// made in this run.
func (p Policy) Pick(step, optionCount, cursor int) int {
	if optionCount <= 0 {
		return 0
	}
	switch p.Strategy {
	case StrategyLast:
		return optionCount - 1
	case StrategyAlternating:
		return step % optionCount
	case StrategyScripted:
		idx := 0
		if cursor >= 0 && cursor < len(p.Route) {
			idx = p.Route[cursor]
		}
		if idx < 0 {
			idx = 0
		}
		if idx > optionCount-1 {
			idx = optionCount - 1
		}
		return idx
	}
	return 0
}

// Label is a short human name used in diagnostics, e.g. "scripted[1,0]".
func (p Policy) Label() string {
	switch p.Strategy {
	case StrategyLast, StrategyAlternating:
		return string(p.Strategy)
	case StrategyScripted:
		parts := make([]string, len(p.Route))
		for i, r := range p.Route {
			parts[i] = strconv.Itoa(r)
		}
		return "scripted[" + strings.Join(parts, ",") + "]"
	}
	return string(StrategyFirst)
}
