/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package intern deduplicates strings for the lifetime of one compile.
//
// Go strings are immutable references to shared bytes, so a handle is simply
// the canonical string value: every Intern call with equal content returns a
// string backed by the same memory.
package intern

// Pool maps content to its canonical handle. The zero value is ready to use.
// A Pool is not safe for concurrent use.
type Pool struct {
	m map[string]string
}

// New returns a pool pre-sized for about n distinct strings.
func New(n int) *Pool {
	return &Pool{m: make(map[string]string, n)}
}

// Intern returns the canonical handle for s.
func (p *Pool) Intern(s string) string {
	if p.m == nil {
		p.m = make(map[string]string)
	}
	if h, ok := p.m[s]; ok {
		return h
	}
	p.m[s] = s
	return s
}

// Opt interns an optional string, preserving nil.
func (p *Pool) Opt(s *string) *string {
	if s == nil {
		return nil
	}
	h := p.Intern(*s)
	return &h
}

// Len reports the number of distinct strings seen.
func (p *Pool) Len() int { return len(p.m) }
