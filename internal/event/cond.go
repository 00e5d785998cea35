/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package event

import (
	"encoding/json"
	"fmt"
)

// CmpOp is a variable comparison operator.
type CmpOp string

const (
	OpEq CmpOp = "eq"
	OpNe CmpOp = "ne"
	OpLt CmpOp = "lt"
	OpLe CmpOp = "le"
	OpGt CmpOp = "gt"
	OpGe CmpOp = "ge"
)

// Valid reports whether op is one of the six known operators.
func (op CmpOp) Valid() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// Apply compares lhs against rhs. Unknown operators compare false.
func (op CmpOp) Apply(lhs, rhs int32) bool {
	switch op {
	case OpEq:
		return lhs == rhs
	case OpNe:
		return lhs != rhs
	case OpLt:
		return lhs < rhs
	case OpLe:
		return lhs <= rhs
	case OpGt:
		return lhs > rhs
	case OpGe:
		return lhs >= rhs
	}
	return false
}

// Symbol renders the operator the way the graph export shows it.
func (op CmpOp) Symbol() string {
	switch op {
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	}
	return string(op)
}

// CondKind selects between the two predicate shapes.
type CondKind string

const (
	CondFlag   CondKind = "flag"
	CondVarCmp CondKind = "var_cmp"
)

// Cond is the raw predicate of a jump_if event, tagged by `kind`.
// Flag predicates use Key and IsSet; var_cmp uses Key, Op and Value.
type Cond struct {
	Kind  CondKind
	Key   string
	IsSet bool
	Op    CmpOp
	Value int32
}

type flagCond struct {
	Kind  CondKind `json:"kind"`
	Key   string   `json:"key"`
	IsSet bool     `json:"is_set"`
}

type varCond struct {
	Kind  CondKind `json:"kind"`
	Key   string   `json:"key"`
	Op    CmpOp    `json:"op"`
	Value int32    `json:"value"`
}

func (c Cond) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case CondFlag:
		return json.Marshal(flagCond{Kind: c.Kind, Key: c.Key, IsSet: c.IsSet})
	case CondVarCmp:
		return json.Marshal(varCond{Kind: c.Kind, Key: c.Key, Op: c.Op, Value: c.Value})
	}
	return nil, fmt.Errorf("unknown condition kind %q", c.Kind)
}

func (c *Cond) UnmarshalJSON(b []byte) error {
	var probe struct {
		Kind CondKind `json:"kind"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return err
	}
	switch probe.Kind {
	case CondFlag:
		var f flagCond
		if err := json.Unmarshal(b, &f); err != nil {
			return err
		}
		*c = Cond{Kind: CondFlag, Key: f.Key, IsSet: f.IsSet}
	case CondVarCmp:
		var v varCond
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		if !v.Op.Valid() {
			return fmt.Errorf("unknown comparison operator %q", v.Op)
		}
		*c = Cond{Kind: CondVarCmp, Key: v.Key, Op: v.Op, Value: v.Value}
	default:
		return fmt.Errorf("unknown condition kind %q", probe.Kind)
	}
	return nil
}
