/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Common illegal/default values used by enums.
const (
	IllegalValue = -1
	IllegalName  = "unknown"
	IllegalDesc  = "unknown"
)

// BaseEnum represents a basic enum contract used by domain types.
type BaseEnum interface {
	IsValid() bool
	Number() int
	String() string
	Desc() string
	Name() string
}

// FieldType is the logical type of a model column.
type FieldType int

const (
	FieldString FieldType = iota + 1
	FieldText
	FieldInteger
	FieldFloat
	FieldBoolean
	FieldTimestamp
)

var fieldTypeNames = map[FieldType][2]string{
	FieldString:    {"string", "bounded character data"},
	FieldText:      {"text", "unbounded character data"},
	FieldInteger:   {"integer", "64-bit signed integer"},
	FieldFloat:     {"float", "double precision number"},
	FieldBoolean:   {"boolean", "true or false"},
	FieldTimestamp: {"timestamp", "date and time of day"},
}

var _ BaseEnum = FieldType(0)

func (t FieldType) IsValid() bool {
	_, ok := fieldTypeNames[t]
	return ok
}

func (t FieldType) Number() int {
	if !t.IsValid() {
		return IllegalValue
	}
	return int(t)
}

func (t FieldType) Name() string {
	if v, ok := fieldTypeNames[t]; ok {
		return v[0]
	}
	return IllegalName
}

func (t FieldType) Desc() string {
	if v, ok := fieldTypeNames[t]; ok {
		return v[1]
	}
	return IllegalDesc
}

func (t FieldType) String() string { return t.Name() }

// ParseFieldType resolves a field type from its name. "int", "bool",
// "datetime" and "date" are accepted as aliases.
func ParseFieldType(s string) (FieldType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "varchar":
		return FieldString, nil
	case "text":
		return FieldText, nil
	case "integer", "int", "bigint":
		return FieldInteger, nil
	case "float", "double", "real":
		return FieldFloat, nil
	case "boolean", "bool":
		return FieldBoolean, nil
	case "timestamp", "datetime", "date":
		return FieldTimestamp, nil
	}
	return 0, fmt.Errorf("unknown field type %q", s)
}

// UnmarshalYAML lets model declarations spell types by name.
func (t *FieldType) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	ft, err := ParseFieldType(s)
	if err != nil {
		return err
	}
	*t = ft
	return nil
}

// MarshalYAML writes the type name.
func (t FieldType) MarshalYAML() (interface{}, error) {
	return t.Name(), nil
}

// Op is the comparison a filter condition applies.
type Op int

const (
	OpEquals Op = iota + 1
	OpIn
	OpDateEquals
)

var opNames = map[Op][2]string{
	OpEquals:     {"eq", "column equals value"},
	OpIn:         {"in", "column is one of values"},
	OpDateEquals: {"date", "column falls on calendar day"},
}

var _ BaseEnum = Op(0)

func (o Op) IsValid() bool {
	_, ok := opNames[o]
	return ok
}

func (o Op) Number() int {
	if !o.IsValid() {
		return IllegalValue
	}
	return int(o)
}

func (o Op) Name() string {
	if v, ok := opNames[o]; ok {
		return v[0]
	}
	return IllegalName
}

func (o Op) Desc() string {
	if v, ok := opNames[o]; ok {
		return v[1]
	}
	return IllegalDesc
}

func (o Op) String() string { return o.Name() }
