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

package model

import (
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/tomoncle/recordstore/types"
)

// DefaultPrimaryKey is used when a Model leaves PrimaryKey empty.
const DefaultPrimaryKey = "id"

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Field declares one column of a Model.
type Field struct {
	Name string          `yaml:"name"`
	Type types.FieldType `yaml:"type"`
	// Size bounds string columns; zero means the dialect default (255).
	Size    int  `yaml:"size,omitempty"`
	NotNull bool `yaml:"not_null,omitempty"`
	Unique  bool `yaml:"unique,omitempty"`
	// Default is a raw SQL default expression, e.g. "0" or "CURRENT_TIMESTAMP".
	Default       string `yaml:"default,omitempty"`
	AutoIncrement bool   `yaml:"auto_increment,omitempty"`
}

// Model is an explicit table declaration. A Model must not be mutated once
// Validate has been called on it.
type Model struct {
	Name       string  `yaml:"name"`
	PrimaryKey string  `yaml:"primary_key,omitempty"`
	Fields     []Field `yaml:"fields"`

	once  sync.Once
	err   error
	index map[string]int
}

// Record maps column names to scalar values.
type Record map[string]any

// New builds and validates a Model.
func New(name, primaryKey string, fields ...Field) (*Model, error) {
	m := &Model{Name: name, PrimaryKey: primaryKey, Fields: fields}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// MustNew is like New but panics on an invalid declaration.
func MustNew(name, primaryKey string, fields ...Field) *Model {
	m, err := New(name, primaryKey, fields...)
	if err != nil {
		panic(err)
	}
	return m
}

// Validate checks the declaration once and caches the outcome.
func (m *Model) Validate() error {
	if m == nil {
		return &FieldError{Err: ErrInvalidModel, Reason: "nil model"}
	}
	m.once.Do(func() {
		m.err = m.validate()
	})
	return m.err
}

func (m *Model) validate() error {
	invalid := func(field, format string, args ...any) error {
		return &FieldError{Model: m.Name, Field: field, Err: ErrInvalidModel, Reason: fmt.Sprintf(format, args...)}
	}
	if !identPattern.MatchString(m.Name) {
		return invalid("", "table name %q is not a valid identifier", m.Name)
	}
	if len(m.Fields) == 0 {
		return invalid("", "no fields declared")
	}
	if m.PrimaryKey == "" {
		m.PrimaryKey = DefaultPrimaryKey
	}

	index := make(map[string]int, len(m.Fields))
	for i, f := range m.Fields {
		if !identPattern.MatchString(f.Name) {
			return invalid(f.Name, "column name is not a valid identifier")
		}
		if _, dup := index[f.Name]; dup {
			return invalid(f.Name, "declared twice")
		}
		if !f.Type.IsValid() {
			return invalid(f.Name, "unknown field type %d", int(f.Type))
		}
		if f.Size < 0 {
			return invalid(f.Name, "negative size %d", f.Size)
		}
		if f.AutoIncrement && (f.Name != m.PrimaryKey || f.Type != types.FieldInteger) {
			return invalid(f.Name, "auto_increment requires an integer primary key")
		}
		index[f.Name] = i
	}
	if _, ok := index[m.PrimaryKey]; !ok {
		return invalid(m.PrimaryKey, "primary key is not a declared field")
	}
	m.index = index
	return nil
}

// Field looks up a declared column.
func (m *Model) Field(name string) (Field, bool) {
	i, ok := m.index[name]
	if !ok {
		return Field{}, false
	}
	return m.Fields[i], true
}

// Key returns the primary key field.
func (m *Model) Key() Field {
	f, _ := m.Field(m.PrimaryKey)
	return f
}

// HasAutoIncrement reports whether the primary key is generated by the database.
func (m *Model) HasAutoIncrement() bool {
	return m.Key().AutoIncrement
}

// Columns lists the declared column names in declaration order.
func (m *Model) Columns() []string {
	cols := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		cols[i] = f.Name
	}
	return cols
}

func (m *Model) String() string {
	if m == nil {
		return "<nil>"
	}
	return m.Name
}

// CheckColumn rejects a name that is not part of the schema.
func (m *Model) CheckColumn(name string) (Field, error) {
	f, ok := m.Field(name)
	if !ok {
		return Field{}, &FieldError{Model: m.Name, Field: name, Err: ErrUnknownField}
	}
	return f, nil
}

// ValidateRecord checks every column of rec against the schema and returns a
// copy holding coerced values. Timestamp text without an offset is read in
// loc.
func (m *Model) ValidateRecord(rec Record, loc *time.Location) (Record, error) {
	if len(rec) == 0 {
		return nil, &FieldError{Model: m.Name, Err: ErrInvalidValue, Reason: "record has no columns"}
	}
	out := make(Record, len(rec))
	for name, v := range rec {
		f, err := m.CheckColumn(name)
		if err != nil {
			return nil, err
		}
		cv, err := f.Coerce(v, loc)
		if err != nil {
			return nil, &FieldError{Model: m.Name, Field: name, Value: v, Err: ErrInvalidValue, Reason: err.Error()}
		}
		out[name] = cv
	}
	return out, nil
}

// ValidateFilter checks the filter columns and coerces equality and
// membership values, reading timestamp text in loc. Date condition values
// are left for the query to parse.
func (m *Model) ValidateFilter(filter types.Filter, loc *time.Location) (types.Filter, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	out := make(types.Filter, 0, len(filter))
	for _, c := range filter {
		f, err := m.CheckColumn(c.Column)
		if err != nil {
			return nil, err
		}
		switch c.Op {
		case types.OpEquals:
			v, err := f.Coerce(c.Value, loc)
			if err != nil {
				return nil, &FieldError{Model: m.Name, Field: f.Name, Value: c.Value, Err: ErrInvalidValue, Reason: err.Error()}
			}
			c.Value = v
		case types.OpIn:
			vals := make([]any, len(c.Values))
			for i, raw := range c.Values {
				v, err := f.Coerce(raw, loc)
				if err != nil {
					return nil, &FieldError{Model: m.Name, Field: f.Name, Value: raw, Err: ErrInvalidValue, Reason: err.Error()}
				}
				vals[i] = v
			}
			c.Values = vals
		case types.OpDateEquals:
			if f.Type != types.FieldTimestamp {
				return nil, &FieldError{Model: m.Name, Field: f.Name, Value: c.Value, Err: ErrInvalidValue,
					Reason: "date condition on a " + f.Type.Name() + " column"}
			}
		default:
			return nil, &FieldError{Model: m.Name, Field: f.Name, Err: ErrInvalidValue, Reason: "unknown operator " + c.Op.Name()}
		}
		out = append(out, c)
	}
	return out, nil
}

// CoerceID converts id to the primary key type. Integer ids are accepted
// for string keys as their decimal text.
func (m *Model) CoerceID(id any) (any, error) {
	key := m.Key()
	if id == nil {
		return nil, &FieldError{Model: m.Name, Field: key.Name, Err: ErrInvalidID, Reason: "nil id"}
	}
	if key.Type == types.FieldString || key.Type == types.FieldText {
		switch id.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			id = fmt.Sprint(id)
		}
	}
	v, err := key.Coerce(id, nil)
	if err != nil {
		return nil, &FieldError{Model: m.Name, Field: key.Name, Value: id, Err: ErrInvalidID, Reason: err.Error()}
	}
	return v, nil
}
