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
	"errors"
	"strings"
)

var (
	// ErrUnknownField means a column is not part of the model schema.
	ErrUnknownField = errors.New("unknown field")
	// ErrInvalidValue means a value does not fit its field type.
	ErrInvalidValue = errors.New("invalid field value")
	// ErrInvalidID means an id cannot be coerced to the primary key type.
	ErrInvalidID = errors.New("invalid id")
	// ErrInvalidModel means the model declaration itself is malformed.
	ErrInvalidModel = errors.New("invalid model")
)

// FieldError is a caller error tied to a model and optionally a field.
type FieldError struct {
	Model  string
	Field  string
	Value  any
	Err    error
	Reason string
}

func (e *FieldError) Error() string {
	var b strings.Builder
	if e.Model != "" {
		b.WriteString(e.Model)
	}
	if e.Field != "" {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(e.Field)
	}
	if b.Len() > 0 {
		b.WriteString(": ")
	}
	b.WriteString(e.Err.Error())
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

func (e *FieldError) Unwrap() error { return e.Err }
