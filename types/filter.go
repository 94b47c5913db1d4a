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
	"errors"
	"fmt"
	"time"
)

// DateLayout is the textual format accepted by date conditions.
const DateLayout = "2006-01-02"

// ErrInvalidDate is returned when a date condition value is not YYYY-MM-DD.
var ErrInvalidDate = errors.New("invalid date filter value")

// Condition is one tagged predicate on a column.
type Condition struct {
	Column string
	Op     Op
	Value  any
	Values []any
}

// Filter is a conjunction of conditions. The zero value matches every row.
type Filter []Condition

// Eq matches rows where column equals value.
func Eq(column string, value any) Condition {
	return Condition{Column: column, Op: OpEquals, Value: value}
}

// In matches rows where column is one of values. An empty list is kept
// as-is; callers that want "skip when empty" should not add the condition.
func In(column string, values ...any) Condition {
	return Condition{Column: column, Op: OpIn, Values: values}
}

// OnDate matches rows whose column falls on the calendar day given as
// YYYY-MM-DD, whatever the time of day.
func OnDate(column string, day string) Condition {
	return Condition{Column: column, Op: OpDateEquals, Value: day}
}

// Where builds a filter from conditions.
func Where(conds ...Condition) Filter {
	return Filter(conds)
}

// Equals builds a filter of exact-match conditions from a column→value map.
// Map iteration order is irrelevant since conditions are ANDed.
func Equals(values map[string]any) Filter {
	f := make(Filter, 0, len(values))
	for k, v := range values {
		f = append(f, Eq(k, v))
	}
	return f
}

// And returns a new filter with conds appended.
func (f Filter) And(conds ...Condition) Filter {
	out := make(Filter, 0, len(f)+len(conds))
	out = append(out, f...)
	return append(out, conds...)
}

// Columns lists the columns referenced by the filter in order.
func (f Filter) Columns() []string {
	cols := make([]string, 0, len(f))
	for _, c := range f {
		cols = append(cols, c.Column)
	}
	return cols
}

// DayRange parses a YYYY-MM-DD value in loc and returns the half-open
// interval [start, end) covering that calendar day.
func DayRange(value any, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	var day time.Time
	switch v := value.(type) {
	case string:
		t, err := time.ParseInLocation(DateLayout, v, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, v)
		}
		day = t
	case time.Time:
		t := v.In(loc)
		day = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %v (%T)", ErrInvalidDate, value, value)
	}
	return day, day.AddDate(0, 0, 1), nil
}
