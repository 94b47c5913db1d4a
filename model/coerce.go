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
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tomoncle/recordstore/types"
)

// timeLayouts are tried in order when a timestamp arrives as text, either
// from a caller or from a driver that stores timestamps as strings.
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	types.DateLayout,
}

// ParseTimeIn reads a timestamp in any of the accepted layouts. Values
// without an offset are wall-clock times in loc; nil loc means UTC.
func ParseTimeIn(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as timestamp", s)
}

// Coerce converts v into the canonical Go type for the field: string,
// int64, float64, bool or time.Time. Nil passes through. Timestamp text
// without an offset is read in loc (nil means UTC).
func (f Field) Coerce(v any, loc *time.Location) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Type {
	case types.FieldString, types.FieldText:
		return toString(v)
	case types.FieldInteger:
		return toInt64(v)
	case types.FieldFloat:
		return toFloat64(v)
	case types.FieldBoolean:
		return toBool(v)
	case types.FieldTimestamp:
		return toTime(v, loc)
	}
	return nil, fmt.Errorf("unsupported field type %s", f.Type)
}

func toString(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case fmt.Stringer:
		return x.String(), nil
	}
	return nil, fmt.Errorf("expected string, got %T", v)
}

func toInt64(v any) (any, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return uintToInt64(uint64(x))
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		return uintToInt64(x)
	case float32:
		return floatToInt64(float64(x))
	case float64:
		return floatToInt64(x)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected integer, got %q", x)
		}
		return n, nil
	case []byte:
		return toInt64(string(x))
	}
	return nil, fmt.Errorf("expected integer, got %T", v)
}

func uintToInt64(u uint64) (any, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("integer %d overflows int64", u)
	}
	return int64(u), nil
}

func floatToInt64(f float64) (any, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return nil, fmt.Errorf("expected integer, got %v", f)
	}
	return int64(f), nil
}

func toFloat64(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil, fmt.Errorf("expected number, got %q", x)
		}
		return f, nil
	case []byte:
		return toFloat64(string(x))
	}
	n, err := toInt64(v)
	if err != nil {
		return nil, fmt.Errorf("expected number, got %T", v)
	}
	return float64(n.(int64)), nil
}

func toBool(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return nil, fmt.Errorf("expected boolean, got %q", x)
		}
		return b, nil
	case []byte:
		return toBool(string(x))
	case int64:
		return x != 0, nil
	case int:
		return x != 0, nil
	}
	return nil, fmt.Errorf("expected boolean, got %T", v)
}

func toTime(v any, loc *time.Location) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case *time.Time:
		if x == nil {
			return nil, nil
		}
		return *x, nil
	case string:
		return ParseTimeIn(x, loc)
	case []byte:
		return ParseTimeIn(string(x), loc)
	}
	return nil, fmt.Errorf("expected timestamp, got %T", v)
}

// Decode normalizes a scanned row. Declared columns are coerced to their
// field type, reading offset-less timestamp text in loc; columns the driver
// returns outside the schema keep their raw value with byte slices turned
// into strings.
func (m *Model) Decode(row map[string]any, loc *time.Location) Record {
	out := make(Record, len(row))
	for name, raw := range row {
		if b, ok := raw.([]byte); ok {
			raw = string(b)
		}
		f, ok := m.Field(name)
		if !ok {
			out[name] = raw
			continue
		}
		v, err := f.Coerce(raw, loc)
		if err != nil {
			out[name] = raw
			continue
		}
		out[name] = v
	}
	return out
}
