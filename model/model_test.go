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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/recordstore/types"
)

func usersModel(t *testing.T) *Model {
	t.Helper()
	m, err := New("users", "",
		Field{Name: "id", Type: types.FieldInteger, AutoIncrement: true},
		Field{Name: "name", Type: types.FieldString, Size: 64, NotNull: true},
		Field{Name: "score", Type: types.FieldFloat},
		Field{Name: "active", Type: types.FieldBoolean},
		Field{Name: "created_at", Type: types.FieldTimestamp},
	)
	require.NoError(t, err)
	return m
}

func TestModelValidate(t *testing.T) {
	m := usersModel(t)
	assert.Equal(t, DefaultPrimaryKey, m.PrimaryKey)
	assert.True(t, m.HasAutoIncrement())
	assert.Equal(t, []string{"id", "name", "score", "active", "created_at"}, m.Columns())

	cases := []struct {
		name   string
		model  *Model
		reason string
	}{
		{"bad table name", &Model{Name: "users;drop", Fields: []Field{{Name: "id", Type: types.FieldInteger}}}, "table name"},
		{"no fields", &Model{Name: "users"}, "no fields"},
		{"duplicate field", &Model{Name: "users", Fields: []Field{
			{Name: "id", Type: types.FieldInteger}, {Name: "id", Type: types.FieldString},
		}}, "declared twice"},
		{"unknown type", &Model{Name: "users", Fields: []Field{{Name: "id"}}}, "unknown field type"},
		{"missing key", &Model{Name: "users", PrimaryKey: "uid", Fields: []Field{{Name: "id", Type: types.FieldInteger}}}, "primary key"},
		{"auto increment on text", &Model{Name: "users", Fields: []Field{
			{Name: "id", Type: types.FieldString, AutoIncrement: true},
		}}, "auto_increment"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.model.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidModel)
			assert.Contains(t, err.Error(), tc.reason)
			// cached
			assert.Same(t, err, tc.model.Validate())
		})
	}
}

func TestValidateRecord(t *testing.T) {
	m := usersModel(t)

	rec, err := m.ValidateRecord(Record{"name": "alice", "score": 3, "active": "true", "created_at": "2024-01-02 10:30:00"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", rec["name"])
	assert.Equal(t, float64(3), rec["score"])
	assert.Equal(t, true, rec["active"])
	assert.Equal(t, time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC), rec["created_at"])

	_, err = m.ValidateRecord(Record{"nickname": "al"}, nil)
	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.Equal(t, "nickname", fe.Field)

	_, err = m.ValidateRecord(Record{"score": "high"}, nil)
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = m.ValidateRecord(Record{}, nil)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestValidateRecordReadsWallClockInLocation(t *testing.T) {
	m := usersModel(t)
	shanghai := time.FixedZone("UTC+8", 8*60*60)

	rec, err := m.ValidateRecord(Record{"created_at": "2024-03-01 23:00:00"}, shanghai)
	require.NoError(t, err)
	at := rec["created_at"].(time.Time)
	assert.True(t, time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC).Equal(at))

	rec, err = m.ValidateRecord(Record{"created_at": "2024-03-01T23:00:00Z"}, shanghai)
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC).Equal(rec["created_at"].(time.Time)),
		"an explicit offset wins over the location")

	f, err := m.ValidateFilter(types.Where(types.Eq("created_at", "2024-03-01 08:00:00")), shanghai)
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Equal(f[0].Value.(time.Time)))
}

func TestParseTimeIn(t *testing.T) {
	plus8 := time.FixedZone("UTC+8", 8*60*60)
	cases := []struct {
		in   string
		loc  *time.Location
		want time.Time
	}{
		{"2024-03-01 23:00:00", plus8, time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)},
		{"2024-03-01T23:00:00", plus8, time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)},
		{"2024-03-01", plus8, time.Date(2024, 2, 29, 16, 0, 0, 0, time.UTC)},
		{"2024-03-01 23:00:00", nil, time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)},
		{"2024-03-01 23:00:00+02:00", plus8, time.Date(2024, 3, 1, 21, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := ParseTimeIn(tc.in, tc.loc)
		require.NoError(t, err, tc.in)
		assert.True(t, tc.want.Equal(got), "%s: got %s", tc.in, got)
	}
	_, err := ParseTimeIn("yesterday", plus8)
	assert.Error(t, err)
}

func TestValidateFilter(t *testing.T) {
	m := usersModel(t)

	f, err := m.ValidateFilter(types.Where(types.Eq("id", "7"), types.In("id", 1, int32(2), "3")), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), f[0].Value)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, f[1].Values)

	_, err = m.ValidateFilter(types.Where(types.Eq("missing", 1)), nil)
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = m.ValidateFilter(types.Where(types.OnDate("name", "2024-01-01")), nil)
	assert.ErrorIs(t, err, ErrInvalidValue)

	f, err = m.ValidateFilter(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, f)
}

func TestCoerceID(t *testing.T) {
	m := usersModel(t)

	for _, id := range []any{5, int64(5), "5", uint8(5), 5.0} {
		v, err := m.CoerceID(id)
		require.NoError(t, err)
		assert.Equal(t, int64(5), v)
	}
	for _, id := range []any{"not-a-number", 5.5, nil, true} {
		_, err := m.CoerceID(id)
		assert.ErrorIs(t, err, ErrInvalidID, "id %v", id)
	}

	codes := MustNew("codes", "code", Field{Name: "code", Type: types.FieldString, Size: 8})
	for _, id := range []any{42, int64(42), uint16(42), "42"} {
		v, err := codes.CoerceID(id)
		require.NoError(t, err)
		assert.Equal(t, "42", v)
	}
	_, err := codes.CoerceID(4.2)
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestDecode(t *testing.T) {
	m := usersModel(t)
	row := map[string]any{
		"id":         int64(1),
		"name":       []byte("bob"),
		"active":     int64(1),
		"score":      int64(2),
		"created_at": "2024-03-04 05:06:07+00:00",
		"extra":      []byte("x"),
	}
	rec := m.Decode(row, nil)
	assert.Equal(t, int64(1), rec["id"])
	assert.Equal(t, "bob", rec["name"])
	assert.Equal(t, true, rec["active"])
	assert.Equal(t, float64(2), rec["score"])
	assert.True(t, time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC).Equal(rec["created_at"].(time.Time)))
	assert.Equal(t, "x", rec["extra"])
}

func TestParse(t *testing.T) {
	data := []byte(`
models:
  - name: users
    fields:
      - {name: id, type: integer, auto_increment: true}
      - {name: email, type: varchar, size: 120, not_null: true, unique: true}
  - name: events
    primary_key: code
    fields:
      - {name: code, type: string}
      - {name: at, type: datetime}
`)
	models, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "users", models[0].Name)
	assert.Equal(t, types.FieldString, models[0].Fields[1].Type)
	assert.True(t, models[0].Fields[1].Unique)
	assert.Equal(t, "code", models[1].Key().Name)
	assert.Equal(t, types.FieldTimestamp, models[1].Fields[1].Type)

	_, err = Parse([]byte("models:\n  - name: t\n    fields:\n      - {name: id, type: blob}\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("models:\n  - name: t\n    fields: [{name: id, type: int}]\n  - name: t\n    fields: [{name: id, type: int}]\n"))
	assert.ErrorIs(t, err, ErrInvalidModel)
}
