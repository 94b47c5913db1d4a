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

package database

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsSqlError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		wantOK bool
		want   SQLError
	}{
		{"nil", nil, false, UnknownErr},
		{"plain", errors.New("boom"), false, UnknownErr},
		{"no rows", fmt.Errorf("scan: %w", sql.ErrNoRows), true, NoRowsErr},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a' for key 'email'"}, true, DuplicateKeyErr},
		{"mysql wrapped not null", fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1048}), true, NotNullViolationErr},
		{"mysql no table", &mysql.MySQLError{Number: 1146}, true, NoTableErr},
		{"mysql db exists", &mysql.MySQLError{Number: 1007}, true, ExistDatabaseErr},
		{"mysql other", &mysql.MySQLError{Number: 2013}, true, UnknownErr},
		{"pq duplicate", &pq.Error{Code: "23505"}, true, DuplicateKeyErr},
		{"pq no database", &pq.Error{Code: "3D000"}, true, NoDatabaseErr},
		{"pq unknown", &pq.Error{Code: "57014"}, true, UnknownErr},
		{"sqlite unique", errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"), true, DuplicateKeyErr},
		{"sqlite not null", errors.New("NOT NULL constraint failed: users.name"), true, NotNullViolationErr},
		{"sqlite no table", errors.New("SQL logic error: no such table: users (1)"), true, NoTableErr},
		{"sqlite no column", errors.New("table users has no column named nickname"), true, NoColumnErr},
		{"sqlite table exists", errors.New("table users already exists"), true, ExistTableErr},
		{"sqlite fk", errors.New("FOREIGN KEY constraint failed"), true, ForeignKeyViolationErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, kind := IsSqlError(tt.err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, kind)
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestSQLErrorString(t *testing.T) {
	assert.Equal(t, "duplicate_key", DuplicateKeyErr.String())
	assert.Equal(t, "no_table", NoTableErr.String())
	assert.Equal(t, "unknown", SQLError(999).String())
}

func TestIsSqlErrorMessages(t *testing.T) {
	tests := []struct {
		msg  string
		want SQLError
	}{
		{`pq: database "ghost" does not exist`, NoDatabaseErr},
		{`Error 1049: Unknown database 'ghost'`, NoDatabaseErr},
		{`ERROR: relation "users" already exists`, ExistTableErr},
		{`index idx_users_email already exists`, ExistIndexErr},
		{`ERROR: index "idx_x" does not exist`, NoIndexErr},
		{`CHECK constraint failed: age_positive`, CheckConstraintViolationErr},
		{`ERROR: value too long (SQLSTATE 22001)`, DataTruncatedErr},
		{`ERROR: column "x" is of type integer (SQLSTATE 42804)`, InvalidTypeCastErr},
	}
	for _, tt := range tests {
		ok, kind := IsSqlError(errors.New(tt.msg))
		assert.True(t, ok, tt.msg)
		assert.Equal(t, tt.want, kind, tt.msg)
	}
}
