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
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/uptrace/bun/driver/pgdriver"
)

// SQLError is a driver-independent kind of database failure.
type SQLError int

const (
	UnknownErr SQLError = iota
	NoRowsErr
	NoIndexErr
	NoColumnErr
	ExistIndexErr
	ExistColumnErr
	NoTableErr
	ExistTableErr
	DuplicateKeyErr
	NotNullViolationErr
	ForeignKeyViolationErr
	CheckConstraintViolationErr
	DataTruncatedErr
	InvalidTypeCastErr
	NoDatabaseErr
	ExistDatabaseErr
)

var sqlErrorNames = [...]string{
	UnknownErr:                  "unknown",
	NoRowsErr:                   "no_rows",
	NoIndexErr:                  "no_index",
	NoColumnErr:                 "no_column",
	ExistIndexErr:               "index_exists",
	ExistColumnErr:              "column_exists",
	NoTableErr:                  "no_table",
	ExistTableErr:               "table_exists",
	DuplicateKeyErr:             "duplicate_key",
	NotNullViolationErr:         "not_null_violation",
	ForeignKeyViolationErr:      "foreign_key_violation",
	CheckConstraintViolationErr: "check_violation",
	DataTruncatedErr:            "data_truncated",
	InvalidTypeCastErr:          "invalid_type_cast",
	NoDatabaseErr:               "no_database",
	ExistDatabaseErr:            "database_exists",
}

func (e SQLError) String() string {
	if e >= 0 && int(e) < len(sqlErrorNames) {
		return sqlErrorNames[e]
	}
	return sqlErrorNames[UnknownErr]
}

// mysqlErrors maps MySQL server error numbers.
var mysqlErrors = map[uint16]SQLError{
	1007: ExistDatabaseErr,
	1049: NoDatabaseErr,
	1050: ExistTableErr,
	1146: NoTableErr,
	1054: NoColumnErr,
	1060: ExistColumnErr,
	1061: ExistIndexErr,
	1091: NoIndexErr,
	1062: DuplicateKeyErr,
	1048: NotNullViolationErr,
	1364: NotNullViolationErr,
	1216: ForeignKeyViolationErr,
	1217: ForeignKeyViolationErr,
	1451: ForeignKeyViolationErr,
	1452: ForeignKeyViolationErr,
	3819: CheckConstraintViolationErr,
	1265: DataTruncatedErr,
	1406: DataTruncatedErr,
}

// sqlStateErrors maps Postgres SQLSTATE codes, shared by lib/pq and pgdriver.
var sqlStateErrors = map[string]SQLError{
	"42703": NoColumnErr,
	"42704": NoIndexErr,
	"42P01": NoTableErr,
	"42P07": ExistTableErr,
	"42701": ExistColumnErr,
	"23505": DuplicateKeyErr,
	"23502": NotNullViolationErr,
	"23503": ForeignKeyViolationErr,
	"23514": CheckConstraintViolationErr,
	"22001": DataTruncatedErr,
	"42804": InvalidTypeCastErr,
	"22P02": InvalidTypeCastErr,
	"3D000": NoDatabaseErr,
	"42P04": ExistDatabaseErr,
}

// messageRule matches a lower-cased error message when every substring of
// any one alternative occurs in it. Rules are tried in order.
type messageRule struct {
	kind SQLError
	alts [][]string
}

var messageRules = []messageRule{
	{NoColumnErr, [][]string{{"sqlstate 42703"}, {"undefined column"}, {"no such column"}, {"has no column named"}}},
	{NoIndexErr, [][]string{{"sqlstate 42704"}, {"no such index"}, {"index", "does not exist"}}},
	{NoTableErr, [][]string{{"sqlstate 42p01"}, {"undefined table"}, {"no such table"}}},
	{NoDatabaseErr, [][]string{{"sqlstate 3d000"}, {"unknown database"}, {"database", "does not exist"}}},
	{ExistIndexErr, [][]string{{"index", "already exists"}}},
	{ExistTableErr, [][]string{{"table", "already exists"}, {"relation", "already exists"}}},
	{DuplicateKeyErr, [][]string{{"sqlstate 23505"}, {"duplicate key value"}, {"unique constraint failed"}}},
	{NotNullViolationErr, [][]string{{"sqlstate 23502"}, {"not-null constraint"}, {"not null constraint failed"}}},
	{ForeignKeyViolationErr, [][]string{{"sqlstate 23503"}, {"foreign key violation"}, {"foreign key constraint failed"}}},
	{CheckConstraintViolationErr, [][]string{{"sqlstate 23514"}, {"check constraint"}}},
	{DataTruncatedErr, [][]string{{"sqlstate 22001"}, {"string data right truncation"}, {"data truncated"}}},
	{InvalidTypeCastErr, [][]string{{"sqlstate 42804"}, {"datatype mismatch"}}},
}

func (r messageRule) match(msg string) bool {
	for _, alt := range r.alts {
		all := true
		for _, sub := range alt {
			if !strings.Contains(msg, sub) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// Classify returns the SQLError kind of err, UnknownErr when unrecognized.
func Classify(err error) SQLError {
	_, kind := IsSqlError(err)
	return kind
}

// IsSqlError reports whether err came from the database and classifies it.
// Typed driver errors are recognized even when unclassified; anything else,
// SQLite errors included, is matched on its message.
func IsSqlError(err error) (is bool, sqlErr SQLError) {
	if err == nil {
		return false, UnknownErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		return true, NoRowsErr
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return true, mysqlErrors[mysqlErr.Number]
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return true, sqlStateErrors[string(pqErr.Code)]
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return true, sqlStateErrors[pgErr.Field('C')]
	}

	msg := strings.ToLower(err.Error())
	for _, rule := range messageRules {
		if rule.match(msg) {
			return true, rule.kind
		}
	}
	return false, UnknownErr
}
