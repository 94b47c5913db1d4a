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

package recordstore

import (
	"errors"
	"fmt"

	"github.com/tomoncle/recordstore/database"
)

// ErrNotConnected is returned when the store has no open pool.
var ErrNotConnected = errors.New("recordstore: database not connected")

// InsertError reports a failed insert after its transaction was rolled back.
type InsertError struct {
	Model string
	Cause error
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("insert into %s: %v", e.Model, e.Cause)
}

func (e *InsertError) Unwrap() error { return e.Cause }

// Kind classifies the underlying database error.
func (e *InsertError) Kind() database.SQLError { return database.Classify(e.Cause) }

// UpdateError reports a failed update after its transaction was rolled back.
type UpdateError struct {
	Model string
	Cause error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("update %s: %v", e.Model, e.Cause)
}

func (e *UpdateError) Unwrap() error { return e.Cause }

func (e *UpdateError) Kind() database.SQLError { return database.Classify(e.Cause) }

// QueryError reports a failed select, including malformed date filters.
type QueryError struct {
	Model string
	Cause error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s: %v", e.Model, e.Cause)
}

func (e *QueryError) Unwrap() error { return e.Cause }

func (e *QueryError) Kind() database.SQLError { return database.Classify(e.Cause) }

// DeleteError reports a failed delete after its transaction was rolled back.
type DeleteError struct {
	Model string
	Cause error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("delete from %s: %v", e.Model, e.Cause)
}

func (e *DeleteError) Unwrap() error { return e.Cause }

func (e *DeleteError) Kind() database.SQLError { return database.Classify(e.Cause) }
