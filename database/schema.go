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
	"context"
	"fmt"
	"strconv"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/schema"

	"github.com/tomoncle/recordstore/model"
	"github.com/tomoncle/recordstore/types"
)

const defaultVarcharLen = 255

// SchemaManager creates tables for declared models. It never alters a table
// that already exists.
type SchemaManager struct {
	db     *bun.DB
	logger Logger
}

// NewSchemaManager constructs a SchemaManager on db.
func NewSchemaManager(db *bun.DB, logger Logger) *SchemaManager {
	if logger == nil {
		logger = GetLogger()
	}
	return &SchemaManager{db: db, logger: logger}
}

// Ensure validates every model and issues CREATE TABLE IF NOT EXISTS for
// each. Postgres and SQLite run all statements in one transaction; MySQL
// commits DDL implicitly so statements run one by one.
func (sm *SchemaManager) Ensure(ctx context.Context, models ...*model.Model) error {
	if sm.db == nil {
		return fmt.Errorf("database not initialized")
	}
	stmts := make([]string, 0, len(models))
	for _, m := range models {
		if err := m.Validate(); err != nil {
			return err
		}
		stmts = append(stmts, CreateTableSQL(sm.db.Dialect(), m))
	}
	if len(stmts) == 0 {
		return nil
	}

	if !TransactionalDDL(sm.db.Dialect().Name()) {
		for i, stmt := range stmts {
			if _, err := sm.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create table %s: %w", models[i].Name, err)
			}
		}
		sm.logger.Info("Schema ensured", "tables", len(stmts))
		return nil
	}

	tx, err := sm.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	var committed bool
	defer func(tx bun.Tx) {
		if !committed {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				sm.logger.Error("Failed to rollback transaction", "error", rollbackErr)
			}
		}
	}(tx)

	for i, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table %s: %w", models[i].Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	sm.logger.Info("Schema ensured", "tables", len(stmts))
	return nil
}

// TransactionalDDL reports whether CREATE TABLE can be rolled back.
func TransactionalDDL(name dialect.Name) bool {
	return name == dialect.PG || name == dialect.SQLite
}

// CreateTableSQL renders the CREATE TABLE IF NOT EXISTS statement for m.
func CreateTableSQL(d schema.Dialect, m *model.Model) string {
	quote := d.IdentQuote()
	name := d.Name()

	b := []byte("CREATE TABLE IF NOT EXISTS ")
	b = dialect.AppendIdent(b, m.Name, quote)
	b = append(b, " ("...)

	inlinePK := false
	for i, f := range m.Fields {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = dialect.AppendIdent(b, f.Name, quote)
		b = append(b, ' ')

		isKey := f.Name == m.PrimaryKey
		if isKey && f.AutoIncrement {
			switch name {
			case dialect.SQLite:
				b = append(b, "INTEGER PRIMARY KEY AUTOINCREMENT"...)
				inlinePK = true
				continue
			case dialect.PG:
				b = append(b, "BIGSERIAL NOT NULL"...)
				continue
			case dialect.MySQL:
				b = append(b, "BIGINT NOT NULL AUTO_INCREMENT"...)
				continue
			}
		}

		b = append(b, columnType(name, f)...)
		if f.NotNull || isKey {
			b = append(b, " NOT NULL"...)
		}
		if f.Unique && !isKey {
			b = append(b, " UNIQUE"...)
		}
		if f.Default != "" {
			b = append(b, " DEFAULT "...)
			b = append(b, f.Default...)
		}
	}
	if !inlinePK {
		b = append(b, ", PRIMARY KEY ("...)
		b = dialect.AppendIdent(b, m.PrimaryKey, quote)
		b = append(b, ')')
	}
	b = append(b, ')')
	return string(b)
}

func columnType(name dialect.Name, f model.Field) string {
	switch f.Type {
	case types.FieldString:
		size := f.Size
		if size <= 0 {
			size = defaultVarcharLen
		}
		return "VARCHAR(" + strconv.Itoa(size) + ")"
	case types.FieldText:
		return "TEXT"
	case types.FieldInteger:
		if name == dialect.SQLite {
			return "INTEGER"
		}
		return "BIGINT"
	case types.FieldFloat:
		if name == dialect.SQLite {
			return "REAL"
		}
		return "DOUBLE PRECISION"
	case types.FieldBoolean:
		return "BOOLEAN"
	case types.FieldTimestamp:
		switch name {
		case dialect.PG:
			return "TIMESTAMPTZ"
		case dialect.MySQL:
			return "DATETIME(6)"
		}
		return "TIMESTAMP"
	}
	return "TEXT"
}

// ResetAutoIncrement rewinds the id counter of m's table so the next insert
// gets 1. Models without an auto-increment key are left alone.
func ResetAutoIncrement(ctx context.Context, db bun.IDB, m *model.Model) error {
	if !m.HasAutoIncrement() {
		return nil
	}
	var err error
	switch db.Dialect().Name() {
	case dialect.MySQL:
		_, err = db.ExecContext(ctx, "ALTER TABLE ? AUTO_INCREMENT = 1", bun.Ident(m.Name))
	case dialect.PG:
		_, err = db.NewRaw("SELECT setval(pg_get_serial_sequence(?, ?), 1, false)", m.Name, m.PrimaryKey).Exec(ctx)
	case dialect.SQLite:
		_, err = db.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name = ?", m.Name)
	default:
		return fmt.Errorf("auto increment reset not supported for %s", db.Dialect().Name())
	}
	if err != nil {
		return fmt.Errorf("reset auto increment of %s: %w", m.Name, err)
	}
	return nil
}
