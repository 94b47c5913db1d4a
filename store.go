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
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/tomoncle/recordstore/database"
	"github.com/tomoncle/recordstore/model"
	"github.com/tomoncle/recordstore/repository"
	"github.com/tomoncle/recordstore/types"
)

// Store is the record facade over one connection pool. Mutations run in
// their own transaction; reads run on the pool. A Store is safe for
// concurrent use.
type Store struct {
	manager database.AbstractDatabaseManager
	logger  database.Logger
	loc     *time.Location
}

type Option func(*Store)

// WithLogger replaces the package logger for this store.
func WithLogger(logger database.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLocation sets the zone date conditions are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// Open creates the database when connection.auto_create is set, connects
// and pings once, then optionally ensures the schema declared in
// schema.models_file (or the registered models).
func Open(ctx context.Context, cfg *database.Config, opts ...Option) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	database.ApplyLogConfig(cfg.Log)

	factory := database.NewDatabaseFactory()
	manager, err := factory.CreateFromConfig(&cfg.Connection)
	if err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	if err := factory.InitializeDatabase(ctx, false); err != nil {
		return nil, err
	}

	s := New(manager, opts...)
	if cfg.Schema.EnsureOnStartup {
		var models []*model.Model
		if cfg.Schema.ModelsFile != "" {
			if models, err = model.LoadFile(cfg.Schema.ModelsFile); err != nil {
				_ = s.Close()
				return nil, err
			}
		}
		if err := s.EnsureSchema(ctx, models...); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

// New wraps a connected manager.
func New(manager database.AbstractDatabaseManager, opts ...Option) *Store {
	s := &Store{
		manager: manager,
		logger:  database.GetLogger(),
		loc:     time.UTC,
	}
	if cfg := manager.GetConfig(); cfg != nil {
		s.loc = cfg.Loc()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Manager returns the underlying connection manager.
func (s *Store) Manager() database.AbstractDatabaseManager { return s.manager }

// EnsureDatabase creates the named database on the configured server.
func (s *Store) EnsureDatabase(ctx context.Context, name string) error {
	return database.EnsureDatabase(ctx, s.manager.GetConfig(), name)
}

// EnsureSchema creates missing tables. Without models it uses the
// registered ones in priority order.
func (s *Store) EnsureSchema(ctx context.Context, models ...*model.Model) error {
	return s.manager.EnsureSchema(ctx, models...)
}

func (s *Store) Insert(ctx context.Context, m *model.Model, rec model.Record) error {
	repo, err := s.repository(m)
	if err != nil {
		return err
	}
	row, err := m.ValidateRecord(rec, s.loc)
	if err != nil {
		return err
	}
	_, err = s.withTransaction(ctx, m, "insert", func(ctx context.Context, tx bun.IDB) (int64, error) {
		return 1, repo.Insert(ctx, tx, row)
	})
	if err != nil {
		return &InsertError{Model: m.Name, Cause: err}
	}
	return nil
}

// InsertMany validates every record, then inserts them all in one
// transaction. An empty batch does nothing.
func (s *Store) InsertMany(ctx context.Context, m *model.Model, recs []model.Record) error {
	repo, err := s.repository(m)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	rows := make([]model.Record, len(recs))
	for i, rec := range recs {
		if rows[i], err = m.ValidateRecord(rec, s.loc); err != nil {
			return err
		}
	}
	_, err = s.withTransaction(ctx, m, "insert_many", func(ctx context.Context, tx bun.IDB) (int64, error) {
		for i, row := range rows {
			if err := repo.Insert(ctx, tx, row); err != nil {
				return int64(i), err
			}
		}
		return int64(len(rows)), nil
	})
	if err != nil {
		return &InsertError{Model: m.Name, Cause: err}
	}
	return nil
}

// Upsert inserts rec or overwrites fields of the row with the same primary
// key. Empty fields means every non-key column of rec.
func (s *Store) Upsert(ctx context.Context, m *model.Model, rec model.Record, fields ...string) error {
	repo, err := s.repository(m)
	if err != nil {
		return err
	}
	row, err := m.ValidateRecord(rec, s.loc)
	if err != nil {
		return err
	}
	for _, f := range fields {
		if _, err := m.CheckColumn(f); err != nil {
			return err
		}
	}
	_, err = s.withTransaction(ctx, m, "upsert", func(ctx context.Context, tx bun.IDB) (int64, error) {
		return 1, repo.Upsert(ctx, tx, row, fields)
	})
	if err != nil {
		return &InsertError{Model: m.Name, Cause: err}
	}
	return nil
}

// UpdateByKey sets values on rows whose key column equals value and returns
// the number of rows changed. No match is not an error.
func (s *Store) UpdateByKey(ctx context.Context, m *model.Model, key string, value any, values model.Record) (int64, error) {
	repo, err := s.repository(m)
	if err != nil {
		return 0, err
	}
	set, err := m.ValidateRecord(values, s.loc)
	if err != nil {
		return 0, err
	}
	filter, err := m.ValidateFilter(types.Where(types.Eq(key, value)), s.loc)
	if err != nil {
		return 0, err
	}
	rows, err := s.withTransaction(ctx, m, "update_by_key", func(ctx context.Context, tx bun.IDB) (int64, error) {
		return repo.Update(ctx, tx, set, filter)
	})
	if err != nil {
		return 0, &UpdateError{Model: m.Name, Cause: err}
	}
	return rows, nil
}

// UpdateColumn sets column to value on every row of the table.
func (s *Store) UpdateColumn(ctx context.Context, m *model.Model, column string, value any) (int64, error) {
	repo, err := s.repository(m)
	if err != nil {
		return 0, err
	}
	set, err := m.ValidateRecord(model.Record{column: value}, s.loc)
	if err != nil {
		return 0, err
	}
	rows, err := s.withTransaction(ctx, m, "update_column", func(ctx context.Context, tx bun.IDB) (int64, error) {
		return repo.Update(ctx, tx, set, nil)
	})
	if err != nil {
		return 0, &UpdateError{Model: m.Name, Cause: err}
	}
	return rows, nil
}

// QueryAll returns every row matching filter, in backend order.
func (s *Store) QueryAll(ctx context.Context, m *model.Model, filter types.Filter) ([]model.Record, error) {
	repo, err := s.repository(m)
	if err != nil {
		return nil, err
	}
	if filter, err = m.ValidateFilter(filter, s.loc); err != nil {
		return nil, err
	}
	return s.list(ctx, repo, "query_all", filter)
}

// QueryIn is QueryAll with an extra membership condition on field. Nil or
// empty values leave the condition out.
func (s *Store) QueryIn(ctx context.Context, m *model.Model, field string, values []any, filter types.Filter) ([]model.Record, error) {
	repo, err := s.repository(m)
	if err != nil {
		return nil, err
	}
	if _, err := m.CheckColumn(field); err != nil {
		return nil, err
	}
	if len(values) > 0 {
		filter = filter.And(types.In(field, values...))
	}
	if filter, err = m.ValidateFilter(filter, s.loc); err != nil {
		return nil, err
	}
	return s.list(ctx, repo, "query_in", filter)
}

// QueryOne returns the first matching row. The bool is false when nothing
// matched.
func (s *Store) QueryOne(ctx context.Context, m *model.Model, filter types.Filter) (model.Record, bool, error) {
	repo, err := s.repository(m)
	if err != nil {
		return nil, false, err
	}
	if filter, err = m.ValidateFilter(filter, s.loc); err != nil {
		return nil, false, err
	}
	db, err := s.db()
	if err != nil {
		return nil, false, s.queryFailed(m, "query_one", err)
	}
	rec, found, err := repo.First(ctx, db, filter)
	if err != nil {
		return nil, false, s.queryFailed(m, "query_one", err)
	}
	return rec, found, nil
}

// QueryPage returns one page of matching rows plus the total match count.
// Rows are ordered by the request orders, or by primary key ascending.
func (s *Store) QueryPage(ctx context.Context, m *model.Model, page *types.PageRequest) (*types.Pagination[model.Record], error) {
	repo, err := s.repository(m)
	if err != nil {
		return nil, err
	}
	if err := page.Validate(); err != nil {
		return nil, err
	}
	for _, order := range page.GetOrders() {
		if _, err := m.CheckColumn(repository.OrderColumn(order)); err != nil {
			return nil, err
		}
	}
	filter, err := m.ValidateFilter(page.GetFilter(), s.loc)
	if err != nil {
		return nil, err
	}
	db, err := s.db()
	if err != nil {
		return nil, s.queryFailed(m, "query_page", err)
	}
	result, err := repo.Page(ctx, db, types.NewPageRequest(page.GetPage(), page.GetPageSize(), filter, page.GetOrders()))
	if err != nil {
		return nil, s.queryFailed(m, "query_page", err)
	}
	return result, nil
}

// QueryByDate treats each equality on a timestamp column whose value is a
// date string (or a time.Time) as "falls on that calendar day".
func (s *Store) QueryByDate(ctx context.Context, m *model.Model, filter types.Filter) ([]model.Record, error) {
	repo, err := s.repository(m)
	if err != nil {
		return nil, err
	}
	converted := make(types.Filter, len(filter))
	for i, c := range filter {
		if c.Op == types.OpEquals {
			if f, ok := m.Field(c.Column); ok && f.Type == types.FieldTimestamp {
				switch c.Value.(type) {
				case string, time.Time:
					c = types.Condition{Column: c.Column, Op: types.OpDateEquals, Value: c.Value}
				}
			}
		}
		converted[i] = c
	}
	if converted, err = m.ValidateFilter(converted, s.loc); err != nil {
		return nil, err
	}
	for _, c := range converted {
		if c.Op != types.OpDateEquals {
			continue
		}
		if _, _, err := types.DayRange(c.Value, s.loc); err != nil {
			return nil, s.queryFailed(m, "query_by_date", err)
		}
	}
	return s.list(ctx, repo, "query_by_date", converted)
}

// Count returns the number of rows matching filter.
func (s *Store) Count(ctx context.Context, m *model.Model, filter types.Filter) (int, error) {
	repo, err := s.repository(m)
	if err != nil {
		return 0, err
	}
	if filter, err = m.ValidateFilter(filter, s.loc); err != nil {
		return 0, err
	}
	db, err := s.db()
	if err != nil {
		return 0, s.queryFailed(m, "count", err)
	}
	n, err := repo.Count(ctx, db, filter)
	if err != nil {
		return 0, s.queryFailed(m, "count", err)
	}
	return n, nil
}

// DeleteAll empties the table and restarts its auto-increment key at 1.
// Where DDL is transactional the reset shares the delete's transaction.
// Elsewhere (MySQL commits implicitly on ALTER TABLE) it runs after the
// delete commits, and a failed reset is logged without failing the delete.
func (s *Store) DeleteAll(ctx context.Context, m *model.Model) (int64, error) {
	repo, err := s.repository(m)
	if err != nil {
		return 0, err
	}
	resetInTx := true
	if db := s.manager.GetDB(); db != nil {
		resetInTx = database.TransactionalDDL(db.Dialect().Name())
	}
	rows, err := s.withTransaction(ctx, m, "delete_all", func(ctx context.Context, tx bun.IDB) (int64, error) {
		n, err := repo.Delete(ctx, tx, nil)
		if err != nil {
			return 0, err
		}
		if resetInTx {
			if err := database.ResetAutoIncrement(ctx, tx, m); err != nil {
				return 0, fmt.Errorf("reset auto increment: %w", err)
			}
		}
		return n, nil
	})
	if err != nil {
		return 0, &DeleteError{Model: m.Name, Cause: err}
	}
	if !resetInTx {
		_ = s.resetAutoIncrement(ctx, m)
	}
	return rows, nil
}

// resetAutoIncrement restarts m's key on the pool outside any transaction.
func (s *Store) resetAutoIncrement(ctx context.Context, m *model.Model) error {
	db, err := s.db()
	if err == nil {
		err = database.ResetAutoIncrement(ctx, db, m)
	}
	if err != nil {
		s.logger.Warn("Auto increment not reset", "model", m.Name, "op", "delete_all", "error", err)
	}
	return err
}

// DeleteByID removes the row with the given primary key. The id is
// coerced to the key type before any connection is used.
func (s *Store) DeleteByID(ctx context.Context, m *model.Model, id any) (int64, error) {
	repo, err := s.repository(m)
	if err != nil {
		return 0, err
	}
	key, err := m.CoerceID(id)
	if err != nil {
		return 0, err
	}
	filter := types.Where(types.Eq(m.PrimaryKey, key))
	rows, err := s.withTransaction(ctx, m, "delete_by_id", func(ctx context.Context, tx bun.IDB) (int64, error) {
		return repo.Delete(ctx, tx, filter)
	})
	if err != nil {
		return 0, &DeleteError{Model: m.Name, Cause: err}
	}
	return rows, nil
}

// Health runs a health check against the pool.
func (s *Store) Health(ctx context.Context) *database.HealthStatus {
	return s.manager.HealthCheck(ctx)
}

// Stats returns the pool statistics.
func (s *Store) Stats() *database.DBStats {
	return s.manager.GetStats()
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.manager.Disconnect()
}

func (s *Store) repository(m *model.Model) (repository.Repository, error) {
	if m == nil {
		return nil, &model.FieldError{Err: model.ErrInvalidModel, Reason: "nil model"}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return repository.NewRepository(m, s.loc), nil
}

func (s *Store) db() (*bun.DB, error) {
	db := s.manager.GetDB()
	if db == nil {
		return nil, ErrNotConnected
	}
	return db, nil
}

func (s *Store) list(ctx context.Context, repo repository.Repository, op string, filter types.Filter) ([]model.Record, error) {
	db, err := s.db()
	if err != nil {
		return nil, s.queryFailed(repo.Model(), op, err)
	}
	records, err := repo.List(ctx, db, filter)
	if err != nil {
		return nil, s.queryFailed(repo.Model(), op, err)
	}
	return records, nil
}

func (s *Store) queryFailed(m *model.Model, op string, err error) error {
	s.logger.Error("Query failed", "model", m.Name, "op", op, "error", err)
	return &QueryError{Model: m.Name, Cause: err}
}

// withTransaction runs fn in a new transaction, committing when it returns
// nil. An error or a panic rolls back; the panic is then re-raised.
func (s *Store) withTransaction(ctx context.Context, m *model.Model, op string,
	fn func(ctx context.Context, tx bun.IDB) (int64, error)) (rows int64, err error) {
	db, err := s.db()
	if err != nil {
		s.logger.Error("Transaction not started", "model", m.Name, "op", op, "error", err)
		return 0, err
	}
	session := uuid.NewString()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("Failed to begin transaction", "model", m.Name, "op", op, "session", session, "error", err)
		return 0, err
	}
	var committed bool
	defer func(tx bun.Tx) {
		if committed {
			return
		}
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			s.logger.Error("Failed to rollback transaction", "model", m.Name, "op", op, "session", session, "error", rollbackErr)
		}
		if p := recover(); p != nil {
			s.logger.Error("Transaction rolled back after panic", "model", m.Name, "op", op, "session", session, "panic", p)
			panic(p)
		}
		s.logger.Error("Transaction rolled back", "model", m.Name, "op", op, "session", session, "error", err)
	}(tx)

	if rows, err = fn(ctx, tx); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	s.logger.Debug("Transaction committed", "model", m.Name, "op", op, "session", session, "rows", rows)
	return rows, nil
}
