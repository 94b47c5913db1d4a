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

package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"

	"github.com/tomoncle/recordstore/model"
	"github.com/tomoncle/recordstore/types"
)

type baseRepositoryImpl struct {
	model *model.Model
	loc   *time.Location
}

// NewRepository returns a record repository for m. Date conditions are
// evaluated in loc, UTC when nil.
func NewRepository(m *model.Model, loc *time.Location) Repository {
	if loc == nil {
		loc = time.UTC
	}
	return &baseRepositoryImpl{model: m, loc: loc}
}

func (r *baseRepositoryImpl) Model() *model.Model { return r.model }

func (r *baseRepositoryImpl) Insert(ctx context.Context, db bun.IDB, rec model.Record) error {
	row := map[string]interface{}(rec)
	_, err := db.NewInsert().Model(&row).Table(r.model.Name).Exec(ctx)
	return err
}

func (r *baseRepositoryImpl) Update(ctx context.Context, db bun.IDB, values model.Record, filter types.Filter) (int64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("no values to update")
	}
	query := db.NewUpdate().Table(r.model.Name)
	for _, col := range sortedColumns(values) {
		query = query.Set("? = ?", bun.Ident(col), values[col])
	}
	if err := applyFilter(query.QueryBuilder(), db, filter, r.loc); err != nil {
		return 0, err
	}
	res, err := query.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *baseRepositoryImpl) Delete(ctx context.Context, db bun.IDB, filter types.Filter) (int64, error) {
	query := db.NewDelete().Table(r.model.Name)
	if err := applyFilter(query.QueryBuilder(), db, filter, r.loc); err != nil {
		return 0, err
	}
	res, err := query.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *baseRepositoryImpl) List(ctx context.Context, db bun.IDB, filter types.Filter, orders ...string) ([]model.Record, error) {
	query := db.NewSelect().Table(r.model.Name)
	if err := applyFilter(query.QueryBuilder(), db, filter, r.loc); err != nil {
		return nil, err
	}
	applyOrders(query, orders)
	return r.scan(ctx, query)
}

func (r *baseRepositoryImpl) First(ctx context.Context, db bun.IDB, filter types.Filter) (model.Record, bool, error) {
	query := db.NewSelect().Table(r.model.Name)
	if err := applyFilter(query.QueryBuilder(), db, filter, r.loc); err != nil {
		return nil, false, err
	}
	records, err := r.scan(ctx, query.Limit(1))
	if err != nil || len(records) == 0 {
		return nil, false, err
	}
	return records[0], true, nil
}

func (r *baseRepositoryImpl) Count(ctx context.Context, db bun.IDB, filter types.Filter) (int, error) {
	query := db.NewSelect().Table(r.model.Name)
	if err := applyFilter(query.QueryBuilder(), db, filter, r.loc); err != nil {
		return 0, err
	}
	return query.Count(ctx)
}

// Page counts the filtered rows, then reads one window ordered by the given
// orders or, without any, by primary key ascending.
func (r *baseRepositoryImpl) Page(ctx context.Context, db bun.IDB, pageRequest *types.PageRequest) (*types.Pagination[model.Record], error) {
	if err := pageRequest.Validate(); err != nil {
		return nil, err
	}
	query := db.NewSelect().Table(r.model.Name)
	if err := applyFilter(query.QueryBuilder(), db, pageRequest.GetFilter(), r.loc); err != nil {
		return nil, err
	}
	pagination := types.NewDefaultPagination[model.Record](pageRequest.GetPage(), pageRequest.GetPageSize())
	total, err := query.Count(ctx)
	if err != nil || total == 0 {
		return pagination, err
	}

	orders := pageRequest.GetOrders()
	if len(orders) == 0 {
		orders = []string{r.model.PrimaryKey}
	}
	applyOrders(query, orders)
	items, err := r.scan(ctx, query.
		Offset(pageRequest.GetOffset()).
		Limit(pageRequest.GetPageSize()))
	if err != nil {
		return nil, err
	}
	pagination.Total = total
	pagination.Items = items
	return pagination, nil
}

func (r *baseRepositoryImpl) scan(ctx context.Context, query *bun.SelectQuery) ([]model.Record, error) {
	var rows []map[string]interface{}
	if err := query.Scan(ctx, &rows); err != nil {
		return nil, err
	}
	records := make([]model.Record, len(rows))
	for i, row := range rows {
		records[i] = r.model.Decode(row, r.loc)
	}
	return records, nil
}

// Upsert inserts rec or, when its primary key already exists, overwrites
// fields (every non-key column of rec when fields is empty).
func (r *baseRepositoryImpl) Upsert(ctx context.Context, db bun.IDB, rec model.Record, fields []string) error {
	if len(fields) == 0 {
		for _, col := range sortedColumns(rec) {
			if col != r.model.PrimaryKey {
				fields = append(fields, col)
			}
		}
	}
	if len(fields) == 0 {
		return fmt.Errorf("fields cannot be empty")
	}

	row := map[string]interface{}(rec)
	insertQuery := db.NewInsert().Model(&row).Table(r.model.Name)
	features := db.Dialect().Features()

	if features.Has(feature.InsertOnConflict) {
		insertQuery = insertQuery.On("CONFLICT (?) DO UPDATE", bun.Ident(r.model.PrimaryKey))
		for _, field := range fields {
			insertQuery = insertQuery.Set("? = EXCLUDED.?", bun.Ident(field), bun.Ident(field))
		}
		_, err := insertQuery.Exec(ctx)
		return err
	}
	if features.Has(feature.InsertOnDuplicateKey) {
		var queryArgs []string
		args := make([]interface{}, 0, 2*len(fields))
		for _, field := range fields {
			queryArgs = append(queryArgs, "? = VALUES(?)")
			args = append(args, bun.Ident(field), bun.Ident(field))
		}
		_, err := insertQuery.
			On("DUPLICATE KEY UPDATE "+strings.Join(queryArgs, ", "), args...).
			Exec(ctx)
		return err
	}
	return r.upsertFallback(ctx, db, rec, fields)
}

func (r *baseRepositoryImpl) upsertFallback(ctx context.Context, db bun.IDB, rec model.Record, fields []string) error {
	key, ok := rec[r.model.PrimaryKey]
	if !ok {
		return r.Insert(ctx, db, rec)
	}
	exists, err := db.NewSelect().Table(r.model.Name).Where("? = ?", bun.Ident(r.model.PrimaryKey), key).Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return r.Insert(ctx, db, rec)
	}
	values := make(model.Record, len(fields))
	for _, f := range fields {
		values[f] = rec[f]
	}
	_, err = r.Update(ctx, db, values, types.Where(types.Eq(r.model.PrimaryKey, key)))
	return err
}
