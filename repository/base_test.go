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
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/tomoncle/recordstore/database"
	"github.com/tomoncle/recordstore/model"
	"github.com/tomoncle/recordstore/types"
)

func itemsModel() *model.Model {
	return model.MustNew("items", "id",
		model.Field{Name: "id", Type: types.FieldInteger, AutoIncrement: true},
		model.Field{Name: "sku", Type: types.FieldString, Size: 32, NotNull: true, Unique: true},
		model.Field{Name: "qty", Type: types.FieldInteger},
		model.Field{Name: "price", Type: types.FieldFloat},
		model.Field{Name: "stocked_at", Type: types.FieldTimestamp},
	)
}

func newTestDB(t *testing.T, m *model.Model) *bun.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	sqlDB, err := sql.Open(sqliteshim.ShimName, "file:repo_"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ExecContext(context.Background(), database.CreateTableSQL(db.Dialect(), m))
	require.NoError(t, err)
	return db
}

func seed(t *testing.T, db bun.IDB, repo Repository, recs ...model.Record) {
	t.Helper()
	for _, rec := range recs {
		require.NoError(t, repo.Insert(context.Background(), db, rec))
	}
}

func TestApplyFilterSQL(t *testing.T) {
	db := newTestDB(t, itemsModel())

	tests := []struct {
		name   string
		filter types.Filter
		want   string
	}{
		{"empty", nil, `WHERE (1 = 1)`},
		{"eq", types.Where(types.Eq("sku", "a-1")), `WHERE ("sku" = 'a-1')`},
		{"null", types.Where(types.Eq("qty", nil)), `WHERE ("qty" IS NULL)`},
		{"in", types.Where(types.In("qty", int64(1), int64(2))), `WHERE ("qty" IN (1, 2))`},
		{"empty in", types.Where(types.In("qty")), `WHERE (1 = 0)`},
		{"date", types.Where(types.OnDate("stocked_at", "2024-03-01")), `julianday("stocked_at") >= julianday('2024-03-01`},
		{"and", types.Where(types.Eq("sku", "a"), types.Eq("qty", int64(3))), `WHERE ("sku" = 'a') AND ("qty" = 3)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := db.NewSelect().Table("items")
			require.NoError(t, applyFilter(q.QueryBuilder(), db, tt.filter, time.UTC))
			assert.Contains(t, q.String(), tt.want)
		})
	}

	q := db.NewSelect().Table("items")
	err := applyFilter(q.QueryBuilder(), db, types.Where(types.OnDate("stocked_at", "03/01/2024")), time.UTC)
	assert.ErrorIs(t, err, types.ErrInvalidDate)

	err = applyFilter(q.QueryBuilder(), db, types.Where(types.Condition{Column: "qty", Op: types.Op(99)}), time.UTC)
	assert.Error(t, err)
}

func TestApplyOrders(t *testing.T) {
	db := newTestDB(t, itemsModel())
	q := db.NewSelect().Table("items")
	applyOrders(q, []string{"-qty", "sku"})
	assert.Contains(t, q.String(), `ORDER BY "qty" DESC, "sku" ASC`)
	assert.Equal(t, "qty", OrderColumn("-qty"))
	assert.Equal(t, "sku", OrderColumn("sku"))
}

func TestRepositoryCRUD(t *testing.T) {
	ctx := context.Background()
	m := itemsModel()
	db := newTestDB(t, m)
	repo := NewRepository(m, nil)
	seed(t, db, repo,
		model.Record{"sku": "a", "qty": int64(1), "price": 1.5},
		model.Record{"sku": "b", "qty": int64(2)},
		model.Record{"sku": "c", "qty": int64(2)},
	)

	n, err := repo.Count(ctx, db, types.Where(types.Eq("qty", int64(2))))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rec, found, err := repo.First(ctx, db, types.Where(types.Eq("sku", "a")))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1.5, rec["price"])
	assert.Equal(t, int64(1), rec["qty"])

	_, found, err = repo.First(ctx, db, types.Where(types.Eq("sku", "zzz")))
	require.NoError(t, err)
	assert.False(t, found)

	rows, err := repo.Update(ctx, db, model.Record{"qty": int64(9)}, types.Where(types.Eq("qty", int64(2))))
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)

	_, err = repo.Update(ctx, db, nil, nil)
	assert.Error(t, err)

	list, err := repo.List(ctx, db, nil, "-sku")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "c", list[0]["sku"])
	assert.Equal(t, int64(9), list[0]["qty"])

	none, err := repo.List(ctx, db, types.Where(types.In("sku")))
	require.NoError(t, err)
	assert.Empty(t, none)

	rows, err = repo.Delete(ctx, db, types.Where(types.In("sku", "a", "b")))
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)

	rows, err = repo.Delete(ctx, db, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
}

func TestRepositoryPage(t *testing.T) {
	ctx := context.Background()
	m := itemsModel()
	db := newTestDB(t, m)
	repo := NewRepository(m, time.UTC)

	empty, err := repo.Page(ctx, db, types.NewDefaultPageRequest(1, 5))
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Empty(t, empty.Items)

	for _, sku := range []string{"e", "d", "c", "b", "a", "f", "g"} {
		seed(t, db, repo, model.Record{"sku": sku})
	}

	page, err := repo.Page(ctx, db, types.NewDefaultPageRequest(2, 3))
	require.NoError(t, err)
	assert.Equal(t, 7, page.Total)
	require.Len(t, page.Items, 3)
	assert.Equal(t, []any{int64(4), int64(5), int64(6)},
		[]any{page.Items[0]["id"], page.Items[1]["id"], page.Items[2]["id"]})

	bySku, err := repo.Page(ctx, db, types.NewPageRequest(1, 2, nil, []string{"sku"}))
	require.NoError(t, err)
	assert.Equal(t, "a", bySku.Items[0]["sku"])
	assert.Equal(t, "b", bySku.Items[1]["sku"])

	filtered, err := repo.Page(ctx, db, types.NewPageRequestWithFilter(1, 10, types.Where(types.In("sku", "a", "g"))))
	require.NoError(t, err)
	assert.Equal(t, 2, filtered.Total)

	_, err = repo.Page(ctx, db, types.NewDefaultPageRequest(0, 3))
	assert.ErrorIs(t, err, types.ErrInvalidPage)
}

func TestRepositoryDateFilter(t *testing.T) {
	ctx := context.Background()
	m := itemsModel()
	db := newTestDB(t, m)
	repo := NewRepository(m, time.UTC)
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	seed(t, db, repo,
		model.Record{"sku": "a", "stocked_at": day.Add(-time.Second)},
		model.Record{"sku": "b", "stocked_at": day},
		model.Record{"sku": "c", "stocked_at": day.Add(12 * time.Hour)},
		model.Record{"sku": "d", "stocked_at": day.Add(24 * time.Hour)},
	)

	n, err := repo.Count(ctx, db, types.Where(types.OnDate("stocked_at", "2024-03-01")))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	shanghai := time.FixedZone("UTC+8", 8*3600)
	local := NewRepository(m, shanghai)
	n, err = local.Count(ctx, db, types.Where(types.OnDate("stocked_at", "2024-03-02")))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRepositoryUpsert(t *testing.T) {
	ctx := context.Background()
	m := itemsModel()
	db := newTestDB(t, m)
	repo := NewRepository(m, nil)
	seed(t, db, repo, model.Record{"sku": "a", "qty": int64(1)})

	require.NoError(t, repo.Upsert(ctx, db, model.Record{"id": int64(1), "sku": "a", "qty": int64(5)}, nil))
	require.NoError(t, repo.Upsert(ctx, db, model.Record{"id": int64(2), "sku": "b", "qty": int64(7)}, []string{"qty"}))

	list, err := repo.List(ctx, db, nil, "id")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(5), list[0]["qty"])
	assert.Equal(t, "b", list[1]["sku"])

	require.NoError(t, repo.(*baseRepositoryImpl).upsertFallback(ctx, db,
		model.Record{"id": int64(2), "sku": "b", "qty": int64(8)}, []string{"qty"}))
	rec, _, err := repo.First(ctx, db, types.Where(types.Eq("id", int64(2))))
	require.NoError(t, err)
	assert.Equal(t, int64(8), rec["qty"])

	assert.Error(t, repo.Upsert(ctx, db, model.Record{"id": int64(3)}, nil))
}
