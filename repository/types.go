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

	"github.com/uptrace/bun"

	"github.com/tomoncle/recordstore/model"
	"github.com/tomoncle/recordstore/types"
)

// CrudRepository defines record operations on one table. Every method takes
// the bun.IDB to run on, so the same repository serves the pool and a
// transaction. Records and filters are expected to be validated already.
type CrudRepository interface {
	Insert(ctx context.Context, db bun.IDB, rec model.Record) error

	Upsert(ctx context.Context, db bun.IDB, rec model.Record, fields []string) error

	Update(ctx context.Context, db bun.IDB, values model.Record, filter types.Filter) (int64, error)

	Delete(ctx context.Context, db bun.IDB, filter types.Filter) (int64, error)

	List(ctx context.Context, db bun.IDB, filter types.Filter, orders ...string) ([]model.Record, error)

	First(ctx context.Context, db bun.IDB, filter types.Filter) (model.Record, bool, error)

	Count(ctx context.Context, db bun.IDB, filter types.Filter) (int, error)
}

// PageQueryRepository defines pagination over a filtered table.
type PageQueryRepository interface {
	Page(ctx context.Context, db bun.IDB, page *types.PageRequest) (*types.Pagination[model.Record], error)
}

// Repository combines CRUD and pagination and exposes the model it serves.
type Repository interface {
	CrudRepository
	PageQueryRepository
	Model() *model.Model
}
