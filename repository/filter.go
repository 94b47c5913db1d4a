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
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/tomoncle/recordstore/model"
	"github.com/tomoncle/recordstore/types"
)

// applyFilter adds one WHERE clause per condition. An empty filter still
// adds "1 = 1" so UPDATE and DELETE, which bun refuses without a WHERE,
// can address the whole table.
func applyFilter(qb bun.QueryBuilder, db bun.IDB, filter types.Filter, loc *time.Location) error {
	if len(filter) == 0 {
		qb.Where("1 = 1")
		return nil
	}
	for _, cond := range filter {
		col := bun.Ident(cond.Column)
		switch cond.Op {
		case types.OpEquals:
			if cond.Value == nil {
				qb.Where("? IS NULL", col)
			} else {
				qb.Where("? = ?", col, cond.Value)
			}
		case types.OpIn:
			if len(cond.Values) == 0 {
				qb.Where("1 = 0")
			} else {
				qb.Where("? IN (?)", col, bun.In(cond.Values))
			}
		case types.OpDateEquals:
			start, end, err := types.DayRange(cond.Value, loc)
			if err != nil {
				return err
			}
			if db.Dialect().Name() == dialect.SQLite {
				// timestamps are stored as text; compare as julian days
				qb.Where("julianday(?) >= julianday(?) AND julianday(?) < julianday(?)", col, start, col, end)
			} else {
				qb.Where("? >= ? AND ? < ?", col, start, col, end)
			}
		default:
			return fmt.Errorf("unsupported operator %q on column %s", cond.Op, cond.Column)
		}
	}
	return nil
}

// applyOrders orders by each column, descending when prefixed with "-".
func applyOrders(query *bun.SelectQuery, orders []string) {
	for _, order := range orders {
		if col, ok := strings.CutPrefix(order, "-"); ok {
			query.OrderExpr("? DESC", bun.Ident(col))
		} else {
			query.OrderExpr("? ASC", bun.Ident(order))
		}
	}
}

// OrderColumn returns the column an order expression refers to.
func OrderColumn(order string) string {
	return strings.TrimPrefix(order, "-")
}

func sortedColumns(rec model.Record) []string {
	cols := make([]string, 0, len(rec))
	for k := range rec {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}
