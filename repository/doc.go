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

// Package repository turns a model.Model plus a types.Filter into bun
// queries. It works on untyped records (column -> value maps) rather than
// Go structs, and every method takes the bun.IDB to run on so callers
// choose between the pool and an open transaction.
//
// Typical usage:
//
//	repo := repository.NewRepository(users, time.UTC)
//	err := repo.Insert(ctx, db, model.Record{"name": "ada"})
//	rows, err := repo.List(ctx, db, types.Where(types.Eq("name", "ada")), "-id")
package repository
