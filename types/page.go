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

package types

import (
	"errors"
	"fmt"
)

// ErrInvalidPage is returned for a non-positive page or page size.
var ErrInvalidPage = errors.New("invalid page request")

// PageRequest describes pagination, optional filter, and ordering.
type PageRequest struct {
	page     int
	pageSize int
	filter   Filter
	orders   []string // "id", "-created_at"
}

func (p *PageRequest) GetPage() int { return p.page }

func (p *PageRequest) GetPageSize() int { return p.pageSize }

func (p *PageRequest) GetOffset() int {
	return (p.page - 1) * p.pageSize
}

func (p *PageRequest) GetFilter() Filter {
	return p.filter
}

func (p *PageRequest) GetOrders() []string {
	return p.orders
}

// Validate rejects page numbers and sizes below one instead of silently
// clamping them.
func (p *PageRequest) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil request", ErrInvalidPage)
	}
	if p.page < 1 {
		return fmt.Errorf("%w: page %d", ErrInvalidPage, p.page)
	}
	if p.pageSize < 1 {
		return fmt.Errorf("%w: page size %d", ErrInvalidPage, p.pageSize)
	}
	return nil
}

// NewPageRequest constructs a PageRequest with filter and order settings.
func NewPageRequest(page int, pageSize int, filter Filter, orders []string) *PageRequest {
	return &PageRequest{page, pageSize, filter, orders}
}

// NewPageRequestWithFilter constructs a PageRequest with a filter only.
func NewPageRequestWithFilter(page int, pageSize int, filter Filter) *PageRequest {
	return NewPageRequest(page, pageSize, filter, nil)
}

// NewDefaultPageRequest constructs a PageRequest with no filter or ordering.
func NewDefaultPageRequest(page int, pageSize int) *PageRequest {
	return NewPageRequest(page, pageSize, nil, nil)
}

// Pagination holds paged result items along with pagination metadata.
type Pagination[T any] struct {
	Page     int
	PageSize int
	Total    int
	Items    []T
}

// NewDefaultPagination constructs an empty pagination container.
func NewDefaultPagination[T any](page int, pageSize int) *Pagination[T] {
	return &Pagination[T]{page, pageSize, 0, make([]T, 0)}
}

// Pages returns the number of pages needed for Total items.
func (p *Pagination[T]) Pages() int {
	if p.PageSize < 1 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}
