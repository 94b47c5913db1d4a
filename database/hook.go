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
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"

	"github.com/uptrace/bun"
)

// Environment switches for the console hooks. RECORDSTORE_SQL=1 prints
// failed queries, =2 prints every query. RECORDSTORE_SLOW_SQL=1 prints
// queries slower than the configured threshold.
const (
	QueryLogEnv     = "RECORDSTORE_SQL"
	SlowQueryLogEnv = "RECORDSTORE_SLOW_SQL"
)

var bunSqlSilentMode atomic.Bool

// EnableBunSqlSilent mutes the console hooks, e.g. while creating tables.
func EnableBunSqlSilent(b bool) {
	bunSqlSilentMode.Store(b)
}

var (
	selectColor = color.New(color.FgGreen)
	insertColor = color.New(color.FgBlue)
	updateColor = color.New(color.FgYellow)
	deleteColor = color.New(color.FgMagenta)
	otherColor  = color.New(color.FgRed)
	tagColor    = color.New(color.FgCyan)
	slowColor   = color.New(color.FgYellow, color.Bold)
)

var (
	selectBGColor = color.New(color.BgGreen, color.FgHiWhite)
	insertBGColor = color.New(color.BgBlue, color.FgHiWhite)
	updateBGColor = color.New(color.BgYellow, color.FgHiWhite)
	deleteBGColor = color.New(color.BgMagenta, color.FgHiWhite)
	otherBGColor  = color.New(color.BgRed, color.FgHiWhite)
)

// QueryHook prints queries to a writer with per-operation colors.
type QueryHook struct {
	envName string
	enabled bool
	verbose bool
	writer  io.Writer
}

var _ bun.QueryHook = (*QueryHook)(nil)

// NewQueryHook returns a console hook. It stays off unless enabled is set
// or QueryLogEnv is present in the environment.
func NewQueryHook(enabled, verbose bool) *QueryHook {
	return &QueryHook{envName: QueryLogEnv, enabled: enabled, verbose: verbose, writer: os.Stderr}
}

// WithWriter redirects output.
func (h *QueryHook) WithWriter(w io.Writer) *QueryHook {
	h.writer = w
	return h
}

func (h *QueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if bunSqlSilentMode.Load() {
		return
	}
	enabled := h.enabled
	verbose := h.verbose
	if env, ok := os.LookupEnv(h.envName); ok {
		enabled = env != "" && env != "0"
		verbose = env == "2"
	}

	if !enabled {
		return
	}

	if !verbose {
		switch {
		case event.Err == nil, errors.Is(event.Err, sql.ErrNoRows), errors.Is(event.Err, sql.ErrTxDone):
			return
		}
	}

	now := time.Now()
	dur := now.Sub(event.StartTime)

	args := []interface{}{
		now.Format("2006-01-02 15:04:05.000"),
		tagColor.Sprintf("%15s", "[SQL]"),
		fmt.Sprintf("%17s", dur.Round(time.Microsecond)),
		"  ", operationColor(event).Sprint(event.Query),
	}

	if event.Err != nil {
		typ := reflect.TypeOf(event.Err).String()
		args = append(args,
			"\t",
			color.New(color.BgRed).Sprintf(" %s ", typ+": "+event.Err.Error()),
		)
	}
	_, _ = fmt.Fprintln(h.writer, args...)
}

func operationColor(event *bun.QueryEvent) *color.Color {
	switch event.Operation() {
	case "SELECT":
		return selectColor
	case "INSERT":
		return insertColor
	case "UPDATE":
		return updateColor
	case "DELETE":
		return deleteColor
	default:
		return otherColor
	}
}

func operationBackgroundColor(event *bun.QueryEvent) *color.Color {
	switch event.Operation() {
	case "SELECT":
		return selectBGColor
	case "INSERT":
		return insertBGColor
	case "UPDATE":
		return updateBGColor
	case "DELETE":
		return deleteBGColor
	default:
		return otherBGColor
	}
}

// SlowQueryHook prints queries slower than slowTime.
type SlowQueryHook struct {
	fromEnv  string
	enabled  bool
	slowTime time.Duration
	writer   io.Writer
}

var _ bun.QueryHook = (*SlowQueryHook)(nil)

// NewSlowQueryHook returns a console hook for queries over slowTime.
func NewSlowQueryHook(slowTime time.Duration, enabled bool) *SlowQueryHook {
	return &SlowQueryHook{fromEnv: SlowQueryLogEnv, enabled: enabled, slowTime: slowTime, writer: os.Stderr}
}

// WithWriter redirects output.
func (h *SlowQueryHook) WithWriter(w io.Writer) *SlowQueryHook {
	h.writer = w
	return h
}

func (h *SlowQueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *SlowQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if bunSqlSilentMode.Load() {
		return
	}
	if event.Err != nil {
		return
	}
	enabled := h.enabled

	if env, ok := os.LookupEnv(h.fromEnv); ok {
		enabled = strings.TrimSpace(env) == "1"
	}

	if !enabled {
		return
	}

	duration := time.Since(event.StartTime)
	if duration > h.slowTime {
		args := []interface{}{
			time.Now().Format("2006-01-02 15:04:05.000"),
			slowColor.Sprintf("%15s", "[SLOW SQL]"),
			fmt.Sprintf("%17s", duration.Round(time.Microsecond)),
			"  ", operationBackgroundColor(event).Sprint(event.Query),
		}
		_, _ = fmt.Fprintln(h.writer, args...)
	}
}

// slowQueryHook reports slow queries through the database Logger.
type slowQueryHook struct {
	slowTime time.Duration
	logger   Logger
}

func (h *slowQueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *slowQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if event.Err != nil {
		return
	}

	duration := time.Since(event.StartTime)
	if duration > h.slowTime && h.logger != nil {
		h.logger.Warn("Database slow query detected",
			"duration", duration,
			"slow_threshold", h.slowTime,
			"query", event.Query,
		)
	}
}
