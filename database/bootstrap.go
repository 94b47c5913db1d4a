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
	"os"
	"path/filepath"
	"strings"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
)

// EnsureDatabase creates the named database when it is missing. It opens its
// own server-level connection, so it works before the configured database
// exists. Calling it again is harmless.
func EnsureDatabase(ctx context.Context, cfg *ConnectionConfig, name string) error {
	if cfg == nil {
		return fmt.Errorf("database configuration cannot be empty")
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	logger := GetLogger()

	switch cfg.Driver() {
	case SQLite:
		if cfg.Memory {
			return nil
		}
		dir := filepath.Dir(SQLiteDSN(&ConnectionConfig{DBName: name}))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create sqlite directory %s: %w", dir, err)
		}
		return nil

	case MySQL:
		sqlDB, db, err := openMySQL(cfg, "")
		if err != nil {
			return fmt.Errorf("failed to open server connection: %w", err)
		}
		defer func() { _ = sqlDB.Close() }()

		charset := cfg.Charset
		if charset == "" {
			charset = "utf8mb4"
		}
		query := "CREATE DATABASE IF NOT EXISTS ? CHARACTER SET " + sanitizeWord(charset)
		if _, err := db.ExecContext(ctx, query, bun.Ident(name)); err != nil {
			return fmt.Errorf("failed to create database %s: %w", name, err)
		}
		logger.Info("Database ensured", "type", MySQL, "database", name)
		return nil

	case Postgres:
		sqlDB, db, err := openPostgres(cfg, "postgres")
		if err != nil {
			return fmt.Errorf("failed to open server connection: %w", err)
		}
		defer func() { _ = sqlDB.Close() }()

		exists, err := db.NewSelect().
			TableExpr("pg_database").
			Where("datname = ?", name).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("failed to look up database %s: %w", name, err)
		}
		if exists {
			return nil
		}
		query := "CREATE DATABASE " + pq.QuoteIdentifier(name)
		if cfg.Template != "" {
			query += " TEMPLATE " + pq.QuoteIdentifier(cfg.Template)
		}
		if cfg.Charset != "" && !strings.HasPrefix(strings.ToLower(cfg.Charset), "utf8mb") {
			query += " ENCODING " + pq.QuoteLiteral(cfg.Charset)
		}
		if _, err := sqlDB.ExecContext(ctx, query); err != nil {
			if Classify(err) == ExistDatabaseErr {
				// lost a race with another creator
				return nil
			}
			return fmt.Errorf("failed to create database %s: %w", name, err)
		}
		logger.Info("Database ensured", "type", Postgres, "database", name)
		return nil
	}
	return fmt.Errorf("unsupported database type: %s", cfg.Type)
}

func sanitizeWord(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
