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
	"time"

	"github.com/uptrace/bun"
)

// BaseDatabaseFactory builds a manager from a ConnectionConfig and runs the
// startup sequence: create the database, connect, create tables. Its
// accessors are safe on a nil factory and before CreateFromConfig.
type BaseDatabaseFactory struct {
	manager AbstractDatabaseManager
	logger  Logger
}

// NewDatabaseFactory returns a factory logging through GetLogger.
func NewDatabaseFactory() *BaseDatabaseFactory {
	return &BaseDatabaseFactory{logger: GetLogger()}
}

// CreateFromConfig validates cfg and replaces the factory's manager.
func (f *BaseDatabaseFactory) CreateFromConfig(cfg *ConnectionConfig) (AbstractDatabaseManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f.manager = NewDatabaseManager(cfg)
	f.manager.SetLogger(f.logger)
	return f.manager, nil
}

// InitializeDatabase creates the database when AutoCreate is set, connects
// and, with ensureSchema, creates tables for the registered models.
func (f *BaseDatabaseFactory) InitializeDatabase(ctx context.Context, ensureSchema bool) error {
	m := f.GetManager()
	if m == nil {
		return fmt.Errorf("database manager not created")
	}

	cfg := m.GetConfig()
	if cfg.AutoCreate {
		if err := EnsureDatabase(ctx, cfg, cfg.DBName); err != nil {
			return err
		}
	}
	if err := m.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if ensureSchema {
		if err := m.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to ensure database schema: %w", err)
		}
	}
	f.logger.Debug("Database ready", "type", cfg.Driver(), "schema", ensureSchema)
	return nil
}

func (f *BaseDatabaseFactory) GetManager() AbstractDatabaseManager {
	if f == nil {
		return nil
	}
	return f.manager
}

func (f *BaseDatabaseFactory) GetDB() *bun.DB {
	if m := f.GetManager(); m != nil {
		return m.GetDB()
	}
	return nil
}

func (f *BaseDatabaseFactory) SetLogger(logger Logger) {
	f.logger = logger
	if f.manager != nil {
		f.manager.SetLogger(logger)
	}
}

func (f *BaseDatabaseFactory) Close() error {
	if m := f.GetManager(); m != nil {
		return m.Disconnect()
	}
	return nil
}

func (f *BaseDatabaseFactory) GetHealthStatus(ctx context.Context) *HealthStatus {
	if m := f.GetManager(); m != nil {
		return m.HealthCheck(ctx)
	}
	return &HealthStatus{LastError: "Database not initialized", LastCheckTime: time.Now()}
}

func (f *BaseDatabaseFactory) GetStats() *DBStats {
	if m := f.GetManager(); m != nil {
		return m.GetStats()
	}
	return &DBStats{}
}
