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
	"sync"

	"github.com/uptrace/bun"

	"github.com/tomoncle/recordstore/model"
	"github.com/tomoncle/recordstore/utils"
)

// Process-wide connection set up by InitDB and read by the helpers below.
var (
	globalMu      sync.RWMutex
	globalFactory *BaseDatabaseFactory
	globalConfig  *Config
)

func global() *BaseDatabaseFactory {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalFactory
}

// GetDB returns the process-wide Bun handle, or nil before InitDB.
func GetDB() *bun.DB { return global().GetDB() }

// GetDatabaseManager returns the process-wide manager, or nil before InitDB.
func GetDatabaseManager() AbstractDatabaseManager { return global().GetManager() }

// GetDatabaseFactory returns the process-wide factory.
func GetDatabaseFactory() *BaseDatabaseFactory { return global() }

// InitDB is InitDBContext with a background context.
func InitDB(cfg *Config) (*bun.DB, error) {
	return InitDBContext(context.Background(), cfg)
}

// InitDBContext applies the log settings, registers the models declared in
// Schema.ModelsFile and connects. Tables are created when
// Schema.EnsureOnStartup is set. A previous process-wide connection is
// closed first.
func InitDBContext(ctx context.Context, cfg *Config) (*bun.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	ApplyLogConfig(cfg.Log)

	if cfg.Schema.ModelsFile != "" {
		models, err := model.LoadFile(cfg.Schema.ModelsFile)
		if err != nil {
			return nil, err
		}
		for i, m := range models {
			RegisterModel(m, i)
		}
	}

	factory := NewDatabaseFactory()
	if _, err := factory.CreateFromConfig(&cfg.Connection); err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	if err := factory.InitializeDatabase(ctx, cfg.Schema.EnsureOnStartup); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	globalMu.Lock()
	previous := globalFactory
	globalFactory, globalConfig = factory, cfg
	globalMu.Unlock()

	if err := previous.Close(); err != nil {
		GetLogger().Warn("Failed to close previous database", "error", err)
	}
	return factory.GetDB(), nil
}

// ApplyLogConfig sets the console format and the store logger level.
func ApplyLogConfig(cfg LogConfig) {
	if cfg.Format != "" {
		utils.ConfigureConsoleLogFormat(cfg.Format)
	}
	if cfg.Level != "" {
		GetLogger().SetLevel(ParseLogLevel(cfg.Level))
	}
}

// CloseDB closes and forgets the process-wide connection.
func CloseDB() error {
	globalMu.Lock()
	f := globalFactory
	globalFactory = nil
	globalMu.Unlock()
	return f.Close()
}

// GetHealthStatus pings the process-wide connection.
func GetHealthStatus(ctx context.Context) *HealthStatus {
	return global().GetHealthStatus(ctx)
}

// GetDatabaseStats returns pool statistics of the process-wide connection.
func GetDatabaseStats() *DBStats { return global().GetStats() }

// EnsureSchema creates tables for the registered models on the process-wide
// connection.
func EnsureSchema(ctx context.Context) error {
	m := global().GetManager()
	if m == nil {
		return fmt.Errorf("database not initialized")
	}
	return m.EnsureSchema(ctx)
}

// GetConfig returns the configuration last passed to InitDB.
func GetConfig() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConfig
}
