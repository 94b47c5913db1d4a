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
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"

	"github.com/tomoncle/recordstore/model"
)

const defaultConnectTimeout = 30 * time.Second

// opener opens a pool for dbName; sqlite ignores dbName and uses cfg.DBName.
type opener func(cfg *ConnectionConfig, dbName string) (*sql.DB, *bun.DB, error)

var openers = map[string]opener{
	MySQL:    openMySQL,
	Postgres: openPostgres,
	SQLite:   openSQLite,
}

// conn pairs a bun handle with the pool underneath it.
type conn struct {
	sqlDB *sql.DB
	db    *bun.DB
}

func (c *conn) close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

type loggerRef struct{ Logger }

type defaultDatabaseManager struct {
	config *ConnectionConfig
	logger atomic.Pointer[loggerRef]

	mu      sync.RWMutex
	conn    *conn
	monitor *healthMonitor
}

// NewDatabaseManager returns an AbstractDatabaseManager backed by Bun.
// A nil config means DefaultConnectionConfig.
func NewDatabaseManager(config *ConnectionConfig) AbstractDatabaseManager {
	if config == nil {
		config = DefaultConnectionConfig()
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = defaultConnectTimeout
	}
	return &defaultDatabaseManager{config: config}
}

func (dm *defaultDatabaseManager) log() Logger {
	if ref := dm.logger.Load(); ref != nil {
		return ref.Logger
	}
	return GetLogger()
}

// Connect opens and pings the pool. It is a no-op when already connected.
func (dm *defaultDatabaseManager) Connect(ctx context.Context) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.conn != nil {
		return nil
	}
	c, err := dm.dial(ctx)
	if err != nil {
		return err
	}
	dm.conn = c

	if dm.config.HealthCheckInterval > 0 && dm.monitor == nil {
		dm.monitor = newHealthMonitor(dm)
		go dm.monitor.run()
	}
	dm.log().Info("Database connected", "type", dm.config.Driver(), "url", dm.config.Redacted())
	return nil
}

// dial builds a fresh pool and verifies it within ConnectTimeout.
func (dm *defaultDatabaseManager) dial(ctx context.Context) (*conn, error) {
	open, ok := openers[dm.config.Driver()]
	if !ok {
		return nil, fmt.Errorf("unsupported database type: %s", dm.config.Type)
	}
	sqlDB, db, err := open(dm.config, dm.config.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	c := &conn{sqlDB: sqlDB, db: db}
	dm.installHooks(db)
	dm.tunePool(sqlDB)

	pingCtx, cancel := context.WithTimeout(ctx, dm.config.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = c.close()
		return nil, fmt.Errorf("database connection test failed: %w", err)
	}
	return c, nil
}

func (dm *defaultDatabaseManager) installHooks(db *bun.DB) {
	if dm.config.EnableQueryLog {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	}
	db.AddQueryHook(NewQueryHook(false, false))

	if dm.config.SlowQueryTime > 0 {
		db.AddQueryHook(NewSlowQueryHook(dm.config.SlowQueryTime, false))
		db.AddQueryHook(&slowQueryHook{slowTime: dm.config.SlowQueryTime, logger: dm.log()})
	}
}

func (dm *defaultDatabaseManager) tunePool(sqlDB *sql.DB) {
	// A shared in-memory sqlite database lives as long as one connection
	// does, and shared-cache writers lock each other out.
	if dm.config.Driver() == SQLite && dm.config.Memory {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
		sqlDB.SetConnMaxIdleTime(0)
		return
	}
	sqlDB.SetMaxIdleConns(dm.config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(dm.config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(dm.config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(dm.config.ConnMaxIdleTime)
}

// NewDialect returns the bun dialect for cfg. The MySQL dialect writes
// times in cfg's location, matching the loc the driver reads them back in.
func NewDialect(cfg *ConnectionConfig) (schema.Dialect, error) {
	switch cfg.Driver() {
	case MySQL:
		return mysqldialect.New(mysqldialect.WithTimeLocation(cfg.Loc().String())), nil
	case Postgres:
		return pgdialect.New(), nil
	case SQLite:
		return sqlitedialect.New(), nil
	}
	return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
}

func openMySQL(cfg *ConnectionConfig, dbName string) (*sql.DB, *bun.DB, error) {
	dsn, err := MySQLDSN(cfg, dbName)
	if err != nil {
		return nil, nil, err
	}
	dialect, err := NewDialect(cfg)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, bun.NewDB(sqlDB, dialect), nil
}

func openPostgres(cfg *ConnectionConfig, dbName string) (*sql.DB, *bun.DB, error) {
	dsn := PostgresDSN(cfg, dbName)
	if cfg.PostgresDriver != DriverPGDriver {
		sqlDB, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, nil, err
		}
		return sqlDB, bun.NewDB(sqlDB, pgdialect.New()), nil
	}

	opts := []pgdriver.Option{pgdriver.WithDSN(dsn)}
	if cfg.ConnectTimeout > 0 {
		opts = append(opts, pgdriver.WithDialTimeout(cfg.ConnectTimeout))
	}
	if cfg.ReadTimeout > 0 {
		opts = append(opts, pgdriver.WithReadTimeout(cfg.ReadTimeout))
	}
	if cfg.WriteTimeout > 0 {
		opts = append(opts, pgdriver.WithWriteTimeout(cfg.WriteTimeout))
	}
	sqlDB := sql.OpenDB(pgdriver.NewConnector(opts...))
	return sqlDB, bun.NewDB(sqlDB, pgdialect.New()), nil
}

func openSQLite(cfg *ConnectionConfig, _ string) (*sql.DB, *bun.DB, error) {
	sqlDB, err := sql.Open(sqliteshim.ShimName, SQLiteDSN(cfg))
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, bun.NewDB(sqlDB, sqlitedialect.New()), nil
}

// Disconnect stops the health monitor and closes the pool.
func (dm *defaultDatabaseManager) Disconnect() error {
	dm.mu.Lock()
	c, mon := dm.conn, dm.monitor
	dm.conn, dm.monitor = nil, nil
	dm.mu.Unlock()

	mon.halt()
	if c == nil {
		return nil
	}
	if err := c.close(); err != nil {
		dm.log().Error("Failed to close database connection", "error", err)
		return err
	}
	dm.log().Info("Database connection closed")
	return nil
}

func (dm *defaultDatabaseManager) Reconnect(ctx context.Context) error {
	dm.log().Info("Reconnecting to the database")
	if err := dm.Disconnect(); err != nil {
		dm.log().Warn("Error closing previous connection", "error", err)
	}
	return dm.Connect(ctx)
}

// swap replaces the live pool with a freshly dialed one. It gives up when
// the manager was disconnected while dialing.
func (dm *defaultDatabaseManager) swap(ctx context.Context) error {
	fresh, err := dm.dial(ctx)
	if err != nil {
		return err
	}
	dm.mu.Lock()
	old := dm.conn
	if old == nil {
		dm.mu.Unlock()
		return fresh.close()
	}
	dm.conn = fresh
	dm.mu.Unlock()
	return old.close()
}

func (dm *defaultDatabaseManager) current() *conn {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.conn
}

func (dm *defaultDatabaseManager) Ping(ctx context.Context) error {
	c := dm.current()
	if c == nil {
		return fmt.Errorf("database not connected")
	}
	return c.db.PingContext(ctx)
}

func (dm *defaultDatabaseManager) GetDB() *bun.DB {
	if c := dm.current(); c != nil {
		return c.db
	}
	return nil
}

func (dm *defaultDatabaseManager) GetSQLDB() *sql.DB {
	if c := dm.current(); c != nil {
		return c.sqlDB
	}
	return nil
}

func (dm *defaultDatabaseManager) GetStats() *DBStats {
	sqlDB := dm.GetSQLDB()
	if sqlDB == nil {
		return &DBStats{}
	}
	s := sqlDB.Stats()
	return &DBStats{
		MaxOpenConns:      s.MaxOpenConnections,
		OpenConns:         s.OpenConnections,
		InUse:             s.InUse,
		Idle:              s.Idle,
		WaitCount:         s.WaitCount,
		WaitDuration:      s.WaitDuration,
		MaxIdleClosed:     s.MaxIdleClosed,
		MaxIdleTimeClosed: s.MaxIdleTimeClosed,
		MaxLifetimeClosed: s.MaxLifetimeClosed,
	}
}

// EnsureSchema creates missing tables for models, or for the registered
// models when none are given.
func (dm *defaultDatabaseManager) EnsureSchema(ctx context.Context, models ...*model.Model) error {
	db := dm.GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	if len(models) == 0 {
		models = GetRegisteredModels()
	}
	return NewSchemaManager(db, dm.log()).Ensure(ctx, models...)
}

func (dm *defaultDatabaseManager) GetConfig() *ConnectionConfig {
	return dm.config
}

func (dm *defaultDatabaseManager) SetLogger(logger Logger) {
	if logger == nil {
		dm.logger.Store(nil)
		return
	}
	dm.logger.Store(&loggerRef{logger})
}
