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
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/tomoncle/recordstore/model"
)

// Supported database types.
const (
	MySQL    = "mysql"
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// Postgres driver selection.
const (
	DriverPQ       = "pq"
	DriverPGDriver = "pgdriver"
)

// AbstractDatabaseManager defines the operations for managing a database
// connection, creating tables for declared models, and reporting health.
type AbstractDatabaseManager interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Reconnect(ctx context.Context) error
	Ping(ctx context.Context) error
	HealthCheck(ctx context.Context) *HealthStatus
	GetDB() *bun.DB
	GetSQLDB() *sql.DB
	EnsureSchema(ctx context.Context, models ...*model.Model) error
	GetStats() *DBStats
	GetConfig() *ConnectionConfig
	SetLogger(logger Logger)
}

// HealthStatus holds the result of a health check against the database.
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	Connected     bool          `json:"connected"`
	ResponseTime  time.Duration `json:"response_time"`
	ActiveConns   int           `json:"active_conns"`
	IdleConns     int           `json:"idle_conns"`
	MaxOpenConns  int           `json:"max_open_conns"`
	LastError     string        `json:"last_error,omitempty"`
	LastCheckTime time.Time     `json:"last_check_time"`
}

// DBStats mirrors database/sql stats returned by the manager.
type DBStats struct {
	MaxOpenConns      int           `json:"max_open_conns"`
	OpenConns         int           `json:"open_conns"`
	InUse             int           `json:"in_use"`
	Idle              int           `json:"idle"`
	WaitCount         int64         `json:"wait_count"`
	WaitDuration      time.Duration `json:"wait_duration"`
	MaxIdleClosed     int64         `json:"max_idle_closed"`
	MaxIdleTimeClosed int64         `json:"max_idle_time_closed"`
	MaxLifetimeClosed int64         `json:"max_lifetime_closed"`
}

// ConnectionConfig describes how to connect to a database and tune its pool.
type ConnectionConfig struct {
	Type     string `koanf:"type" json:"type"` // postgres、mysql、sqlite
	Host     string `koanf:"host" json:"host"`
	Port     int    `koanf:"port" json:"port"`
	Username string `koanf:"username" json:"username"`
	Password string `koanf:"password" json:"password"`
	// DBName is the database name, or the file path for sqlite.
	DBName  string `koanf:"dbname" json:"dbname"`
	SSLMode string `koanf:"sslmode" json:"sslmode"`
	// PostgresDriver picks lib/pq ("pq", default) or bun's "pgdriver".
	PostgresDriver string `koanf:"postgres_driver" json:"postgres_driver"`
	// Memory opens a shared in-memory sqlite database named DBName.
	Memory bool `koanf:"memory" json:"memory"`
	// Location is the zone date filters are evaluated in (default UTC).
	Location string `koanf:"location" json:"location"`

	MaxIdleConns        int           `koanf:"max_idle_conns" json:"max_idle_conns"`
	MaxOpenConns        int           `koanf:"max_open_conns" json:"max_open_conns"`
	ConnMaxLifetime     time.Duration `koanf:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime     time.Duration `koanf:"conn_max_idle_time" json:"conn_max_idle_time"`
	ConnectTimeout      time.Duration `koanf:"connect_timeout" json:"connect_timeout"`
	ReadTimeout         time.Duration `koanf:"read_timeout" json:"read_timeout"`
	WriteTimeout        time.Duration `koanf:"write_timeout" json:"write_timeout"`
	EnableReconnect     bool          `koanf:"enable_reconnect" json:"enable_reconnect"`
	ReconnectInterval   time.Duration `koanf:"reconnect_interval" json:"reconnect_interval"`
	MaxReconnectTries   int           `koanf:"max_reconnect_tries" json:"max_reconnect_tries"`
	HealthCheckInterval time.Duration `koanf:"health_check_interval" json:"health_check_interval"`
	EnableQueryLog      bool          `koanf:"enable_query_log" json:"enable_query_log"`
	SlowQueryTime       time.Duration `koanf:"slow_query_time" json:"slow_query_time"`
	AutoCreate          bool          `koanf:"auto_create" json:"auto_create"`
	Charset             string        `koanf:"charset" json:"charset"` // MySQL:utf8mb4  、Postgres:UTF8
	Template            string        `koanf:"template" json:"template"`
}

// SchemaConfig controls table creation on startup.
type SchemaConfig struct {
	EnsureOnStartup bool   `koanf:"ensure_on_startup" json:"ensure_on_startup"`
	ModelsFile      string `koanf:"models_file" json:"models_file"`
}

// LogConfig sets the level and console format of the store loggers.
type LogConfig struct {
	Level  string `koanf:"level" json:"level"`
	Format string `koanf:"format" json:"format"` // text or json
}

// Config aggregates connection, schema, and logging settings.
type Config struct {
	Connection ConnectionConfig `koanf:"connection" json:"connection"`
	Schema     SchemaConfig     `koanf:"schema" json:"schema"`
	Log        LogConfig        `koanf:"log" json:"log"`
}

// DefaultConnectionConfig returns a connection config with sensible defaults.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Type:                MySQL,
		Host:                "127.0.0.1",
		Port:                3306,
		PostgresDriver:      DriverPQ,
		Location:            "UTC",
		MaxIdleConns:        10,
		MaxOpenConns:        100,
		ConnMaxLifetime:     time.Hour,
		ConnMaxIdleTime:     time.Minute * 30,
		ConnectTimeout:      time.Second * 10,
		ReadTimeout:         time.Second * 30,
		WriteTimeout:        time.Second * 30,
		EnableReconnect:     true,
		ReconnectInterval:   time.Second * 5,
		MaxReconnectTries:   3,
		HealthCheckInterval: time.Minute * 5,
		EnableQueryLog:      false,
		SlowQueryTime:       time.Second * 2,
		Charset:             "utf8mb4",
	}
}

// DefaultConfig returns a Config holding DefaultConnectionConfig.
func DefaultConfig() *Config {
	return &Config{
		Connection: *DefaultConnectionConfig(),
		Log:        LogConfig{Level: "info", Format: "text"},
	}
}

// Driver returns the normalized database type.
func (c *ConnectionConfig) Driver() string {
	switch strings.ToLower(c.Type) {
	case "mysql", "mariadb":
		return MySQL
	case "postgres", "postgresql", "pg":
		return Postgres
	case "sqlite", "sqlite3":
		return SQLite
	}
	return strings.ToLower(c.Type)
}

// Loc resolves Location, falling back to UTC.
func (c *ConnectionConfig) Loc() *time.Location {
	if c.Location == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate checks the fields required by the selected driver.
func (c *ConnectionConfig) Validate() error {
	switch c.Driver() {
	case MySQL, Postgres:
		if c.Host == "" {
			return fmt.Errorf("%s: host is required", c.Driver())
		}
		if c.DBName == "" {
			return fmt.Errorf("%s: dbname is required", c.Driver())
		}
	case SQLite:
		if c.DBName == "" {
			return fmt.Errorf("sqlite: dbname (file path or memory name) is required")
		}
	default:
		return fmt.Errorf("unsupported database type: %s, supported types: %v", c.Type, []string{MySQL, Postgres, SQLite})
	}
	if c.Driver() == MySQL && c.Charset != "" && sanitizeWord(c.Charset) != c.Charset {
		return fmt.Errorf("invalid mysql charset %q", c.Charset)
	}
	if c.Location != "" {
		if _, err := time.LoadLocation(c.Location); err != nil {
			return fmt.Errorf("invalid location %q: %w", c.Location, err)
		}
	}
	switch c.PostgresDriver {
	case "", DriverPQ, DriverPGDriver:
	default:
		return fmt.Errorf("unknown postgres driver %q", c.PostgresDriver)
	}
	return nil
}

// URL renders the connection as <driver>://user:password@host:port/db?charset=utf8mb4.
func (c *ConnectionConfig) URL() string {
	return c.url(url.UserPassword(c.Username, c.Password))
}

// Redacted is URL with the password masked, for logs.
func (c *ConnectionConfig) Redacted() string {
	if c.Password == "" {
		return c.url(url.User(c.Username))
	}
	return c.url(url.UserPassword(c.Username, "xxxxx"))
}

func (c *ConnectionConfig) url(user *url.Userinfo) string {
	if c.Driver() == SQLite {
		if c.Memory {
			return "sqlite://:memory:/" + c.DBName
		}
		return "sqlite:///" + strings.TrimPrefix(c.DBName, "/")
	}
	u := url.URL{
		Scheme: c.Driver(),
		User:   user,
		Host:   c.Host + ":" + strconv.Itoa(c.Port),
		Path:   "/" + c.DBName,
	}
	charset := c.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	u.RawQuery = url.Values{"charset": []string{charset}}.Encode()
	return u.String()
}
