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
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

// MySQLDSN renders the go-sql-driver DSN. An empty dbName produces a
// server-level connection with no database selected. Charset must be a
// bare word.
func MySQLDSN(cfg *ConnectionConfig, dbName string) (string, error) {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = dbName
	mc.ParseTime = true
	mc.Loc = cfg.Loc()
	mc.Timeout = cfg.ConnectTimeout
	mc.ReadTimeout = cfg.ReadTimeout
	mc.WriteTimeout = cfg.WriteTimeout
	charset := cfg.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	if sanitizeWord(charset) != charset {
		return "", fmt.Errorf("invalid mysql charset %q", charset)
	}
	if err := mc.Apply(mysql.Charset(charset, "")); err != nil {
		return "", fmt.Errorf("invalid mysql charset %q: %w", charset, err)
	}
	return mc.FormatDSN(), nil
}

// PostgresDSN renders a postgres:// URL understood by both lib/pq and pgdriver.
func PostgresDSN(cfg *ConnectionConfig, dbName string) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	if cfg.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// SQLiteDSN renders a file path, or a shared-cache memory URI when Memory
// is set so every pooled connection sees the same database.
func SQLiteDSN(cfg *ConnectionConfig) string {
	if cfg.Memory {
		return "file:" + cfg.DBName + "?mode=memory&cache=shared"
	}
	if filepath.Ext(cfg.DBName) == "" {
		return cfg.DBName + ".db"
	}
	return cfg.DBName
}
