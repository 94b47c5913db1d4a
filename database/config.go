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
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is used when LoadConfig gets an empty prefix.
const DefaultEnvPrefix = "RECORDSTORE"

// LoadConfig merges, in order, built-in defaults, the YAML file at path (if
// path is not empty) and environment variables. Environment keys drop the
// prefix, lower-case the rest and use a double underscore for nesting:
// RECORDSTORE_CONNECTION__MAX_OPEN_CONNS -> connection.max_open_conns.
func LoadConfig(path, envPrefix string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultConfigMap(), "."), nil); err != nil {
		return nil, fmt.Errorf("config: loading defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := k.Load(file.Provider(path), koanfyaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	if envPrefix == "" {
		envPrefix = DefaultEnvPrefix
	}
	prefix := strings.ToUpper(strings.TrimSuffix(envPrefix, "_")) + "_"
	transform := func(s string) string {
		s = strings.TrimPrefix(s, prefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}
	if err := k.Load(env.Provider(prefix, ".", transform), nil); err != nil {
		return nil, fmt.Errorf("config: loading env: %w", err)
	}

	var cfg Config
	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			WeaklyTypedInput: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Connection.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func defaultConfigMap() map[string]interface{} {
	d := DefaultConfig()
	c := d.Connection
	return map[string]interface{}{
		"connection.type":                  c.Type,
		"connection.host":                  c.Host,
		"connection.port":                  c.Port,
		"connection.postgres_driver":       c.PostgresDriver,
		"connection.location":              c.Location,
		"connection.max_idle_conns":        c.MaxIdleConns,
		"connection.max_open_conns":        c.MaxOpenConns,
		"connection.conn_max_lifetime":     c.ConnMaxLifetime,
		"connection.conn_max_idle_time":    c.ConnMaxIdleTime,
		"connection.connect_timeout":       c.ConnectTimeout,
		"connection.read_timeout":          c.ReadTimeout,
		"connection.write_timeout":         c.WriteTimeout,
		"connection.enable_reconnect":      c.EnableReconnect,
		"connection.reconnect_interval":    c.ReconnectInterval,
		"connection.max_reconnect_tries":   c.MaxReconnectTries,
		"connection.health_check_interval": c.HealthCheckInterval,
		"connection.enable_query_log":      c.EnableQueryLog,
		"connection.slow_query_time":       c.SlowQueryTime,
		"connection.charset":               c.Charset,
		"log.level":                        d.Log.Level,
		"log.format":                       d.Log.Format,
	}
}
