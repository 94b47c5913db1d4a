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

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/recordstore/database"
)

const testModels = `
models:
  - name: cli_items
    fields:
      - {name: id, type: integer, auto_increment: true}
      - {name: title, type: string, size: 40, not_null: true}
`

func writeModels(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testModels), 0o600))
	return path
}

func memoryEnv(t *testing.T, dbName string) {
	t.Helper()
	t.Setenv("CLITEST_CONNECTION__TYPE", "sqlite")
	t.Setenv("CLITEST_CONNECTION__MEMORY", "true")
	t.Setenv("CLITEST_CONNECTION__DBNAME", dbName)
	t.Setenv("CLITEST_CONNECTION__HEALTH_CHECK_INTERVAL", "0s")
	t.Setenv("CLITEST_LOG__LEVEL", "error")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand("test", "none", "today")
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSchemaSQL(t *testing.T) {
	out, err := run(t, "schema", "sql", "--models", writeModels(t), "--dialect", "sqlite")
	require.NoError(t, err)
	assert.Contains(t, out, `CREATE TABLE IF NOT EXISTS "cli_items"`)
	assert.Contains(t, out, `"title" VARCHAR(40) NOT NULL`)

	out, err = run(t, "schema", "sql", "--models", writeModels(t), "--dialect", "pg")
	require.NoError(t, err)
	assert.Contains(t, out, "BIGSERIAL")
}

func TestSchemaSQLUnknownDialect(t *testing.T) {
	_, err := run(t, "schema", "sql", "--models", writeModels(t), "--dialect", "oracle")
	assert.ErrorContains(t, err, "unknown dialect")
}

func TestDialectForUsesConfiguredLocation(t *testing.T) {
	if _, err := time.LoadLocation("Asia/Shanghai"); err != nil {
		t.Skip("tzdata unavailable")
	}
	cfg := database.DefaultConfig()
	cfg.Connection.Location = "Asia/Shanghai"
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	d, err := dialectFor("mysql", cfg)
	require.NoError(t, err)
	assert.Equal(t, "'2024-03-01 18:00:00'", string(d.AppendTime(nil, at)))

	d, err = dialectFor("mysql", nil)
	require.NoError(t, err)
	assert.Equal(t, "'2024-03-01 10:00:00'", string(d.AppendTime(nil, at)))
}

func TestSchemaApply(t *testing.T) {
	memoryEnv(t, "cli_apply")
	out, err := run(t, "--env-prefix", "CLITEST", "schema", "apply", "--models", writeModels(t))
	require.NoError(t, err)
	assert.Equal(t, "table cli_items ensured\n", out)
}

func TestSchemaApplyWithoutModels(t *testing.T) {
	memoryEnv(t, "cli_nomodels")
	_, err := run(t, "--env-prefix", "CLITEST", "schema", "apply")
	assert.ErrorContains(t, err, "no models file")
}

func TestDBCreate(t *testing.T) {
	memoryEnv(t, "cli_create")
	out, err := run(t, "--env-prefix", "CLITEST", "--json", "db", "create")
	require.NoError(t, err)

	var result map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "cli_create", result["database"])
	assert.Equal(t, "sqlite", result["driver"])
}

func TestHealth(t *testing.T) {
	memoryEnv(t, "cli_health")
	out, err := run(t, "--env-prefix", "CLITEST", "--json", "health")
	require.NoError(t, err)

	var report struct {
		Health struct {
			Healthy bool `json:"healthy"`
		} `json:"health"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Health.Healthy)
}
