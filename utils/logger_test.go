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

package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureConsole(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetConsoleOutput(&buf)
	t.Cleanup(func() { SetConsoleOutput(os.Stdout) })
	return &buf
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLogLevel("DEBUG"))
	assert.Equal(t, logrus.WarnLevel, ParseLogLevel(" warning "))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel(""))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel("verbose"))
}

func TestNewLoggerIsRegistered(t *testing.T) {
	a := NewLogger("test-registry")
	b := NewLogger("test-registry")
	assert.Same(t, a, b)

	assert.True(t, SetLoggerLevel("test-registry", "error"))
	assert.Equal(t, logrus.ErrorLevel, a.GetLevel())
	assert.False(t, SetLoggerLevel("never-created", "error"))
}

func TestLoggerWritesToConsole(t *testing.T) {
	buf := captureConsole(t)
	lg := NewLogger("test-console")
	lg.SetLevel(logrus.InfoLevel)

	lg.WithField("table", "users").Info("created")
	lg.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "created")
	assert.Contains(t, out, "table=users")
	assert.NotContains(t, out, "hidden")
}

func TestLog4jColorFormatter(t *testing.T) {
	color.NoColor = true
	f := &Log4jColorFormatter{LoggerName: "RECORDSTORE", NameWidth: 12}
	entry := &logrus.Entry{
		Time:    time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "slow query",
		Data:    logrus.Fields{"query": "SELECT 1", "rows": 3},
	}
	b, err := f.Format(entry)
	require.NoError(t, err)
	line := string(b)
	assert.True(t, strings.HasPrefix(line, "2024-03-01 08:30:00.000 WARNING "), line)
	assert.Contains(t, line, " RECORDSTORE : slow query")
	assert.True(t, strings.HasSuffix(line, `query="SELECT 1" rows=3`+"\n"), line)
}

func TestJSONLogFormatter(t *testing.T) {
	f := &JSONLogFormatter{LoggerName: "RECORDSTORE"}
	b, err := f.Format(&logrus.Entry{
		Time:    time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC),
		Level:   logrus.ErrorLevel,
		Message: "insert failed",
		Data:    logrus.Fields{"error": errors.New("duplicate"), "model": "users"},
	})
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(b, &rec))
	assert.Equal(t, "error", rec["level"])
	assert.Equal(t, "RECORDSTORE", rec["logger"])
	assert.Equal(t, "insert failed", rec["message"])
	fields := rec["fields"].(map[string]any)
	assert.Equal(t, "duplicate", fields["error"])
	assert.Equal(t, "users", fields["model"])
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("RS_UTILS_STR", "value")
	t.Setenv("RS_UTILS_BOOL", "true")
	t.Setenv("RS_UTILS_BAD_BOOL", "maybe")

	assert.Equal(t, "value", EnvDefaultString("RS_UTILS_STR", "x"))
	assert.Equal(t, "x", EnvDefaultString("RS_UTILS_UNSET", "x"))
	assert.True(t, EnvDefaultBool("RS_UTILS_BOOL", false))
	assert.True(t, EnvDefaultBool("RS_UTILS_BAD_BOOL", true))
	assert.False(t, EnvDefaultBool("RS_UTILS_UNSET", false))
}
