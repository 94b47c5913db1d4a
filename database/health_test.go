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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryManager(t *testing.T, name string, interval time.Duration) *defaultDatabaseManager {
	t.Helper()
	cfg := DefaultConnectionConfig()
	cfg.Type = SQLite
	cfg.Memory = true
	cfg.DBName = name
	cfg.SlowQueryTime = 0
	cfg.HealthCheckInterval = interval
	cfg.ReconnectInterval = time.Millisecond

	dm := NewDatabaseManager(cfg).(*defaultDatabaseManager)
	require.NoError(t, dm.Connect(context.Background()))
	t.Cleanup(func() { _ = dm.Disconnect() })
	return dm
}

func TestHealthCheck(t *testing.T) {
	ctx := context.Background()
	dm := memoryManager(t, "health_check", 0)

	status := dm.HealthCheck(ctx)
	assert.True(t, status.Healthy)
	assert.True(t, status.Connected)
	assert.Equal(t, 1, status.MaxOpenConns)
	assert.Empty(t, status.LastError)

	require.NoError(t, dm.Disconnect())
	status = dm.HealthCheck(ctx)
	assert.False(t, status.Healthy)
	assert.Equal(t, "Database not initialized", status.LastError)
	assert.Error(t, dm.Ping(ctx))
	assert.Nil(t, dm.GetDB())
	assert.Equal(t, &DBStats{}, dm.GetStats())
	assert.NoError(t, dm.Disconnect())
}

func TestConnectIsIdempotent(t *testing.T) {
	dm := memoryManager(t, "health_idem", 0)
	db := dm.GetDB()
	require.NoError(t, dm.Connect(context.Background()))
	assert.Same(t, db, dm.GetDB())
}

func TestSwapKeepsMemoryDatabase(t *testing.T) {
	ctx := context.Background()
	dm := memoryManager(t, "health_swap", 0)

	_, err := dm.GetDB().ExecContext(ctx, "CREATE TABLE swapped (v INTEGER)")
	require.NoError(t, err)

	before := dm.GetDB()
	require.NoError(t, dm.swap(ctx))
	assert.NotSame(t, before, dm.GetDB())

	_, err = dm.GetDB().ExecContext(ctx, "INSERT INTO swapped (v) VALUES (1)")
	assert.NoError(t, err)

	require.NoError(t, dm.Disconnect())
	require.NoError(t, dm.swap(ctx))
	assert.Nil(t, dm.GetDB(), "swap after Disconnect must not resurrect the pool")
}

func TestMonitorReconnects(t *testing.T) {
	ctx := context.Background()
	dm := memoryManager(t, "health_monitor", 10*time.Millisecond)
	require.NotNil(t, dm.monitor)

	broken := dm.GetDB()
	require.NoError(t, dm.GetSQLDB().Close())

	assert.Eventually(t, func() bool {
		return dm.GetDB() != broken && dm.Ping(ctx) == nil
	}, 3*time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = dm.Disconnect()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Disconnect did not stop the health monitor")
	}
	assert.Nil(t, dm.monitor)
}
