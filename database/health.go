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
	"sync"
	"time"
)

const healthPingTimeout = 5 * time.Second

// HealthCheck pings the database and reports the result with pool usage.
func (dm *defaultDatabaseManager) HealthCheck(ctx context.Context) *HealthStatus {
	start := time.Now()
	status := &HealthStatus{LastCheckTime: start}

	c := dm.current()
	if c == nil {
		status.LastError = "Database not initialized"
		return status
	}

	pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	err := c.db.PingContext(pingCtx)
	cancel()

	status.ResponseTime = time.Since(start)
	status.Healthy = err == nil
	status.Connected = err == nil
	if err != nil {
		status.LastError = err.Error()
	}

	s := c.sqlDB.Stats()
	status.ActiveConns = s.InUse
	status.IdleConns = s.Idle
	status.MaxOpenConns = s.MaxOpenConnections
	return status
}

// healthMonitor checks the connection every HealthCheckInterval and, with
// EnableReconnect, swaps in a new pool after a failed check. Consecutive
// failed reconnects are capped at MaxReconnectTries; a healthy check resets
// the count.
type healthMonitor struct {
	dm    *defaultDatabaseManager
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
	tries int
}

func newHealthMonitor(dm *defaultDatabaseManager) *healthMonitor {
	return &healthMonitor{
		dm:   dm,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (m *healthMonitor) run() {
	defer close(m.done)

	ticker := time.NewTicker(m.dm.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.check()
		case <-m.stop:
			return
		}
	}
}

func (m *healthMonitor) check() {
	cfg := m.dm.config
	status := m.dm.HealthCheck(context.Background())
	if status.Healthy {
		m.tries = 0
		return
	}
	if !cfg.EnableReconnect {
		return
	}
	if m.tries >= cfg.MaxReconnectTries {
		if m.tries == cfg.MaxReconnectTries {
			m.dm.log().Error("Max reconnect attempts reached", "tries", m.tries)
			m.tries++
		}
		return
	}
	m.tries++

	select {
	case <-time.After(cfg.ReconnectInterval):
	case <-m.stop:
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := m.dm.swap(ctx); err != nil {
		m.dm.log().Error("Reconnect failed", "error", err, "try", m.tries)
		return
	}
	m.tries = 0
	m.dm.log().Info("Reconnect succeeded")
}

// halt stops the monitor and waits for it to exit. Safe on a nil monitor.
func (m *healthMonitor) halt() {
	if m == nil {
		return
	}
	m.once.Do(func() { close(m.stop) })
	<-m.done
}
