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
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tomoncle/recordstore/database"
)

func newHealthCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Connect, ping and print pool statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			cfg.Connection.HealthCheckInterval = 0
			if _, err := database.InitDBContext(cmd.Context(), cfg); err != nil {
				return err
			}
			defer func() { _ = database.CloseDB() }()

			status := database.GetHealthStatus(cmd.Context())
			stats := database.GetDatabaseStats()
			report := struct {
				URL    string                 `json:"url"`
				Health *database.HealthStatus `json:"health"`
				Stats  *database.DBStats      `json:"stats"`
			}{cfg.Connection.Redacted(), status, stats}

			if err := opts.print(cmd.OutOrStdout(), report, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "url:          %s\n", report.URL)
				_, _ = fmt.Fprintf(w, "healthy:      %t\n", status.Healthy)
				_, _ = fmt.Fprintf(w, "response:     %s\n", status.ResponseTime)
				_, _ = fmt.Fprintf(w, "open/in use:  %d/%d (max %d)\n", stats.OpenConns, stats.InUse, stats.MaxOpenConns)
				if status.LastError != "" {
					_, _ = fmt.Fprintf(w, "last error:   %s\n", status.LastError)
				}
			}); err != nil {
				return err
			}
			if !status.Healthy {
				return fmt.Errorf("database unhealthy: %s", status.LastError)
			}
			return nil
		},
	}
}
