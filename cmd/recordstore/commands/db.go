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

func newDBCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database level operations",
	}
	cmd.AddCommand(newDBCreateCommand(opts))
	return cmd
}

func newDBCreateCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create [name]",
		Short: "Create the database if it does not exist",
		Example: `  # Create the database named in the config
  recordstore db create -c recordstore.yaml

  # Create another database on the same server
  RECORDSTORE_CONNECTION__TYPE=postgres recordstore db create reports`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			name := cfg.Connection.DBName
			if len(args) > 0 {
				name = args[0]
			}
			if err := database.EnsureDatabase(cmd.Context(), &cfg.Connection, name); err != nil {
				return err
			}
			result := map[string]string{"database": name, "driver": cfg.Connection.Driver(), "url": cfg.Connection.Redacted()}
			return opts.print(cmd.OutOrStdout(), result, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "database %s ready (%s)\n", name, cfg.Connection.Redacted())
			})
		},
	}
}
