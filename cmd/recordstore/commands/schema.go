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
	"github.com/uptrace/bun/schema"

	"github.com/tomoncle/recordstore"
	"github.com/tomoncle/recordstore/database"
	"github.com/tomoncle/recordstore/model"
)

func newSchemaCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Create or print tables for declared models",
	}
	cmd.AddCommand(newSchemaApplyCommand(opts))
	cmd.AddCommand(newSchemaSQLCommand(opts))
	return cmd
}

func loadModels(path string, cfg *database.Config) ([]*model.Model, error) {
	if path == "" && cfg != nil {
		path = cfg.Schema.ModelsFile
	}
	if path == "" {
		return nil, fmt.Errorf("no models file: pass --models or set schema.models_file")
	}
	return model.LoadFile(path)
}

func newSchemaApplyCommand(opts *globalOptions) *cobra.Command {
	var modelsPath string

	cmd := &cobra.Command{
		Use:     "apply",
		Short:   "Create missing tables; existing tables are left untouched",
		Example: `  recordstore schema apply -c recordstore.yaml --models models.yaml`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			models, err := loadModels(modelsPath, cfg)
			if err != nil {
				return err
			}

			cfg.Schema.EnsureOnStartup = false
			store, err := recordstore.Open(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.EnsureSchema(cmd.Context(), models...); err != nil {
				return err
			}
			tables := make([]string, len(models))
			for i, m := range models {
				tables[i] = m.Name
			}
			return opts.print(cmd.OutOrStdout(), map[string]any{"tables": tables}, func(w io.Writer) {
				for _, t := range tables {
					_, _ = fmt.Fprintf(w, "table %s ensured\n", t)
				}
			})
		},
	}
	cmd.Flags().StringVar(&modelsPath, "models", "", "YAML model declarations (default schema.models_file)")
	return cmd
}

func newSchemaSQLCommand(opts *globalOptions) *cobra.Command {
	var (
		modelsPath  string
		dialectName string
	)

	cmd := &cobra.Command{
		Use:     "sql",
		Short:   "Print CREATE TABLE statements without connecting",
		Example: `  recordstore schema sql --models models.yaml --dialect postgres`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg *database.Config
			if modelsPath == "" || dialectName == "" {
				loaded, err := opts.load()
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if dialectName == "" {
				dialectName = cfg.Connection.Driver()
			}
			d, err := dialectFor(dialectName, cfg)
			if err != nil {
				return err
			}
			models, err := loadModels(modelsPath, cfg)
			if err != nil {
				return err
			}
			for _, m := range models {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s;\n", database.CreateTableSQL(d, m))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&modelsPath, "models", "", "YAML model declarations (default schema.models_file)")
	cmd.Flags().StringVar(&dialectName, "dialect", "", "mysql, postgres or sqlite (default connection.type)")
	return cmd
}

// dialectFor resolves name with cfg's location when a config was loaded.
func dialectFor(name string, cfg *database.Config) (schema.Dialect, error) {
	conn := &database.ConnectionConfig{Type: name}
	if cfg != nil {
		conn.Location = cfg.Connection.Location
	}
	d, err := database.NewDialect(conn)
	if err != nil {
		return nil, fmt.Errorf("unknown dialect %q", name)
	}
	return d, nil
}
