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
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tomoncle/recordstore/database"
)

type globalOptions struct {
	configPath string
	envPrefix  string
	jsonOutput bool
}

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	return NewRootCommand(version, commit, buildDate).ExecuteContext(ctx)
}

// NewRootCommand assembles the command tree.
func NewRootCommand(version, commit, buildDate string) *cobra.Command {
	opts := &globalOptions{}
	rootCmd := &cobra.Command{
		Use:   "recordstore",
		Short: "Bootstrap and inspect a RecordStore database",
		Long: `recordstore creates databases and tables for models declared in YAML
and reports connection health.

Configuration is read from --config (YAML) and environment variables with
the --env-prefix prefix, e.g. RECORDSTORE_CONNECTION__HOST.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&opts.envPrefix, "env-prefix", database.DefaultEnvPrefix, "environment variable prefix")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newDBCommand(opts))
	rootCmd.AddCommand(newSchemaCommand(opts))
	rootCmd.AddCommand(newHealthCommand(opts))
	return rootCmd
}

func (o *globalOptions) load() (*database.Config, error) {
	cfg, err := database.LoadConfig(o.configPath, o.envPrefix)
	if err != nil {
		return nil, err
	}
	database.ApplyLogConfig(cfg.Log)
	return cfg, nil
}

func (o *globalOptions) print(w io.Writer, v any, text func(io.Writer)) error {
	if o.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}
