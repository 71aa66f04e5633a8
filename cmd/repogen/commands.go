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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/tomoncle/repogen/codegen"
	"github.com/tomoncle/repogen/database"
	"github.com/tomoncle/repogen/utils"
)

const loggerName = "REPOGEN"

type sourceFlags struct {
	scan     string
	manifest string
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.scan, "scan", "", "Go package directory to scan for structs embedding bun.BaseModel")
	cmd.Flags().StringVar(&f.manifest, "manifest", "", "YAML file listing the models")
	cmd.MarkFlagsMutuallyExclusive("scan", "manifest")
}

func (f *sourceFlags) source() (codegen.Source, error) {
	switch {
	case f.scan != "":
		return codegen.ScanSource(f.scan), nil
	case f.manifest != "":
		return codegen.ManifestSource(f.manifest), nil
	}
	return nil, errors.New("one of --scan or --manifest is required")
}

func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:           "repogen",
		Short:         "Generate typed Bun repositories for your models",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if logLevel != "" {
				utils.ConfigureLogLevel(logLevel)
			}
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.AddCommand(newGenerateCmd(), newListCmd(), newPingCmd())
	return root
}

func newGenerateCmd() *cobra.Command {
	var (
		src sourceFlags
		cfg codegen.Config
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write one repository file per model and the repositories index",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := src.source()
			if err != nil {
				return err
			}
			cfg.Logger = utils.NewLogger(loggerName)
			res, err := codegen.Generate(cmd.Context(), s, cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d written, %d skipped\n", len(res.Written), len(res.Skipped))
			return nil
		},
	}
	src.register(cmd)
	cmd.Flags().StringVar(&cfg.OutputDir, "out", "", "output directory")
	cmd.Flags().StringVar(&cfg.Package, "package", "", "package name of generated files (default: base of --out)")
	cmd.Flags().StringVar(&cfg.ModelsImport, "models-import", "", "import path of the model package (empty: same package as --out)")
	cmd.Flags().StringVar(&cfg.RepositoryImport, "repository-import", codegen.DefaultRepositoryImport, "import path of the generic repository package")
	cmd.Flags().BoolVar(&cfg.Force, "force", false, "overwrite existing repository files")
	cmd.Flags().BoolVar(&cfg.Register, "register", false, "emit repository.Define for every model")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newListCmd() *cobra.Command {
	var src sourceFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the models a source yields",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := src.source()
			if err != nil {
				return err
			}
			models, err := s.Models(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tTABLE")
			for _, m := range models {
				fmt.Fprintf(w, "%s\t%s\t%s\n", m.Name, m.TypeName, m.Table)
			}
			return w.Flush()
		},
	}
	src.register(cmd)
	return cmd
}

type pingReport struct {
	Health *database.HealthStatus `json:"health"`
	Stats  *database.DBStats      `json:"stats"`
}

func newPingCmd() *cobra.Command {
	var (
		configFile string
		envFiles   []string
		timeout    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Connect with a database config and print health and pool stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := database.LoadConfig(configFile, envFiles...)
			if err != nil {
				return err
			}
			if _, err := database.InitDB(cfg); err != nil {
				return err
			}
			defer func() { _ = database.CloseDB() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			report := pingReport{
				Health: database.GetHealthStatus(ctx),
				Stats:  database.GetDatabaseStats(),
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if !report.Health.Healthy {
				return fmt.Errorf("database unhealthy: %s", report.Health.LastError)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "YAML database config file")
	cmd.Flags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files loaded before the config")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "health check timeout")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}
