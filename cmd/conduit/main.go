// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tombee/conduit/internal/commands/dump"
	"github.com/tombee/conduit/internal/commands/request"
	"github.com/tombee/conduit/internal/commands/shared"
	versioncmd "github.com/tombee/conduit/internal/commands/version"
	"github.com/tombee/conduit/internal/config"
	"github.com/tombee/conduit/internal/log"
	"github.com/tombee/conduit/pkg/session"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	st := shared.NewState(version, commit, buildDate)

	var (
		configPath string
		logLevel   string
		logFormat  string
		caBundle   string
	)

	root := &cobra.Command{
		Use:   "conduit",
		Short: "HTTP requests over shared pooled sessions",
		Long: `conduit issues HTTP requests through reusable sessions pooled in a
process-wide connection registry. Requests sharing a context key reuse
one underlying connection and execute one at a time.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			if logFormat != "" {
				cfg.Log.Format = logFormat
			}
			if caBundle != "" {
				cfg.CABundle = caBundle
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			st.Config = cfg

			logCfg := log.FromEnv()
			logCfg.Level = cfg.Log.Level
			logCfg.Format = log.Format(cfg.Log.Format)
			slog.SetDefault(log.New(logCfg))

			cmd.Flags().Visit(func(f *pflag.Flag) {
				slog.Debug("flag set", slog.String("flag", f.Name), slog.String("value", f.Value.String()))
			})

			if cfg.CABundle != "" {
				session.SetCertificateBundlePath(cfg.CABundle)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json, text)")
	root.PersistentFlags().StringVar(&caBundle, "ca-bundle", "", "certificate bundle for https requests")

	root.AddCommand(
		request.NewCommand(st),
		dump.NewCommand(st),
		versioncmd.NewCommand(st),
	)

	return root
}
