// Package cli implements the bugtracker command-line interface.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bugtracker/internal/config"
)

// Version is stamped at build time with -ldflags "-X bugtracker/internal/cli.Version=...".
var Version = "1.0.0-dev"

type app struct {
	v       *viper.Viper
	cfgFile string
}

// NewRootCmd builds the command tree. Running the root command without a
// subcommand starts the server.
func NewRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	cmd := &cobra.Command{
		Use:   "bugtracker",
		Short: "Project and task tracking service",
		Long: `bugtracker serves a REST API for projects and their tasks, plus the
built web client when one is available.

Configuration is resolved with this priority:
  1. Command line flags
  2. Environment variables (BUGTRACKER_*)
  3. Config file (--config, $BUGTRACKER_CONFIG or ./bugtracker.yaml)
  4. Built-in defaults`,
		SilenceUsage: true,
		RunE:         a.runServe,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default ./bugtracker.yaml)")
	flags.String("addr", "", "HTTP listen address")
	flags.String("db-driver", "", "storage driver: sqlite, postgres or memory")
	flags.String("db-path", "", "path to sqlite database file")
	flags.String("db-dsn", "", "postgres connection string")
	flags.String("static", "", "directory with built frontend")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.Bool("metrics", true, "expose Prometheus metrics on /metrics")

	for key, flag := range map[string]string{
		"addr":       "addr",
		"db.driver":  "db-driver",
		"db.path":    "db-path",
		"db.dsn":     "db-dsn",
		"static_dir": "static",
		"log_level":  "log-level",
		"metrics":    "metrics",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	cmd.AddCommand(a.newServeCmd())
	cmd.AddCommand(a.newConfigCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the command line with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

func (a *app) load() (config.Config, error) {
	return config.Load(a.v, a.cfgFile)
}
