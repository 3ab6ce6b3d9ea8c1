// Package cmd wires the tracq command line: connection profiles from the
// config file, per-field filter flags compiled into backend fragments, and
// the paged concurrent fetch behind search.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tracq/internal/compile"
	"tracq/internal/config"
	"tracq/internal/log"
	"tracq/internal/service"
	"tracq/internal/service/bugzilla"
	"tracq/internal/service/github"
	"tracq/internal/service/redmine"
	"tracq/internal/tracing"
)

var (
	version    = "dev"
	cfgFile    string
	connection string
	debug      bool
	cfg        config.Config

	// Captured once per invocation so every relative time in a multi-page
	// fetch resolves against the same instant.
	invocationNow = time.Now()
)

var rootCmd = &cobra.Command{
	Use:   "tracq",
	Short: "A command line client for bug trackers",
	Long: `tracq searches, fetches, and updates records on Bugzilla-, Redmine-,
and GitHub-style issue trackers through one shared filter language.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ~/.config/tracq/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&connection, "connection", "c", "",
		"connection profile to use")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"write debug logs")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .tracq/config.yaml (current directory)
		// 2. ~/.config/tracq/config.yaml (user config)
		if _, err := os.Stat(".tracq/config.yaml"); err == nil {
			viper.SetConfigFile(".tracq/config.yaml")
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "tracq"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}
	viper.SetEnvPrefix("TRACQ")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			home, _ := os.UserHomeDir()
			defaultPath := filepath.Join(home, ".config", "tracq", "config.yaml")
			if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
				viper.SetConfigFile(defaultPath)
				_ = viper.ReadInConfig()
			}
			// If the write fails, continue with built-in defaults.
		}
	}

	cfg = config.Defaults()
	_ = viper.Unmarshal(&cfg)

	if debug || os.Getenv("TRACQ_DEBUG") != "" {
		if path := config.DefaultLogFilePath(); path != "" {
			_, _ = log.Init(path)
		}
	}
}

// setup resolves the selected connection and builds its adapter plus the
// tracing provider.
func setup() (compile.Backend, service.Adapter, service.Connection, *tracing.Provider, error) {
	backend, conn, err := cfg.Resolve(connection)
	if err != nil {
		return 0, nil, service.Connection{}, nil, err
	}
	tcfg := cfg.Tracing
	if tcfg.Enabled && tcfg.Exporter == "file" && tcfg.FilePath == "" {
		tcfg.FilePath = config.DefaultTracesFilePath()
	}
	provider, err := tracing.NewProvider(tcfg)
	if err != nil {
		return 0, nil, service.Connection{}, nil, fmt.Errorf("tracing: %w", err)
	}

	var adapter service.Adapter
	switch backend {
	case compile.Bugzilla:
		adapter = bugzilla.New(conn)
	case compile.Redmine:
		adapter = redmine.New(conn)
	default:
		adapter = github.New(conn)
	}
	return backend, adapter, conn, provider, nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags).
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
