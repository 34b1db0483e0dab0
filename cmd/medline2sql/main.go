// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the medline2sql CLI.
// Subcommands: ingest, query, status, export, affiliations parse, version.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/medline2sql/internal/secrets"
	"github.com/pdiddy/medline2sql/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// cfg is the resolved configuration for the running command.
	cfg types.PipelineConfig

	// logger is built from cfg.Log before any subcommand runs.
	logger = zap.NewNop()
)

// rootCmd is the base command for the medline2sql CLI.
var rootCmd = &cobra.Command{
	Use:   "medline2sql",
	Short: "Load PubMed/MEDLINE XML into a relational SQLite database",
	Long: `medline2sql reads PubMed baseline and update files (.xml or .xml.gz) and
loads them into three SQLite tables: publications, authors and affiliations.

Tables are created from the first file that reaches them and gain columns as
new attributes appear. Duplicate publications and authors are dropped at
insert time; repeated affiliation strings are merged into one row that lists
every occurrence id.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig()
		if err != nil {
			return err
		}

		logger, err = newLogger(cfg.Log)
		if err != nil {
			return err
		}

		s, err := secrets.Load(secrets.DefaultDir, logger)
		if err != nil {
			return err
		}
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug("loaded secrets", zap.Strings("keys", keys))
		}
		secrets.Apply(&cfg, s)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: ./medline2sql.yaml or ~/.config/medline2sql/config.yaml)")
	flags.String("db", defaultDB, "SQLite database file")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "console", "log format: console or json")

	mustBind("store.path", flags.Lookup("db"))
	mustBind("log.level", flags.Lookup("log-level"))
	mustBind("log.format", flags.Lookup("log-format"))
}

func initConfig() {
	// A .env file supplies environment defaults; real environment wins.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: reading .env: %v\n", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("medline2sql")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "medline2sql"))
		}
	}

	viper.SetEnvPrefix("MEDLINE2SQL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
