// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/medline2sql/internal/affil"
	"github.com/pdiddy/medline2sql/internal/ingest"
	"github.com/pdiddy/medline2sql/pkg/types"
)

const defaultDB = "medline.db"

func init() {
	viper.SetDefault("store.path", defaultDB)
	viper.SetDefault("ingest.workers", ingest.DefaultWorkers)
	viper.SetDefault("classifier.backend", string(types.ClassifierLexical))
	viper.SetDefault("classifier.timeout", 30*time.Second)
	viper.SetDefault("classifier.user_agent", "medline2sql/"+version)
	viper.SetDefault("classifier.max_retries", 5)
	viper.SetDefault("affiliations.page_size", affil.DefaultPageSize)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
}

// mustBind ties a config key to a flag. It panics on a nil flag, which is
// a programming error caught at startup.
func mustBind(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("binding %s: %v", key, err))
	}
}

// loadConfig resolves the configuration from flags, environment, config
// file and defaults, in that order of precedence.
func loadConfig() (types.PipelineConfig, error) {
	c := types.PipelineConfig{
		Store: types.StoreConfig{Path: viper.GetString("store.path")},
		Ingest: types.IngestConfig{
			InputDir:    viper.GetString("ingest.input_dir"),
			Workers:     viper.GetInt("ingest.workers"),
			Force:       viper.GetBool("ingest.force"),
			Limit:       viper.GetInt("ingest.limit"),
			MetricsFile: viper.GetString("ingest.metrics_file"),
		},
		Classifier: types.ClassifierConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:    viper.GetDuration("classifier.timeout"),
				UserAgent:  viper.GetString("classifier.user_agent"),
				MaxRetries: viper.GetInt("classifier.max_retries"),
			},
			Backend:  types.ClassifierBackend(viper.GetString("classifier.backend")),
			URL:      viper.GetString("classifier.url"),
			APIToken: viper.GetString("classifier.api_token"),
		},
		Affiliations: types.AffiliationConfig{PageSize: viper.GetInt("affiliations.page_size")},
		Log: types.LogConfig{
			Level:  viper.GetString("log.level"),
			Format: viper.GetString("log.format"),
		},
	}

	if c.Ingest.Workers < 1 {
		return c, fmt.Errorf("ingest.workers must be at least 1, got %d", c.Ingest.Workers)
	}
	if c.Ingest.Limit < 0 {
		return c, fmt.Errorf("ingest.limit must not be negative, got %d", c.Ingest.Limit)
	}
	return c, nil
}

// newLogger builds a zap logger writing to stderr.
func newLogger(c types.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}

	var zc zap.Config
	switch c.Format {
	case "json":
		zc = zap.NewProductionConfig()
	case "console", "":
		zc = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unsupported log format %q: use console or json", c.Format)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
