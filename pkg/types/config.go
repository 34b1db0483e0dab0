// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings for collaborators that make network
// requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "medline2sql/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// MaxRetries is the number of retry attempts on HTTP 429 (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// StoreConfig holds settings for the destination database.
type StoreConfig struct {
	// Path is the SQLite database file (default "medline.db").
	Path string `json:"path" yaml:"path"`
}

// ClassifierBackend identifies the abstract-label classifier.
type ClassifierBackend string

const (
	ClassifierLexical ClassifierBackend = "lexical"
	ClassifierHTTP    ClassifierBackend = "http"
)

// ClassifierConfig holds settings for the abstract-label classifier.
type ClassifierConfig struct {
	HTTPConfig `yaml:",inline"`

	// Backend selects the classifier: lexical or http.
	Backend ClassifierBackend `json:"backend" yaml:"backend"`

	// URL is the zero-shot classification endpoint for the http backend.
	URL string `json:"url" yaml:"url"`

	// APIToken is sent as a bearer token to the http backend.
	APIToken string `json:"api_token,omitempty" yaml:"api_token,omitempty"`
}

// IngestConfig holds settings for the ingest stage.
type IngestConfig struct {
	// InputDir is the directory holding .xml or .xml.gz record files.
	InputDir string `json:"input_dir" yaml:"input_dir"`

	// Workers bounds how many upcoming files are decoded ahead of the
	// sequential transform stage (default 2).
	Workers int `json:"workers" yaml:"workers"`

	// Force re-ingests files whose modification time is unchanged.
	Force bool `json:"force" yaml:"force"`

	// Limit stops after this many files (0 = all).
	Limit int `json:"limit" yaml:"limit"`

	// MetricsFile, when set, receives a Prometheus textfile at the end of
	// the run.
	MetricsFile string `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty"`
}

// AffiliationConfig holds settings for the affiliation parsing job.
type AffiliationConfig struct {
	// PageSize is the number of affiliation rows read per page (default 30000).
	PageSize int `json:"page_size" yaml:"page_size"`
}

// LogConfig selects logger level and encoding.
type LogConfig struct {
	// Level is one of debug, info, warn, error (default info).
	Level string `json:"level" yaml:"level"`

	// Format is json or console (default console).
	Format string `json:"format" yaml:"format"`
}

// PipelineConfig groups all configuration for one invocation.
type PipelineConfig struct {
	Store        StoreConfig       `json:"store" yaml:"store"`
	Ingest       IngestConfig      `json:"ingest" yaml:"ingest"`
	Classifier   ClassifierConfig  `json:"classifier" yaml:"classifier"`
	Affiliations AffiliationConfig `json:"affiliations" yaml:"affiliations"`
	Log          LogConfig         `json:"log" yaml:"log"`
}
