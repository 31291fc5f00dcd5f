// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by every command that makes
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "tiktok-metadata/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// APIConfig holds the Research API endpoints, credentials, and pacing.
type APIConfig struct {
	// BaseURL is the API host (default https://open.tiktokapis.com).
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// ClientKey and ClientSecret are the client-credentials pair issued on the
	// developer portal. They are normally loaded from .secrets/ or .env.
	ClientKey    string `json:"-" yaml:"-" mapstructure:"client_key"`
	ClientSecret string `json:"-" yaml:"-" mapstructure:"client_secret"`

	// MaxRetries is the number of retry attempts on 429 and 5xx (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// RequestsPerSecond limits the query rate. Zero disables pacing.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`

	// Fields lists the video fields requested from the query endpoint.
	Fields []string `json:"fields" yaml:"fields" mapstructure:"fields"`
}

// ErrorPolicy selects what a batch loop does after a failed request.
type ErrorPolicy string

const (
	// OnErrorSkip logs the failure, records it, and continues with the next batch.
	OnErrorSkip ErrorPolicy = "skip"
	// OnErrorStop records the failure and aborts the run.
	OnErrorStop ErrorPolicy = "stop"
)

// Valid reports whether p is a known policy.
func (p ErrorPolicy) Valid() bool {
	return p == OnErrorSkip || p == OnErrorStop
}

// LookupConfig holds settings for the identifier lookup command.
type LookupConfig struct {
	// BatchSize is the maximum number of ids per query (default 100).
	BatchSize int `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`

	// WindowDays is the maximum span of creation days in one query (default 30,
	// the vendor limit).
	WindowDays int `json:"window_days" yaml:"window_days" mapstructure:"window_days"`

	// OnError selects skip-and-log or surface-and-stop behaviour.
	OnError ErrorPolicy `json:"on_error" yaml:"on_error" mapstructure:"on_error"`

	// RecheckMissing re-queries ids the ledger already marked as not found.
	RecheckMissing bool `json:"recheck_missing" yaml:"recheck_missing" mapstructure:"recheck_missing"`

	// Delay is the pause between consecutive batches.
	Delay time.Duration `json:"delay" yaml:"delay" mapstructure:"delay"`
}

// CollectConfig holds settings for the keyword collection command.
type CollectConfig struct {
	// From and To bound the collection; To is exclusive.
	From time.Time `json:"from" yaml:"from" mapstructure:"-"`
	To   time.Time `json:"to" yaml:"to" mapstructure:"-"`

	// Keywords are matched as keywords and as hashtag names.
	Keywords []string `json:"keywords" yaml:"keywords" mapstructure:"-"`

	// OutDir receives raw window dumps and per-date CSV files.
	OutDir string `json:"out_dir" yaml:"out_dir" mapstructure:"out_dir"`

	// CombinedPath is the CSV that accumulates every collected video.
	CombinedPath string `json:"combined_path" yaml:"combined_path" mapstructure:"combined_path"`

	// OnError selects skip-and-log or surface-and-stop behaviour per window.
	OnError ErrorPolicy `json:"on_error" yaml:"on_error" mapstructure:"on_error"`
}

// DownloadConfig holds settings for the availability check and video download.
type DownloadConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// OutDir receives <stem>_processed.csv.
	OutDir string `json:"out_dir" yaml:"out_dir" mapstructure:"out_dir"`

	// VideoDir is the parent directory for downloaded videos; files land in
	// VideoDir/<stem>/.
	VideoDir string `json:"video_dir" yaml:"video_dir" mapstructure:"video_dir"`

	// Attempts is the number of tries per page fetch or download (default 5).
	Attempts int `json:"attempts" yaml:"attempts" mapstructure:"attempts"`

	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay" mapstructure:"retry_delay"`

	// Delay is the pause between consecutive rows.
	Delay time.Duration `json:"delay" yaml:"delay" mapstructure:"delay"`
}

// LedgerConfig locates the SQLite run ledger. An empty path disables it.
type LedgerConfig struct {
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	// Level is a logrus level name (debug, info, warn, error).
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is "text" or "json".
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// Config groups every section of tiktok-metadata.yaml.
type Config struct {
	HTTP     HTTPConfig     `json:"http" yaml:"http" mapstructure:"http"`
	API      APIConfig      `json:"api" yaml:"api" mapstructure:"api"`
	Lookup   LookupConfig   `json:"lookup" yaml:"lookup" mapstructure:"lookup"`
	Collect  CollectConfig  `json:"collect" yaml:"collect" mapstructure:"collect"`
	Download DownloadConfig `json:"download" yaml:"download" mapstructure:"download"`
	Ledger   LedgerConfig   `json:"ledger" yaml:"ledger" mapstructure:"ledger"`
	Log      LogConfig      `json:"log" yaml:"log" mapstructure:"log"`
}

// DefaultFields is the field list requested when none is configured.
var DefaultFields = []string{
	"id",
	"username",
	"video_description",
	"create_time",
	"region_code",
	"view_count",
	"like_count",
	"comment_count",
	"share_count",
	"favorites_count",
	"music_id",
	"hashtag_names",
	"effect_ids",
	"playlist_id",
	"voice_to_text",
	"video_duration",
}

// DefaultConfig returns the built-in defaults applied before the config
// file, environment, and flags.
func DefaultConfig() Config {
	httpCfg := HTTPConfig{
		Timeout:   60 * time.Second,
		UserAgent: "tiktok-metadata/0.1",
	}
	return Config{
		HTTP: httpCfg,
		API: APIConfig{
			BaseURL:           "https://open.tiktokapis.com",
			MaxRetries:        5,
			RequestsPerSecond: 1,
			Fields:            DefaultFields,
		},
		Lookup: LookupConfig{
			BatchSize:  100,
			WindowDays: 30,
			OnError:    OnErrorSkip,
		},
		Collect: CollectConfig{
			OutDir:       "output/collect",
			CombinedPath: "output/combined_metadata.csv",
			OnError:      OnErrorSkip,
		},
		Download: DownloadConfig{
			HTTPConfig: httpCfg,
			OutDir:     "output",
			VideoDir:   "videos",
			Attempts:   5,
			RetryDelay: 100 * time.Second,
			Delay:      10 * time.Second,
		},
		Ledger: LedgerConfig{Path: "data/ledger.db"},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}
