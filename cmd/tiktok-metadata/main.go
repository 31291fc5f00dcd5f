// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the tiktok-metadata CLI. It resolves
// TikTok video identifiers into metadata through the Research API, collects
// videos by keyword, and checks and downloads collected videos.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/tiktok-metadata/internal/logging"
	"github.com/pdiddy/tiktok-metadata/internal/secrets"
	"github.com/pdiddy/tiktok-metadata/internal/tiktok"
	"github.com/pdiddy/tiktok-metadata/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const (
	secretsDir = ".secrets/"
	envFile    = ".env"
)

// cfg is the merged configuration, loaded before every command runs.
var cfg types.Config

// rootCmd is the base command for the tiktok-metadata CLI.
var rootCmd = &cobra.Command{
	Use:   "tiktok-metadata",
	Short: "Fetch TikTok video metadata from the Research API",
	Long: `tiktok-metadata reads a CSV of TikTok video identifiers, looks each one up
through the TikTok Research API, and appends the returned metadata to an
output file. Re-running against the same output only fetches what is missing.

Credentials are read from the config file, TIKTOK_METADATA_API_CLIENT_KEY and
TIKTOK_METADATA_API_CLIENT_SECRET, the .secrets/ directory
(tiktok-client-key, tiktok-client-secret), or a .env file
(TIKTOK_CLIENT_KEY, TIKTOK_CLIENT_SECRET).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		cfg = c
		return logging.Setup(cfg.Log, os.Stderr)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./tiktok-metadata.yaml or ~/.config/tiktok-metadata/tiktok-metadata.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("ledger", "data/ledger.db", "SQLite run ledger (empty disables it)")
	pf.String("base-url", "https://open.tiktokapis.com", "Research API base URL")
	pf.Duration("timeout", 0, "HTTP request timeout (default 60s)")

	bindFlag("log.level", pf.Lookup("log-level"))
	bindFlag("log.format", pf.Lookup("log-format"))
	bindFlag("ledger.path", pf.Lookup("ledger"))
	bindFlag("api.base_url", pf.Lookup("base-url"))
	bindFlag("http.timeout", pf.Lookup("timeout"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("tiktok-metadata")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "tiktok-metadata"))
		}
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newAPIClient resolves credentials and builds a Research API client from cfg.
func newAPIClient() (*tiktok.Client, error) {
	creds, err := secrets.Resolve(secrets.Credentials{
		ClientKey:    cfg.API.ClientKey,
		ClientSecret: cfg.API.ClientSecret,
	}, secretsDir, envFile)
	if err != nil {
		return nil, err
	}
	log.WithField("sources", strings.Join(creds.Sources, ",")).Debug("loaded credentials")

	return tiktok.NewClient(creds.ClientKey, creds.ClientSecret,
		tiktok.WithBaseURL(cfg.API.BaseURL),
		tiktok.WithHTTPClient(&http.Client{Timeout: cfg.HTTP.Timeout}),
		tiktok.WithUserAgent(cfg.HTTP.UserAgent),
		tiktok.WithFields(cfg.API.Fields),
		tiktok.WithMaxRetries(cfg.API.MaxRetries),
		tiktok.WithRateLimit(cfg.API.RequestsPerSecond),
	), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
