// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/tiktok-metadata/pkg/types"
)

const envPrefix = "TIKTOK_METADATA"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged configuration as YAML",
	Long: `Show prints the configuration after applying defaults, the config file,
TIKTOK_METADATA_* environment variables, and flags. Credentials are never
printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

// setDefaults registers every config key with its default so that
// environment variables and Unmarshal see the full key set.
func setDefaults(v *viper.Viper) {
	d := types.DefaultConfig()

	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("http.user_agent", d.HTTP.UserAgent)

	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.client_key", "")
	v.SetDefault("api.client_secret", "")
	v.SetDefault("api.max_retries", d.API.MaxRetries)
	v.SetDefault("api.requests_per_second", d.API.RequestsPerSecond)
	v.SetDefault("api.fields", d.API.Fields)

	v.SetDefault("lookup.batch_size", d.Lookup.BatchSize)
	v.SetDefault("lookup.window_days", d.Lookup.WindowDays)
	v.SetDefault("lookup.on_error", string(d.Lookup.OnError))
	v.SetDefault("lookup.recheck_missing", d.Lookup.RecheckMissing)
	v.SetDefault("lookup.delay", d.Lookup.Delay)

	v.SetDefault("collect.out_dir", d.Collect.OutDir)
	v.SetDefault("collect.combined_path", d.Collect.CombinedPath)
	v.SetDefault("collect.on_error", string(d.Collect.OnError))

	v.SetDefault("download.timeout", d.Download.Timeout)
	v.SetDefault("download.user_agent", d.Download.UserAgent)
	v.SetDefault("download.out_dir", d.Download.OutDir)
	v.SetDefault("download.video_dir", d.Download.VideoDir)
	v.SetDefault("download.attempts", d.Download.Attempts)
	v.SetDefault("download.retry_delay", d.Download.RetryDelay)
	v.SetDefault("download.delay", d.Download.Delay)

	v.SetDefault("ledger.path", d.Ledger.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// loadConfig merges defaults, the config file already read into v, the
// environment, and bound flags.
func loadConfig(v *viper.Viper) (types.Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c types.Config
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decoding config: %w", err)
	}
	if !c.Lookup.OnError.Valid() {
		return c, fmt.Errorf("lookup.on_error: unknown policy %q (want skip or stop)", c.Lookup.OnError)
	}
	if !c.Collect.OnError.Valid() {
		return c, fmt.Errorf("collect.on_error: unknown policy %q (want skip or stop)", c.Collect.OnError)
	}
	return c, nil
}

// bindFlag ties a flag to a config key on the global viper instance.
func bindFlag(key string, f *pflag.Flag) {
	if err := viper.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", key, err))
	}
}
