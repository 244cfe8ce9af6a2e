// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the trialscout CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/trialscout/internal/secrets"
	"github.com/pdiddy/trialscout/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from the secrets directory.
var loadedSecrets map[string]string

// logger is configured in PersistentPreRunE.
var logger = zerolog.Nop()

var rootCmd = &cobra.Command{
	Use:   "trialscout",
	Short: "Find publications, clinical trials and experts for a condition",
	Long: `trialscout turns a patient narrative or a list of conditions into a
search across PubMed, ClinicalTrials.gov and ORCID. Conditions are detected
in free text, broadened with clinical synonyms, and queried on all three
providers concurrently. A slow or failing provider degrades the result to
partial; it never hides the others.

Subcommands: search, conditions, profile, serve, version.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = newLogger(cmd)

		dir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(dir, logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug().Strs("keys", keys).Msg("loaded secrets")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./trialscout.yaml or ~/.config/trialscout/trialscout.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets/", "directory of credential files")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (default from config)")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "human-readable console logs")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("trialscout")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "trialscout"))
		}
	}

	viper.SetEnvPrefix("TRIALSCOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig overlays the config file and environment on the defaults and
// fills credentials from the secrets directory.
func loadConfig() (types.Config, error) {
	cfg := types.DefaultConfig()
	bindEnvDefaults(cfg)
	if err := viper.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("parsing config: %w", err)
	}
	secrets.Apply(&cfg.Search.Sources, loadedSecrets)
	return cfg, nil
}

// bindEnvDefaults registers every config key so AutomaticEnv can override
// keys absent from the config file.
func bindEnvDefaults(cfg types.Config) {
	viper.SetDefault("search.timeout", cfg.Search.Timeout)
	viper.SetDefault("search.user_agent", cfg.Search.UserAgent)
	viper.SetDefault("search.max_results", cfg.Search.MaxResults)
	viper.SetDefault("search.source_timeout", cfg.Search.SourceTimeout)
	viper.SetDefault("search.expert_detail_concurrency", cfg.Search.ExpertDetailConcurrency)
	viper.SetDefault("search.breaker.max_failures", cfg.Search.Breaker.MaxFailures)
	viper.SetDefault("search.breaker.open_timeout", cfg.Search.Breaker.OpenTimeout)
	for name, sc := range map[string]types.SourceConfig{
		"pubmed": cfg.Search.Sources.PubMed,
		"trials": cfg.Search.Sources.Trials,
		"orcid":  cfg.Search.Sources.ORCID,
	} {
		prefix := "search.sources." + name + "."
		viper.SetDefault(prefix+"base_url", sc.BaseURL)
		viper.SetDefault(prefix+"rate_per_second", sc.RatePerSecond)
		viper.SetDefault(prefix+"burst", sc.Burst)
		viper.SetDefault(prefix+"max_retries", sc.MaxRetries)
		viper.SetDefault(prefix+"timeout", sc.Timeout)
		viper.SetDefault(prefix+"disabled", sc.Disabled)
		viper.SetDefault(prefix+"api_key", sc.APIKey)
		viper.SetDefault(prefix+"email", sc.Email)
	}
	viper.SetDefault("coalesce.enabled", cfg.Coalesce.Enabled)
	viper.SetDefault("coalesce.quiet_period", cfg.Coalesce.QuietPeriod)
	viper.SetDefault("server.addr", cfg.Server.Addr)
	viper.SetDefault("profile.path", cfg.Profile.Path)
	viper.SetDefault("log.level", cfg.Log.Level)
	viper.SetDefault("log.pretty", cfg.Log.Pretty)
}

// newLogger builds the process logger from flags, falling back to config.
func newLogger(cmd *cobra.Command) zerolog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		level = viper.GetString("log.level")
	}
	pretty, _ := cmd.Flags().GetBool("log-pretty")
	pretty = pretty || viper.GetBool("log.pretty")

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	var l zerolog.Logger
	if pretty {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		l = zerolog.New(os.Stderr)
	}
	return l.Level(lvl).With().Timestamp().Logger()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
