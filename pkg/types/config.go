package types

import "time"

// HTTPConfig holds shared HTTP settings used by every provider client.
type HTTPConfig struct {
	// Timeout is the per-request HTTP client timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "trialscout/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// SourceConfig holds the settings for one external provider.
type SourceConfig struct {
	// BaseURL overrides the provider's default endpoint root.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// RatePerSecond limits outgoing requests to the provider (0 = unlimited).
	RatePerSecond float64 `json:"rate_per_second" yaml:"rate_per_second" mapstructure:"rate_per_second"`

	// Burst is the limiter bucket size (default 1).
	Burst int `json:"burst" yaml:"burst" mapstructure:"burst"`

	// MaxRetries bounds retries on HTTP 429/5xx (default 2).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// Timeout overrides SearchConfig.SourceTimeout for this provider.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" mapstructure:"timeout"`

	// Disabled removes the provider from the default source set.
	Disabled bool `json:"disabled" yaml:"disabled" mapstructure:"disabled"`

	// APIKey is an optional provider credential (NCBI api_key).
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// Email identifies the caller to providers with a polite pool.
	Email string `json:"email,omitempty" yaml:"email,omitempty" mapstructure:"email"`
}

// BreakerConfig tunes the per-source circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the consecutive failure count that opens the breaker (default 5).
	MaxFailures uint32 `json:"max_failures" yaml:"max_failures" mapstructure:"max_failures"`

	// OpenTimeout is how long an open breaker rejects calls (default 30s).
	OpenTimeout time.Duration `json:"open_timeout" yaml:"open_timeout" mapstructure:"open_timeout"`
}

// SourcesConfig groups the per-provider settings.
type SourcesConfig struct {
	PubMed SourceConfig `json:"pubmed" yaml:"pubmed" mapstructure:"pubmed"`
	Trials SourceConfig `json:"trials" yaml:"trials" mapstructure:"trials"`
	ORCID  SourceConfig `json:"orcid" yaml:"orcid" mapstructure:"orcid"`
}

// SearchConfig holds settings for the aggregation stage.
type SearchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// MaxResults is the default cap on merged records (default 20).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	// SourceTimeout is the per-source deadline (default 10s).
	SourceTimeout time.Duration `json:"source_timeout" yaml:"source_timeout" mapstructure:"source_timeout"`

	// ExpertDetailConcurrency caps simultaneous expert detail fetches (default 5).
	ExpertDetailConcurrency int `json:"expert_detail_concurrency" yaml:"expert_detail_concurrency" mapstructure:"expert_detail_concurrency"`

	Breaker BreakerConfig `json:"breaker" yaml:"breaker" mapstructure:"breaker"`
	Sources SourcesConfig `json:"sources" yaml:"sources" mapstructure:"sources"`
}

// TimeoutFor returns the effective deadline for a source.
func (c SearchConfig) TimeoutFor(kind SourceKind) time.Duration {
	var sc SourceConfig
	switch kind {
	case SourcePublication:
		sc = c.Sources.PubMed
	case SourceTrial:
		sc = c.Sources.Trials
	case SourceExpert:
		sc = c.Sources.ORCID
	}
	if sc.Timeout > 0 {
		return sc.Timeout
	}
	return c.SourceTimeout
}

// CoalesceConfig holds settings for the query coalescer.
type CoalesceConfig struct {
	// Enabled routes caller-identified searches through the coalescer.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// QuietPeriod is the debounce window (default 600ms).
	QuietPeriod time.Duration `json:"quiet_period" yaml:"quiet_period" mapstructure:"quiet_period"`
}

// ServerConfig holds settings for the HTTP surface.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`
}

// ProfileConfig locates the profile store.
type ProfileConfig struct {
	// Path is the SQLite database file (default data/profiles.db).
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Pretty bool   `json:"pretty" yaml:"pretty" mapstructure:"pretty"`
}

// Config groups all settings.
type Config struct {
	Search   SearchConfig   `json:"search" yaml:"search" mapstructure:"search"`
	Coalesce CoalesceConfig `json:"coalesce" yaml:"coalesce" mapstructure:"coalesce"`
	Server   ServerConfig   `json:"server" yaml:"server" mapstructure:"server"`
	Profile  ProfileConfig  `json:"profile" yaml:"profile" mapstructure:"profile"`
	Log      LogConfig      `json:"log" yaml:"log" mapstructure:"log"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Search: SearchConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   15 * time.Second,
				UserAgent: "trialscout/0.1",
			},
			MaxResults:              20,
			SourceTimeout:           10 * time.Second,
			ExpertDetailConcurrency: 5,
			Breaker: BreakerConfig{
				MaxFailures: 5,
				OpenTimeout: 30 * time.Second,
			},
			Sources: SourcesConfig{
				// NCBI allows 3 req/s without a key.
				PubMed: SourceConfig{RatePerSecond: 3, Burst: 1, MaxRetries: 2},
				Trials: SourceConfig{RatePerSecond: 5, Burst: 2, MaxRetries: 2},
				ORCID:  SourceConfig{RatePerSecond: 10, Burst: 5, MaxRetries: 2},
			},
		},
		Coalesce: CoalesceConfig{
			Enabled:     true,
			QuietPeriod: 600 * time.Millisecond,
		},
		Server:  ServerConfig{Addr: ":8080"},
		Profile: ProfileConfig{Path: "data/profiles.db"},
		Log:     LogConfig{Level: "info"},
	}
}
