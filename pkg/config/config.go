// Package config loads stortingsvotering settings from defaults, an optional
// config file and STORTING_* environment variables.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/errors"
)

// EnvPrefix is the prefix for environment overrides, e.g. STORTING_API_TIMEOUT.
const EnvPrefix = "STORTING"

// Config is the complete application configuration.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Data     DataConfig     `mapstructure:"data"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Logging  LoggingConfig  `mapstructure:"logging"`

	// Sessions is the ordered list of known session identifiers, oldest first.
	Sessions []string `mapstructure:"sessions"`
}

// APIConfig controls the upstream data.stortinget.no client.
type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
	// RateLimit is the minimum interval between two requests.
	RateLimit           time.Duration `mapstructure:"rate_limit"`
	MaxAttempts         int           `mapstructure:"max_attempts"`
	TimeoutRetryWait    time.Duration `mapstructure:"timeout_retry_wait"`
	ConnectionRetryWait time.Duration `mapstructure:"connection_retry_wait"`
	// CacheTTL bounds how long identical GET responses are reused. Zero disables caching.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// DataConfig controls where fetched records and results are stored.
type DataConfig struct {
	Dir string `mapstructure:"dir"`
	// Format is "json" or "yaml".
	Format string `mapstructure:"format"`
	// ArchivePath is the SQLite archive file. Empty disables archiving.
	ArchivePath string `mapstructure:"archive_path"`
}

// AnalysisConfig tunes ranking sizes and concurrency.
type AnalysisConfig struct {
	TopN              int `mapstructure:"top_n"`
	SummaryN          int `mapstructure:"summary_n"`
	MinStableSessions int `mapstructure:"min_stable_sessions"`
	Workers           int `mapstructure:"workers"`
}

// LoggingConfig selects log output.
type LoggingConfig struct {
	JSON  bool   `mapstructure:"json"`
	Level string `mapstructure:"level"`
}

// DefaultSessions lists the sessions available from the upstream API.
var DefaultSessions = []string{
	"2011-2012",
	"2012-2013",
	"2013-2014",
	"2014-2015",
	"2015-2016",
	"2016-2017",
	"2017-2018",
	"2018-2019",
	"2019-2020",
	"2020-2021",
	"2021-2022",
	"2022-2023",
	"2023-2024",
	"2024-2025",
}

// SetDefaults registers default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://data.stortinget.no/eksport")
	v.SetDefault("api.user_agent", "stortingsvotering/1.0")
	v.SetDefault("api.timeout", 60*time.Second)
	v.SetDefault("api.rate_limit", 700*time.Millisecond)
	v.SetDefault("api.max_attempts", 3)
	v.SetDefault("api.timeout_retry_wait", 5*time.Second)
	v.SetDefault("api.connection_retry_wait", 10*time.Second)
	v.SetDefault("api.cache_ttl", time.Hour)

	v.SetDefault("data.dir", "data")
	v.SetDefault("data.format", "json")
	v.SetDefault("data.archive_path", "")

	v.SetDefault("analysis.top_n", 10)
	v.SetDefault("analysis.summary_n", 3)
	v.SetDefault("analysis.min_stable_sessions", 3)
	v.SetDefault("analysis.workers", 4)

	v.SetDefault("logging.json", false)
	v.SetDefault("logging.level", "info")

	v.SetDefault("sessions", DefaultSessions)
}

// New returns a viper instance with defaults and environment binding but no file.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads configuration. path may be empty, in which case only defaults
// and environment variables apply. The file type follows the extension
// (.toml, .yaml, .yml, .json).
func Load(path string) (*Config, error) {
	v := New()

	if path != "" {
		v.SetConfigFile(path)
		if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "" {
			v.SetConfigType(ext)
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
	}

	return LoadWithViper(v)
}

// LoadWithViper decodes and validates configuration from v.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and the session list.
func (c *Config) Validate() error {
	switch {
	case c.API.BaseURL == "":
		return errors.Wrap(errors.ErrInvalidConfig, "api.base_url is empty")
	case c.API.Timeout <= 0:
		return errors.Wrap(errors.ErrInvalidConfig, "api.timeout must be positive")
	case c.API.RateLimit < 0:
		return errors.Wrap(errors.ErrInvalidConfig, "api.rate_limit must not be negative")
	case c.API.MaxAttempts <= 0:
		return errors.Wrap(errors.ErrInvalidConfig, "api.max_attempts must be positive")
	case c.Analysis.TopN <= 0:
		return errors.Wrap(errors.ErrInvalidConfig, "analysis.top_n must be positive")
	case c.Analysis.SummaryN <= 0:
		return errors.Wrap(errors.ErrInvalidConfig, "analysis.summary_n must be positive")
	case c.Analysis.MinStableSessions <= 0:
		return errors.Wrap(errors.ErrInvalidConfig, "analysis.min_stable_sessions must be positive")
	case c.Analysis.Workers <= 0:
		return errors.Wrap(errors.ErrInvalidConfig, "analysis.workers must be positive")
	}

	switch c.Data.Format {
	case "json", "yaml":
	default:
		return errors.WithHint(
			errors.Wrapf(errors.ErrInvalidConfig, "unknown data.format %q", c.Data.Format),
			"valid formats: json, yaml")
	}

	seen := make(map[string]bool, len(c.Sessions))
	for _, session := range c.Sessions {
		if session == "" {
			return errors.Wrap(errors.ErrInvalidConfig, "empty session id")
		}
		if seen[session] {
			return errors.Wrapf(errors.ErrInvalidConfig, "duplicate session id %q", session)
		}
		seen[session] = true
	}
	return nil
}

// SessionRange returns the configured sessions between from and to,
// inclusive. Empty bounds mean the start or end of the list.
func (c *Config) SessionRange(from, to string) ([]string, error) {
	sessions := c.Sessions
	hint := "valid sessions: " + strings.Join(c.Sessions, ", ")

	if from != "" {
		idx := indexOf(sessions, from)
		if idx < 0 {
			return nil, errors.WithHint(errors.Wrapf(errors.ErrInvalidConfig, "unknown session %q", from), hint)
		}
		sessions = sessions[idx:]
	}
	if to != "" {
		idx := indexOf(sessions, to)
		if idx < 0 {
			return nil, errors.WithHint(errors.Wrapf(errors.ErrInvalidConfig, "unknown session %q", to), hint)
		}
		sessions = sessions[:idx+1]
	}

	out := make([]string, len(sessions))
	copy(out, sessions)
	return out, nil
}

func indexOf(values []string, target string) int {
	for i, v := range values {
		if v == target {
			return i
		}
	}
	return -1
}
