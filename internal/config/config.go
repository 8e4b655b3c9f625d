// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Trending   TrendingConfig   `mapstructure:"github_trending"`
	HackerNews HackerNewsConfig `mapstructure:"hacker_news"`
	TechFeed   TechFeedConfig   `mapstructure:"tech_feed"`
	Papers     PapersConfig     `mapstructure:"paper_summarizer"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// HTTPConfig configures the outbound HTTP client used by the fetchers.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// StorageConfig selects and parameterizes the digest blob store.
type StorageConfig struct {
	// Driver is one of "gcs", "local", or "memory".
	Driver  string `mapstructure:"driver"`
	Bucket  string `mapstructure:"bucket"`
	BaseDir string `mapstructure:"base_dir"`
}

// GeminiConfig carries the summarizer API credentials.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// PubSubConfig holds metadata for digest completion notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// TrendingConfig parameterizes the GitHub Trending job.
type TrendingConfig struct {
	Languages []string `mapstructure:"languages"`
	Schedule  string   `mapstructure:"schedule"`
}

// HackerNewsConfig parameterizes the Hacker News job.
type HackerNewsConfig struct {
	TopStories     int    `mapstructure:"top_stories"`
	ScoreThreshold int    `mapstructure:"score_threshold"`
	Schedule       string `mapstructure:"schedule"`
}

// TechFeedConfig parameterizes the tech feed job.
type TechFeedConfig struct {
	// Feeds maps a display name to the feed URL.
	Feeds            map[string]string `mapstructure:"feeds"`
	ThresholdDays    int               `mapstructure:"threshold_days"`
	MaxEntriesPerDay int               `mapstructure:"max_entries_per_day"`
	DelaySeconds     int               `mapstructure:"delay_seconds"`
	Schedule         string            `mapstructure:"schedule"`
}

// PapersConfig parameterizes the paper summarizer job.
type PapersConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	LookbackDays int    `mapstructure:"lookback_days"`
	Schedule     string `mapstructure:"schedule"`
}

// Load builds a Config from disk/environment. path may be empty, in which
// case only defaults and CHOUKAN_* environment variables apply.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CHOUKAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", false)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.user_agent", "choukan/1.0 (+https://github.com/asagiri-dev/choukan)")

	v.SetDefault("storage.driver", "gcs")
	// Registered empty so CHOUKAN_* environment overrides reach Unmarshal.
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.base_dir", "")

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-1.5-flash")

	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "choukan-digests")

	// Daily at UTC midnight, staggered 10 minutes apart.
	v.SetDefault("github_trending.languages", []string{"", "python", "go"})
	v.SetDefault("github_trending.schedule", "0 0 * * *")
	v.SetDefault("hacker_news.top_stories", 30)
	v.SetDefault("hacker_news.score_threshold", 20)
	v.SetDefault("hacker_news.schedule", "10 0 * * *")
	v.SetDefault("tech_feed.threshold_days", 1)
	v.SetDefault("tech_feed.max_entries_per_day", 10)
	v.SetDefault("tech_feed.delay_seconds", 2)
	v.SetDefault("tech_feed.schedule", "20 0 * * *")
	v.SetDefault("paper_summarizer.enabled", false)
	v.SetDefault("paper_summarizer.lookback_days", 7)
	v.SetDefault("paper_summarizer.schedule", "30 0 * * *")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	switch c.Storage.Driver {
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket must be set when storage.driver is gcs")
		}
	case "local":
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir must be set when storage.driver is local")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.driver must be one of gcs, local, memory")
	}
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("gemini.api_key must be set")
	}
	if c.Gemini.Model == "" {
		return fmt.Errorf("gemini.model must be set")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.Topic == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic must be set when pubsub is enabled")
	}
	if c.HackerNews.TopStories <= 0 {
		return fmt.Errorf("hacker_news.top_stories must be > 0")
	}
	if c.TechFeed.ThresholdDays <= 0 {
		return fmt.Errorf("tech_feed.threshold_days must be > 0")
	}
	if c.TechFeed.MaxEntriesPerDay <= 0 {
		return fmt.Errorf("tech_feed.max_entries_per_day must be > 0")
	}
	if c.TechFeed.DelaySeconds < 0 {
		return fmt.Errorf("tech_feed.delay_seconds must be >= 0")
	}
	if c.Papers.Enabled && c.Papers.LookbackDays <= 0 {
		return fmt.Errorf("paper_summarizer.lookback_days must be > 0")
	}
	return nil
}

// HTTPTimeout converts the configured timeout into a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// TechFeedDelay converts the configured pacing delay into a duration.
func (c TechFeedConfig) Delay() time.Duration {
	return time.Duration(c.DelaySeconds) * time.Second
}
