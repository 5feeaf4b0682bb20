// Package config loads and validates statusgate configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Target      TargetConfig      `mapstructure:"target"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Browser     BrowserConfig     `mapstructure:"browser"`
	Proxy       ProxyConfig       `mapstructure:"proxy"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
	History     HistoryConfig     `mapstructure:"history"`
	Publisher   PublisherConfig   `mapstructure:"publisher"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
	// RequestTimeoutSeconds bounds one API request end to end. It must
	// leave room for a full escalation ladder.
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// TargetConfig identifies the upstream status endpoint and the echo
// endpoint used for proxy verification.
type TargetConfig struct {
	BaseURL string `mapstructure:"base_url"`
	EchoURL string `mapstructure:"echo_url"`
}

// HTTPConfig configures the direct HTTP fetch tier.
type HTTPConfig struct {
	ConnectTimeoutSeconds int `mapstructure:"connect_timeout_seconds"`
	ReadTimeoutSeconds    int `mapstructure:"read_timeout_seconds"`
}

// BrowserConfig configures the headless browser fallback tier.
type BrowserConfig struct {
	Headless              bool `mapstructure:"headless"`
	MaxParallel           int  `mapstructure:"max_parallel"`
	NavTimeoutSec         int  `mapstructure:"nav_timeout_seconds"`
	ChallengeWaitAttempts int  `mapstructure:"challenge_wait_attempts"`
	ChallengePollMs       int  `mapstructure:"challenge_poll_ms"`
}

// ProxyConfig governs discovery, health probing and functional validation
// of public proxies used by the last escalation tier.
type ProxyConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	ListingURL          string `mapstructure:"listing_url"`
	PoolCap             int    `mapstructure:"pool_cap"`
	ProbeConcurrency    int    `mapstructure:"probe_concurrency"`
	ProbeTimeoutSeconds int    `mapstructure:"probe_timeout_seconds"`
	ValidateConcurrency int    `mapstructure:"validate_concurrency"`
}

// DiagnosticsConfig holds the operator notification channel. An empty
// topic leaves diagnostics delivery disabled.
type DiagnosticsConfig struct {
	NtfyBaseURL string `mapstructure:"ntfy_base_url"`
	Topic       string `mapstructure:"topic"`
}

// HistoryConfig controls the invocation history store.
type HistoryConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
}

// PublisherConfig holds metadata for publish-subscribe notifications.
type PublisherConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// DefaultListingURL is the public proxy listing queried when no override
// is configured.
const DefaultListingURL = "https://api.proxyscrape.com/v4/free-proxy-list/get" +
	"?request=get_proxies&country=ua,pl,de,es,ro,lt,sk&protocol=http,socks4,socks5" +
	"&skip=0&proxy_format=protocolipport&format=text&anonymity=Elite&timeout=200"

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STATUSGATE")
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
	v.SetDefault("server.request_timeout_seconds", 120)
	v.SetDefault("target.base_url", "https://passport.mfa.gov.ua/Home/CurrentSessionStatus")
	v.SetDefault("target.echo_url", "https://httpbin.org/ip")
	v.SetDefault("http.connect_timeout_seconds", 10)
	v.SetDefault("http.read_timeout_seconds", 20)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.max_parallel", 2)
	v.SetDefault("browser.nav_timeout_seconds", 15)
	v.SetDefault("browser.challenge_wait_attempts", 25)
	v.SetDefault("browser.challenge_poll_ms", 1000)
	v.SetDefault("proxy.enabled", false)
	v.SetDefault("proxy.listing_url", DefaultListingURL)
	v.SetDefault("proxy.pool_cap", 20)
	v.SetDefault("proxy.probe_concurrency", 20)
	v.SetDefault("proxy.probe_timeout_seconds", 30)
	v.SetDefault("proxy.validate_concurrency", 10)
	v.SetDefault("diagnostics.ntfy_base_url", "https://ntfy.sh")
	v.SetDefault("history.provider", "noop")
	v.SetDefault("history.table", "check_history")
	v.SetDefault("publisher.provider", "memory")
	v.SetDefault("publisher.topic_name", "status.fetched")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Target.BaseURL == "" {
		return fmt.Errorf("target.base_url must be set")
	}
	if c.Target.EchoURL == "" {
		return fmt.Errorf("target.echo_url must be set")
	}
	if c.HTTP.ConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("http.connect_timeout_seconds must be > 0")
	}
	if c.HTTP.ReadTimeoutSeconds <= 0 {
		return fmt.Errorf("http.read_timeout_seconds must be > 0")
	}
	if c.Browser.MaxParallel <= 0 {
		return fmt.Errorf("browser.max_parallel must be > 0")
	}
	if c.Browser.NavTimeoutSec <= 0 {
		return fmt.Errorf("browser.nav_timeout_seconds must be > 0")
	}
	if c.Browser.ChallengeWaitAttempts < 0 {
		return fmt.Errorf("browser.challenge_wait_attempts must be >= 0")
	}
	if c.Browser.ChallengePollMs <= 0 {
		return fmt.Errorf("browser.challenge_poll_ms must be > 0")
	}
	if c.Proxy.Enabled {
		if c.Proxy.ListingURL == "" {
			return fmt.Errorf("proxy.listing_url must be set when proxy escalation is enabled")
		}
		if c.Proxy.PoolCap <= 0 {
			return fmt.Errorf("proxy.pool_cap must be > 0 when proxy escalation is enabled")
		}
		if c.Proxy.ProbeConcurrency <= 0 {
			return fmt.Errorf("proxy.probe_concurrency must be > 0 when proxy escalation is enabled")
		}
		if c.Proxy.ProbeTimeoutSeconds <= 0 {
			return fmt.Errorf("proxy.probe_timeout_seconds must be > 0 when proxy escalation is enabled")
		}
		if c.Proxy.ValidateConcurrency <= 0 {
			return fmt.Errorf("proxy.validate_concurrency must be > 0 when proxy escalation is enabled")
		}
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.History.Provider {
	case "noop":
	case "postgres":
		if c.History.DSN == "" {
			return fmt.Errorf("history.dsn must be set when history.provider is postgres")
		}
	default:
		return fmt.Errorf("history.provider must be one of noop, postgres")
	}
	switch c.Publisher.Provider {
	case "memory":
	case "pubsub":
		if c.Publisher.ProjectID == "" || c.Publisher.TopicName == "" {
			return fmt.Errorf("publisher.project_id and publisher.topic_name must be set when publisher.provider is pubsub")
		}
	default:
		return fmt.Errorf("publisher.provider must be one of memory, pubsub")
	}
	return nil
}

// RequestTimeout returns the end-to-end API request budget.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ConnectTimeout returns the direct-tier connect timeout as a duration.
func (c Config) ConnectTimeout() time.Duration {
	return time.Duration(c.HTTP.ConnectTimeoutSeconds) * time.Second
}

// ReadTimeout returns the direct-tier read timeout as a duration.
func (c Config) ReadTimeout() time.Duration {
	return time.Duration(c.HTTP.ReadTimeoutSeconds) * time.Second
}

// NavTimeout returns the browser navigation timeout as a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Browser.NavTimeoutSec) * time.Second
}

// ChallengePollInterval returns the delay between challenge wait polls.
func (c Config) ChallengePollInterval() time.Duration {
	return time.Duration(c.Browser.ChallengePollMs) * time.Millisecond
}

// ProbeTimeout returns the per-candidate health probe timeout.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Proxy.ProbeTimeoutSeconds) * time.Second
}
