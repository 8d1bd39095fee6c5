package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	PageSpeed  PageSpeedConfig  `yaml:"pagespeed" mapstructure:"pagespeed"`
	Crawl      CrawlConfig      `yaml:"crawl" mapstructure:"crawl"`
	Audit      AuditConfig      `yaml:"audit" mapstructure:"audit"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings for the text-insight capability.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PageSpeedConfig holds Google PageSpeed Insights settings.
type PageSpeedConfig struct {
	Key        string  `yaml:"key" mapstructure:"key"`
	BaseURL    string  `yaml:"base_url" mapstructure:"base_url"`
	Strategy   string  `yaml:"strategy" mapstructure:"strategy"`
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// CrawlConfig configures the crawl phase.
type CrawlConfig struct {
	MaxPages        int      `yaml:"max_pages" mapstructure:"max_pages"`
	BatchSize       int      `yaml:"batch_size" mapstructure:"batch_size"`
	NavTimeoutSecs  int      `yaml:"nav_timeout_secs" mapstructure:"nav_timeout_secs"`
	SettleDelayMS   int      `yaml:"settle_delay_ms" mapstructure:"settle_delay_ms"`
	UserAgent       string   `yaml:"user_agent" mapstructure:"user_agent"`
	ViewportWidth   int      `yaml:"viewport_width" mapstructure:"viewport_width"`
	ViewportHeight  int      `yaml:"viewport_height" mapstructure:"viewport_height"`
	Renderer        string   `yaml:"renderer" mapstructure:"renderer"`
	Headless        bool     `yaml:"headless" mapstructure:"headless"`
	CacheTTLHours   int      `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	PriorityTokens  []string `yaml:"priority_tokens" mapstructure:"priority_tokens"`
	ExcludePaths    []string `yaml:"exclude_paths" mapstructure:"exclude_paths"`
	ScreenshotFirst bool     `yaml:"screenshot_first" mapstructure:"screenshot_first"`
}

// NavTimeout returns the per-page navigation bound.
func (c CrawlConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSecs) * time.Second
}

// SettleDelay returns the pause taken before a screenshot.
func (c CrawlConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMS) * time.Millisecond
}

// AuditConfig holds the rule engine's policy thresholds.
type AuditConfig struct {
	TitleMin           int     `yaml:"title_min" mapstructure:"title_min"`
	TitleMax           int     `yaml:"title_max" mapstructure:"title_max"`
	ThinContentWords   int     `yaml:"thin_content_words" mapstructure:"thin_content_words"`
	ContentPageLimit   int     `yaml:"content_page_limit" mapstructure:"content_page_limit"`
	ContentMaxChars    int     `yaml:"content_max_chars" mapstructure:"content_max_chars"`
	SpeedMedium        float64 `yaml:"speed_medium" mapstructure:"speed_medium"`
	SpeedHigh          float64 `yaml:"speed_high" mapstructure:"speed_high"`
	ImageBytesLimit    int64   `yaml:"image_bytes_limit" mapstructure:"image_bytes_limit"`
	CheckerTimeoutSecs int     `yaml:"checker_timeout_secs" mapstructure:"checker_timeout_secs"`
	DiscoverKeywords   bool    `yaml:"discover_keywords" mapstructure:"discover_keywords"`
}

// ResilienceConfig configures retries and circuit breakers for external capabilities.
type ResilienceConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMS int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMS     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultUserAgent is the desktop Chrome identity presented to audited sites.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// A missing .env is the common case.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SITEAUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "site-audit.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("crawl.max_pages", 50)
	v.SetDefault("crawl.batch_size", 5)
	v.SetDefault("crawl.nav_timeout_secs", 60)
	v.SetDefault("crawl.settle_delay_ms", 3000)
	v.SetDefault("crawl.user_agent", DefaultUserAgent)
	v.SetDefault("crawl.viewport_width", 1280)
	v.SetDefault("crawl.viewport_height", 800)
	v.SetDefault("crawl.renderer", "chrome")
	v.SetDefault("crawl.headless", true)
	v.SetDefault("crawl.cache_ttl_hours", 24)
	v.SetDefault("crawl.priority_tokens", []string{"about", "contact", "service", "project", "portfolio", "team"})
	v.SetDefault("crawl.exclude_paths", []string{})
	v.SetDefault("crawl.screenshot_first", true)
	v.SetDefault("audit.title_min", 30)
	v.SetDefault("audit.title_max", 60)
	v.SetDefault("audit.thin_content_words", 300)
	v.SetDefault("audit.content_page_limit", 5)
	v.SetDefault("audit.content_max_chars", 10000)
	v.SetDefault("audit.speed_medium", 0.70)
	v.SetDefault("audit.speed_high", 0.40)
	v.SetDefault("audit.image_bytes_limit", 2000000)
	v.SetDefault("audit.checker_timeout_secs", 90)
	v.SetDefault("audit.discover_keywords", true)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("pagespeed.base_url", "https://www.googleapis.com/pagespeedonline/v5")
	v.SetDefault("pagespeed.strategy", "mobile")
	v.SetDefault("pagespeed.rate_per_sec", 1.0)
	v.SetDefault("resilience.max_attempts", 3)
	v.SetDefault("resilience.initial_backoff_ms", 500)
	v.SetDefault("resilience.max_backoff_ms", 8000)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.reset_timeout_secs", 60)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the keys required by a command mode are present.
// Modes: "audit", "serve", "store".
func (c *Config) Validate(mode string) error {
	var missing []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		missing = append(missing, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		missing = append(missing, "store.database_url is required")
	}

	switch mode {
	case "audit", "serve":
		if c.Crawl.BatchSize < 1 {
			missing = append(missing, "crawl.batch_size must be at least 1")
		}
		if c.Crawl.NavTimeoutSecs < 1 {
			missing = append(missing, "crawl.nav_timeout_secs must be at least 1")
		}
		switch c.Crawl.Renderer {
		case "chrome", "http":
		default:
			missing = append(missing, fmt.Sprintf("crawl.renderer %q is not supported", c.Crawl.Renderer))
		}
		if c.Audit.SpeedHigh > c.Audit.SpeedMedium {
			missing = append(missing, "audit.speed_high must not exceed audit.speed_medium")
		}
		if mode == "serve" && (c.Server.Port < 1 || c.Server.Port > 65535) {
			missing = append(missing, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
		}
	case "store":
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: %s", strings.Join(missing, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
