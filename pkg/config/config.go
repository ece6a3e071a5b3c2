package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	xutil "NewsVol/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		RateLimit       struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rate_limit"`
		CORS struct {
			Enabled      bool     `yaml:"enabled"`
			AllowOrigins []string `yaml:"allow_origins"`
			MaxAge       int      `yaml:"max_age"`
		} `yaml:"cors"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Logger struct {
		Level     string `yaml:"level"`
		Format    string `yaml:"format"`
		Output    string `yaml:"output"`
		FilePath  string `yaml:"file_path"`
		Collector struct {
			Enabled       bool          `yaml:"enabled"`
			FlushInterval time.Duration `yaml:"flush_interval"`
		} `yaml:"collector"`
	} `yaml:"logger"`
	Tracing struct {
		Enabled     bool   `yaml:"enabled"`
		ServiceName string `yaml:"service_name"`
		Output      string `yaml:"output"`
		FilePath    string `yaml:"file_path"`
	} `yaml:"tracing"`
	Analysis struct {
		NewsLimit       int           `yaml:"news_limit"`
		Horizon         int           `yaml:"horizon"`
		Lookback        string        `yaml:"lookback"`
		MinObservations int           `yaml:"min_observations"`
		MaxIterations   int           `yaml:"max_iterations"`
		Timeout         time.Duration `yaml:"timeout"`
		AllowPartial    bool          `yaml:"allow_partial"`
	} `yaml:"analysis"`
	News struct {
		Provider string `yaml:"provider"`
		Language string `yaml:"language"`
		NewsAPI  struct {
			BaseURL      string        `yaml:"base_url"`
			APIKey       string        `yaml:"api_key"`
			PageSize     int           `yaml:"page_size"`
			Timeout      time.Duration `yaml:"timeout"`
			RPS          float64       `yaml:"rps"`
			Burst        int           `yaml:"burst"`
			Retries      int           `yaml:"retries"`
			RetryBackoff time.Duration `yaml:"retry_backoff"`
		} `yaml:"newsapi"`
		RSS struct {
			FeedURLs []string      `yaml:"feed_urls"`
			Timeout  time.Duration `yaml:"timeout"`
		} `yaml:"rss"`
	} `yaml:"news"`
	Prices struct {
		Provider string `yaml:"provider"`
		Yahoo    struct {
			BaseURL      string        `yaml:"base_url"`
			UserAgent    string        `yaml:"user_agent"`
			Timeout      time.Duration `yaml:"timeout"`
			RPS          float64       `yaml:"rps"`
			Burst        int           `yaml:"burst"`
			Retries      int           `yaml:"retries"`
			RetryBackoff time.Duration `yaml:"retry_backoff"`
		} `yaml:"yahoo"`
	} `yaml:"prices"`
	Redis struct {
		Addr         string        `yaml:"addr"`
		Password     string        `yaml:"password"`
		DB           int           `yaml:"db"`
		PoolSize     int           `yaml:"pool_size"`
		MinIdleConns int           `yaml:"min_idle_conns"`
		PoolTimeout  time.Duration `yaml:"pool_timeout"`
		DialTimeout  time.Duration `yaml:"dial_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"redis"`
	Cache struct {
		Enabled    bool          `yaml:"enabled"`
		Type       string        `yaml:"type"`
		MaxEntries int           `yaml:"max_entries"`
		NewsTTL    time.Duration `yaml:"news_ttl"`
		PricesTTL  time.Duration `yaml:"prices_ttl"`
	} `yaml:"cache"`
	Kafka struct {
		Enabled       bool     `yaml:"enabled"`
		Brokers       []string `yaml:"brokers"`
		ResultsTopic  string   `yaml:"results_topic"`
		RequestsTopic string   `yaml:"requests_topic"`
		LogsTopic     string   `yaml:"logs_topic"`
		RequiredAcks  int      `yaml:"required_acks"`
		Compression   string   `yaml:"compression"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
		MaxOpenConns     int           `yaml:"max_open_conns"`
		MaxIdleConns     int           `yaml:"max_idle_conns"`
	} `yaml:"clickhouse"`
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Name       string        `yaml:"name"`
		Workers    int           `yaml:"workers"`
		MaxRetries int           `yaml:"max_retries"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"queue"`
	Scheduler struct {
		Enabled     bool     `yaml:"enabled"`
		Cron        string   `yaml:"cron"`
		Watchlist   []string `yaml:"watchlist"`
		Concurrency int      `yaml:"concurrency"`
	} `yaml:"scheduler"`
	Stream struct {
		Enabled      bool          `yaml:"enabled"`
		PingInterval time.Duration `yaml:"ping_interval"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		BufferSize   int           `yaml:"buffer_size"`
	} `yaml:"stream"`
}

var validLookbacks = []string{"1mo", "3mo", "6mo", "1y", "2y", "5y", "10y", "ytd", "max"}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	return load(path, false)
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	return load(path, true)
}

// Parse decodes YAML, fills defaults and validates.
func Parse(b []byte) (*Config, error) {
	return parse(b, false)
}

func load(path string, withEnv bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parse(b, withEnv)
}

func parse(b []byte, withEnv bool) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if withEnv {
		c.applyEnv()
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("NEWSAPI_KEY"); v != "" {
		c.News.NewsAPI.APIKey = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = xutil.SplitList(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("WATCHLIST"); v != "" {
		c.Scheduler.Watchlist = xutil.SplitList(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logger.Level = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = xutil.AtoiOr(v, c.Server.Port)
	}
}

func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "json"
	}
	if c.Logger.Output == "" {
		c.Logger.Output = "stdout"
	}
	if c.Logger.Collector.FlushInterval == 0 {
		c.Logger.Collector.FlushInterval = time.Minute
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "newsvol"
	}
	if c.Tracing.Output == "" {
		c.Tracing.Output = "stdout"
	}

	if c.Analysis.NewsLimit == 0 {
		c.Analysis.NewsLimit = 5
	}
	if c.Analysis.Horizon == 0 {
		c.Analysis.Horizon = 5
	}
	if c.Analysis.Lookback == "" {
		c.Analysis.Lookback = "6mo"
	}
	if c.Analysis.MinObservations == 0 {
		c.Analysis.MinObservations = 30
	}
	if c.Analysis.MaxIterations == 0 {
		c.Analysis.MaxIterations = 5000
	}
	if c.Analysis.Timeout == 0 {
		c.Analysis.Timeout = 20 * time.Second
	}

	if c.News.Provider == "" {
		c.News.Provider = "newsapi"
	}
	if c.News.Language == "" {
		c.News.Language = "en"
	}
	if c.News.NewsAPI.BaseURL == "" {
		c.News.NewsAPI.BaseURL = "https://newsapi.org"
	}
	if c.News.NewsAPI.PageSize == 0 {
		c.News.NewsAPI.PageSize = 20
	}
	if c.News.NewsAPI.Timeout == 0 {
		c.News.NewsAPI.Timeout = 10 * time.Second
	}
	if c.News.NewsAPI.RPS == 0 {
		c.News.NewsAPI.RPS = 1
	}
	if c.News.NewsAPI.Burst == 0 {
		c.News.NewsAPI.Burst = 5
	}
	if c.News.NewsAPI.RetryBackoff == 0 {
		c.News.NewsAPI.RetryBackoff = 500 * time.Millisecond
	}
	if c.News.RSS.Timeout == 0 {
		c.News.RSS.Timeout = 10 * time.Second
	}

	if c.Prices.Provider == "" {
		c.Prices.Provider = "yahoo"
	}
	if c.Prices.Yahoo.BaseURL == "" {
		c.Prices.Yahoo.BaseURL = "https://query1.finance.yahoo.com"
	}
	if c.Prices.Yahoo.UserAgent == "" {
		c.Prices.Yahoo.UserAgent = "Mozilla/5.0 (compatible; newsvol/1.0)"
	}
	if c.Prices.Yahoo.Timeout == 0 {
		c.Prices.Yahoo.Timeout = 10 * time.Second
	}
	if c.Prices.Yahoo.RPS == 0 {
		c.Prices.Yahoo.RPS = 2
	}
	if c.Prices.Yahoo.Burst == 0 {
		c.Prices.Yahoo.Burst = 4
	}
	if c.Prices.Yahoo.Retries == 0 {
		c.Prices.Yahoo.Retries = 2
	}
	if c.Prices.Yahoo.RetryBackoff == 0 {
		c.Prices.Yahoo.RetryBackoff = 300 * time.Millisecond
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Cache.Type == "" {
		c.Cache.Type = "memory"
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = 1000
	}
	if c.Cache.NewsTTL == 0 {
		c.Cache.NewsTTL = 10 * time.Minute
	}
	if c.Cache.PricesTTL == 0 {
		c.Cache.PricesTTL = time.Hour
	}

	if c.Kafka.ResultsTopic == "" {
		c.Kafka.ResultsTopic = "newsvol.analyses"
	}
	if c.Kafka.RequestsTopic == "" {
		c.Kafka.RequestsTopic = "newsvol.requests"
	}
	if c.Kafka.LogsTopic == "" {
		c.Kafka.LogsTopic = "newsvol.logs"
	}
	if c.Kafka.Consumer.GroupID == "" {
		c.Kafka.Consumer.GroupID = "newsvol"
	}
	if c.Kafka.Consumer.DLQTopic == "" {
		c.Kafka.Consumer.DLQTopic = "newsvol.requests.dlq"
	}

	if c.ClickHouse.Host == "" {
		c.ClickHouse.Host = "localhost"
	}
	if c.ClickHouse.Port == 0 {
		c.ClickHouse.Port = 9000
	}
	if c.ClickHouse.Database == "" {
		c.ClickHouse.Database = "newsvol"
	}

	if c.Queue.Name == "" {
		c.Queue.Name = "newsvol"
	}
	if c.Queue.Workers == 0 {
		c.Queue.Workers = 2
	}
	if c.Queue.MaxRetries == 0 {
		c.Queue.MaxRetries = 3
	}
	if c.Queue.RetryDelay == 0 {
		c.Queue.RetryDelay = 5 * time.Second
	}

	if c.Scheduler.Cron == "" {
		c.Scheduler.Cron = "0 30 21 * * 1-5"
	}
	if len(c.Scheduler.Watchlist) == 0 {
		c.Scheduler.Watchlist = []string{"AAPL"}
	}
	if c.Scheduler.Concurrency == 0 {
		c.Scheduler.Concurrency = 4
	}

	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = 30 * time.Second
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = 10 * time.Second
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = 16
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Analysis.NewsLimit < 1 {
		return fmt.Errorf("analysis.news_limit must be >= 1, got %d", c.Analysis.NewsLimit)
	}
	if c.Analysis.Horizon < 1 {
		return fmt.Errorf("analysis.horizon must be >= 1, got %d", c.Analysis.Horizon)
	}
	if !contains(validLookbacks, c.Analysis.Lookback) {
		return fmt.Errorf("analysis.lookback must be one of %v, got '%s'", validLookbacks, c.Analysis.Lookback)
	}
	if c.Analysis.MinObservations < 3 {
		return fmt.Errorf("analysis.min_observations must be >= 3, got %d", c.Analysis.MinObservations)
	}
	switch c.News.Provider {
	case "newsapi":
		if c.News.NewsAPI.APIKey == "" {
			return fmt.Errorf("news.newsapi.api_key is required (or set NEWSAPI_KEY)")
		}
	case "rss":
		if len(c.News.RSS.FeedURLs) == 0 {
			return fmt.Errorf("news.rss.feed_urls cannot be empty")
		}
	default:
		return fmt.Errorf("news.provider must be 'newsapi' or 'rss', got '%s'", c.News.Provider)
	}
	if c.Prices.Provider != "yahoo" {
		return fmt.Errorf("prices.provider must be 'yahoo', got '%s'", c.Prices.Provider)
	}
	if c.Cache.Enabled && !contains([]string{"memory", "redis", "layered"}, c.Cache.Type) {
		return fmt.Errorf("cache.type must be 'memory', 'redis' or 'layered', got '%s'", c.Cache.Type)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Scheduler.Enabled && len(c.Scheduler.Watchlist) == 0 {
		return fmt.Errorf("scheduler.watchlist cannot be empty")
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
