package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ENV string

const (
	Dev        ENV = "development"
	Test       ENV = "test"
	Preview    ENV = "preview"
	Production ENV = "production"
)

// Site holds the per-deployment constants of the scraped shop.
type Site struct {
	BaseURL              string
	ListingURL           string
	Currency             string
	DefaultBrand         string
	DefaultPrice         string
	PriceFallbackEnabled bool
}

type Fetch struct {
	MaxRetries     int
	RetryBaseDelay time.Duration
	RequestTimeout time.Duration
	RequestDelay   time.Duration
	RequestJitter  time.Duration
	UserAgent      string
}

type Crawl struct {
	MaxListingPages int
	ProbeURLs       []string
	ManifestPath    string
}

type Feed struct {
	OutDir    string
	BatchSize int
}

type Image struct {
	CheckTimeout   time.Duration
	FallbackURLs   []string
	PlaceholderURL string
}

type Turso struct {
	DSN   string
	Path  string
	Token string
}

type RabbitMQ struct {
	URL             string
	Exchange        string
	Queue           string
	RoutingKey      string
	Prefetch        int
	DeclareTopology bool
}

type Inngest struct {
	AppID      string
	Dev        string
	SigningKey string
	ServeHost  string
	ServePath  string
}

type Config struct {
	AppName string
	ENV     ENV
	AppPort int

	LogLevel string

	Site  Site
	Fetch Fetch
	Crawl Crawl
	Feed  Feed
	Image Image

	// Postgres (optional; enabled only when DBHost + DBName are set).
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     int
	DBName     string

	// SQLite ledger: local file path or libsql:// DSN.
	Turso Turso

	// Redis (optional; enabled only when RedisHost is set).
	RedisUser     string
	RedisPassword string
	RedisHost     string
	RedisPort     int
	RedisScheme   string
	PageCacheTTL  time.Duration

	RabbitMQ RabbitMQ
	Inngest  Inngest
}

func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("APP_NAME", "catalog-feed-miner")
	v.SetDefault("APP_ENV", string(Dev))
	v.SetDefault("APP_PORT", 8080)
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("SITE_BASE_URL", "https://joyandco.com")
	v.SetDefault("SITE_LISTING_URL", "")
	v.SetDefault("SITE_CURRENCY", "AED")
	v.SetDefault("SITE_DEFAULT_BRAND", "Joy and Co")
	v.SetDefault("SITE_DEFAULT_PRICE", "0.00")
	v.SetDefault("SITE_PRICE_FALLBACK_ENABLED", true)

	v.SetDefault("FETCH_MAX_RETRIES", 3)
	v.SetDefault("FETCH_RETRY_BASE_DELAY_SECONDS", 2)
	v.SetDefault("FETCH_REQUEST_TIMEOUT_SECONDS", 30)
	v.SetDefault("FETCH_REQUEST_DELAY_MS", 1000)
	v.SetDefault("FETCH_REQUEST_JITTER_MS", 500)
	v.SetDefault("FETCH_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")

	v.SetDefault("CRAWL_MAX_LISTING_PAGES", 10)
	v.SetDefault("CRAWL_PROBE_URLS", "")
	v.SetDefault("MANIFEST_PATH", "")

	v.SetDefault("FEED_OUT_DIR", "feeds")
	v.SetDefault("FEED_BATCH_SIZE", 10)

	v.SetDefault("IMAGE_CHECK_TIMEOUT_SECONDS", 5)
	v.SetDefault("IMAGE_FALLBACK_URLS", "")
	v.SetDefault("IMAGE_PLACEHOLDER_URL", "https://via.placeholder.com/600x600.png?text=No+Image")

	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_SCHEME", "redis")
	v.SetDefault("CACHE_PAGE_TTL_MINUTES", 1440)

	v.SetDefault("RABBITMQ_EXCHANGE", "events")
	v.SetDefault("RABBITMQ_QUEUE", "feed.run.requested.v1")
	v.SetDefault("RABBITMQ_ROUTING_KEY", "feed.run.requested.v1")
	v.SetDefault("RABBITMQ_PREFETCH", 1)
	v.SetDefault("RABBITMQ_DECLARE_TOPOLOGY", true)

	v.SetDefault("INNGEST_SERVE_PATH", "/api/inngest")

	if path := strings.TrimSpace(v.GetString("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
	}

	return v
}

func NewConfig(v *viper.Viper) (*Config, error) {
	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	cfg := &Config{
		AppName: v.GetString("APP_NAME"),
		ENV:     ENV(strings.ToLower(strings.TrimSpace(v.GetString("APP_ENV")))),
		AppPort: v.GetInt("APP_PORT"),

		LogLevel: v.GetString("LOG_LEVEL"),

		Site: Site{
			BaseURL:              strings.TrimRight(strings.TrimSpace(v.GetString("SITE_BASE_URL")), "/"),
			ListingURL:           strings.TrimSpace(v.GetString("SITE_LISTING_URL")),
			Currency:             strings.TrimSpace(v.GetString("SITE_CURRENCY")),
			DefaultBrand:         strings.TrimSpace(v.GetString("SITE_DEFAULT_BRAND")),
			DefaultPrice:         strings.TrimSpace(v.GetString("SITE_DEFAULT_PRICE")),
			PriceFallbackEnabled: v.GetBool("SITE_PRICE_FALLBACK_ENABLED"),
		},
		Fetch: Fetch{
			MaxRetries:     v.GetInt("FETCH_MAX_RETRIES"),
			RetryBaseDelay: time.Duration(v.GetFloat64("FETCH_RETRY_BASE_DELAY_SECONDS") * float64(time.Second)),
			RequestTimeout: time.Duration(v.GetFloat64("FETCH_REQUEST_TIMEOUT_SECONDS") * float64(time.Second)),
			RequestDelay:   time.Duration(v.GetInt("FETCH_REQUEST_DELAY_MS")) * time.Millisecond,
			RequestJitter:  time.Duration(v.GetInt("FETCH_REQUEST_JITTER_MS")) * time.Millisecond,
			UserAgent:      strings.TrimSpace(v.GetString("FETCH_USER_AGENT")),
		},
		Crawl: Crawl{
			MaxListingPages: v.GetInt("CRAWL_MAX_LISTING_PAGES"),
			ProbeURLs:       splitList(v.GetString("CRAWL_PROBE_URLS")),
			ManifestPath:    strings.TrimSpace(v.GetString("MANIFEST_PATH")),
		},
		Feed: Feed{
			OutDir:    strings.TrimSpace(v.GetString("FEED_OUT_DIR")),
			BatchSize: v.GetInt("FEED_BATCH_SIZE"),
		},
		Image: Image{
			CheckTimeout:   time.Duration(v.GetFloat64("IMAGE_CHECK_TIMEOUT_SECONDS") * float64(time.Second)),
			FallbackURLs:   splitList(v.GetString("IMAGE_FALLBACK_URLS")),
			PlaceholderURL: strings.TrimSpace(v.GetString("IMAGE_PLACEHOLDER_URL")),
		},

		DBUser:     v.GetString("DB_USER"),
		DBPassword: v.GetString("DB_PASSWORD"),
		DBHost:     v.GetString("DB_HOST"),
		DBPort:     v.GetInt("DB_PORT"),
		DBName:     v.GetString("DB_NAME"),

		Turso: Turso{
			DSN:   v.GetString("TURSO_SQLITE_DSN"),
			Path:  v.GetString("TURSO_SQLITE_PATH"),
			Token: v.GetString("TURSO_SQLITE_TOKEN"),
		},

		RedisUser:     v.GetString("REDIS_USER"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisHost:     v.GetString("REDIS_HOST"),
		RedisPort:     v.GetInt("REDIS_PORT"),
		RedisScheme:   v.GetString("REDIS_SCHEME"),
		PageCacheTTL:  time.Duration(v.GetInt("CACHE_PAGE_TTL_MINUTES")) * time.Minute,

		RabbitMQ: RabbitMQ{
			URL:             v.GetString("RABBITMQ_URL"),
			Exchange:        v.GetString("RABBITMQ_EXCHANGE"),
			Queue:           v.GetString("RABBITMQ_QUEUE"),
			RoutingKey:      v.GetString("RABBITMQ_ROUTING_KEY"),
			Prefetch:        v.GetInt("RABBITMQ_PREFETCH"),
			DeclareTopology: v.GetBool("RABBITMQ_DECLARE_TOPOLOGY"),
		},
		Inngest: Inngest{
			AppID:      v.GetString("INNGEST_APP_ID"),
			Dev:        v.GetString("INNGEST_DEV"),
			SigningKey: v.GetString("INNGEST_SIGNING_KEY"),
			ServeHost:  v.GetString("INNGEST_SERVE_HOST"),
			ServePath:  v.GetString("INNGEST_SERVE_PATH"),
		},
	}

	if cfg.Site.ListingURL == "" {
		cfg.Site.ListingURL = cfg.Site.BaseURL + "/product/"
	}
	if cfg.Feed.BatchSize <= 0 {
		cfg.Feed.BatchSize = 10
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.AppPort <= 0 || c.AppPort > 65535 {
		return fmt.Errorf("invalid APP_PORT %d", c.AppPort)
	}
	if c.DBPort <= 0 || c.DBPort > 65535 {
		return fmt.Errorf("invalid DB_PORT %d", c.DBPort)
	}
	if c.RedisPort <= 0 || c.RedisPort > 65535 {
		return fmt.Errorf("invalid REDIS_PORT %d", c.RedisPort)
	}

	u, err := url.Parse(c.Site.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid SITE_BASE_URL %q", c.Site.BaseURL)
	}
	if c.Site.Currency == "" {
		return fmt.Errorf("missing SITE_CURRENCY")
	}
	if c.Site.PriceFallbackEnabled && c.Site.DefaultPrice == "" {
		return fmt.Errorf("SITE_DEFAULT_PRICE must be set when SITE_PRICE_FALLBACK_ENABLED=true")
	}
	if c.Fetch.MaxRetries < 1 {
		return fmt.Errorf("invalid FETCH_MAX_RETRIES %d (must be >= 1)", c.Fetch.MaxRetries)
	}
	if c.Fetch.RequestTimeout <= 0 {
		return fmt.Errorf("invalid FETCH_REQUEST_TIMEOUT_SECONDS")
	}
	if c.Feed.OutDir == "" {
		return fmt.Errorf("missing FEED_OUT_DIR")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
