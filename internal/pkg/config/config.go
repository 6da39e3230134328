package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// ErrMissingAPIKey is returned when the classifier credential is absent.
var ErrMissingAPIKey = errors.New("CLASSIFIER_API_KEY environment variable is required")

// Event transports understood by the analyzer.
const (
	TransportHTTP  = "http"
	TransportRedis = "redis"
	TransportNone  = "none"
)

// Publish endpoint authentication modes.
const (
	AuthNone     = "none"
	AuthStatic   = "static"
	AuthPostgres = "postgres"
)

// Common holds settings shared by every binary.
type Common struct {
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string `env:"LOG_FORMAT" envDefault:"json"`
	ScrapedPostsDir string `env:"SCRAPED_POSTS_DIR" envDefault:"./scraped_posts"`
	AnalyzedDataDir string `env:"ANALYZED_DATA_DIR" envDefault:"./analyzed_data"`
	RedisURL        string `env:"REDIS_URL"`
	EventsChannel   string `env:"EVENTS_CHANNEL" envDefault:"safewatch:notifications"`
	PostgresURL     string `env:"POSTGRES_URL"`
}

// Analyzer configures the batch/watch/single CLI.
type Analyzer struct {
	Common

	APIKey            string        `env:"CLASSIFIER_API_KEY"`
	ClassifierBaseURL string        `env:"CLASSIFIER_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta/openai"`
	ClassifierModel   string        `env:"CLASSIFIER_MODEL" envDefault:"gemini-2.0-flash-exp"`
	ClassifierTimeout time.Duration `env:"CLASSIFIER_TIMEOUT" envDefault:"60s"`
	BatchItemDelay    time.Duration `env:"BATCH_ITEM_DELAY" envDefault:"1s"`
	WatchSettleDelay  time.Duration `env:"WATCH_SETTLE_DELAY" envDefault:"2s"`
	EventsTransport   string        `env:"EVENTS_TRANSPORT" envDefault:"http"`
	NotifyURL         string        `env:"NOTIFY_URL" envDefault:"http://localhost:3001"`
	NotifyAPIKey      string        `env:"NOTIFY_API_KEY"`
	NotifyTimeout     time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"5s"`
	MetricsAddr       string        `env:"METRICS_ADDR"`
}

// Server configures the dashboard API and notification server.
type Server struct {
	Common

	ServerAddr       string        `env:"SERVER_ADDR" envDefault:":3001"`
	AdminAddr        string        `env:"ADMIN_ADDR" envDefault:":9091"`
	CORSOrigins      []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	NotifyAPIKey     string        `env:"NOTIFY_API_KEY"`
	NotifyAuth       string        `env:"NOTIFY_AUTH"`
	APIKeyCacheTTL   time.Duration `env:"API_KEY_CACHE_TTL" envDefault:"5m"`
	MaxNotifySize    int64         `env:"MAX_NOTIFY_SIZE_BYTES" envDefault:"65536"`
	RedactFields     []string      `env:"NOTIFY_REDACT_FIELDS" envSeparator:"," envDefault:"apiKey,api_key,token,password,secret"`
	SubscriberBuffer int           `env:"SUBSCRIBER_BUFFER" envDefault:"64"`
	TailSettleDelay  time.Duration `env:"TAIL_SETTLE_DELAY" envDefault:"500ms"`
}

// LoadAnalyzer reads analyzer configuration from the environment.
// A missing classifier API key is reported immediately.
func LoadAnalyzer() (*Analyzer, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Analyzer{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants env tags cannot express.
func (c *Analyzer) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingAPIKey
	}
	switch c.EventsTransport {
	case TransportHTTP, TransportNone:
	case TransportRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required when EVENTS_TRANSPORT=redis")
		}
	default:
		return fmt.Errorf("unknown EVENTS_TRANSPORT %q", c.EventsTransport)
	}
	if c.BatchItemDelay < 0 || c.WatchSettleDelay < 0 {
		return errors.New("delays must not be negative")
	}
	return nil
}

// LoadServer reads server configuration from the environment.
func LoadServer() (*Server, error) {
	_ = godotenv.Load()

	cfg := &Server{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if cfg.SubscriberBuffer <= 0 {
		return nil, errors.New("SUBSCRIBER_BUFFER must be positive")
	}
	if cfg.NotifyAuth == "" {
		cfg.NotifyAuth = AuthNone
		if cfg.NotifyAPIKey != "" {
			cfg.NotifyAuth = AuthStatic
		}
	}
	switch cfg.NotifyAuth {
	case AuthNone, AuthStatic:
	case AuthPostgres:
		if cfg.PostgresURL == "" {
			return nil, errors.New("POSTGRES_URL is required when NOTIFY_AUTH=postgres")
		}
	default:
		return nil, fmt.Errorf("unknown NOTIFY_AUTH %q", cfg.NotifyAuth)
	}
	return cfg, nil
}
