package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrMissingAccount     = errors.New("account.id or account.username is required")
	ErrMissingHandle      = errors.New("account.handle is required")
	ErrMissingToken       = errors.New("credentials.bearerToken (or X_BEARER_TOKEN) is required")
	ErrInvalidMaxResults  = errors.New("fetch.maxResults must be between 1 and 100")
	ErrMissingOutputURI   = errors.New("output.uri is required")
	ErrInvalidRetries     = errors.New("retry.retries must be non-negative")
	ErrInvalidRetryDelay  = errors.New("retry.delay must be non-negative")
	ErrMissingNotifyQueue = errors.New("notify.queue is required when notify.amqpURL is set")
)

// Config is the application's configuration model.
type Config struct {
	Account     AccountConfig     `yaml:"account"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Fetch       FetchConfig       `yaml:"fetch"`
	Output      OutputConfig      `yaml:"output"`
	Retry       RetryConfig       `yaml:"retry"`
	Storage     StorageConfig     `yaml:"storage"`
	Notify      NotifyConfig      `yaml:"notify"`
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type AccountConfig struct {
	// Numeric X user id. Preferred over Username since it saves a lookup.
	ID       string `yaml:"id"`
	Username string `yaml:"username"`
	// Value written to the user column of every record.
	Handle string `yaml:"handle"`
}

type CredentialsConfig struct {
	// X API bearer token. If empty, read from env X_BEARER_TOKEN
	BearerToken string `yaml:"bearerToken"`
}

type FetchConfig struct {
	BaseURL     string        `yaml:"baseURL"`
	MaxResults  int           `yaml:"maxResults"`
	TweetFields []string      `yaml:"tweetFields"`
	Exclude     []string      `yaml:"exclude"`
	Timeout     time.Duration `yaml:"timeout"`
}

type OutputConfig struct {
	// s3://, gs://, file:// or mem:// destination. Env XETL_OUTPUT_URI wins.
	URI                string `yaml:"uri"`
	S3Region           string `yaml:"s3Region"`
	S3Endpoint         string `yaml:"s3Endpoint"`
	GCSEndpoint        string `yaml:"gcsEndpoint"`
	GCSCredentialsFile string `yaml:"gcsCredentialsFile"`
}

type RetryConfig struct {
	Retries int           `yaml:"retries"`
	Delay   time.Duration `yaml:"delay"`
}

type StorageConfig struct {
	// SQLite attempt ledger. Empty disables it.
	DBPath string `yaml:"dbPath"`
}

type NotifyConfig struct {
	// If empty, read from env XETL_AMQP_URL; still empty disables notifications.
	AMQPURL string `yaml:"amqpURL"`
	Queue   string `yaml:"queue"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// Minimum spacing between manual triggers accepted by the API.
	TriggerInterval time.Duration `yaml:"triggerInterval"`
	MetricsAddr     string        `yaml:"metricsAddr"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration of the original export job.
func Default() Config {
	return Config{
		Account: AccountConfig{ID: "44196397", Handle: "elonmusk"},
		Fetch: FetchConfig{
			MaxResults:  10,
			TweetFields: []string{"created_at", "public_metrics", "text"},
			Exclude:     []string{"retweets", "replies"},
			Timeout:     15 * time.Second,
		},
		Output:  OutputConfig{URI: "s3://airflow-s3-x-bucket/elon_musk_tweets.csv"},
		Retry:   RetryConfig{Retries: 4, Delay: 16 * time.Minute},
		Storage: StorageConfig{DBPath: "./xetl.db"},
		Notify:  NotifyConfig{Queue: "xetl.exports"},
		Server:  ServerConfig{Addr: ":8080", TriggerInterval: time.Minute},
		Logging: LoggingConfig{Level: "info"},
	}
}

// ResolveEnv fills in config fields from environment variables.
func (c *Config) ResolveEnv() {
	if c.Credentials.BearerToken == "" {
		c.Credentials.BearerToken = os.Getenv("X_BEARER_TOKEN")
	}
	if v := os.Getenv("XETL_OUTPUT_URI"); v != "" {
		c.Output.URI = v
	}
	if c.Notify.AMQPURL == "" {
		c.Notify.AMQPURL = os.Getenv("XETL_AMQP_URL")
	}
}

// Validate checks the fields every command relies on. The bearer token is
// checked separately by commands that call the API.
func (c *Config) Validate() error {
	if c.Account.ID == "" && c.Account.Username == "" {
		return ErrMissingAccount
	}
	if c.Account.Handle == "" {
		return ErrMissingHandle
	}
	if c.Fetch.MaxResults < 1 || c.Fetch.MaxResults > 100 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxResults, c.Fetch.MaxResults)
	}
	if c.Output.URI == "" {
		return ErrMissingOutputURI
	}
	if c.Retry.Retries < 0 {
		return ErrInvalidRetries
	}
	if c.Retry.Delay < 0 {
		return ErrInvalidRetryDelay
	}
	if c.Notify.AMQPURL != "" && c.Notify.Queue == "" {
		return ErrMissingNotifyQueue
	}
	return nil
}

// RequireToken reports ErrMissingToken when no credential is configured.
func (c *Config) RequireToken() error {
	if c.Credentials.BearerToken == "" {
		return ErrMissingToken
	}
	return nil
}

// Load reads YAML config from path on top of Default, applies the
// environment and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse YAML: %w", err)
	}
	cfg.ResolveEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
