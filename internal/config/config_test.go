package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xetl.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaultsAndOverrides(t *testing.T) {
	t.Setenv("X_BEARER_TOKEN", "from-env")
	t.Setenv("XETL_OUTPUT_URI", "")
	t.Setenv("XETL_AMQP_URL", "")
	path := writeConfig(t, `
account:
  handle: elonmusk
retry:
  retries: 2
  delay: 30s
output:
  uri: gs://bucket/posts.csv
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Account.ID != "44196397" {
		t.Errorf("default account id lost: %q", cfg.Account.ID)
	}
	if cfg.Credentials.BearerToken != "from-env" {
		t.Errorf("token not resolved from env: %q", cfg.Credentials.BearerToken)
	}
	if cfg.Retry.Retries != 2 || cfg.Retry.Delay != 30*time.Second {
		t.Errorf("retry not parsed: %+v", cfg.Retry)
	}
	if cfg.Output.URI != "gs://bucket/posts.csv" {
		t.Errorf("output uri: %q", cfg.Output.URI)
	}
	if cfg.Fetch.MaxResults != 10 || len(cfg.Fetch.Exclude) != 2 {
		t.Errorf("fetch defaults lost: %+v", cfg.Fetch)
	}
}

func TestLoadOutputURIFromEnv(t *testing.T) {
	t.Setenv("XETL_OUTPUT_URI", "file:///tmp/posts.csv")
	cfg, err := Load(writeConfig(t, "logging:\n  level: debug\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Output.URI != "file:///tmp/posts.csv" {
		t.Fatalf("env override ignored: %q", cfg.Output.URI)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"no account", func(c *Config) { c.Account.ID = ""; c.Account.Username = "" }, ErrMissingAccount},
		{"no handle", func(c *Config) { c.Account.Handle = "" }, ErrMissingHandle},
		{"max results", func(c *Config) { c.Fetch.MaxResults = 0 }, ErrInvalidMaxResults},
		{"max results high", func(c *Config) { c.Fetch.MaxResults = 101 }, ErrInvalidMaxResults},
		{"no output", func(c *Config) { c.Output.URI = "" }, ErrMissingOutputURI},
		{"retries", func(c *Config) { c.Retry.Retries = -1 }, ErrInvalidRetries},
		{"delay", func(c *Config) { c.Retry.Delay = -time.Second }, ErrInvalidRetryDelay},
		{"queue", func(c *Config) { c.Notify.AMQPURL = "amqp://x"; c.Notify.Queue = "" }, ErrMissingNotifyQueue},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v want %v", tc.name, err, tc.want)
		}
	}
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if err := cfg.RequireToken(); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("X_BEARER_TOKEN", "")
	t.Setenv("XETL_OUTPUT_URI", "")
	t.Setenv("XETL_AMQP_URL", "")
	path := filepath.Join(t.TempDir(), "nested", "xetl.yaml")
	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Retry.Delay != 16*time.Minute || cfg.Retry.Retries != 4 {
		t.Fatalf("retry policy not preserved: %+v", cfg.Retry)
	}
	if cfg.Output.URI != Default().Output.URI {
		t.Fatalf("output uri not preserved: %q", cfg.Output.URI)
	}
}
