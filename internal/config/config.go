// Package config loads quizchain settings from an optional YAML file and
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/quizchain/pagefetch"
	"github.com/hazyhaar/quizchain/shield"
)

// Config is the top-level quizchain configuration.
type Config struct {
	Identity  IdentityConfig                    `yaml:"identity"`
	Server    ServerConfig                      `yaml:"server"`
	Chain     ChainConfig                       `yaml:"chain"`
	Fetch     FetchConfig                       `yaml:"fetch"`
	RateLimit map[string]shield.RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig                         `yaml:"log"`
}

// IdentityConfig holds the participant credentials sent with every answer
// and checked on /solve.
type IdentityConfig struct {
	Email  string `yaml:"email"`
	Secret string `yaml:"secret"`
	// SecretBcrypt, when set, authenticates /solve callers instead of Secret.
	SecretBcrypt string `yaml:"secret_bcrypt"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ChainConfig controls the solving loop.
type ChainConfig struct {
	Budget time.Duration `yaml:"budget"`
	// MaxRetries is the number of resubmissions after a wrong answer.
	// Negative disables retries.
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// FetchConfig controls page and file acquisition.
type FetchConfig struct {
	Mode             string        `yaml:"mode"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	PageTimeout      time.Duration `yaml:"page_timeout"`
	SettleDelay      time.Duration `yaml:"settle_delay"`
	MaxFileSize      int64         `yaml:"max_file_size"`
	ChromeRemoteURL  string        `yaml:"chrome_remote_url"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	AllowPrivateURLs bool          `yaml:"allow_private_urls"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// ErrNoIdentity is returned by RequireIdentity when credentials are missing.
var ErrNoIdentity = errors.New("config: email and secret are required")

// Load reads path (when non-empty), applies environment overrides read
// through getenv (os.Getenv when nil) and fills defaults.
func Load(path string, getenv func(string) string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if _, err := pagefetch.ParseMode(cfg.Fetch.Mode); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("EMAIL", &c.Identity.Email)
	str("SECRET", &c.Identity.Secret)
	str("SECRET_BCRYPT", &c.Identity.SecretBcrypt)
	str("HOST", &c.Server.Host)
	str("FETCH_MODE", &c.Fetch.Mode)
	str("CHROME_REMOTE_URL", &c.Fetch.ChromeRemoteURL)
	str("LOG_LEVEL", &c.Log.Level)

	var errs []error
	num := func(key string, set func(float64)) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
			return
		}
		set(f)
	}
	dur := func(key string, unit time.Duration, dst *time.Duration) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
			return
		}
		num(key, func(f float64) { *dst = time.Duration(f * float64(unit)) })
	}

	num("PORT", func(f float64) { c.Server.Port = int(f) })
	num("MAX_RETRIES", func(f float64) { c.Chain.MaxRetries = int(f) })
	num("MAX_FILE_SIZE", func(f float64) { c.Fetch.MaxFileSize = int64(f) })
	dur("QUIZ_TIMEOUT", time.Second, &c.Chain.Budget)
	dur("REQUEST_TIMEOUT", time.Second, &c.Fetch.RequestTimeout)
	dur("PAGE_TIMEOUT_MS", time.Millisecond, &c.Fetch.PageTimeout)
	dur("RETRY_DELAY", time.Second, &c.Chain.RetryDelay)

	if v := strings.TrimSpace(getenv("ALLOW_PRIVATE_URLS")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: ALLOW_PRIVATE_URLS: %w", err))
		}
		c.Fetch.AllowPrivateURLs = b
	}
	return errors.Join(errs...)
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port <= 0 {
		c.Server.Port = 8000
	}
	if c.Chain.Budget <= 0 {
		c.Chain.Budget = 180 * time.Second
	}
	if c.Chain.MaxRetries == 0 {
		c.Chain.MaxRetries = 3
	}
	if c.Chain.RetryDelay <= 0 {
		c.Chain.RetryDelay = time.Second
	}
	if c.Fetch.Mode == "" {
		c.Fetch.Mode = string(pagefetch.ModeAuto)
	}
	if c.Fetch.RequestTimeout <= 0 {
		c.Fetch.RequestTimeout = 60 * time.Second
	}
	if c.Fetch.PageTimeout <= 0 {
		c.Fetch.PageTimeout = 60 * time.Second
	}
	if c.Fetch.MaxFileSize <= 0 {
		c.Fetch.MaxFileSize = 10 << 20
	}
	if c.RateLimit == nil {
		c.RateLimit = map[string]shield.RateLimitConfig{
			"POST /solve": {MaxRequests: 10, WindowSeconds: 60, Enabled: true},
		}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// RequireIdentity reports ErrNoIdentity unless an email and a plain secret
// are configured. The plain secret is what quiz servers receive.
func (c *Config) RequireIdentity() error {
	if c.Identity.Email == "" || c.Identity.Secret == "" {
		return ErrNoIdentity
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// SlogLevel maps Log.Level to a slog level; unknown names mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FetchMode returns the parsed fetch mode. Load has already validated it.
func (c *Config) FetchMode() pagefetch.Mode {
	m, _ := pagefetch.ParseMode(c.Fetch.Mode)
	return m
}
