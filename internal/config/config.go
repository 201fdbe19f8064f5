// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// State backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	TelegramChatID   int64
	DatabasePath     string
	LogLevel         string
	AllowedUsers     []int64

	PollInterval  time.Duration
	FetchTimeout  time.Duration
	NotifyTimeout time.Duration
	FetchWorkers  int

	StateBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AMQPURL   string
	AMQPQueue string

	Twilio TwilioConfig

	StatusAddr string

	Providers []ProviderConfig
}

// TwilioConfig holds the credentials of the voice call notifier.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	To         string
	TwimlURL   string
}

// Enabled reports whether every field needed to place a call is set.
func (t TwilioConfig) Enabled() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.From != "" && t.To != ""
}

// ProviderConfig describes one listing provider endpoint. URL contains a
// {region} placeholder; Regions maps watch locations to provider region IDs.
type ProviderConfig struct {
	Name    string
	URL     string
	Regions map[string]string
}

var providerEnv = []struct {
	name string
	key  string
}{
	{name: "bookmyshow", key: "BOOKMYSHOW_URL"},
	{name: "district", key: "DISTRICT_URL"},
	{name: "rss", key: "RSS_URL"},
}

// LoadEnvFile reads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabasePath:     envOrDefault("DATABASE_PATH", "./data/ticketwatch.db"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		StateBackend:     strings.ToLower(envOrDefault("STATE_BACKEND", BackendSQLite)),
		RedisAddr:        envOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		AMQPURL:          os.Getenv("AMQP_URL"),
		AMQPQueue:        envOrDefault("AMQP_QUEUE", "tickets.alerts"),
		StatusAddr:       os.Getenv("STATUS_ADDR"),
		Twilio: TwilioConfig{
			AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
			From:       os.Getenv("TWILIO_FROM"),
			To:         os.Getenv("TO_PHONE"),
			TwimlURL:   envOrDefault("TWILIO_TWIML_URL", "http://demo.twilio.com/docs/voice.xml"),
		},
	}

	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", raw, err)
		}
		cfg.TelegramChatID = id
	}

	var err error
	if cfg.AllowedUsers, err = parseIDList("ALLOWED_USERS"); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = durationEnv("POLL_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = durationEnv("FETCH_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.NotifyTimeout, err = durationEnv("NOTIFY_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.FetchWorkers, err = intEnv("FETCH_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.FetchWorkers < 1 {
		return nil, fmt.Errorf("FETCH_WORKERS must be at least 1")
	}
	if cfg.RedisDB, err = intEnv("REDIS_DB", 0); err != nil {
		return nil, err
	}

	switch cfg.StateBackend {
	case BackendSQLite, BackendRedis:
	default:
		return nil, fmt.Errorf("invalid STATE_BACKEND %q, use: sqlite, redis", cfg.StateBackend)
	}

	regions, err := parseRegions(os.Getenv("PROVIDER_REGIONS"))
	if err != nil {
		return nil, err
	}
	for _, p := range providerEnv {
		url := os.Getenv(p.key)
		if url == "" {
			continue
		}
		cfg.Providers = append(cfg.Providers, ProviderConfig{
			Name:    p.name,
			URL:     url,
			Regions: regions[p.name],
		})
	}

	return cfg, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// parseRegions reads "provider:location=region,..." entries separated by
// semicolons, e.g. "bookmyshow:bangalore=BANG,chennai=CHEN;district:bangalore=4".
func parseRegions(raw string) (map[string]map[string]string, error) {
	out := make(map[string]map[string]string)
	for _, block := range strings.Split(raw, ";") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		provider, pairs, ok := strings.Cut(block, ":")
		if !ok {
			return nil, fmt.Errorf("invalid PROVIDER_REGIONS entry %q: missing provider", block)
		}
		provider = strings.ToLower(strings.TrimSpace(provider))
		m := out[provider]
		if m == nil {
			m = make(map[string]string)
			out[provider] = m
		}
		for _, pair := range strings.Split(pairs, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			loc, region, ok := strings.Cut(pair, "=")
			loc = strings.ToLower(strings.TrimSpace(loc))
			region = strings.TrimSpace(region)
			if !ok || loc == "" || region == "" {
				return nil, fmt.Errorf("invalid PROVIDER_REGIONS pair %q for %s", pair, provider)
			}
			m[loc] = region
		}
	}
	return out, nil
}

func parseIDList(key string) ([]int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q in %s: %w", s, key, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive duration", key, raw)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
