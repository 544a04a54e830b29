package config

import (
	"os"
	"strconv"
)

// Config holds settings shared by every command. Per-run inputs (input file,
// output directory, date range) come from command-line flags instead.
type Config struct {
	Port         int
	LogLevel     string
	DatabaseURL  string
	NatsURL      string
	NatsToken    string
	SlackToken   string
	SlackChannel string
	APIToken     string
}

func Load() Config {
	return Config{
		Port:         envInt("CHATDIGEST_PORT", 8760),
		LogLevel:     envStr("LOG_LEVEL", "info"),
		DatabaseURL:  envStr("DATABASE_URL", ""),
		NatsURL:      envStr("NATS_URL", ""),
		NatsToken:    envStr("NATS_TOKEN", ""),
		SlackToken:   envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel: envStr("SLACK_DIGEST_CHANNEL", ""),
		APIToken:     envStr("CHATDIGEST_API_TOKEN", ""),
	}
}

// SlackEnabled reports whether both Slack settings are present.
func (c Config) SlackEnabled() bool {
	return c.SlackToken != "" && c.SlackChannel != ""
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
