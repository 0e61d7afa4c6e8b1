package relay

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/disgoorg/snowflake/v2"
)

// Config holds the relay module configuration.
type Config struct {
	GuildID          string `env:"GUILD_ID"`
	ClientID         string `env:"CLIENT_ID"`
	AltarChannelID   string `env:"ALTAR_CHANNEL_ID"`
	WelcomeChannelID string `env:"WELCOME_CHANNEL_ID"`

	InviteURL string `env:"DISCORD_INVITE" envDefault:"https://discord.gg/7zUDTZmm"`
	FairyURL  string `env:"FAIRY_URL"      envDefault:"https://your-site.example/entry"`
	AltarURL  string `env:"ALTAR_URL"      envDefault:"https://your-site.example/altar"`

	// WebhookURL is the relay destination. Empty disables relaying.
	WebhookURL string `env:"WEBHOOK_URL"`

	// PublicKey is the hex encoded application key used to verify signed
	// interactions. Empty disables the interactions endpoint.
	PublicKey string `env:"DISCORD_PUBLIC_KEY"`

	RelayTimeout time.Duration `env:"RELAY_TIMEOUT" envDefault:"5s"`
	RelayRPS     float64       `env:"RELAY_RPS"     envDefault:"5"`
	RelayBurst   int           `env:"RELAY_BURST"   envDefault:"10"`

	EventWorkers    int `env:"EVENT_WORKERS"     envDefault:"4"`
	EventBufferSize int `env:"EVENT_BUFFER_SIZE" envDefault:"100"`

	// DedupPath enables the persistent welcome tracker.
	DedupPath string `env:"DEDUP_PATH"`

	// CommandsFile replaces the embedded command table.
	CommandsFile string `env:"COMMANDS_FILE"`

	publicKey ed25519.PublicKey
}

// ParseConfig loads and validates the configuration from environment variables.
func ParseConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// InteractionKey returns the decoded interaction verification key, or nil.
func (c *Config) InteractionKey() ed25519.PublicKey {
	return c.publicKey
}

func (c *Config) validate() error {
	ids := []struct {
		name  string
		value string
	}{
		{"GUILD_ID", c.GuildID},
		{"CLIENT_ID", c.ClientID},
		{"ALTAR_CHANNEL_ID", c.AltarChannelID},
		{"WELCOME_CHANNEL_ID", c.WelcomeChannelID},
	}
	for _, id := range ids {
		if id.value == "" {
			continue
		}
		if _, err := snowflake.Parse(id.value); err != nil {
			return fmt.Errorf("invalid %s: %w", id.name, err)
		}
	}

	if c.WebhookURL != "" {
		if err := validateHTTPURL(c.WebhookURL); err != nil {
			return fmt.Errorf("invalid WEBHOOK_URL: %w", err)
		}
	}

	if c.PublicKey != "" {
		key, err := hex.DecodeString(c.PublicKey)
		if err != nil {
			return fmt.Errorf("invalid DISCORD_PUBLIC_KEY: %w", err)
		}
		if len(key) != ed25519.PublicKeySize {
			return fmt.Errorf("invalid DISCORD_PUBLIC_KEY: got %d bytes, want %d",
				len(key), ed25519.PublicKeySize)
		}
		c.publicKey = ed25519.PublicKey(key)
	}

	if c.RelayTimeout <= 0 {
		return errors.New("RELAY_TIMEOUT must be positive")
	}
	if c.EventWorkers <= 0 {
		return errors.New("EVENT_WORKERS must be positive")
	}
	if c.EventBufferSize <= 0 {
		return errors.New("EVENT_BUFFER_SIZE must be positive")
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
