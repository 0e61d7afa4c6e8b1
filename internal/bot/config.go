package bot

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/disgoorg/snowflake/v2"
)

// Config holds the bot configuration loaded from environment variables.
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,notEmpty"`

	// ClientID is the application ID used for command registration.
	// Defaults to the logged-in user's ID.
	ClientID string `env:"CLIENT_ID"`

	// GuildID scopes command registration to one guild. Empty registers globally.
	GuildID string `env:"GUILD_ID"`

	Port int `env:"PORT" envDefault:"3000"`

	// RegistrationSecret guards the register command when set.
	RegistrationSecret string `env:"REGISTRATION_SECRET"`
}

// LoadConfig loads configuration from environment variables.
// Returns an error if required fields are missing.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.ClientID != "" {
		if _, err := snowflake.Parse(c.ClientID); err != nil {
			return fmt.Errorf("invalid CLIENT_ID: %w", err)
		}
	}
	if c.GuildID != "" {
		if _, err := snowflake.Parse(c.GuildID); err != nil {
			return fmt.Errorf("invalid GUILD_ID: %w", err)
		}
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	return nil
}
