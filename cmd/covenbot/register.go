package main

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sglre6355/covenbot/internal/bot"
	"github.com/spf13/cobra"
)

var errForbidden = errors.New("forbidden: registration secret does not match")

func newRegisterCmd() *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Publish the slash command catalog without connecting to the gateway",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return runRegister(secret)
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "must match REGISTRATION_SECRET when it is set")
	return cmd
}

func runRegister(secret string) error {
	cfg, err := bot.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := checkSecret(cfg.RegistrationSecret, secret); err != nil {
		return err
	}

	b := bot.NewBot(cfg)
	b.LoadModules()

	if err := b.PublishCommands(); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}
	slog.Info("published commands", "guild_id", cfg.GuildID)
	return nil
}

// checkSecret accepts any secret when expected is empty.
func checkSecret(expected, given string) error {
	if expected == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(given)) != 1 {
		return errForbidden
	}
	return nil
}
