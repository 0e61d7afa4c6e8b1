package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/sglre6355/covenbot/internal/modules/relay/domain"
)

// Commands returns the slash commands for the given descriptors.
func Commands(descriptors []domain.CommandDescriptor) []*discordgo.ApplicationCommand {
	commands := make([]*discordgo.ApplicationCommand, 0, len(descriptors))
	for _, d := range descriptors {
		cmd := &discordgo.ApplicationCommand{
			Name:        d.Name,
			Description: d.Description,
		}
		for _, opt := range d.Options {
			cmd.Options = append(cmd.Options, &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        opt.Name,
				Description: opt.Description,
				Required:    opt.Required,
			})
		}
		commands = append(commands, cmd)
	}
	return commands
}
