package discord

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/covenbot/internal/modules/relay/domain"
)

var (
	// ErrNotCommand is returned for interactions that are not application commands.
	ErrNotCommand = errors.New("interaction is not an application command")

	// ErrNoInvoker is returned for interactions without a user.
	ErrNoInvoker = errors.New("interaction has no invoking user")
)

// EventFromInteraction normalizes an application command interaction.
func EventFromInteraction(i *discordgo.Interaction) (domain.InboundEvent, error) {
	if i == nil || i.Type != discordgo.InteractionApplicationCommand {
		return domain.InboundEvent{}, ErrNotCommand
	}

	user := i.User
	if i.Member != nil && i.Member.User != nil {
		user = i.Member.User
	}
	if user == nil {
		return domain.InboundEvent{}, ErrNoInvoker
	}

	actor, err := newActor(user, i.GuildID)
	if err != nil {
		return domain.InboundEvent{}, err
	}
	actor.ChannelID = i.ChannelID

	data := i.ApplicationCommandData()
	params := make(map[string]string, len(data.Options))
	for _, opt := range data.Options {
		params[opt.Name] = optionValue(opt)
	}

	return domain.NewCommandInvocation(data.Name, actor, params), nil
}

// EventFromMemberAdd normalizes a guild member join.
func EventFromMemberAdd(m *discordgo.GuildMemberAdd) (domain.InboundEvent, error) {
	if m == nil || m.Member == nil || m.User == nil {
		return domain.InboundEvent{}, domain.ErrMissingIdentity
	}

	actor, err := newActor(m.User, m.GuildID)
	if err != nil {
		return domain.InboundEvent{}, err
	}
	return domain.NewMemberJoined(actor), nil
}

func newActor(user *discordgo.User, guildID string) (domain.Actor, error) {
	userID, err := snowflake.Parse(user.ID)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("invalid user ID %q: %w", user.ID, err)
	}

	actor := domain.Actor{
		UserID:   userID.String(),
		Username: user.Username,
	}
	if guildID != "" {
		id, err := snowflake.Parse(guildID)
		if err != nil {
			return domain.Actor{}, fmt.Errorf("invalid guild ID %q: %w", guildID, err)
		}
		actor.GuildID = id.String()
	}
	return actor, nil
}

func optionValue(opt *discordgo.ApplicationCommandInteractionDataOption) string {
	if opt.Type == discordgo.ApplicationCommandOptionString {
		return opt.StringValue()
	}
	return fmt.Sprint(opt.Value)
}
