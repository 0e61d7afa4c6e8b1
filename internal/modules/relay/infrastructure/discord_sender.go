package infrastructure

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/covenbot/internal/modules/relay/application/ports"
	"github.com/sglre6355/covenbot/internal/modules/relay/domain"
)

// MessageSender is the subset of *discordgo.Session used to post messages.
type MessageSender interface {
	ChannelMessageSendComplex(
		channelID string,
		data *discordgo.MessageSend,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)
}

var (
	_ MessageSender       = (*discordgo.Session)(nil)
	_ ports.ChannelSender = (*DiscordChannelSender)(nil)
)

// ErrNoSession is returned when the sender has no Discord session.
var ErrNoSession = errors.New("no Discord session")

// DiscordChannelSender posts replies to Discord text channels.
type DiscordChannelSender struct {
	session MessageSender
}

// NewDiscordChannelSender creates a new DiscordChannelSender. With a nil
// session every send fails with ErrNoSession.
func NewDiscordChannelSender(session MessageSender) *DiscordChannelSender {
	return &DiscordChannelSender{session: session}
}

// SendToChannel validates and posts reply to the channel.
func (s *DiscordChannelSender) SendToChannel(
	ctx context.Context,
	channelID string,
	reply domain.ReplyPayload,
) error {
	if s.session == nil {
		return ErrNoSession
	}
	id, err := snowflake.Parse(channelID)
	if err != nil {
		return fmt.Errorf("invalid channel ID %q: %w", channelID, err)
	}
	if err := reply.Validate(); err != nil {
		return fmt.Errorf("refusing to send invalid reply: %w", err)
	}

	if _, err := s.session.ChannelMessageSendComplex(
		id.String(),
		RenderMessage(reply),
		discordgo.WithContext(ctx),
	); err != nil {
		return fmt.Errorf("failed to send message to channel %s: %w", id, err)
	}
	return nil
}
