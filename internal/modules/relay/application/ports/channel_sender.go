package ports

import (
	"context"

	"github.com/sglre6355/covenbot/internal/modules/relay/domain"
)

// ChannelSender posts a reply to a chat channel.
type ChannelSender interface {
	SendToChannel(ctx context.Context, channelID string, reply domain.ReplyPayload) error
}
