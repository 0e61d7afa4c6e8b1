package discord

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sglre6355/covenbot/internal/bot"
	"github.com/sglre6355/covenbot/internal/modules/relay/application"
	"github.com/sglre6355/covenbot/internal/modules/relay/application/ports"
	"github.com/sglre6355/covenbot/internal/modules/relay/domain"
	"github.com/sglre6355/covenbot/internal/modules/relay/infrastructure"
)

// DefaultReplyTimeout keeps command replies inside Discord's three second
// acknowledgement window.
const DefaultReplyTimeout = 2500 * time.Millisecond

// Handlers adapts gateway events to the event queue.
type Handlers struct {
	publisher ports.EventPublisher
	timeout   time.Duration
}

// NewHandlers creates new Handlers. A non-positive timeout uses DefaultReplyTimeout.
func NewHandlers(publisher ports.EventPublisher, timeout time.Duration) *Handlers {
	if timeout <= 0 {
		timeout = DefaultReplyTimeout
	}
	return &Handlers{
		publisher: publisher,
		timeout:   timeout,
	}
}

// HandleCommand answers any slash command with the dispatcher's reply.
func (h *Handlers) HandleCommand(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	event, err := EventFromInteraction(i.Interaction)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	return r.Respond(infrastructure.RenderInteractionResponse(h.Reply(ctx, event)))
}

// Reply dispatches event and returns the reply for the invoking user.
// Queue errors and timeouts produce the generic error reply.
func (h *Handlers) Reply(ctx context.Context, event domain.InboundEvent) domain.ReplyPayload {
	outcome, err := application.Submit(ctx, h.publisher, event)
	if err != nil {
		slog.Warn("failed to dispatch command",
			"command", event.Command(),
			"user_id", event.UserID(),
			"error", err,
		)
		return domain.ErrorReply()
	}
	if outcome.Reply == nil {
		slog.Error("dispatcher returned no reply for command",
			"command", event.Command(),
			"outcome", outcome.Kind,
		)
		return domain.ErrorReply()
	}
	return *outcome.Reply
}

// HandleMemberAdd is the discordgo event handler for GuildMemberAdd events.
func (h *Handlers) HandleMemberAdd(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
	event, err := EventFromMemberAdd(m)
	if err != nil {
		slog.Warn("ignored member join", "error", err)
		return
	}

	err = h.publisher.Publish(context.Background(), ports.Envelope{
		Event:    event,
		Complete: logMemberOutcome(event),
	})
	if err != nil {
		slog.Error("failed to queue member join",
			"user_id", event.UserID(),
			"guild_id", event.GuildID(),
			"error", err,
		)
	}
}

func logMemberOutcome(event domain.InboundEvent) func(context.Context, domain.Outcome) {
	return func(_ context.Context, outcome domain.Outcome) {
		if err := outcome.Err(); err != nil {
			slog.Warn("member join not welcomed",
				"user_id", event.UserID(),
				"guild_id", event.GuildID(),
				"error", err,
			)
			return
		}
		slog.Debug("handled member join",
			"user_id", event.UserID(),
			"outcome", outcome.Kind,
		)
	}
}
