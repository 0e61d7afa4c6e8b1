package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sglre6355/covenbot/internal/modules/relay/application/ports"
	"github.com/sglre6355/covenbot/internal/modules/relay/domain"
)

const noProofText = "(no proof)"

// DispatcherConfig holds the static routing targets of the dispatcher.
type DispatcherConfig struct {
	// RelayDestination is the webhook URL for raw and side-effect relays.
	// Empty disables relaying.
	RelayDestination string

	// GuildID restricts welcomes to one guild. Empty accepts every guild.
	GuildID string

	WelcomeChannelID string
	AltarChannelID   string

	// Welcome is the reply template posted for new members.
	Welcome domain.ReplyPayload

	// AltarOffering is the reply template posted for altar offerings.
	AltarOffering domain.ReplyPayload
}

// Dispatcher classifies inbound events and produces exactly one outcome for each.
type Dispatcher struct {
	registry ports.CommandResolver
	relay    ports.Relay
	welcomed ports.DedupStore
	sender   ports.ChannelSender
	recorder ports.OutcomeRecorder
	config   DispatcherConfig

	inflight sync.WaitGroup
}

// NewDispatcher creates a new Dispatcher. A nil recorder discards observations.
func NewDispatcher(
	registry ports.CommandResolver,
	relay ports.Relay,
	welcomed ports.DedupStore,
	sender ports.ChannelSender,
	recorder ports.OutcomeRecorder,
	config DispatcherConfig,
) *Dispatcher {
	if recorder == nil {
		recorder = ports.NopRecorder{}
	}
	return &Dispatcher{
		registry: registry,
		relay:    relay,
		welcomed: welcomed,
		sender:   sender,
		recorder: recorder,
		config:   config,
	}
}

// Dispatch handles one event. It never panics or returns an error: every
// downstream failure is converted into the returned Outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, event domain.InboundEvent) (outcome domain.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovered from panic while dispatching event",
				"event", event.Kind(),
				"panic", r,
			)
			outcome = d.panicOutcome(event, fmt.Errorf("panic: %v", r))
		}
		d.recorder.RecordOutcome(event.Kind(), outcome)
	}()

	switch event.Kind() {
	case domain.EventCommandInvocation:
		return d.dispatchCommand(ctx, event)
	case domain.EventMemberJoined:
		return d.dispatchMemberJoined(ctx, event)
	case domain.EventRawRelayPayload:
		return d.dispatchRawRelay(ctx, event)
	case domain.EventAltarOffering:
		return d.dispatchAltarOffering(ctx, event)
	default:
		return domain.FailedOutcome(
			domain.FailureInvalidEvent,
			fmt.Errorf("unsupported event kind %d", event.Kind()),
		)
	}
}

// Handle dispatches an envelope and completes it with the outcome.
// Envelopes withdrawn by their producer are dropped without side effects.
func (d *Dispatcher) Handle(ctx context.Context, env ports.Envelope) {
	if env.Claim != nil && !env.Claim() {
		slog.Warn("dropped event abandoned by its producer", "event", env.Event.Kind())
		d.recorder.RecordOutcome(env.Event.Kind(), domain.FailedOutcome(domain.FailureAbandoned, domain.ErrAbandoned))
		return
	}

	outcome := d.Dispatch(ctx, env.Event)
	if env.Complete != nil {
		env.Complete(ctx, outcome)
	}
}

// Drain waits for in-flight side-effect relays to finish.
func (d *Dispatcher) Drain() {
	d.inflight.Wait()
}

func (d *Dispatcher) dispatchCommand(ctx context.Context, event domain.InboundEvent) domain.Outcome {
	descriptor, ok := d.registry.Resolve(event.Command())
	if !ok {
		slog.Warn("found no descriptor for command", "command", event.Command())
		return domain.UnknownCommandOutcome()
	}

	vars := templateVars(event)

	if !descriptor.Consents(event.Params()) {
		slog.Debug("rejected command without consent", "command", descriptor.Name, "user_id", event.UserID())
		return domain.ReplyOutcome(domain.TextReply(descriptor.Consent.RejectText, true))
	}

	if descriptor.Once && event.UserID() != "" {
		first, err := d.welcomed.MarkIfAbsent(ctx, event.UserID())
		if err != nil {
			slog.Error("failed to check one-time command",
				"command", descriptor.Name,
				"user_id", event.UserID(),
				"error", err,
			)
			return domain.ReplyOutcome(domain.ErrorReply())
		}
		if !first {
			return domain.ReplyOutcome(descriptor.RenderRepeat(vars))
		}
	}

	reply := descriptor.Render(vars)
	if err := reply.Validate(); err != nil {
		slog.Error("rendered invalid reply", "command", descriptor.Name, "error", err)
		return domain.ReplyOutcome(domain.ErrorReply())
	}

	outcome := domain.ReplyOutcome(reply)
	if descriptor.SideEffect == domain.RelayAndReply {
		outcome.SideEffect = d.submitSideEffect(ctx, descriptor, event)
	}
	return outcome
}

// submitSideEffect relays a command invocation in the background. The
// returned PendingRelay resolves when the single attempt has finished.
func (d *Dispatcher) submitSideEffect(
	ctx context.Context,
	descriptor domain.CommandDescriptor,
	event domain.InboundEvent,
) *domain.PendingRelay {
	pending := domain.NewPendingRelay()

	if d.config.RelayDestination == "" {
		result := domain.RelayResult{Err: domain.ErrRelayDisabled}
		pending.Resolve(result)
		d.recorder.RecordSideEffect(descriptor.Name, result)
		slog.Debug("skipped side-effect relay", "command", descriptor.Name, "reason", "no destination")
		return pending
	}

	body, err := json.Marshal(sideEffectBody{
		UserID:   event.UserID(),
		Username: event.Actor().Username,
		Kind:     descriptor.EffectiveRelayKind(),
		Payload:  descriptor.RelayValues(event.Params()),
	})
	if err != nil {
		result := domain.RelayResult{Err: fmt.Errorf("failed to encode relay body: %w", err)}
		pending.Resolve(result)
		d.recorder.RecordSideEffect(descriptor.Name, result)
		return pending
	}

	req := domain.RelayRequest{Destination: d.config.RelayDestination, Body: body}
	relayCtx := context.WithoutCancel(ctx)

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()

		result := d.forwardSideEffect(relayCtx, req)
		if result.Err != nil {
			slog.Warn("side-effect relay failed",
				"command", descriptor.Name,
				"user_id", event.UserID(),
				"error", result.Err,
			)
		} else {
			slog.Debug("side-effect relay delivered",
				"command", descriptor.Name,
				"status", result.Delivery.StatusCode,
			)
		}
		d.recorder.RecordSideEffect(descriptor.Name, result)
		pending.Resolve(result)
	}()

	return pending
}

func (d *Dispatcher) forwardSideEffect(ctx context.Context, req domain.RelayRequest) (result domain.RelayResult) {
	defer func() {
		if r := recover(); r != nil {
			result = domain.RelayResult{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	delivery, err := d.relay.Forward(ctx, req)
	if err != nil {
		return domain.RelayResult{Err: err}
	}
	return domain.RelayResult{Delivery: &delivery}
}

func (d *Dispatcher) dispatchMemberJoined(ctx context.Context, event domain.InboundEvent) domain.Outcome {
	if d.config.GuildID != "" && event.GuildID() != d.config.GuildID {
		slog.Debug("ignored member join from other guild", "guild_id", event.GuildID())
		return domain.SuppressedOutcome()
	}
	if event.UserID() == "" {
		return domain.FailedOutcome(domain.FailureInvalidEvent, domain.ErrMissingIdentity)
	}

	first, err := d.welcomed.MarkIfAbsent(ctx, event.UserID())
	if err != nil {
		slog.Error("failed to record welcome", "user_id", event.UserID(), "error", err)
		return domain.FailedOutcome(domain.FailureDedupStore, err)
	}
	if !first {
		slog.Debug("suppressed duplicate welcome", "user_id", event.UserID())
		return domain.SuppressedOutcome()
	}

	// The mark is kept even if delivery fails below.
	if d.config.WelcomeChannelID == "" {
		return domain.FailedOutcome(domain.FailureReplyDelivery, domain.ErrNoChannel)
	}

	reply := d.config.Welcome.Expand(templateVars(event))
	if err := d.sender.SendToChannel(ctx, d.config.WelcomeChannelID, reply); err != nil {
		slog.Error("failed to send welcome",
			"user_id", event.UserID(),
			"channel_id", d.config.WelcomeChannelID,
			"error", err,
		)
		return domain.FailedOutcome(domain.FailureReplyDelivery, err)
	}

	slog.Info("welcomed member", "user_id", event.UserID(), "guild_id", event.GuildID())
	return domain.WelcomedOutcome(reply)
}

func (d *Dispatcher) dispatchRawRelay(ctx context.Context, event domain.InboundEvent) domain.Outcome {
	if d.config.RelayDestination == "" {
		return domain.FailedOutcome(domain.FailureRelayDisabled, domain.ErrRelayDisabled)
	}

	result, err := d.relay.Forward(ctx, domain.RelayRequest{
		Destination: d.config.RelayDestination,
		Body:        event.Payload(),
	})
	if err != nil {
		slog.Warn("relay failed", "error", err)
		var tf *domain.TransportFailure
		if !errors.As(err, &tf) {
			err = domain.NewTransportFailure(d.config.RelayDestination, err)
		}
		return domain.FailedOutcome(domain.FailureTransport, err)
	}

	slog.Debug("relayed payload", "status", result.StatusCode)
	return domain.RelayedOutcome(result)
}

func (d *Dispatcher) dispatchAltarOffering(ctx context.Context, event domain.InboundEvent) domain.Outcome {
	channelID := event.TargetChannelID()
	if channelID == "" {
		channelID = d.config.AltarChannelID
	}
	if channelID == "" {
		return domain.FailedOutcome(domain.FailureReplyDelivery, domain.ErrNoChannel)
	}

	proof := event.Proof()
	if proof == "" {
		proof = noProofText
	}
	reply := d.config.AltarOffering.Expand(map[string]string{"proof": proof})

	if err := d.sender.SendToChannel(ctx, channelID, reply); err != nil {
		slog.Error("failed to post altar offering", "channel_id", channelID, "error", err)
		return domain.FailedOutcome(domain.FailureReplyDelivery, err)
	}
	return domain.DeliveredOutcome(reply)
}

func (d *Dispatcher) panicOutcome(event domain.InboundEvent, err error) domain.Outcome {
	if event.Kind() == domain.EventCommandInvocation {
		return domain.ReplyOutcome(domain.ErrorReply())
	}
	return domain.FailedOutcome(domain.FailureInvalidEvent, err)
}

// templateVars returns the built-in placeholders for an event, overlaid by
// its params.
func templateVars(event domain.InboundEvent) map[string]string {
	actor := event.Actor()
	vars := map[string]string{
		"user_id":  actor.UserID,
		"username": actor.Username,
	}
	if actor.UserID != "" {
		vars["user"] = "<@" + actor.UserID + ">"
	}
	if actor.ChannelID != "" {
		vars["channel"] = "<#" + actor.ChannelID + ">"
	}
	for k, v := range event.Params() {
		vars[k] = v
	}
	return vars
}

type sideEffectBody struct {
	UserID   string         `json:"discord_user_id"`
	Username string         `json:"discord_username"`
	Kind     string         `json:"kind"`
	Payload  map[string]any `json:"payload"`
}
