package domain

import (
	"encoding/json"
	"maps"
	"slices"
)

// EventKind identifies the variant of an InboundEvent.
type EventKind int

const (
	// EventCommandInvocation is a slash command invoked by a user.
	EventCommandInvocation EventKind = iota + 1
	// EventMemberJoined is a new member joining the guild.
	EventMemberJoined
	// EventRawRelayPayload is an opaque JSON payload to forward verbatim.
	EventRawRelayPayload
	// EventAltarOffering is an offering posted by the website, shown in a channel.
	EventAltarOffering
)

// String returns the label used in logs and metrics.
func (k EventKind) String() string {
	switch k {
	case EventCommandInvocation:
		return "command"
	case EventMemberJoined:
		return "member_joined"
	case EventRawRelayPayload:
		return "raw_relay"
	case EventAltarOffering:
		return "altar_offering"
	default:
		return "unknown"
	}
}

// Actor describes who originated an event and where.
type Actor struct {
	UserID    string
	Username  string
	GuildID   string
	ChannelID string
}

// InboundEvent is a normalized notification entering the dispatcher.
// It is immutable once constructed; use the New* constructors.
type InboundEvent struct {
	kind    EventKind
	actor   Actor
	command string
	params  map[string]string
	payload []byte
	proof   string
	target  string
}

// NewCommandInvocation creates an event for the named command.
func NewCommandInvocation(command string, actor Actor, params map[string]string) InboundEvent {
	return InboundEvent{
		kind:    EventCommandInvocation,
		actor:   actor,
		command: command,
		params:  maps.Clone(params),
	}
}

// NewMemberJoined creates an event for a member joining a guild.
func NewMemberJoined(actor Actor) InboundEvent {
	return InboundEvent{
		kind:  EventMemberJoined,
		actor: actor,
	}
}

// NewRawRelayPayload creates a pass-through relay event.
// The payload must be valid JSON; it is kept byte-for-byte.
func NewRawRelayPayload(payload []byte) (InboundEvent, error) {
	if !json.Valid(payload) {
		return InboundEvent{}, ErrInvalidPayload
	}
	return InboundEvent{
		kind:    EventRawRelayPayload,
		payload: slices.Clone(payload),
	}, nil
}

// NewAltarOffering creates an event that posts proof to a channel.
// An empty targetChannelID selects the configured altar channel.
func NewAltarOffering(proof, targetChannelID string) InboundEvent {
	return InboundEvent{
		kind:   EventAltarOffering,
		proof:  proof,
		target: targetChannelID,
	}
}

// Kind returns the event variant.
func (e InboundEvent) Kind() EventKind { return e.kind }

// Actor returns the originating identity and context.
func (e InboundEvent) Actor() Actor { return e.actor }

// UserID returns the originating user ID, if any.
func (e InboundEvent) UserID() string { return e.actor.UserID }

// GuildID returns the guild the event happened in, if any.
func (e InboundEvent) GuildID() string { return e.actor.GuildID }

// Command returns the command name for command invocations.
func (e InboundEvent) Command() string { return e.command }

// Param returns a single command parameter.
func (e InboundEvent) Param(name string) (string, bool) {
	v, ok := e.params[name]
	return v, ok
}

// Params returns a copy of the command parameters.
func (e InboundEvent) Params() map[string]string {
	if e.params == nil {
		return map[string]string{}
	}
	return maps.Clone(e.params)
}

// Payload returns a copy of the raw relay payload.
func (e InboundEvent) Payload() []byte { return slices.Clone(e.payload) }

// Proof returns the altar offering text.
func (e InboundEvent) Proof() string { return e.proof }

// TargetChannelID returns the requested altar channel, if any.
func (e InboundEvent) TargetChannelID() string { return e.target }
