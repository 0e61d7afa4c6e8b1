package domain

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// SideEffect selects what a command does besides replying.
type SideEffect int

const (
	// ReplyOnly commands only answer the invoking user.
	ReplyOnly SideEffect = iota
	// RelayAndReply commands also forward the invocation to the relay destination.
	RelayAndReply
)

// String returns the table representation of the side effect.
func (s SideEffect) String() string {
	switch s {
	case RelayAndReply:
		return "relay-and-reply"
	default:
		return "reply-only"
	}
}

// ParseSideEffect parses the table representation of a side effect.
// An empty string means ReplyOnly.
func ParseSideEffect(s string) (SideEffect, error) {
	switch s {
	case "", "reply-only":
		return ReplyOnly, nil
	case "relay-and-reply":
		return RelayAndReply, nil
	default:
		return ReplyOnly, fmt.Errorf("unknown side effect %q", s)
	}
}

// OptionSpec describes a string option accepted by a command.
type OptionSpec struct {
	Name        string
	Description string
	Required    bool
	Default     string
}

// Consent gates a command on the user typing an exact phrase into one of
// its options. Comparison ignores case and surrounding whitespace.
type Consent struct {
	Option     string
	Expect     string
	RejectText string
}

// Accepts reports whether value matches the expected phrase.
func (c Consent) Accepts(value string) bool {
	return strings.EqualFold(strings.TrimSpace(value), strings.TrimSpace(c.Expect))
}

// CommandDescriptor is the static definition of how a command is answered.
type CommandDescriptor struct {
	Name        string
	Description string
	Options     []OptionSpec
	Reply       ReplyPayload
	SideEffect  SideEffect

	// RelayKind is the "kind" sent with relayed invocations. Defaults to Name.
	RelayKind string

	// Once commands are answered with Reply the first time per user and
	// with RepeatText afterwards.
	Once       bool
	RepeatText string

	// Consent, when set, must accept the invocation before it is answered
	// with Reply or relayed.
	Consent *Consent

	// RelayPayload replaces the option values sent with relayed invocations.
	RelayPayload map[string]any

	// MaxTextLength caps the rendered reply text. Longer text is shortened.
	// Zero or anything above the message limit means the message limit.
	MaxTextLength int
}

// Render builds the reply for an invocation. Option defaults are applied
// first, then params, so explicit values win. Text over the command's limit
// is shortened.
func (d CommandDescriptor) Render(vars map[string]string) ReplyPayload {
	out := d.Reply.Expand(d.Vars(vars))
	out.Text = ShortenText(out.Text, d.textLimit())
	return out
}

// RenderRepeat builds the reply for a repeated Once invocation.
func (d CommandDescriptor) RenderRepeat(vars map[string]string) ReplyPayload {
	text := ExpandTemplate(d.RepeatText, d.Vars(vars))
	return TextReply(ShortenText(text, d.textLimit()), true)
}

// Consents reports whether the invocation carrying vars passes the
// command's consent check. Commands without one always pass.
func (d CommandDescriptor) Consents(vars map[string]string) bool {
	if d.Consent == nil {
		return true
	}
	return d.Consent.Accepts(d.Vars(vars)[d.Consent.Option])
}

// RelayValues returns the payload sent with a relayed invocation.
func (d CommandDescriptor) RelayValues(vars map[string]string) map[string]any {
	if d.RelayPayload != nil {
		return maps.Clone(d.RelayPayload)
	}
	merged := d.Vars(vars)
	out := make(map[string]any, len(merged))
	for k, v := range merged {
		out[k] = v
	}
	return out
}

func (d CommandDescriptor) textLimit() int {
	if d.MaxTextLength > 0 && d.MaxTextLength < maxReplyTextLength {
		return d.MaxTextLength
	}
	return maxReplyTextLength
}

// Vars merges option defaults with the given values.
func (d CommandDescriptor) Vars(vars map[string]string) map[string]string {
	merged := make(map[string]string, len(d.Options)+len(vars))
	for _, opt := range d.Options {
		if opt.Default != "" {
			merged[opt.Name] = opt.Default
		}
	}
	for k, v := range vars {
		if v == "" {
			if _, hasDefault := merged[k]; hasDefault {
				continue
			}
		}
		merged[k] = v
	}
	return merged
}

// EffectiveRelayKind returns the kind label for relayed invocations.
func (d CommandDescriptor) EffectiveRelayKind() string {
	if d.RelayKind != "" {
		return d.RelayKind
	}
	return d.Name
}

func (d CommandDescriptor) clone() CommandDescriptor {
	out := d
	out.Options = slices.Clone(d.Options)
	out.Reply = d.Reply.Clone()
	if d.Consent != nil {
		consent := *d.Consent
		out.Consent = &consent
	}
	out.RelayPayload = maps.Clone(d.RelayPayload)
	return out
}

// CommandTable is everything loaded from the command table at startup.
type CommandTable struct {
	Commands      []CommandDescriptor
	Welcome       ReplyPayload
	AltarOffering ReplyPayload
}
