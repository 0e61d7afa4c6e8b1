package domain

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxReplyTextLength = 2000
	maxReplyLinks      = 5
)

// EmbedField is a name/value pair shown in an embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Embed is the structured part of a reply.
type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []EmbedField
	Footer      string
}

// ActionLink is a labelled URL rendered as a link button.
type ActionLink struct {
	Label string
	URL   string
}

// ReplyPayload is the outbound content produced by a dispatch.
type ReplyPayload struct {
	Text      string
	Embed     *Embed
	Links     []ActionLink
	Ephemeral bool
}

// TextReply creates a plain text reply.
func TextReply(text string, ephemeral bool) ReplyPayload {
	return ReplyPayload{Text: text, Ephemeral: ephemeral}
}

// Validate reports whether the reply can be delivered as a single message.
func (r ReplyPayload) Validate() error {
	if r.Text == "" && r.Embed == nil && len(r.Links) == 0 {
		return ErrEmptyReply
	}
	if utf8.RuneCountInString(r.Text) > maxReplyTextLength {
		return ErrReplyTooLong
	}
	if len(r.Links) > maxReplyLinks {
		return ErrTooManyLinks
	}
	for _, link := range r.Links {
		if link.Label == "" {
			return fmt.Errorf("%w: missing label for %q", ErrInvalidLink, link.URL)
		}
		u, err := url.Parse(link.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %q", ErrInvalidLink, link.URL)
		}
	}
	return nil
}

// Clone returns a deep copy of the reply.
func (r ReplyPayload) Clone() ReplyPayload {
	out := r
	if r.Embed != nil {
		embed := *r.Embed
		embed.Fields = slices.Clone(r.Embed.Fields)
		out.Embed = &embed
	}
	out.Links = slices.Clone(r.Links)
	return out
}

// Expand returns a copy of the reply with placeholders in every text field
// replaced from vars.
func (r ReplyPayload) Expand(vars map[string]string) ReplyPayload {
	out := r.Clone()
	out.Text = ExpandTemplate(out.Text, vars)
	if out.Embed != nil {
		out.Embed.Title = ExpandTemplate(out.Embed.Title, vars)
		out.Embed.Description = ExpandTemplate(out.Embed.Description, vars)
		out.Embed.Footer = ExpandTemplate(out.Embed.Footer, vars)
		for i := range out.Embed.Fields {
			out.Embed.Fields[i].Name = ExpandTemplate(out.Embed.Fields[i].Name, vars)
			out.Embed.Fields[i].Value = ExpandTemplate(out.Embed.Fields[i].Value, vars)
		}
	}
	for i := range out.Links {
		out.Links[i].Label = ExpandTemplate(out.Links[i].Label, vars)
		out.Links[i].URL = ExpandTemplate(out.Links[i].URL, vars)
	}
	return out
}

// ShortenText cuts text to at most width runes. Shortened text ends with an
// ellipsis. A non-positive width leaves text unchanged.
func ShortenText(text string, width int) string {
	if width <= 0 || utf8.RuneCountInString(text) <= width {
		return text
	}
	runes := []rune(text)
	return strings.TrimRightFunc(string(runes[:width-1]), unicode.IsSpace) + "…"
}

// Fixed replies used by the dispatcher.
const (
	UnknownCommandText = "…the script holds no such glyph."
	ErrorReplyText     = "The veil snarled. Try again."
)

// UnknownCommandReply is the acknowledgement for commands missing from the registry.
func UnknownCommandReply() ReplyPayload {
	return TextReply(UnknownCommandText, true)
}

// ErrorReply is the acknowledgement for commands that failed internally.
func ErrorReply() ReplyPayload {
	return TextReply(ErrorReplyText, true)
}
