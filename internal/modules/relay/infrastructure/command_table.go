package infrastructure

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/sglre6355/covenbot/internal/modules/relay/domain"
	"gopkg.in/yaml.v3"
)

//go:embed command_table.yaml
var defaultCommandTable []byte

// StaticVars are the configuration placeholders expanded when the command
// table is loaded.
type StaticVars struct {
	InviteURL      string
	AltarChannelID string
	FairyURL       string
	AltarURL       string
	ClientID       string
}

func (v StaticVars) toMap() map[string]string {
	m := map[string]string{
		"invite_url": v.InviteURL,
		"fairy_url":  v.FairyURL,
		"altar_url":  v.AltarURL,
		"client_id":  v.ClientID,
	}
	if v.AltarChannelID != "" {
		m["altar_channel"] = "<#" + v.AltarChannelID + ">"
	}
	return m
}

type tableFile struct {
	Welcome       replyFile     `yaml:"welcome"`
	AltarOffering replyFile     `yaml:"altar_offering"`
	Commands      []commandFile `yaml:"commands"`
}

type commandFile struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Options     []optionFile `yaml:"options"`
	Reply       replyFile    `yaml:"reply"`
	SideEffect  string       `yaml:"side_effect"`
	RelayKind   string       `yaml:"relay_kind"`
	Once        bool         `yaml:"once"`
	RepeatText  string       `yaml:"repeat_text"`
	MaxLength   int          `yaml:"max_length"`

	Consent      *consentFile   `yaml:"consent"`
	RelayPayload map[string]any `yaml:"relay_payload"`

	// Requires names static placeholders the reply cannot do without.
	// When one is unset the command answers with UnavailableText instead.
	Requires        []string `yaml:"requires"`
	UnavailableText string   `yaml:"unavailable_text"`
}

type consentFile struct {
	Option     string `yaml:"option"`
	Expect     string `yaml:"expect"`
	RejectText string `yaml:"reject_text"`
}

type optionFile struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
	Default     string `yaml:"default"`
}

type replyFile struct {
	Text      string     `yaml:"text"`
	Embed     *embedFile `yaml:"embed"`
	Links     []linkFile `yaml:"links"`
	Ephemeral bool       `yaml:"ephemeral"`
}

type embedFile struct {
	Title       string      `yaml:"title"`
	Description string      `yaml:"description"`
	Color       int         `yaml:"color"`
	Fields      []fieldFile `yaml:"fields"`
	Footer      string      `yaml:"footer"`
}

type fieldFile struct {
	Name   string `yaml:"name"`
	Value  string `yaml:"value"`
	Inline bool   `yaml:"inline"`
}

type linkFile struct {
	Label string `yaml:"label"`
	URL   string `yaml:"url"`
}

// LoadCommandTable loads the table at path, or the embedded default table
// when path is empty.
func LoadCommandTable(path string, vars StaticVars) (domain.CommandTable, error) {
	if path == "" {
		return ParseCommandTable(defaultCommandTable, vars)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.CommandTable{}, fmt.Errorf("failed to read command table: %w", err)
	}
	return ParseCommandTable(data, vars)
}

// ParseCommandTable decodes a YAML command table and expands its static
// placeholders. Every reply must be valid once expanded.
func ParseCommandTable(data []byte, vars StaticVars) (domain.CommandTable, error) {
	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return domain.CommandTable{}, fmt.Errorf("failed to decode command table: %w", err)
	}

	static := vars.toMap()
	table := domain.CommandTable{
		Welcome:       file.Welcome.toDomain().Expand(static),
		AltarOffering: file.AltarOffering.toDomain().Expand(static),
	}

	for i, c := range file.Commands {
		descriptor, err := c.toDomain(static)
		if err != nil {
			return domain.CommandTable{}, fmt.Errorf("command %d (%q): %w", i, c.Name, err)
		}
		table.Commands = append(table.Commands, descriptor)
	}

	return table, nil
}

func (c commandFile) toDomain(static map[string]string) (domain.CommandDescriptor, error) {
	sideEffect, err := domain.ParseSideEffect(c.SideEffect)
	if err != nil {
		return domain.CommandDescriptor{}, err
	}

	descriptor := domain.CommandDescriptor{
		Name:        c.Name,
		Description: c.Description,
		Reply:       c.Reply.toDomain().Expand(static),
		SideEffect:  sideEffect,
		RelayKind:   c.RelayKind,
		Once:          c.Once,
		RepeatText:    domain.ExpandTemplate(c.RepeatText, static),
		RelayPayload:  c.RelayPayload,
		MaxTextLength: c.MaxLength,
	}
	for _, o := range c.Options {
		descriptor.Options = append(descriptor.Options, domain.OptionSpec{
			Name:        o.Name,
			Description: o.Description,
			Required:    o.Required,
			Default:     o.Default,
		})
	}

	if c.Consent != nil {
		consent, err := c.Consent.toDomain(descriptor.Options)
		if err != nil {
			return domain.CommandDescriptor{}, err
		}
		descriptor.Consent = consent
	}

	if missing := missingStatic(c.Requires, static); missing != "" {
		if c.UnavailableText == "" {
			return domain.CommandDescriptor{}, fmt.Errorf("requires %q but has no unavailable_text", missing)
		}
		descriptor.Reply = domain.TextReply(c.UnavailableText, c.Reply.Ephemeral)
	}

	if err := descriptor.Reply.Validate(); err != nil {
		return domain.CommandDescriptor{}, err
	}
	if c.Once && c.RepeatText == "" {
		return domain.CommandDescriptor{}, errors.New("one-time command needs repeat_text")
	}

	return descriptor, nil
}

func (c consentFile) toDomain(options []domain.OptionSpec) (*domain.Consent, error) {
	if c.Expect == "" || c.RejectText == "" {
		return nil, errors.New("consent needs expect and reject_text")
	}
	known := false
	for _, o := range options {
		if o.Name == c.Option {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("consent option %q is not declared", c.Option)
	}
	return &domain.Consent{Option: c.Option, Expect: c.Expect, RejectText: c.RejectText}, nil
}

// missingStatic returns the first name without a value in static.
func missingStatic(names []string, static map[string]string) string {
	for _, name := range names {
		if static[name] == "" {
			return name
		}
	}
	return ""
}

func (r replyFile) toDomain() domain.ReplyPayload {
	reply := domain.ReplyPayload{
		Text:      r.Text,
		Ephemeral: r.Ephemeral,
	}
	if r.Embed != nil {
		embed := &domain.Embed{
			Title:       r.Embed.Title,
			Description: r.Embed.Description,
			Color:       r.Embed.Color,
			Footer:      r.Embed.Footer,
		}
		for _, f := range r.Embed.Fields {
			embed.Fields = append(embed.Fields, domain.EmbedField{
				Name:   f.Name,
				Value:  f.Value,
				Inline: f.Inline,
			})
		}
		reply.Embed = embed
	}
	for _, l := range r.Links {
		reply.Links = append(reply.Links, domain.ActionLink{Label: l.Label, URL: l.URL})
	}
	return reply
}
