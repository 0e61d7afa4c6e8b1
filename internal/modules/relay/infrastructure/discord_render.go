package infrastructure

import (
	"github.com/bwmarrin/discordgo"
	"github.com/sglre6355/covenbot/internal/modules/relay/domain"
)

// RenderMessage converts a reply into a channel message.
func RenderMessage(reply domain.ReplyPayload) *discordgo.MessageSend {
	msg := &discordgo.MessageSend{
		Content:    reply.Text,
		Components: renderLinks(reply.Links),
	}
	if embed := renderEmbed(reply.Embed); embed != nil {
		msg.Embeds = []*discordgo.MessageEmbed{embed}
	}
	return msg
}

// RenderInteractionResponse converts a reply into an interaction response.
func RenderInteractionResponse(reply domain.ReplyPayload) *discordgo.InteractionResponse {
	data := &discordgo.InteractionResponseData{
		Content:    reply.Text,
		Components: renderLinks(reply.Links),
	}
	if embed := renderEmbed(reply.Embed); embed != nil {
		data.Embeds = []*discordgo.MessageEmbed{embed}
	}
	if reply.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}

	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}
}

func renderEmbed(embed *domain.Embed) *discordgo.MessageEmbed {
	if embed == nil {
		return nil
	}

	out := &discordgo.MessageEmbed{
		Title:       embed.Title,
		Description: embed.Description,
		Color:       embed.Color,
	}
	for _, f := range embed.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	if embed.Footer != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: embed.Footer}
	}
	return out
}

// renderLinks puts all links into a single row of link buttons.
func renderLinks(links []domain.ActionLink) []discordgo.MessageComponent {
	if len(links) == 0 {
		return nil
	}

	buttons := make([]discordgo.MessageComponent, 0, len(links))
	for _, link := range links {
		buttons = append(buttons, discordgo.Button{
			Label: link.Label,
			Style: discordgo.LinkButton,
			URL:   link.URL,
		})
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: buttons},
	}
}
