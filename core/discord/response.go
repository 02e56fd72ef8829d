package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// HandlerFunc answers a single interaction. The returned response is written
// synchronously; work that may finish later belongs on the sender dispatcher.
type HandlerFunc func(ctx context.Context, i *discordgo.Interaction) (*discordgo.InteractionResponse, error)

// Reply builds an ephemeral channel message response.
func Reply(content string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}
}

// Pong acknowledges a ping.
func Pong() *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{Type: discordgo.InteractionResponsePong}
}

// Modal opens data as a modal form.
func Modal(data *discordgo.InteractionResponseData) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{Type: discordgo.InteractionResponseModal, Data: data}
}

// InvokerID returns the id of the user behind i, in a guild or a DM.
func InvokerID(i *discordgo.Interaction) string {
	switch {
	case i.Member != nil && i.Member.User != nil:
		return i.Member.User.ID
	case i.User != nil:
		return i.User.ID
	}
	return ""
}
