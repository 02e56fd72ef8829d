// Package commands declares the application commands the bot registers.
package commands

import (
	"github.com/bwmarrin/discordgo"

	"github.com/m3rciful/questionbot/core/questions"
)

// GateCommand is the chat command that opens and closes questions.
const GateCommand = "questions"

var manageMessages int64 = discordgo.PermissionManageMessages

// Catalogue returns the full command set: the gate command and one message
// command per question label.
func Catalogue() []*discordgo.ApplicationCommand {
	dm := false
	cmds := []*discordgo.ApplicationCommand{{
		Name:                     GateCommand,
		Type:                     discordgo.ChatApplicationCommand,
		Description:              "Manage whether the Questions channel is open or closed",
		DefaultMemberPermissions: &manageMessages,
		DMPermission:             &dm,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        questions.OptionOpen,
				Description: "Whether the Questions channel is open or closed",
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Required:    true,
			},
			{
				Name:         questions.OptionAnnouncementChannel,
				Description:  "The channel to send the announcement to",
				Type:         discordgo.ApplicationCommandOptionChannel,
				ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
			},
		},
	}}
	for _, st := range questions.AllStates() {
		cmds = append(cmds, &discordgo.ApplicationCommand{
			Name:                     st.CommandName(),
			Type:                     discordgo.MessageApplicationCommand,
			DefaultMemberPermissions: &manageMessages,
			DMPermission:             &dm,
		})
	}
	return cmds
}
