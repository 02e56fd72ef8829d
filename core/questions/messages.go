package questions

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Custom ids shared by the prompt, the announcement and the ask modal.
const (
	AskButtonID      = "ask-question"
	AskModalID       = "ask-question-modal"
	ThreadNameInput  = "thread-name-input"
	QuestionInput    = "ask-question-input"
	threadNameRunes  = 17
	threadNameSuffix = "..."
)

// User-facing replies.
const (
	msgAlreadyOpen        = "Questions are already open"
	msgAlreadyClosed      = "Questions are already closed"
	msgNeedChannel        = "Please provide an announcement channel"
	msgAnnouncementFailed = "Failed to send announcement, received: %s"
	msgPromptFailed       = "Failed to send question prompt, received: %s"
	msgOpened             = "Questions are open"
	msgClosed             = "Questions are closed"
	msgEmptyQuestion      = "Please enter a question"
	msgQuestionFailed     = "Failed to send question: %s"
	msgQuestionSent       = "Question sent\n\n🔗 [Link](https://discord.com/channels/%s/%s/%s)"
	msgNotOurMessage      = "Message is not from Community Call Bot"
	msgMarkFailed         = "Failed to mark question as %s, received: %s"
	msgDone               = "Done"
	msgMoreInfo           = "Please provide more information about your question here."

	announcementContent = "Questions are now open! Ask away!"
	promptContent       = "Submit Questions for the Community Call Here\n- General questions should not be sent in this channel, and should instead go in the dedicated channels for this"
)

func askButton(label string) discordgo.MessageComponent {
	return discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{
			Label:    label,
			Style:    discordgo.PrimaryButton,
			CustomID: AskButtonID,
			Emoji:    &discordgo.ComponentEmoji{Name: "❓"},
		},
	}}
}

// PromptMessage is the standing message in the question channel.
func PromptMessage() *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content:    promptContent,
		Components: []discordgo.MessageComponent{askButton("Send a Community Call Question")},
	}
}

// AnnouncementMessage is posted to the announcement channel when questions open.
func AnnouncementMessage() *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content:    announcementContent,
		Components: []discordgo.MessageComponent{askButton("Ask a question")},
	}
}

// AskModal is the form a user fills in to submit a question.
func AskModal() *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		CustomID: AskModalID,
		Title:    "Ask a question",
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.TextInput{
					CustomID:    ThreadNameInput,
					Label:       "Thread name",
					Style:       discordgo.TextInputShort,
					Placeholder: "What should I name your discussion thread?",
					Required:    false,
					MinLength:   5,
					MaxLength:   20,
				},
			}},
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.TextInput{
					CustomID:    QuestionInput,
					Label:       "Question",
					Style:       discordgo.TextInputParagraph,
					Placeholder: "What is your question?",
					Required:    true,
					MinLength:   20,
					MaxLength:   1800,
				},
			}},
		},
	}
}

// ThreadName is the hint when given, else up to the first 17 runes of the
// question followed by "...", even when the question is shorter.
func ThreadName(hint, question string) string {
	if hint = strings.TrimSpace(hint); hint != "" {
		return hint
	}
	r := []rune(question)
	if len(r) > threadNameRunes {
		r = r[:threadNameRunes]
	}
	return string(r) + threadNameSuffix
}

// modalValues collects text input values by custom id.
func modalValues(data discordgo.ModalSubmitInteractionData) map[string]string {
	values := make(map[string]string)
	for _, c := range data.Components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if input, ok := inner.(*discordgo.TextInput); ok {
				values[input.CustomID] = input.Value
			}
		}
	}
	return values
}

// displayName is the member's nickname, else the global name, else username#discriminator.
func displayName(m *discordgo.Member) string {
	if m == nil || m.User == nil {
		return ""
	}
	if m.Nick != "" {
		return m.Nick
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	if m.User.Discriminator == "" || m.User.Discriminator == "0" {
		return m.User.Username
	}
	return m.User.Username + "#" + m.User.Discriminator
}
