package questions

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/m3rciful/questionbot/core/discord"
)

func triageInteraction(command string, target *discordgo.Message) *discordgo.Interaction {
	return &discordgo.Interaction{
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: "g1",
		Data: discordgo.ApplicationCommandInteractionData{
			Name:        command,
			CommandType: discordgo.MessageApplicationCommand,
			TargetID:    target.ID,
			Resolved: &discordgo.ApplicationCommandInteractionDataResolved{
				Messages: map[string]*discordgo.Message{target.ID: target},
			},
		},
	}
}

func questionMessage(st QuestionState) *discordgo.Message {
	return &discordgo.Message{
		ID:        "q1",
		ChannelID: testQuestionChan,
		WebhookID: testWebhookID,
		Embeds: []*discordgo.MessageEmbed{{
			Title:       st.Title(),
			Description: "original question text",
			Color:       st.Color(),
		}},
	}
}

func TestTriageRejectsForeignMessage(t *testing.T) {
	fx := newFixture(t)
	target := questionMessage(Unanswered)
	target.WebhookID = "999"

	resp, err := fx.svc.HandleTriage(context.Background(), triageInteraction(Answered.CommandName(), target))
	if err != nil {
		t.Fatalf("triage: %v", err)
	}
	if resp.Data.Content != "Message is not from Community Call Bot" {
		t.Fatalf("reply = %q", resp.Data.Content)
	}
	fx.drain()
	if n := len(fx.platform.ops()); n != 0 {
		t.Fatalf("outbound calls = %d, want 0", n)
	}
}

func TestTriageRelabelsAndKeepsDescription(t *testing.T) {
	fx := newFixture(t)
	resp, err := fx.svc.HandleTriage(context.Background(), triageInteraction(Answered.CommandName(), questionMessage(Unanswered)))
	if err != nil {
		t.Fatalf("triage: %v", err)
	}
	fx.drain()
	if resp.Data.Content != "Done" {
		t.Fatalf("reply = %q", resp.Data.Content)
	}
	embed := (*fx.platform.edits[0].Embeds)[0]
	if embed.Title != Answered.Title() || embed.Color != Answered.Color() || embed.Description != "original question text" {
		t.Fatalf("embed = %+v", embed)
	}
	if fx.platform.count("ack_delete") != 1 {
		t.Fatal("acknowledgement not deleted")
	}
	if fx.platform.count("send") != 0 {
		t.Fatal("unexpected thread post")
	}
}

func TestTriageNeedsMoreInfoPostsInThread(t *testing.T) {
	fx := newFixture(t)
	target := questionMessage(Unanswered)
	target.Thread = &discordgo.Channel{ID: target.ID}

	if _, err := fx.svc.HandleTriage(context.Background(), triageInteraction(NeedsMoreInfo.CommandName(), target)); err != nil {
		t.Fatalf("triage: %v", err)
	}
	fx.drain()
	var posted []call
	for _, c := range fx.platform.ops() {
		if c.op == "send" {
			posted = append(posted, c)
		}
	}
	if len(posted) != 1 || posted[0].channelID != target.ID || posted[0].content != msgMoreInfo {
		t.Fatalf("thread posts = %+v", posted)
	}
}

func TestTriageNeedsMoreInfoTwiceDoesNotRepost(t *testing.T) {
	fx := newFixture(t)
	target := questionMessage(NeedsMoreInfo)
	target.Flags = discordgo.MessageFlagsHasThread

	if _, err := fx.svc.HandleTriage(context.Background(), triageInteraction(NeedsMoreInfo.CommandName(), target)); err != nil {
		t.Fatalf("triage: %v", err)
	}
	fx.drain()
	if fx.platform.count("send") != 0 {
		t.Fatal("reposted more info request")
	}
}

func TestTriageNeedsMoreInfoWithoutThread(t *testing.T) {
	fx := newFixture(t)
	if _, err := fx.svc.HandleTriage(context.Background(), triageInteraction(NeedsMoreInfo.CommandName(), questionMessage(Unanswered))); err != nil {
		t.Fatalf("triage: %v", err)
	}
	fx.drain()
	if fx.platform.count("send") != 0 {
		t.Fatal("posted without a thread")
	}
}

func TestTriageEditFailure(t *testing.T) {
	fx := newFixture(t)
	fx.platform.editErr = &discord.APIError{Status: 403, Text: "403 Forbidden"}

	resp, err := fx.svc.HandleTriage(context.Background(), triageInteraction(Answered.CommandName(), questionMessage(Unanswered)))
	if err != nil {
		t.Fatalf("triage: %v", err)
	}
	fx.drain()
	if resp.Data.Content != "Failed to mark question as answered, received: 403 Forbidden" {
		t.Fatalf("reply = %q", resp.Data.Content)
	}
	if fx.platform.count("ack_delete") != 0 {
		t.Fatal("acknowledgement deleted after failed edit")
	}
}

func TestTriageUnknownCommandFallsBackToUnanswered(t *testing.T) {
	fx := newFixture(t)
	if _, err := fx.svc.HandleTriage(context.Background(), triageInteraction("totally-unknown", questionMessage(Answered))); err != nil {
		t.Fatalf("triage: %v", err)
	}
	fx.drain()
	if embed := (*fx.platform.edits[0].Embeds)[0]; embed.Title != Unanswered.Title() {
		t.Fatalf("title = %q", embed.Title)
	}
}
