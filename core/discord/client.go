package discord

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/m3rciful/questionbot/core/logger"
)

// Options configures the REST client.
type Options struct {
	BotToken      string
	ApplicationID string
	// Webhook posts and edits questions.
	Webhook Webhook
	// HTTPClient overrides the transport; nil builds one with BuildHTTPClient(RetryAttempts).
	HTTPClient    *http.Client
	RetryAttempts int
}

// Client performs the outbound REST calls of the bot. Discord-side retries
// are disabled: every call is attempted once and its failure is reported.
type Client struct {
	session *discordgo.Session
	appID   string
	webhook Webhook
}

// NewClient builds a Client over a discordgo session without opening a gateway connection.
func NewClient(opts Options) (*Client, error) {
	session, err := discordgo.New("Bot " + opts.BotToken)
	if err != nil {
		return nil, fmt.Errorf("discord: new session: %w", err)
	}
	session.ShouldRetryOnRateLimit = false
	session.MaxRestRetries = 0
	session.Client = opts.HTTPClient
	if session.Client == nil {
		session.Client = BuildHTTPClient(opts.RetryAttempts)
	}
	return &Client{session: session, appID: opts.ApplicationID, webhook: opts.Webhook}, nil
}

// WebhookID returns the id of the questions webhook.
func (c *Client) WebhookID() string { return c.webhook.ID }

// SendMessage posts msg to channelID as the bot.
func (c *Client) SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	start := time.Now()
	m, err := c.session.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx))
	err = translate("send message", err)
	c.logCall(ctx, "message.send", start, err, slog.String("channel_id", channelID))
	return m, err
}

// DeleteMessage deletes a bot message. A message that is already gone is not an error.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	start := time.Now()
	err := translate("delete message", c.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)))
	if IsNotFound(err) {
		err = nil
	}
	c.logCall(ctx, "message.delete", start, err,
		slog.String("channel_id", channelID),
		slog.String("message_id", messageID),
	)
	return err
}

// ExecuteWebhook posts through the questions webhook and waits for the created message.
func (c *Client) ExecuteWebhook(ctx context.Context, params *discordgo.WebhookParams) (*discordgo.Message, error) {
	start := time.Now()
	m, err := c.session.WebhookExecute(c.webhook.ID, c.webhook.Token, true, params, discordgo.WithContext(ctx))
	err = translate("execute webhook", err)
	c.logCall(ctx, "webhook.execute", start, err)
	return m, err
}

// EditWebhookMessage edits a message previously posted by the questions webhook.
func (c *Client) EditWebhookMessage(ctx context.Context, messageID string, edit *discordgo.WebhookEdit) (*discordgo.Message, error) {
	start := time.Now()
	m, err := c.session.WebhookMessageEdit(c.webhook.ID, c.webhook.Token, messageID, edit, discordgo.WithContext(ctx))
	err = translate("edit webhook message", err)
	c.logCall(ctx, "webhook.edit", start, err, slog.String("message_id", messageID))
	return m, err
}

// StartThread opens a public thread on an existing message.
func (c *Client) StartThread(ctx context.Context, channelID, messageID, name string) (*discordgo.Channel, error) {
	start := time.Now()
	ch, err := c.session.MessageThreadStartComplex(channelID, messageID, &discordgo.ThreadStart{
		Name: name,
		Type: discordgo.ChannelTypeGuildPublicThread,
	}, discordgo.WithContext(ctx))
	err = translate("start thread", err)
	c.logCall(ctx, "thread.start", start, err,
		slog.String("channel_id", channelID),
		slog.String("message_id", messageID),
	)
	return ch, err
}

// AddThreadMember adds userID to a thread.
func (c *Client) AddThreadMember(ctx context.Context, threadID, userID string) error {
	start := time.Now()
	err := translate("add thread member", c.session.ThreadMemberAdd(threadID, userID, discordgo.WithContext(ctx)))
	c.logCall(ctx, "thread.member_add", start, err, slog.String("channel_id", threadID))
	return err
}

// DeleteOriginalResponse removes the response message of an interaction.
func (c *Client) DeleteOriginalResponse(ctx context.Context, i *discordgo.Interaction) error {
	start := time.Now()
	err := translate("delete interaction response", c.session.InteractionResponseDelete(i, discordgo.WithContext(ctx)))
	c.logCall(ctx, "interaction.response_delete", start, err)
	return err
}

// RegisterCommands replaces the global command set of the application.
func (c *Client) RegisterCommands(ctx context.Context, cmds []*discordgo.ApplicationCommand) error {
	start := time.Now()
	_, err := c.session.ApplicationCommandBulkOverwrite(c.appID, "", cmds, discordgo.WithContext(ctx))
	err = translate("overwrite commands", err)
	c.logCall(ctx, "commands.overwrite", start, err, slog.Int("count", len(cmds)))
	return err
}

func (c *Client) logCall(ctx context.Context, op string, start time.Time, err error, attrs ...slog.Attr) {
	attrs = append([]slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("op", op),
		slog.Duration("duration", logger.Took(start)),
	}, attrs...)
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, logger.ErrAttr(err))
	}
	logger.LogEvent(ctx, logger.DC, level, "discord.call", attrs...)
}
