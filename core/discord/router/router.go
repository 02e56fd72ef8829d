// Package router maps interactions to handlers by kind and name.
package router

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/m3rciful/questionbot/core/discord"
	"github.com/m3rciful/questionbot/core/discord/middleware"
	"github.com/m3rciful/questionbot/core/logger"
)

// Replies for interactions no route accepts.
const (
	MsgUnknownCommandName = "Unknown command name"
	MsgUnknownCommandType = "Unknown command type"
	MsgUnknownComponent   = "Unknown component interaction"
	MsgUnknownModal       = "Unknown modal interaction"
	MsgUnknownInteraction = "Unknown interaction type"
	MsgSomethingWentWrong = "Something went wrong"
)

type route struct {
	name    string
	handler discord.HandlerFunc
}

// Router dispatches interactions. Routes are registered at startup and read concurrently afterwards.
type Router struct {
	commands       map[string]route
	messageCommand *route
	components     map[string]route
	modals         map[string]route
}

// New returns an empty router.
func New() *Router {
	return &Router{
		commands:   make(map[string]route),
		components: make(map[string]route),
		modals:     make(map[string]route),
	}
}

// HandleCommand routes the chat input command name to h.
func (r *Router) HandleCommand(name string, h discord.HandlerFunc, mws ...middleware.Middleware) {
	r.commands[name] = newRoute("command:"+normalizeHandlerName(name), h, mws)
}

// HandleMessageCommand routes every message context-menu command to h.
func (r *Router) HandleMessageCommand(h discord.HandlerFunc, mws ...middleware.Middleware) {
	rt := newRoute("message_command", h, mws)
	r.messageCommand = &rt
}

// HandleComponent routes a message component custom id to h.
func (r *Router) HandleComponent(customID string, h discord.HandlerFunc, mws ...middleware.Middleware) {
	r.components[customID] = newRoute("component:"+normalizeHandlerName(customID), h, mws)
}

// HandleModal routes a modal custom id to h.
func (r *Router) HandleModal(customID string, h discord.HandlerFunc, mws ...middleware.Middleware) {
	r.modals[customID] = newRoute("modal:"+normalizeHandlerName(customID), h, mws)
}

func newRoute(name string, h discord.HandlerFunc, mws []middleware.Middleware) route {
	chain := append([]middleware.Middleware{middleware.LoggerMiddleware, middleware.RecoverMiddleware}, mws...)
	return route{name: name, handler: middleware.Chain(h, chain...)}
}

// Dispatch answers i. It always returns a response; handler errors become a generic reply.
func (r *Router) Dispatch(ctx context.Context, i *discordgo.Interaction) *discordgo.InteractionResponse {
	switch i.Type {
	case discordgo.InteractionPing:
		return discord.Pong()

	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		switch data.CommandType {
		case discordgo.ChatApplicationCommand:
			if rt, ok := r.commands[data.Name]; ok {
				return r.run(ctx, rt, i)
			}
			return r.unknown(ctx, i, MsgUnknownCommandName, data.Name)
		case discordgo.MessageApplicationCommand:
			if r.messageCommand != nil {
				return r.run(ctx, *r.messageCommand, i)
			}
		}
		return r.unknown(ctx, i, MsgUnknownCommandType, data.Name)

	case discordgo.InteractionMessageComponent:
		id := i.MessageComponentData().CustomID
		if rt, ok := r.components[id]; ok {
			return r.run(ctx, rt, i)
		}
		return r.unknown(ctx, i, MsgUnknownComponent, id)

	case discordgo.InteractionModalSubmit:
		id := i.ModalSubmitData().CustomID
		if rt, ok := r.modals[id]; ok {
			return r.run(ctx, rt, i)
		}
		return r.unknown(ctx, i, MsgUnknownModal, id)
	}
	return r.unknown(ctx, i, MsgUnknownInteraction, "")
}

func (r *Router) run(ctx context.Context, rt route, i *discordgo.Interaction) *discordgo.InteractionResponse {
	var resp *discordgo.InteractionResponse
	_ = handleWithSummary(ctx, i, rt.name, time.Now(), func(ctx context.Context) error {
		var err error
		resp, err = rt.handler(ctx, i)
		return err
	})
	if resp == nil {
		return discord.Reply(MsgSomethingWentWrong)
	}
	return resp
}

func (r *Router) unknown(ctx context.Context, i *discordgo.Interaction, reply, name string) *discordgo.InteractionResponse {
	ctx = logger.WithInteractionMeta(ctx, i.ID, i.GuildID, discord.InvokerID(i))
	summary{
		handler: "unknown",
		start:   time.Now(),
		status:  "skip",
		outcome: "rejected",
		extra: []slog.Attr{
			slog.String("interaction_type", i.Type.String()),
			slog.String("cause", logger.SanitizeLimit(name, 100)),
		},
	}.log(ctx)
	return discord.Reply(reply)
}
