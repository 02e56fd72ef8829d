package middleware

import "github.com/m3rciful/questionbot/core/discord"

// Middleware wraps a handler.
type Middleware func(discord.HandlerFunc) discord.HandlerFunc

// Chain applies mws so that the first one is the outermost.
func Chain(h discord.HandlerFunc, mws ...Middleware) discord.HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
