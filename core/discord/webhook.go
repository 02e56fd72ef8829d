package discord

import (
	"fmt"
	"regexp"
	"strings"
)

var webhookIDRe = regexp.MustCompile(`[0-9]{17,19}`)

// Webhook is an incoming webhook's identity.
type Webhook struct {
	ID    string
	Token string
}

// ParseWebhookURL extracts the webhook id (the first 17-19 digit run) and the
// token (the path segment after it) from an incoming webhook URL.
func ParseWebhookURL(raw string) (Webhook, error) {
	loc := webhookIDRe.FindStringIndex(raw)
	if loc == nil {
		return Webhook{}, fmt.Errorf("discord: webhook url has no webhook id")
	}
	id := raw[loc[0]:loc[1]]
	rest := strings.TrimPrefix(raw[loc[1]:], "/")
	token, _, _ := strings.Cut(rest, "/")
	token, _, _ = strings.Cut(token, "?")
	if token == "" {
		return Webhook{}, fmt.Errorf("discord: webhook url has no token")
	}
	return Webhook{ID: id, Token: token}, nil
}
