package discord

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// APIError is a non-2xx answer from Discord. Its text is "<code> <reason>",
// which is what users see when an outbound call fails.
type APIError struct {
	Status int
	Text   string
}

func (e *APIError) Error() string {
	return e.Text
}

// Code returns an error code for log summaries.
func (e *APIError) Code() string {
	return "HTTP_" + strconv.Itoa(e.Status)
}

// IsNotFound reports whether err is a Discord 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// StatusText renders err the way it is shown to users: the HTTP status line
// for API errors, the plain message otherwise.
func StatusText(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Text
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// translate converts discordgo REST errors to *APIError and wraps the rest with op.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		text := strings.TrimSpace(restErr.Response.Status)
		if text == "" {
			text = fmt.Sprintf("%d %s", restErr.Response.StatusCode, http.StatusText(restErr.Response.StatusCode))
		}
		return &APIError{Status: restErr.Response.StatusCode, Text: text}
	}
	return fmt.Errorf("discord: %s: %w", op, err)
}
