// Package notify delivers finished-session summaries to people.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/vthunder/focuspet/internal/focus"
	"github.com/vthunder/focuspet/internal/format"
	"github.com/vthunder/focuspet/internal/logging"
)

// DefaultMaxAttempts bounds retries of a failed send
const DefaultMaxAttempts = 3

// Sender is the part of a discordgo session the notifier needs
type Sender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts a summary to a channel after each session
type Discord struct {
	sender      Sender
	channelID   string
	maxAttempts int
	backoff     time.Duration
}

// NewDiscord creates a notifier on an existing sender
func NewDiscord(sender Sender, channelID string) *Discord {
	return &Discord{
		sender:      sender,
		channelID:   channelID,
		maxAttempts: DefaultMaxAttempts,
		backoff:     time.Second,
	}
}

// DialDiscord opens a bot session for token. Sending over REST does not need
// the gateway, so the session is not opened.
func DialDiscord(token, channelID string) (*Discord, error) {
	if token == "" || channelID == "" {
		return nil, errors.New("discord token and channel are required")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return NewDiscord(s, channelID), nil
}

// HandleSession sends r's summary, retrying transient failures
func (d *Discord) HandleSession(ctx context.Context, r focus.Record) error {
	content := format.SessionMessage(r)

	var err error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		_, err = d.sender.ChannelMessageSend(d.channelID, content, discordgo.WithContext(ctx))
		if err == nil {
			logging.Debug("notify", "sent summary for %s", r.ID)
			return nil
		}
		if isNonRetryableError(err) || attempt == d.maxAttempts {
			break
		}
		logging.Debug("notify", "send attempt %d failed: %v", attempt, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.backoff * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("discord notify: %w", err)
}

// isNonRetryableError reports client errors that a retry cannot fix
func isNonRetryableError(err error) bool {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		code := rest.Response.StatusCode
		return code >= 400 && code < 500
	}
	return false
}
