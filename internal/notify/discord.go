package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"paper_trader/internal/core"
	apperrors "paper_trader/pkg/errors"
	phttp "paper_trader/pkg/http"
)

// Embed colors per level.
const (
	colorInfo    = 0x3498DB
	colorSuccess = 0x2ECC71
	colorWarning = 0xF1C40F
	colorError   = 0xE74C3C
)

func levelColor(level core.NotifyLevel) int {
	switch level {
	case core.NotifySuccess:
		return colorSuccess
	case core.NotifyWarning:
		return colorWarning
	case core.NotifyError:
		return colorError
	default:
		return colorInfo
	}
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type messagePayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []embed `json:"embeds,omitempty"`
}

// buildPayload converts a notification to the wire shape, truncating the
// field list to the embed limit.
func buildPayload(n core.Notification) messagePayload {
	if n.Title == "" && len(n.Fields) == 0 {
		return messagePayload{Content: n.Plain}
	}

	fields := n.Fields
	if len(fields) > core.MaxNotifyFields {
		fields = fields[:core.MaxNotifyFields]
	}

	e := embed{
		Title:       n.Title,
		Description: n.Description,
		Color:       levelColor(n.Level),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	for _, f := range fields {
		e.Fields = append(e.Fields, embedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return messagePayload{Content: n.Plain, Embeds: []embed{e}}
}

// BotChannel posts messages to a Discord channel as the bot user.
type BotChannel struct {
	client    *phttp.Client
	channelID string
}

// NewBotChannel creates the channel over an authorized Discord API client.
func NewBotChannel(client *phttp.Client, channelID string) *BotChannel {
	return &BotChannel{client: client, channelID: channelID}
}

func (c *BotChannel) Name() string { return "discord-bot" }

func (c *BotChannel) Send(ctx context.Context, n core.Notification) error {
	path := "/channels/" + c.channelID + "/messages"
	if _, err := c.client.Post(ctx, path, buildPayload(n)); err != nil {
		return wrapSendErr("discord message", err)
	}
	return nil
}

// WebhookChannel posts the same payload through a Discord webhook. It needs
// no bot credentials, so it serves as a secondary best-effort destination.
type WebhookChannel struct {
	client *phttp.Client
}

// NewWebhookChannel creates a channel over the full webhook URL.
func NewWebhookChannel(webhookURL string, requestTimeout time.Duration) *WebhookChannel {
	return &WebhookChannel{client: phttp.NewClient(webhookURL, requestTimeout, 0, nil)}
}

func (c *WebhookChannel) Name() string { return "discord-webhook" }

func (c *WebhookChannel) Send(ctx context.Context, n core.Notification) error {
	if _, err := c.client.Post(ctx, "", buildPayload(n)); err != nil {
		return wrapSendErr("webhook post", err)
	}
	return nil
}

// wrapSendErr classifies a delivery failure: a 401 or 403 means the
// credentials or channel permissions are wrong and no later run will do
// better, so it surfaces as a permission error.
func wrapSendErr(op string, err error) error {
	var apiErr *phttp.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusForbidden || apiErr.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%s: %w: %v", op, apperrors.ErrPermissionDenied, err)
		}
	}
	return fmt.Errorf("%s failed: %w", op, err)
}
