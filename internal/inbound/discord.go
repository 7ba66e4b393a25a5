// Package inbound implements the source adapters that poll a transport for
// command items: a Discord channel and a GitHub issue tracker. Both share
// the cursor state contract: Fetch returns only new, non-bot items oldest
// first, and Commit persists the advanced cursor.
package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"paper_trader/internal/config"
	"paper_trader/internal/core"
	apperrors "paper_trader/pkg/errors"
	phttp "paper_trader/pkg/http"
)

const (
	ackEmoji     = "✅" // white heavy check mark
	invalidEmoji = "❌" // cross mark
)

type discordAuthorizer struct {
	token config.Secret
}

func (a *discordAuthorizer) Authorize(req *http.Request) error {
	if a.token.Value() == "" {
		return apperrors.ErrMissingCredential
	}
	req.Header.Set("Authorization", "Bot "+a.token.Value())
	return nil
}

// DiscordSource polls one channel for command messages via the REST API.
// Processed messages are acknowledged with a reaction; the cursor is the id
// of the newest message seen.
type DiscordSource struct {
	client     *phttp.Client
	states     core.StateStore
	channelID  string
	fetchLimit int
	logger     core.Logger

	state *core.CursorState
}

// NewDiscordSource creates the channel adapter.
func NewDiscordSource(client *phttp.Client, states core.StateStore, cfg config.DiscordConfig, logger core.Logger) *DiscordSource {
	return &DiscordSource{
		client:     client,
		states:     states,
		channelID:  cfg.ChannelID,
		fetchLimit: cfg.FetchLimit,
		logger:     logger.WithField("component", "discord_source"),
	}
}

// NewDiscordClient builds the HTTP client for the Discord REST API.
func NewDiscordClient(cfg config.DiscordConfig, requestTimeout time.Duration) *phttp.Client {
	return phttp.NewClient(cfg.BaseURL, requestTimeout, 0, &discordAuthorizer{token: cfg.BotToken})
}

func (s *DiscordSource) Name() string { return "discord" }

type discordMessage struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Author    struct {
		Username string `json:"username"`
		Bot      bool   `json:"bot"`
	} `json:"author"`
}

// Fetch returns new channel messages after the saved cursor, oldest first,
// paging until a short page. Bot-authored messages advance the cursor but
// are never returned.
func (s *DiscordSource) Fetch(ctx context.Context) ([]core.Item, error) {
	if err := s.loadState(ctx); err != nil {
		return nil, err
	}

	var items []core.Item
	total := 0
	for {
		prevCursor := s.state.LastItemID
		params := map[string]string{"limit": strconv.Itoa(s.fetchLimit)}
		if s.state.LastItemID != "" {
			params["after"] = s.state.LastItemID
		}

		body, err := s.client.Get(ctx, "/channels/"+s.channelID+"/messages", params)
		if err != nil {
			return nil, wrapTransportErr("discord fetch", err)
		}

		var messages []discordMessage
		if err := json.Unmarshal(body, &messages); err != nil {
			return nil, fmt.Errorf("malformed discord response: %w", err)
		}
		total += len(messages)

		// the API returns newest first
		for i := len(messages) - 1; i >= 0; i-- {
			m := messages[i]
			s.advanceCursor(m.ID)
			if m.Author.Bot || s.state.Processed(m.ID) {
				continue
			}
			created, _ := time.Parse(time.RFC3339, m.Timestamp)
			items = append(items, core.Item{
				ID:      m.ID,
				Author:  m.Author.Username,
				FromBot: m.Author.Bot,
				Text:    m.Content,
				Created: created,
			})
		}

		// a non-advancing cursor would loop on the same page forever
		if len(messages) < s.fetchLimit || s.state.LastItemID == prevCursor {
			break
		}
	}

	s.logger.Debug("fetched messages", "total", total, "new", len(items))
	return items, nil
}

// Ack reacts to the message. The per-item reply text is carried by the
// notifier instead, so it is ignored here.
func (s *DiscordSource) Ack(ctx context.Context, item core.Item, reply string) error {
	if err := s.react(ctx, item.ID, ackEmoji); err != nil {
		return err
	}
	s.state.MarkProcessed(item.ID)
	return nil
}

// Invalid reacts with a cross so the author sees the command was seen but
// not understood.
func (s *DiscordSource) Invalid(ctx context.Context, item core.Item) error {
	if err := s.react(ctx, item.ID, invalidEmoji); err != nil {
		return err
	}
	s.state.MarkProcessed(item.ID)
	return nil
}

// Commit persists the advanced cursor.
func (s *DiscordSource) Commit(ctx context.Context) error {
	if s.state == nil {
		return nil
	}
	return s.states.SaveState(ctx, s.state)
}

func (s *DiscordSource) react(ctx context.Context, messageID, emoji string) error {
	path := fmt.Sprintf("/channels/%s/messages/%s/reactions/%s/@me",
		s.channelID, messageID, url.PathEscape(emoji))
	if _, err := s.client.Put(ctx, path, nil); err != nil {
		return wrapTransportErr("discord react", err)
	}
	return nil
}

func (s *DiscordSource) loadState(ctx context.Context) error {
	if s.state != nil {
		return nil
	}
	state, err := s.states.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("failed to load cursor state: %w", err)
	}
	s.state = state
	return nil
}

// advanceCursor keeps the numerically largest message id seen. Discord ids
// are snowflakes: larger number means later message.
func (s *DiscordSource) advanceCursor(id string) {
	if snowflakeLess(s.state.LastItemID, id) {
		s.state.LastItemID = id
	}
}

func snowflakeLess(a, b string) bool {
	if a == "" {
		return true
	}
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// wrapTransportErr classifies an HTTP failure: auth failures are terminal
// and surface as a permission error, everything else is a transient network
// failure left for the next run.
func wrapTransportErr(op string, err error) error {
	var apiErr *phttp.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusForbidden || apiErr.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%s: %w: %v", op, apperrors.ErrPermissionDenied, err)
		}
	}
	return fmt.Errorf("%s: %w: %v", op, apperrors.ErrNetwork, err)
}
