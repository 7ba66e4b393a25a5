package inbound

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"paper_trader/internal/config"
	"paper_trader/internal/core"
	apperrors "paper_trader/pkg/errors"
	phttp "paper_trader/pkg/http"
)

type githubAuthorizer struct {
	token config.Secret
}

func (a *githubAuthorizer) Authorize(req *http.Request) error {
	if a.token.Value() == "" {
		return apperrors.ErrMissingCredential
	}
	req.Header.Set("Authorization", "Bearer "+a.token.Value())
	req.Header.Set("Accept", "application/vnd.github+json")
	return nil
}

// GitHubSource polls open issues carrying the order label. An issue is one
// command: the title when set, otherwise the first line of the body.
// Processing closes the issue; the dedup window guards issues whose close
// failed or crashed and would otherwise replay an executed order.
type GitHubSource struct {
	repo       string
	orderLabel string
	sigil      string
	client     *phttp.Client
	states     core.StateStore
	logger     core.Logger

	state *core.CursorState
}

// NewGitHubSource creates the issue adapter.
func NewGitHubSource(client *phttp.Client, states core.StateStore, cfg config.GitHubConfig, sigil string, logger core.Logger) *GitHubSource {
	return &GitHubSource{
		repo:       cfg.Repository,
		orderLabel: cfg.OrderLabel,
		sigil:      sigil,
		client:     client,
		states:     states,
		logger:     logger.WithField("component", "github_source"),
	}
}

// NewGitHubClient builds the HTTP client for the GitHub REST API.
func NewGitHubClient(cfg config.GitHubConfig, requestTimeout time.Duration) *phttp.Client {
	return phttp.NewClient(cfg.BaseURL, requestTimeout, 0, &githubAuthorizer{token: cfg.Token})
}

func (s *GitHubSource) Name() string { return "github" }

type githubIssue struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	User   struct {
		Login string `json:"login"`
		Type  string `json:"type"`
	} `json:"user"`
	PullRequest *struct{} `json:"pull_request,omitempty"`
	CreatedAt   string    `json:"created_at"`
}

// Fetch returns labelled open issues oldest first, skipping pull requests,
// bot authors and issues already in the dedup window.
func (s *GitHubSource) Fetch(ctx context.Context) ([]core.Item, error) {
	if err := s.loadState(ctx); err != nil {
		return nil, err
	}

	body, err := s.client.Get(ctx, "/repos/"+s.repo+"/issues", map[string]string{
		"labels":    s.orderLabel,
		"state":     "open",
		"sort":      "created",
		"direction": "asc",
		"per_page":  "50",
	})
	if err != nil {
		return nil, wrapTransportErr("github fetch", err)
	}

	var issues []githubIssue
	if err := json.Unmarshal(body, &issues); err != nil {
		return nil, fmt.Errorf("malformed github response: %w", err)
	}

	items := make([]core.Item, 0, len(issues))
	for _, issue := range issues {
		if issue.PullRequest != nil || issue.User.Type == "Bot" {
			continue
		}
		id := strconv.Itoa(issue.Number)
		if s.state.Processed(id) {
			continue
		}
		created, _ := time.Parse(time.RFC3339, issue.CreatedAt)
		items = append(items, core.Item{
			ID:      id,
			Author:  issue.User.Login,
			Text:    commandText(issue),
			Created: created,
		})
	}

	s.logger.Debug("fetched issues", "new", len(items))
	return items, nil
}

// commandText takes the issue title, falling back to the first non-empty
// body line when the title is blank.
func commandText(issue githubIssue) string {
	if t := strings.TrimSpace(issue.Title); t != "" {
		return t
	}
	for _, line := range strings.Split(issue.Body, "\n") {
		if l := strings.TrimSpace(line); l != "" {
			return l
		}
	}
	return ""
}

// Ack posts the outcome as a comment and closes the issue. The item enters
// the dedup window before any transport call: the order is already executed,
// and a failed close must not let the still-open issue fill twice.
func (s *GitHubSource) Ack(ctx context.Context, item core.Item, reply string) error {
	s.state.MarkProcessed(item.ID)
	if reply != "" {
		if err := s.comment(ctx, item.ID, reply); err != nil {
			return err
		}
	}
	return s.close(ctx, item.ID)
}

// Invalid posts a usage comment, tags the issue and closes it.
func (s *GitHubSource) Invalid(ctx context.Context, item core.Item) error {
	usage := fmt.Sprintf(
		"Could not parse this as an order. Expected one of:\n\n"+
			"```\n%[1]sbuy TICKER QTY\n%[1]ssell TICKER QTY\n%[1]sprice TICKER\n%[1]sportfolio\n```",
		s.sigil)
	if err := s.comment(ctx, item.ID, usage); err != nil {
		return err
	}

	labelsPath := "/repos/" + s.repo + "/issues/" + item.ID + "/labels"
	if _, err := s.client.Post(ctx, labelsPath, map[string][]string{
		"labels": {s.orderLabel + ":invalid"},
	}); err != nil {
		return wrapTransportErr("github label", err)
	}

	if err := s.close(ctx, item.ID); err != nil {
		return err
	}
	s.state.MarkProcessed(item.ID)
	return nil
}

// Commit persists the dedup window.
func (s *GitHubSource) Commit(ctx context.Context) error {
	if s.state == nil {
		return nil
	}
	return s.states.SaveState(ctx, s.state)
}

func (s *GitHubSource) comment(ctx context.Context, issueID, text string) error {
	path := "/repos/" + s.repo + "/issues/" + issueID + "/comments"
	if _, err := s.client.Post(ctx, path, map[string]string{"body": text}); err != nil {
		return wrapTransportErr("github comment", err)
	}
	return nil
}

func (s *GitHubSource) close(ctx context.Context, issueID string) error {
	path := "/repos/" + s.repo + "/issues/" + issueID
	if _, err := s.client.Patch(ctx, path, map[string]string{"state": "closed"}); err != nil {
		return wrapTransportErr("github close", err)
	}
	return nil
}

func (s *GitHubSource) loadState(ctx context.Context) error {
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
