package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper_trader/internal/core"
	"paper_trader/internal/mock"
	apperrors "paper_trader/pkg/errors"
	phttp "paper_trader/pkg/http"
)

type fakeChannel struct {
	name string
	err  error

	mu   sync.Mutex
	sent []core.Notification
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Send(ctx context.Context, n core.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, n)
	return nil
}

func (c *fakeChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func TestManager_RequiredFailurePropagates(t *testing.T) {
	m := NewManager(mock.NewLogger())
	defer m.Close()

	ok := &fakeChannel{name: "primary"}
	bad := &fakeChannel{name: "broken", err: errors.New("boom")}
	m.AddRequired(ok)
	m.AddRequired(bad)

	err := m.Post(context.Background(), core.Notification{Plain: "hello"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Equal(t, 1, ok.count(), "earlier required channels still delivered")
}

func TestManager_OptionalFailureIsSwallowed(t *testing.T) {
	m := NewManager(mock.NewLogger())

	required := &fakeChannel{name: "primary"}
	flaky := &fakeChannel{name: "webhook", err: errors.New("down")}
	m.AddRequired(required)
	m.AddOptional(flaky)

	err := m.Post(context.Background(), core.Notification{Plain: "hello"})
	m.Close()

	assert.NoError(t, err)
	assert.Equal(t, 1, required.count())
}

func TestManager_OptionalDelivers(t *testing.T) {
	m := NewManager(mock.NewLogger())

	opt := &fakeChannel{name: "webhook"}
	m.AddOptional(opt)

	require.NoError(t, m.Post(context.Background(), core.Notification{Plain: "hello"}))
	m.Close()

	assert.Equal(t, 1, opt.count())
}

func TestManager_BestEffortSkipsRequiredChannels(t *testing.T) {
	m := NewManager(mock.NewLogger())

	required := &fakeChannel{name: "primary"}
	opt := &fakeChannel{name: "webhook"}
	m.AddRequired(required)
	m.AddOptional(opt)

	require.NoError(t, m.Post(context.Background(), core.Notification{
		Title:      "Fill Summary",
		BestEffort: true,
	}))
	m.Close()

	assert.Equal(t, 0, required.count())
	assert.Equal(t, 1, opt.count())
}

func TestBuildPayload_PlainOnly(t *testing.T) {
	p := buildPayload(core.Notification{Plain: "just text"})
	assert.Equal(t, "just text", p.Content)
	assert.Empty(t, p.Embeds)
}

func TestBuildPayload_FieldCap(t *testing.T) {
	n := core.Notification{Level: core.NotifyInfo, Title: "Portfolio"}
	for i := 0; i < core.MaxNotifyFields+10; i++ {
		n.Fields = append(n.Fields, core.NotifyField{Name: fmt.Sprintf("f%d", i), Value: "v"})
	}

	p := buildPayload(n)

	require.Len(t, p.Embeds, 1)
	assert.Len(t, p.Embeds[0].Fields, core.MaxNotifyFields)
}

func TestBuildPayload_LevelColors(t *testing.T) {
	assert.Equal(t, colorSuccess, buildPayload(core.Notification{Level: core.NotifySuccess, Title: "t"}).Embeds[0].Color)
	assert.Equal(t, colorError, buildPayload(core.Notification{Level: core.NotifyError, Title: "t"}).Embeds[0].Color)
	assert.Equal(t, colorInfo, buildPayload(core.Notification{Title: "t"}).Embeds[0].Color)
}

func TestBotChannel_PostsEmbed(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	ch := NewBotChannel(phttp.NewClient(srv.URL, 5*time.Second, 0, nil), "chan1")
	err := ch.Send(context.Background(), core.Notification{
		Level: core.NotifySuccess,
		Title: "Order Filled",
		Fields: []core.NotifyField{
			{Name: "Ticker", Value: "AAPL", Inline: true},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "/channels/chan1/messages", gotPath)
	assert.Contains(t, gotBody, `"title":"Order Filled"`)
	assert.Contains(t, gotBody, `"AAPL"`)
}

func TestBotChannel_ForbiddenIsPermissionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Missing Permissions"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	ch := NewBotChannel(phttp.NewClient(srv.URL, 5*time.Second, 0, nil), "chan1")
	err := ch.Send(context.Background(), core.Notification{Plain: "hello"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrPermissionDenied))
}

func TestBotChannel_ServerErrorIsNotPermissionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "oops", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ch := NewBotChannel(phttp.NewClient(srv.URL, 5*time.Second, 0, nil), "chan1")
	err := ch.Send(context.Background(), core.Notification{Plain: "hello"})

	require.Error(t, err)
	assert.False(t, errors.Is(err, apperrors.ErrPermissionDenied))
}
