// Package notify posts run outcomes back to humans: fill confirmations,
// rejections, valuations and fatal errors.
package notify

import (
	"context"
	"fmt"
	"time"

	"paper_trader/internal/core"
	"paper_trader/pkg/concurrency"
)

// Channel delivers one notification to one destination.
type Channel interface {
	Send(ctx context.Context, n core.Notification) error
	Name() string
}

// Manager fans a notification out to its channels. Required channels are
// sent synchronously and their failure fails the post; optional channels go
// through a small worker pool and failures are only logged.
type Manager struct {
	required []Channel
	optional []Channel
	pool     *concurrency.WorkerPool
	logger   core.Logger
}

// NewManager creates an empty manager.
func NewManager(logger core.Logger) *Manager {
	return &Manager{
		pool: concurrency.NewWorkerPool(concurrency.PoolConfig{
			Name:        "notify",
			MaxWorkers:  2,
			MaxCapacity: 16,
		}, logger),
		logger: logger.WithField("component", "notify"),
	}
}

// AddRequired registers a channel whose delivery failures propagate.
func (m *Manager) AddRequired(ch Channel) {
	m.required = append(m.required, ch)
	m.logger.Info("notification channel added", "name", ch.Name(), "required", true)
}

// AddOptional registers a best-effort channel.
func (m *Manager) AddOptional(ch Channel) {
	m.optional = append(m.optional, ch)
	m.logger.Info("notification channel added", "name", ch.Name(), "required", false)
}

// Post delivers n to every channel. The error reflects required channels
// only; best-effort notifications skip them entirely.
func (m *Manager) Post(ctx context.Context, n core.Notification) error {
	for _, ch := range m.optional {
		ch := ch
		err := m.pool.Submit(func() {
			sendCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := ch.Send(sendCtx, n); err != nil {
				m.logger.Warn("optional notification failed", "channel", ch.Name(), "error", err.Error())
			}
		})
		if err != nil {
			m.logger.Warn("optional notification dropped", "channel", ch.Name(), "error", err.Error())
		}
	}

	if n.BestEffort {
		return nil
	}

	for _, ch := range m.required {
		if err := ch.Send(ctx, n); err != nil {
			return fmt.Errorf("notification via %s failed: %w", ch.Name(), err)
		}
	}
	return nil
}

// Close drains the optional delivery pool.
func (m *Manager) Close() {
	m.pool.Stop()
}
