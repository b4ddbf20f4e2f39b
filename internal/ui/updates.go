package ui

import (
	"context"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rovshanmuradov/pump-sniper/internal/engine"
)

// HealthMsg carries an engine health snapshot to the dashboard.
type HealthMsg engine.HealthSnapshot

// UpdateSender forwards engine snapshots to the program without ever
// blocking the engine loop. Only the latest snapshot matters, so a full
// buffer drops the update.
type UpdateSender struct {
	ch      chan engine.HealthSnapshot
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewUpdateSender creates a sender with a small buffer.
func NewUpdateSender() *UpdateSender {
	return &UpdateSender{ch: make(chan engine.HealthSnapshot, 4)}
}

// Publish is suitable as engine.Engine.OnHealth.
func (s *UpdateSender) Publish(snap engine.HealthSnapshot) {
	select {
	case s.ch <- snap:
		s.sent.Add(1)
	default:
		s.dropped.Add(1)
	}
}

// Run delivers queued snapshots through send until ctx is done.
func (s *UpdateSender) Run(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-s.ch:
			send(HealthMsg(snap))
		}
	}
}

// Stats returns sent and dropped counts.
func (s *UpdateSender) Stats() (sent, dropped uint64) {
	return s.sent.Load(), s.dropped.Load()
}
