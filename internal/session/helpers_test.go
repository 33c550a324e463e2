package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/fluentflow/internal/exam"
	ws "github.com/gokatarajesh/fluentflow/pkg/http/ws"
)

// countingSource answers every request with the next numbered question, correct answer "b) y".
type countingSource struct {
	mu sync.Mutex
	n  int
}

func (c *countingSource) RequestQuestion(ctx context.Context, d exam.Difficulty) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return fmt.Sprintf("Question: Q%d? Options: a) x, b) y, c) z, d) w Correct Answer: b) y", c.n), nil
}

func noSchedule(context.Context, time.Duration, func()) {}

func syncLaunch(fn func()) { fn() }

type fakeHub struct {
	mu     sync.Mutex
	msgs   map[string][]ws.Message
	closed []string
}

func newFakeHub() *fakeHub {
	return &fakeHub{msgs: make(map[string][]ws.Message)}
}

func (h *fakeHub) BroadcastToSession(sessionID string, msg ws.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs[sessionID] = append(h.msgs[sessionID], msg)
	return nil
}

func (h *fakeHub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = append(h.closed, sessionID)
}

func (h *fakeHub) types(sessionID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.msgs[sessionID]))
	for _, m := range h.msgs[sessionID] {
		out = append(out, m.Type)
	}
	return out
}

func (h *fakeHub) closedSessions() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.closed...)
}

type countingGauge struct {
	mu             sync.Mutex
	opened, closed int
}

func (g *countingGauge) SessionOpened() { g.mu.Lock(); g.opened++; g.mu.Unlock() }
func (g *countingGauge) SessionClosed() { g.mu.Lock(); g.closed++; g.mu.Unlock() }

// forgettingListener records events and forgotten session ids.
type forgettingListener struct {
	mu        sync.Mutex
	events    []exam.EventType
	forgotten []string
}

func (l *forgettingListener) OnEvent(e exam.Event) {
	l.mu.Lock()
	l.events = append(l.events, e.Type)
	l.mu.Unlock()
}

func (l *forgettingListener) Forget(id string) {
	l.mu.Lock()
	l.forgotten = append(l.forgotten, id)
	l.mu.Unlock()
}

func testOptions(total int) Options {
	return Options{
		TotalQuestions:   total,
		TimeLimitSeconds: 60,
		TickInterval:     time.Second,
		IdleTTL:          time.Minute,
		Scheduler:        noSchedule,
		Launch:           syncLaunch,
	}
}

func newTestManager(hub sessionBroadcaster, opts Options) *Manager {
	return NewManager(&countingSource{}, hub, opts, zerolog.Nop())
}
