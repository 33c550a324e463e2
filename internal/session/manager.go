package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/fluentflow/internal/exam"
)

// Gauge tracks how many sessions are live.
type Gauge interface {
	SessionOpened()
	SessionClosed()
}

// forgetter is implemented by listeners that keep per-session state.
type forgetter interface {
	Forget(sessionID string)
}

// Options configures the sessions a Manager creates and how long they are kept.
type Options struct {
	TotalQuestions    int
	TimeLimitSeconds  int
	TickInterval      time.Duration
	RequestTimeout    time.Duration
	DefaultDifficulty exam.Difficulty
	IdleTTL           time.Duration
	JanitorInterval   time.Duration

	// Listeners receive every event of every session, after the WebSocket bridge.
	Listeners []exam.Listener
	Gauge     Gauge

	Scheduler exam.Scheduler
	Launch    exam.Launcher
}

type entry struct {
	session      *exam.Session
	lastActivity time.Time
}

// Manager owns the live sessions of the process.
type Manager struct {
	source exam.QuestionSource
	hub    sessionBroadcaster
	bridge *EventBridge
	opts   Options
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry
}

// NewManager creates a session registry.
func NewManager(source exam.QuestionSource, hub sessionBroadcaster, opts Options, logger zerolog.Logger) *Manager {
	if opts.DefaultDifficulty == "" {
		opts.DefaultDifficulty = exam.DifficultyBasic
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 30 * time.Minute
	}
	if opts.JanitorInterval <= 0 {
		opts.JanitorInterval = time.Minute
	}
	return &Manager{
		source:   source,
		hub:      hub,
		bridge:   NewEventBridge(hub, logger),
		opts:     opts,
		logger:   logger.With().Str("component", "session_manager").Logger(),
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// Create registers a new idle session. An empty difficulty selects the configured default.
func (m *Manager) Create(difficulty string) (*exam.Session, error) {
	level := m.opts.DefaultDifficulty
	if difficulty != "" {
		d, err := parseDifficulty(difficulty)
		if err != nil {
			return nil, err
		}
		level = d
	}

	id := uuid.NewString()
	listeners := exam.Fanout{exam.ListenerFunc(m.observe), m.bridge}
	listeners = append(listeners, m.opts.Listeners...)

	s := exam.NewSession(m.source, exam.Options{
		ID:               id,
		TotalQuestions:   m.opts.TotalQuestions,
		TimeLimitSeconds: m.opts.TimeLimitSeconds,
		TickInterval:     m.opts.TickInterval,
		RequestTimeout:   m.opts.RequestTimeout,
		Difficulty:       level,
		Scheduler:        m.opts.Scheduler,
		Launch:           m.opts.Launch,
		Listener:         listeners,
		Logger:           m.logger,
	})

	m.mu.Lock()
	m.sessions[id] = &entry{session: s, lastActivity: m.now()}
	m.mu.Unlock()

	if m.opts.Gauge != nil {
		m.opts.Gauge.SessionOpened()
	}
	m.logger.Info().Str("session_id", id).Str("difficulty", string(level)).Msg("session created")
	return s, nil
}

// Get returns a live session and marks it active.
func (m *Manager) Get(id string) (*exam.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	e.lastActivity = m.now()
	return e.session, nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Remove closes and forgets a session. It reports whether the session existed.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	m.release(id, e.session)
	return true
}

// Sweep evicts sessions that are not running and have been inactive longer than the idle TTL.
// Running sessions always reach completion through their own clock first.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.opts.IdleTTL)

	var stale []string
	m.mu.RLock()
	for id, e := range m.sessions {
		if e.lastActivity.Before(cutoff) && !running(e.session.Status()) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	evicted := 0
	for _, id := range stale {
		if m.Remove(id) {
			evicted++
		}
	}
	if evicted > 0 {
		m.logger.Info().Int("evicted", evicted).Int("remaining", m.Len()).Msg("idle sessions evicted")
	}
	return evicted
}

// Run blocks until context cancellation, sweeping idle sessions periodically.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.opts.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Shutdown closes every session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*entry)
	m.mu.Unlock()

	for id, e := range all {
		m.release(id, e.session)
	}
}

func (m *Manager) release(id string, s *exam.Session) {
	s.Close()
	m.hub.CloseSession(id)
	for _, l := range m.opts.Listeners {
		if f, ok := l.(forgetter); ok {
			f.Forget(id)
		}
	}
	if m.opts.Gauge != nil {
		m.opts.Gauge.SessionClosed()
	}
	m.logger.Debug().Str("session_id", id).Msg("session released")
}

// observe records activity for every event except clock ticks.
func (m *Manager) observe(e exam.Event) {
	if e.Type == exam.EventTick {
		return
	}
	m.mu.Lock()
	if en, ok := m.sessions[e.SessionID]; ok {
		en.lastActivity = m.now()
	}
	m.mu.Unlock()
}

func running(st exam.Status) bool {
	switch st {
	case exam.StatusLoading, exam.StatusAwaitingAnswer, exam.StatusLoadFailed:
		return true
	}
	return false
}
