package exam

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Defaults applied when Options leave a field zero.
const (
	DefaultTotalQuestions   = 20
	DefaultTimeLimitSeconds = 480
	DefaultTickInterval     = time.Second
)

// QuestionSource fetches raw question text from the generation service. Transport failures
// should wrap ErrNetwork; the session wraps anything else itself.
type QuestionSource interface {
	RequestQuestion(ctx context.Context, difficulty Difficulty) (string, error)
}

// Launcher runs a question request. The default starts a goroutine.
type Launcher func(fn func())

// Options configures a Session.
type Options struct {
	ID               string
	TotalQuestions   int
	TimeLimitSeconds int
	TickInterval     time.Duration
	RequestTimeout   time.Duration
	Difficulty       Difficulty
	Scheduler        Scheduler
	Launch           Launcher
	Listener         Listener
	Logger           zerolog.Logger
}

// Session is the quiz state machine. All transitions, clock ticks and request resolutions are
// serialised by mu; listener callbacks run after the lock is released.
type Session struct {
	id           string
	source       QuestionSource
	total        int
	tickInterval time.Duration
	reqTimeout   time.Duration
	schedule     Scheduler
	launch       Launcher
	listener     Listener
	logger       zerolog.Logger

	mu         sync.Mutex
	status     Status
	difficulty Difficulty
	current    *Question
	pending    string
	feedback   *Feedback
	records    []AnswerRecord
	reason     CompletionReason
	lastErr    error
	clock      *Clock
	ratings    *Ratings
	generation uint64
	cancelReq  context.CancelFunc
	stopTicker context.CancelFunc
	closed     bool

	queue    []Event
	draining bool
}

// request is an outstanding question fetch, tagged with the generation it belongs to.
type request struct {
	ctx        context.Context
	generation uint64
	difficulty Difficulty
	sequence   int
}

// batch collects the side effects of one transition.
type batch struct {
	events []Event
	req    *request
}

// NewSession builds an idle session.
func NewSession(source QuestionSource, opts Options) *Session {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.TotalQuestions <= 0 {
		opts.TotalQuestions = DefaultTotalQuestions
	}
	if opts.TimeLimitSeconds <= 0 {
		opts.TimeLimitSeconds = DefaultTimeLimitSeconds
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Difficulty == "" {
		opts.Difficulty = DifficultyBasic
	}
	if opts.Scheduler == nil {
		opts.Scheduler = Every
	}
	if opts.Launch == nil {
		opts.Launch = func(fn func()) { go fn() }
	}
	if opts.Listener == nil {
		opts.Listener = Fanout(nil)
	}

	return &Session{
		id:           opts.ID,
		source:       source,
		total:        opts.TotalQuestions,
		tickInterval: opts.TickInterval,
		reqTimeout:   opts.RequestTimeout,
		schedule:     opts.Scheduler,
		launch:       opts.Launch,
		listener:     opts.Listener,
		logger:       opts.Logger.With().Str("component", "exam_session").Str("session_id", opts.ID).Logger(),
		status:       StatusIdle,
		difficulty:   opts.Difficulty,
		clock:        NewClock(opts.TimeLimitSeconds),
		ratings:      NewRatings(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Start leaves idle, arms the clock and requests the first question.
func (s *Session) Start() error {
	return s.do(func(b *batch) error {
		if s.status != StatusIdle {
			return s.invalid("start")
		}
		s.clock.Arm()
		s.startTickerLocked()
		s.status = StatusLoading
		s.beginRequestLocked(b)
		s.logger.Info().Str("difficulty", string(s.difficulty)).Int("total_questions", s.total).Msg("session started")
		return nil
	})
}

// SelectAnswer records the user's current choice without submitting it.
func (s *Session) SelectAnswer(answer string) error {
	return s.do(func(b *batch) error {
		if s.status != StatusAwaitingAnswer {
			return s.invalid("select_answer")
		}
		s.pending = answer
		return nil
	})
}

// SubmitAnswer grades answer against the current question by exact string comparison. An
// empty answer falls back to the selected one.
func (s *Session) SubmitAnswer(answer string) error {
	_, err := s.Answer(answer)
	return err
}

// Answer is SubmitAnswer that also returns the feedback for the graded answer. The state's
// feedback is cleared when the next question arrives, which may happen before the caller
// takes a snapshot.
func (s *Session) Answer(answer string) (Feedback, error) {
	var fb Feedback
	err := s.do(func(b *batch) error {
		if s.status != StatusAwaitingAnswer {
			return s.invalid("submit_answer")
		}
		if answer == "" {
			answer = s.pending
		}
		fb = s.resolveQuestionLocked(b, answer, false)
		return nil
	})
	return fb, err
}

// Skip records the current question as skipped and moves on.
func (s *Session) Skip() error {
	return s.do(func(b *batch) error {
		if s.status != StatusAwaitingAnswer {
			return s.invalid("skip")
		}
		s.resolveQuestionLocked(b, SkippedAnswer, true)
		return nil
	})
}

// EndSession completes the session early. The open question, if any, is not recorded.
func (s *Session) EndSession() error {
	return s.do(func(b *batch) error {
		switch s.status {
		case StatusLoading, StatusAwaitingAnswer, StatusLoadFailed:
		default:
			return s.invalid("end_session")
		}
		s.completeLocked(b, ReasonEnded)
		return nil
	})
}

// Retry re-issues the question request after a failed load.
func (s *Session) Retry() error {
	return s.do(func(b *batch) error {
		if s.status != StatusLoadFailed {
			return s.invalid("retry")
		}
		s.status = StatusLoading
		s.lastErr = nil
		s.beginRequestLocked(b)
		return nil
	})
}

// Restart clears a completed session back to idle with a full clock.
func (s *Session) Restart() error {
	return s.do(func(b *batch) error {
		if s.status != StatusCompleted {
			return s.invalid("restart")
		}
		s.generation++
		s.records = nil
		s.current = nil
		s.pending = ""
		s.feedback = nil
		s.reason = ""
		s.lastErr = nil
		s.ratings.Clear()
		s.clock.Reset()
		s.status = StatusIdle
		b.events = append(b.events, s.eventLocked(EventRestarted))
		s.logger.Info().Msg("session restarted")
		return nil
	})
}

// SetDifficulty changes the level. The selector is locked once the session starts.
func (s *Session) SetDifficulty(d Difficulty) error {
	level, err := ParseDifficulty(string(d))
	if err != nil {
		return err
	}
	return s.do(func(b *batch) error {
		if s.status != StatusIdle {
			return s.invalid("set_difficulty")
		}
		s.difficulty = level
		return nil
	})
}

// Rate stores a rating for a question of the completed session. Values are not validated.
func (s *Session) Rate(sequenceID, value int) error {
	return s.do(func(b *batch) error {
		if s.status != StatusCompleted {
			return s.invalid("rate")
		}
		s.ratings.Rate(sequenceID, value)
		ev := s.eventLocked(EventRated)
		ev.SequenceID = sequenceID
		ev.Rating = value
		b.events = append(b.events, ev)
		return nil
	})
}

// Tick advances the countdown by one second and completes the session when it reaches zero.
// The session's scheduler calls it every TickInterval while the clock is armed.
func (s *Session) Tick() {
	_ = s.do(func(b *batch) error {
		if s.status == StatusIdle || s.status == StatusCompleted || !s.clock.Armed() {
			return nil
		}
		fired := s.clock.Tick()
		b.events = append(b.events, s.eventLocked(EventTick))
		if fired {
			s.logger.Info().Msg("time limit reached")
			s.completeLocked(b, ReasonTimeout)
		}
		return nil
	})
}

// Close stops the ticker and abandons any in-flight request. The session keeps its state.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.generation++
	s.cancelRequestLocked()
	s.stopTickerLocked()
	s.clock.Disarm()
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Difficulty returns the selected level.
func (s *Session) Difficulty() Difficulty {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.difficulty
}

// Results returns records, summary and ratings once the session is completed.
func (s *Session) Results() (Results, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusCompleted {
		return Results{}, s.invalid("results")
	}
	records := s.copyRecordsLocked()
	return Results{
		Difficulty: s.difficulty,
		Reason:     s.reason,
		Records:    records,
		Summary:    Summarize(records),
		Ratings:    s.ratings.Map(),
	}, nil
}

// Rating returns the rating of a question, 0 when unrated.
func (s *Session) Rating(sequenceID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ratings.Get(sequenceID)
}

func (s *Session) resolveQuestionLocked(b *batch, answer string, skipped bool) Feedback {
	rec := AnswerRecord{
		SequenceID:    len(s.records) + 1,
		QuestionText:  s.current.Text,
		UserAnswer:    answer,
		CorrectAnswer: s.current.CorrectAnswer,
		IsCorrect:     !skipped && answer == s.current.CorrectAnswer,
		Skipped:       skipped,
	}
	s.records = append(s.records, rec)
	s.current = nil
	s.pending = ""

	var fb Feedback
	if !skipped {
		fb = newFeedback(rec)
		s.feedback = &fb
		ev := s.eventLocked(EventFeedback)
		ev.Feedback = &fb
		b.events = append(b.events, ev)
	}

	s.logger.Debug().
		Int("sequence_id", rec.SequenceID).
		Bool("correct", rec.IsCorrect).
		Bool("skipped", skipped).
		Msg("question resolved")

	if len(s.records) >= s.total {
		s.completeLocked(b, ReasonAllAnswered)
		return fb
	}
	s.status = StatusLoading
	s.beginRequestLocked(b)
	return fb
}

func (s *Session) completeLocked(b *batch, reason CompletionReason) {
	s.generation++
	s.cancelRequestLocked()
	s.stopTickerLocked()
	s.clock.Disarm()
	s.status = StatusCompleted
	s.reason = reason
	s.current = nil
	s.pending = ""

	records := s.copyRecordsLocked()
	summary := Summarize(records)
	ev := s.eventLocked(EventCompleted)
	ev.Reason = reason
	ev.Summary = &summary
	ev.Records = records
	b.events = append(b.events, ev)

	s.logger.Info().
		Str("reason", string(reason)).
		Int("answered", summary.Total).
		Int("correct", summary.Correct).
		Float64("correct_rate", summary.CorrectRate).
		Msg("session completed")
}

func (s *Session) beginRequestLocked(b *batch) {
	s.cancelRequestLocked()
	s.generation++

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if s.reqTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), s.reqTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	s.cancelReq = cancel
	b.req = &request{
		ctx:        ctx,
		generation: s.generation,
		difficulty: s.difficulty,
		sequence:   len(s.records) + 1,
	}
}

func (s *Session) cancelRequestLocked() {
	if s.cancelReq != nil {
		s.cancelReq()
		s.cancelReq = nil
	}
}

func (s *Session) startTickerLocked() {
	s.stopTickerLocked()
	ctx, cancel := context.WithCancel(context.Background())
	s.stopTicker = cancel
	s.schedule(ctx, s.tickInterval, s.Tick)
}

func (s *Session) stopTickerLocked() {
	if s.stopTicker != nil {
		s.stopTicker()
		s.stopTicker = nil
	}
}

// fetch runs outside the lock on the launcher.
func (s *Session) fetch(req request) {
	raw, err := s.source.RequestQuestion(req.ctx, req.difficulty)
	var q Question
	if err != nil {
		if !errors.Is(err, ErrNetwork) && !errors.Is(err, ErrParse) {
			err = fmt.Errorf("%w: %w", ErrNetwork, err)
		}
	} else {
		q, err = Parse(raw)
	}
	s.deliver(req, q, err)
}

func (s *Session) deliver(req request, q Question, err error) {
	_ = s.do(func(b *batch) error {
		if req.generation != s.generation || s.status != StatusLoading {
			s.logger.Debug().
				Uint64("generation", req.generation).
				Uint64("current_generation", s.generation).
				Str("status", string(s.status)).
				Msg("discarding stale question result")
			return nil
		}
		s.cancelRequestLocked()

		if err != nil {
			s.status = StatusLoadFailed
			s.lastErr = err
			ev := s.eventLocked(EventLoadFailed)
			ev.Err = err
			ev.ErrorKind = ErrorKind(err)
			b.events = append(b.events, ev)
			s.logger.Warn().Err(err).Int("sequence_id", req.sequence).Msg("question load failed")
			return nil
		}

		s.current = &q
		s.feedback = nil
		s.pending = ""
		s.status = StatusAwaitingAnswer
		ev := s.eventLocked(EventQuestionReady)
		qc := q.clone()
		ev.Question = &qc
		b.events = append(b.events, ev)
		return nil
	})
}

// do applies fn under the lock, then publishes queued events and launches any request.
func (s *Session) do(fn func(b *batch) error) error {
	var b batch
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if err := fn(&b); err != nil {
		s.mu.Unlock()
		return err
	}
	s.queue = append(s.queue, b.events...)
	s.mu.Unlock()

	s.drain()
	if b.req != nil {
		req := *b.req
		s.launch(func() { s.fetch(req) })
	}
	return nil
}

// drain hands queued events to the listener. Only one goroutine drains at a time so events
// keep transition order; re-entrant calls leave their events for the active drainer.
func (s *Session) drain() {
	for {
		s.mu.Lock()
		if s.draining || len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		s.draining = true
		events := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, e := range events {
			s.listener.OnEvent(e)
		}

		s.mu.Lock()
		s.draining = false
		s.mu.Unlock()
	}
}

func (s *Session) invalid(intent string) error {
	return &TransitionError{Intent: intent, Status: s.status}
}

func (s *Session) eventLocked(t EventType) Event {
	return Event{
		Type:       t,
		SessionID:  s.id,
		State:      s.stateLocked(),
		Difficulty: s.difficulty,
	}
}

func (s *Session) stateLocked() State {
	st := State{
		Status:               s.status,
		Difficulty:           s.difficulty,
		PendingAnswer:        s.pending,
		AnsweredCount:        len(s.records),
		TotalQuestions:       s.total,
		TimeRemainingSeconds: s.clock.Remaining(),
		Records:              s.copyRecordsLocked(),
		CompletionReason:     s.reason,
	}
	if s.current != nil {
		q := s.current.clone()
		st.CurrentQuestion = &q
	}
	if s.feedback != nil {
		fb := *s.feedback
		st.Feedback = &fb
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

func (s *Session) copyRecordsLocked() []AnswerRecord {
	out := make([]AnswerRecord, len(s.records))
	copy(out, s.records)
	return out
}
