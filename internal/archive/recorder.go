package archive

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/fluentflow/internal/db/repository"
	"github.com/gokatarajesh/fluentflow/internal/exam"
)

type runStore interface {
	InsertRun(ctx context.Context, run repository.Run, records []exam.AnswerRecord) error
	UpsertRating(ctx context.Context, runID uuid.UUID, sequenceID, rating int) error
	ListRuns(ctx context.Context, sessionID string, limit int) ([]repository.Run, error)
	ListAnswers(ctx context.Context, runID uuid.UUID) ([]repository.AnswerRow, error)
}

// Options configures a Recorder.
type Options struct {
	QueueSize    int
	WriteTimeout time.Duration
}

type jobKind int

const (
	jobInsertRun jobKind = iota
	jobRate
)

type job struct {
	kind    jobKind
	run     repository.Run
	records []exam.AnswerRecord
	runID   uuid.UUID
	seq     int
	rating  int
}

// Recorder archives completed sessions and their ratings to Postgres. Events are turned into
// jobs synchronously so ordering is kept; Run performs the writes.
type Recorder struct {
	store        runStore
	logger       zerolog.Logger
	jobs         chan job
	writeTimeout time.Duration
	now          func() time.Time
	newID        func() uuid.UUID

	mu   sync.Mutex
	runs map[string]uuid.UUID
}

// NewRecorder constructs an archive recorder.
func NewRecorder(store runStore, opts Options, logger zerolog.Logger) *Recorder {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	return &Recorder{
		store:        store,
		logger:       logger.With().Str("component", "archive_recorder").Logger(),
		jobs:         make(chan job, opts.QueueSize),
		writeTimeout: opts.WriteTimeout,
		now:          time.Now,
		newID:        uuid.New,
		runs:         make(map[string]uuid.UUID),
	}
}

// OnEvent queues archive writes for completions and ratings. A restart detaches the session
// from its archived run so later ratings are not attributed to it.
func (r *Recorder) OnEvent(e exam.Event) {
	switch e.Type {
	case exam.EventCompleted:
		if e.Summary == nil {
			return
		}
		runID := r.newID()
		r.mu.Lock()
		r.runs[e.SessionID] = runID
		r.mu.Unlock()

		r.enqueue(job{
			kind: jobInsertRun,
			run: repository.Run{
				RunID:          runID,
				SessionID:      e.SessionID,
				Difficulty:     e.Difficulty,
				Reason:         e.Reason,
				TotalQuestions: e.State.TotalQuestions,
				Summary:        *e.Summary,
				CompletedAt:    r.now(),
			},
			records: e.Records,
		})

	case exam.EventRated:
		runID, ok := r.RunID(e.SessionID)
		if !ok {
			return
		}
		r.enqueue(job{kind: jobRate, runID: runID, seq: e.SequenceID, rating: e.Rating})

	case exam.EventRestarted:
		r.Forget(e.SessionID)
	}
}

// RunID returns the archived run the session's current results belong to.
func (r *Recorder) RunID(sessionID string) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.runs[sessionID]
	return id, ok
}

// Forget drops the session's run mapping.
func (r *Recorder) Forget(sessionID string) {
	r.mu.Lock()
	delete(r.runs, sessionID)
	r.mu.Unlock()
}

// History returns the archived runs of a session, newest first, each with its answers.
func (r *Recorder) History(ctx context.Context, sessionID string, limit int) ([]repository.Run, error) {
	runs, err := r.store.ListRuns(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		answers, err := r.store.ListAnswers(ctx, runs[i].RunID)
		if err != nil {
			return nil, err
		}
		runs[i].Answers = answers
	}
	return runs, nil
}

// Run blocks until context cancellation, writing queued jobs in order.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-r.jobs:
			r.process(ctx, j)
		}
	}
}

func (r *Recorder) enqueue(j job) {
	select {
	case r.jobs <- j:
	default:
		r.logger.Warn().Str("session_id", j.run.SessionID).Str("run_id", j.runID.String()).Msg("archive queue full, dropping job")
	}
}

func (r *Recorder) process(ctx context.Context, j job) {
	ctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	switch j.kind {
	case jobInsertRun:
		if err := r.store.InsertRun(ctx, j.run, j.records); err != nil {
			r.logger.Warn().Err(err).Str("session_id", j.run.SessionID).Msg("failed to archive run")
			return
		}
		r.logger.Info().
			Str("session_id", j.run.SessionID).
			Str("run_id", j.run.RunID.String()).
			Int("answered", j.run.Summary.Total).
			Msg("run archived")
	case jobRate:
		if err := r.store.UpsertRating(ctx, j.runID, j.seq, j.rating); err != nil {
			r.logger.Warn().Err(err).Str("run_id", j.runID.String()).Int("sequence_id", j.seq).Msg("failed to archive rating")
		}
	}
}
