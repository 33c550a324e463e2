package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/fluentflow/internal/exam"
	ws "github.com/gokatarajesh/fluentflow/pkg/http/ws"
)

func TestManagerCreateAndGet(t *testing.T) {
	m := newTestManager(newFakeHub(), testOptions(3))

	s, err := m.Create("")
	require.NoError(t, err)
	assert.Equal(t, exam.DifficultyBasic, s.Difficulty())
	assert.Equal(t, exam.StatusIdle, s.Status())

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	s2, err := m.Create(" toefl professional ")
	require.NoError(t, err)
	assert.Equal(t, exam.DifficultyProfessional, s2.Difficulty())
	assert.Equal(t, 2, m.Len())

	_, err = m.Create("IELTS")
	assert.ErrorIs(t, err, ErrUnknownDifficulty)

	_, err = m.Get("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerBridgesEventsToHub(t *testing.T) {
	hub := newFakeHub()
	listener := &forgettingListener{}
	opts := testOptions(1)
	opts.Listeners = []exam.Listener{listener}
	m := newTestManager(hub, opts)

	s, err := m.Create("")
	require.NoError(t, err)
	require.NoError(t, s.Start())
	require.NoError(t, s.SubmitAnswer("b) y"))

	assert.Equal(t, []string{ws.TypeQuestionReady, ws.TypeFeedback, ws.TypeCompleted}, hub.types(s.ID()))

	first := hub.msgs[s.ID()][0]
	var ready ws.QuestionReadyPayload
	require.NoError(t, json.Unmarshal(first.Payload, &ready))
	assert.Equal(t, 1, ready.Question.Number)
	assert.Equal(t, "Q1?", ready.Question.Text)
	assert.NotContains(t, string(first.Payload), "correct")

	assert.Equal(t, []exam.EventType{exam.EventQuestionReady, exam.EventFeedback, exam.EventCompleted}, listener.events)
}

func TestManagerSweepEvictsOnlyIdleSessions(t *testing.T) {
	hub := newFakeHub()
	gauge := &countingGauge{}
	listener := &forgettingListener{}
	opts := testOptions(3)
	opts.Gauge = gauge
	opts.Listeners = []exam.Listener{listener}
	m := newTestManager(hub, opts)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	idle, err := m.Create("")
	require.NoError(t, err)
	active, err := m.Create("")
	require.NoError(t, err)
	require.NoError(t, active.Start())
	assert.Equal(t, 2, gauge.opened)

	now = now.Add(30 * time.Second)
	assert.Zero(t, m.Sweep(), "nothing is stale yet")

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, m.Sweep())

	_, err = m.Get(idle.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = m.Get(active.ID())
	assert.NoError(t, err, "running sessions are kept")

	assert.Equal(t, []string{idle.ID()}, hub.closedSessions())
	assert.Equal(t, []string{idle.ID()}, listener.forgotten)
	assert.Equal(t, 1, gauge.closed)
	assert.ErrorIs(t, idle.Start(), exam.ErrSessionClosed)
}

func TestManagerActivityDefersEviction(t *testing.T) {
	m := newTestManager(newFakeHub(), testOptions(3))
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	s, err := m.Create("")
	require.NoError(t, err)

	now = now.Add(50 * time.Second)
	_, err = m.Get(s.ID())
	require.NoError(t, err)

	now = now.Add(50 * time.Second)
	assert.Zero(t, m.Sweep())
}

func TestManagerRemoveAndShutdown(t *testing.T) {
	hub := newFakeHub()
	gauge := &countingGauge{}
	opts := testOptions(3)
	opts.Gauge = gauge
	m := newTestManager(hub, opts)

	a, err := m.Create("")
	require.NoError(t, err)
	b, err := m.Create("")
	require.NoError(t, err)

	assert.True(t, m.Remove(a.ID()))
	assert.False(t, m.Remove(a.ID()))
	assert.Equal(t, 1, m.Len())

	m.Shutdown()
	assert.Zero(t, m.Len())
	assert.ElementsMatch(t, []string{a.ID(), b.ID()}, hub.closedSessions())
	assert.Equal(t, 2, gauge.closed)
}

func TestEventMessage(t *testing.T) {
	summary := exam.Summary{Total: 2, Correct: 1, Incorrect: 1, Skipped: 1, CorrectRate: 50}
	records := []exam.AnswerRecord{
		{SequenceID: 1, QuestionText: "Q1?", UserAnswer: "b) y", CorrectAnswer: "b) y", IsCorrect: true},
		{SequenceID: 2, QuestionText: "Q2?", UserAnswer: exam.SkippedAnswer, CorrectAnswer: "a) x", Skipped: true},
	}

	typ, payload, ok := EventMessage(exam.Event{
		Type:       exam.EventCompleted,
		SessionID:  "s1",
		Reason:     exam.ReasonTimeout,
		Difficulty: exam.DifficultyNative,
		Summary:    &summary,
		Records:    records,
	})
	require.True(t, ok)
	assert.Equal(t, ws.TypeCompleted, typ)
	completed := payload.(ws.CompletedPayload)
	assert.Equal(t, "timeout", completed.Reason)
	assert.Equal(t, 50.0, completed.Summary.CorrectRate)
	require.Len(t, completed.Records, 2)
	assert.Equal(t, "Skipped", completed.Records[1].UserAnswer)
	assert.True(t, completed.Records[1].Skipped)

	typ, payload, ok = EventMessage(exam.Event{
		Type:      exam.EventLoadFailed,
		SessionID: "s1",
		Err:       exam.ErrNetwork,
		ErrorKind: "network",
	})
	require.True(t, ok)
	assert.Equal(t, ws.TypeLoadFailed, typ)
	assert.Equal(t, ws.LoadFailedPayload{SessionID: "s1", Kind: "network", Message: exam.ErrNetwork.Error()}, payload)

	typ, payload, ok = EventMessage(exam.Event{Type: exam.EventTick, SessionID: "s1", State: exam.State{TimeRemainingSeconds: 9}})
	require.True(t, ok)
	assert.Equal(t, ws.TypeTick, typ)
	assert.Equal(t, ws.TickPayload{SessionID: "s1", RemainingSeconds: 9}, payload)

	_, _, ok = EventMessage(exam.Event{Type: exam.EventQuestionReady})
	assert.False(t, ok, "question_ready without a question is dropped")
}

func TestStatePayloadHidesCorrectAnswer(t *testing.T) {
	st := exam.State{
		Status:          exam.StatusAwaitingAnswer,
		Difficulty:      exam.DifficultyBasic,
		CurrentQuestion: &exam.Question{Text: "Q3?", Options: []string{"a) x", "b) y"}, CorrectAnswer: "b) y"},
		AnsweredCount:   2,
		TotalQuestions:  5,
	}
	p := StatePayload("s1", st)
	require.NotNil(t, p.Question)
	assert.Equal(t, 3, p.Question.Number)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "correct_answer")
}
