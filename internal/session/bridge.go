package session

import (
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/fluentflow/internal/exam"
	ws "github.com/gokatarajesh/fluentflow/pkg/http/ws"
)

type sessionBroadcaster interface {
	BroadcastToSession(sessionID string, msg ws.Message) error
	CloseSession(sessionID string)
}

// EventBridge forwards session events to the WebSocket connections watching the session.
type EventBridge struct {
	hub    sessionBroadcaster
	logger zerolog.Logger
}

// NewEventBridge creates a listener that broadcasts through hub.
func NewEventBridge(hub sessionBroadcaster, logger zerolog.Logger) *EventBridge {
	return &EventBridge{
		hub:    hub,
		logger: logger.With().Str("component", "session_bridge").Logger(),
	}
}

// OnEvent implements exam.Listener.
func (b *EventBridge) OnEvent(e exam.Event) {
	msgType, payload, ok := EventMessage(e)
	if !ok {
		return
	}
	msg, err := ws.NewMessage(msgType, payload, "")
	if err != nil {
		b.logger.Warn().Err(err).Str("type", msgType).Msg("failed to marshal session event")
		return
	}
	if err := b.hub.BroadcastToSession(e.SessionID, msg); err != nil {
		b.logger.Debug().Err(err).Str("session_id", e.SessionID).Str("type", msgType).Msg("broadcast incomplete")
	}
}

// EventMessage maps an event to its WebSocket message type and payload.
func EventMessage(e exam.Event) (string, any, bool) {
	switch e.Type {
	case exam.EventQuestionReady:
		if e.Question == nil {
			return "", nil, false
		}
		return ws.TypeQuestionReady, ws.QuestionReadyPayload{
			SessionID:            e.SessionID,
			Question:             QuestionPayload(e.State.QuestionNumber(), *e.Question),
			TotalQuestions:       e.State.TotalQuestions,
			TimeRemainingSeconds: e.State.TimeRemainingSeconds,
		}, true

	case exam.EventFeedback:
		if e.Feedback == nil {
			return "", nil, false
		}
		return ws.TypeFeedback, ws.FeedbackEventPayload{
			SessionID:     e.SessionID,
			Feedback:      feedbackPayload(*e.Feedback),
			AnsweredCount: e.State.AnsweredCount,
		}, true

	case exam.EventLoadFailed:
		msg := e.State.LastError
		if e.Err != nil {
			msg = e.Err.Error()
		}
		return ws.TypeLoadFailed, ws.LoadFailedPayload{
			SessionID: e.SessionID,
			Kind:      e.ErrorKind,
			Message:   msg,
		}, true

	case exam.EventTick:
		return ws.TypeTick, ws.TickPayload{
			SessionID:        e.SessionID,
			RemainingSeconds: e.State.TimeRemainingSeconds,
		}, true

	case exam.EventCompleted:
		p := ws.CompletedPayload{
			SessionID:  e.SessionID,
			Reason:     string(e.Reason),
			Difficulty: string(e.Difficulty),
			Records:    RecordPayloads(e.Records),
		}
		if e.Summary != nil {
			p.Summary = SummaryPayload(*e.Summary)
		}
		return ws.TypeCompleted, p, true

	case exam.EventRestarted:
		return ws.TypeRestarted, StatePayload(e.SessionID, e.State), true

	case exam.EventRated:
		return ws.TypeRated, ws.RatedPayload{
			SessionID:  e.SessionID,
			SequenceID: e.SequenceID,
			Rating:     e.Rating,
		}, true
	}
	return "", nil, false
}

// StatePayload is the client view of a snapshot. The correct answer of the open question is
// withheld.
func StatePayload(sessionID string, st exam.State) ws.StatePayload {
	p := ws.StatePayload{
		SessionID:            sessionID,
		Status:               string(st.Status),
		Difficulty:           string(st.Difficulty),
		PendingAnswer:        st.PendingAnswer,
		AnsweredCount:        st.AnsweredCount,
		TotalQuestions:       st.TotalQuestions,
		TimeRemainingSeconds: st.TimeRemainingSeconds,
		CompletionReason:     string(st.CompletionReason),
		LastError:            st.LastError,
	}
	if st.CurrentQuestion != nil {
		q := QuestionPayload(st.QuestionNumber(), *st.CurrentQuestion)
		p.Question = &q
	}
	if st.Feedback != nil {
		fb := feedbackPayload(*st.Feedback)
		p.Feedback = &fb
	}
	return p
}

// QuestionPayload strips the correct answer from q.
func QuestionPayload(number int, q exam.Question) ws.QuestionPayload {
	opts := make([]string, len(q.Options))
	copy(opts, q.Options)
	return ws.QuestionPayload{Number: number, Text: q.Text, Options: opts}
}

// SummaryPayload converts a result summary.
func SummaryPayload(s exam.Summary) ws.SummaryPayload {
	return ws.SummaryPayload{
		Total:       s.Total,
		Correct:     s.Correct,
		Incorrect:   s.Incorrect,
		Skipped:     s.Skipped,
		CorrectRate: s.CorrectRate,
	}
}

// RecordPayloads converts answer records in order.
func RecordPayloads(records []exam.AnswerRecord) []ws.RecordPayload {
	out := make([]ws.RecordPayload, len(records))
	for i, r := range records {
		out[i] = ws.RecordPayload{
			SequenceID:    r.SequenceID,
			QuestionText:  r.QuestionText,
			UserAnswer:    r.UserAnswer,
			CorrectAnswer: r.CorrectAnswer,
			IsCorrect:     r.IsCorrect,
			Skipped:       r.Skipped,
		}
	}
	return out
}

func feedbackPayload(f exam.Feedback) ws.FeedbackPayload {
	return ws.FeedbackPayload{SequenceID: f.SequenceID, Correct: f.Correct, Message: f.Message}
}
