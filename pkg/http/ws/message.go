package ws

import "encoding/json"

// MessageType constants for WebSocket protocol.
const (
	// Client -> Server
	TypeStart         = "start"
	TypeSelectAnswer  = "select_answer"
	TypeSubmitAnswer  = "submit_answer"
	TypeSkip          = "skip"
	TypeEndSession    = "end_session"
	TypeRetry         = "retry"
	TypeRestart       = "restart"
	TypeSetDifficulty = "set_difficulty"
	TypeRate          = "rate"
	TypeRequestState  = "request_state"

	// Server -> Client
	TypeState         = "state"
	TypeQuestionReady = "question_ready"
	TypeFeedback      = "feedback"
	TypeLoadFailed    = "load_failed"
	TypeTick          = "tick"
	TypeCompleted     = "completed"
	TypeRestarted     = "restarted"
	TypeRated         = "rated"
	TypeStatsUpdate   = "stats_update"
	TypeError         = "error"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id,omitempty"`
}

// NewMessage marshals payload into a Message.
func NewMessage(msgType string, payload any, requestID string) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: msgType, Payload: raw, RequestID: requestID}, nil
}

// Client Messages (incoming)

type AnswerPayload struct {
	Answer string `json:"answer"`
}

type SetDifficultyPayload struct {
	Difficulty string `json:"difficulty"`
}

type RatePayload struct {
	SequenceID int `json:"sequence_id"`
	Rating     int `json:"rating"`
}

// Server Messages (outgoing)

// QuestionPayload is the client view of a question. The correct answer is only revealed
// through feedback and results.
type QuestionPayload struct {
	Number  int      `json:"number"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

type FeedbackPayload struct {
	SequenceID int    `json:"sequence_id"`
	Correct    bool   `json:"correct"`
	Message    string `json:"message"`
}

type StatePayload struct {
	SessionID            string           `json:"session_id"`
	Status               string           `json:"status"`
	Difficulty           string           `json:"difficulty"`
	Question             *QuestionPayload `json:"question,omitempty"`
	PendingAnswer        string           `json:"pending_answer,omitempty"`
	Feedback             *FeedbackPayload `json:"feedback,omitempty"`
	AnsweredCount        int              `json:"answered_count"`
	TotalQuestions       int              `json:"total_questions"`
	TimeRemainingSeconds int              `json:"time_remaining_seconds"`
	CompletionReason     string           `json:"completion_reason,omitempty"`
	LastError            string           `json:"last_error,omitempty"`
}

type QuestionReadyPayload struct {
	SessionID            string          `json:"session_id"`
	Question             QuestionPayload `json:"question"`
	TotalQuestions       int             `json:"total_questions"`
	TimeRemainingSeconds int             `json:"time_remaining_seconds"`
}

type FeedbackEventPayload struct {
	SessionID     string          `json:"session_id"`
	Feedback      FeedbackPayload `json:"feedback"`
	AnsweredCount int             `json:"answered_count"`
}

type LoadFailedPayload struct {
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
}

type TickPayload struct {
	SessionID        string `json:"session_id"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

type RecordPayload struct {
	SequenceID    int    `json:"sequence_id"`
	QuestionText  string `json:"question_text"`
	UserAnswer    string `json:"user_answer"`
	CorrectAnswer string `json:"correct_answer"`
	IsCorrect     bool   `json:"is_correct"`
	Skipped       bool   `json:"skipped"`
}

type SummaryPayload struct {
	Total       int     `json:"total"`
	Correct     int     `json:"correct"`
	Incorrect   int     `json:"incorrect"`
	Skipped     int     `json:"skipped"`
	CorrectRate float64 `json:"correct_rate"`
}

type CompletedPayload struct {
	SessionID  string          `json:"session_id"`
	Reason     string          `json:"reason"`
	Difficulty string          `json:"difficulty"`
	Summary    SummaryPayload  `json:"summary"`
	Records    []RecordPayload `json:"records"`
}

type RatedPayload struct {
	SessionID  string `json:"session_id"`
	SequenceID int    `json:"sequence_id"`
	Rating     int    `json:"rating"`
}

type StatsUpdatePayload struct {
	Difficulty  string  `json:"difficulty"`
	Sessions    int64   `json:"sessions"`
	Answered    int64   `json:"answered"`
	Correct     int64   `json:"correct"`
	Skipped     int64   `json:"skipped"`
	CorrectRate float64 `json:"correct_rate"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
