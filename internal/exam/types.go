package exam

import (
	"fmt"
	"strings"
)

// Difficulty is the exam level sent to the question generator.
type Difficulty string

// Supported difficulties.
const (
	DifficultyBasic        Difficulty = "TOEFL Basic"
	DifficultyAdvanced     Difficulty = "TOEFL Advanced"
	DifficultyProfessional Difficulty = "TOEFL Professional"
	DifficultyNative       Difficulty = "TOEFL Native"
)

// Difficulties lists the selectable levels in display order.
var Difficulties = []Difficulty{
	DifficultyBasic,
	DifficultyAdvanced,
	DifficultyProfessional,
	DifficultyNative,
}

// ParseDifficulty resolves a user-supplied level, ignoring case and surrounding spaces.
func ParseDifficulty(s string) (Difficulty, error) {
	s = strings.TrimSpace(s)
	for _, d := range Difficulties {
		if strings.EqualFold(string(d), s) {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

// Slug is a lower-case, dash separated form used for keys and labels.
func (d Difficulty) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(d)), " ", "-")
}

// Status is the session lifecycle state.
type Status string

// Session lifecycle states.
const (
	StatusIdle           Status = "idle"
	StatusLoading        Status = "loading"
	StatusAwaitingAnswer Status = "awaiting_answer"
	StatusLoadFailed     Status = "load_failed"
	StatusCompleted      Status = "completed"
)

// CompletionReason records which terminal edge closed the session.
type CompletionReason string

// Completion reasons.
const (
	ReasonAllAnswered CompletionReason = "all_answered"
	ReasonTimeout     CompletionReason = "timeout"
	ReasonEnded       CompletionReason = "ended"
)

// SkippedAnswer is stored as the user answer of a skipped question.
const SkippedAnswer = "Skipped"

// Question is a parsed generator response. Options keep generation order.
type Question struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
}

func (q Question) clone() Question {
	opts := make([]string, len(q.Options))
	copy(opts, q.Options)
	q.Options = opts
	return q
}

// AnswerRecord is written once per resolved question. Skipped questions carry SkippedAnswer as
// the user answer; Skipped tells them apart from a submitted answer with the same text.
type AnswerRecord struct {
	SequenceID    int    `json:"sequence_id"`
	QuestionText  string `json:"question_text"`
	UserAnswer    string `json:"user_answer"`
	CorrectAnswer string `json:"correct_answer"`
	IsCorrect     bool   `json:"is_correct"`
	Skipped       bool   `json:"skipped"`
}

// Feedback describes the outcome of the last submitted answer.
type Feedback struct {
	SequenceID int    `json:"sequence_id"`
	Correct    bool   `json:"correct"`
	Message    string `json:"message"`
}

func newFeedback(rec AnswerRecord) Feedback {
	msg := "Correct!"
	if !rec.IsCorrect {
		msg = fmt.Sprintf("Incorrect. The correct answer is %s.", rec.CorrectAnswer)
	}
	return Feedback{SequenceID: rec.SequenceID, Correct: rec.IsCorrect, Message: msg}
}

// State is a point-in-time copy of a session, safe to hand to renderers.
type State struct {
	Status               Status           `json:"status"`
	Difficulty           Difficulty       `json:"difficulty"`
	CurrentQuestion      *Question        `json:"current_question,omitempty"`
	PendingAnswer        string           `json:"pending_answer,omitempty"`
	Feedback             *Feedback        `json:"feedback,omitempty"`
	AnsweredCount        int              `json:"answered_count"`
	TotalQuestions       int              `json:"total_questions"`
	TimeRemainingSeconds int              `json:"time_remaining_seconds"`
	Records              []AnswerRecord   `json:"records"`
	CompletionReason     CompletionReason `json:"completion_reason,omitempty"`
	LastError            string           `json:"last_error,omitempty"`
}

// QuestionNumber is the 1-based position of the question being shown or loaded.
func (s State) QuestionNumber() int {
	return s.AnsweredCount + 1
}
