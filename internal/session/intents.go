package session

import (
	"errors"
	"fmt"

	"github.com/gokatarajesh/fluentflow/internal/exam"
	ws "github.com/gokatarajesh/fluentflow/pkg/http/ws"
)

// Rating bounds accepted from clients.
const (
	MinRating = 0
	MaxRating = 5
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrUnknownDifficulty = errors.New("unknown difficulty")
	ErrInvalidRating     = fmt.Errorf("rating must be between %d and %d", MinRating, MaxRating)
	ErrUnknownIntent     = errors.New("unknown intent")
)

// Intent is a user action addressed to a session, shared by the REST and WebSocket transports.
type Intent struct {
	Type       string `json:"type"`
	Answer     string `json:"answer,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	SequenceID int    `json:"sequence_id,omitempty"`
	Rating     int    `json:"rating,omitempty"`
}

// Apply dispatches in to the matching session operation. For submit_answer it returns the
// feedback of the graded answer.
func Apply(s *exam.Session, in Intent) (*exam.Feedback, error) {
	if in.Type == ws.TypeSubmitAnswer {
		fb, err := s.Answer(in.Answer)
		if err != nil {
			return nil, err
		}
		return &fb, nil
	}
	return nil, apply(s, in)
}

func apply(s *exam.Session, in Intent) error {
	switch in.Type {
	case ws.TypeStart:
		return s.Start()
	case ws.TypeSelectAnswer:
		return s.SelectAnswer(in.Answer)
	case ws.TypeSkip:
		return s.Skip()
	case ws.TypeEndSession:
		return s.EndSession()
	case ws.TypeRetry:
		return s.Retry()
	case ws.TypeRestart:
		return s.Restart()
	case ws.TypeSetDifficulty:
		d, err := parseDifficulty(in.Difficulty)
		if err != nil {
			return err
		}
		return s.SetDifficulty(d)
	case ws.TypeRate:
		if err := ValidateRating(in.Rating); err != nil {
			return err
		}
		return s.Rate(in.SequenceID, in.Rating)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownIntent, in.Type)
	}
}

// ValidateRating enforces the 0..5 range before a rating reaches the session.
func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return ErrInvalidRating
	}
	return nil
}

func parseDifficulty(raw string) (exam.Difficulty, error) {
	d, err := exam.ParseDifficulty(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownDifficulty, raw)
	}
	return d, nil
}
