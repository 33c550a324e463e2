package exam

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrectRate(t *testing.T) {
	assert.Equal(t, 0.0, CorrectRate(nil))

	all := []AnswerRecord{{IsCorrect: true}, {IsCorrect: true}}
	assert.Equal(t, 100.0, CorrectRate(all))

	mixed := []AnswerRecord{{IsCorrect: true}, {IsCorrect: false}, {IsCorrect: false}, {IsCorrect: true}}
	assert.Equal(t, 50.0, CorrectRate(mixed))
}

func TestSummarize(t *testing.T) {
	records := []AnswerRecord{
		{SequenceID: 1, UserAnswer: "a", CorrectAnswer: "a", IsCorrect: true},
		{SequenceID: 2, UserAnswer: "b", CorrectAnswer: "a"},
		{SequenceID: 3, UserAnswer: SkippedAnswer, CorrectAnswer: "c", Skipped: true},
		{SequenceID: 4, UserAnswer: "d", CorrectAnswer: "d", IsCorrect: true},
	}

	s := Summarize(records)
	assert.Equal(t, Summary{Total: 4, Correct: 2, Incorrect: 2, Skipped: 1, CorrectRate: 50}, s)
	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestSummarizeCountsSubmittedSkippedTextAsIncorrect(t *testing.T) {
	records := []AnswerRecord{
		{SequenceID: 1, UserAnswer: SkippedAnswer, CorrectAnswer: "a"},
		{SequenceID: 2, UserAnswer: SkippedAnswer, CorrectAnswer: "a", Skipped: true},
	}

	assert.Equal(t, Summary{Total: 2, Incorrect: 2, Skipped: 1}, Summarize(records))
}

func TestRatings(t *testing.T) {
	r := NewRatings()
	assert.Equal(t, 0, r.Get(3))

	r.Rate(3, 4)
	r.Rate(3, 5)
	r.Rate(7, 42)
	assert.Equal(t, 5, r.Get(3))
	assert.Equal(t, 42, r.Get(7), "out of range values are stored as given")
	assert.Equal(t, 2, r.Len())

	m := r.Map()
	m[3] = 0
	assert.Equal(t, 5, r.Get(3), "Map returns a copy")

	r.Clear()
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, r.Get(7))
}
