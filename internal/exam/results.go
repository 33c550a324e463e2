package exam

// Summary aggregates a finished set of answer records.
type Summary struct {
	Total       int     `json:"total"`
	Correct     int     `json:"correct"`
	Incorrect   int     `json:"incorrect"`
	Skipped     int     `json:"skipped"`
	CorrectRate float64 `json:"correct_rate"`
}

// Summarize counts records and computes the correct rate as a percentage. An empty record set
// has a rate of 0.
func Summarize(records []AnswerRecord) Summary {
	var s Summary
	s.Total = len(records)
	for _, r := range records {
		if r.IsCorrect {
			s.Correct++
			continue
		}
		s.Incorrect++
		if r.Skipped {
			s.Skipped++
		}
	}
	s.CorrectRate = CorrectRate(records)
	return s
}

// CorrectRate returns correct/total*100, or 0 when there are no records.
func CorrectRate(records []AnswerRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	correct := 0
	for _, r := range records {
		if r.IsCorrect {
			correct++
		}
	}
	return float64(correct) / float64(len(records)) * 100
}

// Ratings maps a question's sequence id to the user's rating. Values are stored as given.
type Ratings struct {
	values map[int]int
}

// NewRatings returns an empty rating map.
func NewRatings() *Ratings {
	return &Ratings{values: make(map[int]int)}
}

// Rate upserts the rating for sequenceID.
func (r *Ratings) Rate(sequenceID, value int) {
	r.values[sequenceID] = value
}

// Get returns the rating for sequenceID, or 0 when the question was never rated.
func (r *Ratings) Get(sequenceID int) int {
	return r.values[sequenceID]
}

// Len returns the number of explicitly rated questions.
func (r *Ratings) Len() int { return len(r.values) }

// Clear drops every rating.
func (r *Ratings) Clear() {
	r.values = make(map[int]int)
}

// Map returns a copy of the explicit ratings.
func (r *Ratings) Map() map[int]int {
	out := make(map[int]int, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Results is the post-completion view read by the presentation layer.
type Results struct {
	Difficulty Difficulty       `json:"difficulty"`
	Reason     CompletionReason `json:"reason"`
	Records    []AnswerRecord   `json:"records"`
	Summary    Summary          `json:"summary"`
	Ratings    map[int]int      `json:"ratings"`
}
