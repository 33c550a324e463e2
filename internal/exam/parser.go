package exam

import (
	"strings"
	"unicode"
)

// OptionDelimiter separates options inside the Options segment.
const OptionDelimiter = ", "

// marker is a grammar keyword such as "Correct Answer:". Words may be separated by any run of
// whitespace and the colon may be preceded by whitespace; matching ignores case.
type marker struct {
	name  string
	words []string
}

var (
	questionMarker = marker{name: "question", words: []string{"question"}}
	optionsMarker  = marker{name: "options", words: []string{"options"}}
	answerMarker   = marker{name: "correct answer", words: []string{"correct", "answer"}}
)

// span is the byte range a marker occupies in the input.
type span struct{ start, end int }

// Parse turns generator output into a Question. The text must contain a Question segment, an
// Options segment and a Correct Answer segment, in that order.
func Parse(raw string) (Question, error) {
	q, ok := findMarker(raw, 0, questionMarker)
	if !ok {
		return Question{}, &ParseError{Stage: questionMarker.name, Err: ErrMissingQuestion}
	}

	o, err := findAfter(raw, q.end, optionsMarker, ErrMissingOptions)
	if err != nil {
		return Question{}, err
	}

	a, err := findAfter(raw, o.end, answerMarker, ErrMissingAnswer)
	if err != nil {
		return Question{}, err
	}

	text := trimSegment(raw[q.end:o.start])
	if text == "" {
		return Question{}, &ParseError{Stage: questionMarker.name, Err: ErrEmptySegment}
	}

	options := splitOptions(raw[o.end:a.start])
	if len(options) == 0 {
		return Question{}, &ParseError{Stage: optionsMarker.name, Err: ErrEmptySegment}
	}

	answer := strings.TrimSpace(raw[a.end:])
	if answer == "" {
		return Question{}, &ParseError{Stage: answerMarker.name, Err: ErrEmptySegment}
	}

	return Question{Text: text, Options: options, CorrectAnswer: answer}, nil
}

// findAfter locates m at or after from. A marker that only exists earlier in the input is an
// ordering failure rather than a missing one.
func findAfter(raw string, from int, m marker, missing error) (span, error) {
	if s, ok := findMarker(raw, from, m); ok {
		return s, nil
	}
	if _, ok := findMarker(raw, 0, m); ok {
		return span{}, &ParseError{Stage: m.name, Err: ErrMarkerOrder}
	}
	return span{}, &ParseError{Stage: m.name, Err: missing}
}

func findMarker(raw string, from int, m marker) (span, bool) {
	for i := from; i < len(raw); i++ {
		if i > 0 && isWordByte(raw[i-1]) {
			continue
		}
		if end, ok := matchMarker(raw, i, m.words); ok {
			return span{start: i, end: end}, true
		}
	}
	return span{}, false
}

func matchMarker(raw string, i int, words []string) (int, bool) {
	for n, w := range words {
		if n > 0 {
			j := skipSpace(raw, i)
			if j == i {
				return 0, false
			}
			i = j
		}
		if len(raw)-i < len(w) || !strings.EqualFold(raw[i:i+len(w)], w) {
			return 0, false
		}
		i += len(w)
	}
	i = skipSpace(raw, i)
	if i >= len(raw) || raw[i] != ':' {
		return 0, false
	}
	return i + 1, true
}

func skipSpace(raw string, i int) int {
	for i < len(raw) && unicode.IsSpace(rune(raw[i])) {
		i++
	}
	return i
}

func isWordByte(b byte) bool {
	return b == '_' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// trimSegment drops surrounding whitespace and the separator comma the generator leaves
// before the next marker.
func trimSegment(s string) string {
	s = strings.TrimSpace(s)
	for strings.HasSuffix(s, ",") {
		s = strings.TrimSpace(strings.TrimSuffix(s, ","))
	}
	return s
}

func splitOptions(segment string) []string {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return nil
	}
	parts := strings.Split(segment, OptionDelimiter)
	options := make([]string, 0, len(parts))
	for _, p := range parts {
		if opt := trimSegment(p); opt != "" {
			options = append(options, opt)
		}
	}
	return options
}
