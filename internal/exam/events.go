package exam

// EventType names outbound session notifications.
type EventType string

// Event types.
const (
	EventQuestionReady EventType = "question_ready"
	EventFeedback      EventType = "feedback"
	EventLoadFailed    EventType = "load_failed"
	EventTick          EventType = "tick"
	EventCompleted     EventType = "completed"
	EventRestarted     EventType = "restarted"
	EventRated         EventType = "rated"
)

// Event is delivered to the Listener after the transition that produced it.
type Event struct {
	Type      EventType
	SessionID string
	State     State

	Question   *Question
	Feedback   *Feedback
	Err        error
	ErrorKind  string
	Reason     CompletionReason
	Summary    *Summary
	Records    []AnswerRecord
	Difficulty Difficulty
	SequenceID int
	Rating     int
}

// Listener receives session events. Calls are made outside the session lock, in the order the
// transitions happened.
type Listener interface {
	OnEvent(Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event)

func (f ListenerFunc) OnEvent(e Event) { f(e) }

// Fanout delivers each event to every listener in order.
type Fanout []Listener

func (f Fanout) OnEvent(e Event) {
	for _, l := range f {
		if l != nil {
			l.OnEvent(e)
		}
	}
}
