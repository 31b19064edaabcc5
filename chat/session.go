package chat

import (
	"sync"
	"time"
)

// Session is the append-only conversation log for one browsing session.
// Insertion order is display order. The pending flag is true from the moment
// a user turn is appended until the matching bot turn lands, success or
// failure alike, so the UI can never be stuck awaiting a response.
//
// The log lives in memory only; it is discarded with the session.
type Session struct {
	mu       sync.Mutex
	messages []Message
	pending  bool
	now      func() time.Time
}

func NewSession() *Session {
	return &Session{now: time.Now}
}

// AppendUser records a user turn and marks a response as pending. Callers
// guard against blank input; the session itself never fails.
func (s *Session) AppendUser(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, Message{
		Sender:    SenderUser,
		Text:      text,
		CreatedAt: s.now(),
	})
	s.pending = true
}

// AppendBot records a bot turn and clears the pending flag unconditionally.
// Both the success and the failure path of a round trip end here.
func (s *Session) AppendBot(answer Answer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, Message{
		Sender:    SenderBot,
		Answer:    answer,
		CreatedAt: s.now(),
	})
	s.pending = false
}

// Messages returns a copy of the log in display order.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}
