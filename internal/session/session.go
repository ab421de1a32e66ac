// Package session tracks the conversational state of one chat: a stable
// identifier and a bounded window of recent turns used as prompt context.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// defaultWindow bounds prompt context growth for long chats.
const defaultWindow = 20

// Turn is one utterance in a session.
type Turn struct {
	Role    string
	Content string
	At      time.Time
}

// Session is one conversation. Turn access is locked because the UI
// appends while the orchestrator reads context.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu     sync.RWMutex
	window int
	turns  []Turn
}

// New creates a session keeping at most window turns of context. A
// non-positive window gets the default.
func New(window int) *Session {
	if window <= 0 {
		window = defaultWindow
	}
	return &Session{
		ID:        "session-" + uuid.NewString()[:8],
		CreatedAt: time.Now(),
		window:    window,
	}
}

// Append records a turn, evicting the oldest once the window is full.
func (s *Session) Append(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append(s.turns, Turn{Role: role, Content: content, At: time.Now()})
	if len(s.turns) > s.window {
		s.turns = s.turns[len(s.turns)-s.window:]
	}
}

// Recent returns a copy of the retained turns, oldest first.
func (s *Session) Recent() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Turn(nil), s.turns...)
}

// Len returns the number of retained turns.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Clear drops all retained turns but keeps the session identity.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
}

// PromptContext renders the retained turns as prompt material. Empty
// when the session has no history yet.
func (s *Session) PromptContext() string {
	turns := s.Recent()
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
	}
	return b.String()
}
