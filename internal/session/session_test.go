package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendEvictsBeyondWindow(t *testing.T) {
	s := New(3)
	for i := 0; i < 5; i++ {
		s.Append(RoleUser, fmt.Sprintf("turn %d", i))
	}

	turns := s.Recent()
	require.Len(t, turns, 3)
	require.Equal(t, "turn 2", turns[0].Content)
	require.Equal(t, "turn 4", turns[2].Content)
}

func TestPromptContext(t *testing.T) {
	s := New(0)
	require.Empty(t, s.PromptContext())

	s.Append(RoleUser, "hello")
	s.Append(RoleAssistant, "hi, how can I help?")

	ctx := s.PromptContext()
	require.Contains(t, ctx, "user: hello")
	require.Contains(t, ctx, "assistant: hi, how can I help?")
}

func TestClearKeepsIdentity(t *testing.T) {
	s := New(0)
	id := s.ID
	s.Append(RoleUser, "hello")
	s.Clear()

	require.Zero(t, s.Len())
	require.Equal(t, id, s.ID)
	require.NotEmpty(t, id)
}

func TestRecentReturnsCopy(t *testing.T) {
	s := New(0)
	s.Append(RoleUser, "original")

	turns := s.Recent()
	turns[0].Content = "mutated"
	require.Equal(t, "original", s.Recent()[0].Content)
}
