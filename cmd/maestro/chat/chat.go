// Package chat is the interactive TUI: a scrollback viewport, an input
// area, and live rendering of the orchestrator's update stream.
package chat

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"maestro/internal/orchestrator"
	"maestro/internal/personality"
	"maestro/internal/session"
	"maestro/internal/store"
)

// Deps is everything the chat UI needs from the outside.
type Deps struct {
	Orchestrator *orchestrator.Orchestrator
	Persona      *personality.Manager
	Session      *session.Session
	// Transcripts may be nil; the chat then runs without persistence.
	Transcripts *store.Store
	Logger      *zap.Logger
}

// Run starts the chat interface and blocks until the user quits.
func Run(ctx context.Context, deps Deps) error {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	m := newModel(ctx, deps)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat ui: %w", err)
	}
	return nil
}
