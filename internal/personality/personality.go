// Package personality owns the agent's conversational voice: a YAML
// persona definition, hot reload on file change, and the oracle calls
// that render replies in that voice.
package personality

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"maestro/internal/llm"
)

// Personality is the persona the agent speaks as.
type Personality struct {
	Name         string `yaml:"name"`
	Tone         string `yaml:"tone"`
	SystemPrompt string `yaml:"system_prompt"`
}

// Default is the built-in persona used when no file is configured or a
// configured file cannot be read.
func Default() Personality {
	return Personality{
		Name: "maestro",
		Tone: "concise and direct",
		SystemPrompt: "You are Maestro, an orchestration agent. " +
			"Answer clearly and concisely. When a task has already been " +
			"executed for the user, present its results rather than " +
			"offering to do the work.",
	}
}

// Manager holds the active persona behind a lock so a hot reload can swap
// it while replies are being generated.
type Manager struct {
	client llm.Client
	model  string
	logger *zap.Logger

	mu      sync.RWMutex
	current Personality
}

// NewManager starts with the default persona.
func NewManager(client llm.Client, model string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		client:  client,
		model:   model,
		logger:  logger,
		current: Default(),
	}
}

// Current returns a snapshot of the active persona.
func (m *Manager) Current() Personality {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Load reads a persona file and makes it active. Missing fields keep
// their defaults so a file can override just the tone.
func (m *Manager) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read personality: %w", err)
	}

	p := Default()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parse personality %s: %w", path, err)
	}
	if strings.TrimSpace(p.SystemPrompt) == "" {
		p.SystemPrompt = Default().SystemPrompt
	}

	m.mu.Lock()
	m.current = p
	m.mu.Unlock()

	m.logger.Info("personality loaded", zap.String("path", path), zap.String("name", p.Name))
	return nil
}

// Watch reloads the persona whenever its file changes, until ctx is
// cancelled. A reload failure keeps the previous persona active.
func (m *Manager) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("personality watcher: %w", err)
	}

	// Watch the directory, not the file: editors replace files on save
	// and a file-level watch dies with the old inode.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != path || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				if err := m.Load(path); err != nil {
					m.logger.Warn("personality reload failed", zap.Error(err))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.logger.Warn("personality watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

// Respond generates a direct conversational reply in the active voice.
// history is the session's recent-turn window; with it the persona can
// answer follow-ups that only make sense against earlier turns.
func (m *Manager) Respond(ctx context.Context, input, history string) (string, error) {
	p := m.Current()
	prompt := input
	if history != "" {
		prompt = history + "\nCurrent message: " + input
	}
	resp, err := m.client.Generate(ctx, llm.Request{
		Model:   m.model,
		System:  personaPrompt(p),
		Prompt:  prompt,
		Options: llm.Options{Temperature: 0.7},
	})
	if err != nil {
		return "", fmt.Errorf("personality respond: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// Stylize rewrites already-synthesized content in the active voice
// without changing its facts. On error the caller should fall back to
// the unstyled text.
func (m *Manager) Stylize(ctx context.Context, text string) (string, error) {
	p := m.Current()
	resp, err := m.client.Generate(ctx, llm.Request{
		Model: m.model,
		System: personaPrompt(p) + "\nRewrite the given text in your voice. " +
			"Keep every fact, number, and caveat intact. Output only the rewritten text.",
		Prompt:  text,
		Options: llm.Options{Temperature: 0.5},
	})
	if err != nil {
		return "", fmt.Errorf("personality stylize: %w", err)
	}
	out := strings.TrimSpace(resp.Text)
	if out == "" {
		return "", fmt.Errorf("personality stylize: empty rewrite")
	}
	return out, nil
}

func personaPrompt(p Personality) string {
	var b strings.Builder
	b.WriteString(p.SystemPrompt)
	if p.Tone != "" {
		fmt.Fprintf(&b, "\nTone: %s.", p.Tone)
	}
	return b.String()
}
