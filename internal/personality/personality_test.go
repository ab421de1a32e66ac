package personality

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"maestro/internal/llm"
)

type echoLLM struct {
	lastSystem string
	lastPrompt string
	text       string
}

func (e *echoLLM) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	e.lastSystem = req.System
	e.lastPrompt = req.Prompt
	return &llm.Response{Text: e.text}, nil
}

func (e *echoLLM) GenerateStream(ctx context.Context, req llm.Request, fn llm.StreamFunc) (*llm.Response, error) {
	if err := fn(llm.Chunk{Text: e.text, Done: true}); err != nil {
		return nil, err
	}
	return &llm.Response{Text: e.text}, nil
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"name: jarvis\ntone: dry wit\nsystem_prompt: You are Jarvis.\n"), 0o644))

	m := NewManager(&echoLLM{}, "m", nil)
	require.NoError(t, m.Load(path))

	p := m.Current()
	require.Equal(t, "jarvis", p.Name)
	require.Equal(t, "dry wit", p.Tone)
	require.Equal(t, "You are Jarvis.", p.SystemPrompt)
}

func TestLoadPartialFileKeepsDefaultPrompt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tone: cheerful\n"), 0o644))

	m := NewManager(&echoLLM{}, "m", nil)
	require.NoError(t, m.Load(path))

	p := m.Current()
	require.Equal(t, "cheerful", p.Tone)
	require.Equal(t, Default().SystemPrompt, p.SystemPrompt)
}

func TestLoadMissingFile(t *testing.T) {
	m := NewManager(&echoLLM{}, "m", nil)
	require.Error(t, m.Load(filepath.Join(t.TempDir(), "absent.yaml")))
	require.Equal(t, Default(), m.Current())
}

func TestRespondUsesPersonaVoice(t *testing.T) {
	client := &echoLLM{text: "  hello there  "}
	m := NewManager(client, "m", nil)

	out, err := m.Respond(context.Background(), "hi", "")
	require.NoError(t, err)
	require.Equal(t, "hello there", out)
	require.Contains(t, client.lastSystem, Default().SystemPrompt)
	require.Contains(t, client.lastSystem, Default().Tone)
	require.Equal(t, "hi", client.lastPrompt)
}

func TestRespondCarriesHistory(t *testing.T) {
	client := &echoLLM{text: "sure"}
	m := NewManager(client, "m", nil)

	history := "user: my name is Ada\nassistant: noted"
	_, err := m.Respond(context.Background(), "what's my name?", history)
	require.NoError(t, err)
	require.Contains(t, client.lastPrompt, "my name is Ada")
	require.Contains(t, client.lastPrompt, "Current message: what's my name?")
}

func TestStylizeRejectsEmptyRewrite(t *testing.T) {
	m := NewManager(&echoLLM{text: "   "}, "m", nil)
	_, err := m.Stylize(context.Background(), "facts here")
	require.Error(t, err)
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "persona.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: first\n"), 0o644))

	m := NewManager(&echoLLM{}, "m", nil)
	require.NoError(t, m.Load(path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Watch(ctx, path))

	require.NoError(t, os.WriteFile(path, []byte("name: second\n"), 0o644))

	require.Eventually(t, func() bool {
		return m.Current().Name == "second"
	}, 3*time.Second, 10*time.Millisecond)
}
