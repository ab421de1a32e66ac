package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"maestro/internal/orchestrator"
	"maestro/internal/session"
)

// turnUpdateMsg wraps one orchestrator update; closed reports stream end.
type turnUpdateMsg struct {
	update orchestrator.Update
	closed bool
}

type model struct {
	ctx  context.Context
	deps Deps

	viewport viewport.Model
	input    textarea.Model
	spin     spinner.Model
	renderer *glamour.TermRenderer

	// transcript lines already rendered into the viewport
	lines []string
	// activity lines for the in-flight turn, cleared on completion
	activity []string

	busy    bool
	updates <-chan orchestrator.Update
	width   int
	height  int
}

func newModel(ctx context.Context, deps Deps) *model {
	input := textarea.New()
	input.Placeholder = "Ask anything..."
	input.CharLimit = 4096
	input.SetHeight(3)
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	vp := viewport.New(80, 20)

	return &model{
		ctx:      ctx,
		deps:     deps,
		viewport: vp,
		input:    input,
		spin:     spin,
		lines:    []string{welcomeBanner(deps)},
	}
}

func (m *model) Init() tea.Cmd {
	return textarea.Blink
}

// waitForUpdate reads the next event off the in-flight turn's stream.
func waitForUpdate(ch <-chan orchestrator.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return turnUpdateMsg{closed: true}
		}
		return turnUpdateMsg{update: u}
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if !m.busy {
				if cmd := m.submit(); cmd != nil {
					cmds = append(cmds, cmd, m.spin.Tick)
				}
				m.refresh()
				return m, tea.Batch(cmds...)
			}
		}

	case spinner.TickMsg:
		if m.busy {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}
		return m, nil

	case turnUpdateMsg:
		cmd := m.handleTurnUpdate(msg)
		m.refresh()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// submit starts a turn for the current input. Returns nil when there is
// nothing to send.
func (m *model) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return nil
	}
	m.input.Reset()

	// Process snapshots the context window synchronously, so appending
	// the turn after it keeps the current input out of its own history.
	m.updates = m.deps.Orchestrator.Process(m.ctx, m.deps.Session, text)
	m.deps.Session.Append(session.RoleUser, text)
	if m.deps.Transcripts != nil {
		_ = m.deps.Transcripts.Append(m.ctx, m.deps.Session.ID, session.RoleUser, text)
	}

	m.lines = append(m.lines, userStyle.Render("you")+" "+text)
	m.activity = nil
	m.busy = true
	return waitForUpdate(m.updates)
}

func (m *model) handleTurnUpdate(msg turnUpdateMsg) tea.Cmd {
	if msg.closed {
		m.busy = false
		m.activity = nil
		m.updates = nil
		return nil
	}

	switch u := msg.update.(type) {
	case orchestrator.ThinkingUpdate:
		m.activity = append(m.activity, thinkingStyle.Render("· "+u.Segment))

	case orchestrator.IntentUpdate:
		m.activity = append(m.activity,
			activityStyle.Render(fmt.Sprintf("intent: %s (%s)", u.Analysis.Complexity, u.Analysis.RiskLevel)))

	case orchestrator.PlanUpdate:
		m.activity = append(m.activity, activityStyle.Render(u.Plan.Summary()))

	case orchestrator.StepUpdate:
		line := fmt.Sprintf("wave %d: %s", u.Wave, u.Result.StepID)
		if u.Result.Success {
			m.activity = append(m.activity, activityStyle.Render(line+" ok"))
		} else {
			m.activity = append(m.activity, errorStyle.Render(line+" failed: "+u.Result.Error))
		}

	case orchestrator.CompleteUpdate:
		m.finishTurn(u.Response)

	case orchestrator.ErrorUpdate:
		m.finishTurn(errorStyle.Render("error: " + u.Err.Error()))
	}

	return waitForUpdate(m.updates)
}

func (m *model) finishTurn(response string) {
	m.deps.Session.Append(session.RoleAssistant, response)
	if m.deps.Transcripts != nil {
		_ = m.deps.Transcripts.Append(m.ctx, m.deps.Session.ID, session.RoleAssistant, response)
	}

	name := m.deps.Persona.Current().Name
	m.lines = append(m.lines, assistantStyle.Render(name)+" "+m.renderMarkdown(response))
	m.activity = nil
}

func (m *model) renderMarkdown(text string) string {
	if m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimSpace(out)
}

func (m *model) resize(width, height int) {
	m.width = width
	m.height = height
	m.input.SetWidth(width - 2)
	m.viewport.Width = width
	m.viewport.Height = height - m.input.Height() - 3

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	if err == nil {
		m.renderer = renderer
	}
	m.refresh()
}

// refresh re-renders the viewport content and pins it to the bottom.
func (m *model) refresh() {
	content := strings.Join(m.lines, "\n\n")
	if len(m.activity) > 0 {
		content += "\n\n" + strings.Join(m.activity, "\n")
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func welcomeBanner(deps Deps) string {
	name := deps.Persona.Current().Name
	return titleStyle.Render(name) + "\n" +
		thinkingStyle.Render("session "+deps.Session.ID+" · enter sends, esc quits")
}
