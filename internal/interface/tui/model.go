package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wrap"

	"github.com/yanqian/bio-generator/internal/domain/session"
)

const (
	applicationName = "Generate your next Twitter bio using chatGPT"
	hint            = "Copy your current bio (or write a few sentences about yourself)."
	demoInput       = "e.g. Senior Developer Advocate @vercel. Tweeting about web development, AI, and React / Next.js. Writing nutlope.substack.com."
	resultTitle     = "运行结果"
	runLabel        = "运行"

	toastDuration = 2 * time.Second
	// rows taken by everything except the textarea and the result pane
	chromeHeight = 14
	inputHeight  = 4
)

type focusArea int

const (
	focusInput focusArea = iota
	focusResult
)

// Submitter is the part of a session the TUI drives.
type Submitter interface {
	Submit(ctx context.Context, prompt string) error
	State() session.State
}

// Model is the root bubbletea model of the interactive bio generator.
type Model struct {
	ctx       context.Context
	submitter Submitter
	prefix    string
	copy      func(string) error

	input   textarea.Model
	spinner spinner.Model
	result  viewport.Model

	resultText string
	focus      focusArea
	loading    bool
	toast      string
	toastID    int
	width      int
}

// NewModel creates the TUI model. The submitter may be attached later with SetSubmitter.
func NewModel(ctx context.Context, submitter Submitter, prefix string) *Model {
	input := textarea.New()
	input.Placeholder = demoInput
	input.ShowLineNumbers = false
	input.SetHeight(inputHeight)
	input.SetWidth(72)
	input.Focus()

	spin := spinner.New(spinner.WithSpinner(spinner.Points))

	return &Model{
		ctx:       ctx,
		submitter: submitter,
		prefix:    prefix,
		copy:      clipboard.WriteAll,
		input:     input,
		spinner:   spin,
		result:    viewport.New(72, 6),
		width:     76,
	}
}

// SetSubmitter attaches the session once the program (and therefore the sink) exists.
func (m *Model) SetSubmitter(submitter Submitter) {
	m.submitter = submitter
}

// Init starts the cursor blink.
func (m *Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update handles key presses, session notifications and timers.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "ctrl+s":
			return m, m.submit()
		case "ctrl+y":
			return m, m.copyResult()
		case "tab":
			if m.focus == focusInput {
				m.focusResult()
			} else {
				m.focusInput()
			}
			return m, nil
		}
		if m.focus == focusResult {
			m.result, cmd = m.result.Update(msg)
		} else {
			m.input, cmd = m.input.Update(msg)
		}
		return m, cmd

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case resetMsg:
		m.resultText = ""
		m.refreshResult()
		return m, nil

	case fragmentMsg:
		m.resultText = msg.text
		m.refreshResult()
		m.result.GotoBottom()
		return m, nil

	case scrollMsg:
		m.focusResult()
		m.result.GotoTop()
		return m, nil

	case submitDoneMsg:
		m.loading = false
		if msg.err != nil {
			return m, m.showToast(fmt.Sprintf("Generation failed: %v", msg.err))
		}
		return m, nil

	case toastExpiredMsg:
		if msg.id == m.toastID {
			m.toast = ""
		}
		return m, nil
	}

	if m.focus == focusInput {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m *Model) submit() tea.Cmd {
	if m.loading || m.submitter == nil || m.submitter.State() == session.StateInFlight {
		return nil
	}
	input := strings.TrimSpace(m.input.Value())
	if input == "" {
		return m.showToast("Write a few sentences about yourself first")
	}

	m.loading = true
	submitter, ctx := m.submitter, m.ctx
	prompt := session.BuildPrompt(m.prefix, input)
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		return submitDoneMsg{err: submitter.Submit(ctx, prompt)}
	})
}

func (m *Model) copyResult() tea.Cmd {
	if m.resultText == "" {
		return m.showToast("Nothing to copy yet")
	}
	if err := m.copy(m.resultText); err != nil {
		return m.showToast(fmt.Sprintf("Copy failed: %v", err))
	}
	return m.showToast("✂️ Result copied to clipboard")
}

func (m *Model) showToast(text string) tea.Cmd {
	m.toastID++
	m.toast = text
	id := m.toastID
	return tea.Tick(toastDuration, func(time.Time) tea.Msg {
		return toastExpiredMsg{id: id}
	})
}

func (m *Model) focusInput() {
	m.focus = focusInput
	m.input.Focus()
}

func (m *Model) focusResult() {
	m.focus = focusResult
	m.input.Blur()
}

func (m *Model) resize(width, height int) {
	m.width = width
	inner := max(width-4, 10)
	m.input.SetWidth(inner)
	m.result.Width = inner
	m.result.Height = max(height-chromeHeight-inputHeight, 3)
	m.refreshResult()
}

func (m *Model) refreshResult() {
	m.result.SetContent(wrap.String(m.resultText, m.result.Width))
}

// View renders the page top to bottom, mirroring the web layout.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(applicationName))
	b.WriteString("\n\n")
	b.WriteString(hintStyle.Render(hint))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	if m.loading {
		b.WriteString(buttonStyle.Render(m.spinner.View()))
	} else {
		b.WriteString(buttonStyle.Render(runLabel))
		b.WriteString(mutedStyle.Render("  ctrl+s"))
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(strings.Repeat("─", max(m.width-2, 1))))
	b.WriteString("\n")

	if m.resultText != "" {
		b.WriteString(headerStyle.Render(resultTitle))
		b.WriteString("\n")
		style := resultStyle
		if m.focus == focusResult {
			style = focusedStyle
		}
		b.WriteString(style.Render(m.result.View()))
		b.WriteString("\n")
	}

	if m.toast != "" {
		b.WriteString(toastStyle.Render(m.toast))
		b.WriteString("\n")
	}
	b.WriteString(mutedStyle.Render("ctrl+s generate • ctrl+y copy • tab switch pane • esc quit"))
	return lipgloss.NewStyle().Padding(1, 1, 0, 1).Render(b.String())
}
