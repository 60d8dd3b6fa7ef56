package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/yanqian/bio-generator/internal/domain/session"
)

type (
	resetMsg    struct{}
	fragmentMsg struct{ text string }
	scrollMsg   struct{}

	submitDoneMsg struct{ err error }

	toastExpiredMsg struct{ id int }
)

// ProgramSink forwards session notifications into a running bubbletea program.
type ProgramSink struct {
	send func(tea.Msg)
}

// NewProgramSink builds a sink that delivers through p.Send.
func NewProgramSink(p *tea.Program) ProgramSink {
	return ProgramSink{send: p.Send}
}

func (s ProgramSink) Reset() {
	s.send(resetMsg{})
}

func (s ProgramSink) OnFragment(_ string, text string) {
	s.send(fragmentMsg{text: text})
}

func (s ProgramSink) ScrollToResult() {
	s.send(scrollMsg{})
}

var _ session.Sink = ProgramSink{}
