package tui

import (
	"context"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yanqian/bio-generator/internal/domain/session"
)

// Run starts the interactive generator and blocks until the user quits.
func Run(ctx context.Context, generator session.Generator, prefix string, logger *slog.Logger) error {
	model := NewModel(ctx, nil, prefix)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	model.SetSubmitter(session.New(generator, NewProgramSink(program), logger))

	_, err := program.Run()
	return err
}
