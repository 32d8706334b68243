package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"patientboard/internal/board"
	"patientboard/internal/gateway"
	"patientboard/internal/model"
	"patientboard/internal/schema"
)

// RunList shows the list board for patients. Edits are synced through gw.
func RunList(ctx context.Context, sc *schema.Schema, patients []model.Patient, gw gateway.Gateway, log zerolog.Logger, opts ...board.Option) error {
	g := board.NewGrid(sc, patients, append([]board.Option{board.WithLogger(log)}, opts...)...)
	return run(ctx, newGridModel(g, gw, log))
}

// RunDetail shows a single patient.
func RunDetail(ctx context.Context, sc *schema.Schema, patient model.Patient, gw gateway.Gateway, log zerolog.Logger, opts ...board.Option) error {
	d := board.NewDetail(sc, patient, append([]board.Option{board.WithLogger(log)}, opts...)...)
	return run(ctx, newDetailModel(d, gw, log))
}

func run(ctx context.Context, m *appModel) error {
	applyThemePreference()
	applyColorProfilePreference()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go m.sync.run(ctx)

	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseAllMotion(), tea.WithContext(ctx)).Run()
	if n := m.sync.flush(10 * time.Second); n > 0 {
		m.log.Warn().Int("outstanding", n).Msg("quit with unsynced changes")
	}
	return err
}
