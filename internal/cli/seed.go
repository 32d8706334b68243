package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"patientboard/internal/format"
	"patientboard/internal/model"
)

// decodePatients accepts a bare array or {"patients": [...]}.
func decodePatients(b []byte) ([]model.Patient, error) {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var ps []model.Patient
		if err := json.Unmarshal(b, &ps); err != nil {
			return nil, err
		}
		return ps, nil
	}
	var wrapped struct {
		Patients []model.Patient `json:"patients"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Patients, nil
}

func newSeedCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.json>",
		Short: "Import patients into the local store, keeping their ids",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Cfg.Remote() {
				return writeErr(cmd, errNeedsLocalStore)
			}
			b, err := os.ReadFile(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			patients, err := decodePatients(b)
			if err != nil {
				return writeErr(cmd, fmt.Errorf("parse %s: %w", args[0], err))
			}
			log := commandLogger(cmd, app)
			s, err := openStore(cmd.Context(), app, log)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer func() { _ = s.Close() }()
			if err := s.Seed(cmd.Context(), patients); err != nil {
				return writeErr(cmd, fmt.Errorf("seed: %w", err))
			}
			log.Info().Int("patients", len(patients)).Str("file", args[0]).Msg("seeded")
			return writeOut(cmd, app, format.Envelope{Data: map[string]any{"seeded": len(patients)}})
		},
	}
}
