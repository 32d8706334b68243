package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"patientboard/internal/tui"
)

func newDetailCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "detail <patient-id>",
		Short: "Open one patient with every column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return writeErr(cmd, errBadID("patient", args[0]))
			}
			log, closer, err := tuiLogger(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer func() { _ = closer.Close() }()

			sc, err := loadSchema(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			gw, done, err := openGateway(cmd.Context(), app, log)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer func() { _ = done() }()

			p, err := gw.GetPatient(cmd.Context(), id)
			if err != nil {
				return writeErr(cmd, fmt.Errorf("load patient: %w", err))
			}
			return tui.RunDetail(cmd.Context(), sc, p, gw, log, boardOptions(app)...)
		},
	}
}
