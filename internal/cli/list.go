package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"patientboard/internal/board"
	"patientboard/internal/format"
	"patientboard/internal/model"
)

type listFlags struct {
	tag      string
	hospital string
	ward     string
}

func (f *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.tag, "tag", "", "List (tag) to show (default: configured default_tag)")
	cmd.Flags().StringVar(&f.hospital, "hospital", "", "Hospital substring filter")
	cmd.Flags().StringVar(&f.ward, "ward", "", "Ward substring filter")
}

func (f *listFlags) filter(app *App) board.Filter {
	tag := strings.TrimSpace(f.tag)
	if tag == "" {
		tag = app.Cfg.DefaultTag
	}
	return board.Filter{
		Tag:      tag,
		Hospital: strings.TrimSpace(f.hospital),
		Ward:     strings.TrimSpace(f.ward),
		Flagship: app.Cfg.FlagshipHospital,
	}
}

func newListCmd(app *App) *cobra.Command {
	var flags listFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the patients on a list, in board order (JSON)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := commandLogger(cmd, app)
			gw, done, err := openGateway(cmd.Context(), app, log)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer func() { _ = done() }()

			patients, err := gw.ListPatients(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			f := flags.filter(app)
			ptrs := make([]*model.Patient, len(patients))
			for i := range patients {
				ptrs[i] = &patients[i]
			}
			rows := board.ComputeVisible(ptrs, f)
			out := make([]model.Patient, 0, len(rows))
			for _, p := range rows {
				out = append(out, *p)
			}
			meta := &format.Meta{Count: len(out), Tag: f.Tag}
			if len(out) == 0 && len(patients) > 0 {
				meta.Hint = "no patients match; try another --tag or drop --hospital/--ward"
			}
			return writeOut(cmd, app, format.Envelope{Data: out, Meta: meta})
		},
	}
	flags.register(cmd)
	return cmd
}
