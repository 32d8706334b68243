package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"patientboard/internal/export"
	"patientboard/internal/format"
)

type exportFlags struct {
	list  listFlags
	out   string
	s3Key string
	width int
}

// destination picks S3 when a bucket is configured, then --out, else stdout (nil).
func (f *exportFlags) destination(ctx context.Context, app *App) (export.Destination, string, error) {
	if b := strings.TrimSpace(app.Cfg.S3Bucket); b != "" {
		key := strings.TrimSpace(f.s3Key)
		if key == "" {
			key = fmt.Sprintf("handover/%s-%s.md", f.list.filter(app).Tag, time.Now().UTC().Format("20060102-1504"))
		}
		d, err := export.NewS3(ctx, export.S3Config{
			Bucket:    b,
			Key:       key,
			Region:    app.Cfg.S3Region,
			Endpoint:  app.Cfg.S3Endpoint,
			PathStyle: app.Cfg.S3PathStyle,
		})
		if err != nil {
			return nil, "", err
		}
		return d, d.String(), nil
	}
	if p := strings.TrimSpace(f.out); p != "" {
		return export.FileDestination{Path: p}, p, nil
	}
	return nil, "", nil
}

func newExportCmd(app *App) *cobra.Command {
	var flags exportFlags
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a Markdown handover sheet for a list",
		Example: strings.TrimSpace(`
patientboard export --tag icu
patientboard export --out handover.md
patientboard export --s3-bucket ward-handover --s3-endpoint http://localhost:9000 --s3-path-style
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := commandLogger(cmd, app)
			sc, err := loadSchema(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			gw, done, err := openGateway(ctx, app, log)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer func() { _ = done() }()

			patients, err := gw.ListPatients(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			sheet := export.Sheet{Schema: sc, Filter: flags.list.filter(app), Generated: time.Now()}
			body, n, err := sheet.Bytes(patients)
			if err != nil {
				return writeErr(cmd, err)
			}

			dest, where, err := flags.destination(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if dest == nil {
				text := string(body)
				if app.Cfg.Pretty {
					if text, err = export.Pretty(text, flags.width); err != nil {
						return writeErr(cmd, err)
					}
				}
				_, err := fmt.Fprint(cmd.OutOrStdout(), text)
				return err
			}
			if err := dest.Write(ctx, body); err != nil {
				return writeErr(cmd, err)
			}
			log.Info().Str("destination", where).Int("patients", n).Msg("handover exported")
			return writeOut(cmd, app, format.Envelope{
				Data: map[string]any{"destination": where, "patients": n},
			})
		},
	}
	flags.list.register(cmd)
	f := cmd.Flags()
	f.StringVar(&flags.out, "out", "", "Write to this file instead of stdout")
	f.StringVar(&flags.s3Key, "s3-key", "", "Object key (default handover/<tag>-<time>.md)")
	f.IntVar(&flags.width, "width", 100, "Wrap width for --pretty")
	f.String("s3-bucket", "", "Upload to this S3 bucket")
	f.String("s3-region", "", "S3 region (default us-east-1)")
	f.String("s3-endpoint", "", "S3-compatible endpoint, e.g. MinIO")
	f.Bool("s3-path-style", false, "Use path-style S3 addressing")
	for flag, key := range map[string]string{
		"s3-bucket":     "s3_bucket",
		"s3-region":     "s3_region",
		"s3-endpoint":   "s3_endpoint",
		"s3-path-style": "s3_path_style",
	} {
		_ = app.v.BindPFlag(key, f.Lookup(flag))
	}
	return cmd
}
