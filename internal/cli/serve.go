package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"patientboard/internal/gateway"
	"patientboard/internal/logging"
	"patientboard/internal/server"
)

// newServer wires the store behind the instrumented gateway and the HTTP handlers.
func newServer(gw gateway.Gateway, log zerolog.Logger) (*server.Server, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return server.New(gateway.Instrument(gw, gateway.NewMetrics(reg)), log, reg), reg
}

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local store over HTTP for board clients",
		Example: strings.TrimSpace(`
patientboard serve --listen :8000
PATIENTBOARD_DB_DRIVER=postgres PATIENTBOARD_DSN=postgres://... patientboard serve
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Cfg.Remote() {
				return writeErr(cmd, errNeedsLocalStore)
			}
			level := app.Cfg.LogLevel
			log := logging.New(cmd.OutOrStdout(), level, strings.EqualFold(level, "debug"))

			s, err := openStore(cmd.Context(), app, log)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer func() { _ = s.Close() }()

			srv, _ := newServer(s, log)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(app.Cfg.Listen) }()
			log.Info().Str("listen", app.Cfg.Listen).Str("driver", string(s.Dialect())).Msg("serving")

			select {
			case err := <-errCh:
				if err != nil {
					return writeErr(cmd, err)
				}
				return nil
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
				return writeErr(cmd, err)
			}
			log.Info().Msg("stopped")
			return nil
		},
	}
	cmd.Flags().String("listen", "", "Listen address (default :8000)")
	_ = app.v.BindPFlag("listen", cmd.Flags().Lookup("listen"))
	return cmd
}
