package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"patientboard/internal/board"
	"patientboard/internal/config"
	"patientboard/internal/format"
	"patientboard/internal/gateway"
	"patientboard/internal/gateway/httpgw"
	"patientboard/internal/gateway/sqlstore"
	"patientboard/internal/logging"
	"patientboard/internal/prefs"
	"patientboard/internal/schema"
	"patientboard/internal/tui"
)

type App struct {
	v   *viper.Viper
	Cfg *config.Config
}

// persistent flag name -> config key
var persistentKeys = map[string]string{
	"dir":       "dir",
	"config":    "config",
	"server":    "server",
	"db-driver": "db_driver",
	"dsn":       "dsn",
	"schema":    "schema",
	"log-file":  "log_file",
	"log-level": "log_level",
	"pretty":    "pretty",
}

func NewRootCmd() *cobra.Command {
	app := &App{v: viper.New()}

	cmd := &cobra.Command{
		Use:          "patientboard",
		Short:        "Patient board TUI, server and handover tools",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Open the board for your list
  patientboard

  # One patient
  patientboard detail 42

  # Scriptable output
  patientboard list --tag icu --hospital uch

  # Serve the local store to other clients
  patientboard serve --listen :8000
  patientboard --server http://localhost:8000/
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, app)
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(app.v)
		if err != nil {
			return writeErr(cmd, err)
		}
		app.Cfg = cfg
		return nil
	}

	pf := cmd.PersistentFlags()
	pf.String("dir", "", "Data dir for the local store, prefs and log (default ~/.patientboard)")
	pf.String("config", "", "Config file (default <dir>/config.yaml)")
	pf.String("server", "", "Board server URL; when set the local store is not used")
	pf.String("db-driver", "", "Local store driver (sqlite|postgres)")
	pf.String("dsn", "", "Database DSN (default <dir>/board.sqlite)")
	pf.String("schema", "", "Column schema JSON file (default: built in)")
	pf.String("log-file", "", "Log file for the TUI (default <dir>/patientboard.log)")
	pf.String("log-level", "", "Log level (debug|info|warn|error)")
	pf.Bool("pretty", false, "Pretty-print output")
	for flag, key := range persistentKeys {
		_ = app.v.BindPFlag(key, pf.Lookup(flag))
	}

	cmd.AddCommand(newDetailCmd(app))
	cmd.AddCommand(newListCmd(app))
	cmd.AddCommand(newSeedCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newExportCmd(app))

	return cmd
}

// openGateway returns the remote client when --server is set, otherwise the local store.
func openGateway(ctx context.Context, app *App, log zerolog.Logger) (gateway.Gateway, func() error, error) {
	if app.Cfg.Remote() {
		c, err := httpgw.New(app.Cfg.Server)
		if err != nil {
			return nil, nil, err
		}
		return c, func() error { return nil }, nil
	}
	s, err := openStore(ctx, app, log)
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}

func openStore(ctx context.Context, app *App, log zerolog.Logger) (*sqlstore.Store, error) {
	dialect, err := sqlstore.ParseDialect(app.Cfg.DBDriver)
	if err != nil {
		return nil, err
	}
	return sqlstore.Open(ctx, dialect, app.Cfg.DatabaseDSN(), log)
}

func loadSchema(app *App) (*schema.Schema, error) {
	if p := strings.TrimSpace(app.Cfg.Schema); p != "" {
		return schema.Load(p)
	}
	return schema.Default()
}

func boardOptions(app *App) []board.Option {
	return []board.Option{
		board.WithPrefs(prefs.Open(app.Cfg.Dir)),
		board.WithFlagship(app.Cfg.FlagshipHospital),
		board.WithDefaultTag(app.Cfg.DefaultTag),
	}
}

// commandLogger logs to stderr for one-shot commands.
func commandLogger(cmd *cobra.Command, app *App) zerolog.Logger {
	return logging.New(cmd.ErrOrStderr(), app.Cfg.LogLevel, true)
}

// tuiLogger logs to the log file since the TUI owns the terminal.
func tuiLogger(app *App) (zerolog.Logger, io.Closer, error) {
	return logging.File(app.Cfg.LogPath(), app.Cfg.LogLevel)
}

func runList(cmd *cobra.Command, app *App) error {
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

	patients, err := gw.ListPatients(cmd.Context())
	if err != nil {
		return writeErr(cmd, fmt.Errorf("load patients: %w", err))
	}
	log.Info().Int("patients", len(patients)).Bool("remote", app.Cfg.Remote()).Msg("board start")
	return tui.RunList(cmd.Context(), sc, patients, gw, log, boardOptions(app)...)
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, "json", app.Cfg.Pretty)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}

var errNeedsLocalStore = errors.New("this command needs the local store; drop --server")
