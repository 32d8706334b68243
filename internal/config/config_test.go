package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	v := viper.New()
	v.Set("dir", dir)
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBDriver != "sqlite" || cfg.Listen != ":8000" || cfg.FlagshipHospital != "UCH" || cfg.DefaultTag != "mine" || cfg.LogLevel != "info" {
		t.Fatalf("defaults: %+v", cfg)
	}
	if cfg.DatabaseDSN() != filepath.Join(dir, "board.sqlite") {
		t.Fatalf("dsn %s", cfg.DatabaseDSN())
	}
	if cfg.LogPath() != filepath.Join(dir, "patientboard.log") || cfg.Remote() {
		t.Fatalf("log path %s remote %v", cfg.LogPath(), cfg.Remote())
	}
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	yaml := "flagship_hospital: NHNN\ndefault_tag: icu\nlisten: \":9000\"\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATIENTBOARD_DEFAULT_TAG", "renal")

	v := viper.New()
	v.Set("dir", dir)
	v.Set("listen", ":7000")
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FlagshipHospital != "NHNN" {
		t.Fatalf("file value lost: %+v", cfg)
	}
	if cfg.DefaultTag != "renal" {
		t.Fatalf("env must beat file: %q", cfg.DefaultTag)
	}
	if cfg.Listen != ":7000" {
		t.Fatalf("explicit value must beat file: %q", cfg.Listen)
	}
}

func TestLoad_PostgresNeedsDSN(t *testing.T) {
	v := viper.New()
	v.Set("dir", t.TempDir())
	v.Set("db_driver", "Postgres")
	if _, err := Load(v); err == nil {
		t.Fatalf("expected error without dsn")
	}
	v.Set("dsn", "postgres://localhost/board")
	cfg, err := Load(v)
	if err != nil || cfg.DatabaseDSN() != "postgres://localhost/board" {
		t.Fatalf("Load: %+v %v", cfg, err)
	}
}

func TestLoad_ExplicitConfigMissing(t *testing.T) {
	v := viper.New()
	v.Set("dir", t.TempDir())
	v.Set("config", filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := Load(v); err == nil {
		t.Fatalf("missing explicit config must fail")
	}
}
