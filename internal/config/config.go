// Package config resolves settings from flags, PATIENTBOARD_* env vars, an optional
// config file and defaults, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const EnvPrefix = "PATIENTBOARD"

type Config struct {
	Dir              string `mapstructure:"dir"`
	ConfigFile       string `mapstructure:"config"`
	Server           string `mapstructure:"server"`
	DBDriver         string `mapstructure:"db_driver"`
	DSN              string `mapstructure:"dsn"`
	Schema           string `mapstructure:"schema"`
	Listen           string `mapstructure:"listen"`
	FlagshipHospital string `mapstructure:"flagship_hospital"`
	DefaultTag       string `mapstructure:"default_tag"`
	LogFile          string `mapstructure:"log_file"`
	LogLevel         string `mapstructure:"log_level"`
	Pretty           bool   `mapstructure:"pretty"`

	S3Bucket    string `mapstructure:"s3_bucket"`
	S3Region    string `mapstructure:"s3_region"`
	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3PathStyle bool   `mapstructure:"s3_path_style"`
}

var keys = []string{
	"dir", "config", "server", "db_driver", "dsn", "schema", "listen",
	"flagship_hospital", "default_tag", "log_file", "log_level", "pretty",
	"s3_bucket", "s3_region", "s3_endpoint", "s3_path_style",
}

func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".patientboard"
	}
	return filepath.Join(home, ".patientboard")
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("dir", defaultDir())
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("listen", ":8000")
	v.SetDefault("flagship_hospital", "UCH")
	v.SetDefault("default_tag", "mine")
	v.SetDefault("log_level", "info")
}

// Load reads v into a Config. Flags should already be bound into v.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	if f := strings.TrimSpace(v.GetString("config")); f != "" {
		v.SetConfigFile(expandHome(f))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", f, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(expandHome(v.GetString("dir")))
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Dir = expandHome(cfg.Dir)
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	if cfg.DBDriver != "sqlite" && cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required for db_driver %q", cfg.DBDriver)
	}
	return cfg, nil
}

// DatabaseDSN is the configured dsn, or the sqlite file in Dir.
func (c *Config) DatabaseDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return filepath.Join(c.Dir, "board.sqlite")
}

func (c *Config) LogPath() string {
	if c.LogFile != "" {
		return expandHome(c.LogFile)
	}
	return filepath.Join(c.Dir, "patientboard.log")
}

// Remote reports whether the board talks to a server instead of a local store.
func (c *Config) Remote() bool { return strings.TrimSpace(c.Server) != "" }

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
