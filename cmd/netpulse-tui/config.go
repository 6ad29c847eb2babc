package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tinytelemetry/netpulse/internal/model"
	"github.com/tinytelemetry/netpulse/internal/query"
	"github.com/tinytelemetry/netpulse/internal/source"
)

const (
	defaultRefreshInterval = model.DefaultRefreshInterval
	defaultFetchTimeout    = 30 * time.Second
)

// cliConfig holds only TUI-relevant configuration. It shares the config file of the
// headless service.
type cliConfig struct {
	Source          string        `mapstructure:"source"`
	Date            string        `mapstructure:"date"`
	FilePattern     string        `mapstructure:"file-pattern"`
	RefreshInterval time.Duration `mapstructure:"refresh-interval"`
	FetchTimeout    time.Duration `mapstructure:"fetch-timeout"`
	LogFile         string        `mapstructure:"log-file"`
	LogLevel        string        `mapstructure:"log-level"`
	StartTime       string        `mapstructure:"start-time"`
	EndTime         string        `mapstructure:"end-time"`
	Hosts           []string      `mapstructure:"hosts"`

	day    time.Time
	window model.TimeWindow
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("netpulse-tui", pflag.ContinueOnError)
	fs.String("config", "", "config file (default is $HOME/.config/netpulse/config.yml)")
	fs.Bool("version", false, "print version information")
	fs.StringP("source", "s", model.DefaultSource, "snapshot directory, http(s) base URL")
	fs.StringP("date", "d", "", "snapshot day as DD-MM-YY (default today)")
	fs.String("file-pattern", model.DefaultFilePattern, "snapshot file name pattern")
	fs.Duration("refresh-interval", defaultRefreshInterval, "reload period")
	fs.Duration("fetch-timeout", defaultFetchTimeout, "timeout of one snapshot fetch")
	fs.String("log-file", "", "log file (default is $HOME/.local/state/netpulse/netpulse.log)")
	fs.String("log-level", "info", "log level")
	fs.String("start-time", model.DefaultWindowStart, "window start as HH:MM")
	fs.String("end-time", model.DefaultWindowEnd, "window end as HH:MM")
	fs.StringSlice("hosts", nil, "hosts to show (default all)")
	return fs
}

func loadCLIConfig(fs *pflag.FlagSet) (cliConfig, error) {
	var cfg cliConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("NETPULSE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("source", model.DefaultSource)
	v.SetDefault("date", "")
	v.SetDefault("file-pattern", model.DefaultFilePattern)
	v.SetDefault("refresh-interval", defaultRefreshInterval)
	v.SetDefault("fetch-timeout", defaultFetchTimeout)
	v.SetDefault("log-file", "")
	v.SetDefault("log-level", "info")
	v.SetDefault("start-time", model.DefaultWindowStart)
	v.SetDefault("end-time", model.DefaultWindowEnd)
	v.SetDefault("hosts", []string{})

	if err := v.BindPFlags(fs); err != nil {
		return cfg, fmt.Errorf("binding flags: %w", err)
	}

	if configPath, _ := fs.GetString("config"); configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "netpulse", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}

	if cfg.RefreshInterval <= 0 {
		return cfg, fmt.Errorf("invalid refresh-interval: %s", cfg.RefreshInterval)
	}
	if cfg.Source == "-" {
		return cfg, errors.New("the dashboard cannot read snapshots from stdin")
	}
	cfg.day = time.Now()
	if cfg.Date != "" {
		if cfg.day, err = source.ParseDate(cfg.Date, time.Local); err != nil {
			return cfg, err
		}
	}
	if cfg.window, err = query.ParseWindow(cfg.StartTime, cfg.EndTime); err != nil {
		return cfg, fmt.Errorf("invalid window: %w", err)
	}
	if strings.HasPrefix(cfg.Source, "~/") {
		cfg.Source = filepath.Join(home, cfg.Source[2:])
	}
	return cfg, nil
}
