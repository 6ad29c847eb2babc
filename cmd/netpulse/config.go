package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tinytelemetry/netpulse/internal/duckdb"
	"github.com/tinytelemetry/netpulse/internal/model"
	"github.com/tinytelemetry/netpulse/internal/query"
	"github.com/tinytelemetry/netpulse/internal/source"
)

const (
	defaultRefreshInterval = model.DefaultRefreshInterval
	defaultFetchTimeout    = 30 * time.Second
	defaultBindHost        = "127.0.0.1"
	defaultAPIPort         = 3000
	defaultQueryTimeout    = duckdb.DefaultQueryTimeout
	defaultLogLevel        = "info"
)

// appConfig is internal runtime configuration.
type appConfig struct {
	Source          string        `mapstructure:"source" yaml:"source"`
	Date            string        `mapstructure:"date" yaml:"date,omitempty"`
	FilePattern     string        `mapstructure:"file-pattern" yaml:"file-pattern"`
	RefreshInterval time.Duration `mapstructure:"refresh-interval" yaml:"refresh-interval"`
	FetchTimeout    time.Duration `mapstructure:"fetch-timeout" yaml:"fetch-timeout"`
	Watch           bool          `mapstructure:"watch" yaml:"watch"`
	APIEnabled      bool          `mapstructure:"api-enabled" yaml:"api-enabled"`
	APIPort         int           `mapstructure:"api-port" yaml:"api-port"`
	APIAddr         string        `mapstructure:"api-addr" yaml:"api-addr"`
	DBEnabled       bool          `mapstructure:"db-enabled" yaml:"db-enabled"`
	QueryTimeout    time.Duration `mapstructure:"query-timeout" yaml:"query-timeout"`
	OTLPEndpoint    string        `mapstructure:"otlp-endpoint" yaml:"otlp-endpoint,omitempty"`
	LogFile         string        `mapstructure:"log-file" yaml:"log-file,omitempty"`
	LogLevel        string        `mapstructure:"log-level" yaml:"log-level"`
	StartTime       string        `mapstructure:"start-time" yaml:"start-time"`
	EndTime         string        `mapstructure:"end-time" yaml:"end-time"`
	Hosts           []string      `mapstructure:"hosts" yaml:"hosts,omitempty"`
	ConfigPath      string        `mapstructure:"-" yaml:"-"` // not from config file

	day    time.Time
	window model.TimeWindow
}

// newFlagSet declares the command line. Every config key has a flag of the same name.
func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("netpulse", pflag.ContinueOnError)

	fs.String("config", "", "config file (default is $HOME/.config/netpulse/config.yml)")
	fs.Bool("version", false, "print version information")
	fs.Bool("print-config", false, "print the effective configuration as YAML and exit")
	fs.Bool("dump-otlp", false, "load once, print the filtered samples as OTLP JSON and exit")

	fs.StringP("source", "s", model.DefaultSource, "snapshot directory, http(s) base URL, or - for stdin")
	fs.StringP("date", "d", "", "snapshot day as DD-MM-YY (default today)")
	fs.String("file-pattern", model.DefaultFilePattern, "snapshot file name pattern, %s is the DD-MM-YY date")
	fs.Duration("refresh-interval", defaultRefreshInterval, "reload period")
	fs.Duration("fetch-timeout", defaultFetchTimeout, "timeout of one snapshot fetch")
	fs.Bool("watch", true, "reload when the snapshot file of a local source changes")
	fs.Bool("api-enabled", true, "serve the HTTP API")
	fs.Int("api-port", defaultAPIPort, "HTTP API port")
	fs.String("api-addr", "", "HTTP API listen address (overrides api-port)")
	fs.Bool("db-enabled", true, "mirror the current dataset into an in-memory SQL store")
	fs.Duration("query-timeout", defaultQueryTimeout, "timeout of one SQL query")
	fs.String("otlp-endpoint", "", "OTLP gRPC collector to push samples to")
	fs.String("log-file", "", "log file (default is $HOME/.local/state/netpulse/netpulse.log)")
	fs.String("log-level", defaultLogLevel, "log level: debug, info, warn or error")
	fs.String("start-time", model.DefaultWindowStart, "window start as HH:MM")
	fs.String("end-time", model.DefaultWindowEnd, "window end as HH:MM")
	fs.StringSlice("hosts", nil, "hosts to show (default all)")

	return fs
}

func loadConfig(fs *pflag.FlagSet) (appConfig, error) {
	var cfg appConfig

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
	v.SetDefault("watch", true)
	v.SetDefault("api-enabled", true)
	v.SetDefault("api-port", defaultAPIPort)
	v.SetDefault("api-addr", "")
	v.SetDefault("db-enabled", true)
	v.SetDefault("query-timeout", defaultQueryTimeout)
	v.SetDefault("otlp-endpoint", "")
	v.SetDefault("log-file", "")
	v.SetDefault("log-level", defaultLogLevel)
	v.SetDefault("start-time", model.DefaultWindowStart)
	v.SetDefault("end-time", model.DefaultWindowEnd)
	v.SetDefault("hosts", []string{})

	if err := v.BindPFlags(fs); err != nil {
		return cfg, fmt.Errorf("binding flags: %w", err)
	}

	configPath, _ := fs.GetString("config")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "netpulse", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	} else {
		cfg.ConfigPath = v.ConfigFileUsed()
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.validate(home); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// validate checks ranges and resolves the derived day, window and listen address.
func (cfg *appConfig) validate(home string) error {
	if cfg.RefreshInterval <= 0 {
		return fmt.Errorf("invalid refresh-interval: %s", cfg.RefreshInterval)
	}
	if cfg.FetchTimeout <= 0 {
		return fmt.Errorf("invalid fetch-timeout: %s", cfg.FetchTimeout)
	}
	if cfg.APIPort <= 0 || cfg.APIPort > 65535 {
		return fmt.Errorf("invalid api-port: %d", cfg.APIPort)
	}
	if strings.Count(cfg.FilePattern, "%s") != 1 {
		return fmt.Errorf("invalid file-pattern %q: want exactly one %%s", cfg.FilePattern)
	}

	cfg.day = time.Now()
	if cfg.Date != "" {
		day, err := source.ParseDate(cfg.Date, time.Local)
		if err != nil {
			return err
		}
		cfg.day = day
	}

	w, err := query.ParseWindow(cfg.StartTime, cfg.EndTime)
	if err != nil {
		return fmt.Errorf("invalid window: %w", err)
	}
	cfg.window = w
	cfg.StartTime, cfg.EndTime = w.Start, w.End

	// Expand ~ in paths
	if strings.HasPrefix(cfg.LogFile, "~/") {
		cfg.LogFile = filepath.Join(home, cfg.LogFile[2:])
	}
	if strings.HasPrefix(cfg.Source, "~/") {
		cfg.Source = filepath.Join(home, cfg.Source[2:])
	}

	if cfg.APIAddr == "" {
		cfg.APIAddr = net.JoinHostPort(defaultBindHost, strconv.Itoa(cfg.APIPort))
	}
	return nil
}

// criteria is the initial filter built from the configured window and hosts.
func (cfg appConfig) criteria() model.FilterCriteria {
	return model.FilterCriteria{
		Hosts:  model.SelectHosts(cfg.Hosts...),
		Window: cfg.window,
	}
}
