package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/netpulse/internal/duckdb"
	"github.com/tinytelemetry/netpulse/internal/httpserver"
	"github.com/tinytelemetry/netpulse/internal/logging"
	"github.com/tinytelemetry/netpulse/internal/model"
	"github.com/tinytelemetry/netpulse/internal/monitor"
	"github.com/tinytelemetry/netpulse/internal/otlpexport"
	"github.com/tinytelemetry/netpulse/internal/source"
)

// runServer loads snapshots on a timer and on file changes, and serves the HTTP API.
func runServer(cfg appConfig) error {
	logger, cleanupLogger, err := logging.New(logging.Config{File: cfg.LogFile, Level: cfg.LogLevel})
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogger()

	fetcher, err := source.New(cfg.Source)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitor.RegisterMetrics(reg)

	var (
		sinks []model.DatasetWriter
		store httpserver.QueryStore
	)
	if cfg.DBEnabled {
		db, err := duckdb.NewStore(cfg.QueryTimeout)
		if err != nil {
			return fmt.Errorf("failed to initialize DuckDB: %w", err)
		}
		defer db.Close()
		sinks = append(sinks, db)
		store = db
	}
	if cfg.OTLPEndpoint != "" {
		exporter, err := otlpexport.NewExporter(cfg.OTLPEndpoint, logger.WithName("otlp"))
		if err != nil {
			return fmt.Errorf("failed to initialize OTLP exporter: %w", err)
		}
		defer exporter.Close()
		sinks = append(sinks, exporter)
	}

	session := monitor.New(monitor.Config{
		Fetcher:     fetcher,
		FilePattern: cfg.FilePattern,
		Date:        cfg.day,
		Criteria:    cfg.criteria(),
		Sink:        monitor.MultiSink(sinks...),
		Metrics:     metrics,
		Logger:      logger.WithName("monitor"),
	})

	if cfg.APIEnabled {
		apiServer := httpserver.NewServer(httpserver.Config{
			Addr:     cfg.APIAddr,
			Session:  session,
			Store:    store,
			Gatherer: reg,
			Logger:   logger.WithName("http"),
		})
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var watcher *source.Watcher
	if dir, ok := fetcher.(*source.DirFetcher); ok && cfg.Watch {
		watcher, err = source.NewWatcher(dir.Location(), logger.WithName("watch"))
		if err != nil {
			logger.Error(err, "file watching disabled", "dir", dir.Location())
			watcher = nil
		}
	}

	load := func(reason string) {
		if watcher != nil {
			watcher.SetTarget(session.FileName())
		}
		lctx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
		defer cancel()
		if err := session.Load(lctx); err != nil && !errors.Is(err, monitor.ErrStaleResult) {
			logger.Error(err, "load failed", "reason", reason, "file", session.FileName())
		}
	}

	printStartupBanner(cfg, fetcher.Location(), watcher != nil)

	g, gctx := errgroup.WithContext(ctx)

	var refresher monitor.Refresher
	defer refresher.Stop()
	g.Go(func() error {
		load("startup")
		refresher.Start(cfg.RefreshInterval, func() { load("refresh") })
		<-gctx.Done()
		refresher.Stop()
		return nil
	})

	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(gctx, func(name string) {
				if gctx.Err() != nil {
					return
				}
				logger.V(1).Info("snapshot file changed", "file", name)
				// A change-triggered load restarts the refresh period.
				refresher.Start(cfg.RefreshInterval, func() { load("refresh") })
				load("file-change")
			})
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error(err, "server exited with error")
		return err
	}
	fmt.Println("\nShutting down gracefully...")
	return nil
}

func printStartupBanner(cfg appConfig, location string, watching bool) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")
	row := func(on bool, name, value string) string {
		mark, style := dot, dim
		if on {
			mark, style = check, cyan
		}
		return fmt.Sprintf("    %s  %-14s %s", mark, name, style.Render(value))
	}

	logo := cyan.Bold(true).Render(`
    ╔╗╔╔═╗╔╦╗╔═╗╦ ╦╦  ╔═╗╔═╗
    ║║║║╣  ║ ╠═╝║ ║║  ╚═╗║╣
    ╝╚╝╚═╝ ╩ ╩  ╚═╝╩═╝╚═╝╚═╝`)

	separator := dim.Render("    ─────────────────────────────────")

	lines := []string{"", logo, "    " + dim.Render("v"+version), "", separator, ""}

	lines = append(lines, bold.Render("    Source"), "")
	lines = append(lines, row(true, "Location", shortenPath(location)))
	lines = append(lines, row(true, "Pattern", cfg.FilePattern))
	lines = append(lines, row(true, "Refresh", cfg.RefreshInterval.String()))
	if watching {
		lines = append(lines, row(true, "Watch", "on"))
	} else {
		lines = append(lines, row(false, "Watch", "off"))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Outputs"), "")
	if cfg.APIEnabled {
		lines = append(lines, row(true, "HTTP API", cfg.APIAddr))
	} else {
		lines = append(lines, row(false, "HTTP API", "disabled"))
	}
	if cfg.DBEnabled {
		lines = append(lines, row(true, "SQL Snapshot", "in-memory"))
	} else {
		lines = append(lines, row(false, "SQL Snapshot", "disabled"))
	}
	if cfg.OTLPEndpoint != "" {
		lines = append(lines, row(true, "OTLP Export", cfg.OTLPEndpoint))
	} else {
		lines = append(lines, row(false, "OTLP Export", "disabled"))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Config"), "")
	if cfg.ConfigPath != "" {
		lines = append(lines, row(true, "Config File", shortenPath(cfg.ConfigPath)))
	} else {
		lines = append(lines, row(false, "Config File", "default (no file)"))
	}
	logFile := cfg.LogFile
	if logFile == "" {
		logFile = logging.DefaultPath()
	}
	lines = append(lines, row(true, "Log File", shortenPath(logFile)))

	lines = append(lines, "", separator, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"), "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
