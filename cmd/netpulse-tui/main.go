package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/tinytelemetry/netpulse/internal/logging"
	"github.com/tinytelemetry/netpulse/internal/model"
	"github.com/tinytelemetry/netpulse/internal/monitor"
	"github.com/tinytelemetry/netpulse/internal/source"
	"github.com/tinytelemetry/netpulse/internal/tui"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	fs := newFlagSet()
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if showVersion, _ := fs.GetBool("version"); showVersion {
		fmt.Printf("netpulse CLI - Dashboard\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadCLIConfig(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := runTUI(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runTUI(cfg cliConfig) error {
	// The terminal belongs to the dashboard, so logs only go to the file.
	logger, cleanup, err := logging.New(logging.Config{File: cfg.LogFile, Level: cfg.LogLevel})
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanup()

	fetcher, err := source.New(cfg.Source)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}

	session := monitor.New(monitor.Config{
		FilePattern: cfg.FilePattern,
		Date:        cfg.day,
		Criteria: model.FilterCriteria{
			Hosts:  model.SelectHosts(cfg.Hosts...),
			Window: cfg.window,
		},
		Logger: logger.WithName("monitor"),
	})

	dashboard := tui.NewDashboardModel(tui.Config{
		Session:         session,
		Fetcher:         fetcher,
		Date:            cfg.day,
		RefreshInterval: cfg.RefreshInterval,
		FetchTimeout:    cfg.FetchTimeout,
		Logger:          logger.WithName("tui"),
	})
	app := tui.NewApp(tui.NewDashboardPage(dashboard))

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
			return fmt.Errorf("TUI requires a real terminal")
		}
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
