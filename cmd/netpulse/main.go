package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/tinytelemetry/netpulse/internal/monitor"
	"github.com/tinytelemetry/netpulse/internal/otlpexport"
	"github.com/tinytelemetry/netpulse/internal/source"
)

// Build variables - set by ldflags during build.
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
		fmt.Printf("netpulse - Network Quality Monitor\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadConfig(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if printConfig, _ := fs.GetBool("print-config"); printConfig {
		if err := writeConfig(os.Stdout, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if dump, _ := fs.GetBool("dump-otlp"); dump {
		if err := dumpOTLP(os.Stdout, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := runServer(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func writeConfig(w io.Writer, cfg appConfig) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}

// dumpOTLP loads the configured snapshot once and writes the filtered samples as an
// OTLP metrics export request in JSON.
func dumpOTLP(w io.Writer, cfg appConfig) error {
	fetcher, err := source.New(cfg.Source)
	if err != nil {
		return err
	}
	session := monitor.New(monitor.Config{
		Fetcher:     fetcher,
		FilePattern: cfg.FilePattern,
		Date:        cfg.day,
		Criteria:    cfg.criteria(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.FetchTimeout)
	defer cancel()
	if err := session.Load(ctx); err != nil {
		return err
	}

	out, err := otlpexport.MarshalJSON(session.Snapshot().View.Samples)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
