package ingest

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tinytelemetry/netpulse/internal/model"
	"github.com/tinytelemetry/netpulse/internal/timestamp"
)

func TestProcess_Desk01Row(t *testing.T) {
	t.Parallel()

	p := NewPipeline(WithParser(timestamp.NewParserIn(time.UTC)))
	s, ok := p.Process(model.RawRow{
		"Timestamp":    "2024-01-10 14:32:05",
		"Hostname":     "desk-01",
		"Uso_CPU(%)":   "55.2",
		"Hop_IP_01":    "10.0.0.1",
		"Hop_LAT_01ms": "12.3",
		"Hop_IP_02":    "",
		"Hop_LAT_02ms": "0",
	})
	if !ok {
		t.Fatal("row rejected")
	}
	if s.Hostname != "desk-01" {
		t.Errorf("hostname = %q, want desk-01", s.Hostname)
	}
	if s.CPUPct != 55.2 {
		t.Errorf("cpu = %v, want 55.2", s.CPUPct)
	}
	if s.Hops[0].IP != "10.0.0.1" || s.Hops[0].LatencyMs != 12.3 {
		t.Errorf("hop 1 = %+v", s.Hops[0])
	}
	if s.Hops[1].IP != "" || s.Hops[1].LatencyMs != 0 {
		t.Errorf("hop 2 = %+v, want empty", s.Hops[1])
	}
}

// Every combination of a missing/garbage timestamp or a blank/placeholder hostname
// must be rejected, whatever the other columns hold.
func TestProcess_RejectsMissingTimestampOrSentinelHost(t *testing.T) {
	t.Parallel()

	p := NewPipeline()
	timestamps := []*string{nil, ptr(""), ptr("   "), ptr("garbage"), ptr("2024-02-30 10:00:00")}
	validTS := "2024-01-10 14:32:05"
	hosts := []*string{nil, ptr(""), ptr("  "), ptr("N/A"), ptr("n/a"), ptr("NA"), ptr("-"), ptr("null"), ptr("undefined")}
	fillers := []model.RawRow{
		{},
		{"Uso_CPU(%)": "55.2", "DownloadMbps": "300"},
		{"Hop_IP_01": "10.0.0.1", "Hop_LAT_01ms": "5"},
	}

	build := func(ts, host *string, filler model.RawRow) model.RawRow {
		row := model.RawRow{}
		for k, v := range filler {
			row[k] = v
		}
		if ts != nil {
			row["Timestamp"] = *ts
		}
		if host != nil {
			row["Hostname"] = *host
		}
		return row
	}

	for i, ts := range timestamps {
		for j, filler := range fillers {
			row := build(ts, ptr("desk-01"), filler)
			if _, ok := p.Process(row); ok {
				t.Errorf("timestamp case %d filler %d accepted: %v", i, j, row)
			}
		}
	}
	for i, host := range hosts {
		for j, filler := range fillers {
			row := build(&validTS, host, filler)
			if _, ok := p.Process(row); ok {
				t.Errorf("host case %d filler %d accepted: %v", i, j, row)
			}
		}
	}
}

func TestProcess_PartialTelemetryIsKept(t *testing.T) {
	t.Parallel()

	s, ok := NewPipeline().Process(model.RawRow{
		"Timestamp":    "2024-01-10 14:32:05",
		"Hostname":     "desk-01",
		"DownloadMbps": "falha",
	})
	if !ok {
		t.Fatal("row with failed speed test must be kept")
	}
	if s.DownloadMbps != 0 {
		t.Errorf("download = %v, want 0", s.DownloadMbps)
	}
}

func TestBuild_CountsRejected(t *testing.T) {
	t.Parallel()

	rows := make([]model.RawRow, 0, 10)
	for i := 0; i < 10; i++ {
		host := fmt.Sprintf("desk-%02d", i)
		if i%3 == 0 {
			host = "N/A"
		}
		rows = append(rows, model.RawRow{
			"Timestamp": fmt.Sprintf("2024-01-10 10:%02d:00", i),
			"Hostname":  host,
		})
	}

	ds, err := NewPipeline().Build(7, "py_monitor_10-01-24.csv", rows)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if ds.Len() != 6 || ds.Rejected() != 4 {
		t.Fatalf("valid/rejected = %d/%d, want 6/4", ds.Len(), ds.Rejected())
	}
	if ds.Generation() != 7 || ds.Source() != "py_monitor_10-01-24.csv" {
		t.Errorf("generation/source = %d/%q", ds.Generation(), ds.Source())
	}

	samples := ds.Samples()
	for i := 1; i < len(samples); i++ {
		if samples[i].Timestamp.Before(samples[i-1].Timestamp) {
			t.Fatalf("arrival order not preserved at %d", i)
		}
	}
}

func TestBuild_AllMissingTimestampIsEmptyDataset(t *testing.T) {
	t.Parallel()

	rows := []model.RawRow{
		{"Hostname": "desk-01", "Uso_CPU(%)": "10"},
		{"Hostname": "desk-02", "Uso_CPU(%)": "20"},
	}
	ds, err := NewPipeline().Build(1, "py_monitor_10-01-24.csv", rows)
	if !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("err = %v, want ErrEmptyDataset", err)
	}
	if ds.Len() != 0 || ds.Rejected() != 2 {
		t.Fatalf("valid/rejected = %d/%d, want 0/2", ds.Len(), ds.Rejected())
	}
}

func TestBuild_NoRows(t *testing.T) {
	t.Parallel()

	if _, err := NewPipeline().Build(1, "empty.csv", nil); !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("err = %v, want ErrEmptyDataset", err)
	}
}

func ptr(s string) *string { return &s }
