package duckdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/tinytelemetry/netpulse/internal/model"
)

const insertSampleSQL = `INSERT INTO samples (
	seq, timestamp, clock, hostname,
	cpu_pct, ram_pct, disk_pct, load_score,
	download_mbps, upload_mbps, speedtest_latency_ms,
	health_score, jitter_ms, avg_latency_ms, loss_pct,
	city, public_ip, provider
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertHopSQL = `INSERT INTO route_hops (sample_seq, hop, ip, latency_ms, destination) VALUES (?, ?, ?, ?, ?)`

// ReplaceDataset swaps the stored contents for ds in a single transaction. Readers see
// either the previous generation or ds, never a mix. Older generations are ignored.
func (s *Store) ReplaceDataset(ds *model.Dataset) error {
	if ds == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ds.Generation() < s.generation {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.QueryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"route_hops", "samples", "dataset"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO dataset (generation, source, loaded_at, samples, rejected) VALUES (?, ?, ?, ?, ?)",
		ds.Generation(), ds.Source(), ds.LoadedAt().UTC(), ds.Len(), ds.Rejected(),
	); err != nil {
		return fmt.Errorf("insert dataset: %w", err)
	}

	sampleStmt, err := tx.PrepareContext(ctx, insertSampleSQL)
	if err != nil {
		return fmt.Errorf("prepare sample insert: %w", err)
	}
	defer sampleStmt.Close()

	hopStmt, err := tx.PrepareContext(ctx, insertHopSQL)
	if err != nil {
		return fmt.Errorf("prepare hop insert: %w", err)
	}
	defer hopStmt.Close()

	var insertErr error
	ds.Each(func(i int, smp model.Sample) {
		if insertErr != nil {
			return
		}
		if _, err := sampleStmt.ExecContext(ctx,
			i, smp.Timestamp.UTC(), smp.Clock(), smp.Hostname,
			smp.CPUPct, smp.RAMPct, smp.DiskPct, smp.LoadScore,
			smp.DownloadMbps, smp.UploadMbps, smp.SpeedtestLatencyMs,
			smp.HealthScore, smp.JitterMs, smp.AvgLatencyMs, smp.LossPct,
			smp.City, smp.PublicIP, smp.Provider,
		); err != nil {
			insertErr = fmt.Errorf("insert sample %d: %w", i, err)
			return
		}
		for _, hop := range smp.Hops {
			if hop.LatencyMs == 0 && strings.TrimSpace(hop.IP) == "" {
				continue
			}
			if _, err := hopStmt.ExecContext(ctx, i, hop.Index, hop.DisplayIP(), hop.LatencyMs, hop.IsDestination()); err != nil {
				insertErr = fmt.Errorf("insert hop %d of sample %d: %w", hop.Index, i, err)
				return
			}
		}
	})
	if insertErr != nil {
		return insertErr
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	committed = true
	s.generation = ds.Generation()
	return nil
}
