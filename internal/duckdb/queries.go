package duckdb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// maxQueryRows caps the rows returned by ExecuteQuery.
const maxQueryRows = 1000

// snapshotTables is the allowlist of tables reported by TableRowCounts.
var snapshotTables = []string{"samples", "route_hops"}

// dangerousKeywordPattern matches statements that could modify or escape the database.
// Word boundaries keep "RESET" from matching "SET".
var dangerousKeywordPattern = regexp.MustCompile(
	`(?i)\b(INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|TRUNCATE|COPY|ATTACH|DETACH|LOAD|EXPORT|IMPORT|INSTALL|CALL|EXECUTE|PRAGMA|SET)\b`,
)

// blockCommentPattern matches C-style block comments (/* ... */).
var blockCommentPattern = regexp.MustCompile(`/\*[\s\S]*?\*/`)

// ErrQueryRejected is wrapped by every error ExecuteQuery returns before running the query.
var ErrQueryRejected = errors.New("query rejected")

// HostCount is the number of stored samples for one hostname.
type HostCount struct {
	Hostname string `json:"hostname"`
	Samples  int64  `json:"samples"`
}

// stripSQLComments removes -- line comments and /* */ block comments from a query.
func stripSQLComments(query string) string {
	cleaned := blockCommentPattern.ReplaceAllString(query, " ")
	var b strings.Builder
	for _, line := range strings.Split(cleaned, "\n") {
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = line[:idx]
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// queryCtx returns a context with the store's configured query timeout.
func (s *Store) queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.QueryTimeout)
}

// checkReadOnly returns an error unless query is a single SELECT/WITH statement.
func checkReadOnly(query string) error {
	if strings.Contains(query, ";") {
		return fmt.Errorf("%w: query must not contain semicolons", ErrQueryRejected)
	}

	stripped := strings.TrimSpace(stripSQLComments(query))
	upper := strings.ToUpper(stripped)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return fmt.Errorf("%w: only SELECT/WITH queries are allowed", ErrQueryRejected)
	}
	if match := dangerousKeywordPattern.FindString(stripped); match != "" {
		return fmt.Errorf("%w: query contains disallowed keyword: %s", ErrQueryRejected, strings.ToUpper(match))
	}
	return nil
}

// ExecuteQuery runs a read-only SQL query against the current generation and
// returns at most 1000 rows as column name -> value maps.
func (s *Store) ExecuteQuery(query string) ([]map[string]interface{}, error) {
	trimmed := strings.TrimSpace(query)
	if err := checkReadOnly(trimmed); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()
	rows, err := s.db.QueryContext(ctx, trimmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]interface{}
	for rows.Next() && len(results) < maxQueryRows {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(results), err)
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// GetSchemaDescription returns a human-readable description of the queryable tables.
func (s *Store) GetSchemaDescription() string {
	return `Table 'dataset': generation (UBIGINT), source (VARCHAR), loaded_at (TIMESTAMP), ` +
		`samples (INTEGER), rejected (INTEGER). ` +
		`Table 'samples': seq (INTEGER, arrival order), timestamp (TIMESTAMP, UTC), ` +
		`clock (VARCHAR: local HH:MM), hostname (VARCHAR), cpu_pct (DOUBLE), ram_pct (DOUBLE), ` +
		`disk_pct (DOUBLE), load_score (INTEGER), download_mbps (DOUBLE), upload_mbps (DOUBLE), ` +
		`speedtest_latency_ms (DOUBLE), health_score (INTEGER 0-100), jitter_ms (DOUBLE), ` +
		`avg_latency_ms (DOUBLE), loss_pct (DOUBLE), city (VARCHAR), public_ip (VARCHAR), provider (VARCHAR). ` +
		`Table 'route_hops': sample_seq (INTEGER, joins samples.seq), hop (INTEGER 1-30), ` +
		`ip (VARCHAR), latency_ms (DOUBLE, 0 = timeout), destination (BOOLEAN).`
}

// TableRowCounts returns the row count of each snapshot table.
func (s *Store) TableRowCounts() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	counts := make(map[string]int64, len(snapshotTables))
	for _, table := range snapshotTables {
		var count int64
		// Table names come from the allowlist, never from input.
		if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = count
	}
	return counts, nil
}

// HostSampleCounts returns the stored sample count per hostname, busiest first.
func (s *Store) HostSampleCounts() ([]HostCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT hostname, COUNT(*) AS samples
		FROM samples
		GROUP BY hostname
		ORDER BY samples DESC, hostname ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HostCount
	for rows.Next() {
		var hc HostCount
		if err := rows.Scan(&hc.Hostname, &hc.Samples); err != nil {
			return nil, err
		}
		out = append(out, hc)
	}
	return out, rows.Err()
}
