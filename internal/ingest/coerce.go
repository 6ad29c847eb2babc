package ingest

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tinytelemetry/netpulse/internal/model"
	"github.com/tinytelemetry/netpulse/internal/timestamp"
)

// leadingNumber matches the numeric prefix of a cell, so "55.2%" and "12ms" still parse.
var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// Coerced is a typed record that has not yet been validated.
type Coerced struct {
	Sample         model.Sample
	TimestampValid bool
}

// Coercer converts normalized rows into typed records. It is a pure function of its
// input: Coerce keeps no state between calls.
type Coercer struct {
	parser *timestamp.Parser
}

// NewCoercer creates a coercer reading wall-clock timestamps with parser.
func NewCoercer(parser *timestamp.Parser) *Coercer {
	if parser == nil {
		parser = timestamp.NewParser()
	}
	return &Coercer{parser: parser}
}

// Coerce applies the per-field conversions. Every conversion is total.
func (c *Coercer) Coerce(row NormalizedRow) Coerced {
	var out Coerced

	ts, ok := c.parseTimestamp(row)
	out.TimestampValid = ok
	out.Sample.Timestamp = ts

	s := &out.Sample
	s.Hostname = strings.TrimSpace(row[FieldHostname])
	s.CPUPct = ParseNumber(row[FieldCPU])
	s.RAMPct = ParseNumber(row[FieldRAM])
	s.DiskPct = ParseNumber(row[FieldDisk])
	s.LoadScore = max(ParseInteger(row[FieldLoadScore]), 0)
	s.DownloadMbps = ParseNumber(row[FieldDownload])
	s.UploadMbps = ParseNumber(row[FieldUpload])
	s.SpeedtestLatencyMs = ParseNumber(row[FieldSpeedLatency])
	s.HealthScore = min(max(ParseInteger(row[FieldHealthScore]), 0), maxHealthScore)
	s.JitterMs = ParseNumber(row[FieldJitter])
	s.AvgLatencyMs = ParseNumber(row[FieldAvgLatency])
	s.LossPct = ParseNumber(row[FieldLoss])
	s.City = strings.TrimSpace(row[FieldCity])
	s.PublicIP = strings.TrimSpace(row[FieldPublicIP])
	s.Provider = strings.TrimSpace(row[FieldProvider])

	for i := 1; i <= model.MaxHops; i++ {
		s.Hops[i-1] = model.Hop{
			Index:     i,
			IP:        strings.TrimSpace(row[HopIPField(i)]),
			LatencyMs: ParseNumber(row[HopLatencyField(i)]),
		}
	}
	return out
}

func (c *Coercer) parseTimestamp(row NormalizedRow) (time.Time, bool) {
	raw, ok := row.Lookup(FieldTimestamp)
	if !ok {
		return time.Time{}, false
	}
	return c.parser.Parse(raw)
}

// ParseNumber reads a locale-variant decimal. A comma decimal separator is
// accepted; empty or unparseable input yields 0.
func ParseNumber(raw string) float64 {
	s := normalizeDecimal(strings.TrimSpace(raw))
	if s == "" {
		return 0
	}
	m := leadingNumber.FindString(s)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// maxHealthScore is the top of the 0-100 meeting health scale.
const maxHealthScore = 100

// ParseInteger parses like ParseNumber and truncates toward zero.
func ParseInteger(raw string) int {
	v := ParseNumber(raw)
	if v > math.MaxInt32 || v < math.MinInt32 {
		return 0
	}
	return int(v)
}

// normalizeDecimal turns "1.234,5" and "12,5" into dot-decimal form.
func normalizeDecimal(s string) string {
	lastComma := strings.LastIndexByte(s, ',')
	if lastComma < 0 {
		return s
	}
	lastDot := strings.LastIndexByte(s, '.')
	switch {
	case lastDot < 0:
		return strings.ReplaceAll(s, ",", ".")
	case lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		return strings.ReplaceAll(s, ",", ".")
	default:
		return strings.ReplaceAll(s, ",", "")
	}
}
