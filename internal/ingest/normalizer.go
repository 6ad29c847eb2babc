package ingest

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/tinytelemetry/netpulse/internal/model"
)

// Semantic field keys produced by NormalizeRow.
const (
	FieldTimestamp      = "timestamp"
	FieldHostname       = "hostname"
	FieldCPU            = "cpu_pct"
	FieldRAM            = "ram_pct"
	FieldDisk           = "disk_pct"
	FieldLoadScore      = "load_score"
	FieldDownload       = "download_mbps"
	FieldUpload         = "upload_mbps"
	FieldSpeedLatency   = "speedtest_latency_ms"
	FieldHealthScore    = "health_score"
	FieldJitter         = "jitter_ms"
	FieldAvgLatency     = "avg_latency_ms"
	FieldLoss           = "loss_pct"
	FieldCity           = "city"
	FieldPublicIP       = "public_ip"
	FieldProvider       = "provider"
	fieldHopIPPrefix    = "hop_ip_"
	fieldHopLatPrefix   = "hop_lat_"
	hopFieldIndexFormat = "%02d"
)

// fieldCandidates lists, per semantic field, the canonical column names seen across
// file revisions. The first candidate present in a row wins.
var fieldCandidates = []struct {
	field      string
	candidates []string
}{
	{FieldTimestamp, []string{"Timestamp", "Data_Hora", "DataHora"}},
	{FieldHostname, []string{"Hostname", "Host", "Maquina"}},
	{FieldCPU, []string{"Uso_CPU", "CPU"}},
	{FieldRAM, []string{"Uso_RAM", "RAM"}},
	{FieldDisk, []string{"Uso_Disco", "Disco"}},
	{FieldLoadScore, []string{"Carga_Computador", "Carga_Media", "Carga"}},
	{FieldDownload, []string{"DownloadMbps", "Download_Mbps", "Download"}},
	{FieldUpload, []string{"UploadMbps", "Upload_Mbps", "Upload"}},
	{FieldSpeedLatency, []string{"Latencia_Speedtestms", "Latencia_Speedtest_ms", "Latencia_Speedtest"}},
	{FieldHealthScore, []string{"Saude_Meet0100", "Saude_Meet0-100", "Saude_Meet_0-100", "Saude_Meet"}},
	{FieldAvgLatency, []string{"Latencia_Meet_Media_ms", "Latencia_Meet_Mediaps", "Latencia_Meet_Media"}},
	{FieldJitter, []string{"Jitter_Meetms", "Jitter_Meet_ms", "Jitter_Meet"}},
	{FieldLoss, []string{"Perda_Meet", "Perda_Meet_pct", "Perda"}},
	{FieldCity, []string{"Cidade", "Localizacao"}},
	{FieldPublicIP, []string{"IP_Publico", "IPPublico"}},
	{FieldProvider, []string{"Provedor", "ISP"}},
}

// NormalizedRow is a row keyed by semantic field names. Absent fields are absent.
type NormalizedRow map[string]string

// Lookup returns the value for field and whether the field was present.
func (r NormalizedRow) Lookup(field string) (string, bool) {
	v, ok := r[field]
	return v, ok
}

// HopIPField returns the semantic key of the address of hop index.
func HopIPField(index int) string {
	return fieldHopIPPrefix + fmt.Sprintf(hopFieldIndexFormat, index)
}

// HopLatencyField returns the semantic key of the latency of hop index.
func HopLatencyField(index int) string {
	return fieldHopLatPrefix + fmt.Sprintf(hopFieldIndexFormat, index)
}

// CanonicalKey strips parentheses, percent signs and surrounding whitespace from a raw
// column name, joins inner whitespace with "_" and drops the first ".".
func CanonicalKey(raw string) string {
	raw = strings.TrimPrefix(raw, "\ufeff")
	raw = strings.TrimSpace(raw)

	var b strings.Builder
	b.Grow(len(raw))
	inSpace := false
	for _, r := range raw {
		switch {
		case r == '(' || r == ')' || r == '%':
			continue
		case unicode.IsSpace(r):
			inSpace = true
			continue
		}
		if inSpace {
			b.WriteByte('_')
			inSpace = false
		}
		b.WriteRune(r)
	}
	return strings.Replace(b.String(), ".", "", 1)
}

// NormalizeRow maps raw column names to semantic fields. It performs no validation.
// The result depends only on the row contents, never on map iteration order.
func NormalizeRow(raw model.RawRow) NormalizedRow {
	canon := canonicalize(raw)
	folded := make(map[string]string, len(canon))
	for _, k := range sortedKeys(canon) {
		lk := strings.ToLower(k)
		if _, exists := folded[lk]; !exists {
			folded[lk] = k
		}
	}

	lookup := func(candidate string) (string, bool) {
		if v, ok := canon[candidate]; ok {
			return v, true
		}
		if k, ok := folded[strings.ToLower(candidate)]; ok {
			return canon[k], true
		}
		return "", false
	}

	out := make(NormalizedRow, len(fieldCandidates)+2*model.MaxHops)
	for _, fc := range fieldCandidates {
		for _, candidate := range fc.candidates {
			if v, ok := lookup(candidate); ok {
				out[fc.field] = v
				break
			}
		}
	}

	for i := 1; i <= model.MaxHops; i++ {
		if v, ok := firstPresent(lookup, hopIPCandidates(i)); ok {
			out[HopIPField(i)] = v
		}
		if v, ok := firstPresent(lookup, hopLatencyCandidates(i)); ok {
			out[HopLatencyField(i)] = v
		}
	}
	return out
}

func hopIPCandidates(i int) []string {
	return []string{
		fmt.Sprintf("Hop_IP_%02d", i),
		fmt.Sprintf("Hop_IP_%d", i),
	}
}

func hopLatencyCandidates(i int) []string {
	return []string{
		fmt.Sprintf("Hop_LAT_%02dms", i),
		fmt.Sprintf("Hop_LAT_%02d_ms", i),
		fmt.Sprintf("Hop_LAT_%02d", i),
		fmt.Sprintf("Hop_LAT_%dms", i),
	}
}

func firstPresent(lookup func(string) (string, bool), candidates []string) (string, bool) {
	for _, c := range candidates {
		if v, ok := lookup(c); ok {
			return v, true
		}
	}
	return "", false
}

// canonicalize rewrites every raw key. When two raw keys collapse onto the same
// canonical key, a non-empty value beats an empty one and ties go to the
// lexicographically first raw key.
func canonicalize(raw model.RawRow) map[string]string {
	out := make(map[string]string, len(raw))
	rawKeys := make([]string, 0, len(raw))
	for k := range raw {
		rawKeys = append(rawKeys, k)
	}
	sort.Strings(rawKeys)

	for _, k := range rawKeys {
		ck := CanonicalKey(k)
		if ck == "" {
			continue
		}
		v := raw[k]
		if existing, ok := out[ck]; ok && (strings.TrimSpace(existing) != "" || strings.TrimSpace(v) == "") {
			continue
		}
		out[ck] = v
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
