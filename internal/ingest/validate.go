package ingest

import (
	"strings"

	"github.com/tinytelemetry/netpulse/internal/model"
	"github.com/tinytelemetry/netpulse/internal/timestamp"
)

// sentinelHosts are "not available" placeholders written by the collector.
var sentinelHosts = map[string]struct{}{
	"n/a":       {},
	"na":        {},
	"-":         {},
	"null":      {},
	"undefined": {},
}

// IsSentinelHost reports whether host is empty or a placeholder.
func IsSentinelHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	if h == "" {
		return true
	}
	_, ok := sentinelHosts[h]
	return ok
}

// Validate accepts or rejects a coerced record as a whole.
// Only the timestamp and hostname can reject; every other field keeps its default.
func Validate(c Coerced) (model.Sample, bool) {
	if !c.TimestampValid || !timestamp.Valid(c.Sample.Timestamp) {
		return model.Sample{}, false
	}
	if IsSentinelHost(c.Sample.Hostname) {
		return model.Sample{}, false
	}
	return c.Sample, true
}
