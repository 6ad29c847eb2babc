package model

import "time"

// Shared defaults used by both the server and TUI binaries.
const (
	// MaxHops is the number of hop column pairs carried by every snapshot row.
	// Ingestion and route extraction both iterate exactly this many slots.
	MaxHops = 30

	DefaultRefreshInterval = 10 * time.Minute
	DefaultFilePattern     = "py_monitor_%s.csv"
	DefaultWindowStart     = "00:00"
	DefaultWindowEnd       = "23:59"
	DefaultSource          = "."

	// DestinationMarker is appended to a hop address when the probe reached its target.
	DestinationMarker = "[DESTINO]"
)
