// Package route projects the flattened hop columns of a sample into an ordered route.
package route

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tinytelemetry/netpulse/internal/model"
)

// ErrNoRouteData is returned when a sample carries no plottable hop.
var ErrNoRouteData = errors.New("no route data")

// Extract returns the hops of s in index order.
//
// Slots with neither an address nor a latency are unused and skipped. A hop marked as
// the destination is included and ends the route.
func Extract(s model.Sample) ([]model.RouteHop, error) {
	hops := make([]model.RouteHop, 0, 8)
	for _, h := range s.Hops {
		ip := strings.TrimSpace(h.IP)
		if h.LatencyMs == 0 && ip == "" {
			continue
		}
		dest := h.IsDestination()
		hops = append(hops, model.RouteHop{
			Index:       h.Index,
			IP:          h.DisplayIP(),
			LatencyMs:   h.LatencyMs,
			Destination: dest,
		})
		if dest {
			break
		}
	}
	if len(hops) == 0 {
		return nil, fmt.Errorf("%s at %s: %w", s.Hostname, s.Timestamp.Format("15:04:05"), ErrNoRouteData)
	}
	return hops, nil
}

// Latest extracts the route of the chronologically last sample of view.
func Latest(view model.FilteredView) (model.Sample, []model.RouteHop, error) {
	last, ok := view.Last()
	if !ok {
		return model.Sample{}, nil, ErrNoRouteData
	}
	hops, err := Extract(last)
	return last, hops, err
}

// HopDetail is one line of the per-sample route listing.
type HopDetail struct {
	Index     int     `json:"index"`
	IP        string  `json:"ip"`
	LatencyMs float64 `json:"latency_ms"`
	Timeout   bool    `json:"timeout"`
}

// String renders the hop as "Hop N: ip (12.30 ms)" or "Hop N: ip (timeout)".
func (d HopDetail) String() string {
	if d.Timeout {
		return fmt.Sprintf("Hop %d: %s (timeout)", d.Index, d.IP)
	}
	return fmt.Sprintf("Hop %d: %s (%.2f ms)", d.Index, d.IP, d.LatencyMs)
}

// Describe lists every hop of s that answered with an address, marker included.
// Unlike Extract it keeps zero-latency hops and flags them as lost responses.
func Describe(s model.Sample) []HopDetail {
	var out []HopDetail
	for _, h := range s.Hops {
		ip := strings.TrimSpace(h.IP)
		if ip == "" {
			continue
		}
		out = append(out, HopDetail{
			Index:     h.Index,
			IP:        ip,
			LatencyMs: h.LatencyMs,
			Timeout:   h.LatencyMs <= 0,
		})
	}
	return out
}
