// Package series derives chart-ready label and value arrays with axis bounds from a
// filtered view. Each metric group keeps its own scaling policy.
package series

import (
	"errors"
	"fmt"

	"github.com/tinytelemetry/netpulse/internal/model"
)

// Metric groups.
const (
	GroupMachine   = "machine"
	GroupSpeedtest = "speedtest"
	GroupMeet      = "meet"
	GroupRoute     = "route"
)

var (
	// ErrEmptyView is returned when there is nothing to plot.
	ErrEmptyView = errors.New("empty view")
	// ErrUnknownGroup is returned for a group name Build does not know.
	ErrUnknownGroup = errors.New("unknown metric group")
)

var (
	machinePolicy = AxisPolicy{Step: 10, Floor: 50, Default: 10, PositiveOnly: true}
	mbpsPolicy    = AxisPolicy{Step: 100, Floor: 100, Default: 50}
	speedLatency  = AxisPolicy{Step: 50, Floor: 50, Default: 50}
	scorePolicy   = AxisPolicy{Fixed: 100}
	meetLatency   = AxisPolicy{Step: 25, Floor: 50, Default: 10}
	hopPolicy     = AxisPolicy{Step: 50, Floor: 50, Default: 50}
)

// TimeGroups are the groups plotted over time, in display order.
var TimeGroups = []string{GroupMachine, GroupSpeedtest, GroupMeet}

// Build dispatches to the builder of a time group. Route charts come from Route.
func Build(group string, view model.FilteredView) (model.ChartSeries, error) {
	switch group {
	case GroupMachine:
		return Machine(view)
	case GroupSpeedtest:
		return Speedtest(view)
	case GroupMeet:
		return Meet(view)
	default:
		return model.ChartSeries{}, fmt.Errorf("%q: %w", group, ErrUnknownGroup)
	}
}

// Labels returns the "HH:MM" label of every sample of the view.
func Labels(view model.FilteredView) []string {
	out := make([]string, len(view.Samples))
	for i, s := range view.Samples {
		out[i] = s.Clock()
	}
	return out
}

func column(view model.FilteredView, fn func(model.Sample) float64) []float64 {
	out := make([]float64, len(view.Samples))
	for i, s := range view.Samples {
		out[i] = fn(s)
	}
	return out
}

// Machine builds CPU, RAM, disk and load score on one percentage axis. Zero readings
// are ignored when sizing the axis.
func Machine(view model.FilteredView) (model.ChartSeries, error) {
	if view.Len() == 0 {
		return model.ChartSeries{}, fmt.Errorf("%s: %w", GroupMachine, ErrEmptyView)
	}
	cpu := column(view, func(s model.Sample) float64 { return s.CPUPct })
	ram := column(view, func(s model.Sample) float64 { return s.RAMPct })
	disk := column(view, func(s model.Sample) float64 { return s.DiskPct })
	load := column(view, func(s model.Sample) float64 { return float64(s.LoadScore) })

	return model.ChartSeries{
		Group:  GroupMachine,
		Title:  "Machine load",
		Labels: Labels(view),
		Metrics: []model.MetricSeries{
			{Key: "cpu", Label: "CPU (%)", AxisID: "usage", Values: cpu},
			{Key: "ram", Label: "RAM (%)", AxisID: "usage", Values: ram},
			{Key: "disk", Label: "Disk (%)", AxisID: "usage", Values: disk},
			{Key: "load", Label: "Load score", AxisID: "usage", Values: load},
		},
		Axes: []model.Axis{
			{ID: "usage", Title: "Usage (%) / load (0-100)", Max: machinePolicy.Bound(cpu, ram, disk, load)},
		},
	}, nil
}

// Speedtest builds download and upload on a Mbps axis and the test latency on its own axis.
func Speedtest(view model.FilteredView) (model.ChartSeries, error) {
	if view.Len() == 0 {
		return model.ChartSeries{}, fmt.Errorf("%s: %w", GroupSpeedtest, ErrEmptyView)
	}
	down := column(view, func(s model.Sample) float64 { return s.DownloadMbps })
	up := column(view, func(s model.Sample) float64 { return s.UploadMbps })
	lat := column(view, func(s model.Sample) float64 { return s.SpeedtestLatencyMs })

	return model.ChartSeries{
		Group:  GroupSpeedtest,
		Title:  "Speed test",
		Labels: Labels(view),
		Metrics: []model.MetricSeries{
			{Key: "download", Label: "Download (Mbps)", AxisID: "mbps", Values: down},
			{Key: "upload", Label: "Upload (Mbps)", AxisID: "mbps", Values: up},
			{Key: "latency", Label: "Latency (ms)", AxisID: "latency", Values: lat},
		},
		Axes: []model.Axis{
			{ID: "mbps", Title: "Speed (Mbps)", Max: mbpsPolicy.Bound(down, up)},
			{ID: "latency", Title: "Latency (ms)", Max: speedLatency.Bound(lat)},
		},
	}, nil
}

// Meet builds the conferencing health score on a fixed 0-100 axis and latency and
// jitter on an auto-scaled axis.
func Meet(view model.FilteredView) (model.ChartSeries, error) {
	if view.Len() == 0 {
		return model.ChartSeries{}, fmt.Errorf("%s: %w", GroupMeet, ErrEmptyView)
	}
	score := column(view, func(s model.Sample) float64 { return float64(s.HealthScore) })
	jitter := column(view, func(s model.Sample) float64 { return s.JitterMs })
	lat := column(view, func(s model.Sample) float64 { return s.AvgLatencyMs })

	return model.ChartSeries{
		Group:  GroupMeet,
		Title:  "Meet quality",
		Labels: Labels(view),
		Metrics: []model.MetricSeries{
			{Key: "health", Label: "Health score (0-100)", AxisID: "score", Values: score},
			{Key: "jitter", Label: "Jitter (ms)", AxisID: "latency", Values: jitter},
			{Key: "latency", Label: "Avg latency (ms)", AxisID: "latency", Values: lat},
		},
		Axes: []model.Axis{
			{ID: "score", Title: "Health score", Max: scorePolicy.Bound(), Step: 25},
			{ID: "latency", Title: "Latency / jitter (ms)", Max: meetLatency.Bound(jitter, lat)},
		},
	}, nil
}

// Route builds the per-hop latency bars of an extracted route, labelled "Hop N".
func Route(hops []model.RouteHop) (model.ChartSeries, error) {
	if len(hops) == 0 {
		return model.ChartSeries{}, fmt.Errorf("%s: %w", GroupRoute, ErrEmptyView)
	}
	labels := make([]string, len(hops))
	lat := make([]float64, len(hops))
	for i, h := range hops {
		labels[i] = fmt.Sprintf("Hop %d", h.Index)
		lat[i] = h.LatencyMs
	}

	return model.ChartSeries{
		Group:  GroupRoute,
		Title:  "Route by hop",
		Labels: labels,
		Metrics: []model.MetricSeries{
			{Key: "latency", Label: "Latency per hop (ms)", AxisID: "latency", Values: lat},
		},
		Axes: []model.Axis{
			{ID: "latency", Title: "Latency (ms)", Max: hopPolicy.Bound(lat)},
		},
	}, nil
}
