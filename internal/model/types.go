package model

import (
	"sort"
	"strings"
	"time"
)

// Hop is one slot of the flattened route probe carried by a sample.
type Hop struct {
	Index     int     `json:"index"`
	IP        string  `json:"ip"`         // empty = no response at this index
	LatencyMs float64 `json:"latency_ms"` // 0 = no response
}

// IsDestination reports whether the probe reached its target at this hop.
func (h Hop) IsDestination() bool {
	return strings.Contains(h.IP, DestinationMarker)
}

// DisplayIP returns the hop address without the destination marker.
func (h Hop) DisplayIP() string {
	return strings.TrimSpace(strings.ReplaceAll(h.IP, DestinationMarker, ""))
}

// Sample is one normalized telemetry record for one machine at one point in time.
// It is the canonical type for the query layer, storage, and display.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Hostname  string    `json:"hostname"`

	// Machine load
	CPUPct    float64 `json:"cpu_pct"`
	RAMPct    float64 `json:"ram_pct"`
	DiskPct   float64 `json:"disk_pct"`
	LoadScore int     `json:"load_score"`

	// Speed test
	DownloadMbps       float64 `json:"download_mbps"`
	UploadMbps         float64 `json:"upload_mbps"`
	SpeedtestLatencyMs float64 `json:"speedtest_latency_ms"`

	// Conferencing quality
	HealthScore  int     `json:"health_score"`
	JitterMs     float64 `json:"jitter_ms"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	LossPct      float64 `json:"loss_pct"`

	// Descriptive columns shown in the event details view.
	City     string `json:"city,omitempty"`
	PublicIP string `json:"public_ip,omitempty"`
	Provider string `json:"provider,omitempty"`

	Hops [MaxHops]Hop `json:"hops"`
}

// Clock returns the sample's local wall-clock time as zero-padded 24-hour "HH:MM".
func (s Sample) Clock() string {
	return s.Timestamp.Local().Format("15:04")
}

// Dataset is the immutable set of samples produced by one load of one file.
// A reload builds a new Dataset; accessors hand out copies.
type Dataset struct {
	generation uint64
	source     string
	loadedAt   time.Time
	samples    []Sample
	rejected   int
}

// NewDataset copies samples into a new Dataset.
func NewDataset(generation uint64, source string, samples []Sample, rejected int) *Dataset {
	cp := make([]Sample, len(samples))
	copy(cp, samples)
	return &Dataset{
		generation: generation,
		source:     source,
		loadedAt:   time.Now(),
		samples:    cp,
		rejected:   rejected,
	}
}

func (d *Dataset) Generation() uint64  { return d.generation }
func (d *Dataset) Source() string      { return d.source }
func (d *Dataset) LoadedAt() time.Time { return d.loadedAt }
func (d *Dataset) Rejected() int       { return d.rejected }

// Len returns the number of valid samples.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.samples)
}

// Samples returns a copy of the samples in arrival order.
func (d *Dataset) Samples() []Sample {
	if d == nil {
		return nil
	}
	cp := make([]Sample, len(d.samples))
	copy(cp, d.samples)
	return cp
}

// Each calls fn for every sample in arrival order without copying the slice.
func (d *Dataset) Each(fn func(i int, s Sample)) {
	if d == nil {
		return
	}
	for i, s := range d.samples {
		fn(i, s)
	}
}

// HostSelection is either ALL (the zero value) or a non-empty set of hostnames.
type HostSelection struct {
	hosts map[string]struct{}
}

// AllHosts returns the ALL sentinel.
func AllHosts() HostSelection { return HostSelection{} }

// SelectHosts builds a selection from hostnames. Blank names are ignored and an
// empty result is ALL.
func SelectHosts(hosts ...string) HostSelection {
	set := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		set[h] = struct{}{}
	}
	if len(set) == 0 {
		return HostSelection{}
	}
	return HostSelection{hosts: set}
}

// IsAll reports whether the selection is the ALL sentinel.
func (h HostSelection) IsAll() bool { return len(h.hosts) == 0 }

// Contains reports whether host passes the selection.
func (h HostSelection) Contains(host string) bool {
	if h.IsAll() {
		return true
	}
	_, ok := h.hosts[host]
	return ok
}

// Hosts returns the selected hostnames sorted, or nil for ALL.
func (h HostSelection) Hosts() []string {
	if h.IsAll() {
		return nil
	}
	out := make([]string, 0, len(h.hosts))
	for host := range h.hosts {
		out = append(out, host)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether both selections choose the same hosts.
func (h HostSelection) Equal(other HostSelection) bool {
	if len(h.hosts) != len(other.hosts) {
		return false
	}
	for host := range h.hosts {
		if _, ok := other.hosts[host]; !ok {
			return false
		}
	}
	return true
}

func (h HostSelection) String() string {
	if h.IsAll() {
		return "all"
	}
	return strings.Join(h.Hosts(), ",")
}

// TimeWindow is an inclusive, date-agnostic "HH:MM" range.
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// FullDay returns the 00:00-23:59 window.
func FullDay() TimeWindow {
	return TimeWindow{Start: DefaultWindowStart, End: DefaultWindowEnd}
}

// Contains reports whether clock ("HH:MM") falls in the window. The comparison is
// lexicographic, which is valid because both sides are fixed-width and zero-padded.
func (w TimeWindow) Contains(clock string) bool {
	return clock >= w.Start && clock <= w.End
}

// FilterCriteria selects the samples shown by the query layer.
type FilterCriteria struct {
	Hosts  HostSelection
	Window TimeWindow
}

// DefaultCriteria is ALL hosts over the full day.
func DefaultCriteria() FilterCriteria {
	return FilterCriteria{Hosts: AllHosts(), Window: FullDay()}
}

// FilteredView is an order-preserving subsequence of one Dataset.
type FilteredView struct {
	Generation uint64
	Criteria   FilterCriteria
	Samples    []Sample
}

// Len returns the number of samples in the view.
func (v FilteredView) Len() int { return len(v.Samples) }

// Last returns the chronologically last sample of the view.
func (v FilteredView) Last() (Sample, bool) {
	if len(v.Samples) == 0 {
		return Sample{}, false
	}
	return v.Samples[len(v.Samples)-1], true
}

// Axis is one value axis of a chart with its computed bounds.
type Axis struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Step  float64 `json:"step,omitempty"`
}

// MetricSeries is one plotted metric of a chart group.
type MetricSeries struct {
	Key    string    `json:"key"`
	Label  string    `json:"label"`
	AxisID string    `json:"axis"`
	Values []float64 `json:"values"`
}

// ChartSeries is the chart-ready projection of a filtered view for one metric group.
type ChartSeries struct {
	Group   string         `json:"group"`
	Title   string         `json:"title"`
	Labels  []string       `json:"labels"`
	Metrics []MetricSeries `json:"metrics"`
	Axes    []Axis         `json:"axes"`
}

// Metric returns the series with the given key.
func (c ChartSeries) Metric(key string) (MetricSeries, bool) {
	for _, m := range c.Metrics {
		if m.Key == key {
			return m, true
		}
	}
	return MetricSeries{}, false
}

// Axis returns the axis with the given id.
func (c ChartSeries) Axis(id string) (Axis, bool) {
	for _, a := range c.Axes {
		if a.ID == id {
			return a, true
		}
	}
	return Axis{}, false
}

// RouteHop is one hop of an extracted route, ready for display.
type RouteHop struct {
	Index       int     `json:"index"`
	IP          string  `json:"ip"`
	LatencyMs   float64 `json:"latency_ms"`
	Destination bool    `json:"destination"`
}
