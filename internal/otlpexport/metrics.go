// Package otlpexport converts filtered samples to OTLP gauges and pushes them to a collector.
package otlpexport

import (
	"google.golang.org/protobuf/encoding/protojson"

	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"

	"github.com/tinytelemetry/netpulse/internal/model"
)

const (
	ServiceName  = "netpulse"
	scopeName    = "github.com/tinytelemetry/netpulse/internal/otlpexport"
	hostNameAttr = "host.name"
	hopAttr      = "net.hop"
)

type gauge struct {
	name  string
	desc  string
	unit  string
	value func(model.Sample) float64
	isInt bool
}

var gauges = []gauge{
	{"netpulse.machine.cpu.utilization", "CPU usage", "%", func(s model.Sample) float64 { return s.CPUPct }, false},
	{"netpulse.machine.memory.utilization", "RAM usage", "%", func(s model.Sample) float64 { return s.RAMPct }, false},
	{"netpulse.machine.disk.utilization", "Disk usage", "%", func(s model.Sample) float64 { return s.DiskPct }, false},
	{"netpulse.machine.load_score", "Computer load score", "1", func(s model.Sample) float64 { return float64(s.LoadScore) }, true},
	{"netpulse.speedtest.download", "Speed test download rate", "Mbit/s", func(s model.Sample) float64 { return s.DownloadMbps }, false},
	{"netpulse.speedtest.upload", "Speed test upload rate", "Mbit/s", func(s model.Sample) float64 { return s.UploadMbps }, false},
	{"netpulse.speedtest.latency", "Speed test latency", "ms", func(s model.Sample) float64 { return s.SpeedtestLatencyMs }, false},
	{"netpulse.meet.health", "Conferencing health score", "1", func(s model.Sample) float64 { return float64(s.HealthScore) }, true},
	{"netpulse.meet.jitter", "Conferencing jitter", "ms", func(s model.Sample) float64 { return s.JitterMs }, false},
	{"netpulse.meet.latency", "Conferencing average latency", "ms", func(s model.Sample) float64 { return s.AvgLatencyMs }, false},
	{"netpulse.meet.loss", "Conferencing packet loss", "%", func(s model.Sample) float64 { return s.LossPct }, false},
}

// BuildMetrics converts every sample of samples into one gauge data point per metric,
// labelled with the sample's hostname. Answered route hops become points of
// netpulse.route.hop.latency labelled with the hop index. An empty input yields a
// request with no resource metrics.
func BuildMetrics(samples []model.Sample) *colmetricspb.ExportMetricsServiceRequest {
	req := &colmetricspb.ExportMetricsServiceRequest{}
	if len(samples) == 0 {
		return req
	}

	metrics := make([]*metricspb.Metric, 0, len(gauges)+1)
	for _, g := range gauges {
		points := make([]*metricspb.NumberDataPoint, 0, len(samples))
		for _, s := range samples {
			dp := &metricspb.NumberDataPoint{
				Attributes:   []*commonpb.KeyValue{stringAttr(hostNameAttr, s.Hostname)},
				TimeUnixNano: uint64(s.Timestamp.UnixNano()),
			}
			if g.isInt {
				dp.Value = &metricspb.NumberDataPoint_AsInt{AsInt: int64(g.value(s))}
			} else {
				dp.Value = &metricspb.NumberDataPoint_AsDouble{AsDouble: g.value(s)}
			}
			points = append(points, dp)
		}
		metrics = append(metrics, gaugeMetric(g.name, g.desc, g.unit, points))
	}

	var hops []*metricspb.NumberDataPoint
	for _, s := range samples {
		for _, h := range s.Hops {
			if h.LatencyMs <= 0 {
				continue
			}
			hops = append(hops, &metricspb.NumberDataPoint{
				Attributes: []*commonpb.KeyValue{
					stringAttr(hostNameAttr, s.Hostname),
					{Key: hopAttr, Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: int64(h.Index)}}},
				},
				TimeUnixNano: uint64(s.Timestamp.UnixNano()),
				Value:        &metricspb.NumberDataPoint_AsDouble{AsDouble: h.LatencyMs},
			})
		}
	}
	if len(hops) > 0 {
		metrics = append(metrics, gaugeMetric("netpulse.route.hop.latency", "Route hop latency", "ms", hops))
	}

	req.ResourceMetrics = []*metricspb.ResourceMetrics{{
		Resource: &resourcepb.Resource{
			Attributes: []*commonpb.KeyValue{stringAttr("service.name", ServiceName)},
		},
		ScopeMetrics: []*metricspb.ScopeMetrics{{
			Scope:   &commonpb.InstrumentationScope{Name: scopeName},
			Metrics: metrics,
		}},
	}}
	return req
}

// MarshalJSON renders samples as an OTLP/JSON export request.
func MarshalJSON(samples []model.Sample) ([]byte, error) {
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(BuildMetrics(samples))
}

func gaugeMetric(name, desc, unit string, points []*metricspb.NumberDataPoint) *metricspb.Metric {
	return &metricspb.Metric{
		Name:        name,
		Description: desc,
		Unit:        unit,
		Data:        &metricspb.Metric_Gauge{Gauge: &metricspb.Gauge{DataPoints: points}},
	}
}

func stringAttr(key, value string) *commonpb.KeyValue {
	return &commonpb.KeyValue{Key: key, Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: value}}}
}
