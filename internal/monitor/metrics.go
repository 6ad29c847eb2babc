package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	prometheusNamespace = "netpulse"
	resultLabel         = "result"

	resultOK         = "ok"
	resultFetchError = "fetch_error"
	resultEmpty      = "empty"
)

// Metrics holds the prometheus collectors updated by a Monitor.
type Metrics struct {
	// loads counts applied loads by outcome.
	loads *prometheus.CounterVec
	// rowsRejected counts rows dropped by validation.
	rowsRejected prometheus.Counter
	// staleResults counts load results discarded because a newer load was issued.
	staleResults prometheus.Counter
	// datasetSamples is the number of valid samples of the current dataset.
	datasetSamples prometheus.Gauge
	// lastLoad is the unix time of the last applied load.
	lastLoad prometheus.Gauge
}

// RegisterMetrics registers the monitor collectors with reg.
func RegisterMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: prometheusNamespace,
			Name:      "loads_total",
			Help:      "Number of applied snapshot loads by result.",
		}, []string{resultLabel}),
		rowsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: prometheusNamespace,
			Name:      "rows_rejected_total",
			Help:      "Number of snapshot rows rejected by validation.",
		}),
		staleResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: prometheusNamespace,
			Name:      "stale_results_total",
			Help:      "Number of load results discarded because a newer load was triggered.",
		}),
		datasetSamples: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: prometheusNamespace,
			Name:      "dataset_samples",
			Help:      "Number of valid samples in the current dataset.",
		}),
		lastLoad: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: prometheusNamespace,
			Name:      "last_load_timestamp",
			Help:      "Timestamp of the last applied load.",
		}),
	}

	reg.MustRegister(m.loads)
	reg.MustRegister(m.rowsRejected)
	reg.MustRegister(m.staleResults)
	reg.MustRegister(m.datasetSamples)
	reg.MustRegister(m.lastLoad)

	return m
}

func (m *Metrics) registerLoad(result string, samples, rejected int) {
	if m == nil {
		return
	}
	m.loads.With(prometheus.Labels{resultLabel: result}).Inc()
	m.rowsRejected.Add(float64(rejected))
	m.datasetSamples.Set(float64(samples))
	m.lastLoad.SetToCurrentTime()
}

func (m *Metrics) registerStale() {
	if m == nil {
		return
	}
	m.staleResults.Inc()
}
