package monitor

import (
	"time"

	"github.com/tinytelemetry/netpulse/internal/model"
	"github.com/tinytelemetry/netpulse/internal/route"
	"github.com/tinytelemetry/netpulse/internal/source"
)

// StatusKind classifies the user-visible status of the session.
type StatusKind string

const (
	StatusIdle         StatusKind = "idle"
	StatusLoading      StatusKind = "loading"
	StatusReady        StatusKind = "ready"
	StatusFetchError   StatusKind = "fetch_error"
	StatusEmptyDataset StatusKind = "empty_dataset"
	StatusEmptyFilter  StatusKind = "empty_filter"
)

// Status is the message shown to the user for the last load or filter change.
type Status struct {
	Kind    StatusKind `json:"kind"`
	Message string     `json:"message"`
	Err     error      `json:"-"`
	At      time.Time  `json:"at"`
}

// Summary describes the current dataset.
type Summary struct {
	Generation uint64    `json:"generation"`
	Source     string    `json:"source"`
	Samples    int       `json:"samples"`
	Rejected   int       `json:"rejected"`
	LoadedAt   time.Time `json:"loaded_at"`
	Valid      bool      `json:"valid"`
}

// State is a consistent copy of the session taken under one lock.
type State struct {
	Summary  Summary                      `json:"summary"`
	Status   Status                       `json:"status"`
	Date     string                       `json:"date"`
	FileName string                       `json:"file"`
	Hosts    []string                     `json:"hosts"`
	Criteria model.FilterCriteria         `json:"-"`
	View     model.FilteredView           `json:"-"`
	Series   map[string]model.ChartSeries `json:"-"`

	// RouteSample is the sample the route was extracted from, nil when the view is empty.
	RouteSample *model.Sample    `json:"-"`
	Route       []model.RouteHop `json:"-"`
	RouteErr    error            `json:"-"`
}

// Details lists every answering hop of the route sample, timeouts included.
func (s State) Details() []route.HopDetail {
	if s.RouteSample == nil {
		return nil
	}
	return route.Describe(*s.RouteSample)
}

// Snapshot returns the current state. Slices and maps are not shared with the Monitor.
func (m *Monitor) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ds := m.dataset
	st := State{
		Summary: Summary{
			Generation: ds.Generation(),
			Source:     ds.Source(),
			Samples:    ds.Len(),
			Rejected:   ds.Rejected(),
			LoadedAt:   ds.LoadedAt(),
			Valid:      ds.Len() > 0,
		},
		Status:   m.status,
		Date:     source.DateLabel(m.date),
		FileName: m.fileNameLocked(),
		Hosts:    m.catalog.Hosts(),
		Criteria: m.criteria,
		View: model.FilteredView{
			Generation: m.derived.view.Generation,
			Criteria:   m.derived.view.Criteria,
			Samples:    append([]model.Sample(nil), m.derived.view.Samples...),
		},
		Series:   make(map[string]model.ChartSeries, len(m.derived.series)),
		Route:    append([]model.RouteHop(nil), m.derived.route...),
		RouteErr: m.derived.routeErr,
	}
	for k, v := range m.derived.series {
		st.Series[k] = v
	}
	if m.derived.routeSample != nil {
		s := *m.derived.routeSample
		st.RouteSample = &s
	}
	return st
}
