// Package monitor owns the loaded dataset, the host catalog and the filter criteria of
// one viewing session, and keeps the derived projections current.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/tinytelemetry/netpulse/internal/ingest"
	"github.com/tinytelemetry/netpulse/internal/model"
	"github.com/tinytelemetry/netpulse/internal/query"
	"github.com/tinytelemetry/netpulse/internal/route"
	"github.com/tinytelemetry/netpulse/internal/series"
	"github.com/tinytelemetry/netpulse/internal/source"
)

// ErrStaleResult is returned by Complete when a newer load was started after token.
var ErrStaleResult = errors.New("stale load result")

// Config configures a Monitor.
type Config struct {
	Fetcher     model.RowFetcher
	Pipeline    *ingest.Pipeline
	FilePattern string
	// Date selects the snapshot file. Zero means today.
	Date     time.Time
	Criteria model.FilterCriteria
	// Sink, when set, receives every dataset that becomes current.
	Sink    model.DatasetWriter
	Metrics *Metrics
	Logger  logr.Logger
}

// Monitor is safe for concurrent use. Loads fetch outside the lock; only the result of
// the most recently started load is ever applied.
type Monitor struct {
	fetcher  model.RowFetcher
	pipeline *ingest.Pipeline
	pattern  string
	sink     model.DatasetWriter
	metrics  *Metrics
	log      logr.Logger

	mu       sync.RWMutex
	issued   uint64
	date     time.Time
	dataset  *model.Dataset
	catalog  *query.Catalog
	criteria model.FilterCriteria
	status   Status
	derived  derived

	// pendingHosts is the configured selection, applied once hosts are known.
	pendingHosts model.HostSelection

	sinkMu  sync.Mutex
	sunkGen uint64
}

type derived struct {
	view        model.FilteredView
	series      map[string]model.ChartSeries
	routeSample *model.Sample
	route       []model.RouteHop
	routeErr    error
}

// New creates a Monitor. Nothing is loaded until Load or Complete is called.
func New(cfg Config) *Monitor {
	if cfg.Pipeline == nil {
		cfg.Pipeline = ingest.NewPipeline()
	}
	if cfg.FilePattern == "" {
		cfg.FilePattern = model.DefaultFilePattern
	}
	if cfg.Date.IsZero() {
		cfg.Date = time.Now()
	}
	if cfg.Criteria.Window == (model.TimeWindow{}) {
		cfg.Criteria.Window = model.FullDay()
	}
	if cfg.Logger.GetSink() == nil {
		cfg.Logger = logr.Discard()
	}

	m := &Monitor{
		fetcher:  cfg.Fetcher,
		pipeline: cfg.Pipeline,
		pattern:  cfg.FilePattern,
		sink:     cfg.Sink,
		metrics:  cfg.Metrics,
		log:      cfg.Logger,
		date:     cfg.Date,
		dataset:  model.NewDataset(0, "", nil, 0),
		catalog:  query.NewCatalog(),
		criteria: cfg.Criteria,
		status:   Status{Kind: StatusIdle, Message: "no data loaded", At: time.Now()},
	}
	m.pendingHosts = cfg.Criteria.Hosts
	m.criteria.Hosts = model.AllHosts()
	m.recomputeLocked()
	return m
}

// FileName returns the snapshot name for the selected date.
func (m *Monitor) FileName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fileNameLocked()
}

func (m *Monitor) fileNameLocked() string {
	return source.FileName(m.pattern, m.date)
}

// BeginLoad issues a new load token and the file it targets. Any result carrying an
// older token is discarded from now on.
func (m *Monitor) BeginLoad() (token uint64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issued++
	name = source.FileName(m.pattern, m.date)
	m.status = Status{Kind: StatusLoading, Message: fmt.Sprintf("loading %s", name), At: time.Now()}
	return m.issued, name
}

// Load fetches and applies the snapshot for the selected date.
func (m *Monitor) Load(ctx context.Context) error {
	if m.fetcher == nil {
		return errors.New("monitor has no fetcher")
	}
	token, name := m.BeginLoad()
	rows, err := m.fetcher.Fetch(ctx, name)
	return m.Complete(token, name, rows, err)
}

// Complete applies the outcome of the load identified by token. A fetch error leaves
// an empty dataset; zero valid rows leaves an empty dataset with its own status. Either
// way the host catalog is rebuilt from the new dataset.
// Results of superseded loads are dropped and ErrStaleResult is returned.
func (m *Monitor) Complete(token uint64, name string, rows []model.RawRow, fetchErr error) error {
	if m.isStale(token) {
		return m.dropStale(token, name)
	}

	var (
		ds       *model.Dataset
		buildErr error
	)
	if fetchErr == nil {
		ds, buildErr = m.pipeline.Build(token, name, rows)
	}

	m.mu.Lock()
	if token != m.issued {
		m.mu.Unlock()
		return m.dropStale(token, name)
	}

	var result string
	switch {
	case fetchErr != nil:
		result = resultFetchError
		m.dataset = model.NewDataset(token, name, nil, 0)
		m.status = Status{Kind: StatusFetchError, Message: fmt.Sprintf("could not load %s", name), Err: fetchErr, At: time.Now()}
	case errors.Is(buildErr, ingest.ErrEmptyDataset):
		result = resultEmpty
		m.dataset = ds
		m.status = Status{Kind: StatusEmptyDataset, Message: fmt.Sprintf("no valid rows in %s", name), Err: buildErr, At: time.Now()}
	default:
		result = resultOK
		m.dataset = ds
		m.status = Status{Kind: StatusReady, Message: fmt.Sprintf("loaded %d records from %s", ds.Len(), name), At: time.Now()}
	}
	current := m.dataset

	// The catalog always describes the current dataset, empty ones included.
	if m.catalog.Update(current) {
		m.log.Info("host selection reset", "reason", "selected host missing from new dataset")
	}
	if result == resultOK && !m.pendingHosts.IsAll() {
		m.catalog.Select(m.pendingHosts.Hosts()...)
		m.pendingHosts = model.AllHosts()
	}
	m.criteria.Hosts = m.catalog.Selection()
	m.recomputeLocked()
	m.mu.Unlock()

	m.metrics.registerLoad(result, current.Len(), current.Rejected())
	m.log.Info("load applied", "file", name, "generation", token, "result", result,
		"samples", current.Len(), "rejected", current.Rejected())

	m.sinkDataset(current)

	if fetchErr != nil {
		return fetchErr
	}
	return buildErr
}

// sinkDataset hands ds to the sink unless a newer generation already reached it.
func (m *Monitor) sinkDataset(ds *model.Dataset) {
	if m.sink == nil {
		return
	}
	m.sinkMu.Lock()
	defer m.sinkMu.Unlock()
	if ds.Generation() < m.sunkGen {
		return
	}
	if err := m.sink.ReplaceDataset(ds); err != nil {
		m.log.Error(err, "failed to replace sql snapshot", "generation", ds.Generation())
		return
	}
	m.sunkGen = ds.Generation()
}

func (m *Monitor) isStale(token uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return token != m.issued
}

func (m *Monitor) dropStale(token uint64, name string) error {
	m.metrics.registerStale()
	m.log.V(1).Info("discarding stale load result", "file", name, "generation", token)
	return fmt.Errorf("generation %d: %w", token, ErrStaleResult)
}

// SetCriteria replaces the filter criteria. The host selection is normalized against
// the current catalog.
func (m *Monitor) SetCriteria(c model.FilterCriteria) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.criteria.Window = c.Window
	m.criteria.Hosts = m.catalog.Select(c.Hosts.Hosts()...)
	m.recomputeLocked()
}

// SelectHosts replaces the host selection. No names selects ALL.
func (m *Monitor) SelectHosts(hosts ...string) model.HostSelection {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.criteria.Hosts = m.catalog.Select(hosts...)
	m.recomputeLocked()
	return m.criteria.Hosts
}

// ToggleHost adds or removes one host from the selection.
func (m *Monitor) ToggleHost(host string) model.HostSelection {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.criteria.Hosts = m.catalog.Toggle(host)
	m.recomputeLocked()
	return m.criteria.Hosts
}

// SetWindow replaces the time-of-day window.
func (m *Monitor) SetWindow(w model.TimeWindow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.criteria.Window = w
	m.recomputeLocked()
}

// SetDate selects another day's snapshot and resets the window to the full day.
// The caller triggers the load.
func (m *Monitor) SetDate(date time.Time) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.date = date
	m.criteria.Window = model.FullDay()
	m.recomputeLocked()
	return source.FileName(m.pattern, m.date)
}

// Dataset returns the current dataset.
func (m *Monitor) Dataset() *model.Dataset {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dataset
}

// recomputeLocked rebuilds every projection from the current dataset and criteria.
func (m *Monitor) recomputeLocked() {
	d := derived{series: make(map[string]model.ChartSeries, len(series.TimeGroups)+1)}

	view, err := query.Apply(m.dataset, m.criteria)
	d.view = view
	if m.status.Kind == StatusReady || m.status.Kind == StatusEmptyFilter {
		switch {
		case errors.Is(err, query.ErrEmptyFilterResult):
			m.status = Status{Kind: StatusEmptyFilter, Message: "no samples match the current filter", Err: err, At: time.Now()}
		case m.status.Kind == StatusEmptyFilter:
			m.status = Status{Kind: StatusReady, Message: fmt.Sprintf("showing %d of %d records from %s",
				view.Len(), m.dataset.Len(), m.dataset.Source()), At: time.Now()}
		}
	}

	for _, group := range series.TimeGroups {
		if cs, err := series.Build(group, view); err == nil {
			d.series[group] = cs
		}
	}

	last, hops, err := route.Latest(view)
	if view.Len() > 0 {
		d.routeSample = &last
	}
	d.route, d.routeErr = hops, err
	if err == nil {
		if cs, err := series.Route(hops); err == nil {
			d.series[series.GroupRoute] = cs
		}
	}
	m.derived = d
}
