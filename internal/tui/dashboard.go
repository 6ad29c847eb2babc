package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-logr/logr"

	"github.com/tinytelemetry/netpulse/internal/model"
	"github.com/tinytelemetry/netpulse/internal/monitor"
	"github.com/tinytelemetry/netpulse/internal/query"
)

// DashboardPageID identifies the dashboard page.
const DashboardPageID = "dashboard"

const defaultFetchTimeout = 30 * time.Second

// Session is the monitor contract the dashboard drives.
type Session interface {
	BeginLoad() (token uint64, name string)
	Complete(token uint64, name string, rows []model.RawRow, fetchErr error) error
	Snapshot() monitor.State
	ToggleHost(host string) model.HostSelection
	SelectHosts(hosts ...string) model.HostSelection
	SetWindow(w model.TimeWindow)
	SetDate(date time.Time) string
}

// Section is the focused part of the dashboard.
type Section int

const (
	SectionHosts Section = iota
	SectionSamples
	SectionWindow
)

// loadResultMsg carries the outcome of one fetch back to the model together with the
// token issued when the fetch started.
type loadResultMsg struct {
	token uint64
	name  string
	rows  []model.RawRow
	err   error
}

// refreshTickMsg fires the periodic reload. Ticks of a replaced timer are ignored.
type refreshTickMsg struct {
	id int
}

// Config configures a DashboardModel.
type Config struct {
	Session         Session
	Fetcher         model.RowFetcher
	Date            time.Time
	RefreshInterval time.Duration
	FetchTimeout    time.Duration
	Logger          logr.Logger
}

// DashboardModel renders one monitor session.
type DashboardModel struct {
	session      Session
	fetcher      model.RowFetcher
	log          logr.Logger
	interval     time.Duration
	fetchTimeout time.Duration

	date    time.Time
	state   monitor.State
	tickID  int
	loading bool

	section       Section
	hostCursor    int
	sampleCursor  int
	followLatest  bool
	windowInputs  [2]textinput.Model
	windowFocus   int
	windowErr     string
	returnSection Section

	keys     KeyMap
	help     help.Model
	showHelp bool
	spinner  spinner.Model

	width  int
	height int
}

// NewDashboardModel creates the dashboard. Nothing is fetched until Init.
func NewDashboardModel(cfg Config) *DashboardModel {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = model.DefaultRefreshInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.Date.IsZero() {
		cfg.Date = time.Now()
	}
	if cfg.Logger.GetSink() == nil {
		cfg.Logger = logr.Discard()
	}

	var inputs [2]textinput.Model
	for i, placeholder := range []string{model.DefaultWindowStart, model.DefaultWindowEnd} {
		in := textinput.New()
		in.Placeholder = placeholder
		in.CharLimit = 8
		in.Width = 8
		inputs[i] = in
	}

	m := &DashboardModel{
		session:      cfg.Session,
		fetcher:      cfg.Fetcher,
		log:          cfg.Logger,
		interval:     cfg.RefreshInterval,
		fetchTimeout: cfg.FetchTimeout,
		date:         cfg.Date,
		followLatest: true,
		windowInputs: inputs,
		keys:         DefaultKeyMap(),
		help:         help.New(),
		spinner:      spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	m.refreshState()
	return m
}

// NewDashboardPage wraps the dashboard as an App page.
func NewDashboardPage(m *DashboardModel) Page { return m }

func (m *DashboardModel) ID() string { return DashboardPageID }

// Init starts the first load and the refresh timer.
func (m *DashboardModel) Init() tea.Cmd {
	return tea.Batch(m.startLoad(), m.restartTimer())
}

// Update implements Page.
func (m *DashboardModel) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return nil, nil

	case tea.KeyMsg:
		return m.handleKey(msg), nil

	case loadResultMsg:
		return m.handleLoadResult(msg), nil

	case refreshTickMsg:
		if msg.id != m.tickID {
			return nil, nil
		}
		return tea.Batch(m.startLoad(), m.tick(msg.id)), nil

	case spinner.TickMsg:
		if !m.loading {
			return nil, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return cmd, nil
	}
	return nil, nil
}

// startLoad issues a load token and fetches off the update loop.
func (m *DashboardModel) startLoad() tea.Cmd {
	token, name := m.session.BeginLoad()
	m.loading = true
	m.refreshState()

	fetcher, timeout := m.fetcher, m.fetchTimeout
	fetch := func() tea.Msg {
		if fetcher == nil {
			return loadResultMsg{token: token, name: name, err: errors.New("no source configured")}
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		rows, err := fetcher.Fetch(ctx, name)
		return loadResultMsg{token: token, name: name, rows: rows, err: err}
	}
	return tea.Batch(fetch, m.spinner.Tick)
}

func (m *DashboardModel) handleLoadResult(msg loadResultMsg) tea.Cmd {
	err := m.session.Complete(msg.token, msg.name, msg.rows, msg.err)
	if errors.Is(err, monitor.ErrStaleResult) {
		return nil
	}
	if err != nil {
		m.log.V(1).Info("load finished with error", "file", msg.name, "error", err.Error())
	}
	m.loading = false
	m.refreshState()
	return nil
}

// restartTimer replaces the refresh timer. Pending ticks of the old timer are dropped.
func (m *DashboardModel) restartTimer() tea.Cmd {
	m.tickID++
	return m.tick(m.tickID)
}

func (m *DashboardModel) tick(id int) tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return refreshTickMsg{id: id}
	})
}

// refreshState copies the session state and keeps cursors in range.
func (m *DashboardModel) refreshState() {
	m.state = m.session.Snapshot()
	if n := len(m.state.Hosts); m.hostCursor >= n {
		m.hostCursor = max(0, n-1)
	}
	n := m.state.View.Len()
	if m.followLatest || m.sampleCursor >= n {
		m.sampleCursor = max(0, n-1)
	}
}

func (m *DashboardModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.section == SectionWindow {
		return m.handleWindowKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
	case key.Matches(msg, m.keys.NextSection):
		if m.section == SectionHosts {
			m.section = SectionSamples
		} else {
			m.section = SectionHosts
		}
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.Latest):
		m.followLatest = true
		m.refreshState()
	case key.Matches(msg, m.keys.ToggleHost):
		if m.section == SectionHosts && m.hostCursor < len(m.state.Hosts) {
			m.session.ToggleHost(m.state.Hosts[m.hostCursor])
			m.refreshState()
		}
	case key.Matches(msg, m.keys.AllHosts):
		m.session.SelectHosts()
		m.refreshState()
	case key.Matches(msg, m.keys.Window):
		m.openWindowEditor()
		return textinput.Blink
	case key.Matches(msg, m.keys.Reload):
		return tea.Batch(m.startLoad(), m.restartTimer())
	case key.Matches(msg, m.keys.PrevDay):
		return m.changeDate(m.date.AddDate(0, 0, -1))
	case key.Matches(msg, m.keys.NextDay):
		return m.changeDate(m.date.AddDate(0, 0, 1))
	case key.Matches(msg, m.keys.Today):
		return m.changeDate(time.Now())
	}
	return nil
}

func (m *DashboardModel) moveCursor(delta int) {
	switch m.section {
	case SectionHosts:
		m.hostCursor = clamp(m.hostCursor+delta, 0, len(m.state.Hosts)-1)
	case SectionSamples:
		n := m.state.View.Len()
		m.sampleCursor = clamp(m.sampleCursor+delta, 0, n-1)
		m.followLatest = m.sampleCursor == n-1
	}
}

// changeDate switches snapshot file. The window resets and the refresh timer restarts.
func (m *DashboardModel) changeDate(date time.Time) tea.Cmd {
	m.date = date
	m.session.SetDate(date)
	m.followLatest = true
	return tea.Batch(m.startLoad(), m.restartTimer())
}

func (m *DashboardModel) openWindowEditor() {
	w := m.state.Criteria.Window
	m.windowInputs[0].SetValue(w.Start)
	m.windowInputs[1].SetValue(w.End)
	m.windowFocus = 0
	m.windowInputs[0].Focus()
	m.windowInputs[1].Blur()
	m.windowErr = ""
	m.returnSection = m.section
	m.section = SectionWindow
}

func (m *DashboardModel) closeWindowEditor() {
	for i := range m.windowInputs {
		m.windowInputs[i].Blur()
	}
	m.section = m.returnSection
}

func (m *DashboardModel) handleWindowKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return tea.Quit
	case key.Matches(msg, m.keys.Escape):
		m.windowErr = ""
		m.closeWindowEditor()
		return nil
	case key.Matches(msg, m.keys.NextSection):
		m.windowInputs[m.windowFocus].Blur()
		m.windowFocus = 1 - m.windowFocus
		return m.windowInputs[m.windowFocus].Focus()
	case key.Matches(msg, m.keys.Apply):
		w, err := query.ParseWindow(m.windowInputs[0].Value(), m.windowInputs[1].Value())
		if err != nil {
			m.windowErr = err.Error()
			return nil
		}
		m.windowErr = ""
		m.session.SetWindow(w)
		m.followLatest = true
		m.refreshState()
		m.closeWindowEditor()
		return nil
	}

	var cmd tea.Cmd
	m.windowInputs[m.windowFocus], cmd = m.windowInputs[m.windowFocus].Update(msg)
	return cmd
}

// selectedSample is the sample shown in the details panel.
func (m *DashboardModel) selectedSample() (model.Sample, bool) {
	samples := m.state.View.Samples
	if len(samples) == 0 {
		return model.Sample{}, false
	}
	return samples[clamp(m.sampleCursor, 0, len(samples)-1)], true
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return min(max(v, lo), hi)
}
