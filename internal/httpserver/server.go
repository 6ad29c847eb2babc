// Package httpserver exposes the monitor session to a local browser renderer.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tinytelemetry/netpulse/internal/duckdb"
	"github.com/tinytelemetry/netpulse/internal/model"
	"github.com/tinytelemetry/netpulse/internal/monitor"
	"github.com/tinytelemetry/netpulse/internal/query"
	"github.com/tinytelemetry/netpulse/internal/series"
	"github.com/tinytelemetry/netpulse/internal/source"
)

const (
	DefaultAddr = "127.0.0.1:3000"

	defaultLatestLimit = 1
	maxLatestLimit     = 500
)

// Session is the monitor contract required by the HTTP API.
type Session interface {
	Snapshot() monitor.State
	SetCriteria(c model.FilterCriteria)
	SetDate(date time.Time) string
	Load(ctx context.Context) error
}

// QueryStore is the narrow store contract required by the SQL endpoints.
type QueryStore interface {
	model.SchemaQuerier
	HostSampleCounts() ([]duckdb.HostCount, error)
}

// Config configures a Server. Store and Gatherer are optional.
type Config struct {
	Addr     string
	Session  Session
	Store    QueryStore
	Gatherer prometheus.Gatherer
	Logger   logr.Logger
}

// Server provides the read API over the current dataset generation.
type Server struct {
	addr      string
	session   Session
	store     QueryStore
	gatherer  prometheus.Gatherer
	log       logr.Logger
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Logger.GetSink() == nil {
		cfg.Logger = logr.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      cfg.Addr,
		session:   cfg.Session,
		store:     cfg.Store,
		gatherer:  cfg.Gatherer,
		log:       cfg.Logger,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
}

// Handler returns the router serving every endpoint.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), noCache)

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/dataset", s.handleDataset)
	api.GET("/hosts", s.handleHosts)
	api.GET("/series/:group", s.handleSeries)
	api.GET("/route", s.handleRoute)
	api.GET("/samples/latest", s.handleLatest)
	api.PUT("/filter", s.handleFilter)
	api.POST("/reload", s.handleReload)
	api.GET("/schema", s.handleSchema)
	api.POST("/query", s.handleQuery)

	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
	return r
}

// Start begins serving HTTP requests in the background.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.startTime = time.Now()
	s.log.Info("http api listening", "addr", listener.Addr().String())

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error(err, "http api stopped")
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// noCache keeps a browser renderer from showing a stale generation.
func noCache(c *gin.Context) {
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Next()
}

type criteriaBody struct {
	Hosts []string `json:"hosts"`
	All   bool     `json:"all"`
	Start string   `json:"start"`
	End   string   `json:"end"`
}

func criteriaJSON(c model.FilterCriteria) criteriaBody {
	return criteriaBody{
		Hosts: c.Hosts.Hosts(),
		All:   c.Hosts.IsAll(),
		Start: c.Window.Start,
		End:   c.Window.End,
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	st := s.session.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"uptime":     time.Since(s.startTime).String(),
		"generation": st.Summary.Generation,
		"session":    st.Status.Kind,
	})
}

func (s *Server) handleDataset(c *gin.Context) {
	st := s.session.Snapshot()
	body := gin.H{
		"summary":  st.Summary,
		"status":   st.Status,
		"date":     st.Date,
		"file":     st.FileName,
		"criteria": criteriaJSON(st.Criteria),
		"visible":  st.View.Len(),
	}
	if st.Status.Err != nil {
		body["error"] = st.Status.Err.Error()
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleHosts(c *gin.Context) {
	st := s.session.Snapshot()
	hosts := st.Hosts
	if hosts == nil {
		hosts = []string{}
	}
	body := gin.H{
		"hosts":     hosts,
		"all":       st.Criteria.Hosts.IsAll(),
		"selection": st.Criteria.Hosts.Hosts(),
	}
	if s.store != nil {
		counts, err := s.store.HostSampleCounts()
		if err != nil {
			s.log.Error(err, "host sample counts failed")
		} else {
			body["samples"] = counts
		}
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleSeries(c *gin.Context) {
	group := c.Param("group")
	if !knownGroup(group) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("%v: %q", series.ErrUnknownGroup, group)})
		return
	}

	st := s.session.Snapshot()
	cs, ok := st.Series[group]
	if !ok {
		msg := series.ErrEmptyView.Error()
		if group == series.GroupRoute && st.RouteErr != nil {
			msg = st.RouteErr.Error()
		}
		c.JSON(http.StatusNotFound, gin.H{"error": msg, "status": st.Status})
		return
	}
	c.JSON(http.StatusOK, cs)
}

func knownGroup(group string) bool {
	if group == series.GroupRoute {
		return true
	}
	for _, g := range series.TimeGroups {
		if g == group {
			return true
		}
	}
	return false
}

func (s *Server) handleRoute(c *gin.Context) {
	st := s.session.Snapshot()
	if st.RouteSample == nil || st.RouteErr != nil {
		msg := "no samples match the current filter"
		if st.RouteErr != nil {
			msg = st.RouteErr.Error()
		}
		c.JSON(http.StatusNotFound, gin.H{"error": msg})
		return
	}

	details := st.Details()
	lines := make([]string, len(details))
	for i, d := range details {
		lines[i] = d.String()
	}
	c.JSON(http.StatusOK, gin.H{
		"hostname":  st.RouteSample.Hostname,
		"timestamp": st.RouteSample.Timestamp,
		"hops":      st.Route,
		"details":   lines,
	})
}

func (s *Server) handleLatest(c *gin.Context) {
	limit := defaultLatestLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxLatestLimit)
	}

	st := s.session.Snapshot()
	samples := st.View.Samples
	if len(samples) > limit {
		samples = samples[len(samples)-limit:]
	}
	if samples == nil {
		samples = []model.Sample{}
	}
	c.JSON(http.StatusOK, gin.H{
		"generation": st.View.Generation,
		"samples":    samples,
		"total":      st.View.Len(),
	})
}

func (s *Server) handleFilter(c *gin.Context) {
	var req criteriaBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	window, err := query.ParseWindow(req.Start, req.End)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	hosts := model.SelectHosts(req.Hosts...)
	if req.All {
		hosts = model.AllHosts()
	}
	s.session.SetCriteria(model.FilterCriteria{Hosts: hosts, Window: window})

	st := s.session.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"criteria": criteriaJSON(st.Criteria),
		"visible":  st.View.Len(),
		"status":   st.Status,
	})
}

func (s *Server) handleReload(c *gin.Context) {
	var req struct {
		Date string `json:"date"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}
	}
	if req.Date != "" {
		date, err := source.ParseDate(req.Date, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.session.SetDate(date)
	}

	err := s.session.Load(c.Request.Context())
	st := s.session.Snapshot()
	body := gin.H{
		"summary": st.Summary,
		"status":  st.Status,
		"file":    st.FileName,
	}
	switch {
	case err == nil:
		c.JSON(http.StatusOK, body)
	case errors.Is(err, monitor.ErrStaleResult):
		body["error"] = err.Error()
		c.JSON(http.StatusConflict, body)
	case st.Status.Kind == monitor.StatusEmptyDataset:
		body["error"] = err.Error()
		c.JSON(http.StatusOK, body)
	default:
		s.log.Error(err, "reload failed", "file", st.FileName)
		body["error"] = err.Error()
		c.JSON(http.StatusBadGateway, body)
	}
}

func (s *Server) handleSchema(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sql snapshot disabled"})
		return
	}

	tables, err := s.store.ExecuteQuery(
		"SELECT table_name, column_name, data_type FROM information_schema.columns WHERE table_schema = 'main' AND table_name <> 'schema_migrations' ORDER BY table_name, ordinal_position",
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read schema metadata"})
		return
	}

	schema := make(map[string][]map[string]string)
	for _, row := range tables {
		tableName := fmt.Sprintf("%v", row["table_name"])
		schema[tableName] = append(schema[tableName], map[string]string{
			"column": fmt.Sprintf("%v", row["column_name"]),
			"type":   fmt.Sprintf("%v", row["data_type"]),
		})
	}

	counts, err := s.store.TableRowCounts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read table row counts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"description": s.store.GetSchemaDescription(),
		"tables":      schema,
		"row_counts":  counts,
	})
}

func (s *Server) handleQuery(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sql snapshot disabled"})
		return
	}

	var req struct {
		SQL string `json:"sql" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing sql field"})
		return
	}

	results, err := s.store.ExecuteQuery(req.SQL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	columns := []string{}
	if len(results) > 0 {
		for col := range results[0] {
			columns = append(columns, col)
		}
	}
	if results == nil {
		results = []map[string]interface{}{}
	}

	c.JSON(http.StatusOK, gin.H{
		"columns":   columns,
		"rows":      results,
		"row_count": len(results),
	})
}
