package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tinytelemetry/netpulse/internal/duckdb"
	"github.com/tinytelemetry/netpulse/internal/model"
	"github.com/tinytelemetry/netpulse/internal/monitor"
	"github.com/tinytelemetry/netpulse/internal/source"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testDay = time.Date(2024, 3, 5, 12, 0, 0, 0, time.Local)

const testFile = "py_monitor_05-03-24.csv"

type mapFetcher struct {
	mu   sync.Mutex
	rows map[string][]model.RawRow
}

func (f *mapFetcher) Fetch(_ context.Context, name string) ([]model.RawRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows, ok := f.rows[name]
	if !ok {
		return nil, &source.FetchError{Location: name, Err: source.ErrNotFound}
	}
	return rows, nil
}

func testRow(day, clock, host string) model.RawRow {
	return model.RawRow{
		"Timestamp":    day + " " + clock + ":00",
		"Hostname":     host,
		"Uso_CPU(%)":   "55.2",
		"Uso_RAM(%)":   "40",
		"Hop_IP_01":    "10.0.0.1",
		"Hop_LAT_01ms": "12.3",
		"Hop_IP_02":    "8.8.8.8 [DESTINO]",
		"Hop_LAT_02ms": "0",
	}
}

type testEnv struct {
	session *monitor.Monitor
	store   *duckdb.Store
	fetcher *mapFetcher
	router  http.Handler
}

func newTestEnv(t *testing.T, load bool) *testEnv {
	t.Helper()
	store, err := duckdb.NewStore()
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	fetcher := &mapFetcher{rows: map[string][]model.RawRow{
		testFile: {
			testRow("2024-03-05", "09:00", "desk-01"),
			testRow("2024-03-05", "09:05", "desk-02"),
			testRow("2024-03-05", "10:30", "desk-01"),
			{"Timestamp": "", "Hostname": "desk-03"},
		},
	}}

	reg := prometheus.NewRegistry()
	session := monitor.New(monitor.Config{
		Fetcher: fetcher,
		Date:    testDay,
		Sink:    store,
		Metrics: monitor.RegisterMetrics(reg),
	})
	if load {
		if err := session.Load(context.Background()); err != nil {
			t.Fatalf("Load: %v", err)
		}
	}

	srv := NewServer(Config{Session: session, Store: store, Gatherer: reg})
	return &testEnv{session: session, store: store, fetcher: fetcher, router: srv.Handler()}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return body
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, true)

	w := env.do(t, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	body := decode(t, w)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["session"] != string(monitor.StatusReady) {
		t.Errorf("session = %v, want ready", body["session"])
	}
	if got := w.Header().Get("Cache-Control"); !strings.Contains(got, "no-cache") {
		t.Errorf("Cache-Control = %q, want no-cache", got)
	}
}

func TestHealthEndpoint_WrongMethod(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodPost, "/api/health", "")
	if w.Code != http.StatusMethodNotAllowed && w.Code != http.StatusNotFound {
		t.Errorf("health POST status = %d, want 405 or 404", w.Code)
	}
}

func TestDatasetEndpoint(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, true)

	body := decode(t, env.do(t, http.MethodGet, "/api/dataset", ""))
	summary := body["summary"].(map[string]interface{})
	if summary["samples"] != float64(3) || summary["rejected"] != float64(1) {
		t.Errorf("summary = %v, want 3 samples and 1 rejected", summary)
	}
	if body["file"] != testFile {
		t.Errorf("file = %v, want %s", body["file"], testFile)
	}
	if body["date"] != "05-03-24" {
		t.Errorf("date = %v, want 05-03-24", body["date"])
	}
}

func TestHostsEndpoint(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, true)

	body := decode(t, env.do(t, http.MethodGet, "/api/hosts", ""))
	hosts := body["hosts"].([]interface{})
	if len(hosts) != 2 || hosts[0] != "desk-01" || hosts[1] != "desk-02" {
		t.Errorf("hosts = %v, want [desk-01 desk-02]", hosts)
	}
	if body["all"] != true {
		t.Errorf("all = %v, want true", body["all"])
	}
	counts, _ := body["samples"].([]interface{})
	if len(counts) != 2 {
		t.Fatalf("samples = %v, want 2 hosts", body["samples"])
	}
	if first := counts[0].(map[string]interface{}); first["hostname"] != "desk-01" || first["samples"] != float64(2) {
		t.Errorf("samples = %v, want desk-01 with 2 first", counts)
	}
}

func TestSeriesEndpoint(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, true)

	w := env.do(t, http.MethodGet, "/api/series/machine", "")
	if w.Code != http.StatusOK {
		t.Fatalf("series status = %d: %s", w.Code, w.Body.String())
	}
	var cs model.ChartSeries
	if err := json.Unmarshal(w.Body.Bytes(), &cs); err != nil {
		t.Fatalf("unmarshal series: %v", err)
	}
	if len(cs.Labels) != 3 {
		t.Errorf("labels = %v, want 3", cs.Labels)
	}
	cpu, ok := cs.Metric("cpu")
	if !ok || cpu.Values[0] != 55.2 {
		t.Errorf("cpu metric = %+v", cpu)
	}

	if w := env.do(t, http.MethodGet, "/api/series/bogus", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown group status = %d, want 404", w.Code)
	}
}

func TestSeriesEndpoint_EmptyView(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false)

	if w := env.do(t, http.MethodGet, "/api/series/meet", ""); w.Code != http.StatusNotFound {
		t.Errorf("empty view status = %d, want 404", w.Code)
	}
}

func TestRouteEndpoint(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, true)

	w := env.do(t, http.MethodGet, "/api/route", "")
	if w.Code != http.StatusOK {
		t.Fatalf("route status = %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Hostname string           `json:"hostname"`
		Hops     []model.RouteHop `json:"hops"`
		Details  []string         `json:"details"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal route: %v", err)
	}
	if body.Hostname != "desk-01" {
		t.Errorf("hostname = %q, want desk-01 (last sample)", body.Hostname)
	}
	if len(body.Hops) != 2 || !body.Hops[1].Destination || body.Hops[1].IP != "8.8.8.8" {
		t.Errorf("hops = %+v", body.Hops)
	}
	if len(body.Details) != 2 || !strings.Contains(body.Details[1], "timeout") {
		t.Errorf("details = %v", body.Details)
	}
}

func TestLatestEndpoint(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, true)

	body := decode(t, env.do(t, http.MethodGet, "/api/samples/latest?limit=2", ""))
	samples := body["samples"].([]interface{})
	if len(samples) != 2 {
		t.Fatalf("samples = %d, want 2", len(samples))
	}
	last := samples[1].(map[string]interface{})
	if last["hostname"] != "desk-01" {
		t.Errorf("last hostname = %v, want desk-01", last["hostname"])
	}

	if w := env.do(t, http.MethodGet, "/api/samples/latest?limit=zero", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", w.Code)
	}
}

func TestFilterEndpoint(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, true)

	w := env.do(t, http.MethodPut, "/api/filter", `{"hosts":["desk-01"],"start":"09:00","end":"09:05"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("filter status = %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["visible"] != float64(1) {
		t.Errorf("visible = %v, want 1", body["visible"])
	}

	w = env.do(t, http.MethodPut, "/api/filter", `{"hosts":["desk-02"],"start":"11:00","end":"12:00"}`)
	body = decode(t, w)
	status := body["status"].(map[string]interface{})
	if status["kind"] != string(monitor.StatusEmptyFilter) {
		t.Errorf("status = %v, want empty_filter", status["kind"])
	}

	w = env.do(t, http.MethodPut, "/api/filter", `{"all":true}`)
	body = decode(t, w)
	if body["visible"] != float64(3) {
		t.Errorf("visible after reset = %v, want 3", body["visible"])
	}
}

func TestFilterEndpoint_InvalidWindow(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, true)

	if w := env.do(t, http.MethodPut, "/api/filter", `{"start":"25:99"}`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid window status = %d, want 400", w.Code)
	}
	if w := env.do(t, http.MethodPut, "/api/filter", `{not json`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON status = %d, want 400", w.Code)
	}
}

func TestReloadEndpoint(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodPost, "/api/reload", "")
	if w.Code != http.StatusOK {
		t.Fatalf("reload status = %d: %s", w.Code, w.Body.String())
	}
	if got := env.session.Snapshot().Summary.Samples; got != 3 {
		t.Errorf("samples after reload = %d, want 3", got)
	}

	counts, err := env.store.TableRowCounts()
	if err != nil {
		t.Fatalf("TableRowCounts: %v", err)
	}
	if counts["samples"] != 3 {
		t.Errorf("stored samples = %d, want 3", counts["samples"])
	}
}

func TestReloadEndpoint_MissingDate(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, true)

	w := env.do(t, http.MethodPost, "/api/reload", `{"date":"06-03-24"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("reload status = %d, want 502", w.Code)
	}
	st := env.session.Snapshot()
	if st.Status.Kind != monitor.StatusFetchError {
		t.Errorf("status = %s, want fetch_error", st.Status.Kind)
	}
	if st.Summary.Samples != 0 {
		t.Errorf("samples = %d, want 0 after failed load", st.Summary.Samples)
	}

	if w := env.do(t, http.MethodPost, "/api/reload", `{"date":"yesterday"}`); w.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d, want 400", w.Code)
	}
}

func TestReloadEndpoint_EmptyDataset(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false)
	env.fetcher.mu.Lock()
	env.fetcher.rows[testFile] = []model.RawRow{{"Hostname": "desk-01"}}
	env.fetcher.mu.Unlock()

	w := env.do(t, http.MethodPost, "/api/reload", "")
	if w.Code != http.StatusOK {
		t.Fatalf("reload status = %d, want 200", w.Code)
	}
	body := decode(t, w)
	status := body["status"].(map[string]interface{})
	if status["kind"] != string(monitor.StatusEmptyDataset) {
		t.Errorf("status = %v, want empty_dataset", status["kind"])
	}
}

func TestQueryEndpoint_ValidSelect(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, true)

	w := env.do(t, http.MethodPost, "/api/query", `{"sql":"SELECT hostname FROM samples ORDER BY seq"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("query status = %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["row_count"] != float64(3) {
		t.Errorf("row_count = %v, want 3", body["row_count"])
	}
}

func TestQueryEndpoint_Rejected(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, true)

	for _, payload := range []string{
		`{"sql":"DELETE FROM samples"}`,
		`{"sql":"SELECT 1; DROP TABLE samples"}`,
		`{}`,
		`not json`,
	} {
		if w := env.do(t, http.MethodPost, "/api/query", payload); w.Code != http.StatusBadRequest {
			t.Errorf("query %s status = %d, want 400", payload, w.Code)
		}
	}
}

func TestSchemaEndpoint(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, true)

	w := env.do(t, http.MethodGet, "/api/schema", "")
	if w.Code != http.StatusOK {
		t.Fatalf("schema status = %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	tables := body["tables"].(map[string]interface{})
	for _, name := range []string{"samples", "route_hops"} {
		if _, ok := tables[name]; !ok {
			t.Errorf("schema missing table %s", name)
		}
	}
	if _, ok := tables["schema_migrations"]; ok {
		t.Error("schema should not list schema_migrations")
	}
}

func TestSQLEndpoints_NoStore(t *testing.T) {
	t.Parallel()
	session := monitor.New(monitor.Config{Date: testDay})
	router := NewServer(Config{Session: session}).Handler()

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/schema"},
		{http.MethodPost, "/api/query"},
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, bytes.NewBufferString(`{"sql":"SELECT 1"}`)))
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s status = %d, want 503", tc.method, tc.path, w.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, true)

	w := env.do(t, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "netpulse_loads_total") {
		t.Errorf("metrics output missing netpulse_loads_total")
	}
}
