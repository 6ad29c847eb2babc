package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
)

const sampleCSV = "\xEF\xBB\xBFTimestamp,Hostname,Uso_CPU(%),Hop_IP_01,Hop_LAT_01ms\n" +
	"2024-01-10 14:32:05,desk-01,55.2,10.0.0.1,12.3\n" +
	"\n" +
	"2024-01-10 14:33:05,desk-02\n" +
	",,,,\n" +
	"2024-01-10 14:34:05,desk-01,40,10.0.0.1,11,extra\n"

func TestReadRows(t *testing.T) {
	t.Parallel()

	rows, err := ReadRows(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ReadRows returned error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0]["Timestamp"] != "2024-01-10 14:32:05" {
		t.Errorf("BOM not stripped from header: %v", rows[0])
	}
	if rows[0]["Uso_CPU(%)"] != "55.2" {
		t.Errorf("cpu = %q", rows[0]["Uso_CPU(%)"])
	}
	if _, ok := rows[1]["Uso_CPU(%)"]; ok {
		t.Errorf("short row should leave cpu absent: %v", rows[1])
	}
	if len(rows[2]) != 5 {
		t.Errorf("extra cell should be ignored: %v", rows[2])
	}
}

func TestReadRows_Semicolon(t *testing.T) {
	t.Parallel()

	rows, err := ReadRows(strings.NewReader("Timestamp;Hostname;Uso_CPU(%)\n2024-01-10 14:32:05;desk-01;55,2\n"))
	if err != nil {
		t.Fatalf("ReadRows returned error: %v", err)
	}
	if len(rows) != 1 || rows[0]["Uso_CPU(%)"] != "55,2" {
		t.Fatalf("rows = %v", rows)
	}
}

func TestReadRows_Empty(t *testing.T) {
	t.Parallel()

	rows, err := ReadRows(strings.NewReader(""))
	if err != nil || len(rows) != 0 {
		t.Fatalf("ReadRows(empty) = %v, %v", rows, err)
	}
}

func TestFileName(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	if got := FileName("", day); got != "py_monitor_10-01-24.csv" {
		t.Errorf("FileName = %q", got)
	}
	if got := FileName("net_%s.csv", day); got != "net_10-01-24.csv" {
		t.Errorf("FileName = %q", got)
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	want := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"10-01-24", "10-01-2024", "2024-01-10"} {
		got, err := ParseDate(in, time.UTC)
		if err != nil || !got.Equal(want) {
			t.Errorf("ParseDate(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseDate("yesterday", time.UTC); err == nil {
		t.Error("expected error for invalid date")
	}
}

func TestDirFetcher(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "py_monitor_10-01-24.csv"), []byte(sampleCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	f := NewDirFetcher(dir)
	rows, err := f.Fetch(context.Background(), "py_monitor_10-01-24.csv")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}

	_, err = f.Fetch(context.Background(), "py_monitor_11-01-24.csv")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *FetchError", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if !strings.HasSuffix(fe.Location, "py_monitor_11-01-24.csv") {
		t.Errorf("location = %q", fe.Location)
	}
}

func TestHTTPFetcher(t *testing.T) {
	t.Parallel()

	headers := make(chan http.Header, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		if r.URL.Path != "/data/py_monitor_10-01-24.csv" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(srv.URL+"/data/", srv.Client())
	if err != nil {
		t.Fatalf("NewHTTPFetcher returned error: %v", err)
	}
	rows, err := f.Fetch(context.Background(), "py_monitor_10-01-24.csv")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	gotHeaders := <-headers
	if gotHeaders.Get("Cache-Control") != "no-cache" || gotHeaders.Get("Pragma") != "no-cache" {
		t.Errorf("cache headers missing: %v", gotHeaders)
	}
	if gotHeaders.Get("If-Modified-Since") == "" {
		t.Error("If-Modified-Since missing")
	}

	_, err = f.Fetch(context.Background(), "py_monitor_11-01-24.csv")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestHTTPFetcher_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f, _ := NewHTTPFetcher(srv.URL, srv.Client())
	_, err := f.Fetch(context.Background(), "x.csv")
	var fe *FetchError
	if !errors.As(err, &fe) || errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want non-404 FetchError", err)
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	if f, err := New("https://example.com/monitor/"); err != nil {
		t.Fatalf("New(url) error: %v", err)
	} else if _, ok := f.(*HTTPFetcher); !ok {
		t.Errorf("New(url) = %T, want *HTTPFetcher", f)
	}
	if f, _ := New("/var/lib/netpulse"); f.Location() != "/var/lib/netpulse" {
		t.Errorf("dir location = %q", f.Location())
	}
	if f, _ := New("-"); f.Location() != "stdin" {
		t.Errorf("stdin location = %q", f.Location())
	}
}

func TestReaderFetcher_ReadsOnce(t *testing.T) {
	t.Parallel()

	f := NewReaderFetcher("stdin", strings.NewReader(sampleCSV))
	for i := 0; i < 2; i++ {
		rows, err := f.Fetch(context.Background(), "ignored")
		if err != nil || len(rows) != 3 {
			t.Fatalf("fetch %d = %d rows, %v", i, len(rows), err)
		}
	}
}

func TestWatcher_ReportsTargetChanges(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir, logr.Discard())
	if err != nil {
		t.Fatalf("NewWatcher returned error: %v", err)
	}
	w.SetDebounce(10 * time.Millisecond)
	w.SetTarget("py_monitor_10-01-24.csv")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan string, 4)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, func(name string) { changed <- name }) }()

	os.WriteFile(filepath.Join(dir, "other.csv"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(dir, "py_monitor_10-01-24.csv"), []byte(sampleCSV), 0o644)

	select {
	case name := <-changed:
		if name != "py_monitor_10-01-24.csv" {
			t.Fatalf("changed = %q", name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}
