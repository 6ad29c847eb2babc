// Package source retrieves snapshot files and turns them into raw rows.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tinytelemetry/netpulse/internal/model"
)

// ErrNotFound marks a snapshot that does not exist at the source.
var ErrNotFound = errors.New("snapshot not found")

// FetchError reports that a snapshot could not be retrieved or read.
type FetchError struct {
	Location string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Location, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher retrieves the rows of one named snapshot.
type Fetcher interface {
	Fetch(ctx context.Context, name string) ([]model.RawRow, error)
	// Location describes where snapshots are read from.
	Location() string
}

// New picks a fetcher for location: "-" reads stdin, http(s) URLs are fetched
// over HTTP and anything else is a local directory.
func New(location string) (Fetcher, error) {
	switch {
	case location == "-":
		return NewReaderFetcher("stdin", os.Stdin), nil
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return NewHTTPFetcher(location, nil)
	default:
		if location == "" {
			location = model.DefaultSource
		}
		return NewDirFetcher(location), nil
	}
}

// DirFetcher reads snapshots from a local directory.
type DirFetcher struct {
	dir string
}

// NewDirFetcher creates a fetcher rooted at dir.
func NewDirFetcher(dir string) *DirFetcher {
	return &DirFetcher{dir: dir}
}

func (f *DirFetcher) Location() string { return f.dir }

// Path returns the on-disk path of snapshot name.
func (f *DirFetcher) Path(name string) string {
	return filepath.Join(f.dir, filepath.Base(name))
}

func (f *DirFetcher) Fetch(ctx context.Context, name string) ([]model.RawRow, error) {
	path := f.Path(name)
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Location: path, Err: err}
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &FetchError{Location: path, Err: ErrNotFound}
	}
	if err != nil {
		return nil, &FetchError{Location: path, Err: err}
	}
	defer file.Close()

	rows, err := ReadRows(file)
	if err != nil {
		return nil, &FetchError{Location: path, Err: err}
	}
	return rows, nil
}

// HTTPFetcher downloads snapshots relative to a base URL, bypassing caches.
type HTTPFetcher struct {
	base   *url.URL
	client *http.Client
}

// DefaultHTTPTimeout bounds one snapshot download.
const DefaultHTTPTimeout = 30 * time.Second

// NewHTTPFetcher creates a fetcher for baseURL. A nil client uses one with
// DefaultHTTPTimeout.
func NewHTTPFetcher(baseURL string, client *http.Client) (*HTTPFetcher, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("source url %q: unsupported scheme", baseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &HTTPFetcher{base: u, client: client}, nil
}

func (f *HTTPFetcher) Location() string { return f.base.String() }

// URL returns the absolute URL of snapshot name.
func (f *HTTPFetcher) URL(name string) string {
	return f.base.JoinPath(name).String()
}

func (f *HTTPFetcher) Fetch(ctx context.Context, name string) ([]model.RawRow, error) {
	target := f.URL(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{Location: target, Err: err}
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("If-Modified-Since", "Sat, 01 Jan 2000 00:00:00 GMT")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Location: target, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &FetchError{Location: target, Err: ErrNotFound}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{Location: target, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	rows, err := ReadRows(resp.Body)
	if err != nil {
		return nil, &FetchError{Location: target, Err: err}
	}
	return rows, nil
}

// ReaderFetcher serves a single stream, such as stdin, read once on first Fetch.
// Later fetches return the same rows whatever name is asked for.
type ReaderFetcher struct {
	name string
	r    io.Reader

	once sync.Once
	rows []model.RawRow
	err  error
}

// NewReaderFetcher wraps r. name is used in errors and as the location.
func NewReaderFetcher(name string, r io.Reader) *ReaderFetcher {
	return &ReaderFetcher{name: name, r: r}
}

func (f *ReaderFetcher) Location() string { return f.name }

func (f *ReaderFetcher) Fetch(ctx context.Context, _ string) ([]model.RawRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Location: f.name, Err: err}
	}
	f.once.Do(func() {
		f.rows, f.err = ReadRows(f.r)
	})
	if f.err != nil {
		return nil, &FetchError{Location: f.name, Err: f.err}
	}
	out := make([]model.RawRow, len(f.rows))
	copy(out, f.rows)
	return out, nil
}
