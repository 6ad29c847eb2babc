package otlpexport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"

	"github.com/tinytelemetry/netpulse/internal/model"
)

// DefaultTimeout bounds one export call.
const DefaultTimeout = 10 * time.Second

// Exporter pushes samples to an OTLP gRPC metrics endpoint. Snapshot files only grow, so
// within one source file the samples past the last exported position are the new ones,
// whatever their timestamps. Periodic reloads never resend history.
type Exporter struct {
	conn    *grpc.ClientConn
	client  colmetricspb.MetricsServiceClient
	timeout time.Duration
	log     logr.Logger

	mu         sync.Mutex
	lastSource string
	// sent is the number of leading samples of lastSource already exported.
	sent int
}

// NewExporter connects to endpoint (host:port). Without dial options the connection is
// plaintext.
func NewExporter(endpoint string, log logr.Logger, opts ...grpc.DialOption) (*Exporter, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp dial %s: %w", endpoint, err)
	}
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	return &Exporter{
		conn:    conn,
		client:  colmetricspb.NewMetricsServiceClient(conn),
		timeout: DefaultTimeout,
		log:     log,
	}, nil
}

// Export sends samples. An empty slice is a no-op.
func (e *Exporter) Export(ctx context.Context, samples []model.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	resp, err := e.client.Export(ctx, BuildMetrics(samples))
	if err != nil {
		return fmt.Errorf("otlp export: %w", err)
	}
	if ps := resp.GetPartialSuccess(); ps != nil && ps.GetRejectedDataPoints() > 0 {
		return fmt.Errorf("otlp export: collector rejected %d data points: %s", ps.GetRejectedDataPoints(), ps.GetErrorMessage())
	}
	return nil
}

// ReplaceDataset exports the samples of ds not yet sent for its source. A dataset
// shorter than what was sent means the file was rewritten, and it is exported whole.
func (e *Exporter) ReplaceDataset(ds *model.Dataset) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ds.Source() != e.lastSource || ds.Len() < e.sent {
		e.lastSource, e.sent = ds.Source(), 0
	}
	pending := ds.Samples()[e.sent:]
	if len(pending) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()
	if err := e.Export(ctx, pending); err != nil {
		return err
	}
	e.sent = ds.Len()
	e.log.V(1).Info("exported samples", "source", ds.Source(), "samples", len(pending))
	return nil
}

// Close closes the gRPC connection.
func (e *Exporter) Close() error {
	return e.conn.Close()
}
