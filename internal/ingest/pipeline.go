package ingest

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/tinytelemetry/netpulse/internal/model"
	"github.com/tinytelemetry/netpulse/internal/timestamp"
)

// ErrEmptyDataset is returned when no row of a fetched file survives validation.
var ErrEmptyDataset = errors.New("no valid rows")

// Pipeline turns raw rows into samples: normalize, coerce, validate.
type Pipeline struct {
	coercer *Coercer
	log     logr.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithParser sets the timestamp parser used for wall-clock values.
func WithParser(p *timestamp.Parser) Option {
	return func(pl *Pipeline) { pl.coercer = NewCoercer(p) }
}

// WithLogger sets the logger for per-load summaries.
func WithLogger(log logr.Logger) Option {
	return func(pl *Pipeline) { pl.log = log }
}

// NewPipeline creates a pipeline reading wall-clock timestamps as local time.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		coercer: NewCoercer(nil),
		log:     logr.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs one raw row through every stage. ok is false when the row is rejected.
func (p *Pipeline) Process(raw model.RawRow) (model.Sample, bool) {
	return Validate(p.coercer.Coerce(NormalizeRow(raw)))
}

// Build creates the Dataset for one load. Rejected rows are dropped and only counted.
// When nothing survives, the returned error wraps ErrEmptyDataset and the Dataset still
// carries the rejection count.
func (p *Pipeline) Build(generation uint64, source string, rows []model.RawRow) (*model.Dataset, error) {
	samples := make([]model.Sample, 0, len(rows))
	rejected := 0
	for _, raw := range rows {
		s, ok := p.Process(raw)
		if !ok {
			rejected++
			continue
		}
		samples = append(samples, s)
	}

	ds := model.NewDataset(generation, source, samples, rejected)
	p.log.V(1).Info("dataset built", "source", source, "generation", generation,
		"rows", len(rows), "valid", len(samples), "rejected", rejected)

	if len(samples) == 0 {
		return ds, fmt.Errorf("%s: %w (%d rows read)", source, ErrEmptyDataset, len(rows))
	}
	return ds, nil
}
