package monitor

import (
	"errors"

	"github.com/tinytelemetry/netpulse/internal/model"
)

type multiSink []model.DatasetWriter

// MultiSink fans a dataset out to every non-nil writer. It returns nil when no writer remains.
func MultiSink(writers ...model.DatasetWriter) model.DatasetWriter {
	var ms multiSink
	for _, w := range writers {
		if w != nil {
			ms = append(ms, w)
		}
	}
	switch len(ms) {
	case 0:
		return nil
	case 1:
		return ms[0]
	}
	return ms
}

// ReplaceDataset hands ds to every writer, even after one fails.
func (ms multiSink) ReplaceDataset(ds *model.Dataset) error {
	var errs []error
	for _, w := range ms {
		if err := w.ReplaceDataset(ds); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
