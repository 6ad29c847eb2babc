package query

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tinytelemetry/netpulse/internal/model"
	"github.com/tinytelemetry/netpulse/internal/timestamp"
)

// ErrEmptyFilterResult is returned when the criteria exclude every sample of a
// non-empty dataset.
var ErrEmptyFilterResult = errors.New("no samples match the filter")

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::\d{2})?$`)

// Filter returns the samples of ds that pass c, in dataset order.
// The view is built fresh on every call and only ever holds samples of ds.
func Filter(ds *model.Dataset, c model.FilterCriteria) model.FilteredView {
	view := model.FilteredView{Criteria: c}
	if ds == nil {
		return view
	}
	view.Generation = ds.Generation()
	ds.Each(func(_ int, s model.Sample) {
		if matches(s, c) {
			view.Samples = append(view.Samples, s)
		}
	})
	return view
}

// Refine applies c to an existing view. Refine(Filter(d, c), c) equals Filter(d, c).
func Refine(v model.FilteredView, c model.FilterCriteria) model.FilteredView {
	out := model.FilteredView{Generation: v.Generation, Criteria: c}
	for _, s := range v.Samples {
		if matches(s, c) {
			out.Samples = append(out.Samples, s)
		}
	}
	return out
}

// Apply is Filter plus the empty-result signal. An empty dataset yields an empty view
// and no error; the caller reports that case separately.
func Apply(ds *model.Dataset, c model.FilterCriteria) (model.FilteredView, error) {
	view := Filter(ds, c)
	if view.Len() == 0 && ds.Len() > 0 {
		return view, fmt.Errorf("hosts=%s window=%s-%s: %w",
			c.Hosts, c.Window.Start, c.Window.End, ErrEmptyFilterResult)
	}
	return view, nil
}

func matches(s model.Sample, c model.FilterCriteria) bool {
	if !timestamp.Valid(s.Timestamp) {
		return false
	}
	if !c.Hosts.Contains(s.Hostname) {
		return false
	}
	return c.Window.Contains(s.Clock())
}

// ParseClock normalizes "H:MM", "HH:MM" or "HH:MM:SS" to zero-padded "HH:MM".
func ParseClock(s string) (string, error) {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	h, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if h > 23 || minute > 59 {
		return "", fmt.Errorf("invalid time %q: out of range", s)
	}
	return fmt.Sprintf("%02d:%02d", h, minute), nil
}

// ParseWindow builds a window from user input. Blank bounds default to the full day.
// A start after the end is accepted and matches nothing.
func ParseWindow(start, end string) (model.TimeWindow, error) {
	w := model.FullDay()
	if strings.TrimSpace(start) != "" {
		v, err := ParseClock(start)
		if err != nil {
			return w, fmt.Errorf("start: %w", err)
		}
		w.Start = v
	}
	if strings.TrimSpace(end) != "" {
		v, err := ParseClock(end)
		if err != nil {
			return w, fmt.Errorf("end: %w", err)
		}
		w.End = v
	}
	return w, nil
}
