// Package query holds the host catalog and the filter engine that sit between a
// loaded dataset and its chart projections.
package query

import (
	"sort"

	"github.com/tinytelemetry/netpulse/internal/model"
)

// Catalog is the sorted set of hostnames of the current dataset plus the active
// host selection. It is not safe for concurrent use; owners serialize access.
type Catalog struct {
	hosts     []string
	known     map[string]struct{}
	selection model.HostSelection
}

// NewCatalog returns an empty catalog with the ALL selection.
func NewCatalog() *Catalog {
	return &Catalog{known: map[string]struct{}{}}
}

// Hosts returns the sorted distinct hostnames.
func (c *Catalog) Hosts() []string {
	out := make([]string, len(c.hosts))
	copy(out, c.hosts)
	return out
}

// Selection returns the active selection.
func (c *Catalog) Selection() model.HostSelection { return c.selection }

// Has reports whether host is present in the current dataset.
func (c *Catalog) Has(host string) bool {
	_, ok := c.known[host]
	return ok
}

// Update recomputes the host set from ds. The previous selection survives when it is
// ALL or a subset of the new hosts; otherwise it falls back to ALL and reset is true.
func (c *Catalog) Update(ds *model.Dataset) (reset bool) {
	known := make(map[string]struct{})
	ds.Each(func(_ int, s model.Sample) {
		known[s.Hostname] = struct{}{}
	})
	hosts := make([]string, 0, len(known))
	for h := range known {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)

	c.hosts = hosts
	c.known = known

	prev := c.selection
	if prev.IsAll() {
		return false
	}
	for _, h := range prev.Hosts() {
		if !c.Has(h) {
			c.selection = model.AllHosts()
			return true
		}
	}
	c.selection = c.normalize(prev)
	return false
}

// Select replaces the selection. Unknown hosts are dropped; the empty set and the full
// host set both become ALL.
func (c *Catalog) Select(hosts ...string) model.HostSelection {
	kept := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if c.Has(h) {
			kept = append(kept, h)
		}
	}
	c.selection = c.normalize(model.SelectHosts(kept...))
	return c.selection
}

// Toggle adds or removes one host from the selection. Toggling from ALL selects
// only that host.
func (c *Catalog) Toggle(host string) model.HostSelection {
	if !c.Has(host) {
		return c.selection
	}
	if c.selection.IsAll() {
		return c.Select(host)
	}
	current := c.selection.Hosts()
	next := make([]string, 0, len(current)+1)
	found := false
	for _, h := range current {
		if h == host {
			found = true
			continue
		}
		next = append(next, h)
	}
	if !found {
		next = append(next, host)
	}
	return c.Select(next...)
}

func (c *Catalog) normalize(sel model.HostSelection) model.HostSelection {
	if sel.IsAll() || len(sel.Hosts()) == len(c.hosts) {
		return model.AllHosts()
	}
	return sel
}
