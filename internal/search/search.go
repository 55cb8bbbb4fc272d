package search

import (
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/jcdickinson/doxsearch/internal/index"
	"github.com/jcdickinson/doxsearch/internal/rpc"
)

// URIScheme prefixes the URI of every lookup result.
const URIScheme = "doxsearch://"

type source struct {
	name  string
	table *index.Table
	base  *url.URL
}

// Catalog publishes one index table per source. Readers see an immutable
// snapshot; Publish and Remove build a new snapshot and swap it in, so a
// lookup never observes a partially loaded source.
type Catalog struct {
	mu   sync.Mutex // serializes writers
	snap atomic.Pointer[[]source]
}

func NewCatalog() *Catalog {
	c := &Catalog{}
	c.snap.Store(&[]source{})
	return c
}

// SourceInfo describes a published source.
type SourceInfo struct {
	Name    string
	BaseURL string
	Entries int
}

// Publish makes t the table for name, replacing any earlier one in place.
// New sources are appended after existing ones.
func (c *Catalog) Publish(name string, t *index.Table, baseURL string) error {
	var base *url.URL
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return fmt.Errorf("parsing base URL for %s: %w", name, err)
		}
		base = u
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := slices.Clone(*c.snap.Load())
	s := source{name: name, table: t, base: base}
	if i := slices.IndexFunc(next, func(s source) bool { return s.name == name }); i >= 0 {
		next[i] = s
	} else {
		next = append(next, s)
	}
	c.snap.Store(&next)
	return nil
}

// Remove unpublishes name and reports whether it was published.
func (c *Catalog) Remove(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := *c.snap.Load()
	i := slices.IndexFunc(cur, func(s source) bool { return s.name == name })
	if i < 0 {
		return false
	}
	next := slices.Delete(slices.Clone(cur), i, i+1)
	c.snap.Store(&next)
	return true
}

// Table returns the published table for name.
func (c *Catalog) Table(name string) (*index.Table, bool) {
	for _, s := range *c.snap.Load() {
		if s.name == name {
			return s.table, true
		}
	}
	return nil, false
}

// Sources lists published sources in publish order.
func (c *Catalog) Sources() []SourceInfo {
	cur := *c.snap.Load()
	out := make([]SourceInfo, len(cur))
	for i, s := range cur {
		out[i] = SourceInfo{Name: s.name, Entries: s.table.Len()}
		if s.base != nil {
			out[i].BaseURL = s.base.String()
		}
	}
	return out
}

// Lookup runs a case-insensitive substring lookup over the named sources,
// or all of them when names is empty. Results keep source order, then table
// order. A limit of zero or less means no limit; truncated reports whether
// the limit cut results off.
func (c *Catalog) Lookup(query string, names []string, limit int) (results []rpc.SymbolResult, truncated bool, err error) {
	selected, err := c.selectSources(names)
	if err != nil {
		return nil, false, err
	}

	results = make([]rpc.SymbolResult, 0)
	for _, s := range selected {
		for _, e := range s.table.Lookup(query) {
			if limit > 0 && len(results) == limit {
				truncated = true
				break
			}
			results = append(results, buildResult(s, e))
		}
		if truncated {
			break
		}
	}

	slog.Debug("lookup", "query", query, "sources", names, "limit", limit, "results", len(results), "truncated", truncated)
	return results, truncated, nil
}

// List returns every entry of one source.
func (c *Catalog) List(name string) ([]rpc.SymbolResult, error) {
	selected, err := c.selectSources([]string{name})
	if err != nil {
		return nil, err
	}
	s := selected[0]
	all := s.table.All()
	results := make([]rpc.SymbolResult, len(all))
	for i, e := range all {
		results[i] = buildResult(s, e)
	}
	return results, nil
}

// Get returns the entries of source name whose key is exactly key, along
// with the source's base URL (nil when it has none).
func (c *Catalog) Get(name, key string) ([]index.Entry, *url.URL, error) {
	selected, err := c.selectSources([]string{name})
	if err != nil {
		return nil, nil, err
	}
	s := selected[0]
	var entries []index.Entry
	for _, e := range s.table.Lookup(key) {
		if e.Key == key {
			entries = append(entries, e)
		}
	}
	return entries, s.base, nil
}

func (c *Catalog) selectSources(names []string) ([]source, error) {
	cur := *c.snap.Load()
	if len(names) == 0 {
		return cur, nil
	}
	var selected []source
	for _, s := range cur {
		if slices.Contains(names, s.name) {
			selected = append(selected, s)
		}
	}
	for _, n := range names {
		if !slices.ContainsFunc(selected, func(s source) bool { return s.name == n }) {
			return nil, fmt.Errorf("unknown source %q", n)
		}
	}
	return selected, nil
}

func buildResult(s source, e index.Entry) rpc.SymbolResult {
	targets := make([]rpc.TargetResult, len(e.Targets))
	for i, t := range e.Targets {
		targets[i] = rpc.TargetResult{Target: t, URL: ResolveAnchor(s.base, t.AnchorPath)}
	}
	return rpc.SymbolResult{
		URI:         URIScheme + s.name + "/" + url.PathEscape(e.Key),
		Source:      s.name,
		Key:         e.Key,
		DisplayName: e.DisplayName,
		Targets:     targets,
	}
}

// ResolveAnchor resolves a Doxygen anchor path against base. Absolute
// anchors (links into external tag files) are returned as is; relative
// anchors without a base resolve to "".
func ResolveAnchor(base *url.URL, anchor string) string {
	ref, err := url.Parse(anchor)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	if base == nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
