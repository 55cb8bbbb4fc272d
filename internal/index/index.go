package index

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedEntry is matched by every *MalformedEntryError.
var ErrMalformedEntry = errors.New("malformed index entry")

// Target is one documented location of a symbol.
type Target struct {
	AnchorPath string `json:"anchor_path"`
	ScopeLabel string `json:"scope_label,omitempty"`
	External   bool   `json:"external,omitempty"`
}

// Entry maps a search key to a symbol and the places it is documented.
type Entry struct {
	Key         string   `json:"key"`
	DisplayName string   `json:"display_name"`
	Targets     []Target `json:"targets"`
}

// MalformedEntryError reports an entry rejected while building a Table.
type MalformedEntryError struct {
	Index  int
	Key    string
	Reason string
}

func (e *MalformedEntryError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("entry %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("entry %d (%s): %s", e.Index, e.Key, e.Reason)
}

func (e *MalformedEntryError) Is(target error) bool {
	return target == ErrMalformedEntry
}

// Table is an immutable, ordered set of entries. It is safe for concurrent
// use by any number of goroutines.
type Table struct {
	entries []Entry
	folded  []folded
}

// folded holds the lowercased match fields of the entry at the same position.
type folded struct {
	key  string
	name string
}

// New validates entries and builds a Table over a private copy of them.
// The first entry without a key or without targets aborts the build.
func New(entries []Entry) (*Table, error) {
	t := &Table{
		entries: make([]Entry, len(entries)),
		folded:  make([]folded, len(entries)),
	}
	for i, e := range entries {
		if e.Key == "" {
			return nil, &MalformedEntryError{Index: i, Reason: "missing key"}
		}
		if len(e.Targets) == 0 {
			return nil, &MalformedEntryError{Index: i, Key: e.Key, Reason: "no targets"}
		}
		t.entries[i] = cloneEntry(e)
		t.folded[i] = folded{key: strings.ToLower(e.Key), name: strings.ToLower(e.DisplayName)}
	}
	return t, nil
}

// Lookup returns the entries whose key or display name contains query,
// ignoring case, in table order. An empty query matches every entry.
func (t *Table) Lookup(query string) []Entry {
	q := strings.ToLower(query)
	out := make([]Entry, 0)
	for i, f := range t.folded {
		if strings.Contains(f.key, q) || strings.Contains(f.name, q) {
			out = append(out, cloneEntry(t.entries[i]))
		}
	}
	return out
}

// All returns every entry in table order.
func (t *Table) All() []Entry {
	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = cloneEntry(e)
	}
	return out
}

func (t *Table) Len() int {
	return len(t.entries)
}

func cloneEntry(e Entry) Entry {
	targets := make([]Target, len(e.Targets))
	copy(targets, e.Targets)
	e.Targets = targets
	return e
}
