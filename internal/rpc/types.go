package rpc

import "github.com/jcdickinson/doxsearch/internal/index"

// LookupRequest is the request body for POST /lookup.
type LookupRequest struct {
	Query   string   `json:"query"`
	Sources []string `json:"sources,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// LookupResponse is the response body for POST /lookup.
type LookupResponse struct {
	Results   []SymbolResult `json:"results"`
	Truncated bool           `json:"truncated,omitempty"`
}

// SymbolResult is one matching index entry, tagged with the source it
// came from.
type SymbolResult struct {
	URI         string         `json:"uri"`
	Source      string         `json:"source"`
	Key         string         `json:"key"`
	DisplayName string         `json:"display_name"`
	Targets     []TargetResult `json:"targets"`
}

type TargetResult struct {
	index.Target
	// URL is AnchorPath resolved against the source's base URL; empty when
	// the source has none.
	URL string `json:"url,omitempty"`
}

// ListRequest is the request body for POST /list.
type ListRequest struct {
	Source string `json:"source"`
}

// ImportRequest is the request body for POST /import.
type ImportRequest struct {
	Sources []SourceSpec `json:"sources"`
}

// SourceSpec names a Doxygen search index and where to read it from:
// a search/ directory, a single script, or http(s) URLs of scripts.
type SourceSpec struct {
	Name    string   `json:"name"`
	Paths   []string `json:"paths"`
	BaseURL string   `json:"base_url,omitempty"`
}

// ImportResponse is the response body for POST /import.
type ImportResponse struct {
	Results []SourceResult `json:"results"`
}

type SourceResult struct {
	Name    string `json:"name"`
	Entries int    `json:"entries"`
	Files   int    `json:"files"`
	Error   string `json:"error,omitempty"`
}

// ProgressLine is a single line of NDJSON streamed from the import endpoint.
type ProgressLine struct {
	Type    string        `json:"type"` // "progress" or "result"
	Message string        `json:"message,omitempty"`
	Result  *SourceResult `json:"result,omitempty"`
}

// RemoveRequest is the request body for POST /remove.
type RemoveRequest struct {
	Name string `json:"name"`
}

// StatusResponse is the response body for GET /status.
type StatusResponse struct {
	Sources []SourceStatus `json:"sources"`
	// StoredEntries totals the entries of every completed import on disk.
	StoredEntries int `json:"stored_entries"`
}

type SourceStatus struct {
	Name       string `json:"name"`
	Origin     string `json:"origin,omitempty"`
	BaseURL    string `json:"base_url,omitempty"`
	Entries    int    `json:"entries"`
	Loaded     bool   `json:"loaded"`
	ImportedAt string `json:"imported_at,omitempty"`
	LastUsedAt string `json:"last_used_at,omitempty"`
}

// GetRequest is the request body for POST /get.
type GetRequest struct {
	Source string `json:"source"`
	Key    string `json:"key"`
}

// GetResponse is the response body for POST /get.
type GetResponse struct {
	Markdown string `json:"markdown"`
}
