package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/jcdickinson/doxsearch/internal/cas"
	"github.com/jcdickinson/doxsearch/internal/db"
	"github.com/jcdickinson/doxsearch/internal/rpc"
	"github.com/jcdickinson/doxsearch/internal/searchdata"
)

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req rpc.ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	send := func(line rpc.ProgressLine) bool {
		if line.Message != "" {
			log.Printf("daemon: %s", line.Message)
		}
		if err := enc.Encode(line); err != nil {
			log.Printf("daemon: client disconnected: %v", err)
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	for _, spec := range req.Sources {
		progress := func(msg string) {
			send(rpc.ProgressLine{Type: "progress", Message: msg})
		}
		result := s.importSource(r.Context(), spec, progress)
		if !send(rpc.ProgressLine{Type: "result", Result: &result}) {
			return
		}
	}
}

// importConfigured imports the sources listed in the config file.
func (s *Server) importConfigured(ctx context.Context) {
	for _, sc := range s.cfg.Index.Sources {
		spec := rpc.SourceSpec{Name: sc.Name, Paths: []string{sc.Path}, BaseURL: sc.BaseURL}
		result := s.importSource(ctx, spec, func(msg string) {
			log.Printf("config import: %s", msg)
		})
		if result.Error != "" {
			log.Printf("daemon: failed to import configured source %s: %s", sc.Name, result.Error)
		}
	}
}

// importSource reads, stores and publishes one source. Concurrent imports
// of the same name share a single run.
func (s *Server) importSource(ctx context.Context, spec rpc.SourceSpec, progress func(string)) rpc.SourceResult {
	if err := validateSpec(spec); err != nil {
		return rpc.SourceResult{Name: spec.Name, Error: err.Error()}
	}

	v, _, _ := s.importGroup.Do(spec.Name, func() (interface{}, error) {
		return s.importWork(ctx, spec, progress), nil
	})
	return v.(rpc.SourceResult)
}

func validateSpec(spec rpc.SourceSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("missing source name")
	}
	if spec.Name == searchdata.BuiltinSource {
		return fmt.Errorf("source name %q is reserved for the built-in index", spec.Name)
	}
	if strings.ContainsAny(spec.Name, "/?#") {
		return fmt.Errorf("source name %q may not contain '/', '?' or '#'", spec.Name)
	}
	if len(spec.Paths) == 0 {
		return fmt.Errorf("no paths given for %s", spec.Name)
	}
	if spec.BaseURL != "" {
		if _, err := url.Parse(spec.BaseURL); err != nil {
			return fmt.Errorf("invalid base URL: %w", err)
		}
	}
	return nil
}

func (s *Server) importWork(ctx context.Context, spec rpc.SourceSpec, progress func(string)) rpc.SourceResult {
	result := rpc.SourceResult{Name: spec.Name}

	progress(fmt.Sprintf("reading search data for %s", spec.Name))
	files, err := collectFiles(ctx, spec.Paths)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	progress(fmt.Sprintf("parsing %d scripts for %s", len(files), spec.Name))
	table, err := searchdata.Build(ctx, files)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	stored := make([]db.SourceFile, 0, len(files))
	for _, f := range files {
		hash, err := cas.Write(f.Data)
		if err != nil {
			result.Error = fmt.Sprintf("storing %s: %v", f.Name, err)
			return result
		}
		stored = append(stored, db.SourceFile{FileName: f.Name, ContentHash: hash})
	}

	baseURL := spec.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL(spec.Paths[0])
	}

	_, err = s.db.RecordImport(db.Import{
		Name:    spec.Name,
		Origin:  strings.Join(spec.Paths, ", "),
		BaseURL: baseURL,
		Entries: table.Len(),
		Files:   stored,
	})
	if err != nil {
		result.Error = fmt.Sprintf("recording source: %v", err)
		return result
	}

	if err := s.catalog.Publish(spec.Name, table, baseURL); err != nil {
		result.Error = err.Error()
		return result
	}

	result.Entries = table.Len()
	result.Files = len(files)
	progress(fmt.Sprintf("finished importing %s (%d entries from %d scripts)", spec.Name, result.Entries, result.Files))
	return result
}

// restoreSource rebuilds a stored source from its CAS blobs and publishes it.
func (s *Server) restoreSource(ctx context.Context, src db.Source) error {
	stored, err := s.db.ListSourceFiles(src.ID)
	if err != nil {
		return fmt.Errorf("listing files: %w", err)
	}
	if len(stored) == 0 {
		return fmt.Errorf("no files recorded")
	}

	files := make([]searchdata.File, len(stored))
	for i, f := range stored {
		if !cas.Has(f.ContentHash) {
			return fmt.Errorf("script %s is missing from the store", f.FileName)
		}
		data, err := cas.Read(f.ContentHash)
		if err != nil {
			return fmt.Errorf("reading %s: %w", f.FileName, err)
		}
		files[i] = searchdata.File{Name: f.FileName, Data: data}
	}

	table, err := searchdata.Build(ctx, files)
	if err != nil {
		return err
	}
	if err := s.catalog.Publish(src.Name, table, src.BaseURL); err != nil {
		return err
	}
	log.Printf("daemon: restored %s (%d entries)", src.Name, table.Len())
	return nil
}

// collectFiles reads every path in order. A path is an http(s) URL of a
// script, a search/ directory, or a single script on disk.
func collectFiles(ctx context.Context, paths []string) ([]searchdata.File, error) {
	var files []searchdata.File
	for _, p := range paths {
		if isURL(p) {
			f, err := searchdata.Fetch(ctx, p)
			if err != nil {
				return nil, err
			}
			files = append(files, f)
			continue
		}

		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			dirFiles, err := searchdata.ReadDir(p)
			if err != nil {
				return nil, err
			}
			files = append(files, dirFiles...)
			continue
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, searchdata.File{Name: filepath.Base(p), Data: data})
	}
	return files, nil
}

func isURL(p string) bool {
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

// AbsPaths makes every local path absolute. URLs pass through.
func AbsPaths(paths []string) ([]string, error) {
	out := make([]string, len(paths))
	for i, p := range paths {
		if isURL(p) {
			out[i] = p
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		out[i] = abs
	}
	return out, nil
}

// defaultBaseURL derives a base URL from the first import path so relative
// anchors resolve to the generated HTML next to the search/ directory.
func defaultBaseURL(p string) string {
	if isURL(p) {
		return p
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return ""
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		u.Path += "/"
	}
	return u.String()
}
