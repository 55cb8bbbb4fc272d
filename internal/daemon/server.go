package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jcdickinson/doxsearch/internal/config"
	"github.com/jcdickinson/doxsearch/internal/db"
	md "github.com/jcdickinson/doxsearch/internal/markdown"
	"github.com/jcdickinson/doxsearch/internal/rpc"
	"github.com/jcdickinson/doxsearch/internal/search"
	"github.com/jcdickinson/doxsearch/internal/searchdata"
	"golang.org/x/sync/singleflight"
)

type Server struct {
	db         *db.DB
	catalog    *search.Catalog
	cfg        *config.Config
	socketPath string
	httpServer *http.Server
	listener   net.Listener

	mu         sync.Mutex
	expTimer   *time.Timer
	expiration time.Duration

	importGroup singleflight.Group
}

func NewServer(cfg *config.Config, database *db.DB, socketPath string) *Server {
	expSec := cfg.Daemon.ExpirationSeconds
	if expSec <= 0 {
		expSec = 600
	}

	return &Server{
		db:         database,
		catalog:    search.NewCatalog(),
		cfg:        cfg,
		socketPath: socketPath,
		expiration: time.Duration(expSec) * time.Second,
	}
}

// Load publishes the built-in index and every source recorded in the
// database. Sources that fail to load are logged and skipped.
func (s *Server) Load(ctx context.Context) error {
	if s.cfg.Index.Builtin {
		t, err := searchdata.Builtin()
		if err != nil {
			return fmt.Errorf("loading built-in index: %w", err)
		}
		if err := s.catalog.Publish(searchdata.BuiltinSource, t, ""); err != nil {
			return err
		}
		log.Printf("daemon: published built-in index %s (%d entries)", searchdata.BuiltinSource, t.Len())
	}

	sources, err := s.db.ListSources()
	if err != nil {
		return fmt.Errorf("listing sources: %w", err)
	}
	for _, src := range sources {
		if src.ImportedAt == nil {
			log.Printf("daemon: skipping %s, its last import did not finish", src.Name)
			continue
		}
		if err := s.restoreSource(ctx, src); err != nil {
			log.Printf("daemon: failed to restore %s: %v", src.Name, err)
		}
	}
	return nil
}

func (s *Server) Start(ctx context.Context) error {
	if err := s.Load(ctx); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0755); err != nil {
		return fmt.Errorf("creating socket directory: %w", err)
	}
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("setting socket permissions: %w", err)
	}
	s.listener = listener

	s.httpServer = &http.Server{Handler: s.Handler()}

	s.mu.Lock()
	s.expTimer = time.AfterFunc(s.expiration, s.expire)
	s.mu.Unlock()

	log.Printf("daemon: listening on %s (expires after %s of inactivity)", s.socketPath, s.expiration)

	go s.importConfigured(ctx)

	if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

// Handler returns the daemon's HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /lookup", s.withExpReset(s.handleLookup))
	mux.HandleFunc("POST /list", s.withExpReset(s.handleList))
	mux.HandleFunc("POST /get", s.withExpReset(s.handleGet))
	mux.HandleFunc("POST /import", s.withExpReset(s.handleImport))
	mux.HandleFunc("GET /status", s.withExpReset(s.handleStatus))
	mux.HandleFunc("POST /remove", s.withExpReset(s.handleRemove))
	mux.HandleFunc("POST /shutdown", s.handleShutdown)
	return mux
}

func (s *Server) Stop(ctx context.Context) error {
	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("daemon: shutdown error: %v", err)
			errs = append(errs, err)
		}
	}
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Printf("daemon: listener close error: %v", err)
			errs = append(errs, err)
		}
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		log.Printf("daemon: socket remove error: %v", err)
		errs = append(errs, err)
	}
	if err := s.db.Close(); err != nil {
		log.Printf("daemon: db close error: %v", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Server) expire() {
	log.Printf("daemon: expiring due to inactivity")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)
	os.Exit(0)
}

func (s *Server) resetExpiration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expTimer != nil {
		s.expTimer.Stop()
		s.expTimer.Reset(s.expiration)
	}
}

func (s *Server) withExpReset(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.resetExpiration()
		handler(w, r)
	}
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	var req rpc.LookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// 0 takes the configured default, negative means unlimited
	limit := req.Limit
	if limit == 0 {
		limit = s.cfg.Lookup.Limit
	}

	results, truncated, err := s.catalog.Lookup(req.Query, req.Sources, limit)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	s.touchSources(results)
	writeJSON(w, http.StatusOK, rpc.LookupResponse{Results: results, Truncated: truncated})
}

func (s *Server) touchSources(results []rpc.SymbolResult) {
	seen := make(map[string]bool)
	for _, r := range results {
		if seen[r.Source] {
			continue
		}
		seen[r.Source] = true
		if err := s.db.TouchSource(r.Source); err != nil {
			log.Printf("daemon: failed to touch %s: %v", r.Source, err)
		}
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	var req rpc.ListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Source == "" {
		writeError(w, http.StatusBadRequest, "missing source")
		return
	}

	results, err := s.catalog.List(req.Source)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rpc.LookupResponse{Results: results})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	var req rpc.GetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, base, err := s.catalog.Get(req.Source, req.Key)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if len(entries) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("key %q not found in %s", req.Key, req.Source))
		return
	}

	text := md.ResolveLinks(md.RenderEntries(entries), base)
	text = md.AddFrontMatter(text, map[string]string{
		"source": req.Source,
		"key":    req.Key,
	})
	writeJSON(w, http.StatusOK, rpc.GetResponse{Markdown: text})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stored, err := s.db.ListSources()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	byName := make(map[string]db.Source, len(stored))
	for _, src := range stored {
		byName[src.Name] = src
	}

	status := make([]rpc.SourceStatus, 0, len(stored)+1)
	for _, info := range s.catalog.Sources() {
		st := rpc.SourceStatus{Name: info.Name, BaseURL: info.BaseURL, Entries: info.Entries, Loaded: true}
		if src, ok := byName[info.Name]; ok {
			fillStored(&st, src)
			delete(byName, info.Name)
		} else if info.Name == searchdata.BuiltinSource {
			st.Origin = "built-in"
		}
		status = append(status, st)
	}
	for _, src := range stored {
		if _, ok := byName[src.Name]; !ok {
			continue
		}
		st := rpc.SourceStatus{Name: src.Name, BaseURL: src.BaseURL, Entries: src.Entries}
		fillStored(&st, src)
		status = append(status, st)
	}

	total, err := s.db.CountEntries()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rpc.StatusResponse{Sources: status, StoredEntries: total})
}

func fillStored(st *rpc.SourceStatus, src db.Source) {
	st.Origin = src.Origin
	if src.ImportedAt != nil {
		st.ImportedAt = src.ImportedAt.Format(time.RFC3339)
	}
	st.LastUsedAt = src.LastUsedAt.Format(time.RFC3339)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	var req rpc.RemoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == searchdata.BuiltinSource {
		writeError(w, http.StatusBadRequest, "the built-in index cannot be removed; set index.builtin = false instead")
		return
	}

	deleted, err := s.db.DeleteSource(req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	removed := s.catalog.Remove(req.Name)
	if !deleted && !removed {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown source %q", req.Name))
		return
	}

	log.Printf("daemon: removed source %s", req.Name)
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "shutting down"})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Stop(ctx)
		os.Exit(0)
	}()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
