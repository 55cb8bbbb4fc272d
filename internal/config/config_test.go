package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"
)

func TestCacheBase_XDGSet(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/custom/cache")
	got := cacheBase()
	want := filepath.Join("/custom/cache", "doxsearch")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCacheBase_HomeDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	got := cacheBase()
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home dir")
	}
	want := filepath.Join(home, ".cache", "doxsearch")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCacheBase_TmpFallback(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("HOME", "")
	got := cacheBase()
	// Should use os.TempDir() when HOME is unset
	if !strings.Contains(got, "doxsearch") {
		t.Errorf("expected doxsearch in path, got %q", got)
	}
}

func TestSocketPath_XDGRuntime(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/custom")
	if got, want := SocketPath(), "/run/custom/doxsearch/daemon.sock"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// writeConfig installs body as the config file and returns its directory.
func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "doxsearch"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "doxsearch", "config.toml"), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, "doxsearch")
}

func TestLoadFrom_Defaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := LoadFrom(viper.New())
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Index.Builtin {
		t.Error("builtin index should be enabled by default")
	}
	if cfg.Lookup.Limit != 50 {
		t.Errorf("Lookup.Limit = %d, want 50", cfg.Lookup.Limit)
	}
	if cfg.Daemon.ExpirationSeconds != 600 {
		t.Errorf("Daemon.ExpirationSeconds = %d, want 600", cfg.Daemon.ExpirationSeconds)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
}

func TestLoadFrom_Sources(t *testing.T) {
	writeConfig(t, `
[index]
builtin = false
sources = [
  "/docs/sigma/html/search",
  { name = "eigen", path = "/docs/eigen/search", base_url = "https://eigen.example.org/dox/search/" },
]

[log]
level = "debug"
`)

	cfg, err := LoadFrom(viper.New())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Index.Builtin {
		t.Error("builtin should be disabled")
	}
	want := []SourceConfig{
		{Name: "sigma", Path: "/docs/sigma/html/search"},
		{Name: "eigen", Path: "/docs/eigen/search", BaseURL: "https://eigen.example.org/dox/search/"},
	}
	if diff := cmp.Diff(want, cfg.Index.Sources); diff != "" {
		t.Errorf("sources mismatch (-want +got):\n%s", diff)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoadFrom_RelativeSource(t *testing.T) {
	dir := writeConfig(t, `
[index]
sources = [
  { name = "local", path = "docs/html/search" },
  { name = "remote", path = "https://example.org/dox/search/all_0.js" },
]
`)

	cfg, err := LoadFrom(viper.New())
	if err != nil {
		t.Fatal(err)
	}
	want := []SourceConfig{
		{Name: "local", Path: filepath.Join(dir, "docs", "html", "search")},
		{Name: "remote", Path: "https://example.org/dox/search/all_0.js"},
	}
	if diff := cmp.Diff(want, cfg.Index.Sources); diff != "" {
		t.Errorf("sources mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFrom_EnvOverride(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("DOXSEARCH_LOOKUP_LIMIT", "7")

	cfg, err := LoadFrom(viper.New())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Lookup.Limit != 7 {
		t.Errorf("Lookup.Limit = %d, want 7", cfg.Lookup.Limit)
	}
}

func TestLoadFrom_DuplicateSource(t *testing.T) {
	writeConfig(t, `
[index]
sources = ["/a/sigma/search", "/b/sigma/search"]
`)

	_, err := LoadFrom(viper.New())
	if err == nil || !strings.Contains(err.Error(), "duplicate source name") {
		t.Fatalf("expected duplicate source error, got %v", err)
	}
}

func TestSourceNameFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/docs/SigmaTransform/doc/html/search", "doc"},
		{"/docs/sigma/html/search/", "sigma"},
		{"/docs/eigen/search", "eigen"},
		{"/docs/eigen", "eigen"},
		{"https://example.org/eigen/html/search/all_0.js", "eigen"},
	}
	for _, tt := range tests {
		if got := sourceNameFromPath(tt.path); got != tt.want {
			t.Errorf("sourceNameFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"chatty", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := (LogConfig{Level: tt.level}).SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
