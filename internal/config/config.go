package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// SourceConfig is a Doxygen search index imported when the daemon starts.
// Path is a search/ directory, a single script, or an http(s) URL.
type SourceConfig struct {
	Name    string `mapstructure:"name"`
	Path    string `mapstructure:"path"`
	BaseURL string `mapstructure:"base_url"`
}

type IndexConfig struct {
	Builtin bool           `mapstructure:"builtin"`
	Sources []SourceConfig `mapstructure:"sources"`
}

type LookupConfig struct {
	Limit int `mapstructure:"limit"`
}

type DaemonConfig struct {
	ExpirationSeconds int `mapstructure:"expiration_seconds"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// SlogLevel parses Level ("debug", "info", "warn", "error"), falling back
// to info.
func (c LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

type Config struct {
	Index  IndexConfig  `mapstructure:"index"`
	Lookup LookupConfig `mapstructure:"lookup"`
	Daemon DaemonConfig `mapstructure:"daemon"`
	Log    LogConfig    `mapstructure:"log"`
}

// cacheBase returns the base cache directory for doxsearch.
// Checks XDG_CACHE_HOME, then ~/.cache, then /tmp/doxsearch as fallback.
func cacheBase() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "doxsearch")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "doxsearch")
	}
	return filepath.Join(os.TempDir(), "doxsearch")
}

// DBPath returns the path to the DuckDB database file.
func DBPath() string {
	return filepath.Join(cacheBase(), "sources.db")
}

// CASDir returns the path to the content-addressable storage directory.
func CASDir() string {
	return filepath.Join(cacheBase(), "cas")
}

// LogPath returns the path to the daemon's log file.
func LogPath() string {
	return filepath.Join(cacheBase(), "daemon.log")
}

// SocketPath returns the path to the daemon's unix socket.
func SocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "doxsearch", "daemon.sock")
	}
	return filepath.Join(fmt.Sprintf("/run/user/%d", os.Getuid()), "doxsearch", "daemon.sock")
}

func InitializeViper(v *viper.Viper) error {
	v.SetConfigName("config")
	v.SetConfigType("toml")

	v.AddConfigPath(".")
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		v.AddConfigPath(filepath.Join(xdg, "doxsearch"))
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "doxsearch"))
	}

	v.SetDefault("index.builtin", true)
	v.SetDefault("lookup.limit", 50)
	v.SetDefault("daemon.expiration_seconds", 600)
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix("DOXSEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// stringToSourceConfigHookFunc lets a source be written as a bare path;
// the name then defaults to the path's base name.
func stringToSourceConfigHookFunc() mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf(SourceConfig{}) {
			return data, nil
		}
		if f.Kind() == reflect.String {
			p := data.(string)
			return SourceConfig{Name: sourceNameFromPath(p), Path: p}, nil
		}
		return data, nil
	}
}

func sourceNameFromPath(p string) string {
	p = strings.TrimRight(p, "/")
	if strings.HasSuffix(p, ".js") {
		p = filepath.Dir(p)
	}
	if filepath.Base(p) == "search" {
		p = filepath.Dir(p)
	}
	if filepath.Base(p) == "html" {
		p = filepath.Dir(p)
	}
	return strings.ToLower(filepath.Base(p))
}

func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads configuration through v. Tests pass a fresh viper.New().
func LoadFrom(v *viper.Viper) (*Config, error) {
	if err := InitializeViper(v); err != nil {
		return nil, err
	}

	var config Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       stringToSourceConfigHookFunc(),
		WeaklyTypedInput: true,
		Result:           &config,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var configDir string
	if f := v.ConfigFileUsed(); f != "" {
		if abs, err := filepath.Abs(f); err == nil {
			configDir = filepath.Dir(abs)
		}
	}
	if err := validateSources(config.Index.Sources, configDir); err != nil {
		return nil, err
	}

	return &config, nil
}

// validateSources fills in names and expands paths. Relative local paths
// are taken relative to configDir, the directory of the config file.
func validateSources(sources []SourceConfig, configDir string) error {
	seen := make(map[string]bool, len(sources))
	for i := range sources {
		s := &sources[i]
		if s.Path == "" {
			return fmt.Errorf("index.sources[%d]: missing path", i)
		}
		if s.Name == "" {
			s.Name = sourceNameFromPath(s.Path)
		}
		if strings.HasPrefix(s.Path, "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				s.Path = filepath.Join(home, s.Path[2:])
			}
		}
		if configDir != "" && !isURL(s.Path) && !filepath.IsAbs(s.Path) {
			s.Path = filepath.Join(configDir, s.Path)
		}
		if seen[s.Name] {
			return fmt.Errorf("index.sources[%d]: duplicate source name %q", i, s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

func isURL(p string) bool {
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}
