package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up in the working directory and
// under the user config dir.
const FileName = ".kind2run.yaml"

// Constants for default values.
const (
	DefaultBinary       = "kind2"
	DefaultPollInterval = 100 * time.Millisecond
	DefaultKillTimeout  = 2 * time.Second
	DefaultTheme        = "default"
	DefaultFormat       = "auto"
	DefaultHistoryFile  = "history.db"
)

// FileConfig is the shape of .kind2run.yaml. Pointer fields distinguish an
// absent key from its zero value.
type FileConfig struct {
	Binary       *string        `yaml:"binary,omitempty"`
	Timeout      *float64       `yaml:"timeout,omitempty"` // seconds, passed to the analyzer
	PollInterval *time.Duration `yaml:"poll_interval,omitempty"`
	KillTimeout  *time.Duration `yaml:"kill_timeout,omitempty"`
	Theme        *string        `yaml:"theme,omitempty"`
	Format       *string        `yaml:"format,omitempty"`
	NoColor      *bool          `yaml:"no_color,omitempty"`
	Debug        *bool          `yaml:"debug,omitempty"`
	HistoryDB    *string        `yaml:"history_db,omitempty"`
	MetricsAddr  *string        `yaml:"metrics_addr,omitempty"`
	ExtraArgs    []string       `yaml:"extra_args,omitempty"`
}

// LoadFile reads and decodes a configuration file. Unknown keys are rejected.
func LoadFile(path string) (*FileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg FileConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		// An empty file decodes to io.EOF and means "no overrides".
		if errors.Is(err, io.EOF) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// FindFile returns the configuration file that applies in dir: dir itself
// first, then configDir/kind2run. It returns "" when neither exists.
func FindFile(dir, configDir string) string {
	local := filepath.Join(dir, FileName)
	if _, err := os.Stat(local); err == nil {
		return local
	}
	if configDir == "" || configDir == "/" {
		return ""
	}
	user := filepath.Join(configDir, "kind2run", FileName)
	if _, err := os.Stat(user); err == nil {
		return user
	}
	return ""
}

// DefaultHistoryDB is the history database path under the user cache dir,
// falling back to the working directory.
func DefaultHistoryDB() string {
	if dir, err := os.UserCacheDir(); err == nil && dir != "" {
		return filepath.Join(dir, "kind2run", DefaultHistoryFile)
	}
	return DefaultHistoryFile
}
