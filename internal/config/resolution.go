package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"
)

// Source records which layer supplied a resolved value.
type Source string

// Priority order, highest first: CLI flags, environment, file, defaults.
const (
	SourceCLI     Source = "cli"
	SourceEnv     Source = "env"
	SourceFile    Source = "file"
	SourceDefault Source = "default"
)

// Known theme and format names.
var (
	Themes  = []string{"default", "orca", "mono"}
	Formats = []string{"auto", "terminal", "plain", "json"}
)

// CliFlags holds the values of command-line flags.
type CliFlags struct {
	ConfigFile  string
	Binary      string
	Timeout     float64
	Theme       string
	Format      string
	NoColor     bool
	Debug       bool
	HistoryDB   string
	MetricsAddr string

	// Flags to track if they were explicitly set by the user
	BinarySet      bool
	TimeoutSet     bool
	ThemeSet       bool
	FormatSet      bool
	NoColorSet     bool
	DebugSet       bool
	HistoryDBSet   bool
	MetricsAddrSet bool
}

// Options controls where Resolve looks for its lower-priority layers.
type Options struct {
	// Dir is searched for FileName first. Defaults to the working directory.
	Dir string
	// ConfigDir is the user config dir. Defaults to os.UserConfigDir.
	ConfigDir string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Resolved is the final configuration after applying all priority rules.
type Resolved struct {
	Binary string
	// Timeout is the analyzer's own timeout in seconds; 0 passes none.
	Timeout      float64
	PollInterval time.Duration
	KillTimeout  time.Duration
	Theme        string
	Format       string
	NoColor      bool
	Debug        bool
	HistoryDB    string
	MetricsAddr  string
	ExtraArgs    []string

	// File is the configuration file that was read, if any.
	File string
	// Sources maps each yaml key to the layer that set it.
	Sources map[string]Source
}

// Resolve builds the configuration from defaults, the config file, the
// environment and flags, in increasing priority.
func Resolve(flags CliFlags, opts Options) (*Resolved, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.ConfigDir == "" {
		opts.ConfigDir, _ = os.UserConfigDir()
	}

	r := &Resolved{
		Binary:       DefaultBinary,
		PollInterval: DefaultPollInterval,
		KillTimeout:  DefaultKillTimeout,
		Theme:        DefaultTheme,
		Format:       DefaultFormat,
		HistoryDB:    DefaultHistoryDB(),
		Sources:      make(map[string]Source),
	}
	for _, key := range []string{
		"binary", "timeout", "poll_interval", "kill_timeout", "theme", "format",
		"no_color", "debug", "history_db", "metrics_addr", "extra_args",
	} {
		r.Sources[key] = SourceDefault
	}

	path := flags.ConfigFile
	if path == "" {
		path = FindFile(opts.Dir, opts.ConfigDir)
	}
	if path != "" {
		fc, err := LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		r.File = path
		r.applyFile(fc)
	}

	if err := r.applyEnv(getenv); err != nil {
		return nil, err
	}
	r.applyFlags(flags)

	if err := r.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return r, nil
}

func (r *Resolved) applyFile(fc *FileConfig) {
	set := func(key string) { r.Sources[key] = SourceFile }
	if fc.Binary != nil {
		r.Binary = *fc.Binary
		set("binary")
	}
	if fc.Timeout != nil {
		r.Timeout = *fc.Timeout
		set("timeout")
	}
	if fc.PollInterval != nil {
		r.PollInterval = *fc.PollInterval
		set("poll_interval")
	}
	if fc.KillTimeout != nil {
		r.KillTimeout = *fc.KillTimeout
		set("kill_timeout")
	}
	if fc.Theme != nil {
		r.Theme = *fc.Theme
		set("theme")
	}
	if fc.Format != nil {
		r.Format = *fc.Format
		set("format")
	}
	if fc.NoColor != nil {
		r.NoColor = *fc.NoColor
		set("no_color")
	}
	if fc.Debug != nil {
		r.Debug = *fc.Debug
		set("debug")
	}
	if fc.HistoryDB != nil {
		r.HistoryDB = *fc.HistoryDB
		set("history_db")
	}
	if fc.MetricsAddr != nil {
		r.MetricsAddr = *fc.MetricsAddr
		set("metrics_addr")
	}
	if fc.ExtraArgs != nil {
		r.ExtraArgs = slices.Clone(fc.ExtraArgs)
		set("extra_args")
	}
}

func (r *Resolved) applyEnv(getenv func(string) string) error {
	set := func(key string) { r.Sources[key] = SourceEnv }
	if v := getenv("KIND2RUN_BINARY"); v != "" {
		r.Binary = v
		set("binary")
	}
	if v := getenv("KIND2RUN_TIMEOUT"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("KIND2RUN_TIMEOUT: %w", err)
		}
		r.Timeout = t
		set("timeout")
	}
	if v := getenv("KIND2RUN_THEME"); v != "" {
		r.Theme = v
		set("theme")
	}
	if v := getenv("KIND2RUN_HISTORY_DB"); v != "" {
		r.HistoryDB = v
		set("history_db")
	}
	if b := getEnvBool(getenv, "KIND2RUN_NO_COLOR"); b != nil {
		r.NoColor = *b
		set("no_color")
	} else if getenv("NO_COLOR") != "" {
		r.NoColor = true
		set("no_color")
	}
	if getenv("KIND2RUN_DEBUG") != "" {
		r.Debug = true
		set("debug")
	}
	return nil
}

func (r *Resolved) applyFlags(f CliFlags) {
	set := func(key string) { r.Sources[key] = SourceCLI }
	if f.BinarySet {
		r.Binary = f.Binary
		set("binary")
	}
	if f.TimeoutSet {
		r.Timeout = f.Timeout
		set("timeout")
	}
	if f.ThemeSet {
		r.Theme = f.Theme
		set("theme")
	}
	if f.FormatSet {
		r.Format = f.Format
		set("format")
	}
	if f.NoColorSet {
		r.NoColor = f.NoColor
		set("no_color")
	}
	if f.DebugSet {
		r.Debug = f.Debug
		set("debug")
	}
	if f.HistoryDBSet {
		r.HistoryDB = f.HistoryDB
		set("history_db")
	}
	if f.MetricsAddrSet {
		r.MetricsAddr = f.MetricsAddr
		set("metrics_addr")
	}
}

// getEnvBool reads a boolean from environment variables, trying multiple keys.
// Returns nil if none are set to a parseable value.
func getEnvBool(getenv func(string) string, keys ...string) *bool {
	for _, key := range keys {
		if val := getenv(key); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				return &b
			}
		}
	}
	return nil
}

func (r *Resolved) validate() error {
	var errs []error
	if r.Binary == "" {
		errs = append(errs, errors.New("binary must not be empty"))
	}
	if r.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got: %g", r.Timeout))
	}
	if r.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive, got: %s", r.PollInterval))
	}
	if r.KillTimeout <= 0 {
		errs = append(errs, fmt.Errorf("kill_timeout must be positive, got: %s", r.KillTimeout))
	}
	if !slices.Contains(Themes, r.Theme) {
		errs = append(errs, fmt.Errorf("invalid theme: %s (must be one of %v)", r.Theme, Themes))
	}
	if !slices.Contains(Formats, r.Format) {
		errs = append(errs, fmt.Errorf("invalid format: %s (must be one of %v)", r.Format, Formats))
	}
	return errors.Join(errs...)
}

// Argv builds the analyzer command line for file.
func (r *Resolved) Argv(file string) []string {
	argv := []string{r.Binary, "-xml", "-v"}
	if r.Timeout > 0 {
		argv = append(argv, "--timeout", strconv.FormatFloat(r.Timeout, 'f', -1, 64))
	}
	argv = append(argv, r.ExtraArgs...)
	return append(argv, file)
}
