package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func isolated(t *testing.T) Options {
	t.Helper()
	return Options{Dir: t.TempDir(), ConfigDir: t.TempDir(), Getenv: env(nil)}
}

func TestFindFile_PrefersLocalOverUserConfig(t *testing.T) {
	t.Parallel()

	dir, configDir := t.TempDir(), t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(configDir, "kind2run"), 0o755))
	user := writeConfig(t, filepath.Join(configDir, "kind2run"), "theme: orca\n")
	assert.Equal(t, user, FindFile(dir, configDir))

	local := writeConfig(t, dir, "theme: mono\n")
	assert.Equal(t, local, FindFile(dir, configDir))
}

func TestFindFile_ReturnsEmpty_When_NoConfigAvailable(t *testing.T) {
	t.Parallel()

	assert.Empty(t, FindFile(t.TempDir(), t.TempDir()))
	assert.Empty(t, FindFile(t.TempDir(), "/"))
}

func TestResolve_DefaultsWhenNothingSet(t *testing.T) {
	t.Parallel()

	r, err := Resolve(CliFlags{}, isolated(t))
	require.NoError(t, err)

	assert.Equal(t, DefaultBinary, r.Binary)
	assert.Zero(t, r.Timeout)
	assert.Equal(t, DefaultPollInterval, r.PollInterval)
	assert.Equal(t, DefaultKillTimeout, r.KillTimeout)
	assert.Equal(t, DefaultTheme, r.Theme)
	assert.Equal(t, DefaultFormat, r.Format)
	assert.Empty(t, r.File)
	for key, src := range r.Sources {
		assert.Equal(t, SourceDefault, src, key)
	}
}

func TestResolve_FileValues(t *testing.T) {
	t.Parallel()

	opts := isolated(t)
	path := writeConfig(t, opts.Dir, `
binary: /opt/kind2
timeout: 30
poll_interval: 50ms
kill_timeout: 5s
theme: orca
format: plain
no_color: true
history_db: runs.db
metrics_addr: 127.0.0.1:9108
extra_args: [--modular, "true"]
`)

	r, err := Resolve(CliFlags{}, opts)
	require.NoError(t, err)

	assert.Equal(t, path, r.File)
	assert.Equal(t, "/opt/kind2", r.Binary)
	assert.InDelta(t, 30.0, r.Timeout, 1e-9)
	assert.Equal(t, 50*time.Millisecond, r.PollInterval)
	assert.Equal(t, 5*time.Second, r.KillTimeout)
	assert.Equal(t, "orca", r.Theme)
	assert.Equal(t, "plain", r.Format)
	assert.True(t, r.NoColor)
	assert.Equal(t, "runs.db", r.HistoryDB)
	assert.Equal(t, "127.0.0.1:9108", r.MetricsAddr)
	assert.Equal(t, []string{"--modular", "true"}, r.ExtraArgs)
	assert.Equal(t, SourceFile, r.Sources["binary"])
	assert.Equal(t, SourceDefault, r.Sources["debug"])
}

func TestResolve_PrecedenceCLIOverEnvOverFile(t *testing.T) {
	t.Parallel()

	opts := isolated(t)
	writeConfig(t, opts.Dir, "binary: from-file\ntheme: orca\ntimeout: 10\n")
	opts.Getenv = env(map[string]string{
		"KIND2RUN_BINARY":  "from-env",
		"KIND2RUN_TIMEOUT": "20",
	})

	r, err := Resolve(CliFlags{Binary: "from-cli", BinarySet: true}, opts)
	require.NoError(t, err)

	assert.Equal(t, "from-cli", r.Binary)
	assert.Equal(t, SourceCLI, r.Sources["binary"])
	assert.InDelta(t, 20.0, r.Timeout, 1e-9)
	assert.Equal(t, SourceEnv, r.Sources["timeout"])
	assert.Equal(t, "orca", r.Theme)
	assert.Equal(t, SourceFile, r.Sources["theme"])
}

func TestResolve_NoColorEnvironment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		env  map[string]string
		want bool
	}{
		{"NO_COLOR any value", map[string]string{"NO_COLOR": "1"}, true},
		{"own variable wins", map[string]string{"NO_COLOR": "1", "KIND2RUN_NO_COLOR": "false"}, false},
		{"unparseable own variable ignored", map[string]string{"KIND2RUN_NO_COLOR": "maybe"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts := isolated(t)
			opts.Getenv = env(tt.env)
			r, err := Resolve(CliFlags{}, opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.NoColor)
		})
	}
}

func TestResolve_ExplicitFalseFlagOverridesFile(t *testing.T) {
	t.Parallel()

	opts := isolated(t)
	writeConfig(t, opts.Dir, "debug: true\n")

	r, err := Resolve(CliFlags{Debug: false, DebugSet: true}, opts)
	require.NoError(t, err)
	assert.False(t, r.Debug)
	assert.Equal(t, SourceCLI, r.Sources["debug"])
}

func TestResolve_ExplicitConfigFile(t *testing.T) {
	t.Parallel()

	opts := isolated(t)
	writeConfig(t, opts.Dir, "theme: orca\n")
	other := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(other, []byte("theme: mono\n"), 0o600))

	r, err := Resolve(CliFlags{ConfigFile: other}, opts)
	require.NoError(t, err)
	assert.Equal(t, "mono", r.Theme)
	assert.Equal(t, other, r.File)
}

func TestResolve_EmptyFileIsNoOverride(t *testing.T) {
	t.Parallel()

	opts := isolated(t)
	writeConfig(t, opts.Dir, "")
	r, err := Resolve(CliFlags{}, opts)
	require.NoError(t, err)
	assert.Equal(t, DefaultBinary, r.Binary)
}

func TestResolve_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		file  string
		env   map[string]string
		flags CliFlags
		want  string
	}{
		{name: "unknown key", file: "colour: red\n", want: "field colour not found"},
		{name: "bad yaml", file: "binary: [\n", want: "parsing"},
		{name: "bad env timeout", env: map[string]string{"KIND2RUN_TIMEOUT": "soon"}, want: "KIND2RUN_TIMEOUT"},
		{name: "negative timeout", flags: CliFlags{Timeout: -1, TimeoutSet: true}, want: "timeout must not be negative"},
		{name: "unknown theme", flags: CliFlags{Theme: "neon", ThemeSet: true}, want: "invalid theme"},
		{name: "unknown format", flags: CliFlags{Format: "xml", FormatSet: true}, want: "invalid format"},
		{name: "zero poll interval", file: "poll_interval: 0s\n", want: "poll_interval must be positive"},
		{name: "empty binary", flags: CliFlags{BinarySet: true}, want: "binary must not be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts := isolated(t)
			opts.Getenv = env(tt.env)
			if tt.file != "" {
				writeConfig(t, opts.Dir, tt.file)
			}
			_, err := Resolve(tt.flags, opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestArgv(t *testing.T) {
	t.Parallel()

	r := &Resolved{Binary: "kind2"}
	assert.Equal(t, []string{"kind2", "-xml", "-v", "model.lus"}, r.Argv("model.lus"))

	r = &Resolved{Binary: "kind2", Timeout: 1.5, ExtraArgs: []string{"--modular", "true"}}
	assert.Equal(t,
		[]string{"kind2", "-xml", "-v", "--timeout", "1.5", "--modular", "true", "model.lus"},
		r.Argv("model.lus"))
}
