// Package config resolves kind2run settings.
//
// # Configuration Precedence
//
// Values are resolved in the following order (highest to lowest priority):
//
//  1. CLI flags (--binary, --timeout, --theme, --format, --no-color, --debug, ...)
//  2. Environment variables (KIND2RUN_BINARY, KIND2RUN_TIMEOUT, KIND2RUN_THEME,
//     KIND2RUN_HISTORY_DB, KIND2RUN_NO_COLOR or NO_COLOR, KIND2RUN_DEBUG)
//  3. YAML config file (.kind2run.yaml in the working directory, or
//     kind2run/.kind2run.yaml under the user config dir)
//  4. Hardcoded defaults
//
// Resolved.Sources records which layer set each key, so `kind2run run
// --debug` can explain where a surprising value came from.
//
// # File format
//
//	binary: /opt/kind2/bin/kind2
//	timeout: 60          # seconds, forwarded as --timeout
//	poll_interval: 50ms
//	kill_timeout: 5s
//	theme: orca
//	format: auto         # terminal when stdout is a TTY, plain otherwise
//	history_db: ./runs.db
//	metrics_addr: 127.0.0.1:9108
//	extra_args: [--modular, "true"]
package config
