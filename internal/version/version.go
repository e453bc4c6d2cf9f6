// Package version carries build information stamped in by the linker:
//
//	go build -ldflags "-X github.com/dkoosis/kind2run/internal/version.Version=v0.3.0"
package version

// These variables are populated by the Go linker (LDFLAGS) at build time.
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildDate  = "unknown"
)
