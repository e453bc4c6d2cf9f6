//go:build mage

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	modulePath = "github.com/dkoosis/kind2run"
	binPath    = "bin/kind2run"
)

// Default target - build the binary
var Default = Build

// Build builds the kind2run binary with version information.
func Build() error {
	version, _ := sh.Output("git", "describe", "--tags", "--always", "--dirty", "--match=v*")
	if version == "" {
		version = "dev"
	}
	commit, _ := sh.Output("git", "rev-parse", "--short", "HEAD")
	if commit == "" {
		commit = "unknown"
	}
	date := time.Now().UTC().Format(time.RFC3339)

	ldflags := strings.Join([]string{
		"-s", "-w",
		fmt.Sprintf("-X '%s/internal/version.Version=%s'", modulePath, version),
		fmt.Sprintf("-X '%s/internal/version.CommitHash=%s'", modulePath, commit),
		fmt.Sprintf("-X '%s/internal/version.BuildDate=%s'", modulePath, date),
	}, " ")
	return sh.RunV("go", "build", "-ldflags", ldflags, "-o", binPath, "./cmd/kind2run")
}

// Clean removes build artifacts
func Clean() error {
	if err := os.RemoveAll("bin"); err != nil {
		return err
	}
	return sh.Run("go", "clean", "-testcache")
}

// QA runs formatting, vet, lint and the test suite.
func QA() {
	mg.SerialDeps(Lint.Format, Lint.Vet, Lint.Golangci, Test.Race, Build)
}

// Lint namespace for linting commands
type Lint mg.Namespace

// Format fails when any file needs gofmt.
func (Lint) Format() error {
	out, err := sh.Output("gofmt", "-l", ".")
	if err != nil {
		return err
	}
	if out != "" {
		return fmt.Errorf("files need gofmt:\n%s", out)
	}
	return nil
}

// Vet runs go vet
func (Lint) Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Golangci runs golangci-lint, skipping when it is not installed.
func (Lint) Golangci() error {
	err := sh.RunV("golangci-lint", "run", "--timeout=5m", "./...")
	if err != nil && sh.CmdRan(err) {
		return err
	}
	if err != nil {
		fmt.Println("golangci-lint not found (install: go install github.com/golangci/golangci-lint/cmd/golangci-lint@latest)")
	}
	return nil
}

// Test namespace for testing commands
type Test mg.Namespace

// All runs all tests
func (Test) All() error {
	return sh.RunV("go", "test", "./...")
}

// Race runs tests with race detector
func (Test) Race() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Coverage writes coverage.out and prints the per-function summary.
func (Test) Coverage() error {
	if err := sh.RunV("go", "test", "-coverprofile=coverage.out", "./..."); err != nil {
		return err
	}
	return sh.RunV("go", "tool", "cover", "-func=coverage.out")
}

// Update regenerates golden files.
func (Test) Update() error {
	return sh.RunV("go", "test", "./pkg/render/...", "-update")
}
