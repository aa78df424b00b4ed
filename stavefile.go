//go:build stave

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yaklabco/stave/pkg/sh"
	"github.com/yaklabco/stave/pkg/st"
)

var Default = Build

var Aliases = map[string]interface{}{
	"b": Build,
	"t": Test,
	"l": Lint,
	"c": Clean,
}

const (
	binaryName = "sentinel"
	mainPkg    = "./cmd/sentinel"
	binDir     = "bin"
)

// Release targets. Drive discovery differs per OS, so each is built to
// catch build-tag mistakes.
var platforms = []struct{ goos, goarch string }{
	{"linux", "amd64"},
	{"linux", "arm64"},
	{"darwin", "arm64"},
	{"windows", "amd64"},
}

// All lints, tests and builds.
func All() error {
	st.Deps(Lint, Test)
	st.Deps(Build)
	return nil
}

// Build compiles bin/sentinel for the host.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating bin directory: %w", err)
	}
	return sh.RunV("go", "build", "-ldflags", ldflags(), "-o", binaryPath("", ""), mainPkg)
}

// Cross builds sentinel for every release platform.
func Cross() error {
	flags := ldflags()
	for _, p := range platforms {
		env := map[string]string{"GOOS": p.goos, "GOARCH": p.goarch, "CGO_ENABLED": "0"}
		out := binaryPath(p.goos, p.goarch)
		if st.Verbose() {
			fmt.Printf("Building %s\n", out)
		}
		if err := sh.RunWithV(env, "go", "build", "-ldflags", flags, "-o", out, mainPkg); err != nil {
			return fmt.Errorf("building %s/%s: %w", p.goos, p.goarch, err)
		}
	}
	return nil
}

// Test runs all tests with race detection and coverage.
func Test() error {
	return sh.RunV("go", "test", "-race", "-cover", "./...")
}

// Short skips the slow write-verify tests.
func Short() error {
	return sh.RunV("go", "test", "-short", "./...")
}

func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	return sh.Rm(binDir + "/")
}

func Tidy() error {
	return sh.RunV("go", "mod", "tidy")
}

func binaryPath(goos, goarch string) string {
	name := binaryName
	if goos != "" {
		name = fmt.Sprintf("%s-%s-%s", binaryName, goos, goarch)
	}
	if goos == "windows" || (goos == "" && os.PathSeparator == '\\') {
		name += ".exe"
	}
	return filepath.Join(binDir, name)
}

// ldflags injects version, commit and build date into cmd/sentinel.
func ldflags() string {
	version, commit := "dev", "unknown"
	if v, err := sh.Output("git", "describe", "--tags", "--always"); err == nil && v != "" {
		version = strings.TrimSpace(v)
	}
	if c, err := sh.Output("git", "rev-parse", "--short", "HEAD"); err == nil && c != "" {
		commit = strings.TrimSpace(c)
	}
	date := time.Now().UTC().Format(time.RFC3339)

	return fmt.Sprintf("-s -w -X main.version=%s -X main.commit=%s -X main.date=%s", version, commit, date)
}
