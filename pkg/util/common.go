// Package util provides utility functions for the application.
package util

import (
	"fmt"
	"io"
	"runtime/debug"

	"go.uber.org/zap"
)

// na returns "N/A" if the input string is empty, otherwise it returns the input string.
func na(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}

// BuildInfo carries the values injected with -ldflags at build time.
type BuildInfo struct {
	Version string
	Date    string
	Commit  string
}

// Resolve fills an empty commit from the VCS stamp embedded by the Go toolchain.
func (b BuildInfo) Resolve() BuildInfo {
	if b.Commit != "" {
		return b
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return b
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			b.Commit = s.Value
		}
	}
	return b
}

// Fields renders the build information for a structured log line.
func (b BuildInfo) Fields() []zap.Field {
	return []zap.Field{
		zap.String("version", na(b.Version)),
		zap.String("build_date", na(b.Date)),
		zap.String("commit", na(b.Commit)),
	}
}

// Print writes the build version, date, and commit information to w.
func (b BuildInfo) Print(w io.Writer) {
	fmt.Fprintf(w, "Build version: %s\n", na(b.Version))
	fmt.Fprintf(w, "Build date: %s\n", na(b.Date))
	fmt.Fprintf(w, "Build commit: %s\n", na(b.Commit))
}
