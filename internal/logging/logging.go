// Package logging constructs the single hclog.Logger shared by every
// long-lived component, the way the teacher's internal/process.Manager
// takes a logger at construction rather than reaching for a global.
package logging

import (
	"os"

	"github.com/hashicorp/go-hclog"
)

// New builds the root logger for a mellow invocation. verbose raises the
// level from Warn to Debug, matching a CLI's -v flag.
func New(verbose bool) hclog.Logger {
	level := hclog.Warn
	if verbose {
		level = hclog.Debug
	}
	if envLevel := os.Getenv("MELLOW_LOG"); envLevel != "" {
		level = hclog.LevelFromString(envLevel)
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:  "mellow",
		Level: level,
		Color: hclog.AutoColor,
	})
}
