// Command mellow is the CLI entry point: build, config, fetch, format, and
// genbuild subcommands wired around internal/normalize, internal/taskbuild,
// and internal/taskmgr. Grounded on the teacher's cmd/turbo layout, adapted
// to cobra/pflag since this module carries no mitchellh/cli dependency.
package main

import (
	"fmt"
	"os"

	"github.com/bec-ca/mellow/internal/ui"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(ui.ErrWriter(ui.GetColorModeFromEnv()), ui.ERROR_PREFIX, err)
		os.Exit(1)
	}
}
