package main

import (
	"fmt"
	"os"

	"github.com/mdddj/blog-new/internal/cli"
	"github.com/mdddj/blog-new/internal/cli/ui"
)

// Set at build time with -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersion(version, commit, date)
	if err := cli.Execute(); err != nil {
		fmt.Fprint(os.Stderr, ui.FormatErr(err))
		os.Exit(1)
	}
}
