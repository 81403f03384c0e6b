package main

import (
	"fmt"
	"os"

	"github.com/chiraitori/spoticord/cmd/spoticord/commands"
	"github.com/chiraitori/spoticord/pkg/config"
)

// Build-time variables injected via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if version == "dev" {
		config.DefaultLogLevel = "DEBUG"
	}

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
