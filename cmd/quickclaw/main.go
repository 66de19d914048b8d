// Package main is the entry point for the quickclaw CLI.
package main

import (
	"os"

	"github.com/quickclaw/quickclaw/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
