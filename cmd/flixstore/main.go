// Command flixstore is the StreamFlix persistence store CLI.
package main

import (
	"os"

	"github.com/streamflix/flixstore/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
