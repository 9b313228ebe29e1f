// Package main is the carddash binary: the dashboard server plus offline
// tools over the same card collection.
package main

import (
	"fmt"
	"os"

	"carddash/cmd/carddash/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
