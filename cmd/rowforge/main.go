// Package main is the entry point for the rowforge CLI.
package main

import (
	"fmt"
	"os"

	"github.com/rowforge/rowforge/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
