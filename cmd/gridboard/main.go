// Package main is the entry point for the gridboard application.
package main

import (
	"fmt"
	"os"

	"github.com/jwulff/gridboard/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
