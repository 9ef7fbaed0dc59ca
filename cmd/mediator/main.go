// Package main is the entry point for the mediator binary.
package main

import (
	"os"

	"github.com/eldersfive/mediator/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
