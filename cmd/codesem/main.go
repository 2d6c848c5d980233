// Package main provides the entry point for the codesem CLI.
package main

import (
	"os"

	"github.com/llamaha/codesem/cmd/codesem/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
