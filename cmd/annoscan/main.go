// Package main provides the entry point for the annoscan CLI tool.
package main

import (
	"errors"
	"os"

	"github.com/fatih/color"

	"github.com/Sumatoshi-tech/annoscan/cmd/annoscan/commands"
	"github.com/Sumatoshi-tech/annoscan/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	err := commands.NewRootCommand().Execute()
	if err == nil {
		return
	}

	var exitErr *commands.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}

	color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
