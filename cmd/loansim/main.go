package main

import (
	"os"

	"github.com/thegator/loansim/cmd/loansim/commands"
)

// main is the entry point for the loansim CLI
// ⭐ unified CLI entry point: go run ./cmd/loansim [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
