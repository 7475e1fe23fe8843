package main

import (
	"os"

	"github.com/wonny/fleetcast/cmd/fleetcast/commands"
)

// main is the entry point for the fleetcast CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/fleetcast [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
