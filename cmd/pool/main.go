package main

import (
	"os"

	"github.com/wonny/stockpool/cmd/pool/commands"
)

// main is the entry point for the stockpool CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/pool [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
