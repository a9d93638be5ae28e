// Command mandisync hosts the offline-first sync core for the mandi trading
// app and its diagnostics commands.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/mandimitra/go-sync-core/internal/cli"
)

func main() {
	// Optional .env for local development; deployments set the environment
	// directly.
	_ = godotenv.Load()

	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
