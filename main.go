package main

import (
	"fmt"
	"os"

	"azchat/cmd"

	"github.com/joho/godotenv"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	// A local .env can carry the endpoint and API key; missing is fine.
	_ = godotenv.Load()

	cmd.SetVersion(version)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
