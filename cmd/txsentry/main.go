package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/jfields/txsentry/internal/cmd"
)

func main() {
	// Optional; env vars from the shell win over .env entries.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
