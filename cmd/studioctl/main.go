// Package main is the operator CLI: credential management, style and plan inspection, and offline
// export of saved session snapshots.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"eagle-studio/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "studioctl",
	Short:         "Eagle studio operator tool",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
