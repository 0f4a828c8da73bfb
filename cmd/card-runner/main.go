package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joestump/card-runner/internal/build"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "card-runner",
		Short:   "A business card directory service",
		Long:    "card-runner: publishers post business cards, users browse and favorite them.",
		Version: build.String(),
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newRepairCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
