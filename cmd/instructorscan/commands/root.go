package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "instructorscan",
	Short: "instructorscan watches a booking site for newly free instructor slots.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&configFile, "config", "config.json5", "The config file to read.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
