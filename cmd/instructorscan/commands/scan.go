package commands

import (
	"context"

	"instructorscan-backend/lib/serviceutil"
	"instructorscan-backend/lib/telemetry"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(scanCmd)
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Runs one scan cycle and emails any newly free slots.",
	Run: func(cmd *cobra.Command, args []string) {
		t, err := telemetry.SetupFromEnv(cmd.Context(), "instructorscan")
		if err != nil {
			serviceutil.Fatal("failed to setup telemetry", err)
		}
		defer t.Shutdown(context.Background())

		rt, err := buildRuntime()
		if err != nil {
			serviceutil.Fatal("failed to initialize", err)
		}
		defer rt.Close()

		err = rt.service.Scan(cmd.Context())
		if err != nil {
			serviceutil.Fatal("scan failed", err)
		}
	},
}
