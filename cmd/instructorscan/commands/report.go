package commands

import (
	"log/slog"
	"path/filepath"

	"instructorscan-backend/lib/serviceutil"
	"instructorscan-backend/services/instructorscan/report"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Regenerates the slot summary page from the stored snapshots.",
	Run: func(cmd *cobra.Command, args []string) {
		rt, err := buildRuntime()
		if err != nil {
			serviceutil.Fatal("failed to initialize", err)
		}
		defer rt.Close()

		set, err := rt.snapshots.Retrieve(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to retrieve snapshots", err)
		}
		err = report.Publish(cmd.Context(), rt.artifacts, set)
		if err != nil {
			serviceutil.Fatal("failed to publish slot summary", err)
		}

		slog.Info("slot summary written",
			"path", filepath.Join(rt.config.PublicDir, report.FileName),
			"days", len(set))
	},
}
