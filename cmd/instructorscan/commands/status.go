package commands

import (
	"os"

	"instructorscan-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var statusEmail *bool

func init() {
	statusEmail = statusCmd.Flags().Bool(
		"email", false, "Send the status summary as an email instead of printing it.")
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status [--email]",
	Short: "Prints the tracked instructors and their free slot counts.",
	Run: func(cmd *cobra.Command, args []string) {
		rt, err := buildRuntime()
		if err != nil {
			serviceutil.Fatal("failed to initialize", err)
		}
		defer rt.Close()

		if *statusEmail {
			err := rt.service.SendStatusEmail(cmd.Context())
			if err != nil {
				serviceutil.Fatal("failed to send status email", err)
			}
			return
		}

		statuses, err := rt.service.Status(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to retrieve snapshots", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Instructor", "Free slots"})
		for _, st := range statuses {
			t.AppendRow(table.Row{st.Instructor, st.FreeSlots})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
