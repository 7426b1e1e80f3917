package commands

import (
	"context"
	"fmt"
	"log/slog"

	"instructorscan-backend/lib/serviceutil"
	"instructorscan-backend/lib/telemetry"
	"instructorscan-backend/lib/timezone"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(daemonCmd)
}

type cronLogger struct{}

func (l cronLogger) attrs(keysAndValues []any) []any {
	out := make([]any, 0, len(keysAndValues))
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out = append(out, fmt.Sprint(keysAndValues[i]), keysAndValues[i+1])
	}
	return out
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Info(fmt.Sprintf("cron: %s", msg), l.attrs(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error(
		fmt.Sprintf("cron: %s", msg),
		append([]any{"err", err}, l.attrs(keysAndValues)...)...,
	)
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Schedules scans and the daily status email until interrupted.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		t, err := telemetry.SetupFromEnv(ctx, "instructorscan")
		if err != nil {
			serviceutil.Fatal("failed to setup telemetry", err)
		}
		defer t.Shutdown(context.Background())
		telemetry.InstrumentPerfStats(ctx)

		rt, err := buildRuntime()
		if err != nil {
			serviceutil.Fatal("failed to initialize", err)
		}
		defer rt.Close()

		logger := cronLogger{}
		cronner := cron.New(
			cron.WithLocation(timezone.Location),
			cron.WithLogger(logger),
			cron.WithChain(cron.SkipIfStillRunning(logger)),
		)

		for _, spec := range rt.config.Schedules.Scans {
			_, err := cronner.AddFunc(spec, func() {
				// sessions go stale between runs, start each scan fresh
				err := rt.client.Reset()
				if err != nil {
					slog.ErrorContext(ctx, "failed to reset session", "err", err)
					return
				}
				err = rt.service.Scan(ctx)
				if err != nil {
					slog.ErrorContext(ctx, "scan failed", "err", err)
				}
			})
			if err != nil {
				serviceutil.Fatal("failed to schedule scan", err)
			}
		}

		_, err = cronner.AddFunc(rt.config.Schedules.Status, func() {
			err := rt.service.SendStatusEmail(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "failed to send status email", "err", err)
			}
		})
		if err != nil {
			serviceutil.Fatal("failed to schedule status email", err)
		}

		slog.InfoContext(ctx, "daemon started",
			"scans", rt.config.Schedules.Scans,
			"status", rt.config.Schedules.Status)
		cronner.Start()

		<-ctx.Done()
		<-cronner.Stop().Done()
	},
}
