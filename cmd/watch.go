package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-check the domain list on an interval",
	Long:  "Runs a check immediately and then every interval until interrupted. The domain list is re-read every cycle.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		interval := watchInterval
		if interval <= 0 {
			interval = time.Duration(cfg.Watch.IntervalSecs) * time.Second
		}
		cfg.Watch.IntervalSecs = int(interval / time.Second)

		env, err := initEnv(ctx, "watch", envOptions{})
		if err != nil {
			return err
		}
		defer env.Close()

		load := func() ([]string, error) { return loadDomains("", nil) }
		if err := env.Runner.Watch(ctx, interval, load); err != nil {
			return err
		}
		zap.L().Info("watch stopped", zap.Int64("notify_failures", env.Runner.NotifyFailures()))
		return nil
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "time between checks (default watch.interval_secs)")
	rootCmd.AddCommand(watchCmd)
}
