package main

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/karttaio/kartta/scheduler"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Refresh the configured accounts on an interval and serve metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if len(a.cfg.Accounts) == 0 {
			return errors.New("daemon mode needs at least one account in the config file")
		}

		sched := scheduler.New(a.svc, a.cfg)
		return sched.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
