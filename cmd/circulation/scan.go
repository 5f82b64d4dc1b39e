package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"libraflow/internal/circulation"
)

var scanCmd = &cobra.Command{
	Use:       "scan {reminders|expired|overdue}",
	Short:     "Run one periodic scan and exit",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{circulation.JobReminders, circulation.JobExpired, circulation.JobOverdue},
	RunE:      runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	a, cleanup, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	n, err := a.Scheduler.RunOnce(cmd.Context(), args[0])
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows\n", args[0], n)
	return err
}
