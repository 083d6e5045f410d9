package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run a single reconciliation pass over stuck orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newPaymentsApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.reconciler().RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			logger.Info("reconciliation finished",
				zap.Int("scanned", report.Scanned),
				zap.Int("confirmed", report.Confirmed),
				zap.Int("cancelled", report.Cancelled),
				zap.Int("skipped", report.Skipped),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d confirmed=%d cancelled=%d skipped=%d\n",
				report.Scanned, report.Confirmed, report.Cancelled, report.Skipped)
			return nil
		},
	}
}
