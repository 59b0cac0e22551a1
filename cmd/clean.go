package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cleanDays int
	cleanAll  bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete old market data from the durable store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initService(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if cleanAll {
			n, err := env.Resolver.ClearDatabaseData(ctx)
			if err != nil {
				return err
			}
			zap.L().Info("all data deleted", zap.Int64("rows", n))
			return nil
		}

		days := cleanDays
		if days == 0 {
			days = cfg.Retention.DaysToKeep
		}
		n, err := env.Resolver.CleanOldData(ctx, days)
		if err != nil {
			return err
		}
		zap.L().Info("old data deleted", zap.Int("days_kept", days), zap.Int64("rows", n))
		return nil
	},
}

func init() {
	cleanCmd.Flags().IntVar(&cleanDays, "days", 0, "retention window in days (default from config)")
	cleanCmd.Flags().BoolVar(&cleanAll, "all", false, "delete every record")
	rootCmd.AddCommand(cleanCmd)
}
