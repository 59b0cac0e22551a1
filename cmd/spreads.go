package main

import (
	"github.com/spf13/cobra"
)

var spreadsSector string

var spreadsCmd = &cobra.Command{
	Use:   "spreads",
	Short: "Resolve credit spreads by rating and print them as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initService(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if spreadsSector != "" {
			m, err := env.Resolver.SectorCreditData(ctx, spreadsSector)
			if err != nil {
				return err
			}
			return printJSON(m)
		}

		m, err := env.Resolver.CreditSpreads(ctx)
		if err != nil {
			return err
		}
		return printJSON(m)
	},
}

func init() {
	spreadsCmd.Flags().StringVar(&spreadsSector, "sector", "", "apply a sector adjustment (e.g. TECH, ENERGY)")
	rootCmd.AddCommand(spreadsCmd)
}
