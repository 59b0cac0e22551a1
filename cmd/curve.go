package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/fixedincome/marketdata/internal/model"
)

var (
	curveDate   string
	curveTenor  string
	curveRegion string
)

var curveCmd = &cobra.Command{
	Use:   "curve",
	Short: "Resolve a yield curve and print it as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initService(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if curveTenor != "" {
			yield := env.Resolver.YieldForTenor(ctx, curveTenor, curveRegion)
			return printJSON(map[string]string{
				"tenor": curveTenor,
				"yield": yield.String(),
			})
		}

		snap := model.YieldCurveSnapshot{}
		if curveDate != "" {
			date, err := time.Parse(model.DateFormat, curveDate)
			if err != nil {
				return eris.Wrapf(err, "parse date %q", curveDate)
			}
			snap, err = env.Resolver.HistoricalYieldCurve(ctx, date)
			if err != nil {
				return err
			}
		} else {
			snap, err = env.Resolver.LatestYieldCurve(ctx)
			if err != nil {
				return err
			}
		}
		return printJSON(snap)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	curveCmd.Flags().StringVar(&curveDate, "date", "", "historical date (YYYY-MM-DD, default latest)")
	curveCmd.Flags().StringVar(&curveTenor, "tenor", "", "resolve a single tenor instead of the full curve")
	curveCmd.Flags().StringVar(&curveRegion, "region", "EUR", "region for single-tenor fallback")
	rootCmd.AddCommand(curveCmd)
}
