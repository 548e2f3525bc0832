package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/leadscore/internal/pipeline"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the score distribution report",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "offers")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sum, err := pipeline.NewAggregator(st).Summary(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), sum)
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}
