package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/pipeline"
	"github.com/sells-group/leadscore/internal/scorer"
)

var (
	scoreOfferID string
	scoreLimit   int
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a batch of unprocessed leads against an offer",
	Long:  "Claims up to --limit unprocessed leads, scores each against the offer and commits the batch. Interrupting keeps the leads already scored.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, "score")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		oracle, err := scorer.NewOracle(ctx, cfg)
		if err != nil {
			return eris.Wrap(err, "init classifier")
		}

		proc := pipeline.NewProcessor(st, scorer.NewEngine(oracle), cfg.Batch)
		res, err := proc.Run(ctx, model.BatchRequest{OfferID: scoreOfferID, Limit: scoreLimit})
		if err != nil {
			return eris.Wrap(err, "score batch")
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreOfferID, "offer", "", "offer id to score against (required)")
	scoreCmd.Flags().IntVar(&scoreLimit, "limit", 0, "max leads to score (default from config)")
	_ = scoreCmd.MarkFlagRequired("offer")
	rootCmd.AddCommand(scoreCmd)
}
