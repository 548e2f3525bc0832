package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/fetcher"
	"github.com/sells-group/leadscore/internal/ingest"
)

var (
	ingestCSVPath string
	ingestURL     string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest leads from a CSV file or URL",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		src, source, err := openCSV(cmd)
		if err != nil {
			return err
		}
		defer src.Close() //nolint:errcheck

		st, err := openStore(ctx, "ingest")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := ingest.NewIngestor(st).Ingest(ctx, src)
		if err != nil {
			return eris.Wrap(err, "ingest csv")
		}

		zap.L().Info("ingest complete",
			zap.String("source", source),
			zap.Int("inserted", res.InsertedCount),
			zap.Int("duplicates", res.Duplicates),
			zap.Int("errors", res.Errors),
		)
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func openCSV(cmd *cobra.Command) (io.ReadCloser, string, error) {
	switch {
	case ingestCSVPath != "" && ingestURL != "":
		return nil, "", eris.New("use either --csv or --url, not both")
	case ingestURL != "":
		body, err := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}).Download(cmd.Context(), ingestURL)
		if err != nil {
			return nil, "", eris.Wrap(err, "fetch csv")
		}
		return body, ingestURL, nil
	case ingestCSVPath != "":
		f, err := os.Open(ingestCSVPath)
		if err != nil {
			return nil, "", eris.Wrap(err, "open csv")
		}
		return f, ingestCSVPath, nil
	default:
		return nil, "", eris.New("--csv or --url is required")
	}
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCSVPath, "csv", "", "path to CSV file")
	ingestCmd.Flags().StringVar(&ingestURL, "url", "", "URL of a CSV file to download")
	rootCmd.AddCommand(ingestCmd)
}
