package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/store"
)

var offersFile string

var offersCmd = &cobra.Command{
	Use:   "offers",
	Short: "Manage product offers",
}

var offersImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Create or update offers from a YAML file",
	Long:  "Reads a YAML list of offers. Entries with an id update that offer; entries without one are created.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		offers, err := loadOffers(offersFile)
		if err != nil {
			return err
		}

		st, err := openStore(ctx, "offers")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		saved := make([]model.Offer, 0, len(offers))
		for _, o := range offers {
			got, err := saveOffer(cmd, st, o)
			if err != nil {
				return eris.Wrapf(err, "save offer %q", o.Name)
			}
			saved = append(saved, *got)
		}

		zap.L().Info("offers imported", zap.String("file", offersFile), zap.Int("count", len(saved)))
		return printJSON(cmd.OutOrStdout(), saved)
	},
}

var offersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List offers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "offers")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		offers, err := st.ListOffers(ctx)
		if err != nil {
			return err
		}
		if offers == nil {
			offers = []model.Offer{}
		}
		return printJSON(cmd.OutOrStdout(), offers)
	},
}

func loadOffers(path string) ([]model.Offer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read offers file")
	}
	var doc struct {
		Offers []model.Offer `yaml:"offers"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "parse offers file")
	}
	if len(doc.Offers) == 0 {
		return nil, eris.Errorf("no offers found in %s", path)
	}
	return doc.Offers, nil
}

func saveOffer(cmd *cobra.Command, st store.Store, o model.Offer) (*model.Offer, error) {
	if o.ID == "" {
		return st.CreateOffer(cmd.Context(), o)
	}
	return st.UpdateOffer(cmd.Context(), o)
}

func init() {
	offersImportCmd.Flags().StringVar(&offersFile, "file", "", "path to offers YAML (required)")
	_ = offersImportCmd.MarkFlagRequired("file")
	offersCmd.AddCommand(offersImportCmd, offersListCmd)
	rootCmd.AddCommand(offersCmd)
}
