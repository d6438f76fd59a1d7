package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dupfinder/similarity"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the available tuning profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := similarity.LoadTuningSet(stringOr(cmd, "tuning-file", cfg.Analysis.TuningFile))
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PROFILE\tHISTOGRAM\tFEATURE\tFEATURES\tBLEND")
		fmt.Fprintln(w, "-------\t---------\t-------\t--------\t-----")
		for _, name := range set.Names() {
			p := set.Profiles[name]
			marker := ""
			if name == set.Default {
				marker = " (default)"
			}
			blend := "off"
			if p.Feature.Blend.Enabled {
				blend = fmt.Sprintf("%.2f/%.2f", p.Feature.Blend.FeatureWeight, p.Feature.Blend.HistogramWeight)
			}
			fmt.Fprintf(w, "%s%s\t%.2f @ %dpx\t%.2f @ %dpx\t%d\t%s\n", name, marker,
				p.Histogram.MinSimilarity, p.Histogram.MaxDimension,
				p.Feature.MinSimilarity, p.Feature.MaxDimension, p.Feature.Features, blend)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}
