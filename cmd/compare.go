package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"dupfinder/imageprocessor"
	"dupfinder/similarity"
	"dupfinder/types"
	"dupfinder/utils"
)

var compareCmd = &cobra.Command{
	Use:   "compare <image-a> <image-b>",
	Short: "Score a single pair of images with both algorithms",
	Long: `Compare two images with the histogram and the feature algorithm and show
each score next to the threshold of the tuning profile.

Examples:
  dupfinder compare a.jpg b.jpg
  dupfinder compare a.jpg b.jpg --tuning gen1 --json`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().String("tuning", "", "Tuning profile (default: the profile file's default)")
	compareCmd.Flags().Bool("json", false, "Output as JSON")
}

// PairScore is the result of one algorithm for the compared pair
type PairScore struct {
	Algorithm  string  `json:"algorithm"`
	Similarity float64 `json:"similarity"`
	Threshold  float64 `json:"threshold"`
	Duplicate  bool    `json:"duplicate"`
	ElapsedMs  int64   `json:"elapsed_ms"`
	Error      string  `json:"error,omitempty"`
}

func scorePair(tuning similarity.Tuning, a, b string) ([]PairScore, error) {
	var scores []PairScore
	for _, kind := range []similarity.Kind{similarity.Histogram, similarity.Feature} {
		alg, err := similarity.New(kind, tuning, nil, 4)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		sim, err := similarity.Compare(alg, types.NewFileRecord(a), types.NewFileRecord(b))
		score := PairScore{
			Algorithm:  kind.String(),
			Similarity: sim,
			Threshold:  alg.MinSimilarity(),
			ElapsedMs:  time.Since(start).Milliseconds(),
		}
		switch {
		case errors.Is(err, similarity.ErrNoFeatures):
			score.Error = "no usable features"
		case err != nil:
			score.Error = err.Error()
		default:
			score.Duplicate = sim >= score.Threshold
		}
		scores = append(scores, score)
	}
	return scores, nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	for _, p := range args {
		if !imageprocessor.IsImageFile(p) {
			return fmt.Errorf("%s is not a supported image (%v)", p, imageprocessor.GetSupportedExtensions())
		}
	}

	tuning, err := loadTuning(cmd)
	if err != nil {
		return err
	}
	scores, err := scorePair(tuning, args[0], args[1])
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return writeJSON(os.Stdout, scores)
	}

	fmt.Printf("Tuning: %s\n\n", tuning.Name)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ALGORITHM\tSIMILARITY\tTHRESHOLD\tDUPLICATE\tTIME")
	fmt.Fprintln(w, "---------\t----------\t---------\t---------\t----")
	for _, s := range scores {
		result := "no"
		if s.Duplicate {
			result = "yes"
		}
		if s.Error != "" {
			result = "error: " + s.Error
		}
		fmt.Fprintf(w, "%s\t%.2f%%\t%.2f%%\t%s\t%s\n", s.Algorithm, s.Similarity*100, s.Threshold*100,
			result, utils.FormatElapsed(time.Duration(s.ElapsedMs)*time.Millisecond))
	}
	return w.Flush()
}
