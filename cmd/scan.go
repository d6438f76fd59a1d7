package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"dupfinder/database"
	"dupfinder/logging"
	"dupfinder/metrics"
	"dupfinder/scanner"
	"dupfinder/signalhandler"
	"dupfinder/similarity"
	"dupfinder/types"
	"dupfinder/utils"
)

var scanCmd = &cobra.Command{
	Use:   "scan <directory>",
	Short: "Find duplicate images in a directory",
	Long: `Scan a directory for images and compare every image with every other one.

Each file is taken as reference in turn and compared in parallel against the
other files. Pairs scoring at or above the threshold of the selected tuning
profile are reported as duplicates. Press Ctrl+C once to stop after the
running comparisons and print what was found so far.

Examples:
  # Fast colour histogram scan of a folder and its subfolders
  dupfinder scan ~/Pictures

  # ORB feature scan with 8 workers
  dupfinder scan ~/Pictures --algorithm feature --threads 8

  # Stricter threshold than the tuning profile
  dupfinder scan ~/Pictures --threshold 0.95

  # Older tuning generation, top folder only
  dupfinder scan ~/Pictures --tuning gen2 --recursive=false

  # Output as JSON and keep a report in SQLite
  dupfinder scan ~/Pictures --json --report-db report.db

  # Expose Prometheus metrics while scanning
  dupfinder scan ~/Pictures --metrics-addr :9110`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("algorithm", "histogram", "Comparison algorithm: histogram or feature")
	scanCmd.Flags().Int("threads", 0, "Maximum number of parallel comparisons (default: logical CPUs)")
	scanCmd.Flags().String("tuning", "", "Tuning profile (default: the profile file's default)")
	scanCmd.Flags().String("threshold", "", "Minimum similarity in (0,1] overriding the tuning profile")
	scanCmd.Flags().Bool("recursive", true, "Include subdirectories")
	scanCmd.Flags().Bool("json", false, "Output as JSON")
	scanCmd.Flags().String("report-db", "", "Store the run in this SQLite database")
	scanCmd.Flags().Lookup("report-db").NoOptDefVal = utils.GetDefaultReportPath()
	scanCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
	scanCmd.Flags().Int("cache-capacity", 0, "Maximum cached descriptors per algorithm")
	scanCmd.Flags().Bool("no-progress", false, "Hide the progress bar")
}

// barObserver forwards run progress to the tracker and the progress bar
type barObserver struct {
	tracker *scanner.ProgressTracker
	bar     *progressbar.ProgressBar
}

func (o *barObserver) FileProgress(ref *types.FileRecord, processed, total int) {
	o.tracker.FileProgress(ref, processed, total)
}

func (o *barObserver) ReferenceCompleted(ref *types.FileRecord, completed, total int) {
	o.tracker.ReferenceCompleted(ref, completed, total)
	if o.bar == nil {
		return
	}
	_ = o.bar.Set(completed)
	o.bar.Describe(fmt.Sprintf("Analysing | %s", o.tracker.StatusText()))
}

// applyThreshold overrides the minimum similarity of kind when threshold is set
func applyThreshold(tuning similarity.Tuning, kind similarity.Kind, threshold string) (similarity.Tuning, float64, error) {
	minSim := tuning.Histogram.MinSimilarity
	if kind == similarity.Feature {
		minSim = tuning.Feature.MinSimilarity
	}
	if threshold == "" {
		return tuning, minSim, nil
	}

	parsed, err := utils.ParseThreshold(threshold)
	if err != nil {
		return tuning, 0, err
	}
	if kind == similarity.Feature {
		tuning.Feature.MinSimilarity = parsed
	} else {
		tuning.Histogram.MinSimilarity = parsed
	}
	return tuning, parsed, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	kind, err := similarity.ParseKind(stringOr(cmd, "algorithm", cfg.Analysis.Algorithm))
	if err != nil {
		return err
	}
	tuning, err := loadTuning(cmd)
	if err != nil {
		return err
	}
	tuning, threshold, err := applyThreshold(tuning, kind, mustGetString(cmd, "threshold"))
	if err != nil {
		return err
	}

	options := scanner.ScanOptions{
		FolderPath: args[0],
		Recursive:  mustGetBool(cmd, "recursive"),
		Algorithm:  kind,
		Tuning:     tuning.Name,
		MaxWorkers: intOr(cmd, "threads", cfg.Analysis.MaxThreads),
		DebugMode:  cfg.Log.Level == "debug",
	}
	if options.MaxWorkers <= 0 {
		options.MaxWorkers = signalhandler.GetOptimalProcs()
	}

	if addr := stringOr(cmd, "metrics-addr", cfg.Metrics.Addr); addr != "" {
		go func() {
			if err := metrics.Serve(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.LogError("metrics server on %s stopped: %v", addr, err)
			}
		}()
		logging.LogInfo("Serving metrics on %s/metrics", addr)
	}

	ctx, cancel := signalhandler.SetupHandler(cmd.Context())
	defer cancel()

	ws, stats, err := scanner.Discover(options.FolderPath, options.Recursive)
	if err != nil {
		return fmt.Errorf("discover %s: %w", options.FolderPath, err)
	}
	if !jsonOutput {
		scanner.PrintStartupInfo(os.Stderr, stats, options)
		fmt.Fprintf(os.Stderr, "Tuning: %s, threshold: %.2f\n\n", tuning.Name, threshold)
	}
	if ws.Len() == 0 {
		if jsonOutput {
			return writeJSON(os.Stdout, ScanOutput{Algorithm: kind.String(), Tuning: tuning.Name, Threshold: threshold, Results: []FileOutput{}})
		}
		fmt.Println("No images found.")
		return nil
	}

	var bar *progressbar.ProgressBar
	if !jsonOutput && !mustGetBool(cmd, "no-progress") {
		bar = progressbar.NewOptions(ws.Len(),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Analysing"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("files"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionFullWidth(),
		)
	}
	observer := &barObserver{tracker: scanner.NewProgressTracker(ws.Len(), nil), bar: bar}

	runner := scanner.NewRunner(tuning, nil, intOr(cmd, "cache-capacity", cfg.Analysis.CacheCapacity))
	result, err := runner.RunAnalysis(ctx, ws, kind, options.MaxWorkers, observer)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	if jsonOutput {
		if err := writeJSON(os.Stdout, buildScanOutput(result, threshold, ws)); err != nil {
			return err
		}
	} else {
		scanner.PrintCompletionStats(os.Stderr, result)
		if result.Relations > 0 {
			fmt.Println()
			writeDuplicateTable(os.Stdout, ws)
		}
	}

	if dbPath := stringOr(cmd, "report-db", cfg.Report.DatabasePath); dbPath != "" {
		if err := storeReport(dbPath, options.FolderPath, result, ws); err != nil {
			return err
		}
		if !jsonOutput {
			fmt.Fprintf(os.Stderr, "Report stored in %s (run %s)\n", dbPath, result.ID)
		}
	}
	return nil
}

func storeReport(dbPath, root string, result *scanner.RunResult, ws *types.WorkingSet) error {
	db, err := database.InitDatabase(dbPath)
	if err != nil {
		return fmt.Errorf("open report database: %w", err)
	}
	defer db.Close()

	if err := database.StoreRun(db, root, result, ws); err != nil {
		return err
	}
	stats, err := database.GetRunStats(db, result.ID)
	if err != nil {
		return err
	}
	logging.DebugLog("Report run %s: %d files, %d pairs, %d files with duplicates",
		result.ID, stats.Files, stats.DuplicatePairs, stats.FilesWithDups)
	return nil
}
