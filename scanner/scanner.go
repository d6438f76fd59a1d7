package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"dupfinder/comparer"
	"dupfinder/imageprocessor"
	"dupfinder/logging"
	"dupfinder/metrics"
	"dupfinder/signalhandler"
	"dupfinder/similarity"
	"dupfinder/types"
)

// Runner drives analysis runs. Algorithms are created on first use and keep
// their descriptor caches between runs until ClearCache.
type Runner struct {
	tuning        similarity.Tuning
	loader        imageprocessor.ImageLoader
	cacheCapacity int

	mu         sync.Mutex
	algorithms map[similarity.Kind]similarity.Algorithm
}

// NewRunner creates a runner. A nil loader uses the default registry.
func NewRunner(tuning similarity.Tuning, loader imageprocessor.ImageLoader, cacheCapacity int) *Runner {
	return &Runner{
		tuning:        tuning,
		loader:        loader,
		cacheCapacity: cacheCapacity,
		algorithms:    make(map[similarity.Kind]similarity.Algorithm),
	}
}

// NewRunnerWithAlgorithms creates a runner over ready-made algorithms
func NewRunnerWithAlgorithms(algs ...similarity.Algorithm) *Runner {
	r := NewRunner(similarity.Tuning{}, nil, 0)
	for _, a := range algs {
		r.algorithms[a.Kind()] = a
	}
	return r
}

// Algorithm returns the algorithm for kind, creating it if needed
func (r *Runner) Algorithm(kind similarity.Kind) (similarity.Algorithm, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if alg, ok := r.algorithms[kind]; ok {
		return alg, nil
	}
	alg, err := similarity.New(kind, r.tuning, r.loader, r.cacheCapacity)
	if err != nil {
		return nil, err
	}
	r.algorithms[kind] = alg
	return alg, nil
}

// ClearCache drops the cached descriptors of kind
func (r *Runner) ClearCache(kind similarity.Kind) error {
	alg, err := r.Algorithm(kind)
	if err != nil {
		return err
	}
	alg.ClearCache()
	return nil
}

// RunAnalysis resets ws and the algorithm's cache, then sweeps every file of ws
// as reference, one after another. It stops starting new sweeps once ctx is
// cancelled and then returns the partial result together with ctx.Err().
func (r *Runner) RunAnalysis(ctx context.Context, ws *types.WorkingSet, kind similarity.Kind, maxThreads int, observer types.ProgressObserver) (*RunResult, error) {
	alg, err := r.Algorithm(kind)
	if err != nil {
		return nil, err
	}
	if maxThreads <= 0 {
		maxThreads = signalhandler.GetOptimalProcs()
	}
	if observer == nil {
		observer = types.NopObserver{}
	}

	ws.Reset()
	alg.ClearCache()

	result := &RunResult{
		ID:        uuid.NewString(),
		Algorithm: kind,
		Tuning:    r.tuning.Name,
		Workers:   maxThreads,
		StartedAt: time.Now(),
		Files:     ws.Len(),
	}
	log := logging.WithRun(result.ID)
	log.Infof("analysing %d files with %s (threshold %.2f, %d workers)", ws.Len(), kind, alg.MinSimilarity(), maxThreads)

	orch := comparer.New(alg, maxThreads, observer)
	for i, ref := range ws.Files {
		if ctx.Err() != nil {
			break
		}

		stats := orch.CheckForDuplicates(ctx, ref, ws)
		result.Compared += stats.Compared
		result.Skipped += stats.Skipped
		result.Failed += stats.Failed
		if stats.Cancelled {
			break
		}

		result.ReferencesCompleted++
		observer.ReferenceCompleted(ref, i+1, ws.Len())
		log.Debugf("%s done in %s: %d compared, %d duplicates", ref.Path, stats.Elapsed, stats.Compared, stats.Duplicates)
	}

	result.FinishedAt = time.Now()
	result.Elapsed = result.FinishedAt.Sub(result.StartedAt)
	result.Relations = ws.RelationCount()
	result.Cancelled = ctx.Err() != nil

	if result.Cancelled {
		metrics.RunsTotal.WithLabelValues(kind.String(), "cancelled").Inc()
		log.Warnf("cancelled after %d of %d files", result.ReferencesCompleted, result.Files)
		return result, ctx.Err()
	}

	metrics.RunsTotal.WithLabelValues(kind.String(), "completed").Inc()
	log.Infof("finished in %s: %d duplicate pairs, %d failed comparisons", result.Elapsed, result.Relations, result.Failed)
	return result, nil
}

// Scan discovers the images of options.FolderPath and analyses them
func (r *Runner) Scan(ctx context.Context, options ScanOptions, observer types.ProgressObserver) (*types.WorkingSet, *RunResult, error) {
	ws, stats, err := Discover(options.FolderPath, options.Recursive)
	if err != nil {
		return nil, nil, fmt.Errorf("discover %s: %w", options.FolderPath, err)
	}
	if options.DebugMode {
		logging.DebugLog("Found %d image files in %s", stats.TotalFiles, options.FolderPath)
	}

	result, err := r.RunAnalysis(ctx, ws, options.Algorithm, options.MaxWorkers, observer)
	return ws, result, err
}
