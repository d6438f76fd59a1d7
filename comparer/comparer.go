// Package comparer sweeps one reference file against the rest of the working set.
package comparer

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"dupfinder/logging"
	"dupfinder/metrics"
	"dupfinder/signalhandler"
	"dupfinder/similarity"
	"dupfinder/types"
)

// SweepStats summarises one reference sweep
type SweepStats struct {
	Candidates int
	Compared   int
	Skipped    int
	Failed     int
	Duplicates int
	Cancelled  bool
	Elapsed    time.Duration
}

type sweepCounters struct {
	compared   atomic.Int64
	skipped    atomic.Int64
	failed     atomic.Int64
	duplicates atomic.Int64
}

// Orchestrator compares reference files against the working set in parallel
type Orchestrator struct {
	alg        similarity.Algorithm
	maxWorkers int
	observer   types.ProgressObserver
}

// New creates an orchestrator. maxWorkers <= 0 uses one worker per logical CPU;
// a nil observer discards progress.
func New(alg similarity.Algorithm, maxWorkers int, observer types.ProgressObserver) *Orchestrator {
	if maxWorkers <= 0 {
		maxWorkers = signalhandler.GetOptimalProcs()
	}
	if observer == nil {
		observer = types.NopObserver{}
	}
	return &Orchestrator{alg: alg, maxWorkers: maxWorkers, observer: observer}
}

// MaxWorkers returns the concurrency limit
func (o *Orchestrator) MaxWorkers() int {
	return o.maxWorkers
}

// CheckForDuplicates compares ref with every other file of ws and links the
// pairs scoring at or above the algorithm's threshold. Pairs already linked are
// counted without being compared again. Failed comparisons count as score 0.
// Once ctx is cancelled no further comparisons start and no new links are made.
// On return ref's progress is complete and the reference checker is released.
func (o *Orchestrator) CheckForDuplicates(ctx context.Context, ref *types.FileRecord, ws *types.WorkingSet) SweepStats {
	start := time.Now()
	kind := o.alg.Kind().String()

	candidates := make([]*types.FileRecord, 0, ws.Len())
	for _, f := range ws.Files {
		if f != ref && f.Path != ref.Path {
			candidates = append(candidates, f)
		}
	}

	stats := SweepStats{Candidates: len(candidates)}
	var counters sweepCounters

	ref.BeginCheck(len(candidates))
	defer func() {
		ref.FinishCheck()
		done, total := ref.Progress()
		o.observer.FileProgress(ref, done, total)
		metrics.ReferenceSweeps.WithLabelValues(kind).Inc()
		metrics.ReferenceSweepDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	if len(candidates) == 0 {
		stats.Elapsed = time.Since(start)
		return stats
	}

	checker, err := o.alg.NewChecker(ref)
	if err != nil {
		logging.LogWarning("cannot analyse %s: %v", ref.Path, err)
		stats.Failed = len(candidates)
		stats.Elapsed = time.Since(start)
		return stats
	}
	defer func() {
		if err := checker.Close(); err != nil {
			logging.DebugLog("closing checker for %s: %v", ref.Path, err)
		}
	}()

	var g errgroup.Group
	g.SetLimit(o.maxWorkers)
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			o.compare(ctx, checker, ref, candidate, &counters)
			return nil
		})
	}
	_ = g.Wait()

	stats.Compared = int(counters.compared.Load())
	stats.Skipped = int(counters.skipped.Load())
	stats.Failed = int(counters.failed.Load())
	stats.Duplicates = int(counters.duplicates.Load())
	stats.Cancelled = ctx.Err() != nil
	stats.Elapsed = time.Since(start)
	return stats
}

func (o *Orchestrator) compare(ctx context.Context, checker similarity.Checker, ref, candidate *types.FileRecord, counters *sweepCounters) {
	kind := o.alg.Kind().String()

	if ref.HasDuplicate(candidate) {
		counters.skipped.Add(1)
		metrics.ObserveComparison(kind, "skipped", 0)
		o.advance(ref)
		return
	}

	if ctx.Err() != nil {
		return
	}

	started := time.Now()
	score, err := checker.SimilarityTo(candidate)
	elapsed := time.Since(started)

	if ctx.Err() != nil {
		return
	}

	counters.compared.Add(1)
	outcome := "distinct"
	switch {
	case err != nil:
		logging.LogComparisonFailed(ref.Path, candidate.Path, err)
		counters.failed.Add(1)
		outcome = "failed"
	case score >= o.alg.MinSimilarity():
		if types.LinkDuplicates(ref, candidate, score, elapsed) {
			counters.duplicates.Add(1)
			metrics.DuplicatesFound.WithLabelValues(kind).Inc()
			logging.DebugLog("duplicate %s <-> %s (%.4f)", ref.Path, candidate.Path, score)
		}
		outcome = "duplicate"
	}
	metrics.ObserveComparison(kind, outcome, elapsed)

	o.advance(ref)
}

func (o *Orchestrator) advance(ref *types.FileRecord) {
	done, total := ref.AdvanceCheck()
	o.observer.FileProgress(ref, done, total)
}
