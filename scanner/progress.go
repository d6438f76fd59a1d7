package scanner

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"dupfinder/types"
	"dupfinder/utils"
)

// etaWindow is the number of recent reference sweeps the ETA averages over
const etaWindow = 20

// ProgressSnapshot is the state reported to the tracker's listener
type ProgressSnapshot struct {
	Completed     int
	Total         int
	Current       string
	FileProcessed int
	FileTotal     int
	Elapsed       time.Duration
	ETA           time.Duration
}

// ProgressTracker follows a run and estimates the remaining time.
// It implements types.ProgressObserver.
type ProgressTracker struct {
	mu        sync.Mutex
	total     int
	completed int
	current   string
	fileDone  int
	fileTotal int
	durations []time.Duration
	started   time.Time
	onUpdate  func(ProgressSnapshot)
}

// NewProgressTracker creates a tracker for total reference files. onUpdate may be nil.
func NewProgressTracker(total int, onUpdate func(ProgressSnapshot)) *ProgressTracker {
	return &ProgressTracker{
		total:    total,
		started:  time.Now(),
		onUpdate: onUpdate,
	}
}

// FileProgress implements types.ProgressObserver
func (p *ProgressTracker) FileProgress(ref *types.FileRecord, processed, total int) {
	p.mu.Lock()
	p.current = ref.Path
	p.fileDone, p.fileTotal = processed, total
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.notify(snap)
}

// ReferenceCompleted implements types.ProgressObserver
func (p *ProgressTracker) ReferenceCompleted(ref *types.FileRecord, completed, total int) {
	started, finished := ref.AnalysisTimes()

	p.mu.Lock()
	p.completed, p.total = completed, total
	if !started.IsZero() && !finished.IsZero() {
		p.durations = append(p.durations, finished.Sub(started))
		if len(p.durations) > etaWindow {
			p.durations = p.durations[len(p.durations)-etaWindow:]
		}
	}
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.notify(snap)
}

// Snapshot returns the current state
func (p *ProgressTracker) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// ETA is the mean of the recent sweep durations times the remaining reference files
func (p *ProgressTracker) ETA() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.etaLocked()
}

// StatusText renders elapsed time and ETA the way the CLI shows them
func (p *ProgressTracker) StatusText() string {
	s := p.Snapshot()
	return fmt.Sprintf("Elapsed: %s | ETA: %s", utils.FormatElapsed(s.Elapsed), utils.FormatElapsed(s.ETA))
}

func (p *ProgressTracker) etaLocked() time.Duration {
	remaining := p.total - p.completed
	if len(p.durations) == 0 || remaining <= 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range p.durations {
		sum += d
	}
	return sum / time.Duration(len(p.durations)) * time.Duration(remaining)
}

func (p *ProgressTracker) snapshotLocked() ProgressSnapshot {
	return ProgressSnapshot{
		Completed:     p.completed,
		Total:         p.total,
		Current:       p.current,
		FileProcessed: p.fileDone,
		FileTotal:     p.fileTotal,
		Elapsed:       time.Since(p.started),
		ETA:           p.etaLocked(),
	}
}

func (p *ProgressTracker) notify(s ProgressSnapshot) {
	if p.onUpdate != nil {
		p.onUpdate(s)
	}
}

// PrintStartupInfo displays information about the scan before starting
func PrintStartupInfo(w io.Writer, stats FileStats, options ScanOptions) {
	fmt.Fprintf(w, "Scanning %s\n", options.FolderPath)
	fmt.Fprintf(w, "Image files to analyse: %d", stats.TotalFiles)

	formats := make([]string, 0, len(stats.ByFormat))
	for f := range stats.ByFormat {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	if len(formats) > 0 {
		fmt.Fprint(w, " (")
		for i, f := range formats {
			if i > 0 {
				fmt.Fprint(w, ", ")
			}
			fmt.Fprintf(w, "%s: %d", f, stats.ByFormat[f])
		}
		fmt.Fprint(w, ")")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Algorithm: %s, workers: %d\n", options.Algorithm, options.MaxWorkers)
}

// PrintCompletionStats displays statistics after the run
func PrintCompletionStats(w io.Writer, result *RunResult) {
	if result.Cancelled {
		fmt.Fprintf(w, "\nAnalysis cancelled after %d of %d files.\n", result.ReferencesCompleted, result.Files)
	} else {
		fmt.Fprintln(w, "\nAnalysis complete.")
	}
	fmt.Fprintf(w, "Compared %d pairs in %s, found %d duplicate pairs.\n",
		result.Compared, utils.FormatElapsed(result.Elapsed), result.Relations)
	if result.Failed > 0 {
		fmt.Fprintf(w, "%d comparisons failed, check the log for details.\n", result.Failed)
	}
}
