package scanner

import (
	"time"

	"dupfinder/similarity"
)

// ScanOptions defines the options for scanning
type ScanOptions struct {
	FolderPath string
	Recursive  bool
	Algorithm  similarity.Kind
	Tuning     string
	MaxWorkers int // 0 means one per logical CPU
	DebugMode  bool
}

// FileStats tracks information about discovered files
type FileStats struct {
	TotalFiles int
	Skipped    int
	ByFormat   map[string]int
}

// RunResult summarises one analysis run
type RunResult struct {
	ID        string
	Algorithm similarity.Kind
	Tuning    string
	Workers   int

	StartedAt  time.Time
	FinishedAt time.Time
	Elapsed    time.Duration

	Files               int
	ReferencesCompleted int
	Relations           int
	Compared            int
	Skipped             int
	Failed              int
	Cancelled           bool
}
