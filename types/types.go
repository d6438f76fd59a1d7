package types

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// DuplicateRelation links a file to another file found similar to it
type DuplicateRelation struct {
	File       *FileRecord
	Similarity float64
	Elapsed    time.Duration
}

// SimilarityText renders the score the way it is shown to users, e.g. "93.41%"
func (r DuplicateRelation) SimilarityText() string {
	return fmt.Sprintf("%.2f%%", r.Similarity*100)
}

// FileRecord holds one discovered image and everything learned about it during a run
type FileRecord struct {
	Path string

	mu         sync.Mutex
	width      int
	height     int
	duplicates []DuplicateRelation
	index      map[string]int
	checked    int
	toCheck    int
	startedAt  time.Time
	finishedAt time.Time
}

// NewFileRecord creates a record for the image at path
func NewFileRecord(path string) *FileRecord {
	return &FileRecord{Path: path, index: make(map[string]int)}
}

// SetDimensions records the true pixel size of the image. Only the first call has an effect.
func (f *FileRecord) SetDimensions(width, height int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.width == 0 && f.height == 0 {
		f.width, f.height = width, height
	}
}

// Dimensions returns the recorded pixel size, zero until the image was decoded
func (f *FileRecord) Dimensions() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.width, f.height
}

// Resolution is width*height, used to prefer the larger copy of a duplicate
func (f *FileRecord) Resolution() int {
	w, h := f.Dimensions()
	return w * h
}

// HasDuplicate reports whether a relation with other is already recorded
func (f *FileRecord) HasDuplicate(other *FileRecord) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.index[other.Path]
	return ok
}

// Duplicates returns a snapshot of the relations, most similar first
func (f *FileRecord) Duplicates() []DuplicateRelation {
	f.mu.Lock()
	out := make([]DuplicateRelation, len(f.duplicates))
	copy(out, f.duplicates)
	f.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	return out
}

// DuplicateCount returns the number of recorded relations
func (f *FileRecord) DuplicateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.duplicates)
}

func (f *FileRecord) addLocked(other *FileRecord, similarity float64, elapsed time.Duration) {
	f.index[other.Path] = len(f.duplicates)
	f.duplicates = append(f.duplicates, DuplicateRelation{File: other, Similarity: similarity, Elapsed: elapsed})
}

// LinkDuplicates records the relation on both files. It returns false and changes
// nothing when the pair is already linked or a and b are the same file.
func LinkDuplicates(a, b *FileRecord, similarity float64, elapsed time.Duration) bool {
	if a == b || a.Path == b.Path {
		return false
	}

	// lock in path order so concurrent links never deadlock
	first, second := a, b
	if second.Path < first.Path {
		first, second = second, first
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	if _, ok := a.index[b.Path]; ok {
		return false
	}
	a.addLocked(b, similarity, elapsed)
	b.addLocked(a, similarity, elapsed)
	return true
}

// BeginCheck marks the start of this file's sweep against total candidates.
// A sweep without candidates counts as one already finished step.
func (f *FileRecord) BeginCheck(total int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = 0
	f.toCheck = total
	if total <= 0 {
		f.checked, f.toCheck = 1, 1
	}
	f.startedAt = time.Now()
	f.finishedAt = time.Time{}
}

// AdvanceCheck counts one processed candidate and returns the new progress.
// The count never passes the total.
func (f *FileRecord) AdvanceCheck() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checked < f.toCheck {
		f.checked++
	}
	return f.checked, f.toCheck
}

// FinishCheck forces the progress to complete and stamps the finish time
func (f *FileRecord) FinishCheck() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.toCheck <= 0 {
		f.toCheck = 1
	}
	f.checked = f.toCheck
	f.finishedAt = time.Now()
}

// Progress returns processed and total candidates of this file's sweep
func (f *FileRecord) Progress() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checked, f.toCheck
}

// Completed reports whether the file's sweep has finished
func (f *FileRecord) Completed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.finishedAt.IsZero()
}

// AnalysisTimes returns when the sweep started and finished
func (f *FileRecord) AnalysisTimes() (time.Time, time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startedAt, f.finishedAt
}

// Reset clears relations, progress and timestamps. Dimensions are kept since
// they describe the file, not the run.
func (f *FileRecord) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.duplicates = nil
	f.index = make(map[string]int)
	f.checked, f.toCheck = 0, 0
	f.startedAt, f.finishedAt = time.Time{}, time.Time{}
}

// WorkingSet is the ordered list of files analysed in one run
type WorkingSet struct {
	Files []*FileRecord
}

// NewWorkingSet builds a working set keeping the order of paths
func NewWorkingSet(paths []string) *WorkingSet {
	ws := &WorkingSet{Files: make([]*FileRecord, 0, len(paths))}
	for _, p := range paths {
		ws.Files = append(ws.Files, NewFileRecord(p))
	}
	return ws
}

// Len returns the number of files
func (ws *WorkingSet) Len() int {
	return len(ws.Files)
}

// Reset prepares every record for a fresh run
func (ws *WorkingSet) Reset() {
	for _, f := range ws.Files {
		f.Reset()
	}
}

// Groups returns the files with at least one duplicate, in working set order
func (ws *WorkingSet) Groups() []*FileRecord {
	var out []*FileRecord
	for _, f := range ws.Files {
		if f.DuplicateCount() > 0 {
			out = append(out, f)
		}
	}
	return out
}

// RelationCount returns the number of distinct duplicate pairs
func (ws *WorkingSet) RelationCount() int {
	total := 0
	for _, f := range ws.Files {
		total += f.DuplicateCount()
	}
	return total / 2
}

// ProgressObserver receives progress updates from a running analysis.
// Implementations must be safe for concurrent use.
type ProgressObserver interface {
	// FileProgress is called after each candidate of the reference sweep
	FileProgress(ref *FileRecord, processed, total int)
	// ReferenceCompleted is called after each finished reference sweep
	ReferenceCompleted(ref *FileRecord, completed, total int)
}

// NopObserver ignores all progress
type NopObserver struct{}

func (NopObserver) FileProgress(*FileRecord, int, int) {}
func (NopObserver) ReferenceCompleted(*FileRecord, int, int) {}
