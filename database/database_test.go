package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dupfinder/scanner"
	"dupfinder/similarity"
	"dupfinder/types"
)

func TestStoreRun(t *testing.T) {
	db, err := InitDatabase(filepath.Join(t.TempDir(), "report.db"))
	require.NoError(t, err)
	defer db.Close()

	ws := types.NewWorkingSet([]string{"/p/a.jpg", "/p/b.jpg", "/p/c.jpg", "/p/d.jpg"})
	ws.Files[0].SetDimensions(4000, 3000)
	types.LinkDuplicates(ws.Files[1], ws.Files[0], 0.97, 5*time.Millisecond)
	types.LinkDuplicates(ws.Files[0], ws.Files[2], 0.88, 4*time.Millisecond)

	now := time.Now()
	result := &scanner.RunResult{
		ID:         "run-1",
		Algorithm:  similarity.Histogram,
		Tuning:     "gen3",
		Workers:    4,
		StartedAt:  now.Add(-time.Second),
		FinishedAt: now,
		Elapsed:    time.Second,
		Files:      ws.Len(),
		Compared:   6,
	}
	require.NoError(t, StoreRun(db, "/p", result, ws))

	stats, err := GetRunStats(db, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "histogram", stats.Algorithm)
	assert.Equal(t, 4, stats.Files)
	assert.Equal(t, 2, stats.DuplicatePairs)
	assert.Equal(t, 3, stats.FilesWithDups)
	assert.False(t, stats.Cancelled)

	pairs, err := QueryDuplicates(db, "run-1")
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, StoredPair{Path: "/p/a.jpg", OtherPath: "/p/b.jpg", Similarity: 0.97}, pairs[0])
	assert.Equal(t, "/p/c.jpg", pairs[1].OtherPath)

	var width int
	require.NoError(t, db.QueryRow("SELECT width FROM files WHERE run_id = ? AND path = ?", "run-1", "/p/a.jpg").Scan(&width))
	assert.Equal(t, 4000, width)

	// storing the same run again replaces instead of duplicating
	require.NoError(t, StoreRun(db, "/p", result, ws))
	stats, err = GetRunStats(db, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DuplicatePairs)
}

func TestGetRunStatsUnknownRun(t *testing.T) {
	db, err := InitDatabase(filepath.Join(t.TempDir(), "report.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = GetRunStats(db, "missing")
	assert.Error(t, err)
}
