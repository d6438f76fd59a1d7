package database

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"dupfinder/logging"
	"dupfinder/scanner"
	"dupfinder/types"

	_ "github.com/mattn/go-sqlite3"
)

// InitDatabase opens the report database and creates its tables
func InitDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		root TEXT,
		algorithm TEXT NOT NULL,
		tuning TEXT,
		workers INTEGER,
		started_at TEXT,
		finished_at TEXT,
		elapsed_ms INTEGER,
		files INTEGER,
		compared INTEGER,
		failed INTEGER,
		cancelled INTEGER
	);
	CREATE TABLE IF NOT EXISTS files (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		path TEXT NOT NULL,
		width INTEGER,
		height INTEGER,
		size INTEGER,
		modified_at TEXT,
		started_at TEXT,
		finished_at TEXT,
		UNIQUE(run_id, path)
	);
	CREATE TABLE IF NOT EXISTS duplicates (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		path TEXT NOT NULL,
		other_path TEXT NOT NULL,
		similarity REAL NOT NULL,
		elapsed_ms REAL,
		UNIQUE(run_id, path, other_path)
	);
	CREATE INDEX IF NOT EXISTS idx_files_path ON files(path);
	CREATE INDEX IF NOT EXISTS idx_duplicates_run ON duplicates(run_id);`

	if _, err = db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

// StoreRun writes a finished run with its files and duplicate pairs in one transaction.
// Each pair is stored once with the lexically smaller path first.
func StoreRun(db *sql.DB, root string, result *scanner.RunResult, ws *types.WorkingSet) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %v", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO runs (
			id, root, algorithm, tuning, workers, started_at, finished_at, elapsed_ms, files, compared, failed, cancelled
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, root, result.Algorithm.String(), result.Tuning, result.Workers,
		formatTime(result.StartedAt), formatTime(result.FinishedAt), result.Elapsed.Milliseconds(),
		result.Files, result.Compared, result.Failed, result.Cancelled,
	)
	if err != nil {
		return fmt.Errorf("cannot insert run %s: %v", result.ID, err)
	}

	fileStmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO files (
			run_id, path, width, height, size, modified_at, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("cannot prepare file statement: %v", err)
	}
	defer fileStmt.Close()

	dupStmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO duplicates (
			run_id, path, other_path, similarity, elapsed_ms
		) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("cannot prepare duplicate statement: %v", err)
	}
	defer dupStmt.Close()

	for _, f := range ws.Files {
		width, height := f.Dimensions()
		started, finished := f.AnalysisTimes()

		var size int64
		var modified string
		if info, err := os.Stat(f.Path); err == nil {
			size = info.Size()
			modified = formatTime(info.ModTime())
		} else {
			logging.DebugLog("cannot stat %s for report: %v", f.Path, err)
		}

		if _, err := fileStmt.Exec(result.ID, f.Path, width, height, size, modified,
			formatTime(started), formatTime(finished)); err != nil {
			return fmt.Errorf("cannot insert data for %s: %v", f.Path, err)
		}

		for _, d := range f.Duplicates() {
			if d.File.Path < f.Path {
				continue
			}
			ms := float64(d.Elapsed.Microseconds()) / 1000
			if _, err := dupStmt.Exec(result.ID, f.Path, d.File.Path, d.Similarity, ms); err != nil {
				return fmt.Errorf("cannot insert duplicate %s <-> %s: %v", f.Path, d.File.Path, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %v", result.ID, err)
	}
	logging.DebugLog("Stored run %s with %d files", result.ID, ws.Len())
	return nil
}

// RunStats contains statistics of a stored run
type RunStats struct {
	Files          int
	DuplicatePairs int
	FilesWithDups  int
	Algorithm      string
	Cancelled      bool
}

// GetRunStats retrieves statistics about a stored run
func GetRunStats(db *sql.DB, runID string) (*RunStats, error) {
	var stats RunStats

	err := db.QueryRow("SELECT algorithm, files, cancelled FROM runs WHERE id = ?", runID).
		Scan(&stats.Algorithm, &stats.Files, &stats.Cancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %v", runID, err)
	}

	err = db.QueryRow("SELECT COUNT(*) FROM duplicates WHERE run_id = ?", runID).Scan(&stats.DuplicatePairs)
	if err != nil {
		return nil, fmt.Errorf("failed to count duplicates: %v", err)
	}

	err = db.QueryRow(`
		SELECT COUNT(*) FROM (
			SELECT path FROM duplicates WHERE run_id = ?
			UNION
			SELECT other_path FROM duplicates WHERE run_id = ?
		)`, runID, runID).Scan(&stats.FilesWithDups)
	if err != nil {
		return nil, fmt.Errorf("failed to count files with duplicates: %v", err)
	}

	return &stats, nil
}

// QueryDuplicates returns the stored pairs of a run, most similar first
func QueryDuplicates(db *sql.DB, runID string) ([]StoredPair, error) {
	rows, err := db.Query(`
		SELECT path, other_path, similarity FROM duplicates
		WHERE run_id = ? ORDER BY similarity DESC, path`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredPair
	for rows.Next() {
		var p StoredPair
		if err := rows.Scan(&p.Path, &p.OtherPath, &p.Similarity); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// StoredPair is one row of the duplicates table
type StoredPair struct {
	Path       string
	OtherPath  string
	Similarity float64
}
