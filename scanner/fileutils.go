package scanner

import (
	"io/fs"
	"path/filepath"
	"sort"

	"dupfinder/imageprocessor"
	"dupfinder/logging"
	"dupfinder/types"
)

// Discover collects the supported images under root into a working set ordered by path.
// Unreadable entries are logged and skipped.
func Discover(root string, recursive bool) (*types.WorkingSet, FileStats, error) {
	stats := FileStats{ByFormat: make(map[string]int)}
	var paths []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logging.LogWarning("Error accessing path %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}

		if !imageprocessor.IsImageFile(path) {
			stats.Skipped++
			return nil
		}

		paths = append(paths, path)
		stats.ByFormat[string(imageprocessor.GetFileFormat(path))]++
		return nil
	})
	if err != nil {
		return nil, stats, err
	}

	sort.Strings(paths)
	stats.TotalFiles = len(paths)
	logging.DebugLog("Discovered %d image files under %s (%d other files skipped)", stats.TotalFiles, root, stats.Skipped)

	return types.NewWorkingSet(paths), stats, nil
}
