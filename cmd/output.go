package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"dupfinder/scanner"
	"dupfinder/types"
)

// DuplicateEntry is one relation of a file in the JSON output
type DuplicateEntry struct {
	Path       string  `json:"path"`
	Similarity float64 `json:"similarity"`
	Percent    string  `json:"percent"`
	ElapsedMs  float64 `json:"elapsed_ms"`
}

// FileOutput is a file that has at least one duplicate
type FileOutput struct {
	Path       string           `json:"path"`
	Width      int              `json:"width"`
	Height     int              `json:"height"`
	Duplicates []DuplicateEntry `json:"duplicates"`
}

// ScanOutput is the JSON document printed by scan --json
type ScanOutput struct {
	RunID     string       `json:"run_id"`
	Algorithm string       `json:"algorithm"`
	Tuning    string       `json:"tuning"`
	Threshold float64      `json:"threshold"`
	Files     int          `json:"files"`
	Pairs     int          `json:"pairs"`
	Failed    int          `json:"failed"`
	Cancelled bool         `json:"cancelled"`
	ElapsedMs int64        `json:"elapsed_ms"`
	Results   []FileOutput `json:"results"`
}

func buildScanOutput(result *scanner.RunResult, threshold float64, ws *types.WorkingSet) ScanOutput {
	out := ScanOutput{
		RunID:     result.ID,
		Algorithm: result.Algorithm.String(),
		Tuning:    result.Tuning,
		Threshold: threshold,
		Files:     result.Files,
		Pairs:     result.Relations,
		Failed:    result.Failed,
		Cancelled: result.Cancelled,
		ElapsedMs: result.Elapsed.Milliseconds(),
		Results:   []FileOutput{},
	}
	for _, f := range ws.Groups() {
		w, h := f.Dimensions()
		fo := FileOutput{Path: f.Path, Width: w, Height: h}
		for _, d := range f.Duplicates() {
			fo.Duplicates = append(fo.Duplicates, DuplicateEntry{
				Path:       d.File.Path,
				Similarity: d.Similarity,
				Percent:    d.SimilarityText(),
				ElapsedMs:  float64(d.Elapsed.Microseconds()) / 1000,
			})
		}
		out.Results = append(out.Results, fo)
	}
	return out
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func resolutionText(f *types.FileRecord) string {
	w, h := f.Dimensions()
	if w == 0 || h == 0 {
		return "-"
	}
	return fmt.Sprintf("%dx%d", w, h)
}

// writeDuplicateTable prints each pair once, from the file that comes first in the working set
func writeDuplicateTable(out io.Writer, ws *types.WorkingSet) {
	order := make(map[string]int, ws.Len())
	for i, f := range ws.Files {
		order[f.Path] = i
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tRESOLUTION\tDUPLICATE\tRESOLUTION\tSIMILARITY")
	fmt.Fprintln(w, "----\t----------\t---------\t----------\t----------")
	for _, f := range ws.Groups() {
		for _, d := range f.Duplicates() {
			if order[d.File.Path] < order[f.Path] {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				f.Path, resolutionText(f), d.File.Path, resolutionText(d.File), d.SimilarityText())
		}
	}
	w.Flush()
}
