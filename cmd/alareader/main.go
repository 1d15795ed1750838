// alareader runs the ingestion and alignment pipeline headlessly and prints a
// text summary: row counts, retained metrics, and the strongest correlations.
// Useful for a quick look at a capture without rendering any images.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/PuddingTower/adrenalin-log-analyzer/src/analysis"
	"github.com/PuddingTower/adrenalin-log-analyzer/src/ingest"
)

func main() {
	var dir string
	var tolerance time.Duration
	var minSamples, top int
	flag.StringVar(&dir, "dir", ".", "Capture directory containing the exported CSV logs")
	flag.DurationVar(&tolerance, "tolerance", analysis.DefaultTolerance, "Max time gap when matching samples across the two logs")
	flag.IntVar(&minSamples, "min-samples", analysis.DefaultMinSamples, "Minimum non-missing samples for a metric to enter the correlation matrix")
	flag.IntVar(&top, "top", 10, "How many correlation pairs to print")
	flag.Parse()

	hwPath, fpsPath, err := ingest.LocateLogPair(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	hw, err := ingest.ParseLogFile(hwPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fps, err := ingest.ParseLogFile(fpsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	table, err := analysis.Align(hw, fps, analysis.AlignOptions{Tolerance: tolerance})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	corr := analysis.Correlate(table, analysis.CorrelateOptions{MinSamples: minSamples})

	fmt.Printf("Hardware log: %s (%d samples, %d skipped)\n", hw.Source, len(hw.Samples), hw.SkippedRows)
	fmt.Printf("FPS log:      %s (%d samples, %d skipped)\n", fps.Source, len(fps.Samples), fps.SkippedRows)
	lo, hi := table.TimeRange()
	fmt.Printf("Aligned:      %d rows x %d metrics, %s -> %s\n",
		len(table.Rows), len(table.Metrics), lo.Format("15:04:05"), hi.Format("15:04:05"))
	fmt.Printf("Correlated:   %d retained metric(s)\n", len(corr.Metrics))
	pairs := corr.StrongestPairs(top)
	if len(pairs) > 0 {
		fmt.Println("Strongest correlations:")
		for _, p := range pairs {
			fmt.Printf("  %+.3f  %s ~ %s\n", p.Coefficient, p.A, p.B)
		}
	}
}
