// Adrenalin log analyzer entrypoint.
//
// Pipeline: locate the newest Hardware / FPS.Latency export pair in the
// capture directory, parse each CSV into a metric series, align the two
// series onto one timeline, compute the pairwise correlation matrix, and
// render the chart report folder.
//
// Degraded mode: when only one of the two logs exists, the charts for that
// log are still rendered; alignment and the correlation heatmap need both.
//
// Design notes:
//   - The two parses run concurrently; nothing else is, the pipeline is a
//     straight batch run bounded by file size.
//   - Row-level defects (malformed rows) are recovered with a logged skip
//     count; file-level defects (no header, empty log) and a non-overlapping
//     pair abort the run with a precise cause.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/PuddingTower/adrenalin-log-analyzer/src/analysis"
	"github.com/PuddingTower/adrenalin-log-analyzer/src/charts"
	"github.com/PuddingTower/adrenalin-log-analyzer/src/ingest"
	"github.com/PuddingTower/adrenalin-log-analyzer/src/session"
)

func listFileNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func logSeries(s *session.MetricSeries) {
	lo, hi := s.TimeRange()
	session.Infof("%s: %d samples, %d metric(s), %d skipped row(s), range %s -> %s",
		s.Source, len(s.Samples), len(s.Metrics), s.SkippedRows,
		lo.Format("15:04:05.000"), hi.Format("15:04:05.000"))
}

func main() {
	var dir, out, policy, logLevel string
	var tolerance time.Duration
	var minSamples int
	flag.StringVar(&dir, "dir", ".", "Capture directory containing the exported CSV logs")
	flag.StringVar(&out, "out", "", "Report output directory (default: analysis_report_<timestamp> under -dir)")
	flag.DurationVar(&tolerance, "tolerance", analysis.DefaultTolerance, "Max time gap when matching samples across the two logs")
	flag.IntVar(&minSamples, "min-samples", analysis.DefaultMinSamples, "Minimum non-missing samples for a metric to enter the correlation matrix")
	flag.StringVar(&policy, "policy", "nearest", "Timestamp match policy: nearest or exact")
	flag.StringVar(&logLevel, "loglevel", "info", "Log level: debug, info, warn, error")
	flag.Parse()
	session.SetLogLevel(logLevel)

	matchPolicy, err := analysis.ParseMatchPolicy(policy)
	if err != nil {
		session.Errorf("%v", err)
		os.Exit(2)
	}

	names, err := listFileNames(dir)
	if err != nil {
		session.Errorf("list capture dir: %v", err)
		os.Exit(1)
	}
	hwName, hwErr := ingest.LatestMatch(names, ingest.HardwarePattern)
	fpsName, fpsErr := ingest.LatestMatch(names, ingest.FPSPattern)
	if hwErr != nil && fpsErr != nil {
		session.Errorf("no logs found in %s: %v; %v", dir, hwErr, fpsErr)
		os.Exit(1)
	}
	if hwErr != nil {
		session.Warnf("hardware log missing, continuing with FPS data only: %v", hwErr)
	}
	if fpsErr != nil {
		session.Warnf("FPS log missing, continuing with hardware data only: %v", fpsErr)
	}

	// The two files parse independently; run them concurrently.
	var wg sync.WaitGroup
	var hw, fps *session.MetricSeries
	var hwParseErr, fpsParseErr error
	if hwErr == nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hw, hwParseErr = ingest.ParseLogFile(filepath.Join(dir, hwName))
		}()
	}
	if fpsErr == nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fps, fpsParseErr = ingest.ParseLogFile(filepath.Join(dir, fpsName))
		}()
	}
	wg.Wait()
	for _, perr := range []error{hwParseErr, fpsParseErr} {
		if perr != nil {
			session.Errorf("%v", perr)
			os.Exit(1)
		}
	}

	var table *session.AlignedTable
	var corr *session.CorrelationMatrix
	switch {
	case hw != nil && fps != nil:
		logSeries(hw)
		logSeries(fps)
		table, err = analysis.Align(hw, fps, analysis.AlignOptions{Tolerance: tolerance, Policy: matchPolicy})
		if err != nil {
			if errors.Is(err, analysis.ErrNoOverlap) {
				session.Errorf("logs cover disjoint time ranges, nothing to align: %v", err)
			} else {
				session.Errorf("align: %v", err)
			}
			os.Exit(1)
		}
		session.Infof("aligned %d row(s) across %d metric(s) (tolerance %s, policy %s)",
			len(table.Rows), len(table.Metrics), tolerance, matchPolicy)
		corr = analysis.Correlate(table, analysis.CorrelateOptions{MinSamples: minSamples})
		session.Infof("correlation matrix retains %d metric(s)", len(corr.Metrics))
	case hw != nil:
		logSeries(hw)
		table = session.TableFromSeries(hw)
	default:
		logSeries(fps)
		table = session.TableFromSeries(fps)
	}

	outDir := out
	if outDir == "" {
		outDir = filepath.Join(dir, charts.ReportDirName(time.Now()))
	}
	written, err := charts.RenderReport(table, corr, outDir, charts.RenderOptions{})
	if err != nil {
		session.Errorf("render report: %v", err)
		os.Exit(1)
	}
	session.Infof("wrote %d image(s) to %s", len(written), outDir)
	fmt.Println(outDir)
}
