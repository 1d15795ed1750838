package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuddingTower/adrenalin-log-analyzer/src/analysis"
	"github.com/PuddingTower/adrenalin-log-analyzer/src/charts"
	"github.com/PuddingTower/adrenalin-log-analyzer/src/ingest"
)

// End-to-end: write a synthetic capture pair, run locate -> parse -> align ->
// correlate -> render, and check the report comes out coherent.
func TestPipelineEndToEnd(t *testing.T) {
	dir := t.TempDir()

	var hwRows, fpsRows []string
	hwRows = append(hwRows, "TIME STAMP,GPU 1 UTIL [%],GPU 1 TEMP [°C]")
	fpsRows = append(fpsRows, "TIME STAMP,FPS,AVG FRAME TIME [ms]")
	base := time.Date(2024, 3, 1, 9, 15, 30, 0, time.Local)
	for i := 0; i < 30; i++ {
		hwTs := base.Add(time.Duration(i) * time.Second)
		fpsTs := hwTs.Add(120 * time.Millisecond) // independent clock, slight skew
		util := 40 + i
		hwRows = append(hwRows, fmt.Sprintf("%s,%d,%d", hwTs.Format("2006-01-02 15:04:05"), util, 55+i/3))
		fpsRows = append(fpsRows, fmt.Sprintf("%s,%d,%.1f", fpsTs.Format("2006-01-02 15:04:05"), 120-util, 8.0+float64(util)/10))
	}
	writeFixture(t, dir, "Hardware.20240301-091530.CSV", hwRows)
	writeFixture(t, dir, "FPS.Latency.20240301-091530.CSV", fpsRows)

	hwPath, fpsPath, err := ingest.LocateLogPair(dir)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	hw, err := ingest.ParseLogFile(hwPath)
	if err != nil {
		t.Fatalf("parse hardware: %v", err)
	}
	fps, err := ingest.ParseLogFile(fpsPath)
	if err != nil {
		t.Fatalf("parse fps: %v", err)
	}
	table, err := analysis.Align(hw, fps, analysis.AlignOptions{Tolerance: 500 * time.Millisecond})
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if len(table.Rows) != 30 {
		t.Fatalf("expected 30 coalesced rows, got %d", len(table.Rows))
	}
	corr := analysis.Correlate(table, analysis.CorrelateOptions{})
	// GPU utilization ramps up while FPS ramps down: strongly negative.
	r, ok := corr.At("GPU 1 UTIL", "FPS")
	if !ok {
		t.Fatalf("GPU~FPS pair missing from matrix")
	}
	if r > -0.99 {
		t.Fatalf("expected strong negative correlation, got %v", r)
	}

	outDir := filepath.Join(dir, charts.ReportDirName(time.Now()))
	written, err := charts.RenderReport(table, corr, outDir, charts.RenderOptions{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	found := false
	for _, p := range written {
		if filepath.Base(p) == charts.HeatmapFile {
			found = true
		}
	}
	if !found {
		t.Fatalf("heatmap missing from report: %v", written)
	}
}

func writeFixture(t *testing.T, dir, name string, rows []string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(strings.Join(rows, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}
