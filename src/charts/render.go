// Package charts is the presentation layer: it renders the aligned table and
// correlation matrix into a report folder of PNG images. It only reads the
// structures the pipeline hands it.
package charts

import (
	"bytes"
	"fmt"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/PuddingTower/adrenalin-log-analyzer/src/session"
)

// HeatmapFile is the output name of the correlation heatmap image.
const HeatmapFile = "correlation_heatmap.png"

type plotLine struct {
	Metric string
	Label  string // legend label; empty means the metric name
	Dashed bool
}

type linePlot struct {
	File   string
	Title  string
	YLabel string
	Lines  []plotLine
}

// Chart groups mirror the capture overlay's own metric grouping. A plot whose
// metrics are all absent from the table yields no file rather than an error.
var gpuPlots = []linePlot{
	{"gpu_utilization.png", "GPU Utilization", "%", []plotLine{{Metric: "GPU 1 UTIL"}}},
	{"gpu_core_clock.png", "GPU Core Clock", "MHz", []plotLine{{Metric: "GPU 1 SCLK"}}},
	{"gpu_board_power.png", "GPU Board Power", "W", []plotLine{{Metric: "GPU 1 BRD PWR"}}},
	{"gpu_temperature.png", "GPU Temperature", "°C", []plotLine{
		{Metric: "GPU 1 TEMP", Label: "Edge"},
		{Metric: "GPU 1 HOTSPOT TEMP", Label: "Hotspot", Dashed: true},
	}},
	{"gpu_fan_speed.png", "GPU Fan Speed", "RPM", []plotLine{{Metric: "GPU 1 FAN"}}},
	{"gpu_memory_usage.png", "GPU Memory Usage", "MB", []plotLine{{Metric: "GPU MEM 1 UTIL"}}},
}

var cpuMemPlots = []linePlot{
	{"cpu_utilization.png", "CPU Utilization", "%", []plotLine{{Metric: "CPU UTIL"}}},
	{"cpu_frequency.png", "CPU Frequency", "GHz", []plotLine{{Metric: "CPU FREQUENCY"}}},
	{"cpu_temperature.png", "CPU Temperature", "°C", []plotLine{{Metric: "CPU TEMPERATURE"}}},
	{"system_memory.png", "System Memory Utilization", "%", []plotLine{{Metric: "SYSTEM MEM UTIL"}}},
}

var fpsPlots = []linePlot{
	{"fps.png", "FPS", "FPS", []plotLine{{Metric: "FPS"}}},
	{"avg_frame_time.png", "Average Frame Time", "ms", []plotLine{{Metric: "AVG FRAME TIME"}}},
	{"fps_99th_percentile.png", "99th Percentile FPS", "FPS", []plotLine{{Metric: "99th% FPS"}}},
	{"stutter.png", "Stutter", "rate", []plotLine{
		{Metric: "MICRO STUTTER", Label: "Micro stutter", Dashed: true},
		{Metric: "HEAVY STUTTER RATE", Label: "Heavy stutter rate", Dashed: true},
	}},
}

func allPlots() []linePlot {
	out := make([]linePlot, 0, len(gpuPlots)+len(cpuMemPlots)+len(fpsPlots))
	out = append(out, gpuPlots...)
	out = append(out, cpuMemPlots...)
	return append(out, fpsPlots...)
}

// RenderOptions configures chart dimensions; zero values take defaults.
type RenderOptions struct {
	Width  int
	Height int
}

// chartSize applies the width/height clamp rules used for all charts.
func chartSize(opts RenderOptions) (int, int) {
	w := opts.Width
	if w <= 0 {
		w = 1024
	}
	if w < 800 {
		w = 800
	}
	h := opts.Height
	if h <= 0 {
		h = int(float32(w) * 0.38)
	}
	if h < 280 {
		h = 280
	}
	if h > 640 {
		h = 640
	}
	return w, h
}

// ReportDirName names a report folder for the given wall-clock time.
func ReportDirName(now time.Time) string {
	return "analysis_report_" + now.Format("20060102_150405")
}

// RenderReport writes every renderable chart plus the correlation heatmap
// into dir and returns the written paths in render order. Charts whose
// metrics are entirely missing are skipped, matching the rest of the
// missing-data policy: absent, never zero-filled.
func RenderReport(table *session.AlignedTable, corr *session.CorrelationMatrix, dir string, opts RenderOptions) ([]string, error) {
	defer session.TimeTrack(time.Now(), "render report")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	var written []string
	for _, lp := range allPlots() {
		data, err := renderLinePlot(table, lp, opts)
		if err != nil {
			return written, fmt.Errorf("render %s: %w", lp.File, err)
		}
		if data == nil {
			session.Debugf("charts: %s has no data, skipping", lp.Title)
			continue
		}
		path := filepath.Join(dir, lp.File)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", lp.File, err)
		}
		written = append(written, path)
	}
	if corr != nil && len(corr.Metrics) >= 2 {
		var buf bytes.Buffer
		if err := png.Encode(&buf, RenderHeatmap(corr)); err != nil {
			return written, fmt.Errorf("encode heatmap: %w", err)
		}
		path := filepath.Join(dir, HeatmapFile)
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return written, fmt.Errorf("write heatmap: %w", err)
		}
		written = append(written, path)
	} else {
		session.Warnf("charts: fewer than two retained metrics, heatmap skipped")
	}
	return written, nil
}

var linePalette = []drawing.Color{
	chart.ColorBlue,
	chart.ColorOrange,
	chart.ColorGreen,
	chart.ColorRed,
}

func lineStyle(i int, dashed bool) chart.Style {
	st := chart.Style{
		StrokeWidth: 1.5,
		StrokeColor: linePalette[i%len(linePalette)],
	}
	if dashed {
		st.StrokeDashArray = []float64{4.0, 3.0}
	}
	return st
}

// renderLinePlot builds one PNG time-series chart. Returns nil bytes (no
// error) when none of the plot's metrics carry data.
func renderLinePlot(table *session.AlignedTable, lp linePlot, opts RenderOptions) ([]byte, error) {
	series := []chart.Series{}
	minY := math.MaxFloat64
	maxY := -math.MaxFloat64
	for i, ln := range lp.Lines {
		times, vals := seriesPoints(table, ln.Metric)
		if len(times) == 0 {
			continue
		}
		for _, v := range vals {
			if v < minY {
				minY = v
			}
			if v > maxY {
				maxY = v
			}
		}
		// Pad to at least two X values for go-chart.
		if len(times) == 1 {
			times = append(times, times[0].Add(1*time.Second))
			vals = append(vals, vals[0])
		}
		label := ln.Label
		if label == "" {
			label = ln.Metric
		}
		series = append(series, chart.TimeSeries{
			Name:    label,
			XValues: times,
			YValues: vals,
			Style:   lineStyle(i, ln.Dashed),
		})
	}
	if len(series) == 0 {
		return nil, nil
	}
	yAxis := chart.YAxis{Name: lp.YLabel}
	if minY == maxY {
		// go-chart rejects a zero Y range; pad around a flat line.
		yAxis.Range = &chart.ContinuousRange{Min: minY - 1, Max: maxY + 1}
	}
	w, h := chartSize(opts)
	ch := chart.Chart{
		Title:      lp.Title,
		Width:      w,
		Height:     h,
		Background: chart.Style{Padding: chart.Box{Top: 14, Left: 16, Right: 12, Bottom: 32}},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("15:04:05"),
		},
		YAxis:  yAxis,
		Series: series,
	}
	if len(series) > 1 {
		ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	}
	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// seriesPoints extracts the non-missing (timestamp, value) pairs for one
// metric. Missing cells are dropped, not drawn as zero.
func seriesPoints(table *session.AlignedTable, metric string) ([]time.Time, []float64) {
	var times []time.Time
	var vals []float64
	for _, row := range table.Rows {
		v, ok := row.Values[metric]
		if !ok || session.IsMissing(v) {
			continue
		}
		times = append(times, row.Timestamp)
		vals = append(vals, v)
	}
	return times, vals
}
