// alaviewer displays a rendered report folder in a window, one tab per chart
// image. It consumes only the PNG artifacts, so the analyzer can stay fully
// headless on machines without a display.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"

	"github.com/PuddingTower/adrenalin-log-analyzer/src/session"
)

const reportPrefix = "analysis_report_"

// newestReportDir picks the latest report folder under dir; the timestamp
// suffix sorts lexicographically.
func newestReportDir(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	best := ""
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), reportPrefix) && e.Name() > best {
			best = e.Name()
		}
	}
	if best == "" {
		return "", fmt.Errorf("no %s* folder under %s", reportPrefix, dir)
	}
	return filepath.Join(dir, best), nil
}

func tabLabel(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.ReplaceAll(name, "_", " ")
}

func main() {
	var report, dir string
	flag.StringVar(&report, "report", "", "Report folder to display (default: newest analysis_report_* under -dir)")
	flag.StringVar(&dir, "dir", ".", "Capture directory to search when -report is not given")
	flag.Parse()

	var err error
	if report == "" {
		report, err = newestReportDir(dir)
		if err != nil {
			session.Errorf("%v", err)
			os.Exit(1)
		}
	}
	images, err := filepath.Glob(filepath.Join(report, "*.png"))
	if err != nil || len(images) == 0 {
		session.Errorf("no chart images in %s", report)
		os.Exit(1)
	}
	sort.Strings(images)

	a := app.New()
	w := a.NewWindow("Adrenalin Log Analyzer - " + filepath.Base(report))
	tabs := container.NewAppTabs()
	for _, p := range images {
		img := canvas.NewImageFromFile(p)
		img.FillMode = canvas.ImageFillContain
		tabs.Append(container.NewTabItem(tabLabel(p), img))
	}
	w.SetContent(tabs)
	w.Resize(fyne.NewSize(1200, 680))
	w.ShowAndRun()
}
