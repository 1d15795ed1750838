package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuddingTower/adrenalin-log-analyzer/src/session"
)

var (
	// ErrAmbiguousFormat means no header row was found within the preamble
	// scan window; the file is not one of the two known export layouts.
	ErrAmbiguousFormat = errors.New("unable to locate header row")
	// ErrEmptyLog means the file held zero valid data rows after skipping
	// malformed ones.
	ErrEmptyLog = errors.New("no valid data rows")
)

// Exports sometimes prepend metadata lines (driver version, session notes)
// before the real header; scan at most this many rows looking for it.
const headerScanLimit = 16

// Timestamp column labels seen across export versions.
var timestampLabels = map[string]bool{
	"TIME STAMP": true,
	"TIMESTAMP":  true,
	"DATE TIME":  true,
}

// Free-text columns carried by the hardware log; excluded from numeric metrics.
var annotationLabels = map[string]bool{
	"PROCESS":     true,
	"APPLICATION": true,
}

// Trailing "[unit]" or "(unit)" annotation on a header cell.
var unitSuffix = regexp.MustCompile(`\s*[\[(]([^\])]*)[\])]\s*$`)

// Leading numeric run of a cell: sign, digits, separators. Whatever follows
// (unit glyphs like "%", "°C", " W") is ignored.
var numericPrefix = regexp.MustCompile(`^[-+]?\d[\d.,\s]*`)

// ParseLogFile parses one exported CSV log into a MetricSeries. Malformed
// rows are skipped and counted on the series, not fatal; a file with no
// usable rows at all fails with ErrEmptyLog.
func ParseLogFile(path string) (*session.MetricSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()
	return parseLog(f, filepath.Base(path))
}

func parseLog(r io.Reader, name string) (*session.MetricSeries, error) {
	defer session.TimeTrack(time.Now(), "parse "+name)

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	header, err := findHeader(cr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	tsIdx := timestampIndex(header)

	series := &session.MetricSeries{
		Source: name,
		Units:  map[string]string{},
	}
	if start, ok := StartFromName(name); ok {
		series.Start = start
	} else {
		session.Warnf("%s: no timestamp token in filename; relative timestamps will anchor at the epoch", name)
	}

	// Column plan: metric name per header cell, "" for the timestamp and
	// annotation columns. Duplicate names get a numeric suffix so no column
	// is silently shadowed.
	colName := make([]string, len(header))
	seen := map[string]int{}
	for i, cell := range header {
		if i == tsIdx {
			continue
		}
		base, unit := splitUnit(cell)
		if base == "" || annotationLabels[strings.ToUpper(base)] {
			continue
		}
		metric := base
		if n := seen[base]; n > 0 {
			metric = fmt.Sprintf("%s (%d)", base, n+1)
		}
		seen[base]++
		colName[i] = metric
		series.Metrics = append(series.Metrics, metric)
		if unit != "" {
			series.Units[metric] = unit
		}
	}

	firstDataRow := true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Quote/parse defects are row-level: skip and count.
			series.SkippedRows++
			continue
		}
		if len(rec) != len(header) {
			series.SkippedRows++
			continue
		}
		tsCell := strings.TrimSpace(rec[tsIdx])
		if tsCell == "" && firstDataRow {
			// Known export artifact: the first data row can carry an empty
			// timestamp. Dropped without counting it against the file.
			firstDataRow = false
			continue
		}
		firstDataRow = false
		ts, ok := parseTimestamp(tsCell, series.Start)
		if !ok {
			series.SkippedRows++
			continue
		}
		values := make(map[string]float64)
		for i, metric := range colName {
			if metric == "" {
				continue
			}
			if v, ok := coerceNumeric(rec[i]); ok {
				values[metric] = v
			}
		}
		series.Samples = append(series.Samples, session.Sample{Timestamp: ts, Values: values})
	}

	if series.SkippedRows > 0 {
		session.Warnf("%s: skipped %d malformed row(s)", name, series.SkippedRows)
	}
	if len(series.Samples) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptyLog)
	}
	// Exports are append-ordered, but keep the non-decreasing invariant even
	// for hand-edited files.
	sort.SliceStable(series.Samples, func(i, j int) bool {
		return series.Samples[i].Timestamp.Before(series.Samples[j].Timestamp)
	})
	return series, nil
}

// findHeader reads rows until one contains a recognized timestamp label.
func findHeader(cr *csv.Reader) ([]string, error) {
	for scanned := 0; scanned < headerScanLimit; scanned++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil, ErrAmbiguousFormat
		}
		if err != nil {
			continue
		}
		if timestampIndex(rec) >= 0 {
			return rec, nil
		}
	}
	return nil, ErrAmbiguousFormat
}

func timestampIndex(rec []string) int {
	for i, cell := range rec {
		if timestampLabels[strings.ToUpper(strings.TrimSpace(cell))] {
			return i
		}
	}
	return -1
}

// splitUnit separates "GPU Temperature [°C]" into ("GPU Temperature", "°C").
// The unit annotation is recorded separately and never part of the metric key.
func splitUnit(cell string) (metric, unit string) {
	s := strings.TrimSpace(cell)
	if m := unitSuffix.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(strings.TrimSuffix(s, m[0])), strings.TrimSpace(m[1])
	}
	return s, ""
}

// Absolute layouts tried in order; day-first variants before month-first
// since the exporter follows the host locale and day-first dominates samples
// we have seen.
var absoluteLayouts = []string{
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"02-01-2006 15:04:05.000",
	"02-01-2006 15:04:05",
	"02/01/2006 15:04:05",
	"2006/01/02 15:04:05",
}

var clockLayouts = []string{
	"15:04:05.000",
	"15:04:05",
}

// parseTimestamp turns a raw timestamp cell into an absolute point in time.
// Absolute date-time forms are taken as-is. Time-of-day-only forms anchor to
// the capture start date (with midnight wrap). Bare numeric forms are elapsed
// seconds from the capture start; without a start anchor they root at the
// Unix epoch, which still yields a consistent shared axis for a same-named
// pair.
func parseTimestamp(cell string, start time.Time) (time.Time, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			base := start
			if base.IsZero() {
				base = time.Unix(0, 0).UTC()
			}
			at := time.Date(base.Year(), base.Month(), base.Day(),
				t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), base.Location())
			if at.Before(base) {
				at = at.Add(24 * time.Hour)
			}
			return at, true
		}
	}
	if secs, ok := coerceNumeric(s); ok {
		base := start
		if base.IsZero() {
			base = time.Unix(0, 0).UTC()
		}
		return base.Add(time.Duration(secs * float64(time.Second))), true
	}
	return time.Time{}, false
}

// coerceNumeric converts a raw cell into a float64. Tolerates surrounding
// space, thousands separators (comma, space), decimal commas and trailing
// unit glyphs. Empty cells, "N/A" and bare dashes report ok=false: missing,
// never zero.
func coerceNumeric(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || s == "-" || strings.EqualFold(s, "N/A") {
		return 0, false
	}
	m := strings.TrimSpace(numericPrefix.FindString(s))
	if m == "" {
		return 0, false
	}
	m = strings.ReplaceAll(m, " ", "")
	hasDot := strings.Contains(m, ".")
	hasComma := strings.Contains(m, ",")
	switch {
	case hasDot && hasComma:
		// "1,234.5": comma is the thousands separator.
		m = strings.ReplaceAll(m, ",", "")
	case hasComma:
		// Lone comma with exactly three trailing digits reads as a thousands
		// separator ("1,234"); anything else is a locale decimal ("12,5").
		if i := strings.LastIndex(m, ","); strings.Count(m, ",") == 1 && len(m)-i-1 != 3 {
			m = m[:i] + "." + m[i+1:]
		} else {
			m = strings.ReplaceAll(m, ",", "")
		}
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
