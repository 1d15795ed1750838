// Package ingest turns the Adrenalin overlay's exported CSV logs into
// session.MetricSeries values: it locates the newest Hardware / FPS.Latency
// pair in a capture directory and parses each file, tolerating the vendor's
// formatting quirks (metadata preamble, unit suffixes in headers, locale
// decimal separators, sparse and malformed rows).
package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Filename patterns used by the Adrenalin performance-logging export.
const (
	HardwarePattern = "Hardware.*.CSV"
	FPSPattern      = "FPS.Latency.*.CSV"
)

// ErrNoMatchingFile is returned when a pattern matches nothing in the
// capture directory.
var ErrNoMatchingFile = errors.New("no matching log file")

var timestampToken = regexp.MustCompile(`\d{8}-\d{6}`)

// StartFromName extracts the capture start time from the YYYYMMDD-HHMMSS
// token embedded in an exported log's filename.
func StartFromName(name string) (time.Time, bool) {
	tok := timestampToken.FindString(filepath.Base(name))
	if tok == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("20060102-150405", tok, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// LatestMatch picks the newest of names matching pattern. The sort key is the
// embedded filename timestamp token, not filesystem mtime (exports are often
// copied between machines, which clobbers mtime); ties and token-less names
// fall back to plain string order, so the result is deterministic for any
// input ordering. Matching is case-insensitive since exports use an
// upper-case .CSV extension but users rename freely.
func LatestMatch(names []string, pattern string) (string, error) {
	upat := strings.ToUpper(pattern)
	best := ""
	bestKey := ""
	for _, n := range names {
		ok, err := filepath.Match(upat, strings.ToUpper(filepath.Base(n)))
		if err != nil {
			return "", fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if !ok {
			continue
		}
		// Token first so a name without one never outranks a dated export.
		key := timestampToken.FindString(filepath.Base(n)) + "\x00" + n
		if best == "" || key > bestKey {
			best, bestKey = n, key
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w: pattern %q", ErrNoMatchingFile, pattern)
	}
	return best, nil
}

// LocateLogPair lists dir once and resolves the newest hardware and
// FPS/latency log paths. Either lookup failing fails the pair: alignment
// needs both files.
func LocateLogPair(dir string) (hardwarePath, fpsPath string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", "", fmt.Errorf("read capture dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	hw, err := LatestMatch(names, HardwarePattern)
	if err != nil {
		return "", "", err
	}
	fps, err := LatestMatch(names, FPSPattern)
	if err != nil {
		return "", "", err
	}
	return filepath.Join(dir, hw), filepath.Join(dir, fps), nil
}
