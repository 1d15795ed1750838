package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseHardwareLogWithPreamble(t *testing.T) {
	content := strings.Join([]string{
		"AMD Performance Logging",
		"Driver 24.1.1",
		"TIME STAMP,GPU 1 UTIL [%],GPU 1 TEMP [°C],CPU FREQUENCY (GHz),PROCESS",
		"2024-01-01 10:00:00,50,61.5,4.2,game.exe",
		"2024-01-01 10:00:01,55,62.0,4.3,game.exe",
		"2024-01-01 10:00:02,60,63.0,4.1,game.exe",
	}, "\n")
	s, err := parseLog(strings.NewReader(content), "Hardware.20240101-100000.CSV")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	wantMetrics := []string{"GPU 1 UTIL", "GPU 1 TEMP", "CPU FREQUENCY"}
	if len(s.Metrics) != len(wantMetrics) {
		t.Fatalf("metrics = %v", s.Metrics)
	}
	for i, m := range wantMetrics {
		if s.Metrics[i] != m {
			t.Fatalf("metric[%d] = %q want %q", i, s.Metrics[i], m)
		}
	}
	if s.Units["GPU 1 TEMP"] != "°C" || s.Units["CPU FREQUENCY"] != "GHz" {
		t.Fatalf("units = %v", s.Units)
	}
	if len(s.Samples) != 3 {
		t.Fatalf("expected 3 samples got %d", len(s.Samples))
	}
	if got := s.Samples[1].Values["GPU 1 UTIL"]; got != 55 {
		t.Fatalf("sample value = %v", got)
	}
	if _, ok := s.Samples[0].Values["PROCESS"]; ok {
		t.Fatalf("free-text column leaked into numeric values")
	}
	want := time.Date(2024, 1, 1, 10, 0, 1, 0, time.Local)
	if !s.Samples[1].Timestamp.Equal(want) {
		t.Fatalf("timestamp = %v want %v", s.Samples[1].Timestamp, want)
	}
}

func TestParseSkipsMalformedRow(t *testing.T) {
	content := strings.Join([]string{
		"TIME STAMP,FPS,AVG FRAME TIME [ms],99th% FPS,MICRO STUTTER",
		"2024-01-01 10:00:00,90,11.1,80,0.1",
		"2024-01-01 10:00:01,88,11.3", // 3 fields against a 5-column header
		"2024-01-01 10:00:02,85,11.8,75,0.2",
	}, "\n")
	s, err := parseLog(strings.NewReader(content), "FPS.Latency.20240101-100000.CSV")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.SkippedRows != 1 {
		t.Fatalf("skip count = %d want 1", s.SkippedRows)
	}
	if len(s.Samples) != 2 {
		t.Fatalf("expected 2 valid samples got %d", len(s.Samples))
	}
}

func TestParseEmptyLog(t *testing.T) {
	content := "TIME STAMP,FPS\n"
	_, err := parseLog(strings.NewReader(content), "FPS.Latency.20240101-100000.CSV")
	if !errors.Is(err, ErrEmptyLog) {
		t.Fatalf("expected ErrEmptyLog, got %v", err)
	}
}

func TestParseAmbiguousFormat(t *testing.T) {
	content := "just some text\nno header here\n1,2,3\n"
	_, err := parseLog(strings.NewReader(content), "Hardware.20240101-100000.CSV")
	if !errors.Is(err, ErrAmbiguousFormat) {
		t.Fatalf("expected ErrAmbiguousFormat, got %v", err)
	}
}

func TestParseRelativeTimestampsAnchorToFilename(t *testing.T) {
	content := strings.Join([]string{
		"TIME STAMP,FPS",
		"0.0,90",
		"1.5,88",
	}, "\n")
	s, err := parseLog(strings.NewReader(content), "FPS.Latency.20240101-120000.CSV")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	anchor := time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local)
	if !s.Samples[0].Timestamp.Equal(anchor) {
		t.Fatalf("first timestamp = %v want %v", s.Samples[0].Timestamp, anchor)
	}
	if got := s.Samples[1].Timestamp.Sub(s.Samples[0].Timestamp); got != 1500*time.Millisecond {
		t.Fatalf("elapsed = %v want 1.5s", got)
	}
}

func TestParseEmptyFirstTimestampQuirk(t *testing.T) {
	// The exporter sometimes emits a first data row with an empty timestamp;
	// it is dropped without counting against the skip total.
	content := strings.Join([]string{
		"TIME STAMP,FPS",
		",",
		"2024-01-01 10:00:00,90",
	}, "\n")
	s, err := parseLog(strings.NewReader(content), "FPS.Latency.20240101-100000.CSV")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.SkippedRows != 0 {
		t.Fatalf("quirk row counted as skipped: %d", s.SkippedRows)
	}
	if len(s.Samples) != 1 {
		t.Fatalf("expected 1 sample got %d", len(s.Samples))
	}
}

func TestParseMissingCellsStayMissing(t *testing.T) {
	content := strings.Join([]string{
		"TIME STAMP,GPU 1 UTIL [%],GPU 1 FAN [RPM]",
		"2024-01-01 10:00:00,50,",
		"2024-01-01 10:00:01,N/A,1200",
	}, "\n")
	s, err := parseLog(strings.NewReader(content), "Hardware.20240101-100000.CSV")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := s.Samples[0].Values["GPU 1 FAN"]; ok {
		t.Fatalf("empty cell produced a value")
	}
	if _, ok := s.Samples[1].Values["GPU 1 UTIL"]; ok {
		t.Fatalf("N/A cell produced a value")
	}
	if got := s.Samples[1].Values["GPU 1 FAN"]; got != 1200 {
		t.Fatalf("fan = %v", got)
	}
}

func TestParseDuplicateColumnNames(t *testing.T) {
	content := strings.Join([]string{
		"TIME STAMP,GPU 1 TEMP [°C],GPU 1 TEMP [°C]",
		"2024-01-01 10:00:00,60,95",
	}, "\n")
	s, err := parseLog(strings.NewReader(content), "Hardware.20240101-100000.CSV")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.Metrics[0] != "GPU 1 TEMP" || s.Metrics[1] != "GPU 1 TEMP (2)" {
		t.Fatalf("metrics = %v", s.Metrics)
	}
	if got := s.Samples[0].Values["GPU 1 TEMP (2)"]; got != 95 {
		t.Fatalf("second column value = %v", got)
	}
}

func TestParseTimestampRangeRoundTrip(t *testing.T) {
	// Rows deliberately out of order; the series range must match the
	// min/max timestamps present in the source.
	content := strings.Join([]string{
		"TIME STAMP,FPS",
		"2024-01-01 10:00:05,85",
		"2024-01-01 10:00:00,90",
		"2024-01-01 10:00:03,88",
	}, "\n")
	s, err := parseLog(strings.NewReader(content), "FPS.Latency.20240101-100000.CSV")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	lo, hi := s.TimeRange()
	if !lo.Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local)) {
		t.Fatalf("range lo = %v", lo)
	}
	if !hi.Equal(time.Date(2024, 1, 1, 10, 0, 5, 0, time.Local)) {
		t.Fatalf("range hi = %v", hi)
	}
	for i := 1; i < len(s.Samples); i++ {
		if s.Samples[i].Timestamp.Before(s.Samples[i-1].Timestamp) {
			t.Fatalf("timestamps not sorted at %d", i)
		}
	}
}

func TestParseLogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Hardware.20240101-100000.CSV")
	content := "TIME STAMP,GPU 1 UTIL [%]\n2024-01-01 10:00:00,42\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	s, err := ParseLogFile(path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.Source != "Hardware.20240101-100000.CSV" {
		t.Fatalf("source = %q", s.Source)
	}
	if got := s.Samples[0].Values["GPU 1 UTIL"]; got != 42 {
		t.Fatalf("value = %v", got)
	}
}

func TestCoerceNumeric(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"42", 42, true},
		{" 42.5 ", 42.5, true},
		{"1,234.5", 1234.5, true},
		{"1,234", 1234, true},
		{"12,5", 12.5, true},
		{"1 234", 1234, true},
		{"95 %", 95, true},
		{"63.5 °C", 63.5, true},
		{"-0.5", -0.5, true},
		{"", 0, false},
		{"N/A", 0, false},
		{"n/a", 0, false},
		{"-", 0, false},
		{"game.exe", 0, false},
	}
	for _, c := range cases {
		got, ok := coerceNumeric(c.in)
		if ok != c.ok {
			t.Fatalf("%q: ok = %v want %v", c.in, ok, c.ok)
		}
		if ok && got != c.want {
			t.Fatalf("%q: got %v want %v", c.in, got, c.want)
		}
	}
}
