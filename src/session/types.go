// Package session holds the data model shared by the ingestion, alignment and
// rendering layers: parsed metric series, the aligned table and the correlation
// matrix. All values are built fresh per analysis run and are read-only once
// the pipeline hands them to the renderer.
package session

import (
	"math"
	"sort"
	"time"
)

// Missing returns the explicit missing-value marker used in aligned rows.
// A missing cell means "no sample within tolerance", never a numeric zero.
func Missing() float64 { return math.NaN() }

// IsMissing reports whether v is the missing marker.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// Sample is one timestamped row of readings from a source log. Metrics whose
// cell was empty or non-numeric (e.g. "N/A") are simply absent from Values.
type Sample struct {
	Timestamp time.Time
	Values    map[string]float64
}

// MetricSeries is the parsed form of one CSV log: an ordered sequence of
// samples sharing one metric name list. Timestamps are non-decreasing.
type MetricSeries struct {
	Source string    // originating file name (basename)
	Start  time.Time // capture start derived from the filename timestamp token

	Metrics []string          // header order, unit annotations stripped
	Units   map[string]string // metric name -> unit annotation ("°C", "W", ...); absent if none

	Samples []Sample

	// SkippedRows counts rows dropped during parse (field-count mismatch or
	// unparseable timestamp). Recoverable defects, surfaced for reporting.
	SkippedRows int
}

// TimeRange returns the first and last sample timestamps. Zero times when the
// series is empty.
func (s *MetricSeries) TimeRange() (time.Time, time.Time) {
	if len(s.Samples) == 0 {
		return time.Time{}, time.Time{}
	}
	return s.Samples[0].Timestamp, s.Samples[len(s.Samples)-1].Timestamp
}

// AlignedRow is one reconciled timestamp with a value for every metric in the
// table schema; cells without a sample within tolerance hold Missing().
type AlignedRow struct {
	Timestamp time.Time
	Values    map[string]float64
}

// AlignedTable is the merged view of the two source series, one row per
// reconciled timestamp, sorted ascending. The Metrics schema is fixed across
// all rows. Not mutated after the aligner returns it.
type AlignedTable struct {
	Metrics []string
	Rows    []AlignedRow
}

// Column extracts one metric across all rows, Missing() where absent.
func (t *AlignedTable) Column(name string) []float64 {
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		v, ok := r.Values[name]
		if !ok {
			v = Missing()
		}
		out[i] = v
	}
	return out
}

// TimeRange returns the first and last row timestamps, zero times when empty.
func (t *AlignedTable) TimeRange() (time.Time, time.Time) {
	if len(t.Rows) == 0 {
		return time.Time{}, time.Time{}
	}
	return t.Rows[0].Timestamp, t.Rows[len(t.Rows)-1].Timestamp
}

// TableFromSeries wraps a single series as an AlignedTable so the renderer can
// chart one log when its counterpart is absent. Schema and row order follow
// the series; cells absent from a sample become Missing().
func TableFromSeries(s *MetricSeries) *AlignedTable {
	t := &AlignedTable{Metrics: append([]string(nil), s.Metrics...)}
	t.Rows = make([]AlignedRow, 0, len(s.Samples))
	for _, sm := range s.Samples {
		row := AlignedRow{Timestamp: sm.Timestamp, Values: make(map[string]float64, len(t.Metrics))}
		for _, m := range t.Metrics {
			if v, ok := sm.Values[m]; ok {
				row.Values[m] = v
			} else {
				row.Values[m] = Missing()
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// CorrelationMatrix maps metric pairs to Pearson coefficients. Symmetric with
// a fixed 1.0 diagonal; pairs that could not be computed (too few overlapping
// samples, zero variance) are reported missing, never zero.
type CorrelationMatrix struct {
	Metrics []string

	coeffs [][]float64
	index  map[string]int
}

// NewCorrelationMatrix allocates an all-missing matrix over metrics.
func NewCorrelationMatrix(metrics []string) *CorrelationMatrix {
	m := &CorrelationMatrix{
		Metrics: append([]string(nil), metrics...),
		coeffs:  make([][]float64, len(metrics)),
		index:   make(map[string]int, len(metrics)),
	}
	for i, name := range m.Metrics {
		m.index[name] = i
		m.coeffs[i] = make([]float64, len(m.Metrics))
		for j := range m.coeffs[i] {
			m.coeffs[i][j] = Missing()
		}
	}
	return m
}

// Set stores a coefficient for both (a,b) and (b,a). Unknown names are ignored.
func (m *CorrelationMatrix) Set(a, b string, v float64) {
	i, oki := m.index[a]
	j, okj := m.index[b]
	if !oki || !okj {
		return
	}
	m.coeffs[i][j] = v
	m.coeffs[j][i] = v
}

// At returns the coefficient for (a, b); ok is false when the pair is missing
// or either metric was excluded from the matrix.
func (m *CorrelationMatrix) At(a, b string) (float64, bool) {
	i, oki := m.index[a]
	j, okj := m.index[b]
	if !oki || !okj {
		return 0, false
	}
	v := m.coeffs[i][j]
	if IsMissing(v) {
		return 0, false
	}
	return v, true
}

// PairCorrelation is one off-diagonal matrix entry, used for ranked listings.
type PairCorrelation struct {
	A, B        string
	Coefficient float64
}

// StrongestPairs returns the off-diagonal entries ordered by absolute
// coefficient descending, at most n (n <= 0 means all).
func (m *CorrelationMatrix) StrongestPairs(n int) []PairCorrelation {
	var pairs []PairCorrelation
	for i, a := range m.Metrics {
		for j := i + 1; j < len(m.Metrics); j++ {
			if v, ok := m.At(a, m.Metrics[j]); ok {
				pairs = append(pairs, PairCorrelation{A: a, B: m.Metrics[j], Coefficient: v})
			}
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return math.Abs(pairs[i].Coefficient) > math.Abs(pairs[j].Coefficient)
	})
	if n > 0 && len(pairs) > n {
		pairs = pairs[:n]
	}
	return pairs
}
