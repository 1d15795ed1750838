// Package analysis reconciles the two independently-sampled log series onto
// one timeline and computes pairwise correlations over the result.
package analysis

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/PuddingTower/adrenalin-log-analyzer/src/session"
)

// ErrNoOverlap is returned when the two series' time ranges are disjoint
// beyond the tolerance window: nothing meaningful to align.
var ErrNoOverlap = errors.New("series time ranges do not overlap")

// MatchPolicy selects how a series contributes a value at a union timestamp
// it did not sample exactly. The two sources tick on independent clocks, so
// the policy materially changes how dense the aligned table comes out.
type MatchPolicy int

const (
	// MatchNearest takes the nearest sample within the tolerance window;
	// beyond the window the cell is missing. Preserves sample density
	// without carrying stale values forward.
	MatchNearest MatchPolicy = iota
	// MatchExact only fills cells whose timestamp was sampled exactly;
	// effectively an outer join with no interpolation.
	MatchExact
)

func (p MatchPolicy) String() string {
	switch p {
	case MatchNearest:
		return "nearest"
	case MatchExact:
		return "exact"
	}
	return fmt.Sprintf("MatchPolicy(%d)", int(p))
}

// ParseMatchPolicy maps a flag value to a MatchPolicy.
func ParseMatchPolicy(s string) (MatchPolicy, error) {
	switch s {
	case "nearest", "":
		return MatchNearest, nil
	case "exact":
		return MatchExact, nil
	}
	return 0, fmt.Errorf("unknown match policy %q (want nearest or exact)", s)
}

// DefaultTolerance bounds the nearest-neighbour search. The hardware log
// ticks around 1Hz and the FPS log per-frame-batch; half a second spans the
// clock skew between them without pairing genuinely unrelated samples.
const DefaultTolerance = 500 * time.Millisecond

// AlignOptions configures the aligner. Zero values take the defaults.
type AlignOptions struct {
	Tolerance time.Duration
	Policy    MatchPolicy
}

// Align merges the hardware and FPS/latency series onto the sorted union of
// their timestamps. Each union timestamp gets one row holding every metric
// from both series; a series without a sample at (or near, per policy) that
// timestamp contributes explicit missing markers. Metric names colliding
// across the two files keep the hardware name; the FPS-side duplicate is
// suffixed with its source so no column is lost.
func Align(hw, fps *session.MetricSeries, opts AlignOptions) (*session.AlignedTable, error) {
	defer session.TimeTrack(time.Now(), "align")
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultTolerance
	}
	if len(hw.Samples) == 0 || len(fps.Samples) == 0 {
		return nil, fmt.Errorf("align: empty input series")
	}

	hwLo, hwHi := hw.TimeRange()
	fpsLo, fpsHi := fps.TimeRange()
	if hwHi.Add(opts.Tolerance).Before(fpsLo) || fpsHi.Add(opts.Tolerance).Before(hwLo) {
		return nil, fmt.Errorf("%w: hardware %s..%s vs fps %s..%s", ErrNoOverlap,
			hwLo.Format(time.RFC3339), hwHi.Format(time.RFC3339),
			fpsLo.Format(time.RFC3339), fpsHi.Format(time.RFC3339))
	}

	// Fixed schema: union of both metric lists, hardware first.
	table := &session.AlignedTable{}
	rename := map[string]string{}
	known := map[string]bool{}
	for _, m := range hw.Metrics {
		table.Metrics = append(table.Metrics, m)
		known[m] = true
	}
	for _, m := range fps.Metrics {
		name := m
		if known[name] {
			name = fmt.Sprintf("%s (%s)", m, fps.Source)
		}
		rename[m] = name
		table.Metrics = append(table.Metrics, name)
		known[name] = true
	}

	// A hardware timestamp and an FPS timestamp closer together than the
	// tolerance describe the same instant as seen by two unsynchronized
	// clocks; coalescing that pair keeps one row per reconciled instant
	// instead of two half-filled neighbours. Two samples of the same series
	// never coalesce, no matter how dense the sampling: every source sample
	// keeps a row, so the row count stays at or above the exact-intersection
	// size. Exact policy only deduplicates equal timestamps.
	window := opts.Tolerance
	if opts.Policy == MatchExact {
		window = 0
	}
	union := unionTimestamps(hw.Samples, fps.Samples, window)
	table.Rows = make([]session.AlignedRow, 0, len(union))
	for _, ts := range union {
		row := session.AlignedRow{Timestamp: ts, Values: make(map[string]float64, len(table.Metrics))}
		for _, m := range table.Metrics {
			row.Values[m] = session.Missing()
		}
		fillFromSeries(&row, hw.Samples, ts, opts, nil)
		fillFromSeries(&row, fps.Samples, ts, opts, rename)
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// unionTimestamps merges the two sorted sample sequences into a sorted
// timestamp slice. A timestamp folds into the previously kept one only when
// it is exactly equal, or when it lies within window and the kept cluster has
// not yet absorbed a timestamp from its series. Same-series neighbours
// therefore always stay distinct rows: the result never exceeds the raw union
// size and never drops below the exact-intersection size.
func unionTimestamps(a, b []session.Sample, window time.Duration) []time.Time {
	type tagged struct {
		ts  time.Time
		src int
	}
	all := make([]tagged, 0, len(a)+len(b))
	for _, s := range a {
		all = append(all, tagged{ts: s.Timestamp, src: 0})
	}
	for _, s := range b {
		all = append(all, tagged{ts: s.Timestamp, src: 1})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].ts.Before(all[j].ts) })

	var kept []time.Time
	var seen [2]bool
	for i, t := range all {
		switch {
		case i == 0:
			kept = append(kept, t.ts)
			seen = [2]bool{}
		case t.ts.Equal(kept[len(kept)-1]):
			// Same instant in both logs (or a duplicate row); one cluster.
		case t.ts.Sub(kept[len(kept)-1]) <= window && !seen[t.src]:
			// Cross-series skew within tolerance; fold into the cluster.
		default:
			kept = append(kept, t.ts)
			seen = [2]bool{}
		}
		seen[t.src] = true
	}
	return kept
}

// fillFromSeries copies the matched sample's values into row, applying the
// optional rename map. No match within tolerance leaves the cells missing.
func fillFromSeries(row *session.AlignedRow, samples []session.Sample, ts time.Time, opts AlignOptions, rename map[string]string) {
	idx, dist := nearestSample(samples, ts)
	if idx < 0 {
		return
	}
	switch opts.Policy {
	case MatchExact:
		if dist != 0 {
			return
		}
	default:
		if dist > opts.Tolerance {
			return
		}
	}
	for m, v := range samples[idx].Values {
		if rename != nil {
			if r, ok := rename[m]; ok {
				m = r
			}
		}
		row.Values[m] = v
	}
}

// nearestSample returns the index of the sample closest to ts and its
// absolute distance. Ties between the neighbours on either side resolve to
// the earlier sample for determinism. idx is -1 only for an empty slice.
func nearestSample(samples []session.Sample, ts time.Time) (idx int, dist time.Duration) {
	if len(samples) == 0 {
		return -1, 0
	}
	i := sort.Search(len(samples), func(i int) bool {
		return !samples[i].Timestamp.Before(ts)
	})
	if i == len(samples) {
		i--
	} else if i > 0 {
		after := samples[i].Timestamp.Sub(ts)
		before := ts.Sub(samples[i-1].Timestamp)
		if before <= after {
			i--
		}
	}
	d := samples[i].Timestamp.Sub(ts)
	if d < 0 {
		d = -d
	}
	return i, d
}
