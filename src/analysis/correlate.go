package analysis

import (
	"math"
	"time"

	"github.com/PuddingTower/adrenalin-log-analyzer/src/session"
)

// DefaultMinSamples is the minimum non-missing sample count a metric needs to
// be retained in the correlation matrix. Below it a coefficient is noise.
const DefaultMinSamples = 3

// CorrelateOptions configures the correlation engine. Zero values take the
// defaults.
type CorrelateOptions struct {
	MinSamples int
}

// Correlate computes the pairwise Pearson matrix over the aligned table.
// A metric with fewer than MinSamples non-missing values is excluded from the
// matrix entirely (an all-empty column never shows up as a row of zeros).
// Each retained pair uses only rows where both metrics are present; pairs
// with too few shared rows, or with zero variance on either side, stay
// missing. The diagonal is fixed at 1.0 without computation, so a constant
// metric never divides by zero against itself.
func Correlate(table *session.AlignedTable, opts CorrelateOptions) *session.CorrelationMatrix {
	defer session.TimeTrack(time.Now(), "correlate")
	minSamples := opts.MinSamples
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}

	var retained []string
	columns := map[string][]float64{}
	for _, m := range table.Metrics {
		col := table.Column(m)
		n := 0
		for _, v := range col {
			if !session.IsMissing(v) {
				n++
			}
		}
		if n < minSamples {
			session.Debugf("correlate: dropping %q (%d non-missing samples, need %d)", m, n, minSamples)
			continue
		}
		retained = append(retained, m)
		columns[m] = col
	}

	matrix := session.NewCorrelationMatrix(retained)
	for i, a := range retained {
		matrix.Set(a, a, 1.0)
		for j := i + 1; j < len(retained); j++ {
			b := retained[j]
			if r, ok := pearson(columns[a], columns[b], minSamples); ok {
				matrix.Set(a, b, r)
			}
		}
	}
	return matrix
}

// pearson computes the Pearson coefficient over pairwise-complete positions
// of xs and ys. ok is false when fewer than minSamples positions are shared
// or either side has zero variance.
func pearson(xs, ys []float64, minSamples int) (r float64, ok bool) {
	var px, py []float64
	for i := range xs {
		if session.IsMissing(xs[i]) || session.IsMissing(ys[i]) {
			continue
		}
		px = append(px, xs[i])
		py = append(py, ys[i])
	}
	n := len(px)
	if n < minSamples {
		return 0, false
	}
	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += px[i]
		sumY += py[i]
	}
	meanX, meanY := sumX/float64(n), sumY/float64(n)
	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx, dy := px[i]-meanX, py[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, false
	}
	r = cov / math.Sqrt(varX*varY)
	// Guard against float drift pushing past the valid range.
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return r, true
}
