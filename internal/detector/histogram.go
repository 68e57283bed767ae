package detector

import "math"

// emaFastAlpha and emaSlowAlpha are the two EMA decay constants; they are
// not configurable.
const (
	emaFastAlpha = 0.3
	emaSlowAlpha = 0.05

	// anomalousThreshold is the two-sided tail probability below which a
	// datum is declared anomalous.
	anomalousThreshold = 4e-9
)

// Histogram carries one host's running peer-set-size statistics.
// Invariants: count is monotonically non-decreasing; meanOfSquares >=
// avg^2 up to floating-point slack; both EMAs are seeded with the raw
// first value, never decayed in from zero.
type Histogram struct {
	avg                   float64
	meanOfSquares         float64
	emaFast               float64
	emaSlow               float64
	emaFastSq             float64
	emaSlowSq             float64
	count                 uint64
	generationLastUpdated int64
}

// newAverageCalc folds v into a cumulative mean given the count of values
// seen so far (not counting v itself).
func newAverageCalc(prevAvg float64, prevCount uint64, v float64) float64 {
	n := float64(prevCount)
	return (prevAvg*n + v) / (n + 1)
}

// newEMACalc applies one exponential-decay step.
func newEMACalc(prevEMA, v, alpha float64) float64 {
	return alpha*v + (1-alpha)*prevEMA
}

// stddevCalc derives a standard deviation from a mean and mean-of-squares,
// rounding small negative variances (floating-point slack from the
// cumulative-mean recurrence) up to zero rather than propagating NaN.
func stddevCalc(mean, meanOfSquares float64) float64 {
	variance := meanOfSquares - mean*mean
	if variance > -1e-9 && variance <= 0 {
		return 0
	}
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// pushValue folds one generation's datum v into the histogram, advancing
// generationLastUpdated by one, and reports whether v is anomalous against
// any of the three tracked estimators (avg, emaFast, emaSlow).
func (h *Histogram) pushValue(v float64) (anomalous bool) {
	if h.count == 0 {
		h.avg = v
		h.meanOfSquares = v * v
		h.emaFast = v
		h.emaSlow = v
		h.emaFastSq = v * v
		h.emaSlowSq = v * v
	} else {
		newAvg := newAverageCalc(h.avg, h.count, v)
		newMS := newAverageCalc(h.meanOfSquares, h.count, v*v)

		anomalous = anomalous || datumIsAnomalous(v, h.avg, stddevCalc(h.avg, h.meanOfSquares))
		anomalous = anomalous || datumIsAnomalous(v, h.emaFast, stddevCalc(h.emaFast, h.emaFastSq))
		anomalous = anomalous || datumIsAnomalous(v, h.emaSlow, stddevCalc(h.emaSlow, h.emaSlowSq))

		h.avg = newAvg
		h.meanOfSquares = newMS
		h.emaFast = newEMACalc(h.emaFast, v, emaFastAlpha)
		h.emaSlow = newEMACalc(h.emaSlow, v, emaSlowAlpha)
		h.emaFastSq = newEMACalc(h.emaFastSq, v*v, emaFastAlpha)
		h.emaSlowSq = newEMACalc(h.emaSlowSq, v*v, emaSlowAlpha)
	}

	h.count++
	h.generationLastUpdated++
	return anomalous
}

// datumIsAnomalous tests v against a (mean, stddev) estimator under both
// a normal and a Poisson model, flagging anomalous if either two-sided
// tail probability falls below anomalousThreshold.
func datumIsAnomalous(v, mean, stddev float64) bool {
	return normalTailProbability(v, mean, stddev) < anomalousThreshold ||
		poissonTailProbability(v, mean) < anomalousThreshold
}

// normalTailProbability returns the two-sided tail probability of v under
// Normal(mean, stddev).
func normalTailProbability(v, mean, stddev float64) float64 {
	if stddev <= 0 {
		if v == mean {
			return 1
		}
		return 0
	}
	z := (v - mean) / stddev
	upper := 0.5 * math.Erfc(math.Abs(z)/math.Sqrt2)
	p := 2 * upper
	if p > 1 {
		p = 1
	}
	return p
}

// poissonTailProbability returns the two-sided tail probability of the
// integer-rounded v under Poisson(mean), doubling whichever one-sided tail
// (left or right of v) is smaller.
func poissonTailProbability(v, mean float64) float64 {
	if mean <= 0 {
		if v == 0 {
			return 1
		}
		return 0
	}
	k := int(math.Round(v))
	if k < 0 {
		k = 0
	}

	leftTail := poissonCDF(k, mean)
	rightTail := 1.0
	if k > 0 {
		rightTail = 1 - poissonCDF(k-1, mean)
	}

	p := 2 * math.Min(leftTail, rightTail)
	if p > 1 {
		p = 1
	}
	return p
}

// poissonCDF computes P(X <= k) for X ~ Poisson(lambda) by direct
// term-by-term summation using the pmf recurrence pmf(i+1) = pmf(i) *
// lambda / (i+1), which stays numerically stable without per-term
// log-gamma evaluation for the peer-set-size magnitudes this detector
// tracks.
func poissonCDF(k int, lambda float64) float64 {
	pmf := math.Exp(-lambda)
	cdf := pmf
	for i := 1; i <= k; i++ {
		pmf *= lambda / float64(i)
		cdf += pmf
	}
	if cdf > 1 {
		cdf = 1
	}
	return cdf
}
