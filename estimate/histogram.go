package estimate

import "math"

const (
	firstBinExp   = -6
	lastBinExp    = 6
	binsPerDecade = 200

	// numBins includes the leading zero boundary.
	numBins = (lastBinExp-firstBinExp)*binsPerDecade + 1

	// refBin is the bin whose boundary is exactly 0.001 BTC; the stencils and
	// the slide-to-rate mapping are anchored to it.
	refBin = 1 + (-3-firstBinExp)*binsPerDecade
)

// Histogram accumulates output values into log-spaced bins: binsPerDecade
// samples per decade across [10^firstBinExp, 10^lastBinExp), preceded by a
// zero boundary. Boundaries are computed once and never mutated; the bin for a
// value v is the largest index i with boundary[i] <= v.
type Histogram struct {
	boundaries []float64
	counts     []float64
}

func NewHistogram() *Histogram {
	boundaries := make([]float64, numBins)
	i := 1
	for exp := firstBinExp; exp < lastBinExp; exp++ {
		for b := 0; b < binsPerDecade; b++ {
			boundaries[i] = math.Pow(10, float64(exp)+float64(b)/binsPerDecade)
			i++
		}
	}
	return &Histogram{
		boundaries: boundaries,
		counts:     make([]float64, numBins),
	}
}

func (h *Histogram) NumBins() int {
	return numBins
}

func (h *Histogram) Boundary(i int) float64 {
	return h.boundaries[i]
}

// Bin returns the largest index whose boundary does not exceed v, clamped to
// the valid range. The initial estimate maps log10(v) linearly onto the bin
// grid; a short local scan then lands on the true bin.
func (h *Histogram) Bin(v float64) int {
	if v <= 0 {
		return 0
	}
	span := float64(lastBinExp - firstBinExp)
	pct := (math.Log10(v) - firstBinExp) / span
	i := int(pct * numBins)
	if i < 0 {
		i = 0
	}
	if i > numBins-1 {
		i = numBins - 1
	}
	for i+1 < numBins && h.boundaries[i+1] <= v {
		i++
	}
	for i > 0 && h.boundaries[i] > v {
		i--
	}
	return i
}

// Add increments the bin holding v. Non-positive values are ignored.
func (h *Histogram) Add(v float64) {
	if v <= 0 {
		return
	}
	h.counts[h.Bin(v)]++
}

// Mass returns the total count across all bins.
func (h *Histogram) Mass() float64 {
	var sum float64
	for _, c := range h.counts {
		sum += c
	}
	return sum
}
