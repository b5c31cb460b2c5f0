// Central-tendency refinement over implied rates.

package estimate

import (
	"math"
	"sort"
)

// Refine finds the fixed point of a banded central-tendency search: points
// within band (a fraction, e.g. 0.05 for ±5%) of center are selected, the
// member minimizing total absolute distance to the others becomes the new
// center, and the process repeats until the center recurs. A visited set
// guarantees termination even if the center oscillates. Returns the converged
// central value and its median absolute deviation; ok is false if no points
// ever fall inside the band.
func Refine(points []float64, center, band float64) (central, mad float64, ok bool) {
	sorted := make([]float64, len(points))
	copy(sorted, points)
	sort.Float64s(sorted)

	visited := make(map[float64]struct{})
	for {
		lo := center * (1 - band)
		hi := center * (1 + band)
		i := searchFloat64s(sorted, lo)
		j := searchFloat64s(sorted, hi)
		if i >= j {
			return 0, 0, false
		}
		w := sorted[i:j]

		central = argminAbsDistance(w)
		mad = medianAbsDev(w, central)
		if _, seen := visited[central]; seen || central == center {
			return central, mad, true
		}
		visited[central] = struct{}{}
		center = central
	}
}

// argminAbsDistance returns the element of the sorted slice w minimizing the
// total absolute distance to all elements. With prefix sums, the cost at each
// element is computable in constant time, so the whole scan is linear.
func argminAbsDistance(w []float64) float64 {
	n := len(w)
	prefix := make([]float64, n+1)
	for i, v := range w {
		prefix[i+1] = prefix[i] + v
	}
	total := prefix[n]

	best, bestCost := w[0], math.Inf(1)
	for i, v := range w {
		left := v*float64(i) - prefix[i]
		right := (total - prefix[i+1]) - v*float64(n-i-1)
		if cost := left + right; cost < bestCost {
			bestCost, best = cost, v
		}
	}
	return best
}

// medianAbsDev is the median of |w[i] - c|.
func medianAbsDev(w []float64, c float64) float64 {
	d := make([]float64, len(w))
	for i, v := range w {
		d[i] = math.Abs(v - c)
	}
	sort.Float64s(d)
	n := len(d)
	if n%2 == 1 {
		return d[n/2]
	}
	return 0.5 * (d[n/2-1] + d[n/2])
}

// searchFloat64s optimizes sort.SearchFloat64s by inlining f.
func searchFloat64s(a []float64, x float64) int {
	n := len(a)
	// Define f(-1) == false and f(n) == true.
	// Invariant: f(i-1) == false, f(j) == true.
	i, j := 0, n
	for i < j {
		h := i + (j-i)/2 // avoid overflow when computing h
		if a[h] < x {
			i = h + 1 // preserves f(i-1) == false
		} else {
			j = h // preserves f(j) == true
		}
	}
	return i
}
