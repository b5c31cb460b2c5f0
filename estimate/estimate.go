/*
Package estimate infers a USD exchange rate from the distribution of extracted
output values. Values accumulate into a log-scale histogram; after cleaning
and normalization, two fixed stencils (a sparse round-dollar spike pattern and
a smooth Gaussian envelope) are slid across the histogram and the best-scoring
alignment is mapped back to a rate. An optional refinement pass then finds the
central tendency of the individually implied rates.
*/
package estimate

import (
	"errors"
	"log"
	"math"
	"os"
)

// referenceUSD is the fiat amount the stencil anchor represents: the refBin
// boundary (0.001 BTC) shifted by the winning slide is read as a $100 payment.
const referenceUSD = 100

var (
	// ErrNoData means the histogram held no mass before cleaning; any rate
	// computed from it would be meaningless.
	ErrNoData = errors.New("no output data in histogram")

	// ErrEstimated guards the one-shot estimate contract: cleaning is
	// destructive to raw counts, so the estimator cannot be reused.
	ErrEstimated = errors.New("estimator already consumed by Estimate")
)

// roundAmountBins are the bins for round BTC amounts (1e-5, 1e-4, 2e-4, ...,
// 0.5, 1.0). Round-BTC payment habits inflate these bins for reasons unrelated
// to price, so cleaning replaces each with the average of its neighbors.
var roundAmountBins = []int{
	201, 401, 461, 496, 540, 601, 661, 696, 740, 801,
	861, 896, 940, 1001, 1061, 1096, 1140, 1201,
}

type Config struct {
	// Slide search bounds, in bins relative to refBin. The defaults cover
	// rates between roughly $500,000 (MinSlide) and $5,000 (MaxSlide).
	MinSlide int `yaml:"minslide" json:"minslide"`
	MaxSlide int `yaml:"maxslide" json:"maxslide"`

	// The smooth stencil only describes the plausible-price region; above
	// this slide its dot product is excluded from the score.
	SmoothSlideMax int     `yaml:"smoothslidemax" json:"smoothslidemax"`
	SmoothWeight   float64 `yaml:"smoothweight" json:"smoothweight"`

	// Post-normalization ceiling on any single bin.
	BinCeiling float64 `yaml:"binceiling" json:"binceiling"`

	// Cleaning cutoffs: bins below MinValue or above MaxValue BTC are zeroed.
	MinValue float64 `yaml:"minvalue" json:"minvalue"`
	MaxValue float64 `yaml:"maxvalue" json:"maxvalue"`

	// Refinement band half-width as a fraction of the rough rate.
	RefineBand float64 `yaml:"refineband" json:"refineband"`

	Logger *log.Logger `yaml:"-" json:"-"`
}

var DefaultConfig = Config{
	MinSlide:       -141,
	MaxSlide:       201,
	SmoothSlideMax: 150,
	SmoothWeight:   0.65,
	BinCeiling:     0.008,
	MinValue:       1e-4, // 10,000 sats
	MaxValue:       10.0,
	RefineBand:     0.05,
}

// RateEstimate is the result of one estimation run.
type RateEstimate struct {
	Rate      float64 `json:"rate"`      // blended rough rate, USD per BTC
	Slide     int64   `json:"slide"`     // winning stencil shift
	Score     float64 `json:"score"`     // winning match score
	MeanScore float64 `json:"meanscore"` // mean score across the search range
	Central   float64 `json:"central"`   // refined central rate; 0 if refinement found no band
	MAD       float64 `json:"mad"`       // median absolute deviation from Central
	Outputs   int64   `json:"outputs"`   // output values accumulated
}

// HistogramPoint is one (bin boundary, normalized weight) pair of the cleaned
// histogram, exported for external visualization.
type HistogramPoint struct {
	Boundary float64 `json:"boundary"`
	Weight   float64 `json:"weight"`
}

// PriceEstimator accumulates output values and produces a one-shot rate
// estimate. Not safe for concurrent use.
type PriceEstimator struct {
	hist   *Histogram
	spike  []float64
	smooth []float64
	values []float64 // raw BTC values, kept for refinement
	cfg    Config
	logger *log.Logger
	done   bool
}

func NewPriceEstimator(cfg Config) *PriceEstimator {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &PriceEstimator{
		hist:   NewHistogram(),
		spike:  spikeStencil(),
		smooth: smoothStencil(),
		cfg:    cfg,
		logger: logger,
	}
}

// AddOutput accumulates one output value (in BTC). Non-positive values are
// ignored. Returns ErrEstimated once Estimate has run.
func (e *PriceEstimator) AddOutput(v float64) error {
	if e.done {
		return ErrEstimated
	}
	if v <= 0 {
		return nil
	}
	e.hist.Add(v)
	e.values = append(e.values, v)
	return nil
}

// Estimate cleans the histogram, finds the best stencil alignment, blends it
// with its more plausible neighbor, and refines the result against the raw
// values. It is terminal: the histogram is consumed.
func (e *PriceEstimator) Estimate() (*RateEstimate, error) {
	if e.done {
		return nil, ErrEstimated
	}
	e.done = true

	if e.hist.Mass() == 0 {
		return nil, ErrNoData
	}
	e.clean()

	var (
		bestSlide int
		bestScore float64
		total     float64
	)
	for slide := e.cfg.MinSlide; slide < e.cfg.MaxSlide; slide++ {
		score := e.slideScore(slide)
		total += score
		if score > bestScore {
			bestScore, bestSlide = score, slide
		}
	}
	mean := total / float64(e.cfg.MaxSlide-e.cfg.MinSlide)

	// Blend with the better-scoring neighbor, weighted by how far each score
	// stands out from the mean: a sharp peak dominates, a near-flat landscape
	// blends toward 50/50.
	up, down := e.slideScore(bestSlide+1), e.slideScore(bestSlide-1)
	neighbor, neighborScore := bestSlide+1, up
	if down > up {
		neighbor, neighborScore = bestSlide-1, down
	}
	wBest := math.Abs(bestScore - mean)
	wNeighbor := math.Abs(neighborScore - mean)
	var rough float64
	if wBest+wNeighbor == 0 {
		rough = (e.rate(bestSlide) + e.rate(neighbor)) / 2
	} else {
		rough = (wBest*e.rate(bestSlide) + wNeighbor*e.rate(neighbor)) / (wBest + wNeighbor)
	}
	rough = math.Trunc(rough)

	r := &RateEstimate{
		Rate:      rough,
		Slide:     int64(bestSlide),
		Score:     bestScore,
		MeanScore: mean,
		Outputs:   int64(len(e.values)),
	}

	// Refinement: each raw value, read as a round $100 payment, implies a
	// rate of referenceUSD/v. The central tendency of the implied rates near
	// the rough estimate gives a finer-grained answer than the bin grid.
	if len(e.values) > 0 && rough > 0 {
		implied := make([]float64, len(e.values))
		for i, v := range e.values {
			implied[i] = referenceUSD / v
		}
		if central, mad, ok := Refine(implied, rough, e.cfg.RefineBand); ok {
			r.Central, r.MAD = central, mad
		} else {
			e.logger.Printf("[DEBUG] refinement: no implied rates within %.0f%% of %.0f",
				e.cfg.RefineBand*100, rough)
		}
	}
	return r, nil
}

// Histogram returns the cleaned in-range histogram after Estimate has run,
// and nil before.
func (e *PriceEstimator) Histogram() []HistogramPoint {
	if !e.done {
		return nil
	}
	lo, hi := e.rangeBins()
	points := make([]HistogramPoint, 0, hi-lo)
	for i := lo; i < hi; i++ {
		points = append(points, HistogramPoint{
			Boundary: e.hist.Boundary(i),
			Weight:   e.hist.counts[i],
		})
	}
	return points
}

func (e *PriceEstimator) rangeBins() (lo, hi int) {
	return e.hist.Bin(e.cfg.MinValue), e.hist.Bin(e.cfg.MaxValue)
}

// clean zeroes the untrusted tails, desensitizes the round-BTC bins,
// probability-normalizes the in-range bins, and caps outliers. A zero in-range
// sum degrades to a uniform filler instead of dividing by zero.
func (e *PriceEstimator) clean() {
	counts := e.hist.counts
	lo, hi := e.rangeBins()

	for i := range counts {
		if i < lo || i >= hi {
			counts[i] = 0
		}
	}

	for _, r := range roundAmountBins {
		if r <= lo || r >= hi-1 {
			continue
		}
		counts[r] = 0.5 * (counts[r-1] + counts[r+1])
	}

	var sum float64
	for i := lo; i < hi; i++ {
		sum += counts[i]
	}
	if sum == 0 {
		filler := 1 / float64(hi-lo)
		for i := lo; i < hi; i++ {
			counts[i] = filler
		}
		return
	}
	for i := lo; i < hi; i++ {
		counts[i] /= sum
		if counts[i] > e.cfg.BinCeiling {
			counts[i] = e.cfg.BinCeiling
		}
	}
}

// slideScore positions the stencil window so that spikeCenter sits at
// refBin+slide, and scores the alignment. Out-of-range windows score zero.
func (e *PriceEstimator) slideScore(slide int) float64 {
	left := refBin - spikeCenter + slide
	right := left + stencilLen
	if left < 0 || right >= e.hist.NumBins() {
		return 0
	}
	window := e.hist.counts[left:right]

	var spike float64
	for _, sp := range usdSpikes {
		spike += window[sp.pos] * e.spike[sp.pos]
	}
	score := spike

	if slide < e.cfg.SmoothSlideMax {
		var smooth float64
		for i, w := range window {
			smooth += w * e.smooth[i]
		}
		score += e.cfg.SmoothWeight * smooth
	}
	return score
}

// rate maps a slide position to USD per BTC: the boundary of refBin shifted
// by slide is the BTC amount read as referenceUSD.
func (e *PriceEstimator) rate(slide int) float64 {
	b := e.hist.Boundary(refBin + slide)
	if b <= 0 {
		return 0
	}
	return referenceUSD / b
}
