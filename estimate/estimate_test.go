package estimate

import (
	"io"
	"log"
	"testing"

	"github.com/bitcoinprice/utxoracle/testutil"
)

func testConfig() Config {
	cfg := DefaultConfig
	cfg.Logger = log.New(io.Discard, "", 0)
	return cfg
}

// Synthesize a distribution with mass exactly at the round-dollar bins for a
// known slide and check that Estimate recovers it.
func TestEstimateRecovery(t *testing.T) {
	h := NewHistogram()

	for _, slide := range []int{-60, 0, 60, 120, 180} {
		want := 100 / h.Boundary(refBin+slide)

		e := NewPriceEstimator(testConfig())
		left := refBin - spikeCenter + slide
		for _, sp := range usdSpikes {
			v := h.Boundary(left + sp.pos)
			for i := 0; i < 50; i++ {
				if err := e.AddOutput(v); err != nil {
					t.Fatal(err)
				}
			}
		}

		r, err := e.Estimate()
		if err != nil {
			t.Fatal(err)
		}
		if err := testutil.CheckEqual(r.Slide, int64(slide)); err != nil {
			t.Errorf("slide %d: %v", slide, err)
		}
		if err := testutil.CheckPctDiff(r.Rate, want, 0.02); err != nil {
			t.Errorf("slide %d: %v", slide, err)
		}

		// The refinement must land on the rates implied by the $100 outputs.
		v100 := h.Boundary(refBin + slide)
		if err := testutil.CheckPctDiff(r.Central, 100/v100, 1e-9); err != nil {
			t.Errorf("slide %d: %v", slide, err)
		}
	}
}

// A population paying only round $100 amounts at a known rate must be
// recovered from that single loaded bin.
func TestEstimateSingleBin(t *testing.T) {
	for _, rate := range []float64{15000, 50000, 200000, 450000} {
		e := NewPriceEstimator(testConfig())
		v := 100 / rate
		for i := 0; i < 500; i++ {
			if err := e.AddOutput(v); err != nil {
				t.Fatal(err)
			}
		}

		r, err := e.Estimate()
		if err != nil {
			t.Fatal(err)
		}
		if err := testutil.CheckPctDiff(r.Rate, rate, 0.02); err != nil {
			t.Errorf("rate %v: %v", rate, err)
		}
		// All implied rates are identical, so the refinement is exact.
		if err := testutil.CheckPctDiff(r.Central, 100/v, 1e-9); err != nil {
			t.Errorf("rate %v: %v", rate, err)
		}
	}
}

// With mass spread thinly enough that the ceiling never clips, the cleaned
// in-range bins must sum to one.
func TestCleanNormalization(t *testing.T) {
	h := NewHistogram()
	e := NewPriceEstimator(testConfig())
	for i := 450; i < 1350; i++ {
		if err := e.AddOutput(h.Boundary(i)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := e.Estimate(); err != nil {
		t.Fatal(err)
	}

	var sum float64
	for _, p := range e.Histogram() {
		sum += p.Weight
	}
	if err := testutil.CheckPctDiff(sum, 1.0, 1e-9); err != nil {
		t.Error(err)
	}
}

func TestEstimateNoData(t *testing.T) {
	e := NewPriceEstimator(testConfig())
	if _, err := e.Estimate(); err != ErrNoData {
		t.Errorf("expected ErrNoData, got %v", err)
	}

	// Mass entirely outside the cleaned range degrades to a uniform
	// distribution, not an error.
	e = NewPriceEstimator(testConfig())
	for i := 0; i < 100; i++ {
		e.AddOutput(50000) // 50k BTC, far beyond MaxValue
	}
	if _, err := e.Estimate(); err != nil {
		t.Errorf("expected a (flat) estimate, got %v", err)
	}
}

func TestEstimateTerminal(t *testing.T) {
	e := NewPriceEstimator(testConfig())
	e.AddOutput(0.002)

	if _, err := e.Estimate(); err != nil {
		t.Fatal(err)
	}
	if err := e.AddOutput(0.002); err != ErrEstimated {
		t.Errorf("expected ErrEstimated from AddOutput, got %v", err)
	}
	if _, err := e.Estimate(); err != ErrEstimated {
		t.Errorf("expected ErrEstimated from second Estimate, got %v", err)
	}
}

func TestEstimateHistogramExport(t *testing.T) {
	e := NewPriceEstimator(testConfig())
	if e.Histogram() != nil {
		t.Error("expected nil histogram before Estimate")
	}

	for i := 0; i < 200; i++ {
		e.AddOutput(0.002)
		e.AddOutput(0.05)
		e.AddOutput(0.7)
	}
	if _, err := e.Estimate(); err != nil {
		t.Fatal(err)
	}

	points := e.Histogram()
	if len(points) == 0 {
		t.Fatal("expected a non-empty histogram")
	}
	var sum float64
	for _, p := range points {
		if p.Boundary < DefaultConfig.MinValue || p.Boundary >= DefaultConfig.MaxValue {
			t.Errorf("boundary %v outside the cleaned range", p.Boundary)
		}
		if p.Weight > DefaultConfig.BinCeiling {
			t.Errorf("weight %v exceeds the bin ceiling", p.Weight)
		}
		sum += p.Weight
	}
	// Normalization, minus what the ceiling clipped.
	if sum <= 0 || sum > 1 {
		t.Errorf("histogram weights sum to %v", sum)
	}
}
