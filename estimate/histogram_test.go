package estimate

import (
	"testing"

	"github.com/bitcoinprice/utxoracle/testutil"
)

func TestHistogramBoundaries(t *testing.T) {
	h := NewHistogram()

	if err := testutil.CheckEqual(h.Boundary(0), 0.0); err != nil {
		t.Error(err)
	}
	// Decade anchors must be exact up to float rounding.
	anchors := []struct {
		bin  int
		want float64
	}{
		{1, 1e-6},
		{201, 1e-5},
		{401, 1e-4},
		{601, 1e-3}, // the 0.001 BTC stencil anchor
		{801, 1e-2},
		{1001, 0.1},
		{1201, 1.0},
		{1401, 10.0},
		{2201, 1e4},
	}
	for _, a := range anchors {
		if err := testutil.CheckPctDiff(h.Boundary(a.bin), a.want, 1e-9); err != nil {
			t.Errorf("bin %d: %v", a.bin, err)
		}
	}
}

func TestHistogramBin(t *testing.T) {
	h := NewHistogram()

	// Invariant: boundary[Bin(v)] <= v, and v < boundary[Bin(v)+1].
	values := []float64{
		1.1e-6, 9.9e-6, 1e-5, 0.000123, 0.001, 0.0015,
		0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 10, 99, 12345, 9.9e5,
	}
	for _, v := range values {
		i := h.Bin(v)
		if h.Boundary(i) > v {
			t.Errorf("Bin(%v)=%d: boundary %v > value", v, i, h.Boundary(i))
		}
		if i+1 < h.NumBins() && h.Boundary(i+1) <= v {
			t.Errorf("Bin(%v)=%d: next boundary %v <= value", v, i, h.Boundary(i+1))
		}
	}

	// Exact boundary values land on their own bin.
	if err := testutil.CheckEqual(h.Bin(0.001), 601); err != nil {
		t.Error(err)
	}
	if err := testutil.CheckEqual(h.Bin(1.0), 1201); err != nil {
		t.Error(err)
	}

	// Out-of-range values clamp.
	if err := testutil.CheckEqual(h.Bin(1e-9), 0); err != nil {
		t.Error(err)
	}
	if err := testutil.CheckEqual(h.Bin(1e7), h.NumBins()-1); err != nil {
		t.Error(err)
	}
}

func TestHistogramAdd(t *testing.T) {
	h := NewHistogram()

	h.Add(0.001)
	h.Add(0.001)
	h.Add(0.5)
	h.Add(0)    // ignored
	h.Add(-1.5) // ignored

	if err := testutil.CheckEqual(h.Mass(), 3.0); err != nil {
		t.Error(err)
	}
}
