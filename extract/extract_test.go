package extract

import (
	"io"
	"log"
	"testing"

	"github.com/bitcoinprice/utxoracle/testutil"
)

func testExtractor() *Extractor {
	cfg := DefaultConfig
	cfg.Logger = log.New(io.Discard, "", 0)
	return NewExtractor(cfg)
}

func TestExtractBlock(t *testing.T) {
	good := testutil.TxSpec{
		PrevTxids: []string{hexid(1)},
		Values:    []float64{0.5, 0.123},
	}
	goodTxid := testutil.Txid(testutil.SerializeTx(good))

	manyInputs := testutil.TxSpec{
		PrevTxids: []string{hexid(2), hexid(3), hexid(4), hexid(5), hexid(6), hexid(7)},
		Values:    []float64{0.1, 0.2},
	}
	threeOutputs := testutil.TxSpec{
		PrevTxids: []string{hexid(8)},
		Values:    []float64{0.1, 0.2, 0.3},
	}
	coinbase := testutil.TxSpec{Coinbase: true, Values: []float64{3.125, 0.01}}
	opret := testutil.TxSpec{
		PrevTxids: []string{hexid(9)},
		Values:    []float64{0, 0.7},
		OpReturn:  true,
	}
	dust := testutil.TxSpec{
		PrevTxids: []string{hexid(10)},
		Values:    []float64{0.000005, 0.2},
	}
	bigWitness := testutil.TxSpec{
		PrevTxids: []string{hexid(11)},
		Values:    []float64{0.1, 0.2},
		Witness:   [][]int{{600}},
	}
	reuse := testutil.TxSpec{
		PrevTxids: []string{goodTxid},
		Values:    []float64{0.3, 0.15},
	}

	raw := testutil.SerializeBlock(
		coinbase, good, manyInputs, threeOutputs, opret, dust, bigWitness, reuse)

	e := testExtractor()
	w := NewWindow()
	cands := e.ExtractBlock(raw, 800000, 1700000000, w)

	if err := testutil.CheckEqual(len(cands), 1); err != nil {
		t.Fatal(err)
	}
	if err := testutil.CheckEqual(cands[0].Txid, goodTxid); err != nil {
		t.Error(err)
	}
	if err := testutil.CheckEqual(cands[0].Values, []float64{0.5, 0.123}); err != nil {
		t.Error(err)
	}
	if err := testutil.CheckEqual(cands[0].Height, int64(800000)); err != nil {
		t.Error(err)
	}

	// Every decoded tx is in the window, candidate or not.
	if err := testutil.CheckEqual(w.Len(), 8); err != nil {
		t.Error(err)
	}
}

// A transaction that fails the filters must still poison later same-window
// spends of its outputs.
func TestExtractFilteredStillSeen(t *testing.T) {
	parent := testutil.TxSpec{
		PrevTxids: []string{hexid(1)},
		Values:    []float64{0.1, 0.2, 0.3}, // three outputs: filtered out
	}
	parentTxid := testutil.Txid(testutil.SerializeTx(parent))
	child := testutil.TxSpec{
		PrevTxids: []string{parentTxid},
		Values:    []float64{0.1, 0.15},
	}

	e := testExtractor()
	w := NewWindow()

	cands := e.ExtractBlock(testutil.SerializeBlock(parent), 1, 100, w)
	if err := testutil.CheckEqual(len(cands), 0); err != nil {
		t.Fatal(err)
	}
	cands = e.ExtractBlock(testutil.SerializeBlock(child), 2, 200, w)
	if err := testutil.CheckEqual(len(cands), 0); err != nil {
		t.Error(err)
	}
}

// The same spend is a candidate again in a fresh window.
func TestExtractWindowScope(t *testing.T) {
	a := testutil.TxSpec{
		PrevTxids: []string{hexid(1)},
		Values:    []float64{0.5, 0.123},
	}
	b := testutil.TxSpec{
		PrevTxids: []string{testutil.Txid(testutil.SerializeTx(a))},
		Values:    []float64{0.3, 0.15},
	}

	e := testExtractor()

	w1 := NewWindow()
	e.ExtractBlock(testutil.SerializeBlock(a), 1, 100, w1)
	cands := e.ExtractBlock(testutil.SerializeBlock(b), 2, 200, w1)
	if err := testutil.CheckEqual(len(cands), 0); err != nil {
		t.Fatal(err)
	}

	w2 := NewWindow()
	cands = e.ExtractBlock(testutil.SerializeBlock(b), 2, 200, w2)
	if err := testutil.CheckEqual(len(cands), 1); err != nil {
		t.Error(err)
	}
}

// A truncated block yields the candidates decoded before the corruption
// point; the error never propagates.
func TestExtractTruncated(t *testing.T) {
	a := testutil.TxSpec{
		PrevTxids: []string{hexid(1)},
		Values:    []float64{0.5, 0.123},
	}
	b := testutil.TxSpec{
		PrevTxids: []string{hexid(2)},
		Values:    []float64{0.3, 0.15},
	}
	raw := testutil.SerializeBlock(a, b)

	e := testExtractor()
	cands := e.ExtractBlock(raw[:len(raw)-10], 1, 100, NewWindow())
	if err := testutil.CheckEqual(len(cands), 1); err != nil {
		t.Error(err)
	}
}

func TestValueRangeBounds(t *testing.T) {
	f := ValueRange(1e-5, 1e5)
	tests := []struct {
		value float64
		want  bool
	}{
		{1e-5, false}, // exactly the min is excluded
		{1.1e-5, true},
		{0.5, true},
		{99999, true},
		{1e5, false}, // exactly the max is excluded
	}
	for _, test := range tests {
		tx := &Tx{Outputs: []Output{{Value: test.value}, {Value: 0.5}}}
		if got := f(tx, nil); got != test.want {
			t.Errorf("ValueRange(%v): got %v, want %v", test.value, got, test.want)
		}
	}
}
