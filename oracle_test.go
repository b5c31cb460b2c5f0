package main

import (
	"fmt"
	"io"
	"log"
	"testing"

	col "github.com/bitcoinprice/utxoracle/collect"
	dbolt "github.com/bitcoinprice/utxoracle/db/bolt"
	est "github.com/bitcoinprice/utxoracle/estimate"
	"github.com/bitcoinprice/utxoracle/testutil"
)

type memRateDB struct {
	m map[int64]*dbolt.DayRate
}

func newMemRateDB() *memRateDB {
	return &memRateDB{m: make(map[int64]*dbolt.DayRate)}
}

func (d *memRateDB) Get(day int64) (*dbolt.DayRate, error) { return d.m[day], nil }
func (d *memRateDB) Put(day int64, r *dbolt.DayRate) error { d.m[day] = r; return nil }
func (d *memRateDB) Close() error                          { return nil }

func (d *memRateDB) Delete(start, end int64) error {
	for day := range d.m {
		if day >= start && day <= end {
			delete(d.m, day)
		}
	}
	return nil
}

// testOracle builds an oracle over a synthetic 5-block chain: height 0 in day
// 0, heights 1-4 in day 1. Each block carries a coinbase and two candidate
// payments.
func testOracle(t *testing.T, ratedb RateDB) *Oracle {
	times := []int64{100, 86400, 87000, 87600, 88200}
	blocks := make(map[string][]byte)
	id := 0
	for h := range times {
		txs := []testutil.TxSpec{{Coinbase: true, Values: []float64{3.125}}}
		for i := 0; i < 2; i++ {
			id++
			txs = append(txs, testutil.TxSpec{
				PrevTxids: []string{fmt.Sprintf("%064x", id)},
				Values:    []float64{0.002 + float64(id)*0.0001, 0.0017},
			})
		}
		blocks[fmt.Sprintf("hash%d", h)] = testutil.SerializeBlock(txs...)
	}

	cfg := defaultOracleConfig
	cfg.Window = 4
	cfg.Fetch.Concurrency = 2
	cfg.Fetch.RawBlock = func(hash string) ([]byte, error) {
		raw, ok := blocks[hash]
		if !ok {
			return nil, fmt.Errorf("unknown block %s", hash)
		}
		return raw, nil
	}
	cfg.tip = func() (int64, error) {
		return int64(len(times) - 1), nil
	}
	cfg.blockTime = func(h int64) (int64, string, error) {
		if h < 0 || h >= int64(len(times)) {
			return 0, "", fmt.Errorf("height %d out of range", h)
		}
		return times[h], fmt.Sprintf("hash%d", h), nil
	}
	cfg.logger = log.New(io.Discard, "", 0)

	oracle, err := NewOracle(ratedb, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return oracle
}

func TestEstimateDate(t *testing.T) {
	db := newMemRateDB()
	o := testOracle(t, db)

	r, err := o.EstimateDate(86400)
	if err != nil {
		t.Fatal(err)
	}
	if err := testutil.CheckEqual(
		[]int64{r.Blocks, r.FirstHeight, r.LastHeight, r.Outputs},
		[]int64{4, 1, 4, 16}); err != nil {
		t.Error(err)
	}
	if r.Rate <= 0 {
		t.Errorf("expected a positive rate, got %v", r.Rate)
	}

	// The completed day must have been cached, and the cache must answer the
	// next query.
	if db.m[86400] == nil {
		t.Fatal("completed day not stored")
	}
	sentinel := &dbolt.DayRate{RateEstimate: est.RateEstimate{Rate: 12345}}
	db.m[86400] = sentinel
	r, err = o.EstimateDate(86400)
	if err != nil {
		t.Fatal(err)
	}
	if err := testutil.CheckEqual(r.Rate, 12345.0); err != nil {
		t.Error(err)
	}
}

func TestEstimateDateNoData(t *testing.T) {
	o := testOracle(t, newMemRateDB())

	_, err := o.EstimateDate(2 * 86400)
	if err == nil {
		t.Fatal("expected error for a day past the tip")
	}
	if _, ok := err.(col.NoDataError); !ok {
		t.Errorf("expected NoDataError, got %T: %v", err, err)
	}
}

func TestEstimateRecentWindow(t *testing.T) {
	o := testOracle(t, newMemRateDB())

	r, err := o.EstimateRecent(4)
	if err != nil {
		t.Fatal(err)
	}
	if err := testutil.CheckEqual(
		[]int64{r.Blocks, r.FirstHeight, r.LastHeight, r.Outputs},
		[]int64{4, 0, 3, 16}); err != nil {
		t.Error(err)
	}

	// A completed analysis exposes its histogram.
	if o.Histogram() == nil {
		t.Error("expected a histogram after a completed analysis")
	}
}
