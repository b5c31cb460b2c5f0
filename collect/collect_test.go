package collect

import (
	"fmt"
	"io"
	"log"
	"testing"

	"github.com/bitcoinprice/utxoracle/testutil"
)

// chain is a synthetic chain: index is height, value is block time. Height 4
// has a jittered timestamp that dips below its day start.
var chain = []int64{
	100, 50000, // day 0
	86400, 90000, 86300, 120000, // day 1 (86300 is jitter)
	172800, 200000, // day 2
}

func chainGetters(times []int64) (TipGetter, BlockTimeGetter) {
	tip := func() (int64, error) {
		return int64(len(times) - 1), nil
	}
	blockTime := func(h int64) (int64, string, error) {
		if h < 0 || h >= int64(len(times)) {
			return 0, "", fmt.Errorf("height %d out of range", h)
		}
		return times[h], fmt.Sprintf("hash%d", h), nil
	}
	return tip, blockTime
}

func testLocator(times []int64) *Locator {
	tip, blockTime := chainGetters(times)
	return NewLocator(LocatorConfig{
		Tip:       tip,
		BlockTime: blockTime,
		Logger:    log.New(io.Discard, "", 0),
	})
}

func TestFirstBlockOfDay(t *testing.T) {
	l := testLocator(chain)

	tests := []struct {
		dayStart int64
		want     int64
	}{
		{0, 0},
		{86400, 2},     // block exactly at day start
		{2 * 86400, 6}, // block exactly at day start
	}
	for _, test := range tests {
		got, err := l.FirstBlockOfDay(test.dayStart)
		if err != nil {
			t.Fatal(err)
		}
		if err := testutil.CheckEqual(got, test.want); err != nil {
			t.Errorf("day %d: %v", test.dayStart, err)
		}
	}
}

func TestCollectDay(t *testing.T) {
	l := testLocator(chain)

	refs, err := l.CollectDay(86400)
	if err != nil {
		t.Fatal(err)
	}
	// Height 4 is skipped for its jittered timestamp; height 6 sits exactly on
	// the day end and belongs to the next day.
	var heights []int64
	for _, r := range refs {
		heights = append(heights, r.Height)
	}
	if err := testutil.CheckEqual(heights, []int64{2, 3, 5}); err != nil {
		t.Error(err)
	}

	refs, err = l.CollectDay(2 * 86400)
	if err != nil {
		t.Fatal(err)
	}
	heights = heights[:0]
	for _, r := range refs {
		heights = append(heights, r.Height)
	}
	if err := testutil.CheckEqual(heights, []int64{6, 7}); err != nil {
		t.Error(err)
	}
}

func TestCollectDayNoData(t *testing.T) {
	l := testLocator(chain)

	_, err := l.CollectDay(3 * 86400)
	if err == nil {
		t.Fatal("expected error for a day past the tip")
	}
	if _, ok := err.(NoDataError); !ok {
		t.Errorf("expected NoDataError, got %T: %v", err, err)
	}

	// A day gap inside the chain: no block times in [someday, someday+86400).
	gappy := []int64{100, 200, 3 * 86400, 3*86400 + 100}
	l = testLocator(gappy)
	_, err = l.CollectDay(86400)
	if _, ok := err.(NoDataError); !ok {
		t.Errorf("expected NoDataError, got %T: %v", err, err)
	}
}

func TestCollectRecent(t *testing.T) {
	l := testLocator(chain)

	refs, err := l.CollectRecent(3)
	if err != nil {
		t.Fatal(err)
	}
	var heights []int64
	for _, r := range refs {
		heights = append(heights, r.Height)
	}
	if err := testutil.CheckEqual(heights, []int64{4, 5, 6}); err != nil {
		t.Error(err)
	}

	// Asking for more than the chain holds clamps to genesis.
	refs, err = l.CollectRecent(100)
	if err != nil {
		t.Fatal(err)
	}
	if err := testutil.CheckEqual(len(refs), 7); err != nil {
		t.Error(err)
	}

	if _, err := l.CollectRecent(0); err == nil {
		t.Error("expected error for a zero-size window")
	}
}
