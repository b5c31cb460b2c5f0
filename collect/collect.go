/*
Package collect locates and retrieves the block data that is analyzed by
package extract and package estimate: it maps a calendar day (or a recent-block
window) to a contiguous height range, and fetches the raw block payloads for
that range concurrently while preserving chain order.
*/
package collect

import (
	"fmt"
	"log"
	"os"
	"time"
)

const secondsInDay = 86400

// TipGetter returns the current best block height.
type TipGetter func() (int64, error)

// BlockTimeGetter returns the timestamp and hash of the block at height.
type BlockTimeGetter func(height int64) (time int64, hash string, err error)

// RawBlockGetter returns the full serialized block with the given hash.
type RawBlockGetter func(hash string) ([]byte, error)

// BlockRef identifies one block to be fetched and analyzed.
type BlockRef struct {
	Height int64  `json:"height"`
	Time   int64  `json:"time"`
	Hash   string `json:"hash"`
}

func (r BlockRef) String() string {
	return fmt.Sprintf("BlockRef{height: %d, time: %d}", r.Height, r.Time)
}

// NoDataError is returned by the Locator when no block falls within the
// requested day.
type NoDataError struct {
	DayStart int64
}

func (e NoDataError) Error() string {
	day := time.Unix(e.DayStart, 0).UTC().Format("2006-01-02")
	return fmt.Sprintf("no blocks found for %s", day)
}

type LocatorConfig struct {
	Tip       TipGetter       `yaml:"-" json:"-"`
	BlockTime BlockTimeGetter `yaml:"-" json:"-"`
	Logger    *log.Logger     `yaml:"-" json:"-"`
}

// Locator finds the block height range corresponding to a calendar day or a
// recent-block window. Block timestamps are assumed to be non-decreasing in
// height; small local jitter is tolerated by CollectDay's range filter.
type Locator struct {
	cfg LocatorConfig
}

func NewLocator(cfg LocatorConfig) *Locator {
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &Locator{cfg: cfg}
}

// FirstBlockOfDay returns the lowest height whose block time lies in
// [dayStart, dayStart+86400). dayStart must be a UTC midnight timestamp.
func (l *Locator) FirstBlockOfDay(dayStart int64) (int64, error) {
	tip, err := l.cfg.Tip()
	if err != nil {
		return 0, err
	}

	// Binary search for the lowest height with time >= dayStart.
	lo, hi := int64(0), tip
	for lo < hi {
		mid := lo + (hi-lo)/2
		t, _, err := l.cfg.BlockTime(mid)
		if err != nil {
			return 0, err
		}
		if t < dayStart {
			lo = mid + 1
		} else {
			hi = mid
		}
	}

	t, _, err := l.cfg.BlockTime(lo)
	if err != nil {
		return 0, err
	}
	if t < dayStart || t >= dayStart+secondsInDay {
		return 0, NoDataError{DayStart: dayStart}
	}
	l.cfg.Logger.Printf("[DEBUG] first block of day %d is height %d (time %d)",
		dayStart, lo, t)
	return lo, nil
}

// CollectDay returns refs for every block whose time lies in
// [dayStart, dayStart+86400), in ascending height order. The forward scan
// stops at the first block at or past the day end; blocks with jittered
// timestamps outside the range are skipped, not collected.
func (l *Locator) CollectDay(dayStart int64) ([]BlockRef, error) {
	first, err := l.FirstBlockOfDay(dayStart)
	if err != nil {
		return nil, err
	}
	tip, err := l.cfg.Tip()
	if err != nil {
		return nil, err
	}

	dayEnd := dayStart + secondsInDay
	var refs []BlockRef
	for h := first; h <= tip; h++ {
		t, hash, err := l.cfg.BlockTime(h)
		if err != nil {
			return nil, err
		}
		if t >= dayEnd {
			break
		}
		if t < dayStart {
			continue
		}
		refs = append(refs, BlockRef{Height: h, Time: t, Hash: hash})
	}
	if len(refs) == 0 {
		return nil, NoDataError{DayStart: dayStart}
	}
	return refs, nil
}

// CollectRecent returns refs for the n blocks at heights [tip-n, tip).
func (l *Locator) CollectRecent(n int64) ([]BlockRef, error) {
	if n <= 0 {
		return nil, fmt.Errorf("window size must be > 0, got %d", n)
	}
	tip, err := l.cfg.Tip()
	if err != nil {
		return nil, err
	}
	start := tip - n
	if start < 0 {
		start = 0
	}

	refs := make([]BlockRef, 0, tip-start)
	for h := start; h < tip; h++ {
		t, hash, err := l.cfg.BlockTime(h)
		if err != nil {
			return nil, err
		}
		refs = append(refs, BlockRef{Height: h, Time: t, Hash: hash})
	}
	return refs, nil
}
