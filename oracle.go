package main

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	col "github.com/bitcoinprice/utxoracle/collect"
	dbolt "github.com/bitcoinprice/utxoracle/db/bolt"
	est "github.com/bitcoinprice/utxoracle/estimate"
	"github.com/bitcoinprice/utxoracle/extract"
)

var errPause = errors.New("oracle is paused")
var errInProgress = errors.New("estimate is in progress")
var errShutdown = errors.New("oracle is shutting down")

type RateDB interface {
	Get(dayStart int64) (*dbolt.DayRate, error)
	Put(dayStart int64, r *dbolt.DayRate) error
	Delete(start, end int64) error
	Close() error
}

type Oracle struct {
	latest    *dbolt.DayRate
	latestErr error
	hist      []est.HistogramPoint

	locator *col.Locator
	fetcher *col.Fetcher
	ratedb  RateDB
	cfg     OracleConfig

	pause chan bool
	done  chan struct{}
	wg    sync.WaitGroup
	mux   sync.RWMutex
}

type OracleConfig struct {
	// Window is the number of recent blocks analyzed by the periodic estimate.
	Window int64 `yaml:"window" json:"window"`

	// EstimatePeriod is the seconds between periodic estimates.
	EstimatePeriod int `yaml:"estimateperiod" json:"estimateperiod"`

	Fetch    col.FetcherConfig `yaml:"fetch" json:"fetch"`
	Extract  extract.Config    `yaml:"extract" json:"extract"`
	Estimate est.Config        `yaml:"estimate" json:"estimate"`

	tip       col.TipGetter
	blockTime col.BlockTimeGetter
	logger    *log.Logger
}

func NewOracle(ratedb RateDB, cfg OracleConfig) (*Oracle, error) {
	if cfg.tip == nil || cfg.blockTime == nil || cfg.Fetch.RawBlock == nil {
		return nil, errors.New("chain-data getters not configured")
	}
	if cfg.logger == nil {
		cfg.logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	cfg.Extract.Logger = cfg.logger
	cfg.Estimate.Logger = cfg.logger
	locator := col.NewLocator(col.LocatorConfig{
		Tip:       cfg.tip,
		BlockTime: cfg.blockTime,
		Logger:    cfg.logger,
	})
	oracle := &Oracle{
		locator: locator,
		fetcher: col.NewFetcher(cfg.Fetch),
		ratedb:  ratedb,
		cfg:     cfg,
		pause:   make(chan bool),
		done:    make(chan struct{}),
	}
	return oracle, nil
}

// Run re-estimates the recent-window rate every EstimatePeriod seconds until
// Stop is called. It blocks for the lifetime of the oracle.
func (o *Oracle) Run() error {
	logger := o.cfg.logger
	o.wg.Add(1)
	defer logger.Println("Oracle all stopped.")
	defer o.wg.Wait()
	defer o.wg.Done()
	defer o.ratedb.Close()

	logger.Printf("Oracle v%s starting up..", version)
	if _, err := o.cfg.tip(); err != nil {
		return err
	}

	o.SetLatest(nil, errInProgress)

	o.wg.Add(1)
	go o.loopEstimate(o.cfg.EstimatePeriod)

	logger.Println("Oracle startup complete.")
	<-o.done
	return nil
}

func (o *Oracle) loopEstimate(period int) {
	logger := o.cfg.logger
	defer o.wg.Done()
	defer logger.Println("Estimate loop stopped.")
	ticker := time.NewTicker(time.Duration(period) * time.Second)
	defer func() { ticker.Stop() }() // Stop is idempotent, so no problems here

	for {
		logger.Println("[DEBUG] Recent-window estimate started.")
		r, err := o.EstimateRecent(o.cfg.Window)
		if err != nil {
			logger.Println("[ERROR] EstimateRecent:", err)
			o.SetLatest(nil, err)
		} else {
			logger.Printf("Estimate updated: %.0f USD/BTC over blocks %d-%d.",
				r.Rate, r.FirstHeight, r.LastHeight)
			o.SetLatest(r, nil)
		}

	WaitLoop:
		select {
		case <-ticker.C:
		case p := <-o.pause:
			if p {
				// Pause
				ticker.Stop()
				o.SetLatest(nil, errPause)
				goto WaitLoop
			} else if !o.IsPaused() {
				// Not paused, so no change; wait for ticker
				goto WaitLoop
			}
			// Is paused, so restart the ticker and resume
			ticker = time.NewTicker(time.Duration(period) * time.Second)
			o.SetLatest(nil, errInProgress)
		case <-o.done:
			o.SetLatest(nil, errShutdown)
			return
		}
	}
}

// EstimateDate estimates the rate for the UTC calendar day starting at
// dayStart. Completed days are served from the rate db; the current (partial)
// day is always recomputed and never stored.
func (o *Oracle) EstimateDate(dayStart int64) (*dbolt.DayRate, error) {
	if r, err := o.ratedb.Get(dayStart); err != nil {
		return nil, err
	} else if r != nil {
		return r, nil
	}

	refs, err := o.locator.CollectDay(dayStart)
	if err != nil {
		return nil, err
	}
	r, err := o.analyze(refs)
	if err != nil {
		return nil, err
	}

	// Only a finished day is cacheable; the current day would grow stale.
	if dayStart+86400 <= time.Now().Unix() {
		if err := o.ratedb.Put(dayStart, r); err != nil {
			o.cfg.logger.Println("[ERROR] RateDB put:", err)
		}
	}
	return r, nil
}

// EstimateRecent estimates the rate over the n blocks below the chain tip.
func (o *Oracle) EstimateRecent(n int64) (*dbolt.DayRate, error) {
	refs, err := o.locator.CollectRecent(n)
	if err != nil {
		return nil, err
	}
	return o.analyze(refs)
}

// analyze runs the full pipeline over one block window: fetch, extract with a
// shared same-window txid set, accumulate, estimate.
func (o *Oracle) analyze(refs []col.BlockRef) (*dbolt.DayRate, error) {
	if len(refs) == 0 {
		return nil, errors.New("empty block window")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-o.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	raws, err := o.fetcher.FetchOrdered(ctx, refs)
	if err != nil {
		return nil, err
	}

	extractor := extract.NewExtractor(o.cfg.Extract)
	estimator := est.NewPriceEstimator(o.cfg.Estimate)
	w := extract.NewWindow()
	var ncands int
	for i, raw := range raws {
		cands := extractor.ExtractBlock(raw, refs[i].Height, refs[i].Time, w)
		ncands += len(cands)
		for _, c := range cands {
			for _, v := range c.Values {
				if err := estimator.AddOutput(v); err != nil {
					return nil, err
				}
			}
		}
	}
	o.cfg.logger.Printf("[DEBUG] window %d-%d: %d txs seen, %d candidates.",
		refs[0].Height, refs[len(refs)-1].Height, w.Len(), ncands)

	r, err := estimator.Estimate()
	if err != nil {
		return nil, err
	}
	o.setHistogram(estimator.Histogram())

	d := &dbolt.DayRate{
		RateEstimate: *r,
		Blocks:       int64(len(refs)),
		FirstHeight:  refs[0].Height,
		LastHeight:   refs[len(refs)-1].Height,
		Computed:     time.Now().Unix(),
	}
	return d, nil
}

func (o *Oracle) Status() map[string]string {
	status := make(map[string]string)

	if _, err := o.cfg.tip(); err != nil {
		status["bitcoind"] = err.Error()
	} else {
		status["bitcoind"] = "OK"
	}

	if _, err := o.Latest(); err != nil {
		status["result"] = err.Error()
	} else {
		status["result"] = "OK"
	}

	return status
}

func (o *Oracle) Pause(p bool) {
	o.pause <- p
	if p {
		o.cfg.logger.Println("Oracle paused.")
	} else {
		o.cfg.logger.Println("Oracle unpaused.")
	}
}

func (o *Oracle) Stop() {
	o.closeDone()
	o.wg.Wait()
}

func (o *Oracle) IsPaused() bool {
	_, err := o.Latest()
	if err == errPause {
		return true
	}
	return false
}

func (o *Oracle) Latest() (*dbolt.DayRate, error) {
	o.mux.RLock()
	defer o.mux.RUnlock()
	return o.latest, o.latestErr
}

func (o *Oracle) SetLatest(r *dbolt.DayRate, err error) {
	o.mux.Lock()
	defer o.mux.Unlock()
	o.latest, o.latestErr = r, err
}

// Histogram returns the cleaned, normalized histogram of the most recent
// analysis, or nil if none has completed yet.
func (o *Oracle) Histogram() []est.HistogramPoint {
	o.mux.RLock()
	defer o.mux.RUnlock()
	return o.hist
}

func (o *Oracle) setHistogram(h []est.HistogramPoint) {
	o.mux.Lock()
	defer o.mux.Unlock()
	o.hist = h
}

// closeDone closes o.done in a concurrent-safe way.
func (o *Oracle) closeDone() {
	o.mux.Lock()
	defer o.mux.Unlock()
	select {
	case <-o.done: // Already closed
	default:
		close(o.done)
	}
}
