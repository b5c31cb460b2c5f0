/*
Package extract decodes raw serialized blocks and extracts the output values
of "simple payment" transactions: the two-output, low-input-count spends whose
value distribution carries the fiat-denomination fingerprint used by package
estimate.
*/
package extract

import (
	"log"
	"os"
)

type Config struct {
	MaxInputs       int     `yaml:"maxinputs" json:"maxinputs"`
	NumOutputs      int     `yaml:"numoutputs" json:"numoutputs"`
	MinValue        float64 `yaml:"minvalue" json:"minvalue"`
	MaxValue        float64 `yaml:"maxvalue" json:"maxvalue"`
	MaxWitnessItems int     `yaml:"maxwitnessitems" json:"maxwitnessitems"`
	MaxWitnessBytes int     `yaml:"maxwitnessbytes" json:"maxwitnessbytes"`

	Logger *log.Logger `yaml:"-" json:"-"`
}

var DefaultConfig = Config{
	MaxInputs:       5,
	NumOutputs:      2,
	MinValue:        1e-5,
	MaxValue:        1e5,
	MaxWitnessItems: 100,
	MaxWitnessBytes: 500,
}

// Window tracks the txids seen so far in one analysis window. It is created
// when a window's processing starts and discarded when it ends; it is not safe
// for concurrent mutation, so extraction must feed it in ascending height
// order.
type Window struct {
	seen map[string]struct{}
}

func NewWindow() *Window {
	return &Window{seen: make(map[string]struct{})}
}

func (w *Window) Add(txid string) {
	w.seen[txid] = struct{}{}
}

func (w *Window) Seen(txid string) bool {
	_, ok := w.seen[txid]
	return ok
}

func (w *Window) Len() int {
	return len(w.seen)
}

// Candidate holds the output values of one transaction that passed all
// filters. A transaction contributes either all its output values or none.
type Candidate struct {
	Txid   string
	Height int64
	Time   int64
	Values []float64 // BTC
}

// Extractor applies the filter chain to decoded transactions.
type Extractor struct {
	filters []FilterFunc
	cfg     Config
	logger  *log.Logger
}

func NewExtractor(cfg Config) *Extractor {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &Extractor{
		filters: DefaultFilters(cfg),
		cfg:     cfg,
		logger:  logger,
	}
}

// ExtractBlock decodes one raw block and returns the candidates that passed
// all filters, in transaction order. Every decoded txid is added to w before
// filtering, so cross-references are caught even for excluded transactions.
// Decode errors never propagate: the block's remaining transactions are
// skipped and whatever was extracted is returned.
func (e *Extractor) ExtractBlock(raw []byte, height, blockTime int64, w *Window) []Candidate {
	txs, err := DecodeBlock(raw)
	if err != nil {
		e.logger.Printf("[DEBUG] block %d: decode stopped after %d txs: %v",
			height, len(txs), err)
	}

	var cands []Candidate
	for _, tx := range txs {
		w.Add(tx.Txid)
		if !e.pass(tx, w) {
			continue
		}
		values := make([]float64, len(tx.Outputs))
		for i, out := range tx.Outputs {
			values[i] = out.Value
		}
		cands = append(cands, Candidate{
			Txid:   tx.Txid,
			Height: height,
			Time:   blockTime,
			Values: values,
		})
	}
	return cands
}

func (e *Extractor) pass(tx *Tx, w *Window) bool {
	for _, f := range e.filters {
		if !f(tx, w) {
			return false
		}
	}
	return true
}
