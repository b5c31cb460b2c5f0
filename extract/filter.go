package extract

// FilterFunc is one eligibility predicate. A transaction's outputs are
// extracted only if every filter returns true. The set is fixed at
// construction; filters must not mutate tx or w.
type FilterFunc func(tx *Tx, w *Window) bool

// MaxInputs rejects transactions with more than n inputs.
func MaxInputs(n int) FilterFunc {
	return func(tx *Tx, w *Window) bool {
		return len(tx.Inputs) <= n
	}
}

// ExactOutputs keeps only transactions with exactly n outputs (the
// payment-plus-change shape when n is 2).
func ExactOutputs(n int) FilterFunc {
	return func(tx *Tx, w *Window) bool {
		return len(tx.Outputs) == n
	}
}

// NoCoinbase rejects chain-issuance transactions.
func NoCoinbase() FilterFunc {
	return func(tx *Tx, w *Window) bool {
		for _, in := range tx.Inputs {
			if in.Coinbase {
				return false
			}
		}
		return true
	}
}

// NoDataCarrier rejects transactions with an OP_RETURN-style output.
func NoDataCarrier() FilterFunc {
	return func(tx *Tx, w *Window) bool {
		for _, out := range tx.Outputs {
			if out.DataCarrier {
				return false
			}
		}
		return true
	}
}

// ValueRange requires every output value to lie strictly within (min, max).
func ValueRange(min, max float64) FilterFunc {
	return func(tx *Tx, w *Window) bool {
		for _, out := range tx.Outputs {
			if out.Value <= min || out.Value >= max {
				return false
			}
		}
		return true
	}
}

// WitnessLimit rejects transactions whose witness data on any input exceeds
// maxItems stack items, or maxBytes per item or in total. Oversized witnesses
// are a marker for inscription-style data stuffing, not simple payments.
func WitnessLimit(maxItems, maxBytes int) FilterFunc {
	return func(tx *Tx, w *Window) bool {
		for _, in := range tx.Inputs {
			if in.WitnessItems > maxItems {
				return false
			}
			if in.WitnessMaxItem > maxBytes || in.WitnessTotal > maxBytes {
				return false
			}
		}
		return true
	}
}

// NoWindowReuse rejects transactions spending an output of a transaction seen
// earlier in the same analysis window. Same-window chained spends would let
// one denomination echo through the distribution twice.
func NoWindowReuse() FilterFunc {
	return func(tx *Tx, w *Window) bool {
		for _, in := range tx.Inputs {
			if in.Coinbase {
				continue
			}
			if w.Seen(in.PrevTxid) {
				return false
			}
		}
		return true
	}
}

// DefaultFilters is the filter chain for simple-payment extraction.
func DefaultFilters(cfg Config) []FilterFunc {
	return []FilterFunc{
		MaxInputs(cfg.MaxInputs),
		ExactOutputs(cfg.NumOutputs),
		NoCoinbase(),
		NoDataCarrier(),
		ValueRange(cfg.MinValue, cfg.MaxValue),
		WitnessLimit(cfg.MaxWitnessItems, cfg.MaxWitnessBytes),
		NoWindowReuse(),
	}
}
