package extract

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

const (
	blockHeaderLen = 80
	coin           = 100000000

	// OP_RETURN; an output script starting with this byte carries data, not a
	// spendable condition.
	nullDataOpcode = 0x6a

	// Counts or length prefixes beyond this are treated as stream corruption.
	maxSaneLen = 100000
)

// Input is one decoded transaction input. Witness fields are zero for
// non-segwit inputs.
type Input struct {
	PrevTxid  string // display byte order
	PrevIndex uint32
	Sequence  uint32
	Coinbase  bool

	WitnessItems   int
	WitnessMaxItem int
	WitnessTotal   int
}

// Output is one decoded transaction output.
type Output struct {
	Value       float64 // BTC
	DataCarrier bool
}

// Tx is one decoded transaction.
type Tx struct {
	Txid     string // display byte order
	Version  uint32
	SegWit   bool
	Inputs   []Input
	Outputs  []Output
	LockTime uint32
}

// DecodeBlock decodes the transactions of a serialized block. The 80-byte
// header is skipped, not validated. A malformed transaction leaves the stream
// position unrecoverable, so decoding stops there: the transactions decoded up
// to that point are returned together with the error that stopped the decode.
func DecodeBlock(raw []byte) ([]*Tx, error) {
	r := &reader{buf: raw}
	if _, err := r.bytes(blockHeaderLen); err != nil {
		return nil, fmt.Errorf("block header: %v", err)
	}
	n, err := r.varint()
	if err != nil {
		return nil, fmt.Errorf("tx count: %v", err)
	}
	if n > maxSaneLen {
		return nil, fmt.Errorf("tx count %d exceeds sanity bound", n)
	}

	txs := make([]*Tx, 0, n)
	for i := uint64(0); i < n; i++ {
		tx, err := decodeTx(r)
		if err != nil {
			return txs, fmt.Errorf("tx %d: %v", i, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func decodeTx(r *reader) (*Tx, error) {
	start := r.pos
	version, err := r.uint32()
	if err != nil {
		return nil, err
	}
	tx := &Tx{Version: version}

	// Peek for the segwit marker/flag. A legitimate non-segwit tx never has a
	// zero input count, so 0x00 0x01 here is unambiguous.
	if r.remaining() >= 2 && r.buf[r.pos] == 0x00 && r.buf[r.pos+1] == 0x01 {
		tx.SegWit = true
		r.pos += 2
	}
	bodyStart := r.pos // input count through outputs

	nin, err := r.varlen()
	if err != nil {
		return nil, fmt.Errorf("input count: %v", err)
	}
	tx.Inputs = make([]Input, nin)
	for i := range tx.Inputs {
		if err := decodeInput(r, &tx.Inputs[i]); err != nil {
			return nil, fmt.Errorf("input %d: %v", i, err)
		}
	}

	nout, err := r.varlen()
	if err != nil {
		return nil, fmt.Errorf("output count: %v", err)
	}
	tx.Outputs = make([]Output, nout)
	for i := range tx.Outputs {
		if err := decodeOutput(r, &tx.Outputs[i]); err != nil {
			return nil, fmt.Errorf("output %d: %v", i, err)
		}
	}

	witnessStart := r.pos
	if tx.SegWit {
		for i := range tx.Inputs {
			if err := decodeWitness(r, &tx.Inputs[i]); err != nil {
				return nil, fmt.Errorf("witness %d: %v", i, err)
			}
		}
	}
	locktimeStart := r.pos

	locktime, err := r.uint32()
	if err != nil {
		return nil, fmt.Errorf("locktime: %v", err)
	}
	tx.LockTime = locktime

	// The canonical txid hashes the serialization with witness data stripped:
	// marker/flag and the witness section are spliced out.
	if tx.SegWit {
		stripped := make([]byte, 0, 4+(witnessStart-bodyStart)+(r.pos-locktimeStart))
		stripped = append(stripped, r.buf[start:start+4]...)
		stripped = append(stripped, r.buf[bodyStart:witnessStart]...)
		stripped = append(stripped, r.buf[locktimeStart:r.pos]...)
		tx.Txid = txid(stripped)
	} else {
		tx.Txid = txid(r.buf[start:r.pos])
	}
	return tx, nil
}

func decodeInput(r *reader, in *Input) error {
	prev, err := r.bytes(32)
	if err != nil {
		return err
	}
	index, err := r.uint32()
	if err != nil {
		return err
	}
	slen, err := r.varlen()
	if err != nil {
		return err
	}
	if _, err := r.bytes(int(slen)); err != nil {
		return err
	}
	seq, err := r.uint32()
	if err != nil {
		return err
	}

	in.PrevTxid = displayHash(prev)
	in.PrevIndex = index
	in.Sequence = seq
	in.Coinbase = index == 0xffffffff && allZero(prev)
	return nil
}

func decodeOutput(r *reader, out *Output) error {
	sats, err := r.uint64()
	if err != nil {
		return err
	}
	slen, err := r.varlen()
	if err != nil {
		return err
	}
	script, err := r.bytes(int(slen))
	if err != nil {
		return err
	}

	out.Value = float64(sats) / coin
	out.DataCarrier = len(script) > 0 && script[0] == nullDataOpcode
	return nil
}

func decodeWitness(r *reader, in *Input) error {
	n, err := r.varlen()
	if err != nil {
		return err
	}
	in.WitnessItems = int(n)
	for i := uint64(0); i < n; i++ {
		ilen, err := r.varlen()
		if err != nil {
			return err
		}
		if _, err := r.bytes(int(ilen)); err != nil {
			return err
		}
		if int(ilen) > in.WitnessMaxItem {
			in.WitnessMaxItem = int(ilen)
		}
		in.WitnessTotal += int(ilen)
	}
	return nil
}

// txid double-hashes the (witness-stripped) serialization and reverses the
// digest into display byte order.
func txid(stripped []byte) string {
	first := sha256.Sum256(stripped)
	second := sha256.Sum256(first[:])
	return displayHash(second[:])
}

func displayHash(h []byte) string {
	rev := make([]byte, len(h))
	for i, b := range h {
		rev[len(h)-1-i] = b
	}
	return hex.EncodeToString(rev)
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// reader is a bounds-checked cursor over a raw byte stream.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) remaining() int {
	return len(r.buf) - r.pos
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || n > r.remaining() {
		return nil, fmt.Errorf("need %d bytes, have %d", n, r.remaining())
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) uint64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// varint reads the 1/3/5/9-byte variable-length integer encoding.
func (r *reader) varint() (uint64, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	switch b[0] {
	case 0xfd:
		v, err := r.bytes(2)
		if err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint16(v)), nil
	case 0xfe:
		v, err := r.uint32()
		return uint64(v), err
	case 0xff:
		return r.uint64()
	default:
		return uint64(b[0]), nil
	}
}

// varlen reads a varint used as a count or length prefix, rejecting values
// past the sanity bound.
func (r *reader) varlen() (uint64, error) {
	n, err := r.varint()
	if err != nil {
		return 0, err
	}
	if n > maxSaneLen {
		return 0, fmt.Errorf("length %d exceeds sanity bound", n)
	}
	return n, nil
}
