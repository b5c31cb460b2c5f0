package testutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// TxSpec describes a synthetic transaction to serialize in wire format.
type TxSpec struct {
	// Coinbase builds a single issuance input (zero prev hash, 0xffffffff
	// index); PrevTxids is ignored.
	Coinbase bool

	// PrevTxids are the spent txids in display byte order, one input each.
	PrevTxids []string

	// Values are the output values in BTC.
	Values []float64

	// OpReturn makes the first output a data carrier.
	OpReturn bool

	// Witness holds per-input witness item byte lengths. Non-nil makes the
	// transaction segwit; inner slices may be empty for inputs without items.
	Witness [][]int
}

// SerializeTx builds the wire-format bytes for the spec.
func SerializeTx(t TxSpec) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(2)) // version

	if t.Witness != nil {
		buf.Write([]byte{0x00, 0x01}) // segwit marker and flag
	}

	prevs := t.PrevTxids
	if t.Coinbase {
		prevs = []string{""}
	}
	writeVarint(buf, uint64(len(prevs)))
	for _, prev := range prevs {
		var hash [32]byte
		if !t.Coinbase {
			raw, err := hex.DecodeString(prev)
			if err != nil || len(raw) != 32 {
				panic("testutil: PrevTxids must be 32-byte hex strings")
			}
			// Wire order is the reverse of display order.
			for i, b := range raw {
				hash[31-i] = b
			}
		}
		buf.Write(hash[:])
		index := uint32(0)
		if t.Coinbase {
			index = 0xffffffff
		}
		binary.Write(buf, binary.LittleEndian, index)
		script := bytes.Repeat([]byte{0xab}, 20) // unlocking script filler
		writeVarint(buf, uint64(len(script)))
		buf.Write(script)
		binary.Write(buf, binary.LittleEndian, uint32(0xffffffff)) // sequence
	}

	writeVarint(buf, uint64(len(t.Values)))
	for i, v := range t.Values {
		sats := uint64(v*1e8 + 0.5)
		binary.Write(buf, binary.LittleEndian, sats)
		var script []byte
		if t.OpReturn && i == 0 {
			script = []byte{0x6a, 0x04, 0xde, 0xad, 0xbe, 0xef}
		} else {
			// P2PKH shape
			script = append([]byte{0x76, 0xa9, 0x14}, bytes.Repeat([]byte{0xcd}, 20)...)
			script = append(script, 0x88, 0xac)
		}
		writeVarint(buf, uint64(len(script)))
		buf.Write(script)
	}

	if t.Witness != nil {
		for i := range prevs {
			var items []int
			if i < len(t.Witness) {
				items = t.Witness[i]
			}
			writeVarint(buf, uint64(len(items)))
			for _, n := range items {
				writeVarint(buf, uint64(n))
				buf.Write(bytes.Repeat([]byte{0xee}, n))
			}
		}
	}

	binary.Write(buf, binary.LittleEndian, uint32(0)) // locktime
	return buf.Bytes()
}

// SerializeBlock builds a block: an 80-byte header filler, the tx count, and
// the serialized transactions.
func SerializeBlock(txs ...TxSpec) []byte {
	buf := new(bytes.Buffer)
	buf.Write(bytes.Repeat([]byte{0x11}, 80))
	writeVarint(buf, uint64(len(txs)))
	for _, t := range txs {
		buf.Write(SerializeTx(t))
	}
	return buf.Bytes()
}

// Txid computes the display-order txid of a serialized transaction with the
// witness section already stripped (i.e. a non-segwit serialization).
func Txid(rawTx []byte) string {
	first := sha256.Sum256(rawTx)
	second := sha256.Sum256(first[:])
	rev := make([]byte, 32)
	for i, b := range second[:] {
		rev[31-i] = b
	}
	return hex.EncodeToString(rev)
}

func writeVarint(buf *bytes.Buffer, n uint64) {
	switch {
	case n < 0xfd:
		buf.WriteByte(byte(n))
	case n <= 0xffff:
		buf.WriteByte(0xfd)
		binary.Write(buf, binary.LittleEndian, uint16(n))
	case n <= 0xffffffff:
		buf.WriteByte(0xfe)
		binary.Write(buf, binary.LittleEndian, uint32(n))
	default:
		buf.WriteByte(0xff)
		binary.Write(buf, binary.LittleEndian, n)
	}
}
