// Package bolt persists daily rate estimates in a boltdb file, so a calendar
// day is only ever analyzed once.
package bolt

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/boltdb/bolt"

	est "github.com/bitcoinprice/utxoracle/estimate"
)

// DayRate is one stored estimation result: the estimate itself plus the block
// window it was computed from. All fields are fixed-size for binary encoding.
type DayRate struct {
	est.RateEstimate

	Blocks      int64 `json:"blocks"`
	FirstHeight int64 `json:"firstheight"`
	LastHeight  int64 `json:"lastheight"`
	Computed    int64 `json:"computed"` // unix time the estimate was produced
}

type ratedb struct {
	db         *bolt.DB
	byteOrder  binary.ByteOrder
	rateBucket []byte
}

func LoadRateDB(dbfile string) (*ratedb, error) {
	db, err := bolt.Open(dbfile, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	d := &ratedb{
		db:         db,
		byteOrder:  binary.BigEndian,
		rateBucket: []byte("rates"),
	}
	err = d.db.Update(func(tr *bolt.Tx) error {
		_, err := tr.CreateBucketIfNotExists(d.rateBucket)
		return err
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Get returns the stored estimate for the day starting at dayStart, or nil if
// the day has not been analyzed.
func (d *ratedb) Get(dayStart int64) (*DayRate, error) {
	var r *DayRate
	err := d.db.View(func(tr *bolt.Tx) error {
		v := tr.Bucket(d.rateBucket).Get(itob(dayStart))
		if v == nil {
			return nil
		}
		r = new(DayRate)
		return binary.Read(bytes.NewBuffer(v), d.byteOrder, r)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (d *ratedb) Put(dayStart int64, r *DayRate) error {
	return d.db.Update(func(tr *bolt.Tx) error {
		value := new(bytes.Buffer)
		if err := binary.Write(value, d.byteOrder, r); err != nil {
			return err
		}
		return tr.Bucket(d.rateBucket).Put(itob(dayStart), value.Bytes())
	})
}

func (d *ratedb) Delete(start, end int64) error {
	return d.db.Update(func(tr *bolt.Tx) error {
		b := tr.Bucket(d.rateBucket)
		c := b.Cursor()
		startkey, endkey := itob(start), itob(end)
		var del [][]byte
		for k, _ := c.Seek(startkey); k != nil && bytes.Compare(k, endkey) <= 0; k, _ = c.Next() {
			del = append(del, k)
		}
		for _, k := range del {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *ratedb) Close() error {
	return d.db.Close()
}

func itob(i int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(i))
	return b
}
