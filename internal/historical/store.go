package historical

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"dtc-btrex-bridge/pkg/types"
)

// tickBucketName names the bbolt bucket holding raw ticks for one symbol.
func tickBucketName(symbol string) []byte { return []byte("ticks:" + symbol) }

// barBucketName names the bbolt bucket holding OHLCV bars for one
// (symbol, span) pair.
func barBucketName(symbol string, span time.Duration) []byte {
	return []byte(fmt.Sprintf("bars:%s:%s", symbol, span))
}

// Store is the ordered tick/bar store, keyed by nanosecond
// timestamp so range scans come back time-ordered for free.
type Store struct {
	db *bbolt.DB
}

// OpenStore opens (creating if absent) the bbolt database at path.
func OpenStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open historical store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error { return s.db.Close() }

// PutTick appends tick to symbol's tick series. A timestamp collision with
// an existing key is resolved by bumping the candidate key by 1ns until it
// is unique, so two ticks recorded in the same nanosecond never clobber
// each other.
func (s *Store) PutTick(symbol string, tick types.Tick) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(tickBucketName(symbol))
		if err != nil {
			return err
		}
		key := tsKey(tick.Timestamp)
		for b.Get(key) != nil {
			key = bumpKey(key)
		}
		val, err := json.Marshal(tick)
		if err != nil {
			return fmt.Errorf("marshal tick: %w", err)
		}
		return b.Put(key, val)
	})
}

// PutBar upserts a completed OHLCV bar keyed by its bucket start time.
func (s *Store) PutBar(symbol string, span time.Duration, bar types.OHLCVBar) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(barBucketName(symbol, span))
		if err != nil {
			return err
		}
		val, err := json.Marshal(bar)
		if err != nil {
			return fmt.Errorf("marshal bar: %w", err)
		}
		return b.Put(tsKey(bar.Start), val)
	})
}

// QueryTicks returns every tick for symbol with timestamp in [start, end).
func (s *Store) QueryTicks(symbol string, start, end time.Time) ([]types.Tick, error) {
	var out []types.Tick
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(tickBucketName(symbol))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		lo, hi := tsKey(start), tsKey(end)
		for k, v := c.Seek(lo); k != nil && lessKey(k, hi); k, v = c.Next() {
			var t types.Tick
			if err := json.Unmarshal(v, &t); err != nil {
				return fmt.Errorf("unmarshal tick: %w", err)
			}
			out = append(out, t)
		}
		return nil
	})
	return out, err
}

// QueryBars returns every bar for (symbol, span) with start time in
// [start, end).
func (s *Store) QueryBars(symbol string, span time.Duration, start, end time.Time) ([]types.OHLCVBar, error) {
	var out []types.OHLCVBar
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(barBucketName(symbol, span))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		lo, hi := tsKey(start), tsKey(end)
		for k, v := c.Seek(lo); k != nil && lessKey(k, hi); k, v = c.Next() {
			var bar types.OHLCVBar
			if err := json.Unmarshal(v, &bar); err != nil {
				return fmt.Errorf("unmarshal bar: %w", err)
			}
			out = append(out, bar)
		}
		return nil
	})
	return out, err
}

func tsKey(t time.Time) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(t.UnixNano()))
	return key
}

func bumpKey(key []byte) []byte {
	v := binary.BigEndian.Uint64(key)
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, v+1)
	return out
}

func lessKey(a, b []byte) bool {
	return binary.BigEndian.Uint64(a) < binary.BigEndian.Uint64(b)
}
