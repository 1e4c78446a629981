package historical

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bits-and-blooms/bitset"
)

// genesis is the earliest hour the ingester will ever track, fixed so an
// hour index is a plain offset rather than carrying its own epoch.
var genesis = time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)

const hourGranularity = time.Hour

// CtrlFile tracks, per symbol, which 1-hour buckets since genesis have been
// fully ingested, so a restarted pump can resume without re-fetching
// already-covered hours or silently leaving gaps.
type CtrlFile struct {
	mu   sync.Mutex
	path string
	bits map[string]*bitset.BitSet
}

// OpenCtrlFile loads (or creates) the control file at path.
func OpenCtrlFile(path string) (*CtrlFile, error) {
	c := &CtrlFile{path: path, bits: make(map[string]*bitset.BitSet)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("read control file: %w", err)
	}
	if len(data) == 0 {
		return c, nil
	}
	if err := c.decode(data); err != nil {
		return nil, fmt.Errorf("decode control file: %w", err)
	}
	return c, nil
}

// HourIndex converts a timestamp to its genesis-relative hour offset.
func HourIndex(t time.Time) uint {
	return uint(t.UTC().Sub(genesis) / hourGranularity)
}

// IsIngested reports whether symbol's hour bucket at t has been fully pumped.
func (c *CtrlFile) IsIngested(symbol string, t time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	bs, ok := c.bits[symbol]
	if !ok {
		return false
	}
	return bs.Test(HourIndex(t))
}

// MarkIngested records symbol's hour bucket at t as fully pumped.
func (c *CtrlFile) MarkIngested(symbol string, t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	bs, ok := c.bits[symbol]
	if !ok {
		bs = bitset.New(0)
		c.bits[symbol] = bs
	}
	bs.Set(HourIndex(t))
}

// Save persists the control file to disk.
func (c *CtrlFile) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := c.encode()
	if err != nil {
		return fmt.Errorf("encode control file: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("write control file: %w", err)
	}
	return nil
}

// ctrlRecord is the on-disk shape: one length-prefixed symbol name followed
// by its bitset's own binary encoding, repeated per symbol.
type ctrlRecord struct {
	Symbol string
	Bits   []byte
}

func (c *CtrlFile) encode() ([]byte, error) {
	var out []byte
	for symbol, bs := range c.bits {
		raw, err := bs.MarshalBinary()
		if err != nil {
			return nil, err
		}
		out = appendRecord(out, symbol, raw)
	}
	return out, nil
}

func (c *CtrlFile) decode(data []byte) error {
	for len(data) > 0 {
		symbol, raw, rest, err := readRecord(data)
		if err != nil {
			return err
		}
		bs := &bitset.BitSet{}
		if err := bs.UnmarshalBinary(raw); err != nil {
			return fmt.Errorf("unmarshal bitset for %s: %w", symbol, err)
		}
		c.bits[symbol] = bs
		data = rest
	}
	return nil
}

func appendRecord(buf []byte, symbol string, raw []byte) []byte {
	buf = appendUint32(buf, uint32(len(symbol)))
	buf = append(buf, symbol...)
	buf = appendUint32(buf, uint32(len(raw)))
	buf = append(buf, raw...)
	return buf
}

func readRecord(data []byte) (symbol string, raw []byte, rest []byte, err error) {
	if len(data) < 4 {
		return "", nil, nil, fmt.Errorf("truncated control file record")
	}
	nameLen := readUint32(data)
	data = data[4:]
	if len(data) < int(nameLen) {
		return "", nil, nil, fmt.Errorf("truncated control file symbol")
	}
	symbol = string(data[:nameLen])
	data = data[nameLen:]
	if len(data) < 4 {
		return "", nil, nil, fmt.Errorf("truncated control file bitset length")
	}
	bitsLen := readUint32(data)
	data = data[4:]
	if len(data) < int(bitsLen) {
		return "", nil, nil, fmt.Errorf("truncated control file bitset")
	}
	raw = data[:bitsLen]
	rest = data[bitsLen:]
	return symbol, raw, rest, nil
}

func appendUint32(buf []byte, v uint32) []byte {
	return append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func readUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
