package wire

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// fieldWriter accumulates protowire-encoded fields for one message. There is
// no generated descriptor for these messages — the protobuf code generator
// is an out-of-scope collaborator — so encoding is done directly against
// the wire primitives it would otherwise target.
type fieldWriter struct {
	buf []byte
}

func (w *fieldWriter) putString(num protowire.Number, s string) {
	if s == "" {
		return
	}
	w.buf = protowire.AppendTag(w.buf, num, protowire.BytesType)
	w.buf = protowire.AppendString(w.buf, s)
}

func (w *fieldWriter) putInt64(num protowire.Number, v int64) {
	if v == 0 {
		return
	}
	w.buf = protowire.AppendTag(w.buf, num, protowire.VarintType)
	w.buf = protowire.AppendVarint(w.buf, uint64(v))
}

func (w *fieldWriter) putUint64(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	w.buf = protowire.AppendTag(w.buf, num, protowire.VarintType)
	w.buf = protowire.AppendVarint(w.buf, v)
}

func (w *fieldWriter) putDouble(num protowire.Number, v float64) {
	if v == 0 {
		return
	}
	w.buf = protowire.AppendTag(w.buf, num, protowire.Fixed64Type)
	w.buf = protowire.AppendFixed64(w.buf, math.Float64bits(v))
}

func (w *fieldWriter) bytes() []byte { return w.buf }

// fieldReader walks a protowire-encoded payload field by field.
type fieldReader struct {
	buf []byte
}

func newFieldReader(b []byte) *fieldReader { return &fieldReader{buf: b} }

// next returns the next field's number, wire type and raw value, or ok=false
// at end of buffer.
func (r *fieldReader) next() (num protowire.Number, typ protowire.Type, val []byte, ok bool, err error) {
	if len(r.buf) == 0 {
		return 0, 0, nil, false, nil
	}
	n, t, tagLen := protowire.ConsumeTag(r.buf)
	if tagLen < 0 {
		return 0, 0, nil, false, fmt.Errorf("wire: bad tag: %w", protowire.ParseError(tagLen))
	}
	rest := r.buf[tagLen:]

	var valLen int
	switch t {
	case protowire.VarintType:
		_, valLen = protowire.ConsumeVarint(rest)
	case protowire.Fixed64Type:
		_, valLen = protowire.ConsumeFixed64(rest)
	case protowire.BytesType:
		_, valLen = protowire.ConsumeBytes(rest)
	case protowire.Fixed32Type:
		_, valLen = protowire.ConsumeFixed32(rest)
	default:
		return 0, 0, nil, false, fmt.Errorf("wire: unsupported wire type %d", t)
	}
	if valLen < 0 {
		return 0, 0, nil, false, fmt.Errorf("wire: bad field value for %d", n)
	}

	fieldBytes := r.buf[:tagLen+valLen]
	r.buf = r.buf[tagLen+valLen:]
	return n, t, fieldBytes[tagLen:], true, nil
}

func decodeString(val []byte) string {
	s, _ := protowire.ConsumeString(val)
	return s
}

func decodeVarint(val []byte) int64 {
	v, _ := protowire.ConsumeVarint(val)
	return int64(v)
}

func decodeDouble(val []byte) float64 {
	v, _ := protowire.ConsumeFixed64(val)
	return math.Float64frombits(v)
}
