// Package wire implements the DTC binary framing and message codec: a
// length-prefixed header ([u16 LE total_length][u16 LE type_id][payload])
// followed by a protobuf-encoded payload, built directly on
// google.golang.org/protobuf/encoding/protowire since no code generator is
// available for this message set.
package wire

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed 4-byte header: total_length (u16 LE) + type_id (u16 LE).
const HeaderSize = 4

// MaxMessageSize bounds total_length against malformed or hostile input.
const MaxMessageSize = 1 << 20 // 1 MiB

// Message is one decoded frame: a DTC message type and its raw payload bytes.
type Message struct {
	TypeID  uint16
	Payload []byte
}

// Encode serializes a message into the wire header+payload form.
func Encode(typeID uint16, payload []byte) []byte {
	total := HeaderSize + len(payload)
	buf := make([]byte, total)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(total))
	binary.LittleEndian.PutUint16(buf[2:4], typeID)
	copy(buf[HeaderSize:], payload)
	return buf
}

// Decoder incrementally assembles frames out of a byte stream that may
// arrive split across arbitrary chunk boundaries, and may contain more than
// one frame per chunk.
//
// Feed appends a chunk to the internal buffer and drains as many complete
// messages as are available. It never blocks and never requires the caller
// to know a message's length in advance — decoding state lives entirely in
// the Decoder.
type Decoder struct {
	buf []byte
}

// NewDecoder returns an empty streaming decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends data to the internal buffer and returns every complete
// message it can extract. The bytes of a trailing partial message stay
// buffered (see Pending); Feed does not report how many more bytes that
// message needs.
func (d *Decoder) Feed(data []byte) ([]Message, error) {
	d.buf = append(d.buf, data...)

	var out []Message
	for {
		if len(d.buf) < 2 {
			// total_length itself hasn't arrived yet.
			break
		}
		total := int(binary.LittleEndian.Uint16(d.buf[0:2]))
		if total < HeaderSize {
			return out, fmt.Errorf("wire: invalid total_length %d", total)
		}
		if total > MaxMessageSize {
			return out, fmt.Errorf("wire: total_length %d exceeds max %d", total, MaxMessageSize)
		}
		if len(d.buf) < total {
			// Header present but payload not fully arrived.
			break
		}

		typeID := binary.LittleEndian.Uint16(d.buf[2:4])
		payload := make([]byte, total-HeaderSize)
		copy(payload, d.buf[HeaderSize:total])
		out = append(out, Message{TypeID: typeID, Payload: payload})

		d.buf = d.buf[total:]
	}
	return out, nil
}

// Pending reports how many bytes are buffered but not yet consumed into a
// complete message.
func (d *Decoder) Pending() int {
	return len(d.buf)
}
