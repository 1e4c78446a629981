package wire

import (
	"encoding/binary"
	"fmt"
)

// HandshakeSize is the fixed size of the raw (non-protobuf) encoding
// request/response record exchanged before either side may send a
// length-prefixed protobuf message.
const HandshakeSize = 16

// Encoding enumerates the wire encodings a client may request. The bridge
// only ever grants EncodingProtocolBuffers; anything else is rejected.
type Encoding uint32

const (
	EncodingBinary Encoding = iota
	EncodingBinaryVariableLength
	EncodingJSON
	EncodingJSONCompact
	EncodingProtocolBuffers
)

// Handshake is the decoded form of the fixed-size encoding request/response.
type Handshake struct {
	Size            uint16
	TypeID          uint16
	ProtocolVersion uint32
	Encoding        Encoding
	ProtocolType    [4]byte
}

// DecodeHandshake parses exactly HandshakeSize bytes into a Handshake.
func DecodeHandshake(b []byte) (Handshake, error) {
	if len(b) != HandshakeSize {
		return Handshake{}, fmt.Errorf("wire: handshake must be %d bytes, got %d", HandshakeSize, len(b))
	}
	var h Handshake
	h.Size = binary.LittleEndian.Uint16(b[0:2])
	h.TypeID = binary.LittleEndian.Uint16(b[2:4])
	h.ProtocolVersion = binary.LittleEndian.Uint32(b[4:8])
	h.Encoding = Encoding(binary.LittleEndian.Uint32(b[8:12]))
	copy(h.ProtocolType[:], b[12:16])
	return h, nil
}

// EncodeHandshake serializes a Handshake to its fixed 16-byte wire form.
func EncodeHandshake(h Handshake) []byte {
	buf := make([]byte, HandshakeSize)
	binary.LittleEndian.PutUint16(buf[0:2], HandshakeSize)
	binary.LittleEndian.PutUint16(buf[2:4], h.TypeID)
	binary.LittleEndian.PutUint32(buf[4:8], h.ProtocolVersion)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.Encoding))
	copy(buf[12:16], h.ProtocolType[:])
	return buf
}
