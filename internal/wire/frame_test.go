package wire

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte("hello")
	frame := Encode(TypeHeartbeat, payload)

	dec := NewDecoder()
	msgs, err := dec.Feed(frame)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("want 1 message, got %d", len(msgs))
	}
	if msgs[0].TypeID != TypeHeartbeat {
		t.Errorf("TypeID = %d, want %d", msgs[0].TypeID, TypeHeartbeat)
	}
	if !bytes.Equal(msgs[0].Payload, payload) {
		t.Errorf("Payload = %q, want %q", msgs[0].Payload, payload)
	}
}

func TestDecoderSplitAcrossChunks(t *testing.T) {
	frame := Encode(TypeLogonRequest, []byte("0123456789"))

	dec := NewDecoder()
	for i := 0; i < len(frame); i++ {
		msgs, err := dec.Feed(frame[i : i+1])
		if err != nil {
			t.Fatalf("Feed byte %d: %v", i, err)
		}
		if i < len(frame)-1 {
			if len(msgs) != 0 {
				t.Fatalf("got premature message at byte %d", i)
			}
		} else {
			if len(msgs) != 1 {
				t.Fatalf("want 1 message after final byte, got %d", len(msgs))
			}
		}
	}
}

func TestDecoderMultipleMessagesPerChunk(t *testing.T) {
	a := Encode(TypeHeartbeat, []byte("a"))
	b := Encode(TypeLogoff, []byte("bb"))
	chunk := append(append([]byte{}, a...), b...)

	dec := NewDecoder()
	msgs, err := dec.Feed(chunk)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("want 2 messages, got %d", len(msgs))
	}
	if msgs[0].TypeID != TypeHeartbeat || msgs[1].TypeID != TypeLogoff {
		t.Errorf("unexpected type ids: %d, %d", msgs[0].TypeID, msgs[1].TypeID)
	}
	if dec.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", dec.Pending())
	}
}

func TestDecoderRejectsShorterThanHeader(t *testing.T) {
	dec := NewDecoder()
	bad := []byte{0x02, 0x00, 0x00, 0x00} // total_length = 2, below HeaderSize
	if _, err := dec.Feed(bad); err == nil {
		t.Fatal("want error for total_length below header size")
	}
}

func TestHandshakeRoundTrip(t *testing.T) {
	h := Handshake{
		TypeID:          TypeEncodingRequest,
		ProtocolVersion: 8,
		Encoding:        EncodingProtocolBuffers,
		ProtocolType:    [4]byte{'D', 'T', 'C', 0},
	}
	encoded := EncodeHandshake(h)
	if len(encoded) != HandshakeSize {
		t.Fatalf("encoded size = %d, want %d", len(encoded), HandshakeSize)
	}
	decoded, err := DecodeHandshake(encoded)
	if err != nil {
		t.Fatalf("DecodeHandshake: %v", err)
	}
	if decoded.Encoding != EncodingProtocolBuffers || decoded.ProtocolVersion != 8 {
		t.Errorf("decoded = %+v, want encoding/version preserved", decoded)
	}
}

func TestLogonRequestRoundTrip(t *testing.T) {
	want := LogonRequest{
		Username:          "trader1",
		Password:          "secret",
		HeartbeatInterval: 30,
		TradeAccount:      "exchange",
	}
	encoded := EncodeLogonRequest(want)
	got, err := DecodeLogonRequest(encoded)
	if err != nil {
		t.Fatalf("DecodeLogonRequest: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestSubmitNewOrderRoundTrip(t *testing.T) {
	want := SubmitNewOrder{
		Symbol:        "BTC-USDT",
		Exchange:      "BTREX",
		ClientOrderID: "c1",
		Side:          1,
		OrderType:     2,
		TimeInForce:   1,
		Price1:        100.5,
		OrderQuantity: 1500000,
		TradeAccount:  "exchange",
	}
	b := make([]byte, 0)
	wtr := &fieldWriter{buf: b}
	wtr.putString(1, want.Symbol)
	wtr.putString(2, want.Exchange)
	wtr.putString(3, want.ClientOrderID)
	wtr.putInt64(4, want.Side)
	wtr.putInt64(5, want.OrderType)
	wtr.putInt64(6, want.TimeInForce)
	wtr.putDouble(7, want.Price1)
	wtr.putDouble(8, want.OrderQuantity)
	wtr.putString(9, want.TradeAccount)

	got, err := DecodeSubmitNewOrder(wtr.bytes())
	if err != nil {
		t.Fatalf("DecodeSubmitNewOrder: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
