package core

import (
	"bytes"
	"testing"
)

func TestEncodePacketLayout(t *testing.T) {
	var ch [WheelCount]EncoderChannel
	ch[WheelRight] = EncoderChannel{Direction: Forward, Count: 5}
	ch[WheelLeft] = EncoderChannel{Direction: Reverse, Count: -3}

	p := EncodePacket(&ch)
	expected := Packet{1, 0, 0x05, 0x00, 0x00, 0x00, 0xFD, 0xFF, 0xFF, 0xFF}
	if p != expected {
		t.Errorf("Packet layout mismatch:\n got %v\nwant %v", p, expected)
	}

	for i := 0; i < PacketSize; i++ {
		if b := PacketByte(&ch, i); b != p[i] {
			t.Errorf("PacketByte(%d) = 0x%02X, encoded 0x%02X", i, b, p[i])
		}
	}
	if b := PacketByte(&ch, PacketSize); b != 0 {
		t.Errorf("Out of range PacketByte should be 0, got 0x%02X", b)
	}
}

func TestWireOrder(t *testing.T) {
	var ch [WheelCount]EncoderChannel
	ch[WheelRight] = EncoderChannel{Direction: Forward, Count: 5}
	ch[WheelLeft] = EncoderChannel{Direction: Reverse, Count: -3}

	wire := EncodePacket(&ch).WireOrder()
	expected := []byte{0xFF, 0xFF, 0xFF, 0xFD, 0x00, 0x00, 0x00, 0x05, 0x00, 0x01}
	if !bytes.Equal(wire[:], expected) {
		t.Errorf("Wire order mismatch:\n got % X\nwant % X", wire, expected)
	}

	r, ok := DecodeWire(wire[:])
	if !ok {
		t.Fatal("DecodeWire rejected a full packet")
	}
	if r.RightCount != 5 || r.LeftCount != -3 || r.RightDirection != Forward || r.LeftDirection != Reverse {
		t.Errorf("DecodeWire = %+v", r)
	}

	if _, ok := DecodeWire(wire[:PacketSize-1]); ok {
		t.Error("DecodeWire accepted a short read")
	}
}

func TestDecodePacketRoundTrip(t *testing.T) {
	counts := []int32{0, 1, -1, 255, 256, -65536, 2147483647, -2147483648}
	for _, c := range counts {
		var ch [WheelCount]EncoderChannel
		ch[WheelRight].Count = c
		ch[WheelLeft].Count = -c
		ch[WheelLeft].Direction = Forward

		r := DecodePacket(EncodePacket(&ch))
		if r.RightCount != c || r.LeftCount != -c || r.LeftDirection != Forward {
			t.Errorf("Round trip of %d gave %+v", c, r)
		}
	}
}
