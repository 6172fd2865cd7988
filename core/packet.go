package core

import "encoding/binary"

// Packet layout, as seen by index (not by wire order)
const (
	PacketSize = 10

	packetRightDir   = 0
	packetLeftDir    = 1
	packetRightCount = 2
	packetLeftCount  = 6
)

// Packet is the serialized view of both encoder channels
type Packet [PacketSize]byte

// PacketByte returns byte i of the packet computed from the live channel
// state. Nothing is copied, so successive calls during one bus session
// observe any count update made in between.
func PacketByte(ch *[WheelCount]EncoderChannel, i int) byte {
	switch {
	case i == packetRightDir:
		return byte(ch[WheelRight].Direction)
	case i == packetLeftDir:
		return byte(ch[WheelLeft].Direction)
	case i >= packetRightCount && i < packetLeftCount:
		return byte(uint32(ch[WheelRight].Count) >> (8 * uint(i-packetRightCount)))
	case i >= packetLeftCount && i < PacketSize:
		return byte(uint32(ch[WheelLeft].Count) >> (8 * uint(i-packetLeftCount)))
	}
	return 0
}

// EncodePacket serializes both channels into the 10-byte layout
func EncodePacket(ch *[WheelCount]EncoderChannel) Packet {
	var p Packet
	p[packetRightDir] = byte(ch[WheelRight].Direction)
	p[packetLeftDir] = byte(ch[WheelLeft].Direction)
	binary.LittleEndian.PutUint32(p[packetRightCount:], uint32(ch[WheelRight].Count))
	binary.LittleEndian.PutUint32(p[packetLeftCount:], uint32(ch[WheelLeft].Count))
	return p
}

// Reading is the master-visible content of a packet
type Reading struct {
	RightDirection Direction
	LeftDirection  Direction
	RightCount     int32
	LeftCount      int32
}

// DecodePacket is the inverse of EncodePacket
func DecodePacket(p Packet) Reading {
	return Reading{
		RightDirection: Direction(p[packetRightDir] & 1),
		LeftDirection:  Direction(p[packetLeftDir] & 1),
		RightCount:     int32(binary.LittleEndian.Uint32(p[packetRightCount:])),
		LeftCount:      int32(binary.LittleEndian.Uint32(p[packetLeftCount:])),
	}
}

// WireOrder returns the packet bytes in the order a full read session
// transmits them (index 9 first).
func (p Packet) WireOrder() [PacketSize]byte {
	var w [PacketSize]byte
	for k := range w {
		w[k] = p[PacketSize-1-k]
	}
	return w
}

// DecodeWire decodes the bytes of a full read session received in wire
// order: left count big-endian, right count big-endian, left direction,
// right direction.
func DecodeWire(w []byte) (Reading, bool) {
	if len(w) < PacketSize {
		return Reading{}, false
	}
	var p Packet
	for k := 0; k < PacketSize; k++ {
		p[PacketSize-1-k] = w[k]
	}
	return DecodePacket(p), true
}
