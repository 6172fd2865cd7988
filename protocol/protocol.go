// Package protocol implements the telemetry framing shared by the firmware
// and the host monitor. Frames use the Klipper message block layout:
//
//	[len][0x10|seq][payload...][crc16 hi][crc16 lo][0x7E]
//
// and payload fields are VLQ encoded.
package protocol

// Version is the telemetry protocol version. The firmware reports it in
// numeric form in the identify message.
const (
	Version      = "0.1.0"
	VersionMajor = 0
	VersionMinor = 1
	VersionPatch = 0
)

// Frame layout
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10
	MessageSeqMask     = 0x0F

	// MessageMax is the scratch output capacity; several frames may be
	// queued before the target flushes its UART
	MessageMax = 256
)

// Telemetry message identifiers (first VLQ of a payload)
const (
	MsgEncoderState uint32 = 1
	MsgTraceEntry   uint32 = 2
	MsgIdentify     uint32 = 3
)
