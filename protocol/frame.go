package protocol

import "errors"

var (
	ErrFrameTooLong   = errors.New("frame exceeds maximum length")
	ErrUnknownMessage = errors.New("unknown message id")
)

type truncater interface {
	truncate(pos int)
}

type frameFlusher interface {
	flushFrame() error
}

// FrameWriter encodes telemetry frames into an OutputBuffer.
// The sequence nibble advances with every frame so the host can count
// dropped frames.
type FrameWriter struct {
	output OutputBuffer
	seq    uint8
}

// NewFrameWriter creates a writer starting at sequence 0
func NewFrameWriter(output OutputBuffer) *FrameWriter {
	return &FrameWriter{output: output}
}

// EncodeFrame writes one complete frame whose payload is produced by
// frameData. If the payload does not fit a frame, the partial output is
// rolled back and ErrFrameTooLong returned.
func (w *FrameWriter) EncodeFrame(frameData func(output OutputBuffer)) error {
	cursor := w.output.CurPosition()

	// Length placeholder and sequence
	w.output.Output([]byte{0, MessageDest | w.seq&MessageSeqMask})

	frameData(w.output)

	length := len(w.output.DataSince(cursor)) + MessageTrailerSize
	if length > MessageLengthMax {
		if t, ok := w.output.(truncater); ok {
			t.truncate(cursor)
		}
		return ErrFrameTooLong
	}
	w.output.Update(cursor, uint8(length))

	crc := CRC16(w.output.DataSince(cursor))
	w.output.Output([]byte{
		uint8(crc >> 8),
		uint8(crc & 0xFF),
		MessageValueSync,
	})

	w.seq = (w.seq + 1) & MessageSeqMask
	if f, ok := w.output.(frameFlusher); ok {
		return f.flushFrame()
	}
	return nil
}

// SendMessage writes a frame carrying msgID followed by args
func (w *FrameWriter) SendMessage(msgID uint32, args func(output OutputBuffer)) error {
	return w.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, msgID)
		if args != nil {
			args(output)
		}
	})
}

// Frame is a validated frame with the header and trailer stripped
type Frame struct {
	Sequence uint8
	Payload  []byte
}

// FrameDecoder extracts frames from a byte stream, resynchronizing on
// the 0x7E sync byte after any framing or CRC error.
type FrameDecoder struct {
	input        *FifoBuffer
	synchronized bool

	// Errors counts discarded frames (bad length, sync or CRC)
	Errors uint32
	// Lost counts frames missing from the sequence
	Lost uint32

	lastSeq  uint8
	haveLast bool
}

// NewFrameDecoder creates a decoder with an input buffer of the given size
func NewFrameDecoder(capacity int) *FrameDecoder {
	return &FrameDecoder{
		input:        NewFifoBuffer(capacity),
		synchronized: true,
	}
}

// Feed appends received bytes and returns the frames completed by them.
// Bytes that do not fit the input buffer are dropped.
func (d *FrameDecoder) Feed(data []byte) []Frame {
	var frames []Frame
	for len(data) > 0 {
		n := d.input.Write(data)
		data = data[n:]
		frames = append(frames, d.process()...)
		if n == 0 {
			// Buffer full of undecodable data
			d.input.Reset()
			d.synchronized = false
			d.Errors++
		}
	}
	return frames
}

func (d *FrameDecoder) process() []Frame {
	var frames []Frame
	data := d.input.Data()

	for len(data) > 0 {
		if !d.synchronized {
			syncPos := -1
			for i, b := range data {
				if b == MessageValueSync {
					syncPos = i
					break
				}
			}
			if syncPos < 0 {
				data = nil
				break
			}
			data = data[syncPos+1:]
			d.synchronized = true
			continue
		}

		// Skip leading sync bytes
		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		if len(data) < MessageLengthMin {
			break
		}

		msgLen := int(data[MessagePositionLen])
		if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
			d.desync()
			continue
		}

		seq := data[MessagePositionSeq]
		if seq&^MessageSeqMask != MessageDest {
			d.desync()
			continue
		}

		if len(data) < msgLen {
			break
		}

		if data[msgLen-MessageTrailerSync] != MessageValueSync {
			d.desync()
			continue
		}

		frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 |
			uint16(data[msgLen-MessageTrailerCRC+1])
		if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
			d.desync()
			continue
		}

		payload := make([]byte, msgLen-MessageLengthMin)
		copy(payload, data[MessageHeaderSize:msgLen-MessageTrailerSize])
		frames = append(frames, Frame{Sequence: seq & MessageSeqMask, Payload: payload})
		d.track(seq & MessageSeqMask)

		data = data[msgLen:]
	}

	consumed := d.input.Available() - len(data)
	if consumed > 0 {
		d.input.Pop(consumed)
	}
	return frames
}

func (d *FrameDecoder) desync() {
	d.synchronized = false
	d.Errors++
}

func (d *FrameDecoder) track(seq uint8) {
	if d.haveLast {
		d.Lost += uint32((seq - d.lastSeq - 1) & MessageSeqMask)
	}
	d.lastSeq = seq
	d.haveLast = true
}

// Reset drops buffered input and sequence tracking
func (d *FrameDecoder) Reset() {
	d.input.Reset()
	d.synchronized = true
	d.haveLast = false
}
