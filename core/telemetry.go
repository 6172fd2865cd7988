// Telemetry frames emitted from the target main loop
package core

import (
	"quadenc/protocol"
)

// EncodeSnapshot writes an encoder_state message payload (without the id)
// Format: encoder_state right_dir=%c left_dir=%c right_count=%i left_count=%i
// right_skipped=%u left_skipped=%u resets=%u sessions=%u clock_free=%u
func EncodeSnapshot(output protocol.OutputBuffer, s Snapshot) {
	protocol.EncodeVLQUint(output, uint32(s.Right.Direction))
	protocol.EncodeVLQUint(output, uint32(s.Left.Direction))
	protocol.EncodeVLQInt(output, s.Right.Count)
	protocol.EncodeVLQInt(output, s.Left.Count)
	protocol.EncodeVLQUint(output, s.Right.Skipped)
	protocol.EncodeVLQUint(output, s.Left.Skipped)
	protocol.EncodeVLQUint(output, s.Resets)
	protocol.EncodeVLQUint(output, s.Sessions)
	protocol.EncodeVLQUint(output, s.ClockFree)
}

// DecodeSnapshot reads an encoder_state payload written by EncodeSnapshot.
// Quadrature line states are not transmitted and decode as zero.
func DecodeSnapshot(data *[]byte) (Snapshot, error) {
	var s Snapshot
	var vals [9]uint32
	for i := range vals {
		v, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return Snapshot{}, err
		}
		vals[i] = v
	}
	s.Right.Direction = Direction(vals[0] & 1)
	s.Left.Direction = Direction(vals[1] & 1)
	s.Right.Count = int32(vals[2])
	s.Left.Count = int32(vals[3])
	s.Right.Skipped = vals[4]
	s.Left.Skipped = vals[5]
	s.Resets = vals[6]
	s.Sessions = vals[7]
	s.ClockFree = vals[8]
	return s, nil
}

// EncodeTraceEntry writes a trace_entry message payload (without the id)
// Format: trace_entry kind=%c wheel=%c seq=%u value=%u
func EncodeTraceEntry(output protocol.OutputBuffer, e TraceEntry) {
	protocol.EncodeVLQUint(output, uint32(e.Kind))
	protocol.EncodeVLQUint(output, uint32(e.Wheel))
	protocol.EncodeVLQUint(output, e.Seq)
	protocol.EncodeVLQUint(output, e.Value)
}

// DecodeTraceEntry reads a trace_entry payload
func DecodeTraceEntry(data *[]byte) (TraceEntry, error) {
	var vals [4]uint32
	for i := range vals {
		v, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return TraceEntry{}, err
		}
		vals[i] = v
	}
	return TraceEntry{
		Kind:  TraceKind(vals[0]),
		Wheel: Wheel(vals[1]),
		Seq:   vals[2],
		Value: vals[3],
	}, nil
}

// Sampler identifies how a target detects encoder edges
type Sampler uint8

const (
	SamplerIRQ Sampler = iota // GPIO edge interrupts
	SamplerPIO                // PIO state machines
)

func (s Sampler) String() string {
	if s == SamplerPIO {
		return "pio"
	}
	return "irq"
}

// Identity describes the firmware build and its bus setup
type Identity struct {
	Major, Minor, Patch uint32
	Address             I2CAddress
	Sampler             Sampler
}

// Version returns the protocol version as "major.minor.patch"
func (id Identity) Version() string {
	return utoa(id.Major) + "." + utoa(id.Minor) + "." + utoa(id.Patch)
}

// EncodeIdentity writes an identify message payload (without the id)
// Format: identify major=%u minor=%u patch=%u address=%c sampler=%c
func EncodeIdentity(output protocol.OutputBuffer, id Identity) {
	protocol.EncodeVLQUint(output, id.Major)
	protocol.EncodeVLQUint(output, id.Minor)
	protocol.EncodeVLQUint(output, id.Patch)
	protocol.EncodeVLQUint(output, uint32(id.Address))
	protocol.EncodeVLQUint(output, uint32(id.Sampler))
}

// DecodeIdentity reads an identify payload
func DecodeIdentity(data *[]byte) (Identity, error) {
	var vals [5]uint32
	for i := range vals {
		v, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return Identity{}, err
		}
		vals[i] = v
	}
	return Identity{
		Major:   vals[0],
		Minor:   vals[1],
		Patch:   vals[2],
		Address: I2CAddress(vals[3]),
		Sampler: Sampler(vals[4]),
	}, nil
}

// Reporter turns device state into telemetry frames
type Reporter struct {
	dev    *Device
	writer *protocol.FrameWriter

	// Seq of the newest trace entry already sent
	traceSent uint32
}

// NewReporter creates a reporter writing frames to output
func NewReporter(dev *Device, output protocol.OutputBuffer) *Reporter {
	return &Reporter{
		dev:    dev,
		writer: protocol.NewFrameWriter(output),
	}
}

// Report sends one encoder_state frame
func (r *Reporter) Report() error {
	s := r.dev.Snapshot()
	return r.writer.SendMessage(protocol.MsgEncoderState, func(output protocol.OutputBuffer) {
		EncodeSnapshot(output, s)
	})
}

// Identify sends an identify frame for this protocol version
func (r *Reporter) Identify(addr I2CAddress, sampler Sampler) error {
	id := Identity{
		Major:   protocol.VersionMajor,
		Minor:   protocol.VersionMinor,
		Patch:   protocol.VersionPatch,
		Address: addr,
		Sampler: sampler,
	}
	return r.writer.SendMessage(protocol.MsgIdentify, func(output protocol.OutputBuffer) {
		EncodeIdentity(output, id)
	})
}

// ReportTrace sends every trace entry recorded since the previous call.
// Entries overwritten in the ring before they could be sent are lost.
func (r *Reporter) ReportTrace() error {
	state := disableInterrupts()
	ring := r.dev.trace
	restoreInterrupts(state)

	sent := r.traceSent
	for _, e := range ring.Entries() {
		if e.Seq <= sent {
			continue
		}
		entry := e
		if err := r.writer.SendMessage(protocol.MsgTraceEntry, func(output protocol.OutputBuffer) {
			EncodeTraceEntry(output, entry)
		}); err != nil {
			return err
		}
		r.traceSent = e.Seq
	}
	return nil
}
