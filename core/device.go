package core

// Event is a set of pending interrupt sources
type Event uint8

const (
	EventBusRead   Event = 1 << iota // Master requests a byte (R/W set, clock stretched)
	EventBusWrite                    // Master wrote a byte
	EventPinChange                   // An encoder line changed

	eventBus = EventBusRead | EventBusWrite
)

// Has reports whether all bits of e are pending
func (p Event) Has(e Event) bool {
	return p&e == e
}

// Device is the whole firmware state: both encoder channels, the bus
// transaction and the hardware it talks to. Dispatch is its only mutator
// and must not be re-entered.
type Device struct {
	pins EncoderPins
	bus  BusPeripheral

	channels [WheelCount]EncoderChannel
	tx       BusTransaction

	// Diagnostics
	seq       uint32 // Dispatch invocations
	resets    uint32
	sessions  uint32
	clockFree uint32
	trace     TraceRing
}

// NewDevice creates a device with zeroed channels.
// The pins and bus peripheral must already be configured by the target.
func NewDevice(pins EncoderPins, bus BusPeripheral) *Device {
	return &Device{
		pins: pins,
		bus:  bus,
	}
}

// Dispatch services every pending source: the bus first, then the
// encoder pins. It is the interrupt handler body.
func (d *Device) Dispatch(pending Event) {
	d.seq++

	// I2C event
	if pending&eventBus != 0 {
		if pending.Has(EventBusRead) {
			d.serviceRead()
		} else {
			d.serviceWrite()
		}
	}

	// Interrupt-on-change event
	if pending.Has(EventPinChange) {
		d.servicePinChange()
	}
}

// servicePinChange resamples both wheels and applies the decoder to each
// wheel whose own lines raised the event.
func (d *Device) servicePinChange() {
	for w := Wheel(0); w < WheelCount; w++ {
		a, b := d.pins.ReadLines(w)
		d.channels[w].Sample(StateOf(a, b))
	}

	for w := Wheel(0); w < WheelCount; w++ {
		if !d.takeEdgeFlag(w) {
			continue
		}
		ch := &d.channels[w]
		if !ch.Apply() && ch.LastState != ch.State {
			d.trace.Record(TraceSkippedEdge, w, d.seq, uint32(ch.LastState)<<2|uint32(ch.State))
		}
	}

	d.pins.ClearPinChange()
}

// takeEdgeFlag checks the B line then the A line of a wheel and clears
// the first one found set.
func (d *Device) takeEdgeFlag(w Wheel) bool {
	a, b := w.Lines()
	if d.pins.EdgeFlag(b) {
		d.pins.ClearEdgeFlag(b)
		return true
	}
	if d.pins.EdgeFlag(a) {
		d.pins.ClearEdgeFlag(a)
		return true
	}
	return false
}

// Channel returns a copy of one wheel's state.
// Only safe from the dispatch context or in tests; use Snapshot otherwise.
func (d *Device) Channel(w Wheel) EncoderChannel {
	return d.channels[w]
}

// Transaction returns the current bus transaction state
func (d *Device) Transaction() BusTransaction {
	return d.tx
}

// Packet serializes the current channel state
func (d *Device) Packet() Packet {
	return EncodePacket(&d.channels)
}

// Trace returns the device trace ring
func (d *Device) Trace() *TraceRing {
	return &d.trace
}

// Snapshot is a consistent copy of the device state for reporting
type Snapshot struct {
	Right      EncoderChannel
	Left       EncoderChannel
	Resets     uint32
	Sessions   uint32
	ClockFree  uint32
	Dispatches uint32
}

// Snapshot copies the device state with interrupts disabled, so unlike a
// bus read it is never torn. Call from the main loop.
func (d *Device) Snapshot() Snapshot {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	return Snapshot{
		Right:      d.channels[WheelRight],
		Left:       d.channels[WheelLeft],
		Resets:     d.resets,
		Sessions:   d.sessions,
		ClockFree:  d.clockFree,
		Dispatches: d.seq,
	}
}

// DumpEvents writes the trace ring through the debug writer.
// Interrupts are disabled while the ring is copied.
func (d *Device) DumpEvents() {
	state := disableInterrupts()
	ring := d.trace
	restoreInterrupts(state)

	DumpTrace(&ring)
}
