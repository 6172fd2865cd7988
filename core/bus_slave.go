// I2C slave side of the encoder protocol
// The master reads the packet back to front, one clock-stretched byte at
// a time; any write resets both encoder channels.
package core

// BusPhase is the slave protocol state
type BusPhase uint8

const (
	PhaseIdle BusPhase = iota
	PhaseAddress
	PhaseDataRead
	PhaseDataWrite
)

func (p BusPhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAddress:
		return "address"
	case PhaseDataRead:
		return "data-read"
	case PhaseDataWrite:
		return "data-write"
	default:
		return "unknown"
	}
}

// Transfer is the direction of the current addressed exchange
type Transfer uint8

const (
	TransferNone Transfer = iota
	MasterReads
	MasterWrites
)

// BusTransaction is the state kept across byte events of one exchange
type BusTransaction struct {
	Index    uint8 // Next packet byte, counted from the end
	Phase    BusPhase
	Transfer Transfer
}

// serviceRead handles a byte request from the master.
// Returns false, without touching the peripheral, if the clock is not
// held; the event stays pending in that case.
func (d *Device) serviceRead() bool {
	bus := d.bus
	if !bus.ClockHeld() {
		d.clockFree++
		d.trace.Record(TraceClockFree, 0, d.seq, uint32(d.tx.Index))
		return false
	}

	if bus.AddressPhase() {
		// Address match: discard the address byte and start a new session
		d.tx.Phase = PhaseAddress
		d.tx.Transfer = MasterReads
		bus.Receive()
		d.trace.Record(TraceSessionStart, 0, d.seq, uint32(d.tx.Index))
		d.tx.Index = 0
		d.sessions++
	} else {
		d.tx.Phase = PhaseDataRead
	}

	// Load the data and release the clock
	bus.Transmit(PacketByte(&d.channels, PacketSize-1-int(d.tx.Index)))
	bus.ReleaseClock()

	d.tx.Index++
	if d.tx.Index >= PacketSize {
		d.tx.Index = 0
		d.trace.Record(TraceIndexWrap, 0, d.seq, 0)
	}

	d.tx.Phase = PhaseIdle
	bus.AckEvent()
	return true
}

// serviceWrite handles a byte written by the master.
// The payload is not inspected: every write resets both channels.
func (d *Device) serviceWrite() {
	bus := d.bus
	if bus.AddressPhase() {
		d.tx.Phase = PhaseAddress
	} else {
		d.tx.Phase = PhaseDataWrite
	}
	d.tx.Transfer = MasterWrites

	for w := range d.channels {
		d.channels[w].Reset()
	}
	payload := bus.Receive()
	bus.ReleaseClock()

	d.resets++
	d.trace.Record(TraceBusReset, 0, d.seq, uint32(payload))

	d.tx.Phase = PhaseIdle
	bus.AckEvent()
}
