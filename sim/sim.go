// Package sim provides host-side stand-ins for the encoder pins and the
// I2C slave peripheral, so the firmware core can be exercised without a
// board. A Machine wires them to a core.Device and plays the bus master.
package sim

import (
	"errors"
	"sync"

	"tinygo.org/x/drivers"

	"quadenc/core"
)

// ErrNack is returned by Tx for a transfer to another address
var ErrNack = errors.New("sim: address not acknowledged")

// Pins simulates four input lines with both-edge change detection
type Pins struct {
	levels    [core.LineCount]bool
	flags     [core.LineCount]bool
	pinChange bool
}

// Set drives a line and latches an edge flag if the level changed.
// Returns true if a pin-change event is now pending.
func (p *Pins) Set(l core.Line, level bool) bool {
	if p.levels[l] != level {
		p.levels[l] = level
		p.flags[l] = true
		p.pinChange = true
	}
	return p.pinChange
}

// SetState drives both lines of a wheel at once
func (p *Pins) SetState(w core.Wheel, s core.State) bool {
	a, b := w.Lines()
	p.Set(a, s&2 != 0)
	return p.Set(b, s&1 != 0)
}

// State returns the quadrature state currently on a wheel's lines
func (p *Pins) State(w core.Wheel) core.State {
	return core.StateOf(p.ReadLines(w))
}

func (p *Pins) ReadLines(w core.Wheel) (a, b bool) {
	la, lb := w.Lines()
	return p.levels[la], p.levels[lb]
}

func (p *Pins) EdgeFlag(l core.Line) bool {
	return p.flags[l]
}

func (p *Pins) ClearEdgeFlag(l core.Line) {
	p.flags[l] = false
}

// ClearPinChange clears the aggregate flag and every line flag with it
func (p *Pins) ClearPinChange() {
	p.pinChange = false
	for i := range p.flags {
		p.flags[i] = false
	}
}

// Pending reports whether a pin-change event is latched
func (p *Pins) Pending() bool {
	return p.pinChange
}

// Bus simulates a clock-stretching I2C slave peripheral
type Bus struct {
	held    bool
	address bool
	read    bool
	rx      byte
	tx      byte
	loaded  bool
	pending bool

	// Acks counts AckEvent calls
	Acks int
	// Releases counts ReleaseClock calls
	Releases int
}

// Request starts a master read of one byte: the clock is stretched until
// the slave loads a byte and releases it
func (b *Bus) Request(address bool) {
	b.held = true
	b.address = address
	b.read = true
	b.loaded = false
	b.pending = true
}

// Deliver latches a byte written by the master
func (b *Bus) Deliver(payload byte, address bool) {
	b.held = true
	b.address = address
	b.read = false
	b.rx = payload
	b.pending = true
}

// Free drops the clock stretch without the slave releasing it, as a
// peripheral does after a bus error
func (b *Bus) Free() {
	b.held = false
}

// Take returns the byte the slave loaded for the last request
func (b *Bus) Take() (byte, bool) {
	return b.tx, b.loaded
}

// Pending reports whether the bus event has not been acknowledged
func (b *Bus) Pending() bool {
	return b.pending
}

// Reading reports whether the pending event is a master read
func (b *Bus) Reading() bool {
	return b.read
}

func (b *Bus) ClockHeld() bool {
	return b.held
}

func (b *Bus) AddressPhase() bool {
	return b.address
}

func (b *Bus) Receive() byte {
	return b.rx
}

func (b *Bus) Transmit(v byte) {
	b.tx = v
	b.loaded = true
}

func (b *Bus) ReleaseClock() {
	b.held = false
	b.Releases++
}

func (b *Bus) AckEvent() {
	b.pending = false
	b.Acks++
}

// Machine is a simulated board: pins, bus peripheral and device, driven
// by a built-in bus master. All methods are serialized so a Machine can
// be shared between goroutines the way a real bus would be.
type Machine struct {
	Address core.I2CAddress
	Dev     *core.Device
	Pins    *Pins
	Bus     *Bus

	mu sync.Mutex
}

// New creates a simulated board answering on addr
func New(addr core.I2CAddress) *Machine {
	m := &Machine{
		Address: addr,
		Pins:    &Pins{},
		Bus:     &Bus{},
	}
	m.Dev = core.NewDevice(m.Pins, m.Bus)
	return m
}

var (
	forward = [4]core.State{0: 1, 1: 3, 3: 2, 2: 0}
	reverse = [4]core.State{0: 2, 2: 3, 3: 1, 1: 0}
)

// Turn moves a wheel by steps quadrature edges, positive forward, one
// line change and one pin-change interrupt per edge
func (m *Machine) Turn(w core.Wheel, steps int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	table := &forward
	if steps < 0 {
		table = &reverse
		steps = -steps
	}
	for i := 0; i < steps; i++ {
		m.Pins.SetState(w, table[m.Pins.State(w)])
		m.dispatch()
	}
}

// Jump drives a wheel straight to state s in a single interrupt, both
// lines changing together when s differs in two bits
func (m *Machine) Jump(w core.Wheel, s core.State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Pins.SetState(w, s)
	m.dispatch()
}

// SetLine drives one encoder line and raises the interrupt if it changed
func (m *Machine) SetLine(l core.Line, level bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Pins.Set(l, level) {
		m.dispatch()
	}
}

// BeginRead addresses the device for reading and returns the first byte
func (m *Machine) BeginRead() byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readByte(true)
}

// NextByte clocks one more byte out of the current read session
func (m *Machine) NextByte() byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readByte(false)
}

// Write performs a write exchange: address byte then payload
func (m *Machine) Write(payload ...byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.write(payload)
}

// Snapshot returns the device state
func (m *Machine) Snapshot() core.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Dev.Snapshot()
}

// Do runs fn with the machine locked, the way target code runs with
// interrupts disabled
func (m *Machine) Do(fn func(dev *core.Device)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.Dev)
}

var _ drivers.I2C = (*Machine)(nil)

// Tx implements the tinygo drivers I2C interface against the simulated
// device. A combined transfer writes first, then reads.
func (m *Machine) Tx(addr uint16, w, r []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if addr != uint16(m.Address) {
		return ErrNack
	}
	if len(w) > 0 {
		m.write(w)
	}
	for i := range r {
		r[i] = m.readByte(i == 0)
	}
	return nil
}

// ReadRegister reads len(buf) bytes after writing the register number.
// The device ignores register numbers; the write resets it like any other.
func (m *Machine) ReadRegister(addr uint8, reg uint8, buf []byte) error {
	return m.Tx(uint16(addr), []byte{reg}, buf)
}

// WriteRegister writes the register number followed by buf
func (m *Machine) WriteRegister(addr uint8, reg uint8, buf []byte) error {
	return m.Tx(uint16(addr), append([]byte{reg}, buf...), nil)
}

func (m *Machine) readByte(address bool) byte {
	m.Bus.Request(address)
	m.dispatch()
	v, _ := m.Bus.Take()
	return v
}

func (m *Machine) write(payload []byte) {
	m.Bus.Deliver(uint8(m.Address)<<1, true)
	m.dispatch()
	for _, b := range payload {
		m.Bus.Deliver(b, false)
		m.dispatch()
	}
}

// dispatch raises the interrupt for whatever is pending
func (m *Machine) dispatch() {
	var pending core.Event
	if m.Bus.Pending() {
		if m.Bus.Reading() {
			pending |= core.EventBusRead
		} else {
			pending |= core.EventBusWrite
		}
	}
	if m.Pins.Pending() {
		pending |= core.EventPinChange
	}
	if pending != 0 {
		m.Dev.Dispatch(pending)
	}
}
