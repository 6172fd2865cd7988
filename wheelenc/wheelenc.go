// Package wheelenc is a driver for the two-wheel quadrature encoder board.
//
// The board answers on a 7-bit I2C address and streams a 10-byte report,
// most significant byte first: left count, right count (both signed 32-bit
// big-endian), left direction, right direction. Any write resets both
// counters.
package wheelenc

import (
	"errors"

	"tinygo.org/x/drivers"

	"quadenc/core"
)

// Address is the default 7-bit bus address
const Address = uint16(core.DefaultAddress)

var (
	ErrUnstable = errors.New("wheelenc: counts changed during every read")
)

// Reading is one decoded report
type Reading = core.Reading

// Config holds the optional driver settings
type Config struct {
	// Address overrides the default bus address
	Address uint16

	// StableReads retries a read until two consecutive reports agree,
	// up to this many reports. 0 or 1 accepts the first report.
	StableReads int

	// CountsPerRev and WheelDiameter (m) enable Odometry
	CountsPerRev  int32
	WheelDiameter float32
}

// Device wraps an I2C connection to the encoder board
type Device struct {
	bus     drivers.I2C
	Address uint16
	stable  int
	buf     [core.PacketSize]byte

	odo Odometry
}

// New creates a new encoder connection. The I2C bus must already be
// configured.
//
// This function only creates the Device object, it does not touch the
// device.
func New(bus drivers.I2C) Device {
	return Device{
		bus:     bus,
		Address: Address,
	}
}

// Configure applies cfg. It does not talk to the device.
func (d *Device) Configure(cfg Config) {
	if cfg.Address != 0 {
		d.Address = cfg.Address
	}
	d.stable = cfg.StableReads
	d.odo = Odometry{
		countsPerRev: cfg.CountsPerRev,
		diameter:     cfg.WheelDiameter,
	}
}

// ReadRaw reads one full report in wire order
func (d *Device) ReadRaw() ([core.PacketSize]byte, error) {
	err := d.bus.Tx(d.Address, nil, d.buf[:])
	return d.buf, err
}

// Read reads and decodes one report. With StableReads set, reports are
// repeated until two in a row are identical, so a counter changing in the
// middle of a report is not returned.
func (d *Device) Read() (Reading, error) {
	raw, err := d.ReadRaw()
	if err != nil {
		return Reading{}, err
	}
	for i := 1; i < d.stable; i++ {
		next, err := d.ReadRaw()
		if err != nil {
			return Reading{}, err
		}
		if next == raw {
			break
		}
		if i == d.stable-1 {
			return Reading{}, ErrUnstable
		}
		raw = next
	}

	r, _ := core.DecodeWire(raw[:])
	d.odo.update(r)
	return r, nil
}

// Reset zeroes both counters and directions on the device
func (d *Device) Reset() error {
	// Payload is ignored by the board
	if err := d.bus.Tx(d.Address, []byte{0}, nil); err != nil {
		return err
	}
	d.odo.reset()
	return nil
}

// Odometry returns the distance accumulated by Read since the last Reset
func (d *Device) Odometry() *Odometry {
	return &d.odo
}
