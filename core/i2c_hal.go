package core

// I2CAddress is a 7-bit I2C device address.
type I2CAddress uint8

// DefaultAddress is the 7-bit slave address the device answers on
const DefaultAddress I2CAddress = 0x76

// BusPeripheral is the abstract I2C slave peripheral that core code uses.
// The hardware holds SCL low after each request until ReleaseClock.
type BusPeripheral interface {
	// ClockHeld reports whether the peripheral is currently stretching the clock
	ClockHeld() bool

	// AddressPhase reports whether the pending byte is the address byte
	AddressPhase() bool

	// Receive reads the latched byte, clearing the buffer-full condition
	Receive() byte

	// Transmit loads the byte the master will clock out next
	Transmit(b byte)

	// ReleaseClock lets the master continue
	ReleaseClock()

	// AckEvent clears the peripheral's interrupt flag
	AckEvent()
}
