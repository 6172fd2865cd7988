package serial

import (
	"io"
)

// Port represents the board's telemetry port.
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - In-process pipes (simulated boards and tests)
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate of the debug UART (USB CDC ignores this)
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns the telemetry port defaults of the firmware
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100,
	}
}

// PipePort is a Port over an in-process byte stream
type PipePort struct {
	io.Reader
	io.Writer
	closer io.Closer
}

// NewPipePort creates a port reading from r and writing to w. Closing
// the port closes r if it is an io.Closer.
func NewPipePort(r io.Reader, w io.Writer) *PipePort {
	p := &PipePort{Reader: r, Writer: w}
	if c, ok := r.(io.Closer); ok {
		p.closer = c
	}
	if p.Writer == nil {
		p.Writer = io.Discard
	}
	return p
}

// Close closes the read side
func (p *PipePort) Close() error {
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}

// Flush is a no-op; writes are unbuffered
func (p *PipePort) Flush() error {
	return nil
}
