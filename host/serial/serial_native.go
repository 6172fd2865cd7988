//go:build !tinygo

package serial

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/tarm/serial"
)

// NativePort reads board telemetry through tarm/serial
type NativePort struct {
	port   *serial.Port
	closed atomic.Bool
}

// Open opens the board's USB CDC or UART device. Bytes queued before the
// open are discarded, so decoding starts near a frame boundary.
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	if err := port.Flush(); err != nil {
		port.Close()
		return nil, fmt.Errorf("flush %s: %w", cfg.Device, err)
	}

	return &NativePort{port: port}, nil
}

// Read returns telemetry bytes. tarm/serial reports a read timeout as
// io.EOF; that is mapped to (0, nil) until the port is closed.
func (p *NativePort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if p.closed.Load() {
		return n, io.EOF
	}
	if err == io.EOF {
		return n, nil
	}
	return n, err
}

func (p *NativePort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Close closes the port and makes pending and later reads return io.EOF
func (p *NativePort) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.port.Close()
}

// Flush discards unread input and unsent output
func (p *NativePort) Flush() error {
	return p.port.Flush()
}
