// Package mcu connects to the telemetry port of an encoder board and keeps
// the latest reported state.
package mcu

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Masterminds/semver"
	"github.com/golang/glog"

	"quadenc/core"
	"quadenc/host/serial"
	"quadenc/protocol"
)

var (
	ErrNoState         = errors.New("no state received yet")
	ErrIncompatible    = errors.New("incompatible protocol version")
	ErrIdentifyTimeout = errors.New("timed out waiting for identify")
)

// Compatible is the protocol version range this host understands
const Compatible = "~0.1"

// traceKeep is the number of trace entries kept on the host
const traceKeep = 256

// State is the latest encoder_state report with its arrival time
type State struct {
	core.Snapshot
	Received time.Time
}

// Stats counts frames seen on the telemetry port
type Stats struct {
	Frames  uint64
	Errors  uint32 // Frames dropped for bad length, sync or CRC
	Lost    uint32 // Frames missing from the sequence
	Unknown uint64 // Valid frames with an unknown message id
}

// MCU represents a connection to an encoder board
type MCU struct {
	port    serial.Port
	decoder *protocol.FrameDecoder

	mu        sync.Mutex
	connected bool
	state     State
	haveState bool
	identity  *core.Identity
	version   *semver.Version
	trace     []core.TraceEntry
	stats     Stats
	subs      map[chan State]struct{}
	identCh   chan struct{}

	done chan struct{}
}

// NewMCU creates a new MCU instance (not yet connected)
func NewMCU() *MCU {
	return &MCU{
		decoder: protocol.NewFrameDecoder(protocol.MessageMax * 2),
		subs:    make(map[chan State]struct{}),
		identCh: make(chan struct{}),
	}
}

// Connect connects to a board via serial port
func (m *MCU) Connect(device string) error {
	return m.ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig connects to a board with a custom serial config
func (m *MCU) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}
	m.Attach(port)
	return nil
}

// Attach starts reading telemetry from an already open port
func (m *MCU) Attach(port serial.Port) {
	m.mu.Lock()
	m.port = port
	m.connected = true
	m.done = make(chan struct{})
	m.mu.Unlock()

	go m.readLoop(port, m.done)
}

// Close closes the connection and waits for the reader to stop
func (m *MCU) Close() error {
	m.mu.Lock()
	port, done := m.port, m.done
	m.port = nil
	m.mu.Unlock()

	if port == nil {
		return nil
	}
	err := port.Close()
	<-done
	return err
}

// IsConnected returns whether the telemetry port is open
func (m *MCU) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MCU) readLoop(port io.Reader, done chan struct{}) {
	defer close(done)
	buf := make([]byte, 256)
	for {
		n, err := port.Read(buf)
		if n > 0 {
			m.Feed(buf[:n])
		}
		if err != nil {
			if err != io.EOF {
				glog.Warningf("telemetry read: %v", err)
			}
			break
		}
	}

	m.mu.Lock()
	m.connected = false
	for ch := range m.subs {
		close(ch)
	}
	m.subs = make(map[chan State]struct{})
	m.mu.Unlock()
	glog.Info("telemetry port closed")
}

// Feed decodes raw telemetry bytes. The reader goroutine calls it for
// attached ports; tests may call it directly.
func (m *MCU) Feed(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	frames := m.decoder.Feed(data)

	m.stats.Errors = m.decoder.Errors
	m.stats.Lost = m.decoder.Lost
	for _, f := range frames {
		m.stats.Frames++
		if err := m.handleFrame(f); err != nil {
			glog.V(1).Infof("frame seq=%d: %v", f.Sequence, err)
		}
	}
}

// handleFrame dispatches one frame. Called with mu held.
func (m *MCU) handleFrame(f protocol.Frame) error {
	payload := f.Payload
	msgID, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return fmt.Errorf("failed to decode message id: %w", err)
	}

	switch msgID {
	case protocol.MsgEncoderState:
		s, err := core.DecodeSnapshot(&payload)
		if err != nil {
			return fmt.Errorf("encoder_state: %w", err)
		}
		m.state = State{Snapshot: s, Received: time.Now()}
		m.haveState = true
		m.publish(m.state)

	case protocol.MsgTraceEntry:
		e, err := core.DecodeTraceEntry(&payload)
		if err != nil {
			return fmt.Errorf("trace_entry: %w", err)
		}
		glog.V(2).Infof("trace %s wheel=%s seq=%d v=%d", e.Kind, e.Wheel, e.Seq, e.Value)
		m.trace = append(m.trace, e)
		if len(m.trace) > traceKeep {
			m.trace = m.trace[len(m.trace)-traceKeep:]
		}

	case protocol.MsgIdentify:
		id, err := core.DecodeIdentity(&payload)
		if err != nil {
			return fmt.Errorf("identify: %w", err)
		}
		v, err := semver.NewVersion(id.Version())
		if err != nil {
			return fmt.Errorf("identify: %w", err)
		}
		first := m.identity == nil
		m.identity = &id
		m.version = v
		if first {
			glog.Infof("board protocol %s, address 0x%02X, sampler %s", v, uint8(id.Address), id.Sampler)
			close(m.identCh)
		}

	default:
		m.stats.Unknown++
		return fmt.Errorf("%w: %d", protocol.ErrUnknownMessage, msgID)
	}
	return nil
}

// publish sends s to every subscriber without blocking. Called with mu held.
func (m *MCU) publish(s State) {
	for ch := range m.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// Subscribe returns a channel receiving every new state, and a function
// to cancel the subscription. A slow subscriber misses states rather than
// stalling the reader. The channel is closed when the port closes.
func (m *MCU) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 8)
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			if _, ok := m.subs[ch]; ok {
				delete(m.subs, ch)
				close(ch)
			}
			m.mu.Unlock()
		})
	}
}

// State returns the latest encoder state
func (m *MCU) State() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.haveState {
		return State{}, ErrNoState
	}
	return m.state, nil
}

// Trace returns the trace entries received so far, oldest first
func (m *MCU) Trace() []core.TraceEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.TraceEntry(nil), m.trace...)
}

// Stats returns the frame counters
func (m *MCU) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Identity returns the identify report, or nil if none was received
func (m *MCU) Identity() *core.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity
}

// WaitIdentify waits for the board to identify itself and checks that its
// protocol version is one this host understands
func (m *MCU) WaitIdentify(timeout time.Duration) error {
	select {
	case <-m.identCh:
	case <-time.After(timeout):
		return ErrIdentifyTimeout
	}

	m.mu.Lock()
	v := m.version
	m.mu.Unlock()
	return CheckVersion(v)
}

// CheckVersion reports whether v falls in the Compatible range
func CheckVersion(v *semver.Version) error {
	c, err := semver.NewConstraint(Compatible)
	if err != nil {
		return err
	}
	if !c.Check(v) {
		return fmt.Errorf("%w: board %s, host %s", ErrIncompatible, v, Compatible)
	}
	return nil
}
