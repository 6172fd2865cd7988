package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quadenc/core"
	"quadenc/sim"
)

func readSession(m *sim.Machine, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		if i == 0 {
			out[i] = m.BeginRead()
		} else {
			out[i] = m.NextByte()
		}
	}
	return out
}

func TestForwardAndReverseCycles(t *testing.T) {
	for _, w := range []core.Wheel{core.WheelRight, core.WheelLeft} {
		t.Run(w.String(), func(t *testing.T) {
			m := sim.New(core.DefaultAddress)
			for _, n := range []int{1, 3, 25} {
				before := m.Dev.Channel(w).Count
				m.Turn(w, 4*n)
				require.Equal(t, before+int32(4*n), m.Dev.Channel(w).Count)
				require.Equal(t, core.Forward, m.Dev.Channel(w).Direction)

				m.Turn(w, -4*n)
				require.Equal(t, before, m.Dev.Channel(w).Count)
				require.Equal(t, core.Reverse, m.Dev.Channel(w).Direction)
			}
			require.Equal(t, core.State(0), m.Pins.State(w))
		})
	}
}

func TestWheelsAreIndependent(t *testing.T) {
	m := sim.New(core.DefaultAddress)
	m.Turn(core.WheelLeft, 7)
	m.Turn(core.WheelRight, -2)

	assert.Equal(t, int32(7), m.Dev.Channel(core.WheelLeft).Count)
	assert.Equal(t, int32(-2), m.Dev.Channel(core.WheelRight).Count)
	assert.Equal(t, core.Forward, m.Dev.Channel(core.WheelLeft).Direction)
	assert.Equal(t, core.Reverse, m.Dev.Channel(core.WheelRight).Direction)
}

func TestTwoBitJumpIsIgnored(t *testing.T) {
	m := sim.New(core.DefaultAddress)
	m.Turn(core.WheelRight, 1) // state 1, count 1, forward
	m.Turn(core.WheelLeft, -1) // state 2, count -1, reverse

	m.Jump(core.WheelRight, 2) // 1 -> 2
	m.Jump(core.WheelLeft, 1)  // 2 -> 1

	right, left := m.Dev.Channel(core.WheelRight), m.Dev.Channel(core.WheelLeft)
	assert.Equal(t, int32(1), right.Count)
	assert.Equal(t, core.Forward, right.Direction)
	assert.Equal(t, uint32(1), right.Skipped)
	assert.Equal(t, int32(-1), left.Count)
	assert.Equal(t, core.Reverse, left.Direction)
	assert.Equal(t, uint32(1), left.Skipped)

	// Decoding resumes from the jumped-to state
	m.Turn(core.WheelRight, 1) // 2 -> 0
	assert.Equal(t, int32(2), m.Dev.Channel(core.WheelRight).Count)

	var skipped int
	for _, e := range m.Dev.Trace().Entries() {
		if e.Kind == core.TraceSkippedEdge {
			skipped++
		}
	}
	assert.Equal(t, 2, skipped)
}

func TestWriteResetsBothWheels(t *testing.T) {
	for _, payload := range []byte{0x00, 0x01, 0x7F, 0xFF} {
		m := sim.New(core.DefaultAddress)
		m.Turn(core.WheelRight, 9)
		m.Turn(core.WheelLeft, -6)

		m.Write(payload)

		for _, w := range []core.Wheel{core.WheelRight, core.WheelLeft} {
			ch := m.Dev.Channel(w)
			assert.Equal(t, int32(0), ch.Count, "payload 0x%02X", payload)
			assert.Equal(t, core.Reverse, ch.Direction, "payload 0x%02X", payload)
		}
		assert.Equal(t, make([]byte, core.PacketSize), readSession(m, core.PacketSize))
	}
}

func TestReadOrderAndWrap(t *testing.T) {
	m := sim.New(core.DefaultAddress)
	m.Turn(core.WheelRight, 300)
	m.Turn(core.WheelLeft, -70000)

	p := m.Dev.Packet()
	got := readSession(m, core.PacketSize+1)
	for k := 0; k < core.PacketSize; k++ {
		require.Equal(t, p[core.PacketSize-1-k], got[k], "byte %d", k)
	}
	require.Equal(t, p[core.PacketSize-1], got[core.PacketSize], "11th byte should wrap")
	require.Equal(t, uint8(1), m.Dev.Transaction().Index)
}

func TestReadExactBytes(t *testing.T) {
	m := sim.New(core.DefaultAddress)
	m.Turn(core.WheelRight, 5)
	m.Turn(core.WheelLeft, -3)

	got := readSession(m, core.PacketSize)
	require.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFD, 0x00, 0x00, 0x00, 0x05, 0x00, 0x01}, got)
}

func TestNewSessionRestartsIndex(t *testing.T) {
	m := sim.New(core.DefaultAddress)
	m.Turn(core.WheelLeft, 1)

	partial := readSession(m, 3)
	full := readSession(m, core.PacketSize)
	require.Equal(t, partial, full[:3])
	require.Equal(t, uint32(2), m.Dev.Snapshot().Sessions)
}

func TestTornRead(t *testing.T) {
	m := sim.New(core.DefaultAddress)
	m.Turn(core.WheelLeft, -1) // left = 0xFFFFFFFF
	m.Turn(core.WheelRight, 2)

	first := []byte{m.BeginRead(), m.NextByte()}
	m.Turn(core.WheelLeft, 1) // left = 0
	rest := make([]byte, core.PacketSize-2)
	for i := range rest {
		rest[i] = m.NextByte()
	}

	// Upper half of the old count, lower half of the new one
	require.Equal(t, []byte{0xFF, 0xFF}, first)
	require.Equal(t, []byte{0x00, 0x00}, rest[:2])
	// Right count and the directions are untouched
	require.Equal(t, []byte{0x00, 0x00, 0x00, 0x02, 0x01, 0x01}, rest[2:])

	r, ok := core.DecodeWire(append(first, rest...))
	require.True(t, ok)
	require.Equal(t, int32(-65536), r.LeftCount)
	require.Equal(t, int32(2), r.RightCount)
}

func TestBusServicedBeforePins(t *testing.T) {
	pins := &sim.Pins{}
	bus := &sim.Bus{}
	dev := core.NewDevice(pins, bus)

	// Left at state 1, count 1
	pins.SetState(core.WheelLeft, 1)
	dev.Dispatch(core.EventPinChange)
	require.Equal(t, int32(1), dev.Channel(core.WheelLeft).Count)

	// Start a session and read left count MSB..LSB-1
	for i := 0; i < 3; i++ {
		bus.Request(i == 0)
		dev.Dispatch(core.EventBusRead)
	}

	// LSB request and a forward edge pending in the same invocation
	bus.Request(false)
	pins.SetState(core.WheelLeft, 3)
	dev.Dispatch(core.EventBusRead | core.EventPinChange)

	b, loaded := bus.Take()
	require.True(t, loaded)
	require.Equal(t, byte(1), b, "bus byte must be served before the edge is counted")
	require.Equal(t, int32(2), dev.Channel(core.WheelLeft).Count)
	require.False(t, pins.Pending())
	require.False(t, bus.Pending())
}

func TestReadWithoutHeldClock(t *testing.T) {
	pins := &sim.Pins{}
	bus := &sim.Bus{}
	dev := core.NewDevice(pins, bus)

	bus.Request(true)
	bus.Free()
	dev.Dispatch(core.EventBusRead)

	_, loaded := bus.Take()
	assert.False(t, loaded)
	assert.True(t, bus.Pending(), "event must stay pending")
	assert.Equal(t, 0, bus.Acks)
	assert.Equal(t, uint8(0), dev.Transaction().Index)
	assert.Equal(t, uint32(1), dev.Snapshot().ClockFree)
}

func TestUnflaggedWheelNotCounted(t *testing.T) {
	pins := &sim.Pins{}
	bus := &sim.Bus{}
	dev := core.NewDevice(pins, bus)

	// Right lines change but the flags are cleared before dispatch
	pins.SetState(core.WheelRight, 1)
	pins.ClearEdgeFlag(core.RightB)
	pins.Set(core.LeftB, true)
	dev.Dispatch(core.EventPinChange)

	right := dev.Channel(core.WheelRight)
	assert.Equal(t, int32(0), right.Count)
	assert.Equal(t, core.State(1), right.State, "state is resampled for both wheels")
	assert.Equal(t, int32(1), dev.Channel(core.WheelLeft).Count)
}

func TestTransactionPhases(t *testing.T) {
	m := sim.New(core.DefaultAddress)
	m.BeginRead()
	tx := m.Dev.Transaction()
	assert.Equal(t, core.MasterReads, tx.Transfer)
	assert.Equal(t, core.PhaseIdle, tx.Phase)

	m.Write(0x42)
	tx = m.Dev.Transaction()
	assert.Equal(t, core.MasterWrites, tx.Transfer)
	assert.Equal(t, uint32(2), m.Dev.Snapshot().Resets, "address byte and payload byte both reset")
}
