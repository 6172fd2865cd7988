package mcu

import (
	"io"
	"testing"
	"time"

	"github.com/Masterminds/semver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quadenc/core"
	"quadenc/host/serial"
	"quadenc/protocol"
	"quadenc/sim"
)

func report(t *testing.T, m *sim.Machine) []byte {
	t.Helper()
	out := protocol.NewScratchOutput()
	r := core.NewReporter(m.Dev, out)
	require.NoError(t, r.Identify(m.Address, core.SamplerIRQ))
	require.NoError(t, r.Report())
	require.NoError(t, r.ReportTrace())
	return append([]byte(nil), out.Result()...)
}

func TestFeedState(t *testing.T) {
	board := sim.New(core.DefaultAddress)
	board.Turn(core.WheelRight, 10)
	board.Turn(core.WheelLeft, -4)
	board.Write(0x01)
	board.Turn(core.WheelLeft, 2)

	m := NewMCU()
	_, err := m.State()
	require.ErrorIs(t, err, ErrNoState)

	m.Feed(report(t, board))

	s, err := m.State()
	require.NoError(t, err)
	assert.Equal(t, int32(0), s.Right.Count)
	assert.Equal(t, int32(2), s.Left.Count)
	assert.Equal(t, uint32(2), s.Resets)
	assert.False(t, s.Received.IsZero())

	require.NotNil(t, m.Identity())
	assert.Equal(t, core.I2CAddress(core.DefaultAddress), m.Identity().Address)
	require.NoError(t, m.WaitIdentify(time.Second))

	trace := m.Trace()
	require.Len(t, trace, 2)
	assert.Equal(t, core.TraceBusReset, trace[0].Kind)

	st := m.Stats()
	assert.Equal(t, uint64(4), st.Frames)
	assert.Zero(t, st.Errors)
	assert.Zero(t, st.Unknown)
}

func TestUnknownMessage(t *testing.T) {
	out := protocol.NewScratchOutput()
	w := protocol.NewFrameWriter(out)
	require.NoError(t, w.SendMessage(42, nil))

	m := NewMCU()
	m.Feed(out.Result())
	assert.Equal(t, uint64(1), m.Stats().Unknown)
}

func TestAttachAndSubscribe(t *testing.T) {
	board := sim.New(core.DefaultAddress)
	r, w := io.Pipe()

	m := NewMCU()
	states, cancel := m.Subscribe()
	defer cancel()
	m.Attach(serial.NewPipePort(r, nil))
	require.True(t, m.IsConnected())

	board.Turn(core.WheelRight, 3)
	go w.Write(report(t, board))

	select {
	case s := <-states:
		assert.Equal(t, int32(3), s.Right.Count)
	case <-time.After(time.Second):
		t.Fatal("no state received")
	}

	w.Close()
	select {
	case _, ok := <-states:
		assert.False(t, ok, "subscription should close with the port")
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}
	require.NoError(t, m.Close())
	assert.False(t, m.IsConnected())
}

func TestWaitIdentifyTimeout(t *testing.T) {
	m := NewMCU()
	require.ErrorIs(t, m.WaitIdentify(10*time.Millisecond), ErrIdentifyTimeout)
}

func TestCheckVersion(t *testing.T) {
	for _, tc := range []struct {
		version string
		ok      bool
	}{
		{"0.1.0", true},
		{"0.1.7", true},
		{"0.2.0", false},
		{"1.0.0", false},
	} {
		v, err := semver.NewVersion(tc.version)
		require.NoError(t, err)
		err = CheckVersion(v)
		if tc.ok {
			assert.NoError(t, err, tc.version)
		} else {
			assert.ErrorIs(t, err, ErrIncompatible, tc.version)
		}
	}
}
