package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quadenc/core"
	"quadenc/host/mcu"
	"quadenc/protocol"
	"quadenc/sim"
)

// feed runs the board's telemetry through a host MCU
func feed(t *testing.T, m *mcu.MCU, board *sim.Machine, identify bool) {
	t.Helper()
	out := protocol.NewScratchOutput()
	r := core.NewReporter(board.Dev, out)
	if identify {
		require.NoError(t, r.Identify(board.Address, core.SamplerIRQ))
	}
	require.NoError(t, r.Report())
	require.NoError(t, r.ReportTrace())
	m.Feed(out.Result())
}

func TestStateEndpoint(t *testing.T) {
	m := mcu.NewMCU()
	srv := httptest.NewServer(NewRouter(m))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/state")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	board := sim.New(core.DefaultAddress)
	board.Turn(core.WheelRight, 6)
	board.Turn(core.WheelLeft, -2)
	board.Jump(core.WheelLeft, 0) // 3 -> 0 skipped
	feed(t, m, board, true)

	resp, err = http.Get(srv.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view StateView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, WheelView{Direction: "forward", Count: 6}, view.Right)
	assert.Equal(t, WheelView{Direction: "reverse", Count: -2, Skipped: 1}, view.Left)
}

func TestTraceAndIdentityEndpoints(t *testing.T) {
	m := mcu.NewMCU()
	srv := httptest.NewServer(NewRouter(m))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/identity")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	board := sim.New(0x22)
	board.Write(0x00)
	feed(t, m, board, true)

	resp, err = http.Get(srv.URL + "/api/identity")
	require.NoError(t, err)
	var id IdentityView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&id))
	resp.Body.Close()
	assert.Equal(t, IdentityView{Version: protocol.Version, Address: 0x22, Sampler: "irq"}, id)

	resp, err = http.Get(srv.URL + "/api/trace")
	require.NoError(t, err)
	var trace []TraceView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&trace))
	resp.Body.Close()
	require.Len(t, trace, 2)
	assert.Equal(t, "BUS_RESET", trace[0].Kind)

	resp, err = http.Get(srv.URL + "/api/stats")
	require.NoError(t, err)
	var stats mcu.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	resp.Body.Close()
	assert.Equal(t, uint64(4), stats.Frames)
}

func TestWebsocketStream(t *testing.T) {
	m := mcu.NewMCU()
	srv := httptest.NewServer(NewRouter(m))
	defer srv.Close()

	board := sim.New(core.DefaultAddress)
	board.Turn(core.WheelRight, 1)
	feed(t, m, board, false)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/state"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var view StateView
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&view))
	assert.Equal(t, int32(1), view.Right.Count, "current state is sent first")

	// Wait for the handler to subscribe, then push a new state
	deadline := time.Now().Add(2 * time.Second)
	for {
		board.Turn(core.WheelRight, 1)
		feed(t, m, board, false)
		require.NoError(t, conn.ReadJSON(&view))
		if view.Right.Count > 1 || time.Now().After(deadline) {
			break
		}
	}
	assert.True(t, view.Right.Count > 1)
}

type fakeClient struct {
	mu     sync.Mutex
	topics []string
	bodies [][]byte
	retain []bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
	c.bodies = append(c.bodies, payload.([]byte))
	c.retain = append(c.retain, retained)
	return &paho.DummyToken{}
}

func (c *fakeClient) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.topics)
}

func TestMQTTBridge(t *testing.T) {
	m := mcu.NewMCU()
	client := &fakeClient{}
	bridge := NewMQTTBridge(client, "robo/", "abc")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bridge.Run(ctx, m) }()

	board := sim.New(core.DefaultAddress)
	board.Turn(core.WheelLeft, 9)
	// The bridge subscribes asynchronously; repeat until it publishes
	require.Eventually(t, func() bool {
		feed(t, m, board, true)
		return client.count() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Equal(t, "robo/quadenc/abc/meta", client.topics[0])
	assert.True(t, client.retain[0])
	assert.Equal(t, "robo/quadenc/abc/state", client.topics[1])

	var view StateView
	require.NoError(t, json.Unmarshal(client.bodies[1], &view))
	assert.Equal(t, int32(9), view.Left.Count)
}

func TestClientOptionsFromURL(t *testing.T) {
	opts, prefix, err := ClientOptionsFromURL("mqtt://user:pw@broker:1883/robo?client-id=mon1")
	require.NoError(t, err)
	assert.Equal(t, "robo/", prefix)

	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "tcp://broker:1883", opts.Servers[0].String())
	assert.Equal(t, "user", opts.Username)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, "mon1", opts.ClientID)
}
