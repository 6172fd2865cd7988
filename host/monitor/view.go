// Package monitor republishes encoder board telemetry: as JSON over HTTP
// and websockets, and to an MQTT broker.
package monitor

import (
	"time"

	"quadenc/core"
	"quadenc/host/mcu"
)

// Source is the telemetry the monitor serves. *mcu.MCU implements it.
type Source interface {
	State() (mcu.State, error)
	Trace() []core.TraceEntry
	Stats() mcu.Stats
	Identity() *core.Identity
	Subscribe() (<-chan mcu.State, func())
}

// WheelView is the JSON form of one encoder channel
type WheelView struct {
	Direction string `json:"direction"`
	Count     int32  `json:"count"`
	Skipped   uint32 `json:"skipped"`
}

// StateView is the JSON form of an encoder_state report
type StateView struct {
	Right     WheelView `json:"right"`
	Left      WheelView `json:"left"`
	Resets    uint32    `json:"resets"`
	Sessions  uint32    `json:"sessions"`
	ClockFree uint32    `json:"clock_free"`
	Received  time.Time `json:"received"`
}

// TraceView is the JSON form of a trace entry
type TraceView struct {
	Kind  string `json:"kind"`
	Wheel string `json:"wheel"`
	Seq   uint32 `json:"seq"`
	Value uint32 `json:"value"`
}

// IdentityView is the JSON form of an identify report
type IdentityView struct {
	Version string `json:"version"`
	Address uint8  `json:"address"`
	Sampler string `json:"sampler"`
}

func wheelView(ch core.EncoderChannel) WheelView {
	return WheelView{
		Direction: ch.Direction.String(),
		Count:     ch.Count,
		Skipped:   ch.Skipped,
	}
}

// NewStateView converts a state report
func NewStateView(s mcu.State) StateView {
	return StateView{
		Right:     wheelView(s.Right),
		Left:      wheelView(s.Left),
		Resets:    s.Resets,
		Sessions:  s.Sessions,
		ClockFree: s.ClockFree,
		Received:  s.Received,
	}
}

// NewTraceView converts trace entries
func NewTraceView(entries []core.TraceEntry) []TraceView {
	views := make([]TraceView, 0, len(entries))
	for _, e := range entries {
		views = append(views, TraceView{
			Kind:  e.Kind.String(),
			Wheel: e.Wheel.String(),
			Seq:   e.Seq,
			Value: e.Value,
		})
	}
	return views
}

// NewIdentityView converts an identify report
func NewIdentityView(id core.Identity) IdentityView {
	return IdentityView{
		Version: id.Version(),
		Address: uint8(id.Address),
		Sampler: id.Sampler.String(),
	}
}
