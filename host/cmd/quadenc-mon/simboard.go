package main

import (
	"context"
	"io"
	"time"

	"github.com/golang/glog"

	"quadenc/config"
	"quadenc/core"
	"quadenc/protocol"
	"quadenc/sim"
	"quadenc/wheelenc"
)

// identifyEvery is how many telemetry rounds pass between identify frames
const identifyEvery = 50

// simBoard runs the firmware core in-process. Its telemetry loop plays
// the part of the target main loop; the shell plays the bus master.
type simBoard struct {
	cfg      *config.BoardConfig
	machine  *sim.Machine
	master   wheelenc.Device
	interval time.Duration
}

func newSimBoard(cfg *config.BoardConfig) *simBoard {
	m := sim.New(core.I2CAddress(cfg.Address))
	master := wheelenc.New(m)
	master.Configure(wheelenc.Config{
		Address:     uint16(cfg.Address),
		StableReads: 3,
	})

	return &simBoard{
		cfg:      cfg,
		machine:  m,
		master:   master,
		interval: time.Duration(cfg.TelemetryIntervalMs) * time.Millisecond,
	}
}

// stream writes telemetry frames to w until ctx is done or w fails.
// Frames are written with the machine locked, so a slow reader stalls the
// simulated board the way a full UART would. A zero interval disables
// telemetry, as on the target.
func (b *simBoard) stream(ctx context.Context, w io.Writer) {
	if b.interval <= 0 {
		<-ctx.Done()
		return
	}
	rep := core.NewReporter(b.machine.Dev, protocol.NewWriterOutput(w))
	addr := core.I2CAddress(b.cfg.Address)
	sampler := samplerOf(b.cfg)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for round := 0; ; round++ {
		var err error
		b.machine.Do(func(*core.Device) {
			if round%identifyEvery == 0 {
				if err = rep.Identify(addr, sampler); err != nil {
					return
				}
			}
			if err = rep.Report(); err != nil {
				return
			}
			err = rep.ReportTrace()
		})
		if err != nil {
			glog.V(1).Infof("sim telemetry stopped: %v", err)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
