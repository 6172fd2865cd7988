//go:build rp2040 || rp2350

package main

import (
	_ "embed"
	"machine"
	"runtime/interrupt"
	"time"

	"quadenc/config"
	"quadenc/core"
	"quadenc/protocol"
)

//go:embed board.json
var boardJSON []byte

const (
	// identifyEvery is how many telemetry frames pass between identify frames
	identifyEvery = 50

	watchdogTimeoutMs = 1000
)

var (
	dev *core.Device

	// Debug counters
	telemetrySent   uint32
	telemetryErrors uint32
)

func main() {
	// Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	cfg, err := config.LoadConfig(boardJSON)
	if err != nil {
		fail()
	}
	initDebug(cfg.Debug)

	src, sampler, err := selectSampler(cfg)
	if err != nil {
		core.DebugPrintln("[BOOT] sampler: " + err.Error())
		fail()
	}
	bus, err := newTargetBus(cfg)
	if err != nil {
		core.DebugPrintln("[BOOT] i2c: " + err.Error())
		fail()
	}

	dev = core.NewDevice(src, bus)

	// Pick up the resting line levels without counting them
	dispatchMasked(dev, core.EventPinChange)

	if err := src.Start(dev); err != nil {
		core.DebugPrintln("[BOOT] start: " + err.Error())
		fail()
	}
	go bus.serve(func(e core.Event) {
		dispatchMasked(dev, e)
	})
	core.DebugPrintln("[BOOT] listening")

	// Telemetry goes to USB CDC, one frame per write
	machine.Serial.Configure(machine.UARTConfig{})
	reporter := core.NewReporter(dev, protocol.NewWriterOutput(machine.Serial))
	interval := time.Duration(cfg.TelemetryIntervalMs) * time.Millisecond
	lastReport := time.Now()
	var lastSkipped uint32

	machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: watchdogTimeoutMs})
	machine.Watchdog.Start()

	for {
		machine.Watchdog.Update()
		src.Poll(dev)

		if interval > 0 && time.Since(lastReport) >= interval {
			lastReport = time.Now()
			report(reporter, core.I2CAddress(cfg.Address), sampler)
		}

		if core.IsDebugEnabled() {
			s := dev.Snapshot()
			if skipped := s.Right.Skipped + s.Left.Skipped; skipped != lastSkipped {
				lastSkipped = skipped
				dev.DumpEvents()
			}
		}

		// Yield to the bus goroutine
		time.Sleep(10 * time.Microsecond)
	}
}

// dispatchMasked runs Dispatch with interrupts disabled, for callers
// outside interrupt context
func dispatchMasked(dev *core.Device, e core.Event) {
	state := interrupt.Disable()
	dev.Dispatch(e)
	interrupt.Restore(state)
}

func report(r *core.Reporter, addr core.I2CAddress, sampler core.Sampler) {
	if telemetrySent%identifyEvery == 0 {
		if err := r.Identify(addr, sampler); err != nil {
			telemetryErrors++
		}
	}
	if err := r.Report(); err != nil {
		telemetryErrors++
	}
	if err := r.ReportTrace(); err != nil {
		telemetryErrors++
	}
	telemetrySent++
}

// fail blinks the LED forever
func fail() {
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for {
		led.High()
		time.Sleep(100 * time.Millisecond)
		led.Low()
		time.Sleep(100 * time.Millisecond)
	}
}
