//go:build rp2040 || rp2350

package main

import (
	"errors"
	"machine"

	"quadenc/config"
	"quadenc/core"
)

// targetBus implements core.BusPeripheral on TinyGo's I2C target mode.
// machine.I2C reports whole transfers rather than single bytes, so the
// serve loop replays each one byte at a time: a write becomes the
// address byte plus one event per data byte, a read request is one byte
// whose address phase is the first request since the last stop.
type targetBus struct {
	i2c  *machine.I2C
	addr core.I2CAddress

	held    bool
	address bool
	rx      byte
	tx      byte
	loaded  bool

	// Errors counts failed WaitForEvent and Reply calls
	Errors uint32
}

// newTargetBus configures the selected I2C block as a target on the
// configured pins and address
func newTargetBus(cfg *config.BoardConfig) (*targetBus, error) {
	var i2c *machine.I2C
	switch cfg.I2CBus {
	case 0:
		i2c = machine.I2C0
	case 1:
		i2c = machine.I2C1
	default:
		return nil, errors.New("unsupported I2C bus ID")
	}

	sda, err := config.ParsePin(cfg.SDAPin)
	if err != nil {
		return nil, err
	}
	scl, err := config.ParsePin(cfg.SCLPin)
	if err != nil {
		return nil, err
	}

	err = i2c.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       machine.Pin(sda),
		SCL:       machine.Pin(scl),
		Mode:      machine.I2CModeTarget,
	})
	if err != nil {
		return nil, err
	}
	if err := i2c.Listen(uint16(cfg.Address)); err != nil {
		return nil, err
	}

	return &targetBus{
		i2c:  i2c,
		addr: core.I2CAddress(cfg.Address),
	}, nil
}

// serve waits for bus events forever, handing each byte to dispatch
func (b *targetBus) serve(dispatch func(core.Event)) {
	buf := make([]byte, 16)
	reading := false
	for {
		evt, n, err := b.i2c.WaitForEvent(buf)
		if err != nil {
			b.Errors++
			continue
		}

		switch evt {
		case machine.I2CReceive:
			b.deliver(uint8(b.addr)<<1, true)
			dispatch(core.EventBusWrite)
			for _, v := range buf[:n] {
				b.deliver(v, false)
				dispatch(core.EventBusWrite)
			}
			reading = false

		case machine.I2CRequest:
			b.held = true
			b.address = !reading
			b.loaded = false
			reading = true
			dispatch(core.EventBusRead)

		case machine.I2CFinish:
			reading = false
		}
	}
}

func (b *targetBus) deliver(v byte, address bool) {
	b.held = true
	b.address = address
	b.rx = v
}

func (b *targetBus) ClockHeld() bool {
	return b.held
}

func (b *targetBus) AddressPhase() bool {
	return b.address
}

func (b *targetBus) Receive() byte {
	return b.rx
}

func (b *targetBus) Transmit(v byte) {
	b.tx = v
	b.loaded = true
}

// ReleaseClock hands a loaded byte to the peripheral, which lets the
// master clock it out
func (b *targetBus) ReleaseClock() {
	b.held = false
	if !b.loaded {
		return
	}
	b.loaded = false
	if err := b.i2c.Reply([]byte{b.tx}); err != nil {
		b.Errors++
	}
}

// AckEvent is a no-op: WaitForEvent already cleared the interrupt flags
func (b *targetBus) AckEvent() {}
