//go:build rp2040 || rp2350

package main

import (
	"machine"

	"quadenc/config"
	"quadenc/core"
	"quadenc/targets/pio"
)

// edgeSource is an encoder sampler the main loop can start and poll
type edgeSource interface {
	core.EncoderPins

	// Start begins edge detection, dispatching into dev
	Start(dev *core.Device) error

	// Poll runs from the main loop
	Poll(dev *core.Device)
}

// pioSource adapts pio.Sampler to edgeSource
type pioSource struct {
	*pio.Sampler
}

func (s pioSource) Start(*core.Device) error {
	s.Sampler.Start()
	return nil
}

func (s pioSource) Poll(dev *core.Device) {
	s.Sampler.Poll(func() {
		dispatchMasked(dev, core.EventPinChange)
	})
}

// selectSampler builds the sampler named in the board config
func selectSampler(cfg *config.BoardConfig) (edgeSource, core.Sampler, error) {
	var lines [core.WheelCount][2]machine.Pin
	var pullUp [core.WheelCount]bool

	for w, name := range map[core.Wheel]string{
		core.WheelRight: config.WheelRight,
		core.WheelLeft:  config.WheelLeft,
	} {
		a, b, err := cfg.Lines(name)
		if err != nil {
			return nil, 0, err
		}
		lines[w] = [2]machine.Pin{machine.Pin(a), machine.Pin(b)}
		pu := cfg.Encoders[name].PullUp
		pullUp[w] = pu == nil || *pu
	}

	if cfg.Sampler == config.SamplerPIO {
		s := pio.NewSampler(0)
		if err := s.Configure(lines, pullUp); err != nil {
			return nil, 0, err
		}
		return pioSource{s}, core.SamplerPIO, nil
	}
	return newIRQPins(lines, pullUp), core.SamplerIRQ, nil
}
