//go:build rp2040 || rp2350

package main

import (
	"machine"

	"quadenc/core"
)

// irqPins implements core.EncoderPins with a GPIO interrupt on both
// edges of every line. The interrupt handler latches the line flag and
// runs Dispatch directly.
type irqPins struct {
	pins      [core.LineCount]machine.Pin
	flags     [core.LineCount]bool
	pinChange bool
}

func newIRQPins(lines [core.WheelCount][2]machine.Pin, pullUp [core.WheelCount]bool) *irqPins {
	p := &irqPins{}
	for w := core.Wheel(0); w < core.WheelCount; w++ {
		mode := machine.PinInput
		if pullUp[w] {
			mode = machine.PinInputPullup
		}
		la, lb := w.Lines()
		p.pins[la], p.pins[lb] = lines[w][0], lines[w][1]
		p.pins[la].Configure(machine.PinConfig{Mode: mode})
		p.pins[lb].Configure(machine.PinConfig{Mode: mode})
	}
	return p
}

// Start installs the interrupt handlers
func (p *irqPins) Start(dev *core.Device) error {
	for l := range p.pins {
		line := core.Line(l)
		err := p.pins[l].SetInterrupt(machine.PinToggle, func(machine.Pin) {
			p.flags[line] = true
			p.pinChange = true
			dev.Dispatch(core.EventPinChange)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Poll is a no-op: edges arrive by interrupt
func (p *irqPins) Poll(*core.Device) {}

func (p *irqPins) ReadLines(w core.Wheel) (a, b bool) {
	la, lb := w.Lines()
	return p.pins[la].Get(), p.pins[lb].Get()
}

func (p *irqPins) EdgeFlag(l core.Line) bool {
	return p.flags[l]
}

func (p *irqPins) ClearEdgeFlag(l core.Line) {
	p.flags[l] = false
}

func (p *irqPins) ClearPinChange() {
	p.pinChange = false
	for i := range p.flags {
		p.flags[i] = false
	}
}
