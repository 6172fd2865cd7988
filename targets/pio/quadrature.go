//go:build rp2040 || rp2350

package pio

// PIO quadrature sampler using tinygo-org/pio.
// One state machine per wheel watches two adjacent input pins and pushes
// their levels into its RX FIFO every time they change, so no edge is
// lost while the CPU is busy on the bus.

import (
	"errors"
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"quadenc/core"
)

var ErrNoStateMachine = errors.New("pio: no free state machine")

// buildSamplerProgram creates the change detector using AssemblerV0.
// Y holds the last pushed sample; it starts at 4 so the first sample is
// always pushed.
func buildSamplerProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Mov(rp2pio.MovDestISR, rp2pio.MovSrcNull).Encode(), // 0: mov isr, null
		asm.In(rp2pio.InSrcPins, 2).Encode(),                   // 1: in pins, 2
		asm.Mov(rp2pio.MovDestX, rp2pio.MovSrcISR).Encode(),    // 2: mov x, isr
		asm.Jmp(5, rp2pio.JmpXNotEqualY).Encode(),              // 3: jmp x!=y, 5
		asm.Jmp(0, rp2pio.JmpAlways).Encode(),                  // 4: jmp 0
		asm.Mov(rp2pio.MovDestY, rp2pio.MovSrcX).Encode(),      // 5: mov y, x
		asm.Push(false, false).Encode(),                        // 6: push noblock
		// .wrap
	}
}

const samplerOrigin = 0 // Jump addresses are absolute

// Sampler implements core.EncoderPins on top of two PIO state machines.
// Line levels and edge flags are updated by Poll, not by interrupts.
type Sampler struct {
	pio *rp2pio.PIO
	sms [core.WheelCount]rp2pio.StateMachine

	// swapped is set when B sits on the lower pin of a wheel
	swapped [core.WheelCount]bool

	levels    [core.LineCount]bool
	flags     [core.LineCount]bool
	pinChange bool

	// Overflows counts polls that found a FIFO full, edges may be lost
	Overflows uint32
}

// NewSampler creates a sampler on PIO0 or PIO1
func NewSampler(pioNum uint8) *Sampler {
	pioHW := rp2pio.PIO0
	if pioNum != 0 {
		pioHW = rp2pio.PIO1
	}
	return &Sampler{pio: pioHW}
}

// Configure loads the program and starts one state machine per wheel.
// lines holds the A and B pin of each wheel; they must be adjacent.
func (s *Sampler) Configure(lines [core.WheelCount][2]machine.Pin, pullUp [core.WheelCount]bool) error {
	program := buildSamplerProgram()
	offset, err := s.pio.AddProgram(program, samplerOrigin)
	if err != nil {
		return err
	}

	for w := core.Wheel(0); w < core.WheelCount; w++ {
		sm := s.pio.StateMachine(uint8(w))
		if !sm.TryClaim() {
			return ErrNoStateMachine
		}
		s.sms[w] = sm

		a, b := lines[w][0], lines[w][1]
		base := a
		if b < a {
			base = b
			s.swapped[w] = true
		}

		mode := machine.PinInput
		if pullUp[w] {
			mode = machine.PinInputPullup
		}
		a.Configure(machine.PinConfig{Mode: mode})
		b.Configure(machine.PinConfig{Mode: mode})

		cfg := rp2pio.DefaultStateMachineConfig()
		cfg.SetInPins(base, 2)
		// Shift left so the base pin lands in bit 0, no autopush
		cfg.SetInShift(false, false, 32)
		cfg.SetWrap(offset+uint8(len(program))-1, offset)

		sm.Init(offset, cfg)
		sm.SetPindirsConsecutive(base, 2, false)

		asm := rp2pio.AssemblerV0{SidesetBits: 0}
		sm.Exec(asm.Set(rp2pio.SetDestY, 4).Encode())
	}
	return nil
}

// Start enables both state machines
func (s *Sampler) Start() {
	for _, sm := range s.sms {
		sm.SetEnabled(true)
	}
}

// Poll drains both RX FIFOs. Every sample that changed a line latches the
// edge flags and runs dispatch, so each pushed sample is decoded on its
// own. Returns the number of samples taken.
func (s *Sampler) Poll(dispatch func()) int {
	n := 0
	for w := core.Wheel(0); w < core.WheelCount; w++ {
		sm := s.sms[w]
		if sm.IsRxFIFOFull() {
			s.Overflows++
		}
		for !sm.IsRxFIFOEmpty() {
			s.latch(w, sm.RxGet())
			n++
			if s.pinChange {
				dispatch()
			}
		}
	}
	return n
}

func (s *Sampler) latch(w core.Wheel, sample uint32) {
	lo, hi := sample&1 != 0, sample&2 != 0
	if s.swapped[w] {
		lo, hi = hi, lo
	}
	la, lb := w.Lines()
	s.set(la, lo)
	s.set(lb, hi)
}

func (s *Sampler) set(l core.Line, level bool) {
	if s.levels[l] != level {
		s.levels[l] = level
		s.flags[l] = true
		s.pinChange = true
	}
}

func (s *Sampler) ReadLines(w core.Wheel) (a, b bool) {
	la, lb := w.Lines()
	return s.levels[la], s.levels[lb]
}

func (s *Sampler) EdgeFlag(l core.Line) bool {
	return s.flags[l]
}

func (s *Sampler) ClearEdgeFlag(l core.Line) {
	s.flags[l] = false
}

func (s *Sampler) ClearPinChange() {
	s.pinChange = false
	for i := range s.flags {
		s.flags[i] = false
	}
}
