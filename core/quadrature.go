// Quadrature decoding for the two wheel encoders
package core

// Wheel identifies one of the two encoder channels
type Wheel uint8

const (
	WheelRight Wheel = 0
	WheelLeft  Wheel = 1

	WheelCount = 2
)

func (w Wheel) String() string {
	switch w {
	case WheelRight:
		return "right"
	case WheelLeft:
		return "left"
	default:
		return "wheel" + utoa(uint32(w))
	}
}

// State is the 2-bit quadrature state: lineA<<1 | lineB
type State uint8

// StateOf combines two line readings into a quadrature state
func StateOf(lineA, lineB bool) State {
	var s State
	if lineA {
		s |= 2
	}
	if lineB {
		s |= 1
	}
	return s
}

// Direction of the last recognized transition
type Direction uint8

const (
	Reverse Direction = 0
	Forward Direction = 1
)

func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "reverse"
}

// transition table indexed by last<<2 | next
// 0 = not a single-step transition, +1 forward, -1 reverse
var transitions = [16]int8{
	0<<2 | 1: +1,
	1<<2 | 3: +1,
	3<<2 | 2: +1,
	2<<2 | 0: +1,
	0<<2 | 2: -1,
	2<<2 | 3: -1,
	3<<2 | 1: -1,
	1<<2 | 0: -1,
}

// Decode maps a state transition to a direction and count delta.
// A transition that is not a single Gray-code step (no change, or a jump
// of both bits which means an edge was missed) returns ok=false and a
// zero delta; the caller keeps its previous direction.
func Decode(last, next State) (dir Direction, delta int32, ok bool) {
	switch transitions[(last&3)<<2|(next&3)] {
	case +1:
		return Forward, 1, true
	case -1:
		return Reverse, -1, true
	}
	return Reverse, 0, false
}

// EncoderChannel holds the quadrature state and position of one wheel
type EncoderChannel struct {
	State     State
	LastState State
	Direction Direction
	Count     int32

	// Skipped counts two-bit jumps seen while this wheel was flagged
	Skipped uint32
}

// Sample shifts the current state into LastState and stores the new one
func (c *EncoderChannel) Sample(next State) {
	c.LastState = c.State
	c.State = next & 3
}

// Apply decodes LastState -> State and updates direction and count.
// Returns false when the transition was ambiguous.
func (c *EncoderChannel) Apply() bool {
	dir, delta, ok := Decode(c.LastState, c.State)
	if !ok {
		if c.LastState != c.State {
			c.Skipped++
		}
		return false
	}
	c.Direction = dir
	c.Count += delta
	return true
}

// Reset zeroes the count and direction. The quadrature state is kept so
// the next edge still decodes against the physical line levels.
func (c *EncoderChannel) Reset() {
	c.Count = 0
	c.Direction = Reverse
}
