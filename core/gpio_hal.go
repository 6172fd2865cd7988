package core

// Line identifies one quadrature input line
type Line uint8

const (
	RightA Line = iota
	RightB
	LeftA
	LeftB

	LineCount = 4
)

// Lines returns the (A, B) pair belonging to a wheel
func (w Wheel) Lines() (a, b Line) {
	if w == WheelLeft {
		return LeftA, LeftB
	}
	return RightA, RightB
}

// EncoderPins is the abstract pin-change interface that core code uses.
// Platform-specific implementations own the actual input pins and their
// change-detection flags.
type EncoderPins interface {
	// ReadLines samples both quadrature lines of a wheel
	ReadLines(w Wheel) (a, b bool)

	// EdgeFlag reports whether a change was latched on a line
	EdgeFlag(l Line) bool

	// ClearEdgeFlag clears the latched change on a single line
	ClearEdgeFlag(l Line)

	// ClearPinChange clears the aggregate pin-change event
	ClearPinChange()
}
