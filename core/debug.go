package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TraceKind identifies a recorded decoder or bus event
type TraceKind uint8

// Trace kinds
const (
	TraceSkippedEdge  TraceKind = 1 // two-bit jump on a flagged wheel, Value = last<<2 | next
	TraceBusReset     TraceKind = 2 // master write reset both channels, Value = payload byte
	TraceSessionStart TraceKind = 3 // address byte of a read, Value = previous byte index
	TraceIndexWrap    TraceKind = 4 // byte index wrapped past the packet end
	TraceClockFree    TraceKind = 5 // read event while the clock was not held
)

// TraceRingSize is the number of trace entries kept for post-mortem
const TraceRingSize = 32

// TraceEntry captures one event recorded from interrupt context
type TraceEntry struct {
	Kind  TraceKind
	Wheel Wheel
	Seq   uint32 // Dispatch invocation number
	Value uint32
}

// TraceRing is a fixed-size ring of trace entries.
// Recording never blocks and never allocates.
type TraceRing struct {
	entries [TraceRingSize]TraceEntry
	head    uint8
}

// Record stores an entry, overwriting the oldest one when full
func (r *TraceRing) Record(kind TraceKind, wheel Wheel, seq, value uint32) {
	idx := r.head
	r.entries[idx] = TraceEntry{Kind: kind, Wheel: wheel, Seq: seq, Value: value}
	r.head = (idx + 1) % TraceRingSize
}

// Entries returns the recorded entries from oldest to newest
func (r *TraceRing) Entries() []TraceEntry {
	out := make([]TraceEntry, 0, TraceRingSize)
	for i := uint8(0); i < TraceRingSize; i++ {
		e := r.entries[(r.head+i)%TraceRingSize]
		if e.Kind == 0 {
			continue // Empty slot
		}
		out = append(out, e)
	}
	return out
}

// Clear empties the ring
func (r *TraceRing) Clear() {
	for i := range r.entries {
		r.entries[i] = TraceEntry{}
	}
	r.head = 0
}

func (k TraceKind) String() string {
	switch k {
	case TraceSkippedEdge:
		return "SKIPPED_EDGE"
	case TraceBusReset:
		return "BUS_RESET"
	case TraceSessionStart:
		return "SESSION"
	case TraceIndexWrap:
		return "INDEX_WRAP"
	case TraceClockFree:
		return "CLOCK_FREE"
	default:
		return "UNKNOWN"
	}
}

var (
	// debugPrintln is the global debug print function (set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether DebugPrintln output is active
	debugEnabled bool = false
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message using the platform-specific writer.
// Never call this from Dispatch: the writer may block on the UART.
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DumpTrace writes the trace ring through the debug writer when debug
// output is enabled
func DumpTrace(r *TraceRing) {
	if !debugEnabled || debugPrintln == nil {
		return
	}
	debugPrintln("[TRACE] === Trace Ring Dump ===")
	for _, e := range r.Entries() {
		debugPrintln("[TRACE] " + e.Kind.String() +
			" wheel=" + e.Wheel.String() +
			" seq=" + utoa(e.Seq) +
			" v=" + utoa(e.Value))
	}
	debugPrintln("[TRACE] === End Dump ===")
}
