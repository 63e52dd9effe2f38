package pikejit

import "unsafe"

// CallFrame packs the calling convention — subject pointer/length,
// output spans, the scratch-state pointer, the search span,
// first_match, anchored, and the character preceding the span — into one
// fixed-layout struct, a single pointer to which is the sole argument
// the generated routine's trampoline actually receives (see
// call_amd64.s). The routine's own prologue loads each field from
// fixed offsets off that one pointer into working registers, so the
// hand-written Go assembly trampoline only has to pass one register
// across the Go/native ABI boundary instead of ten.
type CallFrame struct {
	SubjectPtr    uintptr
	SubjectLen    int64
	OutSpansPtr   uintptr
	OutSpansCount int64
	StatePtr      uintptr
	SpanFrom      int64
	SpanTo        int64
	FirstMatch    int64
	Anchored      int64
	PrevChar      uint64
}

// Byte offsets of each CallFrame field, computed once so the emitter
// can reference them as immediate displacements without depending on
// the Go compiler's struct layout at code-generation time matching
// what it assumed when emitting MovRegMem/MovMemReg instructions.
var (
	offSubjectPtr    = int32(unsafe.Offsetof(CallFrame{}.SubjectPtr))
	offSubjectLen    = int32(unsafe.Offsetof(CallFrame{}.SubjectLen))
	offOutSpansPtr   = int32(unsafe.Offsetof(CallFrame{}.OutSpansPtr))
	offOutSpansCount = int32(unsafe.Offsetof(CallFrame{}.OutSpansCount))
	offStatePtr      = int32(unsafe.Offsetof(CallFrame{}.StatePtr))
	offSpanFrom      = int32(unsafe.Offsetof(CallFrame{}.SpanFrom))
	offSpanTo        = int32(unsafe.Offsetof(CallFrame{}.SpanTo))
	offFirstMatch    = int32(unsafe.Offsetof(CallFrame{}.FirstMatch))
	offAnchored      = int32(unsafe.Offsetof(CallFrame{}.Anchored))
	offPrevChar      = int32(unsafe.Offsetof(CallFrame{}.PrevChar))
)
