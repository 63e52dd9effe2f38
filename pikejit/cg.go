package pikejit

import "errors"

// ErrUnsupportedArch is returned by Compile on any GOARCH other than
// amd64, the only target asm.go's encoder emits.
var ErrUnsupportedArch = errors.New("pikejit: unsupported architecture")

// queueSlotSize is the byte size of one (pc, handle) queue slot: an
// 8-byte pc and an 8-byte capture-handle value (a register index, an
// array-slot offset, or a tree-node index depending on the CGImpl,
// always representable in 8 bytes).
const queueSlotSize = 16

// queueHeaderSize is the byte size of one queue's (head, tail, size)
// ring-buffer counters, mirroring pikevm.threadQueue's three fields.
const queueHeaderSize = 24

// engineHeaderSize is the byte size of the engine's own bookkeeping
// cells at the front of the scratch region — the native-code analog
// of pikevm's `*result` plus the handful of CallFrame fields the
// routine needs to keep reloading between capture-strategy hook calls
// (which clobber the general-purpose scratch registers, see
// compile.go's header offset constants for the field list).
const engineHeaderSize = 104

// regionLayout describes the fixed partitioning of the single memory
// block a compiled routine receives through CallFrame.StatePtr:
//
//	[ engine header | visited stamps | active queue | next queue | capture region ]
//
// visited is one int64 stamp per bytecode instruction (mirrors
// runState.visited); the two queues are flat ring buffers of
// (pc, handle) slots sized to the bytecode length plus one, since a
// Pike-VM queue can never hold more live threads than there are
// instructions that admit a barrier; the capture region's size and
// internal layout is owned by the selected CGImpl (InitMemSize).
type regionLayout struct {
	engineOff       int32
	visitedOff      int32
	activeHeaderOff int32
	activeArrayOff  int32
	nextHeaderOff   int32
	nextArrayOff    int32
	captureOff      int32
	totalSize       int64
}

func layoutRegion(instrCount int, cg CGImpl) regionLayout {
	engineOff := int32(0)
	visitedOff := engineOff + engineHeaderSize
	activeHeaderOff := visitedOff + int32(instrCount)*8
	activeArrayOff := activeHeaderOff + queueHeaderSize
	queueBytes := int32(instrCount+1) * queueSlotSize
	nextHeaderOff := activeArrayOff + queueBytes
	nextArrayOff := nextHeaderOff + queueHeaderSize
	captureOff := nextArrayOff + queueBytes
	captureSize := int32(cg.InitMemSize())
	return regionLayout{
		engineOff:       engineOff,
		visitedOff:      visitedOff,
		activeHeaderOff: activeHeaderOff,
		activeArrayOff:  activeArrayOff,
		nextHeaderOff:   nextHeaderOff,
		nextArrayOff:    nextArrayOff,
		captureOff:      captureOff,
		totalSize:       int64(captureOff) + int64(captureSize),
	}
}

// CGImpl is the JIT's analogue of capture.Strategy: it emits the
// machine code for each capture-bookkeeping hook instead of executing
// Go directly, so the same four recording disciplines that
// capture.Strategy implements for the interpreter have native-code
// counterparts here. Every hook receives the live Assembler to append
// to and the scratch layout for the region it owns; register operands
// are a small convention shared across hooks (see each method's doc)
// rather than a fixed ABI, since hooks are always inlined at their
// call site rather than `call`ed.
type CGImpl interface {
	// InitMemSize returns the byte size of this strategy's region of
	// the scratch buffer (the `capture region` in layoutRegion).
	InitMemSize() int

	// RegisterCount returns 2*(numCaptureGroups+1), matching
	// bytecode.Bytecode.RegisterCount.
	RegisterCount() int

	// InitializeRegion emits code zeroing/initializing this
	// strategy's scratch region. regionBase holds the region's
	// address on entry.
	InitializeRegion(a *Assembler, regionBase Reg)

	// AllocThread emits code producing a fresh handle (a thread with
	// no registers written) into outHandle.
	AllocThread(a *Assembler, regionBase Reg, outHandle Reg)

	// CloneThread emits code producing an independent (or
	// refcount-shared, per strategy) copy of the handle in srcHandle
	// into outHandle, for the low-priority branch of a fork.
	CloneThread(a *Assembler, regionBase, srcHandle, outHandle Reg)

	// FreeThread emits code releasing handle back to this strategy's
	// free list.
	FreeThread(a *Assembler, regionBase, handle Reg)

	// WriteReg emits code recording pos (a general register) into
	// register regNum (an immediate) of handle, leaving the
	// (possibly reallocated, for copy-on-write) handle in
	// outHandle.
	WriteReg(a *Assembler, regionBase Reg, handle Reg, regNum uint32, pos Reg, outHandle Reg)

	// Accept emits code finalizing handle as the accepting thread
	// (writing the implicit end-of-match register) into outHandle.
	Accept(a *Assembler, regionBase Reg, handle Reg, pos Reg, outHandle Reg)

	// WriteResult emits code walking handle's recorded registers and
	// storing RegisterCount()/2 char.Span pairs (as two int64 each)
	// starting at [outSpansPtr].
	WriteResult(a *Assembler, regionBase Reg, handle Reg, outSpansPtr Reg)
}

// invalidSpanFrom is char.InvalidSpan().From on the only platform this
// package targets (amd64, a 64-bit int): the largest positive int64.
const invalidSpanFrom = uint64(0x7FFFFFFFFFFFFFFF)

// emitResolveSpan rewrites (fromReg, toReg) to char.InvalidSpan()'s
// encoding whenever either register holds unsetPos (the sentinel
// AllocThread/clearBlock write via MovMemImm32, which sign-extends
// 0xFFFFFFFF to all-ones, i.e. -1): a register that was never written
// means its capture group did not participate, the same case
// capture/array.go and capture/cow.go's WriteResult substitute
// InvalidSpan for on the interpreter side.
func emitResolveSpan(a *Assembler, fromReg, toReg Reg) {
	ok := a.NewLabel()
	invalid := a.NewLabel()
	a.CmpRegImm32(fromReg, unsetPos)
	a.Jcc(CondEqual, invalid)
	a.CmpRegImm32(toReg, unsetPos)
	a.Jcc(CondEqual, invalid)
	a.Jmp(ok)
	a.Bind(invalid)
	a.MovRegImm64(fromReg, invalidSpanFrom)
	a.MovRegImm32(toReg, 0)
	a.Bind(ok)
}
