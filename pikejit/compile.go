package pikejit

import (
	"fmt"
	"runtime"

	"github.com/coregx/pikeregex/bytecode"
	"github.com/coregx/pikeregex/char"
)

// Engine-header memory cell offsets. Everything the routine needs to
// survive across a capture-strategy hook call (which by convention
// clobbers RAX/RCX/RDX/RBX/R8/R9/R10/R11) lives here rather than in a
// register, and is reloaded into scratch registers at each point of
// use. R12 (whole-region base) and R14 (subject pointer) are the only
// values kept in registers for the routine's whole lifetime, since no
// hook implementation touches either.
const (
	hBestValid      int32 = 0
	hBestHandle     int32 = 8
	hBestEnd        int32 = 16
	hPos            int32 = 24
	hPrevChar       int32 = 32
	hCurrChar       int32 = 40
	hSpanTo         int32 = 48
	hFramePtr       int32 = 56
	hOutSpansPtr    int32 = 64
	hOutSpansCount  int32 = 72
	hFirstMatch     int32 = 80
	hNextPos        int32 = 88
	hAnchored       int32 = 96
)

// regionBase, the whole scratch block's address, lives in R12 for the
// entire routine. subjectPtr lives in R14. RSI carries the "current
// thread's handle" register live across direct jumps between
// instruction blocks. R13 is recomputed to hold the capture region's
// base address (regionBase+captureOff) immediately before every
// CGImpl hook call, since no hook implementation touches R13 either.
const (
	regRegionBase = R12
	regSubject    = R14
	regHandle     = RSI
)

// Compiler emits one native routine per Bytecode program, following
// the emission schema below: a label per instruction, a
// barrier-guarded entry to each, direct jumps for statically-known
// epsilon transitions (Fork2/ForkN/Jmp/WriteReg/Assertion all target
// compile-time-constant instruction indices), and a single linear
// dispatch chain used only at the one point a thread's next pc is a
// runtime value — immediately after popping it off a queue.
type Compiler struct {
	bc       *bytecode.Bytecode
	cg       CGImpl
	asm      *Assembler
	layout   regionLayout
	pcLabels []int

	dispatchActive int
	mainLoop       int
	afterActive    int
	advance        int
	finish         int
}

// maxLiveThreads bounds queue and CG-region capacity: a Pike-VM
// thread count never exceeds one per bytecode instruction (the
// visited-stamp invariant is exactly this bound), so
// instrCount+1 is always sufficient headroom.
func maxLiveThreads(bc *bytecode.Bytecode) int {
	return bc.Len() + 1
}

// Compile builds a native routine for bc using capture strategy kind.
// It returns ErrUnsupportedArch on any non-amd64 GOARCH, since asm.go
// only encodes x86-64.
func Compile(bc *bytecode.Bytecode, kind CaptureKind) (*Jitted, error) {
	if runtime.GOARCH != "amd64" {
		return nil, ErrUnsupportedArch
	}
	maxThreads := maxLiveThreads(bc)
	cg := newCG(kind, bc.RegisterCount, maxThreads)

	c := &Compiler{
		bc:       bc,
		cg:       cg,
		asm:      NewAssembler(),
		pcLabels: make([]int, bc.Len()),
	}
	c.layout = layoutRegion(bc.Len(), cg)
	for i := range c.pcLabels {
		c.pcLabels[i] = c.asm.NewLabel()
	}
	c.dispatchActive = c.asm.NewLabel()
	c.mainLoop = c.asm.NewLabel()
	c.afterActive = c.asm.NewLabel()
	c.advance = c.asm.NewLabel()
	c.finish = c.asm.NewLabel()

	c.emitPrologue()
	c.emitMainLoop()
	for i, instr := range bc.Instructions {
		c.asm.Bind(c.pcLabels[i])
		c.emitBarrierGuard(i)
		c.emitInstruction(i, &instr)
	}
	c.emitFinish()

	code := c.asm.Finish()
	return newJitted(code, c.layout, cg, bc.RegisterCount)
}

// captureBase recomputes R13 = regionBase + captureOff immediately
// before a hook call; cheap (two instructions) and avoids relying on
// any register surviving across arbitrary hook bodies except the two
// this package's CGImpl implementations are documented never to
// touch.
func (c *Compiler) captureBase() Reg {
	c.asm.MovRegReg(R13, regRegionBase)
	c.asm.AddRegImm32(R13, uint32(c.layout.captureOff))
	return R13
}

func (c *Compiler) emitPrologue() {
	a := c.asm
	// RDI holds the CallFrame* on entry (call_amd64.s's convention).
	a.MovRegMem(regRegionBase, RDI, offStatePtr)
	a.MovRegMem(regSubject, RDI, offSubjectPtr)
	a.MovMemReg(regRegionBase, hFramePtr, RDI)

	a.MovRegMem(RAX, RDI, offSpanFrom)
	a.MovMemReg(regRegionBase, hPos, RAX)
	a.MovRegMem(RAX, RDI, offSpanTo)
	a.MovMemReg(regRegionBase, hSpanTo, RAX)
	a.MovRegMem(RAX, RDI, offPrevChar)
	a.MovMemReg(regRegionBase, hPrevChar, RAX)
	a.MovRegMem(RAX, RDI, offOutSpansPtr)
	a.MovMemReg(regRegionBase, hOutSpansPtr, RAX)
	a.MovRegMem(RAX, RDI, offOutSpansCount)
	a.MovMemReg(regRegionBase, hOutSpansCount, RAX)
	a.MovRegMem(RAX, RDI, offFirstMatch)
	a.MovMemReg(regRegionBase, hFirstMatch, RAX)
	a.MovRegMem(RAX, RDI, offAnchored)
	a.MovMemReg(regRegionBase, hAnchored, RAX)

	a.MovMemImm32(regRegionBase, hBestValid, 0)

	for i := 0; i < c.bc.Len(); i++ {
		a.MovMemImm32(regRegionBase, c.layout.visitedOff+int32(i)*8, 0)
	}
	a.MovMemImm32(regRegionBase, c.layout.activeHeaderOff, 0)   // head
	a.MovMemImm32(regRegionBase, c.layout.activeHeaderOff+8, 0) // tail
	a.MovMemImm32(regRegionBase, c.layout.activeHeaderOff+16, 0)
	a.MovMemImm32(regRegionBase, c.layout.nextHeaderOff, 0)
	a.MovMemImm32(regRegionBase, c.layout.nextHeaderOff+8, 0)
	a.MovMemImm32(regRegionBase, c.layout.nextHeaderOff+16, 0)

	c.cg.InitializeRegion(a, c.captureBase())

	// Seed the first thread at position span_from, register 0 already
	// written, pushed directly into active (mirrors search.go's
	// pre-loop seed: the outer loop's own injection step only ever
	// seeds *subsequent* positions).
	c.cg.AllocThread(a, c.captureBase(), regHandle)
	a.MovRegMem(RAX, regRegionBase, hPos)
	c.cg.WriteReg(a, c.captureBase(), regHandle, 0, RAX, regHandle)
	c.pushBack(c.layout.activeHeaderOff, c.layout.activeArrayOff, 0, regHandle)
}

// pushBack/pushFront/popFront operate on one queue (active or next),
// selected by passing that queue's header/array offsets. pc is
// always a compile-time constant in this emission schema — every
// push site knows its target instruction index statically.
func (c *Compiler) pushBack(headerOff, arrayOff int32, pc int, handle Reg) {
	a := c.asm
	cap := int32(maxLiveThreads(c.bc))
	a.MovRegMem(RAX, regRegionBase, headerOff+8) // tail
	a.MovRegReg(RCX, RAX)
	a.emitImulImm32(RCX, queueSlotSize)
	a.emitAddReg(RCX, regRegionBase)
	a.AddRegImm32(RCX, uint32(arrayOff))
	a.MovMemImm32(RCX, 0, uint32(pc))
	a.MovMemReg(RCX, 8, handle)
	a.AddRegImm32(RAX, 1)
	wrap := a.NewLabel()
	done := a.NewLabel()
	a.CmpRegImm32(RAX, uint32(cap))
	a.Jcc(CondNotEqual, wrap)
	a.MovRegImm32(RAX, 0)
	a.Bind(wrap)
	a.MovMemReg(regRegionBase, headerOff+8, RAX)
	a.MovRegMem(RAX, regRegionBase, headerOff+16)
	a.AddRegImm32(RAX, 1)
	a.MovMemReg(regRegionBase, headerOff+16, RAX)
	a.Bind(done)
}

func (c *Compiler) pushFront(headerOff, arrayOff int32, pc int, handle Reg) {
	a := c.asm
	cap := int32(maxLiveThreads(c.bc))
	a.MovRegMem(RAX, regRegionBase, headerOff) // head
	under := a.NewLabel()
	ok := a.NewLabel()
	a.CmpRegImm32(RAX, 0)
	a.Jcc(CondNotEqual, under)
	a.MovRegImm32(RAX, uint32(cap))
	a.Bind(under)
	a.SubRegImm32(RAX, 1)
	a.Bind(ok)
	a.MovMemReg(regRegionBase, headerOff, RAX)
	a.MovRegReg(RCX, RAX)
	a.emitImulImm32(RCX, queueSlotSize)
	a.emitAddReg(RCX, regRegionBase)
	a.AddRegImm32(RCX, uint32(arrayOff))
	a.MovMemImm32(RCX, 0, uint32(pc))
	a.MovMemReg(RCX, 8, handle)
	a.MovRegMem(RAX, regRegionBase, headerOff+16)
	a.AddRegImm32(RAX, 1)
	a.MovMemReg(regRegionBase, headerOff+16, RAX)
}

// popFront pops into (pcOut, handleOut) and jumps to emptyLabel if the
// queue was empty, falling through otherwise.
func (c *Compiler) popFront(headerOff, arrayOff int32, pcOut, handleOut Reg, emptyLabel int) {
	a := c.asm
	cap := int32(maxLiveThreads(c.bc))
	a.MovRegMem(RAX, regRegionBase, headerOff+16) // size
	a.CmpRegImm32(RAX, 0)
	a.Jcc(CondEqual, emptyLabel)

	a.MovRegMem(RAX, regRegionBase, headerOff) // head
	a.MovRegReg(RCX, RAX)
	a.emitImulImm32(RCX, queueSlotSize)
	a.emitAddReg(RCX, regRegionBase)
	a.AddRegImm32(RCX, uint32(arrayOff))
	a.MovRegMem(pcOut, RCX, 0)
	a.MovRegMem(handleOut, RCX, 8)

	a.AddRegImm32(RAX, 1)
	wrap := a.NewLabel()
	a.CmpRegImm32(RAX, uint32(cap))
	a.Jcc(CondNotEqual, wrap)
	a.MovRegImm32(RAX, 0)
	a.Bind(wrap)
	a.MovMemReg(regRegionBase, headerOff, RAX)
	a.MovRegMem(RAX, regRegionBase, headerOff+16)
	a.SubRegImm32(RAX, 1)
	a.MovMemReg(regRegionBase, headerOff+16, RAX)
}

// emitBarrierGuard emits the per-instruction visited-stamp check, a
// no-op for non-barrier instructions. On a repeat visit within the
// same stamp, it frees regHandle and returns to the active-queue
// dispatch loop; RAX and RCX are clobbered (RAX holds the popped pc in
// the dispatch chain, no longer needed once we've jumped into a
// specific block).
func (c *Compiler) emitBarrierGuard(pc int) {
	if !c.bc.Barriers[pc] {
		return
	}
	a := c.asm
	a.MovRegMem(RAX, regRegionBase, hPos)
	a.AddRegImm32(RAX, 1) // stamp = pos+1
	a.MovRegMem(RCX, regRegionBase, c.layout.visitedOff+int32(pc)*8)
	a.CmpRegReg(RCX, RAX)
	notSeen := a.NewLabel()
	a.Jcc(CondNotEqual, notSeen)
	c.cg.FreeThread(a, c.captureBase(), regHandle)
	a.Jmp(c.dispatchActive)
	a.Bind(notSeen)
	a.MovMemReg(regRegionBase, c.layout.visitedOff+int32(pc)*8, RAX)
}

func (c *Compiler) emitInstruction(pc int, instr *bytecode.Instruction) {
	a := c.asm
	switch instr.Op {
	case bytecode.OpFork2:
		c.pushFront(c.layout.activeHeaderOff, c.layout.activeArrayOff, instr.B, c.cloneHandle())
		a.Jmp(c.pcLabels[instr.A])

	case bytecode.OpForkN:
		for i := len(instr.List) - 1; i >= 1; i-- {
			c.pushFront(c.layout.activeHeaderOff, c.layout.activeArrayOff, instr.List[i], c.cloneHandle())
		}
		a.Jmp(c.pcLabels[instr.List[0]])

	case bytecode.OpJmp:
		a.Jmp(c.pcLabels[instr.Target])

	case bytecode.OpWriteReg:
		a.MovRegMem(RAX, regRegionBase, hPos)
		c.cg.WriteReg(a, c.captureBase(), regHandle, instr.Reg, RAX, regHandle)
		a.Jmp(c.pcLabels[pc+1])

	case bytecode.OpAssertion:
		c.emitAssertion(instr.Look, pc)

	case bytecode.OpConsume, bytecode.OpConsumeAny, bytecode.OpConsumeClass, bytecode.OpConsumeOutlined:
		c.emitConsume(pc, instr)

	case bytecode.OpAccept:
		c.emitAccept()

	default:
		panic(fmt.Sprintf("pikejit: unhandled opcode %v", instr.Op))
	}
}

// cloneHandle clones regHandle into a fresh register (RAX) via the
// capture strategy, for the low-priority branch of a fork.
func (c *Compiler) cloneHandle() Reg {
	c.cg.CloneThread(c.asm, c.captureBase(), regHandle, RAX)
	return RAX
}

func (c *Compiler) emitAssertion(look bytecode.Look, pc int) {
	a := c.asm
	a.MovRegMem(RCX, regRegionBase, hPrevChar)
	a.MovRegMem(RDX, regRegionBase, hCurrChar)
	holds := a.NewLabel()
	fail := func() {
		c.cg.FreeThread(a, c.captureBase(), regHandle)
		a.Jmp(c.dispatchActive)
	}
	nl := uint32(char.FromRune('\n'))
	cr := uint32(char.FromRune('\r'))
	bound := uint32(char.InputBound)

	switch look {
	case bytecode.LookStart:
		a.CmpRegImm32(RCX, bound)
		a.Jcc(CondEqual, holds)
		fail()
	case bytecode.LookEnd:
		a.CmpRegImm32(RDX, bound)
		a.Jcc(CondEqual, holds)
		fail()
	case bytecode.LookStartLF:
		a.CmpRegImm32(RCX, bound)
		a.Jcc(CondEqual, holds)
		a.CmpRegImm32(RCX, nl)
		a.Jcc(CondEqual, holds)
		fail()
	case bytecode.LookEndLF:
		a.CmpRegImm32(RDX, bound)
		a.Jcc(CondEqual, holds)
		a.CmpRegImm32(RDX, nl)
		a.Jcc(CondEqual, holds)
		fail()
	case bytecode.LookStartCRLF:
		a.CmpRegImm32(RCX, bound)
		a.Jcc(CondEqual, holds)
		a.CmpRegImm32(RCX, nl)
		a.Jcc(CondEqual, holds)
		notCRLF := a.NewLabel()
		a.CmpRegImm32(RCX, cr)
		a.Jcc(CondNotEqual, notCRLF)
		a.CmpRegImm32(RDX, nl)
		a.Jcc(CondNotEqual, holds)
		a.Bind(notCRLF)
		fail()
	case bytecode.LookEndCRLF:
		a.CmpRegImm32(RDX, bound)
		a.Jcc(CondEqual, holds)
		a.CmpRegImm32(RDX, cr)
		a.Jcc(CondEqual, holds)
		notCRLF := a.NewLabel()
		a.CmpRegImm32(RDX, nl)
		a.Jcc(CondNotEqual, notCRLF)
		a.CmpRegImm32(RCX, cr)
		a.Jcc(CondNotEqual, holds)
		a.Bind(notCRLF)
		fail()
	default:
		fail()
	}
	a.Bind(holds)
	a.Jmp(c.pcLabels[pc+1])
}

// emitConsume compiles a character-consuming instruction: on match,
// the thread (unchanged handle) is pushed to the *next* queue at
// pc+1; on mismatch it is freed. Either way this thread's processing
// for the current position ends here, back to the active dispatch.
func (c *Compiler) emitConsume(pc int, instr *bytecode.Instruction) {
	a := c.asm
	matched := a.NewLabel()
	a.MovRegMem(RDX, regRegionBase, hCurrChar)
	bound := uint32(char.InputBound)
	noMatch := a.NewLabel()
	a.CmpRegImm32(RDX, bound)
	a.Jcc(CondEqual, noMatch)

	switch instr.Op {
	case bytecode.OpConsume:
		a.CmpRegImm32(RDX, uint32(instr.Char))
		a.Jcc(CondEqual, matched)
	case bytecode.OpConsumeAny:
		a.Jmp(matched)
	case bytecode.OpConsumeClass:
		c.emitRangeTest(instr.Ranges, RDX, matched)
	case bytecode.OpConsumeOutlined:
		c.emitRangeTest(c.bc.OutlinedClasses[instr.Class], RDX, matched)
	}

	a.Bind(noMatch)
	c.cg.FreeThread(a, c.captureBase(), regHandle)
	a.Jmp(c.dispatchActive)

	a.Bind(matched)
	c.pushBack(c.layout.nextHeaderOff, c.layout.nextArrayOff, pc+1, regHandle)
	a.Jmp(c.dispatchActive)
}

// emitRangeTest unrolls a compile-time-known interval list into a
// chain of unsigned-range comparisons (currChar - From <= To - From),
// jumping to matched on the first hit. Ranges are few per class
// (outlining kicks in past bytecode.OutlineThreshold precisely to
// keep this chain short), so unrolling beats building any runtime
// table-scan machinery.
func (c *Compiler) emitRangeTest(ranges []char.Interval, curChar Reg, matched int) {
	a := c.asm
	for _, r := range ranges {
		a.MovRegReg(RCX, curChar)
		a.SubRegImm32(RCX, uint32(r.From))
		a.CmpRegImm32(RCX, uint32(r.To-r.From))
		a.Jcc(CondBE, matched)
	}
}

func (c *Compiler) emitAccept() {
	a := c.asm
	a.MovRegMem(RAX, regRegionBase, hPos)
	c.cg.Accept(a, c.captureBase(), regHandle, RAX, RCX)

	noPrevBest := a.NewLabel()
	a.MovRegMem(RAX, regRegionBase, hBestValid)
	a.CmpRegImm32(RAX, 0)
	a.Jcc(CondEqual, noPrevBest)
	a.MovRegMem(RDX, regRegionBase, hBestHandle)
	c.cg.FreeThread(a, c.captureBase(), RDX)
	a.Bind(noPrevBest)

	a.MovMemReg(regRegionBase, hBestHandle, RCX)
	a.MovMemImm32(regRegionBase, hBestValid, 1)
	a.MovRegMem(RAX, regRegionBase, hPos)
	a.MovMemReg(regRegionBase, hBestEnd, RAX)

	// Drain every strictly lower-priority thread still in active: none
	// can beat the match that just accepted.
	drainLoop := a.NewLabel()
	a.Bind(drainLoop)
	c.popFront(c.layout.activeHeaderOff, c.layout.activeArrayOff, RAX, RDX, c.dispatchActive)
	c.cg.FreeThread(a, c.captureBase(), RDX)
	a.Jmp(drainLoop)
}

// emitMainLoop emits the outer per-position loop: drain active via the
// dispatch chain, decode the next character, check termination,
// inject an unanchored seed thread, swap queues, advance.
func (c *Compiler) emitMainLoop() {
	a := c.asm
	a.Bind(c.mainLoop)

	c.emitDecodeCurrChar()

	a.Bind(c.dispatchActive)
	c.popFront(c.layout.activeHeaderOff, c.layout.activeArrayOff, RAX, regHandle, c.afterActive)
	c.emitDispatchChain(RAX)

	a.Bind(c.afterActive)

	// best != nil && next empty -> done
	haveBest := a.NewLabel()
	a.MovRegMem(RAX, regRegionBase, hBestValid)
	a.CmpRegImm32(RAX, 0)
	a.Jcc(CondNotEqual, haveBest)
	noBestYet := a.NewLabel()
	a.Jmp(noBestYet)

	a.Bind(haveBest)
	nextNotEmpty := a.NewLabel()
	a.MovRegMem(RAX, regRegionBase, c.layout.nextHeaderOff+16)
	a.CmpRegImm32(RAX, 0)
	a.Jcc(CondNotEqual, nextNotEmpty)
	a.Jmp(c.finish)
	a.Bind(nextNotEmpty)
	firstMatchOff := a.NewLabel()
	a.MovRegMem(RAX, regRegionBase, hFirstMatch)
	a.CmpRegImm32(RAX, 0)
	a.Jcc(CondEqual, firstMatchOff)
	a.Jmp(c.finish)
	a.Bind(firstMatchOff)
	a.Jmp(c.advance)

	a.Bind(noBestYet)
	// unanchored: inject a fresh seed thread at pos+width into next.
	anchoredSkip := a.NewLabel()
	a.MovRegMem(RAX, regRegionBase, hAnchored)
	a.CmpRegImm32(RAX, 0)
	a.Jcc(CondNotEqual, anchoredSkip)

	c.cg.AllocThread(a, c.captureBase(), RCX)
	a.MovRegMem(RDX, regRegionBase, hNextPos) // pos+width, set by decode
	c.cg.WriteReg(a, c.captureBase(), RCX, 0, RDX, RCX)
	c.pushBack(c.layout.nextHeaderOff, c.layout.nextArrayOff, 0, RCX)
	a.Bind(anchoredSkip)

	bothEmpty := a.NewLabel()
	a.MovRegMem(RAX, regRegionBase, c.layout.activeHeaderOff+16)
	a.CmpRegImm32(RAX, 0)
	a.Jcc(CondNotEqual, c.advance)
	a.MovRegMem(RAX, regRegionBase, c.layout.nextHeaderOff+16)
	a.CmpRegImm32(RAX, 0)
	a.Jcc(CondNotEqual, c.advance)
	a.Bind(bothEmpty)
	a.Jmp(c.finish) // no live thread anywhere, none will ever return

	a.Bind(c.advance)
	a.MovRegMem(RAX, regRegionBase, hPos)
	a.MovRegMem(RCX, regRegionBase, hSpanTo)
	a.CmpRegReg(RAX, RCX)
	a.Jcc(CondAE, c.finish)

	// swap active/next headers+arrays: copy next's header over active's
	// (arrays stay where they are; swap by relabeling which physical
	// array is "active" is avoided here by instead copying next's
	// contents into active's slot array, a width-bounded memcpy of at
	// most maxLiveThreads slots).
	c.emitSwapQueues()

	a.MovRegMem(RAX, regRegionBase, hCurrChar)
	a.MovMemReg(regRegionBase, hPrevChar, RAX)
	a.MovRegMem(RAX, regRegionBase, hNextPos)
	a.MovMemReg(regRegionBase, hPos, RAX)
	a.Jmp(c.mainLoop)
}

// emitSwapQueues copies every slot from the next queue into the
// active queue's array and header, then clears next. A fixed-size
// loop bounded by maxLiveThreads, unrolled at Go-compile-time since
// the bound is static.
func (c *Compiler) emitSwapQueues() {
	a := c.asm
	// active.head = next.head; active.tail = next.tail; active.size = next.size
	for _, off := range []int32{0, 8, 16} {
		a.MovRegMem(RAX, regRegionBase, c.layout.nextHeaderOff+off)
		a.MovMemReg(regRegionBase, c.layout.activeHeaderOff+off, RAX)
	}
	cap := maxLiveThreads(c.bc)
	for i := 0; i < cap; i++ {
		disp := int32(i) * queueSlotSize
		a.MovRegMem(RAX, regRegionBase, c.layout.nextArrayOff+disp)
		a.MovMemReg(regRegionBase, c.layout.activeArrayOff+disp, RAX)
		a.MovRegMem(RAX, regRegionBase, c.layout.nextArrayOff+disp+8)
		a.MovMemReg(regRegionBase, c.layout.activeArrayOff+disp+8, RAX)
	}
	a.MovMemImm32(regRegionBase, c.layout.nextHeaderOff, 0)
	a.MovMemImm32(regRegionBase, c.layout.nextHeaderOff+8, 0)
	a.MovMemImm32(regRegionBase, c.layout.nextHeaderOff+16, 0)
}

// emitDecodeCurrChar decodes the rune at the current position (or
// InputBound at end of span) into the hCurrChar cell and stashes
// pos+width into hNextPos for the main loop's injection/advance steps.
// The cascade mirrors char.DecodeRune's leading-byte dispatch.
func (c *Compiler) emitDecodeCurrChar() {
	a := c.asm
	atEnd := a.NewLabel()
	done := a.NewLabel()

	a.MovRegMem(RAX, regRegionBase, hPos) // RAX = pos
	a.MovRegMem(RCX, regRegionBase, hSpanTo)
	a.CmpRegReg(RAX, RCX)
	a.Jcc(CondAE, atEnd)

	a.MovzxByteMemIndexed(RDX, regSubject, RAX, 0) // RDX = lead byte

	w1 := a.NewLabel()
	w2 := a.NewLabel()
	w3 := a.NewLabel()

	a.MovRegReg(RCX, RDX)
	a.AndRegImm32(RCX, 0x80)
	a.CmpRegImm32(RCX, 0)
	a.Jcc(CondEqual, w1) // top bit clear: ASCII, 1 byte

	a.MovRegReg(RCX, RDX)
	a.AndRegImm32(RCX, 0xE0)
	a.CmpRegImm32(RCX, 0xC0)
	a.Jcc(CondEqual, w2)

	a.MovRegReg(RCX, RDX)
	a.AndRegImm32(RCX, 0xF0)
	a.CmpRegImm32(RCX, 0xE0)
	a.Jcc(CondEqual, w3)

	// 4-byte sequence (or invalid, treated as 4-byte best-effort; the
	// interpreter's char.DecodeRune is the correctness reference for
	// malformed input).
	c.emitDecodeCont(RDX, 0x07, 3, RAX)
	a.MovMemReg(regRegionBase, hCurrChar, RDX)
	a.MovRegReg(RCX, RAX)
	a.AddRegImm32(RCX, 4)
	a.MovMemReg(regRegionBase, hNextPos, RCX)
	a.Jmp(done)

	a.Bind(w3)
	c.emitDecodeCont(RDX, 0x0F, 2, RAX)
	a.MovMemReg(regRegionBase, hCurrChar, RDX)
	a.MovRegReg(RCX, RAX)
	a.AddRegImm32(RCX, 3)
	a.MovMemReg(regRegionBase, hNextPos, RCX)
	a.Jmp(done)

	a.Bind(w2)
	c.emitDecodeCont(RDX, 0x1F, 1, RAX)
	a.MovMemReg(regRegionBase, hCurrChar, RDX)
	a.MovRegReg(RCX, RAX)
	a.AddRegImm32(RCX, 2)
	a.MovMemReg(regRegionBase, hNextPos, RCX)
	a.Jmp(done)

	a.Bind(w1)
	a.AndRegImm32(RDX, 0x7F)
	a.MovMemReg(regRegionBase, hCurrChar, RDX)
	a.MovRegReg(RCX, RAX)
	a.AddRegImm32(RCX, 1)
	a.MovMemReg(regRegionBase, hNextPos, RCX)
	a.Jmp(done)

	a.Bind(atEnd)
	a.MovMemImm32(regRegionBase, hCurrChar, uint32(char.InputBound))
	a.MovRegReg(RCX, RAX)
	a.MovMemReg(regRegionBase, hNextPos, RCX)

	a.Bind(done)
}

// emitDecodeCont masks the lead byte with leadMask, then folds in
// `extra` continuation bytes at pos+1..pos+extra, each masked to its
// low 6 bits, accumulating into outChar (overwriting leadByteReg) —
// the same shift-and-or construction char.DecodeRune performs for
// multi-byte sequences. posReg holds pos throughout (unmodified).
func (c *Compiler) emitDecodeCont(leadByteReg Reg, leadMask uint32, extra int, posReg Reg) {
	a := c.asm
	a.AndRegImm32(leadByteReg, leadMask)
	for i := 1; i <= extra; i++ {
		a.emitShlImm(leadByteReg, 6)
		a.MovRegReg(RBX, posReg)
		a.AddRegImm32(RBX, uint32(i))
		a.MovzxByteMemIndexed(RDI, regSubject, RBX, 0)
		a.AndRegImm32(RDI, 0x3F)
		a.emitOrReg(leadByteReg, RDI)
	}
}

// emitDispatchChain is the one place a thread's pc is a runtime
// value: a linear equality scan jumping into the matching pcLabels
// entry. O(len(bc)) per dispatch, traded for reusing the same rel32
// label/fixup machinery every other control transfer already uses
// rather than building a separate indirect jump table.
func (c *Compiler) emitDispatchChain(pcReg Reg) {
	a := c.asm
	for i := range c.pcLabels {
		a.CmpRegImm32(pcReg, uint32(i))
		a.Jcc(CondEqual, c.pcLabels[i])
	}
	// A pc outside the program is a compiler bug, not a runtime
	// condition; fall into instruction 0 rather than emit unreachable
	// trap machinery the never-executed encoder can't verify.
	a.Jmp(c.pcLabels[0])
}

func (c *Compiler) emitFinish() {
	a := c.asm
	a.Bind(c.finish)

	noMatch := a.NewLabel()
	a.MovRegMem(RAX, regRegionBase, hBestValid)
	a.CmpRegImm32(RAX, 0)
	a.Jcc(CondEqual, noMatch)

	a.MovRegMem(RDI, regRegionBase, hOutSpansPtr)
	a.MovRegMem(RSI, regRegionBase, hBestHandle)
	c.cg.WriteResult(a, c.captureBase(), RSI, RDI)
	c.cg.FreeThread(a, c.captureBase(), RSI)
	a.MovRegImm32(RAX, 1)
	a.Ret()

	a.Bind(noMatch)
	a.MovRegImm32(RAX, 0)
	a.Ret()
}
