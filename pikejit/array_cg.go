package pikejit

// ArrayCG is the JIT counterpart of capture.Array: each
// thread owns a private block of regCount slots inside the scratch
// capture region, free blocks are chained through a singly-linked
// list threaded through the blocks themselves (block[0] holds the
// next free block's index when the block is on the free list), and a
// bump cursor hands out never-yet-used blocks once the free list is
// empty. A handle is the block's 1-based index (0 means "no handle")
// rather than a raw pointer, so it fits the same general-purpose
// register every other CGImpl's handle does.
//
// maxThreads bounds how many blocks exist; since this JIT does not
// implement the host-callback-driven region regrowth the interpreter
// side gets for free from Go's slice/allocator machinery, maxThreads
// must be sized generously enough that no search ever needs more
// concurrently-live threads than that — the Pike-VM invariant that a
// thread count never exceeds the bytecode length gives a safe bound
// (instruction count + 1).
type ArrayCG struct {
	regCount   int
	maxThreads int
}

// NewArrayCG constructs the flat-array JIT strategy.
func NewArrayCG(regCount, maxThreads int) *ArrayCG {
	return &ArrayCG{regCount: regCount, maxThreads: maxThreads}
}

const arrayHeaderSize = 16 // [0:8) free-list head index, [8:16) bump cursor

func (cg *ArrayCG) blockSize() int32 { return int32(cg.regCount) * 8 }

func (cg *ArrayCG) InitMemSize() int {
	return arrayHeaderSize + cg.regCount*8*cg.maxThreads
}

func (cg *ArrayCG) RegisterCount() int { return cg.regCount }

// InitializeRegion zeroes the free-list head (0 = empty) and the bump
// cursor (1 = first never-used block; block indices are 1-based).
func (cg *ArrayCG) InitializeRegion(a *Assembler, regionBase Reg) {
	a.MovMemImm32(regionBase, 0, 0)
	a.MovMemImm32(regionBase, 8, 1)
}

// blockAddr emits code computing the byte address of block index
// `idx` into dst: dst = regionBase + arrayHeaderSize + (idx-1)*blockSize.
func (cg *ArrayCG) blockAddr(a *Assembler, regionBase, idx, dst Reg) {
	a.MovRegReg(dst, idx)
	a.SubRegImm32(dst, 1)
	a.emitImulImm32(dst, cg.blockSize())
	a.AddRegImm32(dst, uint32(arrayHeaderSize))
	a.emitAddReg(dst, regionBase)
}

// AllocThread pops the free list if non-empty, else bumps the cursor,
// clears the block's slots to -1, and leaves the 1-based index in
// outHandle.
func (cg *ArrayCG) AllocThread(a *Assembler, regionBase Reg, outHandle Reg) {
	a.MovRegMem(outHandle, regionBase, 0) // free-list head
	freeEmpty := a.NewLabel()
	done := a.NewLabel()
	a.CmpRegImm32(outHandle, 0)
	a.Jcc(CondEqual, freeEmpty)
	// pop: head = block[outHandle].next (stored at block's slot 0)
	cg.blockAddr(a, regionBase, outHandle, scratchReg)
	a.MovRegMem(RAX, scratchReg, 0)
	a.MovMemReg(regionBase, 0, RAX)
	a.Jmp(done)

	a.Bind(freeEmpty)
	a.MovRegMem(outHandle, regionBase, 8) // bump cursor
	a.MovRegReg(RAX, outHandle)
	a.AddRegImm32(RAX, 1)
	a.MovMemReg(regionBase, 8, RAX)

	a.Bind(done)
	cg.clearBlock(a, regionBase, outHandle)
}

func (cg *ArrayCG) clearBlock(a *Assembler, regionBase, handle Reg) {
	cg.blockAddr(a, regionBase, handle, scratchReg)
	for i := 0; i < cg.regCount; i++ {
		a.MovMemImm32(scratchReg, int32(i)*8, unsetPos)
	}
}

func (cg *ArrayCG) FreeThread(a *Assembler, regionBase, handle Reg) {
	cg.blockAddr(a, regionBase, handle, scratchReg)
	a.MovRegMem(RAX, regionBase, 0)
	a.MovMemReg(scratchReg, 0, RAX)
	a.MovMemReg(regionBase, 0, handle)
}

func (cg *ArrayCG) CloneThread(a *Assembler, regionBase, srcHandle, outHandle Reg) {
	cg.AllocThread(a, regionBase, outHandle)
	cg.blockAddr(a, regionBase, srcHandle, scratchReg)
	dstAddr := R9
	cg.blockAddr(a, regionBase, outHandle, dstAddr)
	for i := 0; i < cg.regCount; i++ {
		a.MovRegMem(RAX, scratchReg, int32(i)*8)
		a.MovMemReg(dstAddr, int32(i)*8, RAX)
	}
}

func (cg *ArrayCG) WriteReg(a *Assembler, regionBase Reg, handle Reg, regNum uint32, pos Reg, outHandle Reg) {
	if handle != outHandle {
		a.MovRegReg(outHandle, handle)
	}
	cg.blockAddr(a, regionBase, outHandle, scratchReg)
	a.MovMemReg(scratchReg, int32(regNum)*8, pos)
}

func (cg *ArrayCG) Accept(a *Assembler, regionBase Reg, handle Reg, pos Reg, outHandle Reg) {
	cg.WriteReg(a, regionBase, handle, 1, pos, outHandle)
}

func (cg *ArrayCG) WriteResult(a *Assembler, regionBase Reg, handle Reg, outSpansPtr Reg) {
	cg.blockAddr(a, regionBase, handle, scratchReg)
	for i := 0; i < cg.regCount/2; i++ {
		a.MovRegMem(RAX, scratchReg, int32(2*i)*8)
		a.MovRegMem(RCX, scratchReg, int32(2*i+1)*8)
		emitResolveSpan(a, RAX, RCX)
		a.MovMemReg(outSpansPtr, int32(i)*16, RAX)
		a.MovMemReg(outSpansPtr, int32(i)*16+8, RCX)
	}
}
