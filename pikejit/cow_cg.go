package pikejit

// CowCG is the JIT counterpart of capture.COW: blocks are
// laid out exactly as ArrayCG's, but each block is prefixed with an
// 8-byte refcount, Clone only bumps that count, and WriteReg only
// deep-copies when the refcount shows the block is still shared. The
// free-list/bump-cursor header and addressing scheme are identical to
// ArrayCG's; only the block header and the Clone/WriteReg/Free bodies
// differ, mirroring how capture.COW reuses capture.Array's allocation
// shape and only changes those same three methods.
type CowCG struct {
	regCount   int
	maxThreads int
}

func NewCowCG(regCount, maxThreads int) *CowCG {
	return &CowCG{regCount: regCount, maxThreads: maxThreads}
}

const cowBlockHeaderSize = 8 // refcount

func (cg *CowCG) blockStride() int32 { return cowBlockHeaderSize + int32(cg.regCount)*8 }

func (cg *CowCG) InitMemSize() int {
	return arrayHeaderSize + int(cg.blockStride())*cg.maxThreads
}

func (cg *CowCG) RegisterCount() int { return cg.regCount }

func (cg *CowCG) InitializeRegion(a *Assembler, regionBase Reg) {
	a.MovMemImm32(regionBase, 0, 0)
	a.MovMemImm32(regionBase, 8, 1)
}

func (cg *CowCG) blockAddr(a *Assembler, regionBase, idx, dst Reg) {
	a.MovRegReg(dst, idx)
	a.SubRegImm32(dst, 1)
	a.emitImulImm32(dst, cg.blockStride())
	a.AddRegImm32(dst, uint32(arrayHeaderSize))
	a.emitAddReg(dst, regionBase)
}

func (cg *CowCG) slotsAddr(a *Assembler, blockAddr, dst Reg) {
	a.MovRegReg(dst, blockAddr)
	a.AddRegImm32(dst, uint32(cowBlockHeaderSize))
}

func (cg *CowCG) AllocThread(a *Assembler, regionBase Reg, outHandle Reg) {
	a.MovRegMem(outHandle, regionBase, 0)
	freeEmpty := a.NewLabel()
	done := a.NewLabel()
	a.CmpRegImm32(outHandle, 0)
	a.Jcc(CondEqual, freeEmpty)
	cg.blockAddr(a, regionBase, outHandle, scratchReg)
	a.MovRegMem(RAX, scratchReg, 0) // next pointer reuses refcount slot while free
	a.MovMemReg(regionBase, 0, RAX)
	a.Jmp(done)

	a.Bind(freeEmpty)
	a.MovRegMem(outHandle, regionBase, 8)
	a.MovRegReg(RAX, outHandle)
	a.AddRegImm32(RAX, 1)
	a.MovMemReg(regionBase, 8, RAX)

	a.Bind(done)
	cg.blockAddr(a, regionBase, outHandle, scratchReg)
	a.MovMemImm32(scratchReg, 0, 1) // refcount = 1
	cg.slotsAddr(a, scratchReg, R9)
	for i := 0; i < cg.regCount; i++ {
		a.MovMemImm32(R9, int32(i)*8, unsetPos)
	}
}

func (cg *CowCG) FreeThread(a *Assembler, regionBase, handle Reg) {
	cg.blockAddr(a, regionBase, handle, scratchReg)
	a.MovRegMem(RAX, scratchReg, 0)
	a.SubRegImm32(RAX, 1)
	a.MovMemReg(scratchReg, 0, RAX)
	stillShared := a.NewLabel()
	a.CmpRegImm32(RAX, 0)
	a.Jcc(CondNotEqual, stillShared)
	a.MovRegMem(RAX, regionBase, 0)
	a.MovMemReg(scratchReg, 0, RAX)
	a.MovMemReg(regionBase, 0, handle)
	a.Bind(stillShared)
}

// CloneThread bumps the shared block's refcount; outHandle is simply
// the same block index.
func (cg *CowCG) CloneThread(a *Assembler, regionBase, srcHandle, outHandle Reg) {
	cg.blockAddr(a, regionBase, srcHandle, scratchReg)
	a.MovRegMem(RAX, scratchReg, 0)
	a.AddRegImm32(RAX, 1)
	a.MovMemReg(scratchReg, 0, RAX)
	if srcHandle != outHandle {
		a.MovRegReg(outHandle, srcHandle)
	}
}

// WriteReg deep-copies into a fresh block when the refcount shows more
// than one owner, otherwise mutates in place.
func (cg *CowCG) WriteReg(a *Assembler, regionBase Reg, handle Reg, regNum uint32, pos Reg, outHandle Reg) {
	cg.blockAddr(a, regionBase, handle, scratchReg)
	notShared := a.NewLabel()
	done := a.NewLabel()
	a.MovRegMem(RAX, scratchReg, 0)
	a.CmpRegImm32(RAX, 1)
	a.Jcc(CondEqual, notShared)

	// shared: refs--, allocate a fresh block, deep-copy slots. R10
	// holds the source slots address across AllocThread, which uses
	// scratchReg/R9/RAX internally but never touches R10.
	a.SubRegImm32(RAX, 1)
	a.MovMemReg(scratchReg, 0, RAX)
	cg.slotsAddr(a, scratchReg, R10)
	cg.AllocThread(a, regionBase, outHandle)
	cg.blockAddr(a, regionBase, outHandle, scratchReg)
	cg.slotsAddr(a, scratchReg, scratchReg)
	for i := 0; i < cg.regCount; i++ {
		a.MovRegMem(RAX, R10, int32(i)*8)
		a.MovMemReg(scratchReg, int32(i)*8, RAX)
	}
	a.Jmp(done)

	a.Bind(notShared)
	if handle != outHandle {
		a.MovRegReg(outHandle, handle)
	}
	cg.slotsAddr(a, scratchReg, scratchReg)

	a.Bind(done)
	a.MovMemReg(scratchReg, int32(regNum)*8, pos)
}

func (cg *CowCG) Accept(a *Assembler, regionBase Reg, handle Reg, pos Reg, outHandle Reg) {
	cg.WriteReg(a, regionBase, handle, 1, pos, outHandle)
}

func (cg *CowCG) WriteResult(a *Assembler, regionBase Reg, handle Reg, outSpansPtr Reg) {
	cg.blockAddr(a, regionBase, handle, scratchReg)
	cg.slotsAddr(a, scratchReg, scratchReg)
	for i := 0; i < cg.regCount/2; i++ {
		a.MovRegMem(RAX, scratchReg, int32(2*i)*8)
		a.MovRegMem(RCX, scratchReg, int32(2*i+1)*8)
		emitResolveSpan(a, RAX, RCX)
		a.MovMemReg(outSpansPtr, int32(i)*16, RAX)
		a.MovMemReg(outSpansPtr, int32(i)*16+8, RCX)
	}
}
