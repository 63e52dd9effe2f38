package pikejit

// TreeCG is the JIT counterpart of capture.Tree: an
// append-only arena of (prevHandle, pos, reg) nodes. A handle is the
// node's 1-based index into the arena (0 means "written nothing
// yet"), so Clone is just a register copy and Free is a no-op, same
// as capture.Tree. WriteResult walks the chain backwards with a
// runtime loop (the chain length is not known until execution),
// marking each register's first (most recent) write into a scratch
// "seen" array (one 8-byte cell per register, for simple disp0
// register-indexed addressing) that shares the region with the arena.
//
// maxNodes bounds how many WriteReg/Accept calls the arena can record
// across one search; like ArrayCG/CowCG's maxThreads, this JIT has no
// host-callback-driven region regrowth, so maxNodes must be sized
// generously — bytecode length times register count is a safe, if
// generous, bound.
type TreeCG struct {
	regCount int
	maxNodes int
}

func NewTreeCG(regCount, maxNodes int) *TreeCG {
	return &TreeCG{regCount: regCount, maxNodes: maxNodes}
}

const treeNodeSize = 24  // prevHandle, pos, reg; 8 bytes each
const treeHeaderSize = 8 // bump cursor, counts nodes already allocated

func (cg *TreeCG) seenOff() int32 {
	return int32(treeHeaderSize) + int32(cg.maxNodes)*treeNodeSize
}

func (cg *TreeCG) InitMemSize() int {
	return int(cg.seenOff()) + cg.regCount*8
}

func (cg *TreeCG) RegisterCount() int { return cg.regCount }

func (cg *TreeCG) InitializeRegion(a *Assembler, regionBase Reg) {
	a.MovMemImm32(regionBase, 0, 0) // bump cursor: 0 nodes used
}

// nodeAddr emits regionBase-relative address of node `idx` (1-based
// handle) into dst.
func (cg *TreeCG) nodeAddr(a *Assembler, regionBase, idx, dst Reg) {
	a.MovRegReg(dst, idx)
	a.SubRegImm32(dst, 1)
	a.emitImulImm32(dst, treeNodeSize)
	a.AddRegImm32(dst, uint32(treeHeaderSize))
	a.emitAddReg(dst, regionBase)
}

func (cg *TreeCG) AllocThread(a *Assembler, regionBase Reg, outHandle Reg) {
	a.MovRegImm32(outHandle, 0)
}

func (cg *TreeCG) CloneThread(a *Assembler, regionBase, srcHandle, outHandle Reg) {
	if srcHandle != outHandle {
		a.MovRegReg(outHandle, srcHandle)
	}
}

func (cg *TreeCG) FreeThread(a *Assembler, regionBase, handle Reg) {}

func (cg *TreeCG) WriteReg(a *Assembler, regionBase Reg, handle Reg, regNum uint32, pos Reg, outHandle Reg) {
	// idx = ++bump cursor (1-based handle of the new node)
	a.MovRegMem(RAX, regionBase, 0)
	a.AddRegImm32(RAX, 1)
	a.MovMemReg(regionBase, 0, RAX)
	cg.nodeAddr(a, regionBase, RAX, scratchReg)
	a.MovMemReg(scratchReg, 0, handle)
	a.MovMemReg(scratchReg, 8, pos)
	a.MovMemImm32(scratchReg, 16, regNum)
	if outHandle != RAX {
		a.MovRegReg(outHandle, RAX)
	}
}

func (cg *TreeCG) Accept(a *Assembler, regionBase Reg, handle Reg, pos Reg, outHandle Reg) {
	cg.WriteReg(a, regionBase, handle, 1, pos, outHandle)
}

// WriteResult zeroes an 8-byte-per-register "seen" scratchpad, then
// walks the chain from handle back to 0 with a genuine runtime loop
// (chain length is only known at execution time), writing each
// register's first-encountered (most recent) position into
// outSpansPtr — which the caller must have pre-filled with
// char.InvalidSpan() sentinel pairs before this hook runs, so
// never-written registers keep that sentinel.
//
// Register convention for this hook only: RBX/RCX/RDX/RAX/R8/R9/R10
// are treated as free scratch and must not hold a live value across
// the call into this hook.
func (cg *TreeCG) WriteResult(a *Assembler, regionBase Reg, handle Reg, outSpansPtr Reg) {
	seenBase := R10
	a.MovRegReg(seenBase, regionBase)
	a.AddRegImm32(seenBase, uint32(cg.seenOff()))
	for i := 0; i < cg.regCount; i++ {
		a.MovMemImm32(seenBase, int32(i)*8, 0)
	}

	cur := R9
	a.MovRegReg(cur, handle)

	loop := a.NewLabel()
	done := a.NewLabel()
	alreadySeen := a.NewLabel()

	a.Bind(loop)
	a.CmpRegImm32(cur, 0)
	a.Jcc(CondEqual, done)

	cg.nodeAddr(a, regionBase, cur, RBX)
	a.MovRegMem(RCX, RBX, 16) // register number of this node

	a.MovRegReg(RDX, RCX)
	a.emitImulImm32(RDX, 8)
	a.emitAddReg(RDX, seenBase)
	a.MovRegMem(RAX, RDX, 0)
	a.CmpRegImm32(RAX, 0)
	a.Jcc(CondNotEqual, alreadySeen)

	a.MovRegImm32(RAX, 1)
	a.MovMemReg(RDX, 0, RAX)

	a.MovRegMem(RAX, RBX, 8) // node's recorded position

	// spanAddr = outSpansPtr + (reg>>1)*16 + (reg&1)*8
	a.MovRegReg(R8, RCX)
	a.ShrRegImm8(R8, 1)
	a.emitImulImm32(R8, 16)
	a.emitAddReg(R8, outSpansPtr)
	a.MovRegReg(RDX, RCX)
	a.AndRegImm32(RDX, 1)
	a.emitImulImm32(RDX, 8)
	a.emitAddReg(R8, RDX)
	a.MovMemReg(R8, 0, RAX)

	a.Bind(alreadySeen)
	a.MovRegMem(cur, RBX, 0) // follow prevHandle
	a.Jmp(loop)

	a.Bind(done)
}
