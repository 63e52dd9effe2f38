// Package pikejit implements the JIT code generator: it compiles
// Bytecode into a native x86-64 routine sharing the Pike-VM's
// queue/visited-set discipline, delegating capture bookkeeping to a
// pluggable CGImpl the same way the interpreter delegates to a
// capture.Strategy. This package's encoder covers exactly the
// instruction shapes the emission schema needs, grounded on the
// hand-rolled x86-64 emission style in other_examples' launix-de-memcp
// scm-jit files.
package pikejit

// Reg names the 16 general-purpose x86-64 registers by their
// operand-encoding index (low 3 bits go in ModRM/opcode, bit 3 is the
// REX.B/R/X extension bit).
type Reg int

const (
	RAX Reg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

func (r Reg) low3() byte  { return byte(r) & 0x7 }
func (r Reg) ext() byte   { return byte(r) >> 3 }
func (r Reg) needsRex() bool { return r >= R8 }

// label is a forward- or back-reference point in the instruction
// stream. fixups records byte offsets of 4-byte rel32 operands that
// must be patched to (target - (fixup_offset+4)) once every label's
// final position is known.
type label struct {
	pos    int
	placed bool
}

type fixup struct {
	at     int // offset of the 4-byte displacement to patch
	target int // label id
}

// Assembler accumulates machine code for one routine plus its label
// table, in the two-phase "emit with placeholders, patch at the end"
// style pike_jit.rs uses with dynasm's own label mechanism.
type Assembler struct {
	code    []byte
	labels  []label
	fixups  []fixup
}

// NewAssembler returns an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// NewLabel reserves a new, as-yet-unplaced label.
func (a *Assembler) NewLabel() int {
	a.labels = append(a.labels, label{pos: -1})
	return len(a.labels) - 1
}

// Bind places label id at the current code position.
func (a *Assembler) Bind(id int) {
	a.labels[id].pos = len(a.code)
	a.labels[id].placed = true
}

// Pos returns the current code offset.
func (a *Assembler) Pos() int { return len(a.code) }

func (a *Assembler) emit(b ...byte) {
	a.code = append(a.code, b...)
}

func (a *Assembler) emit32(v uint32) {
	a.emit(byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (a *Assembler) emit64(v uint64) {
	for i := 0; i < 8; i++ {
		a.emit(byte(v >> (8 * i)))
	}
}

func rex(w bool, r, x, b byte) byte {
	v := byte(0x40)
	if w {
		v |= 0x08
	}
	v |= (r & 1) << 2
	v |= (x & 1) << 1
	v |= b & 1
	return v
}

func modrm(mod, reg, rm byte) byte {
	return mod<<6 | (reg&7)<<3 | rm&7
}

// MovRegImm64 emits `mov dst, imm64`.
func (a *Assembler) MovRegImm64(dst Reg, imm uint64) {
	a.emit(rex(true, 0, 0, dst.ext()), 0xB8+dst.low3())
	a.emit64(imm)
}

// MovRegImm32 emits `mov dst, imm32` (zero-extended into the 64-bit
// register, matching `mov r32, imm32`).
func (a *Assembler) MovRegImm32(dst Reg, imm uint32) {
	a.emit(rex(false, 0, 0, dst.ext()), 0xB8+dst.low3())
	a.emit32(imm)
}

// MovRegReg emits `mov dst, src` (64-bit).
func (a *Assembler) MovRegReg(dst, src Reg) {
	a.emit(rex(true, src.ext(), 0, dst.ext()), 0x89, modrm(3, src.low3(), dst.low3()))
}

// MovRegMem emits `mov dst, [base+disp32]`.
func (a *Assembler) MovRegMem(dst, base Reg, disp int32) {
	a.emit(rex(true, dst.ext(), 0, base.ext()), 0x8B)
	a.emitMemOperand(dst, base, disp)
}

// MovMemReg emits `mov [base+disp32], src`.
func (a *Assembler) MovMemReg(base Reg, disp int32, src Reg) {
	a.emit(rex(true, src.ext(), 0, base.ext()), 0x89)
	a.emitMemOperand(src, base, disp)
}

// MovMemImm32 emits `mov qword [base+disp32], imm32` (REX.W form: the
// immediate is sign-extended into the full 64-bit slot, so 0xFFFFFFFF
// stores -1).
func (a *Assembler) MovMemImm32(base Reg, disp int32, imm uint32) {
	a.emit(rex(true, 0, 0, base.ext()), 0xC7)
	a.emitMemOperand(0, base, disp)
	a.emit32(imm)
}

func (a *Assembler) emitMemOperand(reg, base Reg, disp int32) {
	if disp == 0 && base.low3() != 5 { // RBP/R13 always need a disp8 even at 0
		a.emit(modrm(0, reg.low3(), base.low3()))
	} else {
		a.emit(modrm(2, reg.low3(), base.low3()), byte(disp), byte(disp>>8), byte(disp>>16), byte(disp>>24))
	}
	if base.low3() == 4 { // RSP/R12 need a SIB byte
		a.emit(0x24)
	}
}

// emitAddReg emits `add dst, src` (64-bit).
func (a *Assembler) emitAddReg(dst, src Reg) {
	a.emit(rex(true, src.ext(), 0, dst.ext()), 0x01, modrm(3, src.low3(), dst.low3()))
}

// emitImulImm32 emits `imul dst, dst, imm32`.
func (a *Assembler) emitImulImm32(dst Reg, imm int32) {
	a.emit(rex(true, dst.ext(), 0, dst.ext()), 0x69, modrm(3, dst.low3(), dst.low3()))
	a.emit32(uint32(imm))
}

// MovzxByteMem emits `movzx dst, byte [base+disp32]`, zero-extending
// one loaded byte into the full 64-bit register — the primitive the
// UTF-8 decode cascade uses to read subject bytes one at a time.
func (a *Assembler) MovzxByteMem(dst, base Reg, disp int32) {
	a.emit(rex(true, dst.ext(), 0, base.ext()), 0x0F, 0xB6)
	a.emitMemOperand(dst, base, disp)
}

// emitMemOperandIndexed emits a ModRM+SIB+disp32 operand encoding
// `[base + index*1 + disp32]`, always via the disp32 form (mod=10) to
// avoid the RBP/R13-at-disp0 special case entirely.
func (a *Assembler) emitMemOperandIndexed(reg, base, index Reg, disp int32) {
	a.emit(modrm(2, reg.low3(), 4))
	a.emit(0<<6 | index.low3()<<3 | base.low3())
	a.emit(byte(disp), byte(disp>>8), byte(disp>>16), byte(disp>>24))
}

// MovRegMemIndexed emits `mov dst, [base+index+disp32]`.
func (a *Assembler) MovRegMemIndexed(dst, base, index Reg, disp int32) {
	a.emit(rex(true, dst.ext(), index.ext(), base.ext()), 0x8B)
	a.emitMemOperandIndexed(dst, base, index, disp)
}

// MovzxByteMemIndexed emits `movzx dst, byte [base+index+disp32]`.
func (a *Assembler) MovzxByteMemIndexed(dst, base, index Reg, disp int32) {
	a.emit(rex(true, dst.ext(), index.ext(), base.ext()), 0x0F, 0xB6)
	a.emitMemOperandIndexed(dst, base, index, disp)
}

// AddRegImm32 emits `add dst, imm32`.
func (a *Assembler) AddRegImm32(dst Reg, imm uint32) {
	a.emit(rex(true, 0, 0, dst.ext()), 0x81, modrm(3, 0, dst.low3()))
	a.emit32(imm)
}

// SubRegImm32 emits `sub dst, imm32`.
func (a *Assembler) SubRegImm32(dst Reg, imm uint32) {
	a.emit(rex(true, 0, 0, dst.ext()), 0x81, modrm(3, 5, dst.low3()))
	a.emit32(imm)
}

// CmpRegReg emits `cmp a, b`.
func (a *Assembler) CmpRegReg(x, y Reg) {
	a.emit(rex(true, y.ext(), 0, x.ext()), 0x39, modrm(3, y.low3(), x.low3()))
}

// CmpRegImm32 emits `cmp reg, imm32`.
func (a *Assembler) CmpRegImm32(reg Reg, imm uint32) {
	a.emit(rex(true, 0, 0, reg.ext()), 0x81, modrm(3, 7, reg.low3()))
	a.emit32(imm)
}

// IncMem emits `inc qword [base+disp32]`.
func (a *Assembler) IncMem(base Reg, disp int32) {
	a.emit(rex(true, 0, 0, base.ext()), 0xFF)
	a.emitMemOperand(0, base, disp)
}

// Ret emits `ret`.
func (a *Assembler) Ret() { a.emit(0xC3) }

// Push emits `push reg`.
func (a *Assembler) Push(reg Reg) {
	if reg.needsRex() {
		a.emit(rex(false, 0, 0, reg.ext()))
	}
	a.emit(0x50 + reg.low3())
}

// Pop emits `pop reg`.
func (a *Assembler) Pop(reg Reg) {
	if reg.needsRex() {
		a.emit(rex(false, 0, 0, reg.ext()))
	}
	a.emit(0x58 + reg.low3())
}

// emitShlImm emits `shl reg, imm8` (64-bit operand).
func (a *Assembler) emitShlImm(reg Reg, imm uint8) {
	a.emit(rex(true, 0, 0, reg.ext()), 0xC1, modrm(3, 4, reg.low3()), imm)
}

// emitShl32 emits `shl reg, 32` (64-bit operand).
func (a *Assembler) emitShl32(reg Reg) {
	a.emit(rex(true, 0, 0, reg.ext()), 0xC1, modrm(3, 4, reg.low3()), 32)
}

// emitShr32 emits `shr reg, 32` (64-bit operand).
func (a *Assembler) emitShr32(reg Reg) {
	a.emit(rex(true, 0, 0, reg.ext()), 0xC1, modrm(3, 5, reg.low3()), 32)
}

// emitAndImm32Low emits `and reg, 0x00000000FFFFFFFF` via a 32-bit
// `and`, which the x86-64 ISA zero-extends into the full 64-bit
// register, clearing the high dword as a side effect.
func (a *Assembler) emitAndImm32Low(reg Reg) {
	a.emit(rex(false, 0, 0, reg.ext()), 0x81, modrm(3, 4, reg.low3()))
	a.emit32(0xFFFFFFFF)
}

// emitAndImm32High clears the low dword, keeping the high dword
// (`and reg, 0xFFFFFFFF00000000`), done via a 64-bit `and` against a
// mask loaded into the reserved scratch register R11, since the
// 32-bit `and` form cannot zero-extend-and-preserve the top half.
// Callers of this helper must not be holding a live value in R11.
func (a *Assembler) emitAndImm32High(reg Reg) {
	a.MovRegImm64(scratchReg, 0xFFFFFFFF00000000)
	a.emit(rex(true, scratchReg.ext(), 0, reg.ext()), 0x21, modrm(3, scratchReg.low3(), reg.low3()))
}

// scratchReg is the register CG emitters may clobber freely between
// hook boundaries; R11 is caller-saved and never holds a live handle
// or queue pointer across a hook call in the emission schema.
const scratchReg = R11

// ShrRegImm8 emits `shr reg, imm8` (64-bit operand).
func (a *Assembler) ShrRegImm8(reg Reg, imm uint8) {
	a.emit(rex(true, 0, 0, reg.ext()), 0xC1, modrm(3, 5, reg.low3()), imm)
}

// AndRegImm32 emits a 32-bit `and reg, imm32`, zero-extending the
// result into the full 64-bit register (the ISA's normal behavior for
// any 32-bit destination write) — useful for small nonnegative masks
// where clearing the upper dword is harmless or desired.
func (a *Assembler) AndRegImm32(reg Reg, imm uint32) {
	a.emit(rex(false, 0, 0, reg.ext()), 0x81, modrm(3, 4, reg.low3()))
	a.emit32(imm)
}

// emitOrReg emits `or dst, src` (64-bit).
func (a *Assembler) emitOrReg(dst, src Reg) {
	a.emit(rex(true, src.ext(), 0, dst.ext()), 0x09, modrm(3, src.low3(), dst.low3()))
}

// Cond names a condition-code suffix for Jcc.
type Cond byte

const (
	CondEqual    Cond = 0x84 // je/jz
	CondNotEqual Cond = 0x85 // jne/jnz
	CondLess     Cond = 0x8C
	CondGE       Cond = 0x8D
	CondBelow    Cond = 0x82
	CondAE       Cond = 0x83
	CondBE       Cond = 0x86 // below-or-equal (unsigned)
	CondA        Cond = 0x87 // above (unsigned)
)

// Jmp emits a near unconditional jump to label id, patched at Finish.
func (a *Assembler) Jmp(id int) {
	a.emit(0xE9)
	a.fixups = append(a.fixups, fixup{at: len(a.code), target: id})
	a.emit32(0)
}

// Jcc emits a near conditional jump to label id, patched at Finish.
func (a *Assembler) Jcc(cond Cond, id int) {
	a.emit(0x0F, byte(cond))
	a.fixups = append(a.fixups, fixup{at: len(a.code), target: id})
	a.emit32(0)
}

// Call emits a near call to label id, patched at Finish.
func (a *Assembler) Call(id int) {
	a.emit(0xE8)
	a.fixups = append(a.fixups, fixup{at: len(a.code), target: id})
	a.emit32(0)
}

// Finish patches every recorded fixup against its label's final
// position and returns the assembled code.
func (a *Assembler) Finish() []byte {
	for _, f := range a.fixups {
		target := a.labels[f.target].pos
		rel := int32(target - (f.at + 4))
		a.code[f.at] = byte(rel)
		a.code[f.at+1] = byte(rel >> 8)
		a.code[f.at+2] = byte(rel >> 16)
		a.code[f.at+3] = byte(rel >> 24)
	}
	return a.code
}
