// Package bytecode defines the Thompson-NFA bytecode representation
// shared by the Pike-VM interpreter and the JIT code generator, and
// the compiler that lowers a parsed regex AST into it.
package bytecode

import "github.com/coregx/pikeregex/char"

// Op identifies the kind of a bytecode Instruction.
type Op int

const (
	OpConsume Op = iota
	OpConsumeAny
	OpConsumeClass
	OpConsumeOutlined
	OpFork2
	OpForkN
	OpJmp
	OpWriteReg
	OpAssertion
	OpAccept
)

func (op Op) String() string {
	switch op {
	case OpConsume:
		return "Consume"
	case OpConsumeAny:
		return "ConsumeAny"
	case OpConsumeClass:
		return "ConsumeClass"
	case OpConsumeOutlined:
		return "ConsumeOutlined"
	case OpFork2:
		return "Fork2"
	case OpForkN:
		return "ForkN"
	case OpJmp:
		return "Jmp"
	case OpWriteReg:
		return "WriteReg"
	case OpAssertion:
		return "Assertion"
	case OpAccept:
		return "Accept"
	default:
		return "?"
	}
}

// Look identifies a zero-width assertion kind.
type Look int

const (
	LookStart Look = iota
	LookEnd
	LookStartLF
	LookEndLF
	LookStartCRLF
	LookEndCRLF
)

func (l Look) String() string {
	switch l {
	case LookStart:
		return "Start"
	case LookEnd:
		return "End"
	case LookStartLF:
		return "StartLF"
	case LookEndLF:
		return "EndLF"
	case LookStartCRLF:
		return "StartCRLF"
	case LookEndCRLF:
		return "EndCRLF"
	default:
		return "?"
	}
}

// Instruction is one atomic step of the NFA simulation. A single
// tagged struct represents every opcode; only the fields relevant to
// Op are meaningful.
type Instruction struct {
	Op Op

	Char char.Char // OpConsume

	Ranges []char.Interval // OpConsumeClass
	Class  int             // OpConsumeOutlined: index into Bytecode.OutlinedClasses

	A, B int // OpFork2: prefer A
	List []int // OpForkN: prefer earlier entries

	Target int // OpJmp

	Reg uint32 // OpWriteReg

	Look Look // OpAssertion
}

// Bytecode is the compiled form of a pattern: an instruction stream,
// a parallel barrier vector, and a table of deduplicated large
// character classes.
type Bytecode struct {
	Instructions    []Instruction
	Barriers        []bool
	OutlinedClasses [][]char.Interval

	// RegisterCount is 2*(explicit group count + 1): register 0/1 are
	// the overall match, registers 2i/2i+1 are group i. With captures
	// disabled it is 2 (the overall match only).
	RegisterCount int
}

// Len reports the number of instructions.
func (bc *Bytecode) Len() int {
	return len(bc.Instructions)
}
