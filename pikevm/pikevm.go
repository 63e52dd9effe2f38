// Package pikevm implements the Pike-VM interpreter: the
// reference engine that simulates the Thompson-NFA bytecode with two
// FIFO queues and a visited-stamp array, against a pluggable
// capture-recording strategy.
package pikevm

import (
	"sync"

	"github.com/coregx/pikeregex/bytecode"
	"github.com/coregx/pikeregex/capture"
	"github.com/coregx/pikeregex/char"
)

// PikeVM drives one immutable Bytecode program. The bytecode and
// capture strategy are read-only and shareable across goroutines;
// each search borrows its own scratch state (queues, visited array)
// from an internal pool so concurrent callers never share mutable
// state.
type PikeVM struct {
	bc          *bytecode.Bytecode
	newStrategy func() capture.Strategy
	pool        sync.Pool
}

// New constructs a PikeVM over bc. newStrategy is called once per
// pooled scratch state (never shared across concurrent searches) to
// build that search's capture.Strategy instance.
func New(bc *bytecode.Bytecode, newStrategy func() capture.Strategy) *PikeVM {
	vm := &PikeVM{bc: bc, newStrategy: newStrategy}
	vm.pool.New = func() any { return newRunState(bc, newStrategy()) }
	return vm
}

// result is the engine's best-match-so-far cell.
type result struct {
	h          capture.Handle
	start, end int
}

// runState is the per-search mutable scratch the outer loop threads
// through Step calls.
type runState struct {
	active, next *threadQueue
	visited      []int
	strategy     capture.Strategy
	bc           *bytecode.Bytecode
	inputPos     int
}

func newRunState(bc *bytecode.Bytecode, strategy capture.Strategy) *runState {
	return &runState{
		active:   newThreadQueue(bc.Len()),
		next:     newThreadQueue(bc.Len()),
		visited:  make([]int, bc.Len()),
		strategy: strategy,
		bc:       bc,
	}
}

func (rs *runState) reset() {
	rs.active.Reset()
	rs.next.Reset()
	for i := range rs.visited {
		rs.visited[i] = 0
	}
}

// admit reports whether pc may be entered at the current input
// position, stamping the visited array if pc is a barrier. Only
// barrier instructions are deduplicated; everything else always
// proceeds (barriers are an over-approximation, so
// treating non-barrier pcs as always-admissible is sound).
func (rs *runState) admit(pc, stamp int) bool {
	if !rs.bc.Barriers[pc] {
		return true
	}
	if rs.visited[pc] == stamp {
		return false
	}
	rs.visited[pc] = stamp
	return true
}

// processThread runs one thread's epsilon closure (Fork2/ForkN/Jmp/
// WriteReg/Assertion) until it either consumes a character (pushed to
// next), fails, or accepts.
func (rs *runState) processThread(t thread, stamp int, prevChar, currChar char.Char, best *result) *result {
	bc := rs.bc
	strat := rs.strategy
	for {
		if !rs.admit(t.pc, stamp) {
			strat.Free(t.cap)
			return best
		}
		instr := &bc.Instructions[t.pc]
		switch instr.Op {
		case bytecode.OpFork2:
			rs.active.PushFront(thread{pc: instr.B, cap: strat.Clone(t.cap)})
			t.pc = instr.A
		case bytecode.OpForkN:
			for i := len(instr.List) - 1; i >= 1; i-- {
				rs.active.PushFront(thread{pc: instr.List[i], cap: strat.Clone(t.cap)})
			}
			t.pc = instr.List[0]
		case bytecode.OpJmp:
			t.pc = instr.Target
		case bytecode.OpWriteReg:
			t.cap = strat.WriteReg(t.cap, instr.Reg, rs.inputPos)
			t.pc++
		case bytecode.OpAssertion:
			if !assertionHolds(instr.Look, prevChar, currChar) {
				strat.Free(t.cap)
				return best
			}
			t.pc++
		case bytecode.OpConsume, bytecode.OpConsumeAny, bytecode.OpConsumeClass, bytecode.OpConsumeOutlined:
			if matchConsume(bc, instr, currChar) {
				rs.next.PushBack(thread{pc: t.pc + 1, cap: t.cap})
			} else {
				strat.Free(t.cap)
			}
			return best
		case bytecode.OpAccept:
			accepted := strat.Accept(t.cap, rs.inputPos)
			if best != nil {
				strat.Free(best.h)
			}
			best = &result{h: accepted, start: -1, end: rs.inputPos}
			// Drain and free every remaining, strictly lower-priority
			// active thread: nothing still in active can beat the
			// match that just accepted.
			for {
				other, ok := rs.active.PopFront()
				if !ok {
					break
				}
				strat.Free(other.cap)
			}
			return best
		default:
			panic("pikevm: invalid opcode")
		}
	}
}

// inputPos is threaded via the struct field to avoid passing it
// through every call in the hot loop above; it is only ever read,
// never mutated, inside processThread.
func (rs *runState) step(pos int, prevChar, currChar char.Char, best *result) *result {
	stamp := pos + 1
	rs.inputPos = pos
	for {
		t, ok := rs.active.PopFront()
		if !ok {
			return best
		}
		best = rs.processThread(t, stamp, prevChar, currChar, best)
	}
}

func matchConsume(bc *bytecode.Bytecode, instr *bytecode.Instruction, c char.Char) bool {
	if c == char.InputBound {
		return false
	}
	switch instr.Op {
	case bytecode.OpConsume:
		return c == instr.Char
	case bytecode.OpConsumeAny:
		return true
	case bytecode.OpConsumeClass:
		return rangesContain(instr.Ranges, c)
	case bytecode.OpConsumeOutlined:
		return rangesContain(bc.OutlinedClasses[instr.Class], c)
	}
	return false
}

func rangesContain(ranges []char.Interval, c char.Char) bool {
	for _, r := range ranges {
		if c >= r.From && c <= r.To {
			return true
		}
	}
	return false
}

func assertionHolds(look bytecode.Look, prev, curr char.Char) bool {
	nl := char.FromRune('\n')
	cr := char.FromRune('\r')
	switch look {
	case bytecode.LookStart:
		return prev == char.InputBound
	case bytecode.LookEnd:
		return curr == char.InputBound
	case bytecode.LookStartLF:
		return prev == char.InputBound || prev == nl
	case bytecode.LookEndLF:
		return curr == char.InputBound || curr == nl
	case bytecode.LookStartCRLF:
		return prev == char.InputBound || prev == nl || (prev == cr && curr != nl)
	case bytecode.LookEndCRLF:
		return curr == char.InputBound || curr == cr || (curr == nl && prev != cr)
	default:
		return false
	}
}
