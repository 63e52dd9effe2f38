// Package capture implements the four interchangeable capture-group
// recording disciplines shared by the Pike-VM interpreter and the
// JIT's generated code. New (or, for the JIT, pikejit's newCG) picks
// one from the caller's requested Kind, falling back to the
// register-only discipline when the compiled program has no explicit
// group registers (no groups in the pattern, or captures disabled).
package capture

import "github.com/coregx/pikeregex/char"

// Handle is an opaque per-thread capture-state value. Each Strategy
// implementation only ever receives back a Handle it produced itself,
// so implementations may safely type-assert it to their own concrete
// type.
type Handle any

// Strategy is the small vtable the design notes call for: few enough
// methods that a Go interface's dynamic dispatch cost stays low, and
// general enough that the interpreter's Step loop never needs to know
// which concrete discipline it is driving.
type Strategy interface {
	// Initialize resets any strategy-global state (free lists, arenas)
	// before a fresh search.
	Initialize()

	// AllocThread returns a fresh handle with every register unset.
	AllocThread() Handle

	// Free releases a handle a thread no longer needs.
	Free(h Handle)

	// Clone returns an independent handle with the same recorded
	// registers as h (independent from h's perspective; the
	// implementation may share storage internally, e.g. copy-on-write).
	Clone(h Handle) Handle

	// WriteReg records pos into register reg, returning the
	// (possibly new, e.g. after a copy-on-write split) handle to use
	// from here on.
	WriteReg(h Handle, reg uint32, pos int) Handle

	// Accept finalizes h as a candidate best match at the given input
	// position; every strategy records pos as register 1 (the overall
	// match end).
	Accept(h Handle, pos int) Handle

	// WriteResult extracts the final capture spans from a winning
	// handle into out, which must have length RegisterCount()/2.
	WriteResult(h Handle, out []char.Span)

	// InitMemSize reports an initial memory-sizing hint; meaningful
	// for the JIT's scratch-buffer allocation, mostly informational
	// for the interpreter since Go's allocator owns its own memory.
	InitMemSize() int

	// RegisterCount reports the number of registers this strategy was
	// configured for (2*(groupCount+1), or 2 for RegisterOnly).
	RegisterCount() int
}
