package capture

import "github.com/coregx/pikeregex/char"

// registerHandle is the thread-data slot doubling as the current
// match span: a thread needs only remember where it
// started, and where it was when it reached Accept.
type registerHandle struct {
	start, end int
}

// Register is the no-explicit-groups strategy. Allocation, free and
// clone are no-ops (values are copied, not indirected); WriteReg is
// only ever legal for register 0 (the overall match start).
type Register struct{}

// NewRegister constructs the register-only strategy.
func NewRegister() *Register {
	return &Register{}
}

func (s *Register) Initialize() {}

func (s *Register) AllocThread() Handle {
	return registerHandle{start: -1, end: -1}
}

func (s *Register) Free(Handle) {}

func (s *Register) Clone(h Handle) Handle {
	return h // registerHandle is a plain value; copying it is "cloning" it.
}

func (s *Register) WriteReg(h Handle, reg uint32, pos int) Handle {
	rh := h.(registerHandle)
	if reg == 0 {
		rh.start = pos
	}
	return rh
}

func (s *Register) Accept(h Handle, pos int) Handle {
	rh := h.(registerHandle)
	rh.end = pos
	return rh
}

func (s *Register) WriteResult(h Handle, out []char.Span) {
	rh := h.(registerHandle)
	out[0] = char.Span{From: rh.start, To: rh.end}
}

func (s *Register) InitMemSize() int { return 0 }

func (s *Register) RegisterCount() int { return 2 }
